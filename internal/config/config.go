// Package config holds the engine's tunables (spec §6 "Configuration").
package config

// Compression is the column-store compression algorithm hint.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionLZ4    Compression = "lz4"
	CompressionSnappy Compression = "snappy"
)

// Decryptor is the black-box field-level decryption collaborator (spec §6
// "Field-level encryption collaborator"). The byte format is deliberately
// not specified here — the source this was distilled from hex-encodes
// AES-CBC with a zero-derived IV, which is not a format worth reproducing;
// callers supply their own implementation.
type Decryptor interface {
	Decrypt(ciphertextHex string, key []byte) (string, error)
}

// Encryptor is Decryptor's write-path counterpart.
type Encryptor interface {
	Encrypt(plaintext string, key []byte) (string, error)
}

// Config configures one engine instance.
type Config struct {
	// DataDir is the root data directory; wal/ and columnar/ live under it.
	DataDir string

	// CompactionThreshold is the WAL entry count that triggers compaction.
	CompactionThreshold int

	// CacheSize is not read by the engine; the column store keeps every
	// column's values resident in memory.
	CacheSize int

	// MemoryBudget is not read by the engine: it is neither enforced nor
	// reported by GetStats.
	MemoryBudget int64

	// Compression and CompressionLevel are not read by the engine.
	// Column-file compression is chosen per entity type by
	// ColumnarEntityConfig.Compression and always uses zstd.
	Compression      Compression
	CompressionLevel int

	// AutoRouting is not read by the engine. Engine.Query always runs
	// against the row engine; QueryWithStrategy and EnhancedQuery always go
	// through the analyzer and router.
	AutoRouting bool

	// BackgroundSync is not read by the engine; the projection queue for
	// batch/scheduled columnar sync modes always runs.
	BackgroundSync bool

	// Decryptor/Encryptor are optional field-level encryption hooks (spec
	// §6.1). Nil means entities carrying a "__secure" field list pass
	// through unmodified.
	Decryptor Decryptor
	Encryptor Encryptor
}

// Default returns sane defaults mirroring the WAL's own defaults
// (compaction threshold 1000, spec §4.1).
func Default(dataDir string) Config {
	return Config{
		DataDir:              dataDir,
		CompactionThreshold:  1000,
		CacheSize:            1000,
		MemoryBudget:         256 * 1024 * 1024,
		Compression:          CompressionNone,
		CompressionLevel:     0,
		AutoRouting:          true,
		BackgroundSync:       true,
	}
}
