package walog

import "time"

// SyncPolicy controls how aggressively the writer calls fsync, following
// the teacher's three-tier policy in pkg/wal/options.go.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every entry. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota
	// SyncInterval fsyncs periodically on a background ticker.
	SyncInterval
	// SyncBatch fsyncs once buffered bytes cross SyncBatchBytes.
	SyncBatch
)

// Options configures a Writer.
type Options struct {
	// BufferSize is the bufio buffer size in bytes before data reaches the OS.
	BufferSize int

	SyncPolicy SyncPolicy

	// SyncIntervalDuration is used when SyncPolicy == SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is used when SyncPolicy == SyncBatch.
	SyncBatchBytes int64

	// CompactionThreshold is the entry count that triggers compaction
	// (spec §4.1, default 1000).
	CompactionThreshold int
}

func DefaultOptions() Options {
	return Options{
		BufferSize:           64 * 1024,
		SyncPolicy:           SyncEveryWrite,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
		CompactionThreshold:  1000,
	}
}
