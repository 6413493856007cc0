package column

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Column files honor the columnar configuration's "compression: boolean
// hint" (spec §3, §6) by zstd-compressing each record's BSON value payload
// before it hits disk. zstd is the teacher's own indirect dependency (via
// cockroachdb/pebble) and is exercised directly here rather than left
// unbound (see DESIGN.md).
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func initZstd() {
	zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if zstdInitErr != nil {
		return
	}
	zstdDecoder, zstdInitErr = zstd.NewReader(nil)
}

// compressValue returns the zstd-compressed form of data. EncodeAll is safe
// for concurrent use on a shared *zstd.Encoder.
func compressValue(data []byte) ([]byte, error) {
	zstdOnce.Do(initZstd)
	if zstdInitErr != nil {
		return nil, fmt.Errorf("column: failed to initialize zstd encoder: %w", zstdInitErr)
	}
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// decompressValue reverses compressValue. DecodeAll is likewise safe for
// concurrent use on a shared *zstd.Decoder.
func decompressValue(data []byte) ([]byte, error) {
	zstdOnce.Do(initZstd)
	if zstdInitErr != nil {
		return nil, fmt.Errorf("column: failed to initialize zstd decoder: %w", zstdInitErr)
	}
	return zstdDecoder.DecodeAll(data, nil)
}
