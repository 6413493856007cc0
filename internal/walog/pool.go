package walog

import "sync"

// pool.go keeps WAL entry allocation off the hot path, exactly as the
// teacher's pkg/wal/pool.go: one sync.Pool for *Entry, one for scratch byte
// buffers used during payload encoding.

var entryPool = sync.Pool{
	New: func() any {
		return &Entry{Payload: make([]byte, 0, 4096)}
	},
}

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 8192)
		return &buf
	},
}

func AcquireEntry() *Entry {
	return entryPool.Get().(*Entry)
}

func ReleaseEntry(e *Entry) {
	e.Header = Header{}
	e.Payload = e.Payload[:0]
	entryPool.Put(e)
}

func AcquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func ReleaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
