// Package walog is the write-ahead log: a durable, ordered, append-only
// journal of every state-changing row-engine operation, sufficient to
// recover the in-memory entity map after an unclean shutdown (spec §4.1).
//
// The on-disk entry framing (fixed binary header + CRC32'd payload) and the
// sync.Pool-backed entry reuse are grounded on the teacher's
// pkg/wal/{entry,pool,checksum}.go; EntryType is widened from the teacher's
// {Insert,Update,Delete,Begin,Commit,Abort} to this spec's five mutation
// kinds, and the payload carries whole entity/edge snapshots instead of a
// single-column document.
package walog

import (
	"encoding/binary"
	"io"
)

const (
	HeaderSize = 24
	WALVersion = 1

	// WALMagic guards against reading a non-WAL file as a log.
	WALMagic = 0xDEADBEEF
)

// EntryType tags the kind of mutation a WAL entry replays (spec §4.1
// "Entry kinds").
type EntryType uint8

const (
	EntryInsert EntryType = iota + 1
	EntryUpdate
	EntryDelete
	EntryAddEdge
	EntryRemoveEdge
)

func (t EntryType) String() string {
	switch t {
	case EntryInsert:
		return "INSERT"
	case EntryUpdate:
		return "UPDATE"
	case EntryDelete:
		return "DELETE"
	case EntryAddEdge:
		return "ADD_EDGE"
	case EntryRemoveEdge:
		return "REMOVE_EDGE"
	default:
		return "UNKNOWN"
	}
}

// Header is the fixed 24-byte framing for every entry.
type Header struct {
	Magic      uint32
	Version    uint8
	EntryType  EntryType
	Reserved   uint16
	Timestamp  uint64 // monotonic nanosecond timestamp, strictly increasing per entity (spec §5)
	PayloadLen uint32
	CRC32      uint32
}

func (h *Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = uint8(h.EntryType)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

func (h *Header) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = EntryType(buf[5])
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.Timestamp = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// Entry is a single framed WAL record: header plus its JSON payload (an
// encoded insertPayload/deletePayload/edgePayload from payload.go).
type Entry struct {
	Header  Header
	Payload []byte
}

func (e *Entry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(e.Payload)
	return int64(n + m), err
}
