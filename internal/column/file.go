// Package column implements the per-entity-type, per-column append-only
// store: one file per configured column, a value->row-id hash index per
// indexed column, and the aggregation/group-by kernels the router
// dispatches analytical queries to (spec §4.5 Column Store). The on-disk
// framing (magic header, length-prefixed records, a validity/tombstone
// byte) is adapted from the teacher's pkg/heap/heap.go, dropping the MVCC
// version-chain fields (CreateLSN/DeleteLSN/PrevOffset) the row engine here
// has no use for, and adding the explicit parallel row-id array the spec's
// row-id-addressing Open Question resolves for (see DESIGN.md).
package column

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/bobboyms/fiberdb/internal/entity"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	fileMagic   uint32 = 0x434F4C31 // "COL1"
	fileVersion uint16 = 1
	fileHeaderSize = 6 // magic(4) + version(2)

	// recordHeaderSize is idLen(2) + valueLen(4) + flags(1) + crc32(4).
	recordHeaderSize = 11

	flagTombstone byte = 1 << 0
	flagCompressed byte = 1 << 1
)

// record is one append-only entry: an entity id, its projected value (BSON
// encoded), and whether it has since been tombstoned.
type record struct {
	id        string
	value     entity.Value
	tombstone bool
}

// File is the durable append-only log backing one (entityType, column)
// pair, plus the in-memory materialization loaded from it at Open.
type File struct {
	mu sync.Mutex

	path string
	f    *os.File
	w    *bufio.Writer

	ids        []string       // insertion-order row ids, parallel to values
	values     []entity.Value // insertion-order projected values
	positions  map[string]int // id -> index into ids/values (last write wins)
	removed    map[string]struct{}
	createdAt  int64
	updatedAt  int64
	compressed bool // whether new Append calls compress their value payload
}

// Open creates path if absent (writing the header) or loads and replays it,
// with compression disabled for newly appended records.
func Open(path string) (*File, error) {
	return OpenCompressed(path, false)
}

// OpenCompressed is Open with compressed controlling whether records
// appended through this handle are zstd-compressed (spec §3 "compression:
// boolean hint"). Every record carries its own compressed flag, so a file
// can freely mix compressed and uncompressed records across reopens with a
// different setting.
func OpenCompressed(path string, compressed bool) (*File, error) {
	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("column: failed to open %s: %w", path, err)
	}

	cf := &File{
		path:       path,
		f:          f,
		positions:  make(map[string]int),
		removed:    make(map[string]struct{}),
		compressed: compressed,
	}

	if !existed {
		if err := cf.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := cf.replay(); err != nil {
			f.Close()
			return nil, err
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	cf.w = bufio.NewWriter(f)

	return cf, nil
}

func (cf *File) writeHeader() error {
	if _, err := cf.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var buf [fileHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], fileMagic)
	binary.LittleEndian.PutUint16(buf[4:6], fileVersion)
	if _, err := cf.f.Write(buf[:]); err != nil {
		return err
	}
	return cf.f.Sync()
}

func (cf *File) replay() error {
	if _, err := cf.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(cf.f)

	var header [fileHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("column: failed to read header of %s: %w", cf.path, err)
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != fileMagic {
		return fmt.Errorf("column: bad magic in %s", cf.path)
	}

	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated trailing record: stop, keep everything read so far,
			// same contract as the WAL's replay (spec §4.1 analogue for
			// column files).
			break
		}
		cf.apply(rec)
	}
	return nil
}

func (cf *File) apply(rec record) {
	if idx, ok := cf.positions[rec.id]; ok {
		cf.values[idx] = rec.value
		if rec.tombstone {
			cf.removed[rec.id] = struct{}{}
		} else {
			delete(cf.removed, rec.id)
		}
		return
	}
	cf.positions[rec.id] = len(cf.ids)
	cf.ids = append(cf.ids, rec.id)
	cf.values = append(cf.values, rec.value)
	if rec.tombstone {
		cf.removed[rec.id] = struct{}{}
	}
}

func readRecord(r *bufio.Reader) (record, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return record{}, err
	}
	idLen := binary.LittleEndian.Uint16(header[0:2])
	valueLen := binary.LittleEndian.Uint32(header[2:6])
	flags := header[6]
	tombstone := flags&flagTombstone != 0
	compressed := flags&flagCompressed != 0
	wantCRC := binary.LittleEndian.Uint32(header[7:11])

	body := make([]byte, int(idLen)+int(valueLen))
	if _, err := io.ReadFull(r, body); err != nil {
		return record{}, io.ErrUnexpectedEOF
	}
	if crc32.ChecksumIEEE(body) != wantCRC {
		return record{}, fmt.Errorf("column: checksum mismatch")
	}

	id := string(body[:idLen])
	valueBytes := body[idLen:]
	if compressed {
		decoded, err := decompressValue(valueBytes)
		if err != nil {
			return record{}, fmt.Errorf("column: failed to decompress value: %w", err)
		}
		valueBytes = decoded
	}

	var wrapper struct {
		V any `bson:"v"`
	}
	if err := bson.Unmarshal(valueBytes, &wrapper); err != nil {
		return record{}, err
	}

	return record{id: id, value: entity.ValueFromBSON(wrapper.V), tombstone: tombstone}, nil
}

// Append durably writes one projected value for id, fsyncing before
// returning (mirrors the WAL's durable-before-return contract, spec §4.1,
// applied here to column projection so a crash never loses an acked write).
func (cf *File) Append(id string, value entity.Value, tombstone bool) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	valueBytes, err := bson.Marshal(struct {
		V any `bson:"v"`
	}{V: value.ToBSON()})
	if err != nil {
		return fmt.Errorf("column: failed to encode value: %w", err)
	}

	if cf.compressed {
		compacted, cErr := compressValue(valueBytes)
		if cErr != nil {
			return fmt.Errorf("column: failed to compress value: %w", cErr)
		}
		valueBytes = compacted
	}

	idBytes := []byte(id)
	body := make([]byte, 0, len(idBytes)+len(valueBytes))
	body = append(body, idBytes...)
	body = append(body, valueBytes...)

	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], uint16(len(idBytes)))
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(valueBytes)))
	var flags byte
	if tombstone {
		flags |= flagTombstone
	}
	if cf.compressed {
		flags |= flagCompressed
	}
	header[6] = flags
	binary.LittleEndian.PutUint32(header[7:11], crc32.ChecksumIEEE(body))

	if _, err := cf.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := cf.w.Write(body); err != nil {
		return err
	}
	if err := cf.w.Flush(); err != nil {
		return err
	}
	if err := cf.f.Sync(); err != nil {
		return err
	}

	rec := record{id: id, value: value, tombstone: tombstone}
	cf.apply(rec)
	return nil
}

// Snapshot returns the live (non-tombstoned) ids and values in insertion
// order.
func (cf *File) Snapshot() (ids []string, values []entity.Value) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	for i, id := range cf.ids {
		if _, dead := cf.removed[id]; dead {
			continue
		}
		ids = append(ids, id)
		values = append(values, cf.values[i])
	}
	return
}

// CurrentValue returns the most recently written value for id, regardless
// of tombstone status, and whether id has ever been written to this file.
// Used by the store to remove an id's stale index posting before writing
// its replacement (an update) or a tombstone (a removal).
func (cf *File) CurrentValue(id string) (entity.Value, bool) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	idx, ok := cf.positions[id]
	if !ok {
		return entity.Value{}, false
	}
	return cf.values[idx], true
}

// RecordCount returns the number of live (non-tombstoned) rows.
func (cf *File) RecordCount() int {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return len(cf.ids) - len(cf.removed)
}

func (cf *File) Close() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if err := cf.w.Flush(); err != nil {
		cf.f.Close()
		return err
	}
	return cf.f.Close()
}
