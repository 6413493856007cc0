package walog

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/fibererrors"
)

// Snapshot is the reconstructed in-memory state after a replay: every live
// entity keyed by its composite key (spec §4.1 "replay() -> entity map").
type Snapshot struct {
	Entities map[string]*entity.Entity
	// LastTimestamp is the highest entry timestamp observed, used to
	// resynchronize a Clock so freshly-issued timestamps never collide
	// with replayed ones.
	LastTimestamp uint64
}

// Replay reads every entry in path in order and folds it into a Snapshot.
// A crash mid-append leaves a truncated trailing entry; Replay drops it and
// keeps everything before it, logging the loss rather than failing the
// whole open (spec §4.1 "Corrupt or truncated trailing entries are dropped
// with a log line; earlier entries are preserved").
func Replay(path string) (*Snapshot, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("walog: failed to open for replay: %w", err)
	}
	defer reader.Close()

	snap := &Snapshot{Entities: make(map[string]*entity.Entity)}

	for {
		entry, err := reader.ReadEntry()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrTruncatedTail) {
			log.Printf("walog: dropping truncated trailing entry in %s", path)
			break
		}
		if errors.Is(err, ErrChecksumMismatch) {
			badOffset := reader.offset
			if next, nextErr := reader.ReadEntry(); nextErr == nil {
				ReleaseEntry(next)
				return nil, &fibererrors.WalCorruptionError{Offset: badOffset, Reason: err.Error()}
			}
			log.Printf("walog: dropping corrupt entry (checksum mismatch) in %s", path)
			break
		}

		if err != nil {
			return nil, fmt.Errorf("walog: replay failed: %w", err)
		}

		if entry.Header.Timestamp > snap.LastTimestamp {
			snap.LastTimestamp = entry.Header.Timestamp
		}

		if err := applyEntry(snap, entry); err != nil {
			ReleaseEntry(entry)
			return nil, fmt.Errorf("walog: failed to apply entry at timestamp %d: %w", entry.Header.Timestamp, err)
		}
		ReleaseEntry(entry)
	}

	return snap, nil
}

func applyEntry(snap *Snapshot, entry *Entry) error {
	switch entry.Header.EntryType {
	case EntryInsert, EntryUpdate:
		e, err := DecodeInsert(entry.Payload)
		if err != nil {
			return err
		}
		snap.Entities[e.CompositeKey()] = e

	case EntryDelete:
		entityType, entityID, err := DecodeDelete(entry.Payload)
		if err != nil {
			return err
		}
		delete(snap.Entities, entity.CompositeKey(entityType, entityID))

	case EntryAddEdge:
		entityType, entityID, edge, err := DecodeEdge(entry.Payload)
		if err != nil {
			return err
		}
		key := entity.CompositeKey(entityType, entityID)
		if owner, ok := snap.Entities[key]; ok {
			owner.Edges = appendOrReplaceEdge(owner.Edges, edge)
			owner.Metadata.Version++
			owner.Metadata.Updated = entryTimestampToTime(entry.Header.Timestamp)
		}

	case EntryRemoveEdge:
		entityType, entityID, edge, err := DecodeEdge(entry.Payload)
		if err != nil {
			return err
		}
		key := entity.CompositeKey(entityType, entityID)
		if owner, ok := snap.Entities[key]; ok {
			owner.Edges = removeEdgeByID(owner.Edges, edge.ID)
			owner.Metadata.Version++
			owner.Metadata.Updated = entryTimestampToTime(entry.Header.Timestamp)
		}

	default:
		return fmt.Errorf("unknown entry type %d", entry.Header.EntryType)
	}
	return nil
}

// entryTimestampToTime mirrors rowengine's timestampToTime conversion so a
// replayed edge mutation sets Metadata.Updated the same way the live path
// does, without an import cycle back into rowengine.
func entryTimestampToTime(ts uint64) time.Time {
	return time.Unix(0, int64(ts)).UTC()
}

func appendOrReplaceEdge(edges []entity.Edge, edge entity.Edge) []entity.Edge {
	for i := range edges {
		if edges[i].ID == edge.ID {
			edges[i] = edge
			return edges
		}
	}
	return append(edges, edge)
}

func removeEdgeByID(edges []entity.Edge, id string) []entity.Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
