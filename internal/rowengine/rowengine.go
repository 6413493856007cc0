// Package rowengine is the in-memory, WAL-backed authoritative entity map:
// CRUD, edge operations, filtered queries, and graph path search (spec
// §4.4 Row Engine). Grounded on the teacher's pkg/storage/engine.go
// lock-then-mutate-then-index write ordering, generalized from single
// int64-keyed B+Tree rows to full (type,id)-addressed entity records.
package rowengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/internal/index"
	"github.com/bobboyms/fiberdb/internal/lockmgr"
	"github.com/bobboyms/fiberdb/internal/walog"
	"github.com/bobboyms/fiberdb/pkg/fibererrors"
)

// Engine owns the live entity map, one index.Manager per entity type, the
// write-ahead log, and the lock manager coordinating access to both.
type Engine struct {
	mu      sync.RWMutex // protects entities map and indexByType map structure only
	entities map[string]*entity.Entity
	indexByType map[string]*index.Manager

	wal    *walog.Writer
	locks  *lockmgr.Manager
}

// Open replays path (creating it if absent) and returns a ready Engine.
func Open(path string, opts walog.Options) (*Engine, error) {
	snap, err := walog.Replay(path)
	if errors.Is(err, os.ErrNotExist) {
		snap, err = &walog.Snapshot{Entities: make(map[string]*entity.Entity)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rowengine: replay failed: %w", err)
	}

	w, err := walog.NewWriter(path, opts)
	if err != nil {
		return nil, fmt.Errorf("rowengine: failed to open wal writer: %w", err)
	}
	w.Clock().Observe(snap.LastTimestamp)

	e := &Engine{
		entities:    snap.Entities,
		indexByType: make(map[string]*index.Manager),
		wal:         w,
		locks:       lockmgr.New(),
	}

	for _, ent := range snap.Entities {
		e.indexManagerFor(ent.Type).IndexEntity(ent)
	}

	return e, nil
}

func (e *Engine) indexManagerFor(entityType string) *index.Manager {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.indexByType[entityType]
	if !ok {
		m = index.NewManager()
		e.indexByType[entityType] = m
	}
	return m
}

// Close flushes and closes the underlying WAL.
func (e *Engine) Close() error {
	return e.wal.Close()
}

// SaveEntity persists e: validates, normalizes, bumps metadata, WAL-logs,
// installs into the map, and reindexes (spec §4.4 "saveEntity").
func (e *Engine) SaveEntity(ctx context.Context, ent *entity.Entity) (*entity.Entity, error) {
	if ent.Type == "" || ent.ID == "" {
		return nil, &fibererrors.ValidationError{Reason: "entity type and id must not be empty"}
	}
	ent.Normalize()

	key := ent.CompositeKey()
	var result *entity.Entity

	err := e.locks.WithWriteLock(ctx, key, func() error {
		e.mu.RLock()
		prior, existed := e.entities[key]
		e.mu.RUnlock()

		now := e.wal.Clock().Next()
		if existed {
			ent.Metadata.Created = prior.Metadata.Created
			ent.Metadata.Version = prior.Metadata.Version + 1
		} else {
			if ent.Metadata.Created.IsZero() {
				ent.Metadata.Created = timestampToTime(now)
			}
			ent.Metadata.Version = 1
		}
		ent.Metadata.Updated = timestampToTime(now)

		payload, err := walog.EncodeInsert(ent)
		if err != nil {
			return fmt.Errorf("rowengine: failed to encode wal payload: %w", err)
		}
		entryType := walog.EntryInsert
		if existed {
			entryType = walog.EntryUpdate
		}
		if err := e.wal.Append(entryType, now, payload); err != nil {
			return fmt.Errorf("rowengine: wal append failed: %w", err)
		}

		idxMgr := e.indexManagerFor(ent.Type)
		if existed {
			idxMgr.RemoveEntity(prior)
		}
		idxMgr.IndexEntity(ent)

		e.mu.Lock()
		e.entities[key] = ent
		e.mu.Unlock()

		result = ent.Clone()
		return nil
	})
	return result, err
}

// GetEntity returns a snapshot of the entity at (entityType, id), or
// (nil, false) if absent.
func (e *Engine) GetEntity(ctx context.Context, entityType, id string) (*entity.Entity, bool, error) {
	key := entity.CompositeKey(entityType, id)
	var result *entity.Entity
	var found bool

	err := e.locks.WithReadLock(ctx, key, func() error {
		e.mu.RLock()
		ent, ok := e.entities[key]
		e.mu.RUnlock()
		if ok {
			result = ent.Clone()
			found = true
		}
		return nil
	})
	return result, found, err
}

// DeleteEntity removes the entity at (entityType, id), returning false if
// it was already absent (spec §4.4 "deleteEntity").
func (e *Engine) DeleteEntity(ctx context.Context, entityType, id string) (bool, error) {
	key := entity.CompositeKey(entityType, id)
	var removed bool

	err := e.locks.WithWriteLock(ctx, key, func() error {
		e.mu.RLock()
		ent, ok := e.entities[key]
		e.mu.RUnlock()
		if !ok {
			return nil
		}

		payload, err := walog.EncodeDelete(entityType, id)
		if err != nil {
			return fmt.Errorf("rowengine: failed to encode wal payload: %w", err)
		}
		if err := e.wal.Append(walog.EntryDelete, e.wal.Clock().Next(), payload); err != nil {
			return fmt.Errorf("rowengine: wal append failed: %w", err)
		}

		e.indexManagerFor(entityType).RemoveEntity(ent)

		e.mu.Lock()
		delete(e.entities, key)
		e.mu.Unlock()

		removed = true
		return nil
	})
	return removed, err
}

// AddEdge appends edge to the owning entity, replacing any existing edge
// with the same id (spec §4.4 "addEdge").
func (e *Engine) AddEdge(ctx context.Context, entityType, id string, edge entity.Edge) error {
	if edge.ID == "" {
		edge.ID = entity.NewEdgeID()
	}
	if err := edge.Validate(); err != nil {
		return &fibererrors.ValidationError{Reason: err.Error()}
	}

	key := entity.CompositeKey(entityType, id)
	return e.locks.WithWriteLock(ctx, key, func() error {
		e.mu.RLock()
		ent, ok := e.entities[key]
		e.mu.RUnlock()
		if !ok {
			return &fibererrors.NotFoundError{EntityType: entityType, EntityID: id}
		}

		payload, err := walog.EncodeEdge(entityType, id, edge)
		if err != nil {
			return fmt.Errorf("rowengine: failed to encode wal payload: %w", err)
		}
		now := e.wal.Clock().Next()
		if err := e.wal.Append(walog.EntryAddEdge, now, payload); err != nil {
			return fmt.Errorf("rowengine: wal append failed: %w", err)
		}

		e.mu.Lock()
		ent.Edges = replaceEdge(ent.Edges, edge)
		ent.Metadata.Version++
		ent.Metadata.Updated = timestampToTime(now)
		e.mu.Unlock()

		return nil
	})
}

// RemoveEdge splices edgeId out of the owning entity's edge list, returning
// false if it was not present.
func (e *Engine) RemoveEdge(ctx context.Context, entityType, id, edgeID string) (bool, error) {
	key := entity.CompositeKey(entityType, id)
	var removed bool

	err := e.locks.WithWriteLock(ctx, key, func() error {
		e.mu.RLock()
		ent, ok := e.entities[key]
		e.mu.RUnlock()
		if !ok {
			return &fibererrors.NotFoundError{EntityType: entityType, EntityID: id}
		}

		var target *entity.Edge
		for i := range ent.Edges {
			if ent.Edges[i].ID == edgeID {
				target = &ent.Edges[i]
				break
			}
		}
		if target == nil {
			return nil
		}

		payload, err := walog.EncodeEdge(entityType, id, *target)
		if err != nil {
			return fmt.Errorf("rowengine: failed to encode wal payload: %w", err)
		}
		now := e.wal.Clock().Next()
		if err := e.wal.Append(walog.EntryRemoveEdge, now, payload); err != nil {
			return fmt.Errorf("rowengine: wal append failed: %w", err)
		}

		e.mu.Lock()
		ent.Edges = removeEdge(ent.Edges, edgeID)
		ent.Metadata.Version++
		ent.Metadata.Updated = timestampToTime(now)
		e.mu.Unlock()

		removed = true
		return nil
	})
	return removed, err
}

// GetAllEntities linearly scans the map filtered by type.
func (e *Engine) GetAllEntities(entityType string) []*entity.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*entity.Entity
	for _, ent := range e.entities {
		if ent.Type == entityType {
			out = append(out, ent.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Types returns every distinct entity type currently present in the map,
// used by the coordinator's getStats to report counts for types that were
// never columnar-configured.
func (e *Engine) Types() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, ent := range e.entities {
		seen[ent.Type] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LookupByKey returns a snapshot of the entity at composite key, or nil.
func (e *Engine) LookupByKey(key string) *entity.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entities[key]
	if !ok {
		return nil
	}
	return ent.Clone()
}

// IndexManagerFor exposes the per-type index manager for the router/
// analyzer to consult during candidate-set composition.
func (e *Engine) IndexManagerFor(entityType string) *index.Manager {
	return e.indexManagerFor(entityType)
}

// WAL exposes the underlying writer for compaction scheduling by the
// coordinator.
func (e *Engine) WAL() *walog.Writer {
	return e.wal
}

// Snapshot returns every live entity keyed by composite key, used by
// compaction to build the next log generation.
func (e *Engine) Snapshot() map[string]*entity.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*entity.Entity, len(e.entities))
	for k, v := range e.entities {
		out[k] = v
	}
	return out
}

func replaceEdge(edges []entity.Edge, edge entity.Edge) []entity.Edge {
	for i := range edges {
		if edges[i].ID == edge.ID {
			edges[i] = edge
			return edges
		}
	}
	return append(edges, edge)
}

func removeEdge(edges []entity.Edge, id string) []entity.Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
