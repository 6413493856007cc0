// Package fiberdb is the embeddable hybrid row+column database engine: a
// write-ahead-logged entity store (internal/rowengine) kept in sync with an
// optional per-entity-type column store (internal/column), queried through
// a cost-based analyzer and smart router (internal/analyzer,
// internal/router). This file holds the Dual Coordinator (spec §4.8): the
// single type gluing both storage engines together and exposing the
// engine's stable external API (spec §6). Grounded on the teacher's
// pkg/storage/engine.go, which plays the same "one struct owns every
// subsystem" role for the single-store case.
package fiberdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobboyms/fiberdb/internal/analyzer"
	"github.com/bobboyms/fiberdb/internal/column"
	"github.com/bobboyms/fiberdb/internal/config"
	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/internal/router"
	"github.com/bobboyms/fiberdb/internal/rowengine"
	"github.com/bobboyms/fiberdb/internal/walog"
	"github.com/bobboyms/fiberdb/pkg/fibererrors"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// Engine is one open database: a row engine, an optional column store, and
// the per-entity-type columnar configuration that ties them together.
type Engine struct {
	cfg config.Config

	rows *rowengine.Engine
	cols *column.Store
	rtr  *router.Router

	mu       sync.RWMutex
	columnar map[string]*columnarState

	projector *projector
}

// Initialize opens (or creates) an engine rooted at cfg.DataDir. WAL data
// for every entity type lives in the single log <DataDir>/wal/fiberdb.log,
// and column data under <DataDir>/columnar/ (internal/column.Store's own
// layout).
func Initialize(cfg config.Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, &fibererrors.ConfigError{Reason: "DataDir must not be empty"}
	}

	walOpts := walog.DefaultOptions()
	if cfg.CompactionThreshold > 0 {
		walOpts.CompactionThreshold = cfg.CompactionThreshold
	}

	walDir := filepath.Join(cfg.DataDir, "wal")
	if err := os.MkdirAll(walDir, 0755); err != nil {
		return nil, fmt.Errorf("fiberdb: failed to create wal directory: %w", err)
	}

	rows, err := rowengine.Open(filepath.Join(walDir, "fiberdb.log"), walOpts)
	if err != nil {
		return nil, fmt.Errorf("fiberdb: failed to open row engine: %w", err)
	}

	cols := column.NewStore(cfg.DataDir)

	e := &Engine{
		cfg:      cfg,
		rows:     rows,
		cols:     cols,
		rtr:      router.New(rows, cols),
		columnar: make(map[string]*columnarState),
	}
	e.projector = newProjector(e)
	return e, nil
}

// Close stops the projection queue and closes the row engine's WAL.
func (e *Engine) Close() error {
	if e.projector != nil {
		e.projector.stop()
	}
	return e.rows.Close()
}

// SaveEntity persists ent through the row engine, then — if its type is
// columnar-configured and active — projects it into the column store
// according to the configured sync mode (spec §4.8 "write path").
func (e *Engine) SaveEntity(ctx context.Context, ent *entity.Entity) (*entity.Entity, error) {
	saved, err := e.rows.SaveEntity(ctx, ent)
	if err != nil {
		return nil, err
	}
	e.afterWrite(saved)
	return saved, nil
}

func (e *Engine) GetEntity(ctx context.Context, entityType, id string) (*entity.Entity, bool, error) {
	return e.rows.GetEntity(ctx, entityType, id)
}

// DeleteEntity removes ent from the row engine and, if columnar-configured,
// tombstones its contribution to every projected column.
func (e *Engine) DeleteEntity(ctx context.Context, entityType, id string) (bool, error) {
	removed, err := e.rows.DeleteEntity(ctx, entityType, id)
	if err != nil || !removed {
		return removed, err
	}

	if st := e.columnarStateFor(entityType); st != nil && st.state == StateActive {
		if cErr := e.cols.RemoveEntity(entityType, id); cErr != nil {
			return removed, &fibererrors.ColumnarFailureError{EntityType: entityType, Cause: cErr}
		}
	}
	return removed, nil
}

func (e *Engine) GetAllEntities(entityType string) []*entity.Entity {
	return e.rows.GetAllEntities(entityType)
}

func (e *Engine) AddEdge(ctx context.Context, entityType, id string, edge entity.Edge) error {
	return e.rows.AddEdge(ctx, entityType, id, edge)
}

func (e *Engine) RemoveEdge(ctx context.Context, entityType, id, edgeID string) (bool, error) {
	return e.rows.RemoveEdge(ctx, entityType, id, edgeID)
}

func (e *Engine) FindPaths(fromKey, toKey string, maxDepth int) []rowengine.Path {
	return e.rows.FindPaths(fromKey, toKey, maxDepth)
}

// afterWrite routes saved into the projection pipeline if its type is
// configured and not disabled.
func (e *Engine) afterWrite(saved *entity.Entity) {
	st := e.columnarStateFor(saved.Type)
	if st == nil || st.state == StateDisabled || st.state == StateUnconfigured {
		return
	}

	switch st.config.SyncMode {
	case SyncImmediate:
		e.projectOne(saved, st)
	default:
		e.projector.enqueue(saved)
	}
}

func (e *Engine) projectOne(ent *entity.Entity, st *columnarState) {
	if err := e.cols.Project(ent, st.config.Columns); err != nil {
		// Projection failures never fail the write; they surface through
		// checkConsistency instead (spec §4.8 "the row engine is always
		// authoritative").
		failure := &fibererrors.ColumnarFailureError{EntityType: ent.Type, Cause: err}
		fmt.Printf("fiberdb: columnar projection failed: %v\n", failure)
	}
}

// Query runs params through the row engine only, bypassing the analyzer
// (spec §4.8 "query" — the plain entry point).
func (e *Engine) Query(params queryspec.Params) []*entity.Entity {
	return e.rows.Query(params)
}

// QueryWithStrategy runs params through the analyzer and smart router,
// using whatever columnar configuration is currently active for
// params.Type (spec §4.8 "queryWithStrategy").
func (e *Engine) QueryWithStrategy(ctx context.Context, params queryspec.Params) (router.Result, error) {
	cfg := e.analyzerConfigFor(params.Type)
	return e.rtr.Execute(ctx, params, cfg, false)
}

// EnhancedQuery is QueryWithStrategy plus execution metadata (spec §4.8
// "enhancedQuery").
func (e *Engine) EnhancedQuery(ctx context.Context, params queryspec.Params) (router.Result, error) {
	cfg := e.analyzerConfigFor(params.Type)
	return e.rtr.Execute(ctx, params, cfg, true)
}

func (e *Engine) analyzerConfigFor(entityType string) *analyzer.ColumnarConfig {
	st := e.columnarStateFor(entityType)
	if st == nil || st.state != StateActive {
		return nil
	}
	return &analyzer.ColumnarConfig{Columns: st.config.Columns}
}

func (e *Engine) columnarStateFor(entityType string) *columnarState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.columnar[entityType]
}
