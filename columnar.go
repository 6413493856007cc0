package fiberdb

import (
	"fmt"

	"github.com/bobboyms/fiberdb/pkg/fibererrors"
)

// SyncMode controls when a saved entity's columnar projection happens
// (spec §4.8 "Sync modes").
type SyncMode string

const (
	// SyncImmediate projects inline with saveEntity, before it returns.
	SyncImmediate SyncMode = "immediate"
	// SyncBatch queues the projection on a bounded channel, drained by a
	// worker pool.
	SyncBatch SyncMode = "batch"
	// SyncScheduled queues the same as SyncBatch but the worker pool
	// drains on a fixed interval rather than as fast as possible.
	SyncScheduled SyncMode = "scheduled"
)

// State is where one entity type sits in the columnar configuration
// lifecycle (spec §4.8 "State machine": Unconfigured -> Backfilling ->
// Active -> Disabled -> Backfilling).
type State string

const (
	StateUnconfigured State = "UNCONFIGURED"
	StateBackfilling  State = "BACKFILLING"
	StateActive       State = "ACTIVE"
	StateDisabled     State = "DISABLED"
)

// ColumnarEntityConfig is the columnar configuration for one entity type
// (spec §3 "Columnar configuration").
type ColumnarEntityConfig struct {
	Columns     []string
	Indexed     []string
	SyncMode    SyncMode
	Compression bool
}

type columnarState struct {
	config ColumnarEntityConfig
	state  State
}

// ConfigureColumnarStorage declares (or reconfigures) cfg for entityType,
// backfilling every currently-live entity of that type before marking it
// Active (spec §4.8 "enableColumnarStorage"/"configureColumnarStorage").
func (e *Engine) ConfigureColumnarStorage(entityType string, cfg ColumnarEntityConfig) error {
	if len(cfg.Columns) == 0 {
		return &fibererrors.ConfigError{Reason: "columnar configuration requires at least one column"}
	}
	if cfg.SyncMode == "" {
		cfg.SyncMode = SyncImmediate
	}

	e.mu.Lock()
	st, existed := e.columnar[entityType]
	if !existed {
		st = &columnarState{}
		e.columnar[entityType] = st
	}
	st.config = cfg
	st.state = StateBackfilling
	e.mu.Unlock()

	if err := e.cols.EnsureColumnsCompressed(entityType, cfg.Columns, cfg.Indexed, cfg.Compression); err != nil {
		e.mu.Lock()
		st.state = StateDisabled
		e.mu.Unlock()
		return fmt.Errorf("fiberdb: failed to configure columnar storage for %s: %w", entityType, err)
	}

	if err := e.backfill(entityType, cfg.Columns); err != nil {
		e.mu.Lock()
		st.state = StateDisabled
		e.mu.Unlock()
		return fmt.Errorf("fiberdb: backfill failed for %s: %w", entityType, err)
	}

	e.mu.Lock()
	st.state = StateActive
	e.mu.Unlock()
	return nil
}

// EnableColumnarStorage is ConfigureColumnarStorage with immediate sync and
// no secondary indexes, the common case.
func (e *Engine) EnableColumnarStorage(entityType string, columns []string) error {
	return e.ConfigureColumnarStorage(entityType, ColumnarEntityConfig{
		Columns:  columns,
		SyncMode: SyncImmediate,
	})
}

// DisableColumnarStorage stops routing writes and queries to the column
// store for entityType without deleting any on-disk column data, so a
// later re-enable resumes from Backfilling rather than from empty (spec
// §4.8 "disableColumnarStorage").
func (e *Engine) DisableColumnarStorage(entityType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.columnar[entityType]
	if !ok {
		return &fibererrors.ConfigError{Reason: fmt.Sprintf("%s has no columnar configuration", entityType)}
	}
	st.state = StateDisabled
	return nil
}

// AddColumnarColumns extends entityType's projected columns and backfills
// only the new ones (spec §4.8 "addColumnarColumns").
func (e *Engine) AddColumnarColumns(entityType string, columns []string) error {
	e.mu.RLock()
	st, ok := e.columnar[entityType]
	e.mu.RUnlock()
	if !ok {
		return &fibererrors.ConfigError{Reason: fmt.Sprintf("%s has no columnar configuration", entityType)}
	}

	existing := make(map[string]struct{}, len(st.config.Columns))
	for _, c := range st.config.Columns {
		existing[c] = struct{}{}
	}
	var fresh []string
	for _, c := range columns {
		if _, already := existing[c]; !already {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := e.cols.EnsureColumnsCompressed(entityType, fresh, nil, st.config.Compression); err != nil {
		return fmt.Errorf("fiberdb: failed to add columns to %s: %w", entityType, err)
	}
	if err := e.backfill(entityType, fresh); err != nil {
		return fmt.Errorf("fiberdb: backfill of added columns failed for %s: %w", entityType, err)
	}

	e.mu.Lock()
	st.config.Columns = append(st.config.Columns, fresh...)
	e.mu.Unlock()
	return nil
}

// RemoveColumnarColumns drops columns from entityType's configuration. The
// backing column files are left on disk — checkConsistency reports them as
// ORPHANED_COLUMN_DATA until an operator runs the suggested repair (spec
// §4.5 "Consistency checks", §4.8 "removeColumnarColumns").
func (e *Engine) RemoveColumnarColumns(entityType string, columns []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.columnar[entityType]
	if !ok {
		return &fibererrors.ConfigError{Reason: fmt.Sprintf("%s has no columnar configuration", entityType)}
	}

	drop := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		drop[c] = struct{}{}
	}
	kept := st.config.Columns[:0]
	for _, c := range st.config.Columns {
		if _, remove := drop[c]; !remove {
			kept = append(kept, c)
		}
	}
	st.config.Columns = kept
	return nil
}

// backfill projects every currently-live entity of entityType into columns
// (spec §4.8 "Backfill": "every currently-live entity is projected when a
// type becomes configured or gains columns").
func (e *Engine) backfill(entityType string, columns []string) error {
	for _, ent := range e.rows.GetAllEntities(entityType) {
		if err := e.cols.Project(ent, columns); err != nil {
			return err
		}
	}
	return nil
}

// SyncEntityTypeToColumnar forces a full re-backfill of entityType's
// currently configured columns, used to repair drift reported by
// CheckConsistency (spec §4.8 "syncEntityTypeToColumnar").
func (e *Engine) SyncEntityTypeToColumnar(entityType string) error {
	e.mu.RLock()
	st, ok := e.columnar[entityType]
	e.mu.RUnlock()
	if !ok {
		return &fibererrors.ConfigError{Reason: fmt.Sprintf("%s has no columnar configuration", entityType)}
	}
	return e.backfill(entityType, st.config.Columns)
}
