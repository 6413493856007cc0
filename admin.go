package fiberdb

import (
	"github.com/bobboyms/fiberdb/internal/column"
)

// OverallStatus summarizes a ConsistencyReport across every configured
// entity type (spec §4.8 "checkConsistency").
type OverallStatus string

const (
	StatusConsistent   OverallStatus = "CONSISTENT"
	StatusMinorIssues  OverallStatus = "MINOR_ISSUES"
	StatusMajorIssues  OverallStatus = "MAJOR_ISSUES"
)

// ConsistencyReport rolls up every column.Issue found across every
// columnar-configured entity type.
type ConsistencyReport struct {
	Status OverallStatus
	Issues map[string][]column.Issue // keyed by entity type
}

// CheckConsistency runs internal/column.Store.CheckConsistency for every
// entity type this engine has columnar-configured, ignoring Disabled types
// since their column data is intentionally stale (spec §4.8
// "checkConsistency").
func (e *Engine) CheckConsistency() ConsistencyReport {
	e.mu.RLock()
	snapshot := make(map[string]*columnarState, len(e.columnar))
	for t, st := range e.columnar {
		snapshot[t] = st
	}
	e.mu.RUnlock()

	report := ConsistencyReport{Status: StatusConsistent, Issues: make(map[string][]column.Issue)}

	for entityType, st := range snapshot {
		if st.state == StateDisabled || st.state == StateUnconfigured {
			continue
		}
		liveCount := len(e.rows.GetAllEntities(entityType))
		issues := e.cols.CheckConsistency(entityType, st.config.Columns, liveCount)
		if len(issues) == 0 {
			continue
		}
		report.Issues[entityType] = issues
		for _, issue := range issues {
			if issue.Severity == column.SeverityMajor && report.Status != StatusMajorIssues {
				report.Status = StatusMajorIssues
			} else if issue.Severity == column.SeverityMinor && report.Status == StatusConsistent {
				report.Status = StatusMinorIssues
			}
		}
	}

	return report
}

// ColumnarMetrics reports one entity type's columnar configuration state
// and size.
type ColumnarMetrics struct {
	State       State
	Columns     []string
	Indexed     []string
	SyncMode    SyncMode
	RecordCount int
}

// GetColumnarMetrics reports the current columnar state of every
// configured entity type (spec §4.8 "getColumnarMetrics").
func (e *Engine) GetColumnarMetrics() map[string]ColumnarMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]ColumnarMetrics, len(e.columnar))
	for entityType, st := range e.columnar {
		out[entityType] = ColumnarMetrics{
			State:       st.state,
			Columns:     append([]string(nil), st.config.Columns...),
			Indexed:     append([]string(nil), st.config.Indexed...),
			SyncMode:    st.config.SyncMode,
			RecordCount: len(e.rows.GetAllEntities(entityType)),
		}
	}
	return out
}

// Stats is a point-in-time summary of engine size (spec §4.8 "getStats").
type Stats struct {
	EntityTypeCounts map[string]int
	TotalEntities    int
	ConfiguredTypes  int
	ActiveTypes      int
}

// GetStats reports row counts for every entity type present in the row
// engine, plus columnar configuration totals.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{EntityTypeCounts: make(map[string]int)}
	for _, entityType := range e.rows.Types() {
		count := len(e.rows.GetAllEntities(entityType))
		stats.EntityTypeCounts[entityType] = count
		stats.TotalEntities += count
	}
	for _, st := range e.columnar {
		stats.ConfiguredTypes++
		if st.state == StateActive {
			stats.ActiveTypes++
		}
	}
	return stats
}
