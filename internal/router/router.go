// Package router executes an analyzer Plan against the row engine, the
// column store, or both, falling back to the row engine on any columnar
// error (spec §4.7 Smart Router). New code — the teacher dispatches
// directly to its B+Tree with no intermediate routing layer — grounded on
// the spec's dispatch-by-feature rules, using internal/entity.Value's
// TotalOrderCompare for the ordering step the same way internal/rowengine
// does for in-process filtering.
package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bobboyms/fiberdb/internal/analyzer"
	"github.com/bobboyms/fiberdb/internal/column"
	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/internal/rowengine"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// Result is what a query returns to the caller: hydrated entities and/or an
// aggregate result, plus optional execution metadata.
type Result struct {
	Entities  []*entity.Entity
	Aggregate float64
	GroupedBy map[string]float64
	Metrics   *Metrics
}

// Metrics reports what actually happened during execution (spec §4.7
// "Metadata").
type Metrics struct {
	Plan         analyzer.Plan
	WallTime     time.Duration
	StoragesUsed []string
	RowsScanned  int
	Explanation  string
}

// Router ties an analyzer plan to the row engine and column store.
type Router struct {
	rows *rowengine.Engine
	cols *column.Store
}

func New(rows *rowengine.Engine, cols *column.Store) *Router {
	return &Router{rows: rows, cols: cols}
}

// Execute runs params through the analyzer and dispatches the resulting
// plan, optionally collecting metrics.
func (r *Router) Execute(ctx context.Context, params queryspec.Params, cfg *analyzer.ColumnarConfig, includeMetrics bool) (Result, error) {
	start := time.Now()
	plan := analyzer.Analyze(params, cfg)

	result, usedStrategy, explanation, err := r.dispatch(ctx, params, plan)
	if err != nil {
		return Result{}, err
	}

	if includeMetrics {
		result.Metrics = &Metrics{
			Plan:         plan,
			WallTime:     time.Since(start),
			StoragesUsed: storagesForStrategy(usedStrategy),
			RowsScanned:  len(result.Entities),
			Explanation:  explanation,
		}
	}
	return result, nil
}

func (r *Router) dispatch(ctx context.Context, params queryspec.Params, plan analyzer.Plan) (Result, analyzer.Strategy, string, error) {
	switch plan.Strategy {
	case analyzer.ColumnarOnly:
		result, err := r.executeColumnar(params)
		if err != nil {
			entities := r.rows.Query(params)
			return Result{Entities: entities}, analyzer.EntityOnly,
				"Fallback to entity store due to columnar error", nil
		}
		return result, analyzer.ColumnarOnly, "executed against column store", nil

	case analyzer.HybridStrategy:
		result, err := r.executeHybrid(params)
		if err != nil {
			entities := r.rows.Query(params)
			return Result{Entities: entities}, analyzer.EntityOnly,
				"Fallback to entity store due to columnar error", nil
		}
		return result, analyzer.HybridStrategy, "hybrid: columnar candidate set, row hydration", nil

	default:
		entities := r.rows.Query(params)
		return Result{Entities: entities}, analyzer.EntityOnly, "executed against row engine", nil
	}
}

func (r *Router) executeColumnar(params queryspec.Params) (Result, error) {
	rowIDs, err := r.candidateIDsFromWhere(params.Type, params.Where)
	if err != nil {
		return Result{}, err
	}

	switch {
	case params.GroupBy != nil:
		grouped, err := r.cols.GroupByAggregate(params.Type, params.GroupBy.GroupColumn, params.GroupBy.AggColumn, params.GroupBy.Op)
		if err != nil {
			return Result{}, err
		}
		return Result{GroupedBy: grouped}, nil

	case params.Aggregate != nil:
		value, err := r.cols.AggregateColumn(params.Type, params.Aggregate.Column, params.Aggregate.Op, rowIDs)
		if err != nil {
			return Result{}, err
		}
		return Result{Aggregate: value}, nil

	default:
		ids := rowIDs
		if ids == nil {
			return Result{}, fmt.Errorf("router: columnar-only query requires a where clause")
		}
		stubs := make([]*entity.Entity, 0, len(ids))
		for _, id := range ids {
			stubs = append(stubs, &entity.Entity{Type: params.Type, ID: id})
		}
		return Result{Entities: applyOrderLimitOffset(stubs, params)}, nil
	}
}

func (r *Router) executeHybrid(params queryspec.Params) (Result, error) {
	ids, err := r.candidateIDsFromWhere(params.Type, params.Where)
	if err != nil {
		return Result{}, err
	}
	if ids == nil {
		return Result{}, fmt.Errorf("router: hybrid query requires a where clause over configured columns")
	}

	entities := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		if ent := r.rows.LookupByKey(entity.CompositeKey(params.Type, id)); ent != nil {
			entities = append(entities, ent)
		}
	}

	return Result{Entities: applyOrderLimitOffset(entities, params)}, nil
}

// candidateIDsFromWhere conjoins (AND, by set intersection) every
// attribute predicate's column filter result (spec §4.7 "Where -> id-set
// composition").
func (r *Router) candidateIDsFromWhere(entityType string, where *queryspec.Where) ([]string, error) {
	if where == nil || len(where.Attributes) == 0 {
		return nil, nil
	}

	var sets [][]string
	for column, pred := range where.Attributes {
		var predIDs []string
		if pred.IsShorthand() {
			ids, err := r.cols.FilterByColumn(entityType, column, queryspec.OpEq, pred.Value)
			if err != nil {
				return nil, err
			}
			predIDs = ids
		} else {
			var opSets [][]string
			for op, operand := range pred.Ops {
				if op == queryspec.OpExists {
					continue
				}
				ids, err := r.cols.FilterByColumn(entityType, column, op, operand)
				if err != nil {
					return nil, err
				}
				opSets = append(opSets, ids)
			}
			predIDs = intersectAll(opSets)
		}
		sets = append(sets, predIDs)
	}

	return intersectAll(sets), nil
}

func intersectAll(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		seen := make(map[string]struct{}, len(s))
		for _, id := range s {
			seen[id] = struct{}{}
		}
		var next []string
		for _, id := range result {
			if _, ok := seen[id]; ok {
				next = append(next, id)
			}
		}
		result = next
	}
	return result
}

// applyOrderLimitOffset sorts by params.OrderBy (spec §4.7 "Ordering"),
// then applies offset/limit.
func applyOrderLimitOffset(entities []*entity.Entity, params queryspec.Params) []*entity.Entity {
	if len(params.OrderBy) > 0 {
		sort.SliceStable(entities, func(i, j int) bool {
			for _, ob := range params.OrderBy {
				vi, _ := fieldValue(entities[i], ob.Field)
				vj, _ := fieldValue(entities[j], ob.Field)
				cmp := vi.TotalOrderCompare(vj)
				if cmp == 0 {
					continue
				}
				if ob.Direction == queryspec.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if params.Offset > 0 {
		if params.Offset >= len(entities) {
			return nil
		}
		entities = entities[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(entities) {
		entities = entities[:params.Limit]
	}
	return entities
}

func fieldValue(ent *entity.Entity, field string) (entity.Value, bool) {
	switch field {
	case "id":
		return entity.String(ent.ID), true
	case "type":
		return entity.String(ent.Type), true
	}
	v, ok := ent.Attributes[field]
	return v, ok
}

func storagesForStrategy(s analyzer.Strategy) []string {
	switch s {
	case analyzer.EntityOnly:
		return []string{"row_engine"}
	case analyzer.ColumnarOnly:
		return []string{"column_store"}
	default:
		return []string{"column_store", "row_engine"}
	}
}
