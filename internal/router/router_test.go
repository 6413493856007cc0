package router

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bobboyms/fiberdb/internal/analyzer"
	"github.com/bobboyms/fiberdb/internal/column"
	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/internal/rowengine"
	"github.com/bobboyms/fiberdb/internal/walog"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *rowengine.Engine, *column.Store) {
	t.Helper()
	rows, err := rowengine.Open(filepath.Join(t.TempDir(), "test.log"), walog.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { rows.Close() })

	cols := column.NewStore(t.TempDir())
	return New(rows, cols), rows, cols
}

func seedProducts(t *testing.T, rows *rowengine.Engine, cols *column.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, cols.EnsureColumns("product", []string{"category", "price"}, []string{"category"}))

	data := []struct {
		id       string
		category string
		price    float64
	}{
		{"p1", "electronics", 100},
		{"p2", "electronics", 200},
		{"p3", "furniture", 300},
	}
	for _, d := range data {
		ent := &entity.Entity{Type: "product", ID: d.id, Attributes: map[string]entity.Value{
			"category": entity.String(d.category),
			"price":    entity.Number(d.price),
		}}
		_, err := rows.SaveEntity(ctx, ent)
		require.NoError(t, err)
		require.NoError(t, cols.Project(ent, []string{"category", "price"}))
	}
}

func TestExecuteDefaultsToRowEngineWithNoColumnarConfig(t *testing.T) {
	r, rows, _ := newTestRouter(t)
	ctx := context.Background()
	_, err := rows.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1"})
	require.NoError(t, err)

	result, err := r.Execute(ctx, queryspec.Params{Type: "product", ID: "p1"}, nil, true)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Equal(t, "executed against row engine", result.Metrics.Explanation)
}

func TestExecuteColumnarOnlyForFullyCoveredAggregate(t *testing.T) {
	r, rows, cols := newTestRouter(t)
	seedProducts(t, rows, cols)

	cfg := &analyzer.ColumnarConfig{Columns: []string{"category", "price"}}
	result, err := r.Execute(context.Background(), queryspec.Params{
		Type:      "product",
		Where:     &queryspec.Where{Attributes: map[string]queryspec.Predicate{"category": queryspec.Bare("electronics")}},
		Aggregate: &queryspec.Aggregate{Column: "price", Op: queryspec.AggSum},
	}, cfg, true)
	require.NoError(t, err)
	require.Equal(t, 300.0, result.Aggregate)
	require.Equal(t, []string{"column_store"}, result.Metrics.StoragesUsed)
}

func TestExecuteHybridHydratesRowsFromColumnarCandidates(t *testing.T) {
	r, rows, cols := newTestRouter(t)
	seedProducts(t, rows, cols)

	cfg := &analyzer.ColumnarConfig{Columns: []string{"category"}}
	result, err := r.Execute(context.Background(), queryspec.Params{
		Type: "product",
		Where: &queryspec.Where{Attributes: map[string]queryspec.Predicate{
			"category": queryspec.Bare("electronics"),
			"price":    queryspec.WithOp(queryspec.OpGte, 0.0),
		}},
	}, cfg, true)
	require.NoError(t, err)
	require.Equal(t, "hybrid: columnar candidate set, row hydration", result.Metrics.Explanation)
	for _, ent := range result.Entities {
		require.Equal(t, "product", ent.Type)
	}
}

func TestExecuteFallsBackToRowEngineOnColumnarError(t *testing.T) {
	r, rows, _ := newTestRouter(t)
	ctx := context.Background()
	_, err := rows.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1"})
	require.NoError(t, err)

	// cfg claims "price" is columnar-configured but the column store was
	// never told to open it, so the columnar dispatch must fail and the
	// router must fall back to the row engine.
	cfg := &analyzer.ColumnarConfig{Columns: []string{"price"}}
	result, err := r.Execute(ctx, queryspec.Params{
		Type:      "product",
		Aggregate: &queryspec.Aggregate{Column: "price", Op: queryspec.AggSum},
	}, cfg, true)
	require.NoError(t, err)
	require.Equal(t, "Fallback to entity store due to columnar error", result.Metrics.Explanation)
}

func TestCandidateIDsFromWhereIntersectsAcrossColumns(t *testing.T) {
	r, rows, cols := newTestRouter(t)
	seedProducts(t, rows, cols)

	ids, err := r.candidateIDsFromWhere("product", &queryspec.Where{Attributes: map[string]queryspec.Predicate{
		"category": queryspec.Bare("electronics"),
		"price":    queryspec.WithOp(queryspec.OpGte, 150.0),
	}})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"p2"}, ids)
}

func TestApplyOrderLimitOffsetOrdersDescendingThenPages(t *testing.T) {
	entities := []*entity.Entity{
		{ID: "a", Attributes: map[string]entity.Value{"price": entity.Number(10)}},
		{ID: "b", Attributes: map[string]entity.Value{"price": entity.Number(30)}},
		{ID: "c", Attributes: map[string]entity.Value{"price": entity.Number(20)}},
	}
	out := applyOrderLimitOffset(entities, queryspec.Params{
		OrderBy: []queryspec.OrderBy{{Field: "price", Direction: queryspec.Descending}},
		Limit:   2,
	})
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].ID)
	require.Equal(t, "c", out[1].ID)
}
