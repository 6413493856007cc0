package queryspec

import "testing"

func TestPredicateCountCountsShorthandAndMultiOpPredicates(t *testing.T) {
	w := Where{
		Attributes: map[string]Predicate{
			"category": Bare("electronics"),
			"price":    {Ops: map[Operator]any{OpGte: 10.0, OpLte: 100.0}},
		},
		Edges: []EdgePredicate{{Type: "owns"}},
	}
	if got := w.PredicateCount(); got != 4 {
		t.Fatalf("PredicateCount() = %d, want 4", got)
	}
}

func TestWantsFullRecordsFalseForAggregateOrIDOnlyInclude(t *testing.T) {
	if (Params{Aggregate: &Aggregate{Column: "price", Op: AggSum}}).WantsFullRecords() {
		t.Fatal("expected WantsFullRecords() false when Aggregate is set")
	}
	if (Params{Include: []string{"id"}}).WantsFullRecords() {
		t.Fatal("expected WantsFullRecords() false when Include is just [\"id\"]")
	}
	if !(Params{}).WantsFullRecords() {
		t.Fatal("expected WantsFullRecords() true for a plain query")
	}
}

func TestRequiredColumnsUnionsWhereAggregateGroupByAndOrderBy(t *testing.T) {
	p := Params{
		Where:     &Where{Attributes: map[string]Predicate{"category": Bare("electronics")}},
		Aggregate: &Aggregate{Column: "price", Op: AggSum},
		OrderBy:   []OrderBy{{Field: "created"}},
	}
	cols := p.RequiredColumns()
	want := map[string]bool{"category": true, "price": true, "created": true}
	if len(cols) != len(want) {
		t.Fatalf("RequiredColumns() = %v, want 3 distinct columns", cols)
	}
	for _, c := range cols {
		if !want[c] {
			t.Fatalf("unexpected column %q in %v", c, cols)
		}
	}
}

func TestGroupByRequiredColumnsIncludesBothGroupAndAggColumns(t *testing.T) {
	p := Params{GroupBy: &GroupBy{GroupColumn: "category", AggColumn: "price", Op: AggAvg}}
	cols := p.RequiredColumns()
	if len(cols) != 2 {
		t.Fatalf("RequiredColumns() = %v, want [category price]", cols)
	}
}
