// Package queryspec defines the public shapes collaborators use to ask the
// coordinator for data: where-clauses, aggregate/groupBy/orderBy/traverse
// descriptors, and field-selection. Operator vocabulary is adapted from the
// teacher's pkg/query/scan.go scan-condition set, widened from the
// teacher's single `eq`-style comparison to the full predicate set the
// row engine and column store both understand.
package queryspec

// Operator is an attribute predicate comparator.
type Operator string

const (
	OpEq     Operator = "$eq"
	OpNe     Operator = "$ne"
	OpGt     Operator = "$gt"
	OpGte    Operator = "$gte"
	OpLt     Operator = "$lt"
	OpLte    Operator = "$lte"
	OpIn     Operator = "$in"
	OpNin    Operator = "$nin"
	OpExists Operator = "$exists"
)

// Predicate is either a bare value (shorthand for $eq) or an object of
// operator -> value(s). Exactly one of Value or Ops is set.
type Predicate struct {
	// Value holds a bare-value shorthand predicate (equality).
	Value any
	// Ops holds one or more operator/operand pairs, e.g. {gt: 100, lt: 200}.
	Ops map[Operator]any
}

// Bare builds an equality-shorthand predicate.
func Bare(value any) Predicate {
	return Predicate{Value: value}
}

// WithOp builds a single-operator predicate.
func WithOp(op Operator, value any) Predicate {
	return Predicate{Ops: map[Operator]any{op: value}}
}

// IsShorthand reports whether this predicate is the bare-value form.
func (p Predicate) IsShorthand() bool {
	return p.Ops == nil
}

// EdgePredicate constrains edges existentially: an entity matches if any of
// its edges satisfies Type/Target/Properties (spec §4.4 edge predicates).
type EdgePredicate struct {
	Type       string
	Target     string
	Properties map[string]Predicate
}

// DocumentPredicate tests presence/shape of a named document collection.
type DocumentPredicate struct {
	Collection string
	Exists     *bool
	MinCount   *int
}

// Where groups predicates by the entity region they test.
type Where struct {
	Attributes map[string]Predicate
	Documents  []DocumentPredicate
	Edges      []EdgePredicate
}

// PredicateCount returns the number of distinct operator keys across all
// attribute predicates (a bare value counts as one) plus one per document
// and edge predicate, used by the analyzer's complexity score.
func (w Where) PredicateCount() int {
	count := 0
	for _, p := range w.Attributes {
		if p.IsShorthand() {
			count++
		} else {
			count += len(p.Ops)
		}
	}
	count += len(w.Documents)
	count += len(w.Edges)
	return count
}

// AggregateOp is a column aggregation kernel.
type AggregateOp string

const (
	AggSum   AggregateOp = "SUM"
	AggAvg   AggregateOp = "AVG"
	AggCount AggregateOp = "COUNT"
	AggMin   AggregateOp = "MIN"
	AggMax   AggregateOp = "MAX"
)

// Aggregate requests a single scalar aggregate over a column.
type Aggregate struct {
	Column string
	Op     AggregateOp
}

// GroupBy requests per-group aggregates, pairing GroupColumn values with
// AggColumn values positionally.
type GroupBy struct {
	GroupColumn string
	AggColumn   string
	Op          AggregateOp
}

// SortDirection is ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// OrderBy is one key in a (possibly multi-key) sort.
type OrderBy struct {
	Field     string
	Direction SortDirection
}

// EdgeDirection selects which edges a traversal follows.
type EdgeDirection string

const (
	DirOut  EdgeDirection = "OUT"
	DirIn   EdgeDirection = "IN"
	DirBoth EdgeDirection = "BOTH"
)

// Traverse expands query seeds by following edges.
type Traverse struct {
	Direction EdgeDirection
	EdgeTypes []string
	MaxDepth  int
}

// Params is a full query specification (spec §4.6 "Inputs").
type Params struct {
	Type      string
	ID        string // optional single-id lookup
	Where     *Where
	Include   []string // dotted paths; "*" means whole entity
	Exclude   []string
	Aggregate *Aggregate
	GroupBy   *GroupBy
	OrderBy   []OrderBy
	Limit     int
	Offset    int
	Traverse  *Traverse
}

// WantsFullRecords reports whether this query needs hydrated entities
// rather than just ids/aggregates (Include is empty or non-trivial, and
// neither Aggregate nor GroupBy alone is requested).
func (p Params) WantsFullRecords() bool {
	if p.Aggregate != nil || p.GroupBy != nil {
		return false
	}
	if len(p.Include) == 1 && p.Include[0] == "id" {
		return false
	}
	return true
}

// RequiredColumns is the union of every column name referenced anywhere in
// the query (spec §4.6 "Required columns").
func (p Params) RequiredColumns() []string {
	seen := make(map[string]struct{})
	add := func(name string) {
		if name != "" {
			seen[name] = struct{}{}
		}
	}

	if p.Where != nil {
		for k := range p.Where.Attributes {
			add(k)
		}
	}
	if p.Aggregate != nil {
		add(p.Aggregate.Column)
	}
	if p.GroupBy != nil {
		add(p.GroupBy.GroupColumn)
		add(p.GroupBy.AggColumn)
	}
	for _, o := range p.OrderBy {
		add(o.Field)
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}
