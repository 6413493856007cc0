// Package analyzer classifies a query and produces a cost-scored execution
// plan (spec §4.6 Query Analyzer). No direct teacher analogue exists — the
// teacher has no query planner, only direct B+Tree Get/Scan calls — so this
// package is grounded on the spec's classification and cost-model rules
// directly, structured the way the teacher structures its other small,
// pure-function-heavy packages (pkg/types, pkg/query).
package analyzer

import (
	"fmt"
	"math"
	"strings"

	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// QueryClass is the coarse classification a query falls into.
type QueryClass string

const (
	Analytical   QueryClass = "ANALYTICAL"
	Transactional QueryClass = "TRANSACTIONAL"
	Hybrid       QueryClass = "HYBRID"
)

// Complexity buckets a query's complexity score.
type Complexity string

const (
	Low    Complexity = "LOW"
	Medium Complexity = "MEDIUM"
	High   Complexity = "HIGH"
)

// Strategy is the storage-dispatch decision the router executes.
type Strategy string

const (
	EntityOnly   Strategy = "ENTITY_ONLY"
	ColumnarOnly Strategy = "COLUMNAR_ONLY"
	HybridStrategy Strategy = "HYBRID"
)

// ColumnarConfig is the subset of the coordinator's per-type configuration
// the analyzer needs: which columns are projected.
type ColumnarConfig struct {
	Columns []string
}

func (c *ColumnarConfig) has(column string) bool {
	if c == nil {
		return false
	}
	for _, col := range c.Columns {
		if col == column {
			return true
		}
	}
	return false
}

// Plan is the analyzer's output: classification, strategy, cost estimate,
// and the storages the router should consult (spec §4.6 "execution plan").
type Plan struct {
	Class           QueryClass
	Complexity      Complexity
	Strategy        Strategy
	Reason          string
	RequiredColumns []string
	EstimatedTimeMS float64
	EstimatedMemory int64
	EstimatedIO     int
	Storages        []string
	Steps           []string
}

// Analyze classifies params and builds a Plan, consulting cfg (nil if the
// primary type has no columnar configuration).
func Analyze(params queryspec.Params, cfg *ColumnarConfig) Plan {
	class := classify(params)
	complexity := scoreComplexity(params)
	required := params.RequiredColumns()

	strategy, reason := selectStrategy(params, class, cfg, required)

	plan := Plan{
		Class:           class,
		Complexity:      complexity,
		Strategy:        strategy,
		Reason:          reason,
		RequiredColumns: required,
	}

	plan.EstimatedTimeMS, plan.EstimatedMemory, plan.EstimatedIO = estimateCost(params, strategy, complexity, len(required))
	plan.Storages = storagesFor(strategy)
	plan.Steps = stepsFor(strategy, params)

	return plan
}

// classify applies the spec's ordered classification rules (spec §4.6
// "Classification rules (evaluated in order)").
func classify(params queryspec.Params) QueryClass {
	if params.Aggregate != nil || params.GroupBy != nil {
		return Analytical
	}
	if params.ID != "" && params.WantsFullRecords() {
		return Transactional
	}
	if params.Traverse != nil {
		return Transactional
	}
	if params.Where != nil && params.Where.PredicateCount() >= 2 && params.WantsFullRecords() {
		return Hybrid
	}
	return Transactional
}

// scoreComplexity implements spec §4.6 "Complexity score".
func scoreComplexity(params queryspec.Params) Complexity {
	score := 0
	if params.Where != nil {
		score += params.Where.PredicateCount()
	}
	if params.Aggregate != nil {
		score += 2
	}
	if params.GroupBy != nil {
		score += 2
	}
	if len(params.OrderBy) > 0 {
		score++
	}
	if len(params.Include) > 4 {
		score += 2
	}
	if params.Traverse != nil {
		score += 3
	}

	switch {
	case score <= 3:
		return Low
	case score <= 8:
		return Medium
	default:
		return High
	}
}

// selectStrategy implements spec §4.6 "Strategy selection".
func selectStrategy(params queryspec.Params, class QueryClass, cfg *ColumnarConfig, required []string) (Strategy, string) {
	if cfg == nil {
		return EntityOnly, fmt.Sprintf("%s query: no columnar configuration for this entity type", strings.ToLower(string(class)))
	}

	allConfigured := len(required) > 0
	for _, col := range required {
		if !cfg.has(col) {
			allConfigured = false
			break
		}
	}

	if class == Analytical && allConfigured && !params.WantsFullRecords() {
		return ColumnarOnly, "analytical query with all required columns projected"
	}

	overlap := false
	for _, col := range required {
		if cfg.has(col) {
			overlap = true
			break
		}
	}

	if class == Transactional || !overlap {
		return EntityOnly, "transactional query or no required column overlaps the columnar configuration"
	}

	return HybridStrategy, "required columns partially covered by columnar configuration"
}

// estimateCost implements spec §4.6 "Cost model".
func estimateCost(params queryspec.Params, strategy Strategy, complexity Complexity, requiredColumns int) (timeMS float64, memBytes int64, io int) {
	factor := 1.0
	switch complexity {
	case Medium:
		factor = 2
	case High:
		factor = 3
	}

	switch strategy {
	case EntityOnly:
		base := 100.0
		if params.ID != "" {
			base = 5
		}
		timeMS = base * factor
		io = 1
		if params.ID == "" {
			io = 10
		}
	case ColumnarOnly:
		timeMS = 10 * float64(requiredColumns)
		io = requiredColumns
	case HybridStrategy:
		columnarCost := 10 * float64(requiredColumns)
		entityCost := 100.0 * factor
		predicateCount := 0
		if params.Where != nil {
			predicateCount = params.Where.PredicateCount()
		}
		selectivity := math.Max(1/math.Pow(2, float64(predicateCount)), 0.01)
		timeMS = columnarCost + entityCost*selectivity
		io = requiredColumns + 5
	}

	memBytes = int64(timeMS * 1024)
	return
}

func storagesFor(strategy Strategy) []string {
	switch strategy {
	case EntityOnly:
		return []string{"row_engine"}
	case ColumnarOnly:
		return []string{"column_store"}
	default:
		return []string{"column_store", "row_engine"}
	}
}

func stepsFor(strategy Strategy, params queryspec.Params) []string {
	switch strategy {
	case EntityOnly:
		if params.ID != "" {
			return []string{"row_engine.getEntity"}
		}
		return []string{"row_engine.query"}
	case ColumnarOnly:
		if params.GroupBy != nil {
			return []string{"column_store.groupByAggregate"}
		}
		if params.Aggregate != nil {
			return []string{"column_store.filterByColumn", "column_store.aggregateColumn"}
		}
		return []string{"column_store.filterByColumn"}
	default:
		return []string{"column_store.filterByColumn", "row_engine.getEntity (batch)", "post-process"}
	}
}
