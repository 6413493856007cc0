package column

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/internal/index"
	"github.com/bobboyms/fiberdb/pkg/fibererrors"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// typeStore holds every column file and index for one entity type.
type typeStore struct {
	mu      sync.RWMutex
	columns map[string]*File
	indexes map[string]*index.Hash
}

// Store is the on-disk, per-entity-type column store rooted at
// <root>/columnar/<entityType>/<column>.col. Column hash indexes are
// in-memory internal/index.Hash values only: no index file is written, and
// each index is rebuilt from its column file's contents when
// EnsureColumnsCompressed first opens it.
type Store struct {
	root string

	mu     sync.RWMutex
	types  map[string]*typeStore
}

func NewStore(root string) *Store {
	return &Store{root: root, types: make(map[string]*typeStore)}
}

func (s *Store) typeDir(entityType string) string {
	return filepath.Join(s.root, "columnar", entityType)
}

func (s *Store) columnPath(entityType, column string) string {
	return filepath.Join(s.typeDir(entityType), column+".col")
}

// EnsureColumns opens (creating if needed) a File for every name in
// columns, and a Hash index for every name in indexed. Equivalent to
// EnsureColumnsCompressed(entityType, columns, indexed, false).
func (s *Store) EnsureColumns(entityType string, columns, indexed []string) error {
	return s.EnsureColumnsCompressed(entityType, columns, indexed, false)
}

// EnsureColumnsCompressed is EnsureColumns with compressed controlling
// whether newly-opened column files zstd-compress their appended records
// (spec §3 "compression: boolean hint"). Already-open files are left as
// they are — compression is a property of the File handle, not the
// store-wide call.
func (s *Store) EnsureColumnsCompressed(entityType string, columns, indexed []string, compressed bool) error {
	if err := os.MkdirAll(s.typeDir(entityType), 0755); err != nil {
		return fmt.Errorf("column: failed to create directory for %s: %w", entityType, err)
	}

	s.mu.Lock()
	ts, ok := s.types[entityType]
	if !ok {
		ts = &typeStore{columns: make(map[string]*File), indexes: make(map[string]*index.Hash)}
		s.types[entityType] = ts
	}
	s.mu.Unlock()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, col := range columns {
		if _, exists := ts.columns[col]; exists {
			continue
		}
		f, err := OpenCompressed(s.columnPath(entityType, col), compressed)
		if err != nil {
			return err
		}
		ts.columns[col] = f
	}

	for _, col := range indexed {
		if _, exists := ts.indexes[col]; exists {
			continue
		}
		h := index.NewHash()
		if cf, ok := ts.columns[col]; ok {
			ids, values := cf.Snapshot()
			for i, id := range ids {
				h.Insert(values[i], id)
			}
		}
		ts.indexes[col] = h
	}

	return nil
}

func (s *Store) typeStoreFor(entityType string) (*typeStore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.types[entityType]
	return ts, ok
}

// Project appends one value per configured column for ent, using null for
// attributes it doesn't have (spec §4.5 "Projection contract").
func (s *Store) Project(ent *entity.Entity, columns []string) error {
	ts, ok := s.typeStoreFor(ent.Type)
	if !ok {
		return fmt.Errorf("column: entity type %s is not columnar-configured", ent.Type)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, col := range columns {
		cf, ok := ts.columns[col]
		if !ok {
			continue
		}
		v, present := ent.Attributes[col]
		if !present {
			v = entity.Null
		}
		h, indexed := ts.indexes[col]
		if indexed {
			if oldValue, existed := cf.CurrentValue(ent.ID); existed {
				h.Remove(oldValue, ent.ID)
			}
		}
		if err := cf.Append(ent.ID, v, false); err != nil {
			return fmt.Errorf("column: failed to project column %s: %w", col, err)
		}
		if indexed {
			h.Insert(v, ent.ID)
		}
	}
	return nil
}

// RemoveEntity tombstones id's contribution to every column and index for
// entityType (spec §4.5 "Removal contract" — physical reclamation is lazy).
func (s *Store) RemoveEntity(entityType, id string) error {
	ts, ok := s.typeStoreFor(entityType)
	if !ok {
		return nil
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	for col, h := range ts.indexes {
		cf, ok := ts.columns[col]
		if !ok {
			continue
		}
		if v, existed := cf.CurrentValue(id); existed {
			h.Remove(v, id)
		}
	}
	for col, cf := range ts.columns {
		if err := cf.Append(id, entity.Null, true); err != nil {
			return fmt.Errorf("column: failed to tombstone column %s: %w", col, err)
		}
	}
	return nil
}

// FilterByColumn evaluates one predicate against a column, using the hash
// index for eq/in on an indexed column and a full column scan otherwise
// ($ne always scans the column; spec §4.5 "filterByColumn").
func (s *Store) FilterByColumn(entityType, column string, op queryspec.Operator, value any) ([]string, error) {
	ts, ok := s.typeStoreFor(entityType)
	if !ok {
		return nil, &fibererrors.NotFoundError{EntityType: entityType, EntityID: "*"}
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	cf, ok := ts.columns[column]
	if !ok {
		return nil, fmt.Errorf("column: %s has no column %q", entityType, column)
	}

	h, hasIndex := ts.indexes[column]

	switch op {
	case queryspec.OpEq:
		if hasIndex {
			return h.Lookup(entity.FromAny(value)), nil
		}
	case queryspec.OpIn:
		if hasIndex {
			values, ok := value.([]any)
			if !ok {
				return nil, fmt.Errorf("column: $in requires a list")
			}
			vs := make([]entity.Value, len(values))
			for i, v := range values {
				vs[i] = entity.FromAny(v)
			}
			return h.LookupAny(vs), nil
		}
	case queryspec.OpNe:
		if hasIndex {
			ids, values := cf.Snapshot()
			target := entity.FromAny(value)
			var out []string
			for i, id := range ids {
				if !values[i].Equal(target) {
					out = append(out, id)
				}
			}
			return out, nil
		}
	}

	// Fall back to a full column scan for range operators or unindexed
	// columns (spec §4.5 "other operators fall back to a full column
	// scan"; §9 "Range queries over the columnar hash index are explicitly
	// not supported").
	ids, values := cf.Snapshot()
	target := entity.FromAny(value)
	var out []string
	for i, id := range ids {
		if matchScan(values[i], op, target) {
			out = append(out, id)
		}
	}
	return out, nil
}

func matchScan(v entity.Value, op queryspec.Operator, target entity.Value) bool {
	switch op {
	case queryspec.OpEq:
		return v.Equal(target)
	case queryspec.OpNe:
		return !v.Equal(target)
	case queryspec.OpGt:
		return v.TotalOrderCompare(target) > 0
	case queryspec.OpGte:
		return v.TotalOrderCompare(target) >= 0
	case queryspec.OpLt:
		return v.TotalOrderCompare(target) < 0
	case queryspec.OpLte:
		return v.TotalOrderCompare(target) <= 0
	case queryspec.OpIn, queryspec.OpNin:
		items, _ := target.AsArray()
		found := false
		for _, item := range items {
			if v.Equal(item) {
				found = true
				break
			}
		}
		return found == (op == queryspec.OpIn)
	default:
		return false
	}
}

// AggregateColumn computes op over column, restricted to rowIds if
// non-nil (spec §4.5 "aggregateColumn").
func (s *Store) AggregateColumn(entityType, column string, op queryspec.AggregateOp, rowIds []string) (float64, error) {
	ts, ok := s.typeStoreFor(entityType)
	if !ok {
		return 0, &fibererrors.NotFoundError{EntityType: entityType, EntityID: "*"}
	}
	ts.mu.RLock()
	cf, ok := ts.columns[column]
	ts.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("column: %s has no column %q", entityType, column)
	}

	ids, values := cf.Snapshot()
	var restrict map[string]struct{}
	if rowIds != nil {
		restrict = make(map[string]struct{}, len(rowIds))
		for _, id := range rowIds {
			restrict[id] = struct{}{}
		}
	}

	var sum, count float64
	var min, max float64
	minSet := false
	for i, id := range ids {
		if restrict != nil {
			if _, ok := restrict[id]; !ok {
				continue
			}
		}
		n, numeric := values[i].AsNumber()
		if !numeric {
			continue
		}
		sum += n
		count++
		if !minSet || n < min {
			min = n
			minSet = true
		}
		if n > max || count == 1 {
			max = n
		}
	}

	switch op {
	case queryspec.AggSum:
		return sum, nil
	case queryspec.AggCount:
		return count, nil
	case queryspec.AggAvg:
		if count == 0 {
			return 0, nil
		}
		return sum / count, nil
	case queryspec.AggMin:
		if !minSet {
			return 0, nil
		}
		return min, nil
	case queryspec.AggMax:
		if !minSet {
			return 0, nil
		}
		return max, nil
	default:
		return 0, fmt.Errorf("column: unknown aggregate op %q", op)
	}
}

// GroupByAggregate pairs groupCol and aggCol values positionally by row id,
// groups by the group value, and aggregates (spec §4.5 "groupByAggregate").
func (s *Store) GroupByAggregate(entityType, groupCol, aggCol string, op queryspec.AggregateOp) (map[string]float64, error) {
	ts, ok := s.typeStoreFor(entityType)
	if !ok {
		return nil, &fibererrors.NotFoundError{EntityType: entityType, EntityID: "*"}
	}
	ts.mu.RLock()
	groupFile, gok := ts.columns[groupCol]
	aggFile, aok := ts.columns[aggCol]
	ts.mu.RUnlock()
	if !gok || !aok {
		return nil, fmt.Errorf("column: %s missing groupBy/agg column", entityType)
	}

	groupIDs, groupValues := groupFile.Snapshot()
	aggByID := make(map[string]float64)
	aggIDs, aggValues := aggFile.Snapshot()
	for i, id := range aggIDs {
		if n, ok := aggValues[i].AsNumber(); ok {
			aggByID[id] = n
		}
	}

	buckets := make(map[string][]float64)
	for i, id := range groupIDs {
		n, ok := aggByID[id]
		if !ok {
			continue
		}
		key := groupValues[i].String()
		buckets[key] = append(buckets[key], n)
	}

	result := make(map[string]float64, len(buckets))
	for key, nums := range buckets {
		result[key] = applyAggregate(op, nums)
	}
	return result, nil
}

func applyAggregate(op queryspec.AggregateOp, nums []float64) float64 {
	if len(nums) == 0 {
		if op == queryspec.AggSum || op == queryspec.AggCount {
			return 0
		}
		return 0
	}
	switch op {
	case queryspec.AggCount:
		return float64(len(nums))
	case queryspec.AggSum:
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum
	case queryspec.AggAvg:
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums))
	case queryspec.AggMin:
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min
	case queryspec.AggMax:
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max
	default:
		return 0
	}
}

// Close closes every open column file across every configured type.
func (s *Store) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var firstErr error
	for _, ts := range s.types {
		ts.mu.Lock()
		for _, cf := range ts.columns {
			if err := cf.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		ts.mu.Unlock()
	}
	return firstErr
}
