package index

import (
	"strings"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// AutoIndexFields is indexed automatically on every entity type that
// carries them (spec §4.3 "Auto-index").
var AutoIndexFields = []string{"id", "type", "status", "category", "created", "updated"}

// fieldKind is the heuristic that infers an index variant from a field
// name when no explicit declaration exists (spec §4.3 "Index type is
// inferred from the field name (heuristic) unless explicitly declared").
type fieldKind int

const (
	kindHash fieldKind = iota
	kindOrdered
	kindInverted
)

func inferKind(field string) fieldKind {
	lower := strings.ToLower(field)
	switch {
	case lower == "created" || lower == "updated" || strings.HasSuffix(lower, "at") ||
		strings.HasSuffix(lower, "count") || strings.HasSuffix(lower, "amount") ||
		strings.HasSuffix(lower, "price") || strings.HasSuffix(lower, "score"):
		return kindOrdered
	case strings.Contains(lower, "description") || strings.Contains(lower, "body") ||
		strings.Contains(lower, "content") || strings.Contains(lower, "text"):
		return kindInverted
	default:
		return kindHash
	}
}

// perField bundles together whichever index variants a single attribute
// name is tracked with. Most fields get exactly one; nothing stops a type
// from declaring more than one variant for the same field.
type perField struct {
	hash     *Hash
	ordered  *Ordered
	inverted *Inverted
}

// Manager owns every secondary index for one entity type: the auto-index
// set plus any explicitly declared fields, keyed by attribute name (spec
// §4.3 Index Manager).
type Manager struct {
	fields map[string]*perField
}

func NewManager() *Manager {
	m := &Manager{fields: make(map[string]*perField)}
	for _, f := range AutoIndexFields {
		m.Declare(f, inferKind(f))
	}
	return m
}

// Declare registers field for indexing with the given variant if not
// already present; idempotent.
func (m *Manager) Declare(field string, kind fieldKind) {
	pf, ok := m.fields[field]
	if !ok {
		pf = &perField{}
		m.fields[field] = pf
	}
	switch kind {
	case kindHash:
		if pf.hash == nil {
			pf.hash = NewHash()
		}
	case kindOrdered:
		if pf.ordered == nil {
			pf.ordered = NewOrdered()
		}
	case kindInverted:
		if pf.inverted == nil {
			pf.inverted = NewInverted()
		}
	}
}

// DeclareField auto-infers the variant from the field name; exported for
// callers outside this package that want to add a field without reaching
// into the unexported fieldKind enum.
func (m *Manager) DeclareField(field string) {
	m.Declare(field, inferKind(field))
}

// IndexEntity inserts every auto/declared-field contribution from e's
// attributes (and the synthetic id/type/created/updated fields) under
// compositeKey.
func (m *Manager) IndexEntity(e *entity.Entity) {
	compositeKey := e.CompositeKey()

	m.indexValue("id", entity.String(e.ID), compositeKey)
	m.indexValue("type", entity.String(e.Type), compositeKey)
	m.indexValue("created", entity.String(e.Metadata.Created.Format(timeLayout)), compositeKey)
	m.indexValue("updated", entity.String(e.Metadata.Updated.Format(timeLayout)), compositeKey)

	for field, v := range e.Attributes {
		m.indexValue(field, v, compositeKey)
	}
}

// RemoveEntity removes every index contribution previously made for e
// (spec §4.3 "On every entity save: remove the entity's prior
// contributions... On delete: remove only").
func (m *Manager) RemoveEntity(e *entity.Entity) {
	compositeKey := e.CompositeKey()

	m.removeValue("id", entity.String(e.ID), compositeKey)
	m.removeValue("type", entity.String(e.Type), compositeKey)
	m.removeValue("created", entity.String(e.Metadata.Created.Format(timeLayout)), compositeKey)
	m.removeValue("updated", entity.String(e.Metadata.Updated.Format(timeLayout)), compositeKey)

	for field, v := range e.Attributes {
		m.removeValue(field, v, compositeKey)
	}
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func (m *Manager) indexValue(field string, v entity.Value, compositeKey string) {
	pf, ok := m.fields[field]
	if !ok {
		return
	}
	if pf.hash != nil {
		pf.hash.Insert(v, compositeKey)
	}
	if pf.ordered != nil {
		pf.ordered.Insert(NewKey(v), compositeKey)
	}
	if pf.inverted != nil {
		if s, ok := v.AsString(); ok {
			pf.inverted.Insert(s, compositeKey)
		}
	}
}

func (m *Manager) removeValue(field string, v entity.Value, compositeKey string) {
	pf, ok := m.fields[field]
	if !ok {
		return
	}
	if pf.hash != nil {
		pf.hash.Remove(v, compositeKey)
	}
	if pf.ordered != nil {
		pf.ordered.Remove(NewKey(v), compositeKey)
	}
	if pf.inverted != nil {
		if s, ok := v.AsString(); ok {
			pf.inverted.Remove(s, compositeKey)
		}
	}
}

// FindCandidates intersects every indexable predicate in where into a
// single composite-key set. Predicates with no matching index are
// skipped; if none were indexable at all, returns (nil, false) so the
// router/row-engine knows to fall back to a full scan (spec §4.3 "If no
// predicate is indexable, returns empty").
func (m *Manager) FindCandidates(where *queryspec.Where) ([]string, bool) {
	if where == nil {
		return nil, false
	}

	var sets [][]string
	for field, pred := range where.Attributes {
		pf, ok := m.fields[field]
		if !ok {
			continue
		}
		if ids, ok := m.evalPredicate(pf, pred); ok {
			sets = append(sets, ids)
		}
	}

	if len(sets) == 0 {
		return nil, false
	}

	return intersect(sets), true
}

func (m *Manager) evalPredicate(pf *perField, pred queryspec.Predicate) ([]string, bool) {
	if pred.IsShorthand() {
		if pf.hash == nil {
			return nil, false
		}
		return pf.hash.Lookup(entity.FromAny(pred.Value)), true
	}

	var result []string
	matched := false
	for op, operand := range pred.Ops {
		var ids []string
		ok := false
		switch op {
		case queryspec.OpEq:
			if pf.hash != nil {
				ids, ok = pf.hash.Lookup(entity.FromAny(operand)), true
			}
		case queryspec.OpIn:
			if pf.hash != nil {
				if values, isSlice := operand.([]any); isSlice {
					vs := make([]entity.Value, len(values))
					for i, val := range values {
						vs[i] = entity.FromAny(val)
					}
					ids, ok = pf.hash.LookupAny(vs), true
				}
			}
		case queryspec.OpExists:
			if pf.hash != nil {
				if want, isBool := operand.(bool); isBool && want {
					ids, ok = pf.hash.Exists(), true
				}
			}
		case queryspec.OpGt, queryspec.OpGte, queryspec.OpLt, queryspec.OpLte:
			if pf.ordered != nil {
				ids, ok = m.rangeLookup(pf.ordered, op, operand), true
			}
		}
		if !ok {
			continue
		}
		matched = true
		if result == nil {
			result = ids
		} else {
			result = intersectTwo(result, ids)
		}
	}
	return result, matched
}

func (m *Manager) rangeLookup(o *Ordered, op queryspec.Operator, operand any) []string {
	bound := NewKey(entity.FromAny(operand))
	var out []string
	switch op {
	case queryspec.OpGt:
		o.RangeScan(bound, true, Key{}, false, func(k Key, id string) bool {
			if k.Compare(bound) > 0 {
				out = append(out, id)
			}
			return true
		})
	case queryspec.OpGte:
		o.RangeScan(bound, true, Key{}, false, func(k Key, id string) bool {
			out = append(out, id)
			return true
		})
	case queryspec.OpLt:
		o.RangeScan(Key{}, false, bound, true, func(k Key, id string) bool {
			if k.Compare(bound) < 0 {
				out = append(out, id)
			}
			return true
		})
	case queryspec.OpLte:
		o.RangeScan(Key{}, false, bound, true, func(k Key, id string) bool {
			out = append(out, id)
			return true
		})
	}
	return out
}

func intersectTwo(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func intersect(sets [][]string) []string {
	result := sets[0]
	for _, s := range sets[1:] {
		result = intersectTwo(result, s)
	}
	return result
}
