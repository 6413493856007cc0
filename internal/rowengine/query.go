package rowengine

import (
	"sort"
	"strings"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// Query runs params against the live entity map: index-assisted candidate
// narrowing, full predicate evaluation, field selection, ordering, and
// pagination (spec §4.4 "query(params)").
func (e *Engine) Query(params queryspec.Params) []*entity.Entity {
	var candidates []*entity.Entity

	if params.ID != "" {
		if ent := e.LookupByKey(entity.CompositeKey(params.Type, params.ID)); ent != nil {
			candidates = []*entity.Entity{ent}
		}
	} else if params.Where != nil {
		if ids, ok := e.indexManagerFor(params.Type).FindCandidates(params.Where); ok {
			for _, key := range ids {
				if ent := e.LookupByKey(key); ent != nil && ent.Type == params.Type {
					candidates = append(candidates, ent)
				}
			}
		} else {
			candidates = e.GetAllEntities(params.Type)
		}
	} else {
		candidates = e.GetAllEntities(params.Type)
	}

	filtered := candidates[:0]
	for _, ent := range candidates {
		if matches(ent, params.Where) {
			filtered = append(filtered, ent)
		}
	}

	if params.Traverse != nil {
		filtered = e.expand(filtered, *params.Traverse)
	}

	if len(params.OrderBy) > 0 {
		sortEntities(filtered, params.OrderBy)
	}

	filtered = paginate(filtered, params.Offset, params.Limit)

	for _, ent := range filtered {
		selectFields(ent, params.Include, params.Exclude)
	}

	return filtered
}

// matches evaluates an attribute/document/edge where-clause against ent.
// A nil where always matches.
func matches(ent *entity.Entity, where *queryspec.Where) bool {
	if where == nil {
		return true
	}
	for field, pred := range where.Attributes {
		v, present := lookupField(ent, field)
		if !evalPredicate(v, present, pred) {
			return false
		}
	}
	for _, dp := range where.Documents {
		if !matchDocument(ent, dp) {
			return false
		}
	}
	for _, ep := range where.Edges {
		if !matchAnyEdge(ent, ep) {
			return false
		}
	}
	return true
}

func lookupField(ent *entity.Entity, field string) (entity.Value, bool) {
	switch field {
	case "id":
		return entity.String(ent.ID), true
	case "type":
		return entity.String(ent.Type), true
	}
	v, ok := ent.Attributes[field]
	return v, ok
}

func evalPredicate(v entity.Value, present bool, pred queryspec.Predicate) bool {
	if pred.IsShorthand() {
		if !present {
			return false
		}
		return v.Equal(entity.FromAny(pred.Value))
	}

	for op, operand := range pred.Ops {
		switch op {
		case queryspec.OpExists:
			want, _ := operand.(bool)
			if present != want {
				return false
			}
			continue
		}

		if !present {
			return false
		}

		switch op {
		case queryspec.OpEq:
			if !v.Equal(entity.FromAny(operand)) {
				return false
			}
		case queryspec.OpNe:
			if v.Equal(entity.FromAny(operand)) {
				return false
			}
		case queryspec.OpGt:
			if v.TotalOrderCompare(entity.FromAny(operand)) <= 0 {
				return false
			}
		case queryspec.OpGte:
			if v.TotalOrderCompare(entity.FromAny(operand)) < 0 {
				return false
			}
		case queryspec.OpLt:
			if v.TotalOrderCompare(entity.FromAny(operand)) >= 0 {
				return false
			}
		case queryspec.OpLte:
			if v.TotalOrderCompare(entity.FromAny(operand)) > 0 {
				return false
			}
		case queryspec.OpIn:
			if !valueIn(v, operand) {
				return false
			}
		case queryspec.OpNin:
			if valueIn(v, operand) {
				return false
			}
		}
	}
	return true
}

func valueIn(v entity.Value, operand any) bool {
	values, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, candidate := range values {
		if v.Equal(entity.FromAny(candidate)) {
			return true
		}
	}
	return false
}

func matchDocument(ent *entity.Entity, dp queryspec.DocumentPredicate) bool {
	docs, present := ent.Documents[dp.Collection]
	if dp.Exists != nil {
		if present != *dp.Exists {
			return false
		}
	}
	if dp.MinCount != nil && len(docs) < *dp.MinCount {
		return false
	}
	return true
}

func matchAnyEdge(ent *entity.Entity, ep queryspec.EdgePredicate) bool {
	for _, edge := range ent.Edges {
		if ep.Type != "" && edge.Type != ep.Type {
			continue
		}
		if ep.Target != "" && edge.Target != ep.Target {
			continue
		}
		propsOK := true
		for field, pred := range ep.Properties {
			v, present := edge.Properties[field]
			if !evalPredicate(v, present, pred) {
				propsOK = false
				break
			}
		}
		if propsOK {
			return true
		}
	}
	return false
}

func sortEntities(entities []*entity.Entity, orderBy []queryspec.OrderBy) {
	sort.SliceStable(entities, func(i, j int) bool {
		for _, ob := range orderBy {
			vi, _ := lookupField(entities[i], ob.Field)
			vj, _ := lookupField(entities[j], ob.Field)
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

func paginate(entities []*entity.Entity, offset, limit int) []*entity.Entity {
	if offset > 0 {
		if offset >= len(entities) {
			return nil
		}
		entities = entities[offset:]
	}
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}

// selectFields applies include (dotted paths, "*" = everything) then
// exclude to ent in place (spec §4.4 "Field selection").
func selectFields(ent *entity.Entity, include, exclude []string) {
	if len(include) > 0 && !containsStar(include) {
		keep := make(map[string]struct{})
		for _, path := range include {
			keep[topLevel(path)] = struct{}{}
		}
		pruneAttributes(ent, keep)
	}
	for _, path := range exclude {
		delete(ent.Attributes, topLevel(path))
	}
}

func containsStar(include []string) bool {
	for _, p := range include {
		if p == "*" {
			return true
		}
	}
	return false
}

func topLevel(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

func pruneAttributes(ent *entity.Entity, keep map[string]struct{}) {
	for k := range ent.Attributes {
		if _, ok := keep[k]; !ok {
			if k != "id" && k != "type" {
				delete(ent.Attributes, k)
			}
		}
	}
}
