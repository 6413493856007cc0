package rowengine

import (
	"sort"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

// expand grows seeds by following OUT/IN/BOTH edges up to MaxDepth hops,
// deduplicating visited composite keys (spec §4.4 "Graph traversal").
func (e *Engine) expand(seeds []*entity.Entity, t queryspec.Traverse) []*entity.Entity {
	visited := make(map[string]struct{}, len(seeds))
	var result []*entity.Entity
	frontier := make([]*entity.Entity, 0, len(seeds))

	for _, s := range seeds {
		key := s.CompositeKey()
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		result = append(result, s)
		frontier = append(frontier, s)
	}

	for depth := 0; depth < t.MaxDepth && len(frontier) > 0; depth++ {
		var next []*entity.Entity
		for _, ent := range frontier {
			for _, neighborKey := range e.neighbors(ent, t.Direction, t.EdgeTypes) {
				if _, ok := visited[neighborKey]; ok {
					continue
				}
				neighbor := e.LookupByKey(neighborKey)
				if neighbor == nil {
					continue
				}
				visited[neighborKey] = struct{}{}
				result = append(result, neighbor)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return result
}

func (e *Engine) neighbors(ent *entity.Entity, dir queryspec.EdgeDirection, edgeTypes []string) []string {
	var keys []string
	typeAllowed := func(t string) bool {
		if len(edgeTypes) == 0 {
			return true
		}
		for _, allowed := range edgeTypes {
			if allowed == t {
				return true
			}
		}
		return false
	}

	if dir == queryspec.DirOut || dir == queryspec.DirBoth {
		for _, edge := range ent.Edges {
			if typeAllowed(edge.Type) {
				keys = append(keys, edge.Target)
			}
		}
	}
	if dir == queryspec.DirIn || dir == queryspec.DirBoth {
		selfKey := ent.CompositeKey()
		for key, other := range e.allEntitiesSnapshot() {
			for _, edge := range other.Edges {
				if edge.Target == selfKey && typeAllowed(edge.Type) {
					keys = append(keys, key)
				}
			}
		}
	}
	return keys
}

func (e *Engine) allEntitiesSnapshot() map[string]*entity.Entity {
	return e.Snapshot()
}

// Path is one simple path of edges from a source to a destination entity.
type Path struct {
	Keys  []string // composite keys, source first
	Edges []entity.Edge
}

// FindPaths depth-first searches outgoing edges from fromKey to toKey,
// accumulating every simple path up to maxDepth hops, sorted shortest
// first (spec §4.4 "findPaths").
func (e *Engine) FindPaths(fromKey, toKey string, maxDepth int) []Path {
	var results []Path

	if fromKey == toKey {
		results = append(results, Path{Keys: []string{fromKey}})
	}

	visited := map[string]struct{}{fromKey: {}}

	var dfs func(current string, path []string, edges []entity.Edge)
	dfs = func(current string, path []string, edges []entity.Edge) {
		if current == toKey && len(path) > 1 {
			results = append(results, Path{
				Keys:  append([]string(nil), path...),
				Edges: append([]entity.Edge(nil), edges...),
			})
			return
		}
		if len(path)-1 >= maxDepth {
			return
		}

		ent := e.LookupByKey(current)
		if ent == nil {
			return
		}
		for _, edge := range ent.Edges {
			if _, seen := visited[edge.Target]; seen {
				continue
			}
			visited[edge.Target] = struct{}{}
			dfs(edge.Target, append(path, edge.Target), append(edges, edge))
			delete(visited, edge.Target)
		}
	}

	dfs(fromKey, []string{fromKey}, nil)

	sort.SliceStable(results, func(i, j int) bool {
		return len(results[i].Keys) < len(results[j].Keys)
	})
	return results
}
