package index

import (
	"sync"

	"github.com/bobboyms/fiberdb/internal/entity"
)

// Hash is an equality/membership index: O(1) lookups for $eq, $in, and
// $exists predicates (spec §4.3 "Hash" index variant). New code — the
// teacher has no bare hash-index analogue, its only index structure is the
// B+Tree — grounded on the same map+mutex idiom the teacher uses for its
// registries (pkg/storage/transaction_manager.go).
type Hash struct {
	mu      sync.RWMutex
	buckets map[string]map[string]struct{} // rendered value -> set of entity ids
}

func NewHash() *Hash {
	return &Hash{buckets: make(map[string]map[string]struct{})}
}

func bucketKey(v entity.Value) string {
	return v.Kind.String() + ":" + v.String()
}

func (h *Hash) Insert(v entity.Value, id string) {
	key := bucketKey(v)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.buckets[key]
	if !ok {
		set = make(map[string]struct{})
		h.buckets[key] = set
	}
	set[id] = struct{}{}
}

func (h *Hash) Remove(v entity.Value, id string) {
	key := bucketKey(v)
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.buckets[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(h.buckets, key)
	}
}

// Lookup returns every id recorded against exactly v.
func (h *Hash) Lookup(v entity.Value) []string {
	key := bucketKey(v)
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.buckets[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// LookupAny unions the id sets for every value in vs, implementing $in.
func (h *Hash) LookupAny(vs []entity.Value) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, v := range vs {
		set, ok := h.buckets[bucketKey(v)]
		if !ok {
			continue
		}
		for id := range set {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Exists returns every id that has any value recorded at all, implementing
// $exists:true.
func (h *Hash) Exists() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, set := range h.buckets {
		for id := range set {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}
