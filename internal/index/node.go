package index

import (
	"sort"
	"sync"
)

// node is a B+Tree node generalized from the teacher's pkg/btree/node.go:
// instead of one int64 data pointer per key, each leaf key carries a
// postings set (the composite ids of every entity whose column value
// equals that key), since secondary-index keys are rarely unique.
type node struct {
	t        int
	keys     []Key
	postings [][]string // parallel to keys, leaf only
	children []*node
	leaf     bool
	n        int
	next     *node // leaf chain, for ordered range scans
	mu       sync.RWMutex
}

func newNode(t int, leaf bool) *node {
	return &node{
		t:        t,
		leaf:     leaf,
		keys:     make([]Key, 0, 2*t-1),
		postings: make([][]string, 0, 2*t-1),
		children: make([]*node, 0, 2*t),
	}
}

func (n *node) Lock() {
	if n != nil {
		n.mu.Lock()
	}
}

func (n *node) Unlock() {
	if n != nil {
		n.mu.Unlock()
	}
}

func (n *node) RLock() {
	if n != nil {
		n.mu.RLock()
	}
}

func (n *node) RUnlock() {
	if n != nil {
		n.mu.RUnlock()
	}
}

func (n *node) isFull() bool {
	return n.n == 2*n.t-1
}

func (n *node) findLeafLowerBound(key Key) (*node, int) {
	i := sort.Search(n.n, func(i int) bool {
		return n.keys[i].Compare(key) >= 0
	})
	if n.leaf {
		return n, i
	}
	return n.children[i].findLeafLowerBound(key)
}

// upsertNonFull inserts id into the postings for key (creating the key if
// absent), assuming the tree already guaranteed curr is not full
// (preventive split, mirroring the teacher's UpsertNonFull).
func (n *node) upsertNonFull(key Key, id string) {
	if n.leaf {
		idx := sort.Search(n.n, func(j int) bool {
			return n.keys[j].Compare(key) >= 0
		})

		if idx < n.n && n.keys[idx].Compare(key) == 0 {
			n.postings[idx] = appendUnique(n.postings[idx], id)
			return
		}

		n.keys = append(n.keys, Key{})
		n.postings = append(n.postings, nil)
		copy(n.keys[idx+1:], n.keys[idx:])
		copy(n.postings[idx+1:], n.postings[idx:])

		n.keys[idx] = key
		n.postings[idx] = []string{id}
		n.n++
		return
	}

	i := n.n - 1
	for i >= 0 && key.Compare(n.keys[i]) < 0 {
		i--
	}
	i++

	if n.children[i].isFull() {
		n.splitChild(i)
		if key.Compare(n.keys[i]) >= 0 {
			i++
		}
	}
	n.children[i].upsertNonFull(key, id)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func (n *node) splitChild(i int) {
	t := n.t
	y := n.children[i]
	z := newNode(t, y.leaf)

	if y.leaf {
		mid := t - 1
		z.n = y.n - mid
		z.keys = append(z.keys, y.keys[mid:]...)
		z.postings = append(z.postings, y.postings[mid:]...)

		y.keys = y.keys[:mid]
		y.postings = y.postings[:mid]
		y.n = mid

		z.next = y.next
		y.next = z
	} else {
		mid := t - 1
		z.n = t - 1
		z.keys = append(z.keys, y.keys[mid+1:]...)
		z.children = append(z.children, y.children[mid+1:]...)

		upKey := y.keys[mid]

		y.keys = y.keys[:mid]
		y.children = y.children[:mid+1]
		y.n = mid

		n.keys = append(n.keys, Key{})
		copy(n.keys[i+1:], n.keys[i:])
		n.keys[i] = upKey

		n.children = append(n.children, nil)
		copy(n.children[i+2:], n.children[i+1:])
		n.children[i+1] = z
		n.n++
		return
	}

	n.keys = append(n.keys, Key{})
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = z.keys[0]

	n.children = append(n.children, nil)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = z
	n.n++
}

// removeID removes id from key's postings, deleting the key entirely if
// that empties it. Unlike the teacher's structural remove, this tree never
// merges/borrows underflowing nodes: after many deletes nodes may be left
// underfull, and separator keys in internal nodes are left in place.
func (n *node) removeID(key Key, id string) bool {
	if n.leaf {
		idx := sort.Search(n.n, func(i int) bool {
			return n.keys[i].Compare(key) >= 0
		})
		if idx >= n.n || n.keys[idx].Compare(key) != 0 {
			return false
		}
		ids := n.postings[idx]
		for i, existing := range ids {
			if existing == id {
				ids = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
			n.postings = append(n.postings[:idx], n.postings[idx+1:]...)
			n.n--
		} else {
			n.postings[idx] = ids
		}
		return true
	}

	idx := sort.Search(n.n, func(i int) bool {
		return n.keys[i].Compare(key) >= 0
	})
	childIdx := idx
	if idx < n.n && n.keys[idx].Compare(key) == 0 {
		childIdx = idx + 1
	}
	return n.children[childIdx].removeID(key, id)
}
