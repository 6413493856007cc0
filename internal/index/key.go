package index

import "github.com/bobboyms/fiberdb/internal/entity"

// Key is the ordered-index key type: an entity.Value ordered with
// TotalOrderCompare so a single tree can hold keys of mixed kinds (a
// generalization of the teacher's types.Comparable, which only ever held
// one concrete Go type per tree).
type Key struct {
	Value entity.Value
}

func NewKey(v entity.Value) Key {
	return Key{Value: v}
}

// Compare orders two keys; ties broken by kind tag then string rendering
// (internal/entity.Value.TotalOrderCompare), so range scans over a column
// holding mixed-type values still produce a well-defined order.
func (k Key) Compare(other Key) int {
	return k.Value.TotalOrderCompare(other.Value)
}
