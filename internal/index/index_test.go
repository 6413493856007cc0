package index

import (
	"sort"
	"testing"

	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

func sortedStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}

func TestOrderedInsertLookupRemove(t *testing.T) {
	o := NewOrdered()
	o.Insert(NewKey(entity.Number(10)), "a")
	o.Insert(NewKey(entity.Number(10)), "b")
	o.Insert(NewKey(entity.Number(20)), "c")

	got := sortedStrings(o.Lookup(NewKey(entity.Number(10))))
	want := []string{"a", "b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Lookup(10) = %v, want %v", got, want)
	}

	if !o.Remove(NewKey(entity.Number(10)), "a") {
		t.Fatal("expected Remove to report removal of an existing id")
	}
	got = o.Lookup(NewKey(entity.Number(10)))
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("after removing a, Lookup(10) = %v, want [b]", got)
	}
}

func TestOrderedRangeScanAscendingWithBounds(t *testing.T) {
	o := NewOrdered()
	for i := 0; i < 50; i++ {
		o.Insert(NewKey(entity.Number(float64(i))), string(rune('a'+i%26)))
	}

	var seen []float64
	o.RangeScan(NewKey(entity.Number(10)), true, NewKey(entity.Number(20)), true, func(k Key, id string) bool {
		n, _ := k.Value.AsNumber()
		seen = append(seen, n)
		return true
	})

	if len(seen) != 11 {
		t.Fatalf("expected 11 keys in [10,20], got %d: %v", len(seen), seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("RangeScan did not return keys in ascending order: %v", seen)
		}
	}
	if seen[0] != 10 || seen[len(seen)-1] != 20 {
		t.Fatalf("expected bounds [10,20] to be inclusive, got first=%v last=%v", seen[0], seen[len(seen)-1])
	}
}

func TestOrderedRangeScanStopsWhenVisitReturnsFalse(t *testing.T) {
	o := NewOrdered()
	for i := 0; i < 10; i++ {
		o.Insert(NewKey(entity.Number(float64(i))), "id")
	}
	count := 0
	o.RangeScan(Key{}, false, Key{}, false, func(k Key, id string) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Fatalf("expected RangeScan to stop after visit returns false, got %d visits", count)
	}
}

func TestHashInsertLookupRemove(t *testing.T) {
	h := NewHash()
	h.Insert(entity.String("active"), "p1")
	h.Insert(entity.String("active"), "p2")
	h.Insert(entity.String("inactive"), "p3")

	got := sortedStrings(h.Lookup(entity.String("active")))
	if len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Fatalf("Lookup(active) = %v", got)
	}

	h.Remove(entity.String("active"), "p1")
	got = h.Lookup(entity.String("active"))
	if len(got) != 1 || got[0] != "p2" {
		t.Fatalf("after Remove, Lookup(active) = %v, want [p2]", got)
	}
}

func TestHashLookupAnyUnionsValues(t *testing.T) {
	h := NewHash()
	h.Insert(entity.String("a"), "1")
	h.Insert(entity.String("b"), "2")
	h.Insert(entity.String("c"), "3")

	got := sortedStrings(h.LookupAny([]entity.Value{entity.String("a"), entity.String("c")}))
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("LookupAny = %v", got)
	}
}

func TestHashExistsReturnsEveryIndexedID(t *testing.T) {
	h := NewHash()
	h.Insert(entity.String("a"), "1")
	h.Insert(entity.Number(5), "2")
	got := sortedStrings(h.Exists())
	if len(got) != 2 {
		t.Fatalf("Exists() = %v, want 2 ids", got)
	}
}

func TestInvertedTokenizeLowercasesAndSplits(t *testing.T) {
	toks := Tokenize("Hello, World! 123")
	want := []string{"hello", "world", "123"}
	if len(toks) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", toks, want)
		}
	}
}

func TestInvertedContainsAndRemove(t *testing.T) {
	idx := NewInverted()
	idx.Insert("A sleek wireless mouse", "p1")
	idx.Insert("A mechanical keyboard", "p2")

	got := sortedStrings(idx.Contains("wireless mouse"))
	if len(got) != 1 || got[0] != "p1" {
		t.Fatalf("Contains(wireless mouse) = %v, want [p1]", got)
	}

	idx.Remove("A sleek wireless mouse", "p1")
	got = idx.Contains("wireless")
	if len(got) != 0 {
		t.Fatalf("expected Contains to return nothing after Remove, got %v", got)
	}
}

func TestManagerFindCandidatesReturnsFalseWhenNothingIndexable(t *testing.T) {
	m := NewManager()
	where := &queryspec.Where{Attributes: map[string]queryspec.Predicate{
		"totally_unindexed_field": queryspec.Bare("x"),
	}}
	ids, ok := m.FindCandidates(where)
	if ok || ids != nil {
		t.Fatalf("expected (nil, false) when no predicate is indexable, got (%v, %v)", ids, ok)
	}
}

func TestManagerFindCandidatesIntersectsAcrossFields(t *testing.T) {
	m := NewManager()
	e1 := &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
		"status":   entity.String("active"),
	}}
	e2 := &entity.Entity{Type: "product", ID: "p2", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
		"status":   entity.String("inactive"),
	}}
	e1.Normalize()
	e2.Normalize()
	m.DeclareField("category")
	m.IndexEntity(e1)
	m.IndexEntity(e2)

	where := &queryspec.Where{Attributes: map[string]queryspec.Predicate{
		"category": queryspec.Bare("electronics"),
		"status":   queryspec.Bare("active"),
	}}
	ids, ok := m.FindCandidates(where)
	if !ok {
		t.Fatal("expected FindCandidates to report indexable predicates")
	}
	if len(ids) != 1 || ids[0] != e1.CompositeKey() {
		t.Fatalf("FindCandidates = %v, want [%s]", ids, e1.CompositeKey())
	}
}

func TestManagerRemoveEntityDropsAllContributions(t *testing.T) {
	m := NewManager()
	e := &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"status": entity.String("active"),
	}}
	e.Normalize()
	m.IndexEntity(e)
	m.RemoveEntity(e)

	where := &queryspec.Where{Attributes: map[string]queryspec.Predicate{
		"status": queryspec.Bare("active"),
	}}
	ids, ok := m.FindCandidates(where)
	if ok && len(ids) != 0 {
		t.Fatalf("expected no candidates after RemoveEntity, got %v", ids)
	}
}

func TestManagerRangePredicateUsesOrderedIndex(t *testing.T) {
	m := NewManager()
	m.DeclareField("price")
	for i, id := range []string{"p1", "p2", "p3"} {
		e := &entity.Entity{Type: "product", ID: id, Attributes: map[string]entity.Value{
			"price": entity.Number(float64((i + 1) * 100)),
		}}
		e.Normalize()
		m.IndexEntity(e)
	}

	where := &queryspec.Where{Attributes: map[string]queryspec.Predicate{
		"price": queryspec.WithOp(queryspec.OpGte, 200.0),
	}}
	ids, ok := m.FindCandidates(where)
	if !ok {
		t.Fatal("expected range predicate to be indexable")
	}
	got := sortedStrings(ids)
	if len(got) != 2 || got[0] != "product:p2" || got[1] != "product:p3" {
		t.Fatalf("FindCandidates(price >= 200) = %v", got)
	}
}
