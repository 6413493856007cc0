package entity

import "testing"

func TestFromAnyNativeRoundTrip(t *testing.T) {
	cases := []any{
		nil, true, false, "hello", float64(3.14), int(7),
		[]any{"a", float64(1), true},
		map[string]any{"x": float64(1), "y": "z"},
	}
	for _, c := range cases {
		v := FromAny(c)
		native := v.Native()
		v2 := FromAny(native)
		if !v.Equal(v2) {
			t.Errorf("round trip mismatch for %#v: got %#v then %#v", c, v, v2)
		}
	}
}

func TestValueEqual(t *testing.T) {
	if !Number(1).Equal(Number(1)) {
		t.Error("expected 1 == 1")
	}
	if Number(1).Equal(String("1")) {
		t.Error("expected number(1) != string(1)")
	}
	if !Null.Equal(Value{}) {
		t.Error("zero Value should equal Null")
	}
}

func TestValueCompareIncomparableKinds(t *testing.T) {
	_, ok := String("a").Compare(Number(1))
	if ok {
		t.Error("expected Compare to report incomparable kinds")
	}
}

func TestTotalOrderCompareMixedKinds(t *testing.T) {
	// Numbers sort before strings by kind tag (KindNumber < KindString).
	if Number(100).TotalOrderCompare(String("a")) >= 0 {
		t.Error("expected number to sort before string under TotalOrderCompare")
	}
	if String("a").TotalOrderCompare(Number(100)) <= 0 {
		t.Error("expected string to sort after number under TotalOrderCompare")
	}
}

func TestTotalOrderCompareSameKind(t *testing.T) {
	if Number(1).TotalOrderCompare(Number(2)) >= 0 {
		t.Error("expected 1 < 2")
	}
	if String("b").TotalOrderCompare(String("a")) <= 0 {
		t.Error("expected \"b\" > \"a\"")
	}
}

func TestCompositeKeyRoundTrip(t *testing.T) {
	key := CompositeKey("product", "p1")
	if key != "product:p1" {
		t.Fatalf("unexpected composite key %q", key)
	}
	typ, id, ok := SplitCompositeKey(key)
	if !ok || typ != "product" || id != "p1" {
		t.Fatalf("split failed: %q %q %v", typ, id, ok)
	}
}

func TestSplitCompositeKeyRejectsMalformed(t *testing.T) {
	cases := []string{"", "noColon", ":empty-type", "empty-id:"}
	for _, c := range cases {
		if _, _, ok := SplitCompositeKey(c); ok {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestSplitCompositeKeyOnlySplitsFirstSeparator(t *testing.T) {
	typ, id, ok := SplitCompositeKey("a:b:c")
	if !ok || typ != "a" || id != "b:c" {
		t.Fatalf("expected a:b:c to split on the first separator, got %q %q %v", typ, id, ok)
	}
}

func TestEntityNormalizeFillsNilContainers(t *testing.T) {
	e := &Entity{Type: "t", ID: "1"}
	e.Normalize()
	if e.Attributes == nil || e.Documents == nil || e.Edges == nil {
		t.Fatal("expected Normalize to fill every nil container")
	}
}

func TestEntityCloneIsIndependent(t *testing.T) {
	e := &Entity{Type: "t", ID: "1", Attributes: map[string]Value{"a": Number(1)}}
	clone := e.Clone()
	clone.Attributes["a"] = Number(2)
	if v := e.Attributes["a"]; !v.Equal(Number(1)) {
		t.Fatal("mutating the clone's attributes mutated the original")
	}
}

func TestBSONRoundTrip(t *testing.T) {
	v := Object(map[string]Value{
		"name":  String("widget"),
		"price": Number(9.99),
		"tags":  Array(String("a"), String("b")),
	})
	back := ValueFromBSON(v.ToBSON())
	if !v.Equal(back) {
		t.Fatalf("BSON round trip mismatch: %#v != %#v", v, back)
	}
}
