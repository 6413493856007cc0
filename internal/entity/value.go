// Package entity holds the data model shared by every other package: the
// JSON-value sum type, the Entity/Edge/Metadata structs, and the composite
// key helpers.
package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Kind tags a Value's discriminant, following the teacher's tagged-union
// style (WAL EntryType, btree key kinds) rather than an interface-per-kind
// hierarchy, so a switch over Kind is exhaustively checkable.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the dynamic-shape scalar/JSON value used for entity attributes,
// document bodies, and edge properties (spec §9 "Dynamic-shape attributes").
// Implemented as an explicit sum type rather than `interface{}` so equality
// and ordering stay total and serialization is uniform.
type Value struct {
	Kind Kind

	boolVal   bool
	numberVal float64
	stringVal string
	arrayVal  []Value
	objectVal map[string]Value
}

// Null is the canonical null value.
var Null = Value{Kind: KindNull}

func Bool(b bool) Value   { return Value{Kind: KindBool, boolVal: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, numberVal: n} }
func String(s string) Value  { return Value{Kind: KindString, stringVal: s} }

func Array(items ...Value) Value {
	return Value{Kind: KindArray, arrayVal: items}
}

func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindObject, objectVal: m}
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) AsBool() (bool, bool)          { return v.boolVal, v.Kind == KindBool }
func (v Value) AsNumber() (float64, bool)     { return v.numberVal, v.Kind == KindNumber }
func (v Value) AsString() (string, bool)      { return v.stringVal, v.Kind == KindString }
func (v Value) AsArray() ([]Value, bool)      { return v.arrayVal, v.Kind == KindArray }
func (v Value) AsObject() (map[string]Value, bool) {
	return v.objectVal, v.Kind == KindObject
}

// FromAny lifts a Go native value (as produced by encoding/json.Unmarshal
// into interface{}, or passed directly by a caller) into a Value.
func FromAny(in any) Value {
	switch x := in.(type) {
	case nil:
		return Null
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case time.Time:
		return String(x.UTC().Format(time.RFC3339Nano))
	case []any:
		out := make([]Value, len(x))
		for i, item := range x {
			out[i] = FromAny(item)
		}
		return Array(out...)
	case []Value:
		return Array(x...)
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, item := range x {
			out[k] = FromAny(item)
		}
		return Object(out)
	case map[string]Value:
		return Object(x)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Native converts a Value back into a plain Go value suitable for
// encoding/json or for returning to a caller that wants a map[string]any.
func (v Value) Native() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.boolVal
	case KindNumber:
		return v.numberVal
	case KindString:
		return v.stringVal
	case KindArray:
		out := make([]any, len(v.arrayVal))
		for i, item := range v.arrayVal {
			out[i] = item.Native()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.objectVal))
		for k, item := range v.objectVal {
			out[k] = item.Native()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindArray:
		if len(v.arrayVal) != len(other.arrayVal) {
			return false
		}
		for i := range v.arrayVal {
			if !v.arrayVal[i].Equal(other.arrayVal[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.objectVal) != len(other.objectVal) {
			return false
		}
		for k, item := range v.objectVal {
			if o, ok := other.objectVal[k]; !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	}
	c, ok := v.Compare(other)
	return ok && c == 0
}

// Compare orders two values. ok is false when the two values have
// incomparable kinds (e.g. string vs number); callers that need a total
// order regardless (orderBy, the ordered index) fall back to comparing the
// kind tag and then the string rendering — see §9 design note on mixed-type
// ordering.
func (v Value) Compare(other Value) (int, bool) {
	if v.Kind != other.Kind {
		return 0, false
	}
	switch v.Kind {
	case KindNull:
		return 0, true
	case KindBool:
		if v.boolVal == other.boolVal {
			return 0, true
		}
		if !v.boolVal {
			return -1, true
		}
		return 1, true
	case KindNumber:
		switch {
		case v.numberVal < other.numberVal:
			return -1, true
		case v.numberVal > other.numberVal:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		switch {
		case v.stringVal < other.stringVal:
			return -1, true
		case v.stringVal > other.stringVal:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// TotalOrderCompare is a total order over any two values, used by orderBy
// and the ordered index when values may be of mixed kind. Coerces rather
// than rejecting (§9 design note).
func (v Value) TotalOrderCompare(other Value) int {
	if c, ok := v.Compare(other); ok {
		return c
	}
	if v.Kind != other.Kind {
		if v.Kind < other.Kind {
			return -1
		}
		if v.Kind > other.Kind {
			return 1
		}
		return 0
	}
	a, b := v.renderString(), other.renderString()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Value) renderString() string {
	switch v.Kind {
	case KindString:
		return v.stringVal
	default:
		b, _ := json.Marshal(v.Native())
		return string(b)
	}
}

// String renders a human-readable form, used in logs and error messages.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.stringVal
	case KindNumber:
		return fmt.Sprintf("%g", v.numberVal)
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindNull:
		return "null"
	default:
		b, _ := json.Marshal(v.Native())
		return string(b)
	}
}

// ToBSON converts a Value to a bson.RawValue-compatible native form for
// storage in column files, following the teacher's JsonToBson/BsonToJson
// round trip in pkg/storage/bson.go.
func (v Value) ToBSON() any {
	switch v.Kind {
	case KindArray:
		arr := bson.A{}
		for _, item := range v.arrayVal {
			arr = append(arr, item.ToBSON())
		}
		return arr
	case KindObject:
		doc := bson.D{}
		keys := make([]string, 0, len(v.objectVal))
		for k := range v.objectVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			doc = append(doc, bson.E{Key: k, Value: v.objectVal[k].ToBSON()})
		}
		return doc
	default:
		return v.Native()
	}
}

// ValueFromBSON is the inverse of ToBSON, used when reading column files
// back off disk.
func ValueFromBSON(raw any) Value {
	switch x := raw.(type) {
	case bson.D:
		m := make(map[string]Value, len(x))
		for _, e := range x {
			m[e.Key] = ValueFromBSON(e.Value)
		}
		return Object(m)
	case bson.A:
		out := make([]Value, len(x))
		for i, item := range x {
			out[i] = ValueFromBSON(item)
		}
		return Array(out...)
	case time.Time:
		return String(x.UTC().Format(time.RFC3339Nano))
	case bsonDateTimeLike:
		return String(x.Time().UTC().Format(time.RFC3339Nano))
	default:
		return FromAny(x)
	}
}

// bsonDateTimeLike lets ValueFromBSON special-case bson.DateTime without a
// hard dependency on its concrete type, mirroring the teacher's
// fmt.Sprintf("%T", v) == "primitive.DateTime" trick in bson.go — kept here
// as a typed interface instead of a string match.
type bsonDateTimeLike interface {
	Time() time.Time
}
