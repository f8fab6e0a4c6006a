// Package model defines the document shapes the editor works with.
//
// A Document is an identifier plus an ordered list of fields. Every field
// holds a Value, a tagged union whose Kind decides how the field is rendered
// as text and how edited text is turned back into a stored value.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindNull is a missing or null value.
	KindNull Kind = iota
	// KindNumber is an integer or floating point number.
	KindNumber
	// KindText is a string.
	KindText
	// KindStructured is a nested object (bson.D) or list (bson.A).
	KindStructured
	// KindExtended is a BSON scalar with no plain text form: booleans,
	// dates, object ids, binary, decimal128 and friends.
	KindExtended
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	case KindExtended:
		return "extended"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Width is the stored BSON type of a number.
type Width int

const (
	// Int32 is a BSON int32.
	Int32 Width = iota
	// Int64 is a BSON int64.
	Int64
	// Double is a BSON double.
	Double
)

// Number holds an integer or a floating point value together with its stored width.
type Number struct {
	Width Width
	Int   int64
	Float float64
}

// IsFloat reports whether the number is stored as a double.
func (n Number) IsFloat() bool {
	return n.Width == Double
}

// Value is a tagged union over the field types a document can hold.
// Only the payload matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Number Number
	Text   string
	// Tree is a bson.D or bson.A for KindStructured, or the raw BSON scalar for KindExtended.
	Tree interface{}
}

// Null returns a null value.
func Null() Value {
	return Value{Kind: KindNull}
}

// Text returns a text value.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Int returns an integer value. Values that fit in 32 bits are stored as int32.
func Int(i int64) Value {
	w := Int64
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		w = Int32
	}
	return Value{Kind: KindNumber, Number: Number{Width: w, Int: i}}
}

// IntWidth returns an integer value with an explicit width.
func IntWidth(i int64, w Width) Value {
	return Value{Kind: KindNumber, Number: Number{Width: w, Int: i}}
}

// Float returns a double value.
func Float(f float64) Value {
	return Value{Kind: KindNumber, Number: Number{Width: Double, Float: f}}
}

// Structured returns a structured value. Maps are converted to bson.D with sorted keys.
func Structured(tree interface{}) Value {
	return Value{Kind: KindStructured, Tree: normalizeTree(tree)}
}

// Extended wraps a BSON scalar that has no native text form.
func Extended(raw interface{}) Value {
	return Value{Kind: KindExtended, Tree: raw}
}

// FromBSON classifies a decoded BSON value.
func FromBSON(v interface{}) Value {
	switch t := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return Null()
	case int32:
		return IntWidth(int64(t), Int32)
	case int64:
		return IntWidth(t, Int64)
	case int:
		return IntWidth(int64(t), Int64)
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case string:
		return Text(t)
	case bson.D, bson.M, bson.A, map[string]interface{}, []interface{}:
		return Structured(t)
	default:
		return Extended(v)
	}
}

// ToBSON returns the value in the form the driver stores.
func (v Value) ToBSON() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindNumber:
		switch v.Number.Width {
		case Int32:
			return int32(v.Number.Int)
		case Int64:
			return v.Number.Int
		default:
			return v.Number.Float
		}
	case KindText:
		return v.Text
	default:
		return v.Tree
	}
}

// IsObject reports whether a structured value holds an object.
func (v Value) IsObject() bool {
	_, ok := v.Tree.(bson.D)
	return v.Kind == KindStructured && ok
}

// IsArray reports whether a structured value holds a list.
func (v Value) IsArray() bool {
	_, ok := v.Tree.(bson.A)
	return v.Kind == KindStructured && ok
}

// Equal compares two values. Structured and extended payloads are compared
// through their relaxed Extended JSON form, so integer widths inside a tree
// do not matter.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}

	switch v.Kind {
	case KindNull:
		return true
	case KindNumber:
		if v.Number.IsFloat() != other.Number.IsFloat() {
			return false
		}
		if v.Number.IsFloat() {
			return v.Number.Float == other.Number.Float ||
				(math.IsNaN(v.Number.Float) && math.IsNaN(other.Number.Float))
		}
		return v.Number.Int == other.Number.Int
	case KindText:
		return v.Text == other.Text
	default:
		a, errA := MarshalRelaxed(v.Tree)
		b, errB := MarshalRelaxed(other.Tree)
		if errA != nil || errB != nil {
			return false
		}
		return bytes.Equal(a, b)
	}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	if v.Kind != KindStructured {
		// Scalars and extended values are immutable once decoded
		return v
	}
	data, err := MarshalRelaxed(v.Tree)
	if err != nil {
		return v
	}
	tree, err := UnmarshalRelaxed(data)
	if err != nil {
		return v
	}
	return Value{Kind: KindStructured, Tree: tree}
}

// MarshalRelaxed renders a single value as compact relaxed Extended JSON.
func MarshalRelaxed(v interface{}) ([]byte, error) {
	// The driver only marshals documents at the top level, so the value is
	// wrapped in a one-field document and the wrapper is cut away again.
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return nil, err
	}
	const prefix = `{"v":`
	if !bytes.HasPrefix(data, []byte(prefix)) || !bytes.HasSuffix(data, []byte("}")) {
		return nil, fmt.Errorf("unexpected extended json envelope: %s", data)
	}
	return data[len(prefix) : len(data)-1], nil
}

// UnmarshalRelaxed parses a single relaxed Extended JSON value.
// Objects come back as bson.D and lists as bson.A.
func UnmarshalRelaxed(data []byte) (interface{}, error) {
	// Trailing text after the value would otherwise close the wrapper early.
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid extended json: %q", truncate(data, 64))
	}
	wrapped := make([]byte, 0, len(data)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, data...)
	wrapped = append(wrapped, '}')

	var doc bson.D
	if err := bson.UnmarshalExtJSON(wrapped, false, &doc); err != nil {
		return nil, err
	}
	if len(doc) != 1 || doc[0].Key != "v" {
		return nil, fmt.Errorf("expected a single value")
	}
	return normalizeTree(doc[0].Value), nil
}

// normalizeTree converts maps to bson.D with sorted keys and slices to bson.A, recursively.
func normalizeTree(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: normalizeTree(e.Value)}
		}
		return out
	case bson.M:
		return sortedDoc(t)
	case map[string]interface{}:
		return sortedDoc(t)
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = normalizeTree(e)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = normalizeTree(e)
		}
		return out
	default:
		return v
	}
}

func sortedDoc(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: normalizeTree(m[k])})
	}
	return out
}

func truncate(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	return data[:n]
}
