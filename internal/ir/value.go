package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the property values a program can declare.
// Only Null, String, Int, Float, Bool, Array and Object implement it.
//
// A nil Value is treated exactly like Null: it marshals to JSON null and
// IsNull reports true for it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents a declared null (or an absent optional field).
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string value. References are strings beginning with "@".
type String string

func (String) value() {}

// Int represents an integer literal.
type Int int64

func (Int) value() {}

// Float represents a decimal literal.
//
// Floats always serialize with a fractional part or exponent ("1.0", not "1")
// so a saved IR reloads with the same Int/Float split.
type Float float64

func (Float) value() {}

// MarshalJSON implements json.Marshaler for Float.
func (f Float) MarshalJSON() ([]byte, error) {
	s, err := formatFloat(float64(f))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Bool represents a boolean literal.
type Bool bool

func (Bool) value() {}

// Array represents an ordered sequence of values.
type Array []Value

func (Array) value() {}

// Field is one key/value pair of an Object.
type Field struct {
	Key   string
	Value Value
}

// Object represents a string-keyed mapping of values that keeps the order
// its keys were declared in. JSON and text output follow that order; only
// canonical marshaling sorts (see SortedKeys).
//
// Keys are unique: build objects with Set, or with literals that do not
// repeat a key.
type Object []Field

func (Object) value() {}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// AsString returns the string held by v, if v is a String.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsInt returns v as an int64 if it is an Int, or a Float with no
// fractional part.
func AsInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Float:
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

// AsFloat returns v as a float64 if it is numeric.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// Get returns the value stored under key, or nil when the key is absent.
func (obj Object) Get(key string) Value {
	if i := obj.index(key); i >= 0 {
		return obj[i].Value
	}
	return nil
}

// Lookup returns the value stored under key and whether it was present.
func (obj Object) Lookup(key string) (Value, bool) {
	if i := obj.index(key); i >= 0 {
		return obj[i].Value, true
	}
	return nil, false
}

// Has reports whether key is present in obj.
func (obj Object) Has(key string) bool {
	return obj.index(key) >= 0
}

// Set stores v under key. A key already present keeps its position.
func (obj *Object) Set(key string, v Value) {
	if i := obj.index(key); i >= 0 {
		(*obj)[i].Value = v
		return
	}
	*obj = append(*obj, Field{Key: key, Value: v})
}

// Keys returns the keys in declaration order.
func (obj Object) Keys() []string {
	keys := make([]string, len(obj))
	for i, f := range obj {
		keys[i] = f.Key
	}
	return keys
}

func (obj Object) index(key string) int {
	for i, f := range obj {
		if f.Key == key {
			return i
		}
	}
	return -1
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some runes differently.
func (obj Object) SortedKeys() []string {
	keys := obj.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for Object, keeping declaration
// order. This is not canonical marshaling; use MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range obj {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, f.Key)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", f.Key, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		var buf bytes.Buffer
		writeJSONString(&buf, string(val))
		return buf.Bytes(), nil
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		return val.MarshalJSON()
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Object. Keys keep their
// document order; a repeated key keeps its first position and last value.
func (obj *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*obj = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	out := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("object key %q: %w", key, err)
		}
		val, err := unmarshalValue(raw)
		if err != nil {
			return fmt.Errorf("object key %q: %w", key, err)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*obj = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(Array, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// UnmarshalValue deserializes any JSON document into a Value.
// Numbers with a fractional part or exponent become Float, all others Int.
func UnmarshalValue(data []byte) (Value, error) {
	return unmarshalValue(bytes.TrimSpace(data))
}

func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var arr Array
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return numberValue(n)
	}
}

func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// FromAny converts plain Go data (as produced by encoding/json or yaml.v3)
// into a Value. Values that already implement Value pass through. Go maps
// carry no order, so their keys are taken in sorted order.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return numberValue(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, 0, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			conv, err := FromAny(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj = append(obj, Field{Key: k, Value: conv})
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// formatFloat renders f so that it always reads back as a Float.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported float value: %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}
