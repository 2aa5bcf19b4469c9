package ir

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Stringify renders a value the way templates and text transforms print it.
// Strings are returned verbatim; scalars use their literal spelling; arrays
// and objects are rendered as single-line JSON (see Inline).
func Stringify(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		s, err := formatFloat(float64(val))
		if err != nil {
			return strconv.FormatFloat(float64(val), 'g', -1, 64)
		}
		return s
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		return Inline(v)
	}
}

// Inline renders v as single-line JSON with ", " between elements and ": "
// between keys and values. Object keys keep their declaration order.
func Inline(v Value) string {
	var buf bytes.Buffer
	writeInline(&buf, v)
	return buf.String()
}

func writeInline(buf *bytes.Buffer, v Value) {
	switch val := v.(type) {
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeInline(buf, elem)
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeJSONString(buf, f.Key)
			buf.WriteString(": ")
			writeInline(buf, f.Value)
		}
		buf.WriteByte('}')
	case String:
		writeJSONString(buf, string(val))
	default:
		b, err := MarshalValue(v)
		if err != nil {
			buf.WriteString("null")
			return
		}
		buf.Write(b)
	}
}

func writeJSONString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
}

// Indent renders v as JSON indented by two spaces, without HTML escaping.
func Indent(v Value) (string, error) {
	raw, err := MarshalValue(v)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// encodeJSON marshals v without HTML escaping and without the trailing
// newline json.Encoder appends.
func encodeJSON(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
