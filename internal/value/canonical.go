package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for journals and golden output.
//
// Encoding of slot values:
//   - Null   -> null
//   - Symbol -> "text"
//   - String -> {"string":"text"}
//   - Int    -> 42
//   - Float  -> {"float":"1.5"}
//   - List   -> [...]
//
// Plain Go strings, ints, bools, []any and map[string]any are accepted so
// callers can wrap values in ad-hoc records.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Symbol:
		return marshalCanonicalString(buf, string(val))
	case String:
		return marshalCanonicalObject(buf, map[string]any{"string": string(val)})
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		if math.IsInf(float64(val), 0) || math.IsNaN(float64(val)) {
			return fmt.Errorf("non-finite float %v has no canonical form", float64(val))
		}
		return marshalCanonicalObject(buf, map[string]any{"float": val.String()})
	case List:
		items := make([]any, len(val))
		for i, e := range val {
			items[i] = e
		}
		return marshalCanonicalArray(buf, items)
	case string:
		return marshalCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		return marshalCanonicalArray(buf, val)
	case []string:
		items := make([]any, len(val))
		for i, e := range val {
			items[i] = e
		}
		return marshalCanonicalArray(buf, items)
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	case map[string]Value:
		obj := make(map[string]any, len(val))
		for k, e := range val {
			obj[k] = e
		}
		return marshalCanonicalObject(buf, obj)
	case float32, float64:
		return fmt.Errorf("bare floats are not canonical, wrap them as value.Float: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// marshalCanonicalString writes a JSON string with NFC normalisation and
// no HTML escaping.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators undoes encoding/json's escaping of U+2028 and
// U+2029, leaving \\u2028 (an escaped backslash) untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if i+5 < len(data) && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
				(data[i+5] == '8' || data[i+5] == '9') {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalArray(buf *bytes.Buffer, items []any) error {
	buf.WriteByte('[')
	for i, e := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, e); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// compareKeysUTF16 orders keys by UTF-16 code units as RFC 8785 requires.
// Go's string comparison works on UTF-8 bytes and disagrees for
// supplementary-plane characters.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
