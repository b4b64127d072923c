package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface over the slot value variants.
type Value interface {
	value()
	String() string
}

// Ordered is implemented by values with a native three-way ordering.
// CompareTo returns an error when other is not comparable with the receiver.
type Ordered interface {
	Value
	CompareTo(other Value) (int, error)
}

// Null is the absent value of an unset slot.
type Null struct{}

func (Null) value() {}

func (Null) String() string { return "nil" }

// Symbol is an interned-style atom such as TRUE, FALSE or red.
type Symbol string

func (Symbol) value() {}

func (s Symbol) String() string { return string(s) }

// CompareTo orders symbols lexically. Symbols only compare with symbols.
func (s Symbol) CompareTo(other Value) (int, error) {
	o, ok := other.(Symbol)
	if !ok {
		return 0, fmt.Errorf("symbol %s is not comparable with %s", s, Describe(other))
	}
	return strings.Compare(string(s), string(o)), nil
}

// String is a quoted string value.
type String string

func (String) value() {}

func (s String) String() string { return strconv.Quote(string(s)) }

// CompareTo orders strings lexically. Strings only compare with strings.
func (s String) CompareTo(other Value) (int, error) {
	o, ok := other.(String)
	if !ok {
		return 0, fmt.Errorf("string %s is not comparable with %s", s, Describe(other))
	}
	return strings.Compare(string(s), string(o)), nil
}

// Int is a 64-bit integer value.
type Int int64

func (Int) value() {}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a 64-bit floating point value.
type Float float64

func (Float) value() {}

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// List is a multislot value.
type List []Value

func (List) value() {}

func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Canonical symbols.
var (
	True  = Symbol("TRUE")
	False = Symbol("FALSE")
	Nil   = Null{}
)

// Bool converts a Go bool into TRUE or FALSE.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsFalse reports whether v is the canonical FALSE symbol.
func IsFalse(v Value) bool {
	s, ok := v.(Symbol)
	return ok && s == False
}

// IsNumeric reports whether v is an Int or a Float.
func IsNumeric(v Value) bool {
	switch v.(type) {
	case Int, Float:
		return true
	}
	return false
}

// AsFloat returns the numeric value of an Int or Float.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// Describe renders a value together with its kind for diagnostics.
func Describe(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", v.String(), KindOf(v))
}

// KindOf names the variant of v.
func KindOf(v Value) string {
	switch v.(type) {
	case Null:
		return "null"
	case Symbol:
		return "symbol"
	case String:
		return "string"
	case Int:
		return "integer"
	case Float:
		return "float"
	case List:
		return "list"
	}
	return fmt.Sprintf("%T", v)
}

// Equal reports structural equality. Variants never compare equal across
// kinds, so Int(1) and Float(1) are different values.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Symbol:
		y, ok := b.(Symbol)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Key returns a type-tagged encoding of v. Equal values share a key.
func Key(v Value) string {
	var b strings.Builder
	writeKey(&b, v)
	return b.String()
}

func writeKey(b *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil, Null:
		b.WriteString("n:")
	case Symbol:
		b.WriteString("y:")
		b.WriteString(strconv.Quote(string(x)))
	case String:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(string(x)))
	case Int:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		b.WriteString("f:")
		f := float64(x)
		if f == 0 {
			f = 0 // -0 equals +0
		}
		if math.IsNaN(f) {
			b.WriteString("NaN")
		} else {
			b.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
		}
	case List:
		b.WriteString("l:[")
		for i, e := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, e)
		}
		b.WriteByte(']')
	default:
		fmt.Fprintf(b, "?:%T", v)
	}
}

// FromGo converts a decoded YAML or JSON scalar into a Value.
// Strings become symbols unless wrapped in double quotes.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Nil, nil
	case Value:
		return x, nil
	case string:
		if len(x) >= 2 && strings.HasPrefix(x, `"`) && strings.HasSuffix(x, `"`) {
			return String(x[1 : len(x)-1]), nil
		}
		return Symbol(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		return Int(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(x), nil
	case []any:
		l := make(List, len(x))
		for i, e := range x {
			ev, err := FromGo(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l[i] = ev
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
