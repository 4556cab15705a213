package variant

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/daserver/pkg/errors"
)

// Value is an immutable typed value. Array payloads are copied on the way in
// and on the way out so no caller can mutate a stored value.
type Value struct {
	typ Type
	v   any
}

// Empty is the value with no type.
var Empty = Value{}

// New infers the canonical type from a Go value. Supported: bool, int8,
// int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64,
// Currency, time.Time, string and slices of those. Plain int maps to i4 when
// it fits.
func New(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Empty, nil
	case Value:
		return v, nil
	case bool:
		return Value{TypeBool, v}, nil
	case int8:
		return Value{TypeI1, v}, nil
	case int16:
		return Value{TypeI2, v}, nil
	case int32:
		return Value{TypeI4, v}, nil
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return Value{TypeI8, int64(v)}, nil
		}
		return Value{TypeI4, int32(v)}, nil
	case int64:
		return Value{TypeI8, v}, nil
	case uint8:
		return Value{TypeUI1, v}, nil
	case uint16:
		return Value{TypeUI2, v}, nil
	case uint32:
		return Value{TypeUI4, v}, nil
	case uint64:
		return Value{TypeUI8, v}, nil
	case float32:
		return Value{TypeR4, v}, nil
	case float64:
		return Value{TypeR8, v}, nil
	case Currency:
		return Value{TypeCurrency, v}, nil
	case time.Time:
		return Value{TypeDate, v}, nil
	case string:
		return Value{TypeString, v}, nil
	case []bool:
		return array(TypeBool, v), nil
	case []int8:
		return array(TypeI1, v), nil
	case []int16:
		return array(TypeI2, v), nil
	case []int32:
		return array(TypeI4, v), nil
	case []int64:
		return array(TypeI8, v), nil
	case []uint8:
		return array(TypeUI1, v), nil
	case []uint16:
		return array(TypeUI2, v), nil
	case []uint32:
		return array(TypeUI4, v), nil
	case []uint64:
		return array(TypeUI8, v), nil
	case []float32:
		return array(TypeR4, v), nil
	case []float64:
		return array(TypeR8, v), nil
	case []Currency:
		return array(TypeCurrency, v), nil
	case []time.Time:
		return array(TypeDate, v), nil
	case []string:
		return array(TypeString, v), nil
	default:
		return Empty, errors.NewInvalidTypeError(fmt.Sprintf("unsupported value type %T", x), "")
	}
}

// Must is New for values known to be valid at compile time.
func Must(x any) Value {
	v, err := New(x)
	if err != nil {
		panic(err)
	}
	return v
}

func array[T any](t Type, s []T) Value {
	c := make([]T, len(s))
	copy(c, s)
	return Value{ArrayOf(t), c}
}

// Zero returns the zero value of t. Array types yield an empty array.
func Zero(t Type) Value {
	if t.IsArray() {
		return Value{t, reflect.MakeSlice(reflect.SliceOf(scalarGoType(t.Elem())), 0, 0).Interface()}
	}
	switch t {
	case TypeBool:
		return Value{t, false}
	case TypeI1:
		return Value{t, int8(0)}
	case TypeI2:
		return Value{t, int16(0)}
	case TypeI4:
		return Value{t, int32(0)}
	case TypeI8:
		return Value{t, int64(0)}
	case TypeUI1:
		return Value{t, uint8(0)}
	case TypeUI2:
		return Value{t, uint16(0)}
	case TypeUI4:
		return Value{t, uint32(0)}
	case TypeUI8:
		return Value{t, uint64(0)}
	case TypeR4:
		return Value{t, float32(0)}
	case TypeR8:
		return Value{t, float64(0)}
	case TypeCurrency:
		return Value{t, Currency(0)}
	case TypeDate:
		return Value{t, oleEpoch}
	case TypeString:
		return Value{t, ""}
	default:
		return Empty
	}
}

func scalarGoType(t Type) reflect.Type {
	switch t {
	case TypeBool:
		return reflect.TypeOf(false)
	case TypeI1:
		return reflect.TypeOf(int8(0))
	case TypeI2:
		return reflect.TypeOf(int16(0))
	case TypeI4:
		return reflect.TypeOf(int32(0))
	case TypeI8:
		return reflect.TypeOf(int64(0))
	case TypeUI1:
		return reflect.TypeOf(uint8(0))
	case TypeUI2:
		return reflect.TypeOf(uint16(0))
	case TypeUI4:
		return reflect.TypeOf(uint32(0))
	case TypeUI8:
		return reflect.TypeOf(uint64(0))
	case TypeR4:
		return reflect.TypeOf(float32(0))
	case TypeR8:
		return reflect.TypeOf(float64(0))
	case TypeCurrency:
		return reflect.TypeOf(Currency(0))
	case TypeDate:
		return reflect.TypeOf(time.Time{})
	default:
		return reflect.TypeOf("")
	}
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsEmpty() bool { return v.typ == TypeEmpty }

// Len returns the element count of an array value, or -1 for scalars.
func (v Value) Len() int {
	if !v.typ.IsArray() {
		return -1
	}
	return reflect.ValueOf(v.v).Len()
}

// Interface returns the Go value. Arrays are returned as a fresh copy.
func (v Value) Interface() any {
	if !v.typ.IsArray() {
		return v.v
	}
	rv := reflect.ValueOf(v.v)
	c := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(c, rv)
	return c.Interface()
}

// Int returns integer scalars (including bool as 0/1) widened to int64.
func (v Value) Int() (int64, bool) {
	switch x := v.v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// Float returns numeric scalars as float64.
func (v Value) Float() (float64, bool) {
	switch x := v.v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case Currency:
		return x.Float64(), true
	case time.Time:
		return DateToOLE(x), true
	}
	if i, ok := v.Int(); ok {
		return float64(i), true
	}
	return 0, false
}

// Str returns the string payload of a string value.
func (v Value) Str() (string, bool) {
	s, ok := v.v.(string)
	return s, ok && v.typ == TypeString
}

// Equal reports whether both values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	if v.typ == TypeDate {
		return v.v.(time.Time).Equal(o.v.(time.Time))
	}
	return reflect.DeepEqual(v.v, o.v)
}

// Conforms reports whether v can be stored where t is declared. Arrays must
// also keep length n when n >= 0.
func (v Value) Conforms(t Type, n int) bool {
	if v.typ != t {
		return false
	}
	return n < 0 || !t.IsArray() || v.Len() == n
}

func (v Value) String() string {
	switch x := v.v.(type) {
	case nil:
		return "<empty>"
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	if v.typ.IsArray() {
		rv := reflect.ValueOf(v.v)
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Must(rv.Index(i).Interface()).String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return fmt.Sprint(v.v)
}
