package variant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/marmos91/daserver/pkg/errors"
)

type wireValue struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": "<name>", "value": <payload>}.
// Currency is written as a decimal number and dates as RFC 3339.
func (v Value) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(v.jsonPayload())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.typ, Value: payload})
}

func (v Value) jsonPayload() any {
	switch x := v.v.(type) {
	case Currency:
		return x.Float64()
	case []Currency:
		out := make([]float64, len(x))
		for i, c := range x {
			out[i] = c.Float64()
		}
		return out
	case []uint8:
		// keep byte arrays as numbers rather than base64
		out := make([]uint16, len(x))
		for i, b := range x {
			out[i] = uint16(b)
		}
		return out
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	}
	return v.v
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Type == TypeEmpty {
		*v = Empty
		return nil
	}
	parsed, err := Parse(w.Type, w.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes a bare JSON payload as a value of type t. Numbers are range
// checked against the target type.
func Parse(t Type, raw json.RawMessage) (Value, error) {
	if !t.Valid() {
		return Empty, errors.NewInvalidTypeError("unsupported data type "+t.String(), "")
	}
	if t.IsArray() {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return Empty, errors.NewInvalidTypeError("expected JSON array for "+t.String(), "")
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			ev, err := Parse(t.Elem(), e)
			if err != nil {
				return Empty, err
			}
			out[i] = ev.v
		}
		return fromElems(t.Elem(), out), nil
	}

	x, err := decodeScalar(raw)
	if err != nil {
		return Empty, errors.NewInvalidTypeError(err.Error(), "")
	}
	return Coerce(t, x)
}

// decodeScalar keeps numbers as json.Number so 64-bit integers survive
// decoding unchanged.
func decodeScalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after value")
	}
	return x, nil
}

// Bounds of the 64-bit integer types as exact float64 values.
const (
	twoTo63 = 1 << 63
	twoTo64 = 1 << 64
)

// Coerce converts a decoded JSON scalar (bool, json.Number, float64, string)
// to type t. Values that do not fit t exactly fail with InvalidType.
func Coerce(t Type, x any) (Value, error) {
	bad := func() (Value, error) {
		return Empty, errors.NewInvalidTypeError(fmt.Sprintf("cannot convert %v (%T) to %s", x, x, t), "")
	}

	switch t {
	case TypeBool:
		b, ok := x.(bool)
		if !ok {
			return bad()
		}
		return Value{t, b}, nil
	case TypeString:
		s, ok := x.(string)
		if !ok {
			return bad()
		}
		return Value{t, s}, nil
	case TypeDate:
		switch d := x.(type) {
		case string:
			ts, err := time.Parse(time.RFC3339Nano, d)
			if err != nil {
				return bad()
			}
			return Value{t, ts}, nil
		case json.Number:
			f, err := d.Float64()
			if err != nil {
				return bad()
			}
			return Value{t, DateFromOLE(f)}, nil
		case float64:
			return Value{t, DateFromOLE(d)}, nil
		}
		return bad()
	}

	var (
		f      float64
		text   string
		isText bool
	)
	switch n := x.(type) {
	case float64:
		f = n
	case json.Number:
		text, isText = n.String(), true
	case string:
		text, isText = n, true
	default:
		return bad()
	}
	if isText {
		switch t {
		case TypeI8:
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return Value{t, i}, nil
			}
		case TypeUI8:
			if u, err := strconv.ParseUint(text, 10, 64); err == nil {
				return Value{t, u}, nil
			}
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return bad()
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return bad()
	}

	switch t {
	case TypeR4:
		if math.Abs(f) > math.MaxFloat32 {
			return bad()
		}
		return Value{t, float32(f)}, nil
	case TypeR8:
		return Value{t, f}, nil
	case TypeCurrency:
		scaled := math.Round(f * currencyScale)
		if scaled < -twoTo63 || scaled >= twoTo63 {
			return bad()
		}
		return Value{t, Currency(scaled)}, nil
	}

	if f != math.Trunc(f) {
		return bad()
	}
	switch t {
	case TypeI1:
		if f < math.MinInt8 || f > math.MaxInt8 {
			return bad()
		}
		return Value{t, int8(f)}, nil
	case TypeI2:
		if f < math.MinInt16 || f > math.MaxInt16 {
			return bad()
		}
		return Value{t, int16(f)}, nil
	case TypeI4:
		if f < math.MinInt32 || f > math.MaxInt32 {
			return bad()
		}
		return Value{t, int32(f)}, nil
	case TypeI8:
		if f < -twoTo63 || f >= twoTo63 {
			return bad()
		}
		return Value{t, int64(f)}, nil
	case TypeUI1:
		if f < 0 || f > math.MaxUint8 {
			return bad()
		}
		return Value{t, uint8(f)}, nil
	case TypeUI2:
		if f < 0 || f > math.MaxUint16 {
			return bad()
		}
		return Value{t, uint16(f)}, nil
	case TypeUI4:
		if f < 0 || f > math.MaxUint32 {
			return bad()
		}
		return Value{t, uint32(f)}, nil
	case TypeUI8:
		if f < 0 || f >= twoTo64 {
			return bad()
		}
		return Value{t, uint64(f)}, nil
	}
	return bad()
}

func fromElems(t Type, elems []any) Value {
	switch t {
	case TypeBool:
		return Value{ArrayOf(t), collect[bool](elems)}
	case TypeI1:
		return Value{ArrayOf(t), collect[int8](elems)}
	case TypeI2:
		return Value{ArrayOf(t), collect[int16](elems)}
	case TypeI4:
		return Value{ArrayOf(t), collect[int32](elems)}
	case TypeI8:
		return Value{ArrayOf(t), collect[int64](elems)}
	case TypeUI1:
		return Value{ArrayOf(t), collect[uint8](elems)}
	case TypeUI2:
		return Value{ArrayOf(t), collect[uint16](elems)}
	case TypeUI4:
		return Value{ArrayOf(t), collect[uint32](elems)}
	case TypeUI8:
		return Value{ArrayOf(t), collect[uint64](elems)}
	case TypeR4:
		return Value{ArrayOf(t), collect[float32](elems)}
	case TypeR8:
		return Value{ArrayOf(t), collect[float64](elems)}
	case TypeCurrency:
		return Value{ArrayOf(t), collect[Currency](elems)}
	case TypeDate:
		return Value{ArrayOf(t), collect[time.Time](elems)}
	default:
		return Value{ArrayOf(TypeString), collect[string](elems)}
	}
}

func collect[T any](elems []any) []T {
	out := make([]T, len(elems))
	for i, e := range elems {
		out[i] = e.(T)
	}
	return out
}
