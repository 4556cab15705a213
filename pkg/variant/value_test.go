package variant

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/marmos91/daserver/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInfersType(t *testing.T) {
	tests := []struct {
		in   any
		want Type
	}{
		{true, TypeBool},
		{int8(76), TypeI1},
		{int16(345), TypeI2},
		{int32(20196), TypeI4},
		{42, TypeI4},
		{int64(1) << 40, TypeI8},
		{uint8(23), TypeUI1},
		{uint16(39874), TypeUI2},
		{uint32(4230498), TypeUI4},
		{float32(8.123242), TypeR4},
		{83289.48243, TypeR8},
		{CurrencyFromFloat(19.8), TypeCurrency},
		{time.Now(), TypeDate},
		{"-- It's a nice day --", TypeString},
		{[]int32{1, 2, 3, 4}, ArrayOf(TypeI4)},
		{[]string{"a"}, ArrayOf(TypeString)},
	}
	for _, tt := range tests {
		v, err := New(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.Type(), "%T", tt.in)
	}
}

func TestNewRejectsUnsupported(t *testing.T) {
	_, err := New(struct{}{})
	assert.True(t, errors.IsInvalidTypeError(err))

	_, err = New(map[string]int{})
	assert.True(t, errors.IsInvalidTypeError(err))
}

func TestArraysAreCopied(t *testing.T) {
	src := []int32{1, 2, 3, 4}
	v := Must(src)
	src[0] = 99

	got := v.Interface().([]int32)
	assert.Equal(t, int32(1), got[0])

	got[1] = 77
	assert.Equal(t, []int32{1, 2, 3, 4}, v.Interface())
	assert.Equal(t, 4, v.Len())
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "r8[]", ArrayOf(TypeR8).String())
	assert.Equal(t, "cy", TypeCurrency.String())

	for _, name := range []string{"bool", "i1", "ui4", "date", "string[]"} {
		ty, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, name, ty.String())
	}
	_, err := ParseType("decimal")
	assert.Error(t, err)
	assert.False(t, TypeEmpty.Valid())
	assert.True(t, ArrayOf(TypeUI1).Valid())
}

func TestZero(t *testing.T) {
	assert.Equal(t, int32(0), Zero(TypeI4).Interface())
	assert.Equal(t, "", Zero(TypeString).Interface())
	assert.Equal(t, 0, Zero(ArrayOf(TypeR8)).Len())
	assert.True(t, Zero(TypeEmpty).IsEmpty())
}

func TestConforms(t *testing.T) {
	v := Must([]float64{1, 2, 3, 4})
	assert.True(t, v.Conforms(ArrayOf(TypeR8), 4))
	assert.False(t, v.Conforms(ArrayOf(TypeR8), 3))
	assert.True(t, v.Conforms(ArrayOf(TypeR8), -1))
	assert.False(t, Must(int32(1)).Conforms(TypeI2, -1))
}

func TestCurrency(t *testing.T) {
	c := CurrencyFromFloat(19.8)
	assert.Equal(t, Currency(198000), c)
	assert.Equal(t, "19.8000", c.String())
	assert.Equal(t, "-0.5000", CurrencyFromFloat(-0.5).String())
}

func TestOLEDate(t *testing.T) {
	d := DateFromOLE(2.5)
	assert.Equal(t, time.Date(1900, 1, 1, 12, 0, 0, 0, time.UTC), d)
	assert.InDelta(t, 2.5, DateToOLE(d), 1e-9)
}

func TestJSONRoundTripPreservesType(t *testing.T) {
	for _, v := range []Value{
		Must(uint16(39874)),
		Must(int64(math.MaxInt64)),
		Must(uint64(math.MaxUint64)),
		Must([]int64{9007199254740993, -1}),
		Must(CurrencyFromFloat(19.8)),
		Must([]uint8{1, 2, 3, 4}),
		Must(DateFromOLE(2.5)),
	} {
		b, err := json.Marshal(v)
		require.NoError(t, err)

		var back Value
		require.NoError(t, json.Unmarshal(b, &back))
		assert.True(t, v.Equal(back), "%s -> %s", v, b)
	}
}

func TestParseRangeChecks(t *testing.T) {
	_, err := Parse(TypeI1, json.RawMessage("300"))
	assert.True(t, errors.IsInvalidTypeError(err))

	_, err = Parse(TypeUI2, json.RawMessage("-1"))
	assert.True(t, errors.IsInvalidTypeError(err))

	_, err = Parse(TypeI4, json.RawMessage("1.5"))
	assert.True(t, errors.IsInvalidTypeError(err))

	for _, tc := range []struct {
		name string
		typ  Type
		raw  string
	}{
		{"i8 above max", TypeI8, "1e19"},
		{"i8 below min", TypeI8, "-9223372036854775809"},
		{"i8 fraction", TypeI8, "2.5"},
		{"ui8 above max", TypeUI8, "1e20"},
		{"ui8 negative", TypeUI8, "-1"},
		{"r4 above max", TypeR4, "1e300"},
		{"r4 below min", TypeR4, "-1e39"},
		{"currency overflow", TypeCurrency, "1e15"},
		{"empty numeric string", TypeI4, `""`},
		{"trailing data", TypeI4, "1 2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.typ, json.RawMessage(tc.raw))
			assert.True(t, errors.IsInvalidTypeError(err), "got %v", err)
		})
	}

	v8, err := Parse(TypeI8, json.RawMessage("9007199254740993"))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), v8.Interface())

	v8, err = Parse(TypeI8, json.RawMessage("-9223372036854775808"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v8.Interface())

	u8, err := Parse(TypeUI8, json.RawMessage("18446744073709551615"))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u8.Interface())

	r4, err := Parse(TypeR4, json.RawMessage("1.5"))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), r4.Interface())

	cy, err := Parse(TypeCurrency, json.RawMessage("12.3456"))
	require.NoError(t, err)
	assert.Equal(t, Currency(123456), cy.Interface())

	v, err := Parse(TypeString, json.RawMessage(`"stop"`))
	require.NoError(t, err)
	s, ok := v.Str()
	assert.True(t, ok)
	assert.Equal(t, "stop", s)

	v, err = Parse(ArrayOf(TypeI2), json.RawMessage("[1,2,3]"))
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3}, v.Interface())
}

func TestNumericAccessors(t *testing.T) {
	i, ok := Must(int16(-5)).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(-5), i)

	f, ok := Must(CurrencyFromFloat(1.25)).Float()
	assert.True(t, ok)
	assert.InDelta(t, 1.25, f, 1e-9)

	_, ok = Must("x").Int()
	assert.False(t, ok)
}
