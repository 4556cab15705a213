// Package variant holds the canonical data types of item values and
// condition attributes, and the immutable Value that carries them.
package variant

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Type is a canonical data type tag. Array types carry ArrayFlag on top of
// their element type.
type Type uint16

const (
	TypeEmpty Type = iota
	TypeBool
	TypeI1
	TypeI2
	TypeI4
	TypeI8
	TypeUI1
	TypeUI2
	TypeUI4
	TypeUI8
	TypeR4
	TypeR8
	TypeCurrency
	TypeDate
	TypeString

	typeCount
)

// ArrayFlag marks a fixed-length array of the element type.
const ArrayFlag Type = 0x1000

var typeNames = [...]string{
	TypeEmpty:    "empty",
	TypeBool:     "bool",
	TypeI1:       "i1",
	TypeI2:       "i2",
	TypeI4:       "i4",
	TypeI8:       "i8",
	TypeUI1:      "ui1",
	TypeUI2:      "ui2",
	TypeUI4:      "ui4",
	TypeUI8:      "ui8",
	TypeR4:       "r4",
	TypeR8:       "r8",
	TypeCurrency: "cy",
	TypeDate:     "date",
	TypeString:   "string",
}

// ArrayOf returns the array type whose elements are t.
func ArrayOf(t Type) Type { return t.Elem() | ArrayFlag }

func (t Type) IsArray() bool { return t&ArrayFlag != 0 }

// Elem returns the element type of an array type, or t itself.
func (t Type) Elem() Type { return t &^ ArrayFlag }

// Valid reports whether t is a supported non-empty type.
func (t Type) Valid() bool {
	e := t.Elem()
	return e > TypeEmpty && e < typeCount && t&^(ArrayFlag|0xff) == 0
}

func (t Type) String() string {
	e := t.Elem()
	if e >= typeCount || t&^(ArrayFlag|0xff) != 0 {
		return fmt.Sprintf("type(%d)", uint16(t))
	}
	if t.IsArray() {
		return typeNames[e] + "[]"
	}
	return typeNames[e]
}

// ParseType parses the names produced by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	array := strings.HasSuffix(s, "[]")
	s = strings.TrimSuffix(s, "[]")
	for i, n := range typeNames {
		if n == s && Type(i) != TypeEmpty {
			if array {
				return ArrayOf(Type(i)), nil
			}
			return Type(i), nil
		}
	}
	return TypeEmpty, fmt.Errorf("unknown data type %q", s)
}

// MarshalText lets Type appear as its name in JSON and YAML.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Currency is a fixed-point amount with four implied decimal places.
type Currency int64

const currencyScale = 10000

// CurrencyFromFloat rounds f to the nearest representable amount.
func CurrencyFromFloat(f float64) Currency {
	return Currency(math.Round(f * currencyScale))
}

func (c Currency) Float64() float64 { return float64(c) / currencyScale }

func (c Currency) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%04d", sign, v/currencyScale, v%currencyScale)
}

// oleEpoch is day zero of the automation date format (fractional days).
var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// DateFromOLE converts a fractional-day automation date to a time.
func DateFromOLE(days float64) time.Time {
	whole := math.Floor(days)
	frac := days - whole
	return oleEpoch.AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(24*time.Hour)))
}

// DateToOLE is the inverse of DateFromOLE.
func DateToOLE(t time.Time) float64 {
	return t.UTC().Sub(oleEpoch).Hours() / 24
}
