// Package codec converts measurement values between their typed form and the
// text representation stored in the value column.
//
// This is the single place where typed values cross the text-storage
// boundary. Decoding a value with its declared type and re-encoding it
// yields text that decodes to an equal value (round-trip stability), with
// the usual representation tolerance for floats.
package codec

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// Value is a decoded measurement value. Exactly one of the payload fields is
// meaningful, selected by Type.
type Value struct {
	Type types.MeasurementType

	Int   int64
	Float float64
	Bool  bool
	Str   string
	Dec   decimal.Decimal
}

// Int64Value constructs an integer value.
func Int64Value(v int64) Value {
	return Value{Type: types.TypeInteger, Int: v}
}

// FloatValue constructs a float value.
func FloatValue(v float64) Value {
	return Value{Type: types.TypeFloat, Float: v}
}

// StringValue constructs a string value.
func StringValue(v string) Value {
	return Value{Type: types.TypeString, Str: v}
}

// BoolValue constructs a boolean value.
func BoolValue(v bool) Value {
	return Value{Type: types.TypeBoolean, Bool: v}
}

// DecimalValue constructs a decimal value.
func DecimalValue(v decimal.Decimal) Value {
	return Value{Type: types.TypeDecimal, Dec: v}
}

// Decimal returns the value as an exact decimal. Only valid for numeric
// types; string and boolean values return zero.
func (v Value) Decimal() decimal.Decimal {
	switch v.Type {
	case types.TypeInteger:
		return decimal.NewFromInt(v.Int)
	case types.TypeFloat:
		return decimal.NewFromFloat(v.Float)
	case types.TypeDecimal:
		return v.Dec
	}
	return decimal.Decimal{}
}

// Float64 returns the value as a float64. Only valid for numeric types.
func (v Value) Float64() float64 {
	switch v.Type {
	case types.TypeInteger:
		return float64(v.Int)
	case types.TypeFloat:
		return v.Float
	case types.TypeDecimal:
		return v.Dec.InexactFloat64()
	}
	return 0
}

// Equal reports value equality for two decoded values of the same type.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case types.TypeInteger:
		return v.Int == other.Int
	case types.TypeFloat:
		return v.Float == other.Float
	case types.TypeBoolean:
		return v.Bool == other.Bool
	case types.TypeString:
		return v.Str == other.Str
	case types.TypeDecimal:
		return v.Dec.Equal(other.Dec)
	}
	return false
}

// Boolean tokens accepted on decode. Encoding always emits "true"/"false".
var (
	truthyTokens = map[string]bool{"true": true, "1": true, "yes": true, "on": true}
	falsyTokens  = map[string]bool{"false": true, "0": true, "no": true, "off": true}
)

// Decode parses text as a value of the declared type.
// Malformed text fails with errors.ErrMalformedValue.
func Decode(t types.MeasurementType, text string) (Value, error) {
	switch t {
	case types.TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return Value{}, errors.NewMalformed(t.String(), text)
		}
		return Int64Value(n), nil

	case types.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Value{}, errors.NewMalformed(t.String(), text)
		}
		return FloatValue(f), nil

	case types.TypeDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return Value{}, errors.NewMalformed(t.String(), text)
		}
		return DecimalValue(d), nil

	case types.TypeBoolean:
		token := strings.ToLower(strings.TrimSpace(text))
		if truthyTokens[token] {
			return BoolValue(true), nil
		}
		if falsyTokens[token] {
			return BoolValue(false), nil
		}
		return Value{}, errors.NewMalformed(t.String(), text)

	case types.TypeString:
		return StringValue(text), nil

	default:
		return Value{}, errors.Wrapf(errors.ErrInvalidType, "decode %q", t)
	}
}

// Encode renders a value as the text stored in the value column.
// The value's kind must match the declared type.
func Encode(t types.MeasurementType, v Value) (string, error) {
	if v.Type != t {
		return "", errors.Wrapf(errors.ErrMalformedValue,
			"encode %s value as %s", v.Type, t)
	}

	switch t {
	case types.TypeInteger:
		return strconv.FormatInt(v.Int, 10), nil
	case types.TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case types.TypeDecimal:
		return v.Dec.String(), nil
	case types.TypeBoolean:
		return strconv.FormatBool(v.Bool), nil
	case types.TypeString:
		return v.Str, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidType, "encode %q", t)
	}
}

// Validate checks that text decodes under the declared type.
// Used at append time so malformed input is rejected before it is stored.
func Validate(t types.MeasurementType, text string) error {
	_, err := Decode(t, text)
	return err
}
