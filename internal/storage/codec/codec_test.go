package codec

import (
	"math"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/storage/types"
)

func TestDecode_Integer(t *testing.T) {
	tests := []struct {
		text    string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"-7", -7, false},
		{"0", 0, false},
		{" 15 ", 15, false},
		{"9223372036854775807", math.MaxInt64, false},
		{"-9223372036854775808", math.MinInt64, false},
		{"3.14", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"9223372036854775808", 0, true}, // overflow
	}

	for _, tt := range tests {
		v, err := Decode(types.TypeInteger, tt.text)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Decode(integer, %q): expected error", tt.text)
			} else if !errors.IsMalformed(err) {
				t.Errorf("Decode(integer, %q): error is not ErrMalformedValue: %v", tt.text, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Decode(integer, %q): %v", tt.text, err)
			continue
		}
		if v.Int != tt.want {
			t.Errorf("Decode(integer, %q) = %d, want %d", tt.text, v.Int, tt.want)
		}
	}
}

func TestDecode_Float(t *testing.T) {
	tests := []struct {
		text    string
		want    float64
		wantErr bool
	}{
		{"3.14", 3.14, false},
		{"-0.5", -0.5, false},
		{"42", 42, false},
		{"1e10", 1e10, false},
		{"not-a-number", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		v, err := Decode(types.TypeFloat, tt.text)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Decode(float, %q): expected error", tt.text)
			}
			continue
		}
		if err != nil {
			t.Errorf("Decode(float, %q): %v", tt.text, err)
			continue
		}
		if v.Float != tt.want {
			t.Errorf("Decode(float, %q) = %v, want %v", tt.text, v.Float, tt.want)
		}
	}
}

func TestDecode_Boolean(t *testing.T) {
	truthy := []string{"true", "True", "TRUE", "1", "yes", "YES", "on", " on "}
	falsy := []string{"false", "False", "0", "no", "off", "OFF"}
	bad := []string{"", "2", "maybe", "truthy", "-1"}

	for _, text := range truthy {
		v, err := Decode(types.TypeBoolean, text)
		if err != nil {
			t.Errorf("Decode(boolean, %q): %v", text, err)
			continue
		}
		if !v.Bool {
			t.Errorf("Decode(boolean, %q) = false, want true", text)
		}
	}
	for _, text := range falsy {
		v, err := Decode(types.TypeBoolean, text)
		if err != nil {
			t.Errorf("Decode(boolean, %q): %v", text, err)
			continue
		}
		if v.Bool {
			t.Errorf("Decode(boolean, %q) = true, want false", text)
		}
	}
	for _, text := range bad {
		if _, err := Decode(types.TypeBoolean, text); !errors.IsMalformed(err) {
			t.Errorf("Decode(boolean, %q): expected ErrMalformedValue, got %v", text, err)
		}
	}
}

func TestDecode_Decimal(t *testing.T) {
	v, err := Decode(types.TypeDecimal, "10.123456789012345678901234567890")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want, _ := decimal.NewFromString("10.123456789012345678901234567890")
	if !v.Dec.Equal(want) {
		t.Errorf("decimal precision lost: got %s, want %s", v.Dec, want)
	}

	if _, err := Decode(types.TypeDecimal, "nope"); !errors.IsMalformed(err) {
		t.Errorf("expected ErrMalformedValue, got %v", err)
	}
}

func TestDecode_String(t *testing.T) {
	// Strings pass through untouched, including whitespace and
	// numeric-looking text.
	for _, text := range []string{"hello", "", "  padded  ", "42", "true"} {
		v, err := Decode(types.TypeString, text)
		if err != nil {
			t.Errorf("Decode(string, %q): %v", text, err)
			continue
		}
		if v.Str != text {
			t.Errorf("Decode(string, %q) = %q", text, v.Str)
		}
	}
}

func TestDecode_InvalidType(t *testing.T) {
	if _, err := Decode(types.MeasurementType("blob"), "x"); !errors.Is(err, errors.ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		typ  types.MeasurementType
		text string
	}{
		{types.TypeInteger, "42"},
		{types.TypeInteger, "-9223372036854775808"},
		{types.TypeFloat, "3.14"},
		{types.TypeFloat, "-0.001"},
		{types.TypeBoolean, "true"},
		{types.TypeBoolean, "false"},
		{types.TypeString, "hello world"},
		{types.TypeDecimal, "19.99"},
		{types.TypeDecimal, "-0.000000000000000001"},
	}

	for _, tt := range tests {
		v, err := Decode(tt.typ, tt.text)
		if err != nil {
			t.Errorf("Decode(%s, %q): %v", tt.typ, tt.text, err)
			continue
		}
		text, err := Encode(tt.typ, v)
		if err != nil {
			t.Errorf("Encode(%s): %v", tt.typ, err)
			continue
		}
		v2, err := Decode(tt.typ, text)
		if err != nil {
			t.Errorf("re-Decode(%s, %q): %v", tt.typ, text, err)
			continue
		}
		if !v.Equal(v2) {
			t.Errorf("round trip changed value: %q -> %q", tt.text, text)
		}
	}
}

func TestEncode_TypeMismatch(t *testing.T) {
	if _, err := Encode(types.TypeInteger, FloatValue(1.5)); err == nil {
		t.Error("expected error encoding float value as integer")
	}
}

func TestEncode_FloatPrecision(t *testing.T) {
	// 'g' with -1 precision emits the shortest text that parses back to
	// the same float64.
	for _, f := range []float64{0.1, 1.0 / 3.0, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		text, err := Encode(types.TypeFloat, FloatValue(f))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		back, err := strconv.ParseFloat(text, 64)
		if err != nil {
			t.Fatalf("ParseFloat(%q): %v", text, err)
		}
		if back != f {
			t.Errorf("float round trip: %v -> %q -> %v", f, text, back)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(types.TypeInteger, "17"); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := Validate(types.TypeInteger, "17.5"); !errors.IsMalformed(err) {
		t.Errorf("expected ErrMalformedValue, got %v", err)
	}
}

func TestValue_Decimal(t *testing.T) {
	if got := Int64Value(7).Decimal(); !got.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Int64Value(7).Decimal() = %s", got)
	}
	if got := FloatValue(2.5).Decimal(); !got.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("FloatValue(2.5).Decimal() = %s", got)
	}
	if got := StringValue("x").Decimal(); !got.IsZero() {
		t.Errorf("StringValue.Decimal() = %s, want zero", got)
	}
}
