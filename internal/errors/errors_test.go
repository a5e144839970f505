package errors

import (
	"fmt"
	"testing"
)

func TestClassifiers(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
		want bool
	}{
		{ErrNotFound, IsNotFound, true},
		{ErrSeriesNotFound, IsNotFound, true},
		{NewNotFound("series", "temp1"), IsNotFound, true},
		{ErrMalformedValue, IsMalformed, true},
		{ErrInvalidType, IsMalformed, true},
		{NewMalformed("integer", "1.5"), IsMalformed, true},
		{ErrStorage, IsStorage, true},
		{ErrInvalidConfig, IsValidation, true},
		{ErrMissingField, IsValidation, true},
		{NewValidation("field", "bad"), IsValidation, true},
		{NewMissingField("name"), IsValidation, true},
		{ErrStorage, IsNotFound, false},
		{ErrNotFound, IsMalformed, false},
	}

	for _, tt := range tests {
		if got := tt.pred(tt.err); got != tt.want {
			t.Errorf("classifying %v: got %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrStorage, "open database")
	if !Is(wrapped, ErrStorage) {
		t.Error("wrapped error lost its sentinel")
	}
	if wrapped.Error() != "open database: storage error" {
		t.Errorf("message = %q", wrapped.Error())
	}

	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}

func TestWrapf_ThroughLayers(t *testing.T) {
	inner := Wrapf(ErrMalformedValue, "decode %q", "abc")
	outer := fmt.Errorf("append temp1: %w", inner)

	if !IsMalformed(outer) {
		t.Error("sentinel not visible through two wraps")
	}
}

func TestNewMalformed_Message(t *testing.T) {
	err := NewMalformed("boolean", "maybe")
	want := `cannot decode "maybe" as boolean: malformed value for declared type`
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
