package types

import (
	"fmt"
	"strings"
	"time"
)

// MeasurementType declares how a measurement's text value is interpreted.
type MeasurementType string

const (
	TypeInteger MeasurementType = "integer"
	TypeFloat   MeasurementType = "float"
	TypeString  MeasurementType = "string"
	TypeBoolean MeasurementType = "boolean"
	TypeDecimal MeasurementType = "decimal"
)

// ParseMeasurementType parses a measurement type name (case-insensitive).
func ParseMeasurementType(s string) (MeasurementType, error) {
	switch MeasurementType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeInteger:
		return TypeInteger, nil
	case TypeFloat:
		return TypeFloat, nil
	case TypeString:
		return TypeString, nil
	case TypeBoolean:
		return TypeBoolean, nil
	case TypeDecimal:
		return TypeDecimal, nil
	default:
		return "", fmt.Errorf("unknown measurement type %q", s)
	}
}

// Valid reports whether t is one of the five declared types.
func (t MeasurementType) Valid() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeString, TypeBoolean, TypeDecimal:
		return true
	}
	return false
}

// IsNumeric reports whether t participates in numeric aggregation.
// Only numeric series are compressible to hourly averages.
func (t MeasurementType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeDecimal:
		return true
	}
	return false
}

// String returns the type name as stored in the type column.
func (t MeasurementType) String() string {
	return string(t)
}

// Measurement represents a single stored sample of a named series.
//
// Rows are append-only: once written they are never mutated. The hourly
// rollup table shares this shape with the added invariant that Timestamp is
// truncated to the start of an hour and (Name, Timestamp) is unique.
type Measurement struct {
	ID        int64
	Name      string
	Type      MeasurementType
	Value     string
	Timestamp time.Time
}

// HourBucket returns the UTC hour bucket this measurement falls into.
func (m *Measurement) HourBucket() time.Time {
	return m.Timestamp.UTC().Truncate(time.Hour)
}

// SeriesInfo identifies one logical series: its name and declared type.
type SeriesInfo struct {
	Name string
	Type MeasurementType
}
