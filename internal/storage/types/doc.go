// Package types defines the shared data model for the timebase storage
// engine: measurements, measurement types, and series descriptors.
//
// Measurements are append-only rows of (timestamp, name, type, value). The
// value is stored as text and decoded through the codec package according to
// the declared measurement type; no other component performs type coercion.
package types
