// Package storage implements the timebase storage engine: an embedded
// time-series store holding typed measurements in a raw table and hourly
// averages in a rollup table, both backed by DuckDB.
//
// The Service type wires the components together and runs the optional
// background compression scheduler. Library consumers that need finer
// control can use the subpackages directly: series for the table stores,
// aggregate for statistics, compress for rollups, export for file dumps.
package storage
