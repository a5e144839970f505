package store

import (
	"database/sql"
	"fmt"
)

// Migrate bootstraps the measurement tables.
//
// This is idempotent - safe to run multiple times. The unique index on
// hourly_measurements (name, ts) backs the compressor's upsert contract:
// at most one rollup row per series and hour bucket.
func Migrate(db *sql.DB) error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "measurements_id_seq",
			sql:  `CREATE SEQUENCE IF NOT EXISTS measurements_id_seq`,
		},
		{
			name: "hourly_measurements_id_seq",
			sql:  `CREATE SEQUENCE IF NOT EXISTS hourly_measurements_id_seq`,
		},
		{
			name: "measurements",
			sql: `CREATE TABLE IF NOT EXISTS measurements (
				id BIGINT PRIMARY KEY DEFAULT nextval('measurements_id_seq'),
				name VARCHAR NOT NULL,
				type VARCHAR NOT NULL,
				value VARCHAR,
				ts TIMESTAMP NOT NULL
			)`,
		},
		{
			name: "hourly_measurements",
			sql: `CREATE TABLE IF NOT EXISTS hourly_measurements (
				id BIGINT PRIMARY KEY DEFAULT nextval('hourly_measurements_id_seq'),
				name VARCHAR NOT NULL,
				type VARCHAR NOT NULL,
				value VARCHAR,
				ts TIMESTAMP NOT NULL
			)`,
		},
		{
			name: "measurements.name_ts",
			sql:  `CREATE INDEX IF NOT EXISTS measurements_name_ts ON measurements (name, ts)`,
		},
		{
			name: "hourly_measurements.name_ts",
			sql:  `CREATE UNIQUE INDEX IF NOT EXISTS hourly_measurements_name_ts ON hourly_measurements (name, ts)`,
		},
	}

	for _, m := range migrations {
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("migrate %s: %w", m.name, err)
		}
	}

	return nil
}
