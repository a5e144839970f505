package series

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xtxerr/timebase/internal/errors"
	"github.com/xtxerr/timebase/internal/storage/codec"
	"github.com/xtxerr/timebase/internal/storage/store"
	"github.com/xtxerr/timebase/internal/storage/types"
)

// Hourly is the rollup table store. It exposes the same operation set as the
// raw store plus the idempotent upsert the compressor writes through.
type Hourly struct {
	*Store
}

// NewHourly creates the store over the hourly rollup table.
func NewHourly(st *store.Store, opts ...Option) *Hourly {
	return &Hourly{Store: New(st, store.TableHourly, opts...)}
}

// UpsertHourlyAverage writes the averaged value for one (name, hour bucket)
// pair. If a row already exists for the pair its value is replaced,
// otherwise a row is inserted; calling it twice with the same inputs leaves
// the table in the same observable state as calling it once.
//
// hourStart is normalized to UTC and truncated to the start of its hour; a
// unique index on (name, ts) backs the update-then-insert sequence, which
// runs in a single transaction.
func (h *Hourly) UpsertHourlyAverage(ctx context.Context, name string, hourStart time.Time, typ types.MeasurementType, value string) error {
	if name == "" {
		return errors.NewMissingField("name")
	}
	if !typ.Valid() {
		return errors.Wrapf(errors.ErrInvalidType, "%q", typ)
	}
	if err := codec.Validate(typ, value); err != nil {
		return err
	}

	hour := hourStart.UTC().Truncate(time.Hour)

	return h.st.TransactionContext(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE hourly_measurements SET type = ?, value = ? WHERE name = ? AND ts = ?`,
			typ.String(), value, name, hour)
		if err != nil {
			return fmt.Errorf("upsert %s@%s: %v: %w", name, hour, err, errors.ErrStorage)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("upsert %s@%s: %v: %w", name, hour, err, errors.ErrStorage)
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO hourly_measurements (name, type, value, ts) VALUES (?, ?, ?, ?)`,
			name, typ.String(), value, hour)
		if err != nil {
			return fmt.Errorf("upsert %s@%s: %v: %w", name, hour, err, errors.ErrStorage)
		}
		return nil
	})
}
