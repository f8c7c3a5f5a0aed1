package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/csledger/internal/changesource"
)

// classify maps a driver error onto the ledger error taxonomy.
// Foreign-key violations mean the change source was never created; context
// errors pass through untouched; everything else is a store failure.
func classify(op string, id changesource.ID, master changesource.MasterID, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return changesource.NewNotFoundError(op, id, master)
	}

	return changesource.NewStoreError(op, id, err)
}
