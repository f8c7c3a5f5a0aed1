package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/csledger/internal/changesource"
)

// ClaimChangeSource attempts to make master the sole owner of id.
//
// The claim is one INSERT against the changesource_id primary key. If any
// master already owns the source, including master itself, the store
// rejects the row and the result is changesource.AlreadyClaimed. That
// outcome is authoritative; the method never retries.
//
// Returns an error matching changesource.ErrNotFound if id was never
// created, and changesource.ErrStoreUnavailable for driver failures.
func (s *Store) ClaimChangeSource(ctx context.Context, id changesource.ID, master changesource.MasterID) (changesource.ClaimResult, error) {
	if master == "" {
		return 0, fmt.Errorf("claim change source %d: master id is empty", id)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO changesource_masters (changesource_id, master_id)
		VALUES (?, ?)
		ON CONFLICT(changesource_id) DO NOTHING
	`, id, string(master))
	if err != nil {
		return 0, classify("claim change source", id, master, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, classify("claim change source: rows affected", id, master, err)
	}

	if rowsAffected == 0 {
		return changesource.AlreadyClaimed, nil
	}
	return changesource.Claimed, nil
}

// ReleaseChangeSource deletes any ownership record for id.
//
// It does not check who the current owner is. Only the owning master or a
// reaper that has established the owner is dead may call it; masters
// releasing their own sources should use ReleaseChangeSourceFor.
// Releasing an unowned or unknown id is a no-op.
func (s *Store) ReleaseChangeSource(ctx context.Context, id changesource.ID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM changesource_masters
		WHERE changesource_id = ?
	`, id)
	if err != nil {
		return classify("release change source", id, "", err)
	}
	return nil
}

// ReleaseChangeSourceFor deletes the ownership record for id only if master
// is the current owner. Reports whether a record was deleted.
func (s *Store) ReleaseChangeSourceFor(ctx context.Context, id changesource.ID, master changesource.MasterID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM changesource_masters
		WHERE changesource_id = ? AND master_id = ?
	`, id, string(master))
	if err != nil {
		return false, classify("release change source", id, master, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classify("release change source: rows affected", id, master, err)
	}
	return rowsAffected > 0, nil
}

// ChangeSourceOwner returns the master currently owning id.
// The boolean is false when the source is unowned.
func (s *Store) ChangeSourceOwner(ctx context.Context, id changesource.ID) (changesource.MasterID, bool, error) {
	var master string
	err := s.db.QueryRowContext(ctx, `
		SELECT master_id FROM changesource_masters
		WHERE changesource_id = ?
	`, id).Scan(&master)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("read change source owner", id, "", err)
	}
	return changesource.MasterID(master), true, nil
}
