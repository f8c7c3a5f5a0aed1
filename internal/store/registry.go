package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/csledger/internal/changesource"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FindOrCreateChangeSource returns the ID of the change source with the given
// name, creating the identity row if none exists yet.
//
// The name is normalized first (see changesource.NormalizeName). Lookup
// pre-filters on the name fingerprint and then compares the exact name, so a
// fingerprint collision can never return another source's ID.
//
// Concurrent first-time calls with the same name converge on one row: the
// insert uses ON CONFLICT(name) DO NOTHING and the loser re-reads the
// winner's ID inside the same transaction.
func (s *Store) FindOrCreateChangeSource(ctx context.Context, name string) (changesource.ID, error) {
	name, err := changesource.NormalizeName(name)
	if err != nil {
		return 0, fmt.Errorf("find or create change source: %w", err)
	}
	fingerprint := changesource.Fingerprint(name)

	// Fast path: most names already exist
	id, found, err := lookupChangeSource(ctx, s.db, name, fingerprint)
	if err != nil {
		return 0, classify("find change source", 0, "", err)
	}
	if found {
		return id, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("create change source: begin tx", 0, "", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO changesources (name, name_fingerprint)
		VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, fingerprint)
	if err != nil {
		return 0, classify("create change source: insert", 0, "", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, classify("create change source: rows affected", 0, "", err)
	}

	if rowsAffected > 0 {
		lastID, err := result.LastInsertId()
		if err != nil {
			return 0, classify("create change source: last insert id", 0, "", err)
		}
		id = changesource.ID(lastID)
	} else {
		// Lost the race - another master inserted the same name first
		id, found, err = lookupChangeSource(ctx, tx, name, fingerprint)
		if err != nil {
			return 0, classify("create change source: select existing", 0, "", err)
		}
		if !found {
			return 0, fmt.Errorf("create change source %q: conflict without existing row", name)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("create change source: commit", id, "", err)
	}

	return id, nil
}

// ChangeSourceIdentity returns the identity row for id.
// Returns an error matching changesource.ErrNotFound if it does not exist.
func (s *Store) ChangeSourceIdentity(ctx context.Context, id changesource.ID) (changesource.Identity, error) {
	var ident changesource.Identity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, name_fingerprint
		FROM changesources
		WHERE id = ?
	`, id).Scan(&ident.ID, &ident.Name, &ident.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return changesource.Identity{}, changesource.NewNotFoundError("read identity", id, "")
	}
	if err != nil {
		return changesource.Identity{}, classify("read identity", id, "", err)
	}
	return ident, nil
}

// lookupChangeSource finds an identity by fingerprint, confirming exact name equality.
func lookupChangeSource(ctx context.Context, q querier, name, fingerprint string) (changesource.ID, bool, error) {
	var id changesource.ID
	err := q.QueryRowContext(ctx, `
		SELECT id FROM changesources
		WHERE name_fingerprint = ? AND name = ?
	`, fingerprint, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
