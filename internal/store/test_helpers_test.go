package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/csledger/internal/changesource"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openMasters opens n independent stores on one database file, one per
// simulated master process.
func openMasters(t *testing.T, n int) []*Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shared.db")
	stores := make([]*Store, n)
	for i := range stores {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() master %d failed: %v", i, err)
		}
		t.Cleanup(func() { s.Close() })
		stores[i] = s
	}
	return stores
}

// mustCreate registers a change source and fails the test on error.
func mustCreate(t *testing.T, s *Store, name string) changesource.ID {
	t.Helper()
	id, err := s.FindOrCreateChangeSource(context.Background(), name)
	if err != nil {
		t.Fatalf("FindOrCreateChangeSource(%q) failed: %v", name, err)
	}
	return id
}

// mustClaim claims a change source and fails the test unless it succeeds.
func mustClaim(t *testing.T, s *Store, id changesource.ID, master changesource.MasterID) {
	t.Helper()
	res, err := s.ClaimChangeSource(context.Background(), id, master)
	if err != nil {
		t.Fatalf("ClaimChangeSource(%d, %q) failed: %v", id, master, err)
	}
	if res != changesource.Claimed {
		t.Fatalf("ClaimChangeSource(%d, %q) = %v, want claimed", id, master, res)
	}
}

// countRows returns the number of rows in a table.
func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return count
}

// getTableColumns returns column names for a table.
func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			t.Fatalf("scan table_info failed: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}
