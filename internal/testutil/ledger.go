package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/csledger/internal/store"
)

// OpenShared opens n stores on one database file, one per simulated master.
// The stores are closed when the test finishes.
func OpenShared(t testing.TB, n int) []*store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shared.db")
	stores := make([]*store.Store, n)
	for i := range stores {
		s, err := store.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		stores[i] = s
	}
	return stores
}
