package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csledger/internal/changesource"
	"github.com/roach88/csledger/internal/store"
)

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// mustExecute runs the root command and fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "csledger %v: %s", args, out)
	return out
}

// seedLedger registers two sources and claims both for different masters.
func seedLedger(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "ledger.db")
	mustExecute(t, "register", "--db", db, "git-poller-1", "svn-poller-2")
	mustExecute(t, "claim", "--db", db, "--master", "m-alpha", "1")
	mustExecute(t, "claim", "--db", db, "--master", "m-beta", "2")
	return db
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRegisterCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")

	out := mustExecute(t, "register", "--db", db, "git-poller-1", "svn-poller-2")
	assert.Equal(t, "1\tgit-poller-1\n2\tsvn-poller-2\n", out)

	out = mustExecute(t, "register", "--db", db, "  svn-poller-2  ", "hg-poller-3")
	assert.Equal(t, "2\tsvn-poller-2\n3\thg-poller-3\n", out, "existing names keep their id")
}

func TestRegisterCommandRejectsBlankName(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")

	out, err := execute(t, "register", "--db", db, "   ")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestClaimCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	mustExecute(t, "register", "--db", db, "git-poller-1")

	out := mustExecute(t, "claim", "--db", db, "--master", "m-alpha", "1")
	assert.Equal(t, "claimed change source 1 for m-alpha\n", out)

	t.Run("other master is refused", func(t *testing.T) {
		out, err := execute(t, "claim", "--db", db, "--master", "m-beta", "1")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E102]: change source 1 is owned by m-alpha")
	})

	t.Run("owner is refused too", func(t *testing.T) {
		_, err := execute(t, "claim", "--db", db, "--master", "m-alpha", "1")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		out, err := execute(t, "claim", "--db", db, "--master", "m-alpha", "42")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E101]")
	})

	t.Run("malformed id", func(t *testing.T) {
		out, err := execute(t, "claim", "--db", db, "--master", "m-alpha", "abc")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E003]")
	})
}

func TestClaimCommandJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	mustExecute(t, "register", "--db", db, "git-poller-1")

	out := mustExecute(t, "--format", "json", "claim", "--db", db, "--master", "m-alpha", "1")
	assert.JSONEq(t, `{"status":"ok","data":{"id":1,"master":"m-alpha","result":"claimed"}}`, out)

	out, err := execute(t, "--format", "json", "claim", "--db", db, "--master", "m-beta", "1")
	require.Error(t, err)
	assert.Contains(t, out, `"code":"E102"`)
	assert.Contains(t, out, `"changesource_id":1`)
}

func TestReleaseCommand(t *testing.T) {
	db := seedLedger(t)

	t.Run("wrong master", func(t *testing.T) {
		out, err := execute(t, "release", "--db", db, "--master", "m-alpha", "2")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [E103]: change source 2 is not owned by m-alpha")
		assert.Equal(t, "m-beta\n", mustExecute(t, "owner", "--db", db, "2"))
	})

	t.Run("owning master", func(t *testing.T) {
		out := mustExecute(t, "release", "--db", db, "--master", "m-beta", "2")
		assert.Equal(t, "released change source 2\n", out)
		assert.Equal(t, "-\n", mustExecute(t, "owner", "--db", db, "2"))
	})

	t.Run("unconditional", func(t *testing.T) {
		mustExecute(t, "release", "--db", db, "1")
		assert.Equal(t, "-\n", mustExecute(t, "owner", "--db", db, "1"))
	})

	t.Run("idempotent", func(t *testing.T) {
		mustExecute(t, "release", "--db", db, "1")
		mustExecute(t, "release", "--db", db, "99")
	})
}

func TestOwnerCommandJSON(t *testing.T) {
	db := seedLedger(t)

	out := mustExecute(t, "--format", "json", "owner", "--db", db, "1")
	assert.JSONEq(t, `{"status":"ok","data":{"id":1,"owner":"m-alpha"}}`, out)

	out = mustExecute(t, "--format", "json", "owner", "--db", db, "7")
	assert.JSONEq(t, `{"status":"ok","data":{"id":7}}`, out)
}

func TestLedgerCommandsStoreUnavailable(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing", "dir", "ledger.db")

	out, err := execute(t, "list", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestLedgerCommandsRequireDatabase(t *testing.T) {
	_, err := execute(t, "owner", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestKnownOwner(t *testing.T) {
	db := seedLedger(t)
	ctx := context.Background()

	st, err := store.Open(db)
	require.NoError(t, err)
	assert.Equal(t, changesource.MasterID("m-alpha"), knownOwner(ctx, st, 1))
	assert.Equal(t, changesource.MasterID(""), knownOwner(ctx, st, 9), "unowned ids have no owner")

	require.NoError(t, st.Close())
	assert.Equal(t, changesource.MasterID(""), knownOwner(ctx, st, 1), "failed lookups must not name an owner")
}
