package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csledger/internal/changesource"
)

// flakyLedger fails the first failures calls to ClaimChangeSource with a
// store error, then reports result.
type flakyLedger struct {
	failures int32
	result   changesource.ClaimResult
	claims   atomic.Int32
}

func (l *flakyLedger) FindOrCreateChangeSource(context.Context, string) (changesource.ID, error) {
	return 1, nil
}

func (l *flakyLedger) ClaimChangeSource(_ context.Context, id changesource.ID, _ changesource.MasterID) (changesource.ClaimResult, error) {
	n := l.claims.Add(1)
	if n <= l.failures {
		return 0, changesource.NewStoreError("claim change source", id, errors.New("database is locked"))
	}
	return l.result, nil
}

func (l *flakyLedger) ReleaseChangeSourceFor(context.Context, changesource.ID, changesource.MasterID) (bool, error) {
	return true, nil
}

func (l *flakyLedger) ListChangeSources(context.Context, changesource.Filter) ([]changesource.View, error) {
	return []changesource.View{}, nil
}

func TestRetry_StoreUnavailableIsRetried(t *testing.T) {
	ledger := &flakyLedger{failures: 2, result: changesource.Claimed}
	reg := newPollerRegistry()
	m := newTestManager(t, ledger, "m-alpha", reg)
	ctx := context.Background()

	require.NoError(t, m.Reconfigure(ctx, []string{"git-poller-1"}))
	require.NoError(t, m.Reconcile(ctx))

	assert.Equal(t, int32(3), ledger.claims.Load())
	assert.Equal(t, []changesource.ID{1}, m.Active())
}

func TestRetry_AlreadyClaimedIsNotRetried(t *testing.T) {
	ledger := &flakyLedger{result: changesource.AlreadyClaimed}
	m := newTestManager(t, ledger, "m-alpha", newPollerRegistry())
	ctx := context.Background()

	require.NoError(t, m.Reconfigure(ctx, []string{"git-poller-1"}))
	require.NoError(t, m.Reconcile(ctx))

	assert.Equal(t, int32(1), ledger.claims.Load())
	assert.Empty(t, m.Active())
}

func TestRetry_GivesUp(t *testing.T) {
	ledger := &flakyLedger{failures: 100, result: changesource.Claimed}
	m := newTestManager(t, ledger, "m-alpha", newPollerRegistry())
	ctx := context.Background()

	require.NoError(t, m.Reconfigure(ctx, []string{"git-poller-1"}))
	err := m.Reconcile(ctx)

	require.Error(t, err)
	assert.True(t, changesource.IsStoreUnavailable(err))
	// first attempt plus three retries
	assert.Equal(t, int32(4), ledger.claims.Load())
}
