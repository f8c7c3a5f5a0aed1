package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csledger/internal/changesource"
)

func TestOpenShared_StoresSeeEachOther(t *testing.T) {
	stores := OpenShared(t, 2)
	ctx := context.Background()

	id, err := stores[0].FindOrCreateChangeSource(ctx, "git-poller-1")
	require.NoError(t, err)
	result, err := stores[0].ClaimChangeSource(ctx, id, "m-alpha")
	require.NoError(t, err)
	require.Equal(t, changesource.Claimed, result)

	owner, ok, err := stores[1].ChangeSourceOwner(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, changesource.MasterID("m-alpha"), owner)
}
