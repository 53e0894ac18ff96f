package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

func TestNoOpCache(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	require.NoError(t, cache.SetAccount(ctx, &types.PosixAccount{UID: "jdoe", UIDNumber: 2001}))

	account, err := cache.GetAccount(ctx, "jdoe")
	require.NoError(t, err)
	assert.Nil(t, account)

	require.NoError(t, cache.SetGroup(ctx, &types.PosixGroup{CN: "staff", GIDNumber: 1500}))

	group, err := cache.GetGroup(ctx, "staff")
	require.NoError(t, err)
	assert.Nil(t, group)

	assert.NoError(t, cache.InvalidateAccount(ctx, "jdoe"))
	assert.NoError(t, cache.InvalidateGroup(ctx, "staff"))
	assert.NoError(t, cache.Close())
}
