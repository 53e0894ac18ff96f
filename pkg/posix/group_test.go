package posix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/logger"
	"github.com/dirigo-idm/dirigo/pkg/metrics"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

func setupTestResolver(t *testing.T) (*PrimaryGroupResolver, *mockDirectory) {
	dir := &mockDirectory{}
	log := logger.NewTestLogger()
	alloc := NewIDAllocator(dir, log, metrics.NewTestMetrics())
	return NewPrimaryGroupResolver(dir, alloc, log), dir
}

func TestResolveSelectExisting(t *testing.T) {
	resolver, dir := setupTestResolver(t)
	ctx := context.Background()

	dir.On("GroupExists", ctx, 1500).Return(true, nil)

	resolved, err := resolver.Resolve(ctx, types.GroupModeSelectExisting, intPtr(1500), false, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, 1500, resolved.GIDNumber)
	assert.False(t, resolved.CreateGroup)
	assert.False(t, resolved.Personal)
}

func TestResolveSelectExistingMissingGID(t *testing.T) {
	resolver, dir := setupTestResolver(t)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, types.GroupModeSelectExisting, nil, false, "jdoe")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingField))
	dir.AssertNotCalled(t, "GroupExists", mock.Anything, mock.Anything)
}

func TestResolveSelectExistingNotFound(t *testing.T) {
	resolver, dir := setupTestResolver(t)
	ctx := context.Background()

	dir.On("GroupExists", ctx, 1500).Return(false, nil)

	_, err := resolver.Resolve(ctx, types.GroupModeSelectExisting, intPtr(1500), false, "jdoe")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGroupNotFound))
}

func TestResolveCreatePersonal(t *testing.T) {
	resolver, dir := setupTestResolver(t)
	ctx := context.Background()

	dir.On("SuggestNextGID", ctx).Return(2010, nil)

	resolved, err := resolver.Resolve(ctx, types.GroupModeCreatePersonal, nil, false, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, 2010, resolved.GIDNumber)
	assert.True(t, resolved.CreateGroup)
	assert.Equal(t, "jdoe", resolved.CN)
	assert.True(t, resolved.Personal)
}

func TestResolveCreatePersonalExplicitGID(t *testing.T) {
	resolver, dir := setupTestResolver(t)
	ctx := context.Background()

	dir.On("GIDNumberInUse", ctx, 4000).Return(false, nil)

	resolved, err := resolver.Resolve(ctx, types.GroupModeCreatePersonal, intPtr(4000), false, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, 4000, resolved.GIDNumber)
	assert.Equal(t, "jdoe", resolved.CN)
}

func TestResolveCreatePersonalGIDConflict(t *testing.T) {
	resolver, dir := setupTestResolver(t)
	ctx := context.Background()

	dir.On("GIDNumberInUse", ctx, 4000).Return(true, nil)

	_, err := resolver.Resolve(ctx, types.GroupModeCreatePersonal, intPtr(4000), false, "jdoe")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIDConflict))
}

func TestResolveInvalidMode(t *testing.T) {
	resolver, _ := setupTestResolver(t)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "auto", nil, false, "jdoe")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidGroupMode))
}

func TestIsPersonalGroupFor(t *testing.T) {
	group := &types.PosixGroup{CN: "jdoe", GIDNumber: 2001}
	assert.True(t, group.IsPersonalGroupFor("jdoe", 2001))
	assert.False(t, group.IsPersonalGroupFor("jdoe", 1500))
	assert.False(t, group.IsPersonalGroupFor("asmith", 2001))
}
