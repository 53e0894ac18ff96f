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
)

func setupTestAllocator(t *testing.T) (*IDAllocator, *mockDirectory) {
	dir := &mockDirectory{}
	return NewIDAllocator(dir, logger.NewTestLogger(), metrics.NewTestMetrics()), dir
}

func TestAllocateAuto(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	dir.On("SuggestNextUID", ctx).Return(2001, nil)

	id, err := alloc.Allocate(ctx, IDKindUID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2001, id)
}

func TestAllocateAutoGID(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	dir.On("SuggestNextGID", ctx).Return(1042, nil)

	id, err := alloc.Allocate(ctx, IDKindGID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1042, id)
	dir.AssertNotCalled(t, "SuggestNextUID", mock.Anything)
}

func TestAllocateExplicitFree(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	dir.On("UIDNumberInUse", ctx, 5000).Return(false, nil)

	id, err := alloc.Allocate(ctx, IDKindUID, intPtr(5000), false)
	require.NoError(t, err)
	assert.Equal(t, 5000, id)
}

func TestAllocateExplicitConflict(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	dir.On("UIDNumberInUse", ctx, 5000).Return(true, nil)

	_, err := alloc.Allocate(ctx, IDKindUID, intPtr(5000), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIDConflict))
}

func TestAllocateForceSkipsCheck(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	id, err := alloc.Allocate(ctx, IDKindUID, intPtr(5000), true)
	require.NoError(t, err)
	assert.Equal(t, 5000, id)
	dir.AssertNotCalled(t, "UIDNumberInUse", mock.Anything, mock.Anything)
}

func TestAllocateOutOfRange(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	for _, id := range []int{0, 999, 65535, 100000, -5} {
		_, err := alloc.Allocate(ctx, IDKindUID, intPtr(id), false)
		require.Error(t, err, "id %d should be rejected", id)
		assert.True(t, errors.HasCode(err, errors.ErrCodeIDOutOfRange))
	}
	// Force does not bypass the range constraint
	_, err := alloc.Allocate(ctx, IDKindUID, intPtr(999), true)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIDOutOfRange))

	dir.AssertNotCalled(t, "UIDNumberInUse", mock.Anything, mock.Anything)
}

func TestAllocateRangeBoundaries(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	dir.On("UIDNumberInUse", ctx, 1000).Return(false, nil)
	dir.On("UIDNumberInUse", ctx, 65534).Return(false, nil)

	id, err := alloc.Allocate(ctx, IDKindUID, intPtr(1000), false)
	require.NoError(t, err)
	assert.Equal(t, 1000, id)

	id, err = alloc.Allocate(ctx, IDKindUID, intPtr(65534), false)
	require.NoError(t, err)
	assert.Equal(t, 65534, id)
}

func TestAllocateDirectoryFailure(t *testing.T) {
	alloc, dir := setupTestAllocator(t)
	ctx := context.Background()

	dir.On("SuggestNextUID", ctx).Return(0, assert.AnError)

	_, err := alloc.Allocate(ctx, IDKindUID, nil, false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDirectoryError))
}
