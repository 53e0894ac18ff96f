package posix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/logger"
	"github.com/dirigo-idm/dirigo/pkg/metrics"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// mockDirectory mocks the directory collaborator
type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) SuggestNextUID(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockDirectory) SuggestNextGID(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockDirectory) UIDNumberInUse(ctx context.Context, uidNumber int) (bool, error) {
	args := m.Called(ctx, uidNumber)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) GIDNumberInUse(ctx context.Context, gidNumber int) (bool, error) {
	args := m.Called(ctx, gidNumber)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) GroupExists(ctx context.Context, gidNumber int) (bool, error) {
	args := m.Called(ctx, gidNumber)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) GroupByCN(ctx context.Context, cn string) (*types.PosixGroup, error) {
	args := m.Called(ctx, cn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PosixGroup), args.Error(1)
}

func (m *mockDirectory) CreateGroup(ctx context.Context, cn string, gidNumber int, description string) (*types.PosixGroup, error) {
	args := m.Called(ctx, cn, gidNumber, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PosixGroup), args.Error(1)
}

func (m *mockDirectory) DeleteGroupIfEmpty(ctx context.Context, cn string) (bool, error) {
	args := m.Called(ctx, cn)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) AddGroupMember(ctx context.Context, cn, uid string) error {
	args := m.Called(ctx, cn, uid)
	return args.Error(0)
}

func (m *mockDirectory) RemoveGroupMember(ctx context.Context, cn, uid string) error {
	args := m.Called(ctx, cn, uid)
	return args.Error(0)
}

func (m *mockDirectory) SetGroupTrust(ctx context.Context, cn string, trust *types.TrustScope) error {
	args := m.Called(ctx, cn, trust)
	return args.Error(0)
}

func (m *mockDirectory) GetPosixAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PosixAccount), args.Error(1)
}

func (m *mockDirectory) WritePosixAttributes(ctx context.Context, uid string, account *types.PosixAccount) error {
	args := m.Called(ctx, uid, account)
	return args.Error(0)
}

func (m *mockDirectory) ApplyPosixChanges(ctx context.Context, uid string, changes map[string]interface{}) error {
	args := m.Called(ctx, uid, changes)
	return args.Error(0)
}

func (m *mockDirectory) RemovePosixAttributes(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *mockDirectory) GetShadowFields(ctx context.Context, uid string) (*types.ShadowFields, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ShadowFields), args.Error(1)
}

func (m *mockDirectory) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockDirectory) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testDefaults() Defaults {
	return Defaults{
		HomeDirectoryBase: "/home",
		DefaultShell:      "/bin/bash",
		ShellAllowList:    []string{"/bin/bash", "/bin/zsh", "/sbin/nologin"},
		DefaultGroupMode:  types.GroupModeCreatePersonal,
	}
}

func setupTestManager(t *testing.T) (*LifecycleManager, *mockDirectory) {
	dir := &mockDirectory{}
	mgr := NewLifecycleManager(dir, testDefaults(), logger.NewTestLogger(), metrics.NewTestMetrics())
	return mgr, dir
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func TestActivateCreatePersonal(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)
	dir.On("SuggestNextUID", ctx).Return(2001, nil)
	dir.On("SuggestNextGID", ctx).Return(2001, nil)
	dir.On("CreateGroup", ctx, "jdoe", 2001, mock.Anything).Return(&types.PosixGroup{CN: "jdoe", GIDNumber: 2001}, nil)
	dir.On("WritePosixAttributes", ctx, "jdoe", mock.Anything).Return(nil)

	account, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		GroupMode: types.GroupModeCreatePersonal,
	})

	require.NoError(t, err)
	assert.Equal(t, "jdoe", account.UID)
	assert.Equal(t, 2001, account.UIDNumber)
	assert.Equal(t, 2001, account.GIDNumber)
	assert.Equal(t, "/home/jdoe", account.HomeDirectory)
	assert.Equal(t, "/bin/bash", account.LoginShell)
	dir.AssertCalled(t, "CreateGroup", ctx, "jdoe", 2001, mock.Anything)
	dir.AssertExpectations(t)
}

func TestActivateSelectExisting(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "asmith").Return(nil, nil)
	dir.On("SuggestNextUID", ctx).Return(2002, nil)
	dir.On("GroupExists", ctx, 1500).Return(true, nil)
	dir.On("WritePosixAttributes", ctx, "asmith", mock.Anything).Return(nil)

	account, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "asmith",
		GroupMode: types.GroupModeSelectExisting,
		GIDNumber: intPtr(1500),
	})

	require.NoError(t, err)
	assert.Equal(t, 1500, account.GIDNumber)
	dir.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateSelectExistingGroupMissing(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "asmith").Return(nil, nil)
	dir.On("SuggestNextUID", ctx).Return(2002, nil)
	dir.On("GroupExists", ctx, 1500).Return(false, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "asmith",
		GroupMode: types.GroupModeSelectExisting,
		GIDNumber: intPtr(1500),
	})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGroupNotFound))
	dir.AssertNotCalled(t, "WritePosixAttributes", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateAlreadyActive(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(&types.PosixAccount{UID: "jdoe", UIDNumber: 2001, GIDNumber: 2001}, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		GroupMode: types.GroupModeCreatePersonal,
	})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadyActive))
}

func TestActivateExplicitUIDConflict(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)
	dir.On("UIDNumberInUse", ctx, 2001).Return(true, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		UIDNumber: intPtr(2001),
		GroupMode: types.GroupModeCreatePersonal,
	})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIDConflict))
}

func TestActivateForceBypassesFreeCheck(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)
	dir.On("SuggestNextGID", ctx).Return(2001, nil)
	dir.On("CreateGroup", ctx, "jdoe", 2001, mock.Anything).Return(&types.PosixGroup{CN: "jdoe", GIDNumber: 2001}, nil)
	dir.On("WritePosixAttributes", ctx, "jdoe", mock.Anything).Return(nil)

	account, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		UIDNumber: intPtr(2001),
		ForceUID:  true,
		GroupMode: types.GroupModeCreatePersonal,
	})

	require.NoError(t, err)
	assert.Equal(t, 2001, account.UIDNumber)
	dir.AssertNotCalled(t, "UIDNumberInUse", mock.Anything, mock.Anything)
}

func TestActivateUIDOutOfRange(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		UIDNumber: intPtr(999),
		GroupMode: types.GroupModeCreatePersonal,
	})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIDOutOfRange))
	// Range violation fails before any availability lookup
	dir.AssertNotCalled(t, "UIDNumberInUse", mock.Anything, mock.Anything)
}

func TestActivateTrustByHostRequiresHosts(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)
	dir.On("SuggestNextUID", ctx).Return(2001, nil)
	dir.On("SuggestNextGID", ctx).Return(2001, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		GroupMode: types.GroupModeCreatePersonal,
		TrustMode: types.TrustModeByHost,
	})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHostsRequired))
	dir.AssertNotCalled(t, "WritePosixAttributes", mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateCompensatesFailedWrite(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)
	dir.On("SuggestNextUID", ctx).Return(2001, nil)
	dir.On("SuggestNextGID", ctx).Return(2001, nil)
	dir.On("CreateGroup", ctx, "jdoe", 2001, mock.Anything).Return(&types.PosixGroup{CN: "jdoe", GIDNumber: 2001}, nil)
	dir.On("WritePosixAttributes", ctx, "jdoe", mock.Anything).Return(assert.AnError)
	dir.On("DeleteGroupIfEmpty", ctx, "jdoe").Return(true, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:       "jdoe",
		GroupMode: types.GroupModeCreatePersonal,
	})

	require.Error(t, err)
	dir.AssertCalled(t, "DeleteGroupIfEmpty", ctx, "jdoe")
}

func TestActivateShellNotAllowed(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "jdoe").Return(nil, nil)
	dir.On("SuggestNextUID", ctx).Return(2001, nil)
	dir.On("SuggestNextGID", ctx).Return(2001, nil)

	_, err := mgr.Activate(ctx, &interfaces.ActivationRequest{
		UID:        "jdoe",
		GroupMode:  types.GroupModeCreatePersonal,
		LoginShell: "/opt/evil/shell",
	})

	require.Error(t, err)
	dir.AssertNotCalled(t, "WritePosixAttributes", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateRejectsUIDNumber(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	_, err := mgr.Update(ctx, "jdoe", &interfaces.AccountPatch{UIDNumber: intPtr(3000)})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeImmutableField))
	// Rejected before any directory call
	dir.AssertNotCalled(t, "GetPosixAccount", mock.Anything, mock.Anything)
	dir.AssertNotCalled(t, "ApplyPosixChanges", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSparsePatch(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{
		UID:           "jdoe",
		UIDNumber:     2001,
		GIDNumber:     2001,
		HomeDirectory: "/home/jdoe",
		LoginShell:    "/bin/bash",
		GECOS:         "John Doe",
	}
	updated := *current
	updated.LoginShell = "/bin/zsh"

	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil).Once()
	dir.On("ApplyPosixChanges", ctx, "jdoe", map[string]interface{}{"login_shell": "/bin/zsh"}).Return(nil)
	dir.On("GetPosixAccount", ctx, "jdoe").Return(&updated, nil).Once()

	result, err := mgr.Update(ctx, "jdoe", &interfaces.AccountPatch{
		LoginShell: strPtr("/bin/zsh"),
		GECOS:      strPtr("John Doe"), // unchanged, must not be sent
	})

	require.NoError(t, err)
	assert.Equal(t, "/bin/zsh", result.LoginShell)
	dir.AssertExpectations(t)
}

func TestUpdateNoEffectiveChanges(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{
		UID:        "jdoe",
		UIDNumber:  2001,
		GIDNumber:  2001,
		LoginShell: "/bin/bash",
	}
	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil)

	result, err := mgr.Update(ctx, "jdoe", &interfaces.AccountPatch{LoginShell: strPtr("/bin/bash")})

	require.NoError(t, err)
	assert.Equal(t, current, result)
	dir.AssertNotCalled(t, "ApplyPosixChanges", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateNotActive(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "ghost").Return(nil, nil)

	_, err := mgr.Update(ctx, "ghost", &interfaces.AccountPatch{GECOS: strPtr("Ghost")})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotActive))
}

func TestUpdateGIDRequiresExistingGroup(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{UID: "jdoe", UIDNumber: 2001, GIDNumber: 2001}
	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil)
	dir.On("GroupExists", ctx, 3000).Return(false, nil)

	_, err := mgr.Update(ctx, "jdoe", &interfaces.AccountPatch{GIDNumber: intPtr(3000)})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeGroupNotFound))
	dir.AssertNotCalled(t, "ApplyPosixChanges", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivateDeletesEmptyPersonalGroup(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{UID: "jdoe", UIDNumber: 2001, GIDNumber: 2001}
	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil)
	dir.On("RemovePosixAttributes", ctx, "jdoe").Return(nil)
	dir.On("GroupByCN", ctx, "jdoe").Return(&types.PosixGroup{CN: "jdoe", GIDNumber: 2001}, nil)
	dir.On("DeleteGroupIfEmpty", ctx, "jdoe").Return(true, nil)

	err := mgr.Deactivate(ctx, "jdoe", true)

	require.NoError(t, err)
	dir.AssertCalled(t, "DeleteGroupIfEmpty", ctx, "jdoe")
}

func TestDeactivateKeepsNonEmptyPersonalGroup(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{UID: "jdoe", UIDNumber: 2001, GIDNumber: 2001}
	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil)
	dir.On("RemovePosixAttributes", ctx, "jdoe").Return(nil)
	dir.On("GroupByCN", ctx, "jdoe").Return(&types.PosixGroup{CN: "jdoe", GIDNumber: 2001, MemberUIDs: []string{"other"}}, nil)
	dir.On("DeleteGroupIfEmpty", ctx, "jdoe").Return(false, nil)

	// Non-empty group left intact is not an error
	err := mgr.Deactivate(ctx, "jdoe", true)
	require.NoError(t, err)
}

func TestDeactivateSkipsGroupWithMismatchedGID(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{UID: "jdoe", UIDNumber: 2001, GIDNumber: 1500}
	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil)
	dir.On("RemovePosixAttributes", ctx, "jdoe").Return(nil)
	// Coincidentally named group, not the account's primary group
	dir.On("GroupByCN", ctx, "jdoe").Return(&types.PosixGroup{CN: "jdoe", GIDNumber: 9999}, nil)

	err := mgr.Deactivate(ctx, "jdoe", true)

	require.NoError(t, err)
	dir.AssertNotCalled(t, "DeleteGroupIfEmpty", mock.Anything, mock.Anything)
}

func TestDeactivateWithoutGroupDeletion(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	current := &types.PosixAccount{UID: "jdoe", UIDNumber: 2001, GIDNumber: 2001}
	dir.On("GetPosixAccount", ctx, "jdoe").Return(current, nil)
	dir.On("RemovePosixAttributes", ctx, "jdoe").Return(nil)

	err := mgr.Deactivate(ctx, "jdoe", false)

	require.NoError(t, err)
	dir.AssertNotCalled(t, "GroupByCN", mock.Anything, mock.Anything)
}

func TestDeactivateNotActive(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	dir.On("GetPosixAccount", ctx, "ghost").Return(nil, nil)

	err := mgr.Deactivate(ctx, "ghost", true)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotActive))
}

func TestStatus(t *testing.T) {
	mgr, dir := setupTestManager(t)
	ctx := context.Background()

	t.Run("ActiveAccount", func(t *testing.T) {
		future := Today() + 365
		dir.On("GetShadowFields", ctx, "jdoe").Return(&types.ShadowFields{Expire: &future}, nil).Once()

		status, err := mgr.Status(ctx, "jdoe")
		require.NoError(t, err)
		assert.Equal(t, types.StatusActive, status)
	})

	t.Run("ExpiredAccount", func(t *testing.T) {
		past := Today() - 10
		dir.On("GetShadowFields", ctx, "jdoe").Return(&types.ShadowFields{Expire: &past}, nil).Once()

		status, err := mgr.Status(ctx, "jdoe")
		require.NoError(t, err)
		assert.Equal(t, types.StatusExpired, status)
	})

	t.Run("NotActive", func(t *testing.T) {
		dir.On("GetShadowFields", ctx, "ghost").Return(nil, nil).Once()

		_, err := mgr.Status(ctx, "ghost")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeNotActive))
	})
}
