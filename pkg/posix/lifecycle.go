package posix

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Defaults carries the provisioning defaults threaded into every lifecycle
// call. Ambient context stays explicit; the manager holds no module state.
type Defaults struct {
	HomeDirectoryBase string
	DefaultShell      string
	ShellAllowList    []string
	DefaultGroupMode  types.PrimaryGroupMode
}

// LifecycleManager orchestrates the POSIX account state machine over the
// states {inactive, active}. Operations run to completion one at a time per
// account; all I/O goes through the directory collaborator and is treated as
// blocking-until-resolved. Errors surface to the caller untouched, never
// retried.
type LifecycleManager struct {
	directory interfaces.DirectoryService
	allocator *IDAllocator
	resolver  *PrimaryGroupResolver
	trust     *TrustPolicy
	defaults  Defaults
	logger    interfaces.Logger
	metrics   interfaces.Metrics
}

// NewLifecycleManager creates a lifecycle manager with its collaborators.
func NewLifecycleManager(directory interfaces.DirectoryService, defaults Defaults, logger interfaces.Logger, metrics interfaces.Metrics) *LifecycleManager {
	allocator := NewIDAllocator(directory, logger, metrics)
	return &LifecycleManager{
		directory: directory,
		allocator: allocator,
		resolver:  NewPrimaryGroupResolver(directory, allocator, logger),
		trust:     NewTrustPolicy(),
		defaults:  defaults,
		logger:    logger,
		metrics:   metrics,
	}
}

// Allocator exposes the manager's ID allocator for standalone group creation.
func (m *LifecycleManager) Allocator() *IDAllocator {
	return m.allocator
}

// TrustPolicy exposes the manager's trust validator.
func (m *LifecycleManager) TrustPolicy() *TrustPolicy {
	return m.trust
}

// Activate provisions POSIX attributes for a directory user. Steps run in a
// fixed order: allocate UID, resolve primary group, validate trust, assemble
// the attribute set, persist. Any failing step aborts the whole activation;
// if a personal group was already created, the failed write is compensated
// by removing it while still empty.
func (m *LifecycleManager) Activate(ctx context.Context, req *interfaces.ActivationRequest) (*types.PosixAccount, error) {
	if req.UID == "" {
		return nil, errors.NewMissingFieldError("uid")
	}
	mode := req.GroupMode
	if mode == "" {
		mode = m.defaults.DefaultGroupMode
	}
	if !mode.IsValid() {
		return nil, errors.NewInvalidGroupModeError(string(req.GroupMode))
	}

	existing, err := m.directory.GetPosixAccount(ctx, req.UID)
	if err != nil {
		return nil, errors.NewDirectoryErrorWithCause("failed to read account", err)
	}
	if existing != nil {
		return nil, errors.NewAlreadyActiveError(req.UID)
	}

	uidNumber, err := m.allocator.Allocate(ctx, IDKindUID, req.UIDNumber, req.ForceUID)
	if err != nil {
		return nil, err
	}

	resolved, err := m.resolver.Resolve(ctx, mode, req.GIDNumber, req.ForceGID, req.UID)
	if err != nil {
		return nil, err
	}

	var trust *types.TrustScope
	if req.TrustMode != "" {
		trust, err = m.trust.Validate(req.TrustMode, req.TrustHosts)
		if err != nil {
			return nil, err
		}
	}

	account := m.assemble(req, uidNumber, resolved.GIDNumber, trust)
	if err := m.validateShell(account.LoginShell); err != nil {
		return nil, err
	}

	if resolved.CreateGroup {
		if _, err := m.directory.CreateGroup(ctx, resolved.CN, resolved.GIDNumber, PersonalGroupDescription(req.UID)); err != nil {
			return nil, errors.NewDirectoryErrorWithCause("failed to create personal group", err)
		}
	}

	if err := m.directory.WritePosixAttributes(ctx, req.UID, account); err != nil {
		if resolved.CreateGroup {
			if _, cleanupErr := m.directory.DeleteGroupIfEmpty(ctx, resolved.CN); cleanupErr != nil {
				m.logger.Error("failed to remove personal group after aborted activation", cleanupErr, map[string]interface{}{
					"uid": req.UID,
					"cn":  resolved.CN,
				})
			}
		}
		return nil, errors.NewDirectoryErrorWithCause("failed to write POSIX attributes", err)
	}

	m.metrics.Counter("posix_lifecycle_operations", 1, map[string]string{"operation": "activate"})
	m.logger.Info("account activated", map[string]interface{}{
		"uid":        req.UID,
		"uid_number": uidNumber,
		"gid_number": resolved.GIDNumber,
	})
	return account, nil
}

// Update applies a sparse patch to an active account. Only fields present
// and different from the persisted value are sent to the directory.
// uidNumber is immutable after creation and rejected before any directory
// call. Trust changes are re-validated first.
func (m *LifecycleManager) Update(ctx context.Context, uid string, patch *interfaces.AccountPatch) (*types.PosixAccount, error) {
	if patch.UIDNumber != nil {
		return nil, errors.NewImmutableFieldError("uid_number")
	}

	current, err := m.directory.GetPosixAccount(ctx, uid)
	if err != nil {
		return nil, errors.NewDirectoryErrorWithCause("failed to read account", err)
	}
	if current == nil {
		return nil, errors.NewNotActiveError(uid)
	}

	changes := make(map[string]interface{})

	if patch.GIDNumber != nil && *patch.GIDNumber != current.GIDNumber {
		exists, err := m.directory.GroupExists(ctx, *patch.GIDNumber)
		if err != nil {
			return nil, errors.NewDirectoryErrorWithCause("failed to look up group", err)
		}
		if !exists {
			return nil, errors.NewGroupNotFoundError(*patch.GIDNumber)
		}
		changes["gid_number"] = *patch.GIDNumber
	}
	if patch.HomeDirectory != nil && *patch.HomeDirectory != current.HomeDirectory {
		changes["home_directory"] = *patch.HomeDirectory
	}
	if patch.LoginShell != nil && *patch.LoginShell != current.LoginShell {
		if err := m.validateShell(*patch.LoginShell); err != nil {
			return nil, err
		}
		changes["login_shell"] = *patch.LoginShell
	}
	if patch.GECOS != nil && *patch.GECOS != current.GECOS {
		changes["gecos"] = *patch.GECOS
	}
	if patch.Shadow != nil && !reflect.DeepEqual(*patch.Shadow, current.Shadow) {
		changes["shadow"] = patch.Shadow
	}
	if patch.TrustMode != nil {
		trust, err := m.trust.Validate(*patch.TrustMode, patch.TrustHosts)
		if err != nil {
			return nil, err
		}
		if !reflect.DeepEqual(trust, current.Trust) {
			changes["trust"] = trust
		}
	}

	if len(changes) == 0 {
		return current, nil
	}

	if err := m.directory.ApplyPosixChanges(ctx, uid, changes); err != nil {
		return nil, errors.NewDirectoryErrorWithCause("failed to apply attribute changes", err)
	}

	updated, err := m.directory.GetPosixAccount(ctx, uid)
	if err != nil {
		return nil, errors.NewDirectoryErrorWithCause("failed to re-read account", err)
	}

	m.metrics.Counter("posix_lifecycle_operations", 1, map[string]string{"operation": "update"})
	m.logger.Info("account updated", map[string]interface{}{
		"uid":     uid,
		"changed": len(changes),
	})
	return updated, nil
}

// Deactivate strips all POSIX attributes from an account. The owning
// directory entry survives. With deletePersonalGroup set, a group whose name
// equals the uid and whose gidNumber matches the account's primary GID is
// additionally deleted, but only while empty. A non-empty group is left
// intact and does not fail the deactivation.
//
// The name-based linkage is a known approximation: a coincidentally named
// group that was not auto-created matches the same heuristic.
func (m *LifecycleManager) Deactivate(ctx context.Context, uid string, deletePersonalGroup bool) error {
	current, err := m.directory.GetPosixAccount(ctx, uid)
	if err != nil {
		return errors.NewDirectoryErrorWithCause("failed to read account", err)
	}
	if current == nil {
		return errors.NewNotActiveError(uid)
	}

	if err := m.directory.RemovePosixAttributes(ctx, uid); err != nil {
		return errors.NewDirectoryErrorWithCause("failed to remove POSIX attributes", err)
	}

	if deletePersonalGroup {
		group, err := m.directory.GroupByCN(ctx, uid)
		if err != nil {
			return errors.NewDirectoryErrorWithCause("failed to look up personal group", err)
		}
		if group != nil && group.IsPersonalGroupFor(uid, current.GIDNumber) {
			deleted, err := m.directory.DeleteGroupIfEmpty(ctx, uid)
			if err != nil {
				return errors.NewDirectoryErrorWithCause("failed to delete personal group", err)
			}
			if !deleted {
				m.logger.Info("personal group not empty, left intact", map[string]interface{}{
					"uid": uid,
					"cn":  group.CN,
				})
			}
		}
	}

	m.metrics.Counter("posix_lifecycle_operations", 1, map[string]string{"operation": "deactivate"})
	m.logger.Info("account deactivated", map[string]interface{}{"uid": uid})
	return nil
}

// Status derives the operational status from the persisted shadow fields.
// The result is recomputed on every read and never stored.
func (m *LifecycleManager) Status(ctx context.Context, uid string) (types.AccountStatus, error) {
	fields, err := m.directory.GetShadowFields(ctx, uid)
	if err != nil {
		return "", errors.NewDirectoryErrorWithCause("failed to read shadow fields", err)
	}
	if fields == nil {
		return "", errors.NewNotActiveError(uid)
	}
	return ComputeStatus(Today(), *fields), nil
}

func (m *LifecycleManager) assemble(req *interfaces.ActivationRequest, uidNumber, gidNumber int, trust *types.TrustScope) *types.PosixAccount {
	home := req.HomeDirectory
	if home == "" {
		home = fmt.Sprintf("%s/%s", m.defaults.HomeDirectoryBase, req.UID)
	}
	shell := req.LoginShell
	if shell == "" {
		shell = m.defaults.DefaultShell
	}

	now := time.Now().UTC()
	return &types.PosixAccount{
		UID:           req.UID,
		UIDNumber:     uidNumber,
		GIDNumber:     gidNumber,
		HomeDirectory: home,
		LoginShell:    shell,
		GECOS:         req.GECOS,
		Shadow:        req.Shadow,
		Trust:         trust,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (m *LifecycleManager) validateShell(shell string) error {
	if len(m.defaults.ShellAllowList) == 0 {
		return nil
	}
	for _, allowed := range m.defaults.ShellAllowList {
		if allowed == shell {
			return nil
		}
	}
	return errors.NewInvalidInputError("login shell not in allow-list: " + shell)
}
