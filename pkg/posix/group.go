package posix

import (
	"context"
	"fmt"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// ResolvedGroup is the outcome of primary-group resolution. When
// CreateGroup is set the caller must create a group named CN with the
// resolved GIDNumber before persisting the account.
type ResolvedGroup struct {
	GIDNumber   int
	CreateGroup bool
	CN          string
	Personal    bool
}

// PrimaryGroupResolver resolves how an account's primary Unix group is
// established: attach to an existing POSIX group, or auto-create a personal
// group named after the user.
type PrimaryGroupResolver struct {
	directory interfaces.DirectoryService
	allocator *IDAllocator
	logger    interfaces.Logger
}

// NewPrimaryGroupResolver creates a primary-group resolver.
func NewPrimaryGroupResolver(directory interfaces.DirectoryService, allocator *IDAllocator, logger interfaces.Logger) *PrimaryGroupResolver {
	return &PrimaryGroupResolver{
		directory: directory,
		allocator: allocator,
		logger:    logger,
	}
}

// Resolve determines the primary GID for an activation.
//
// select_existing requires an explicit GID and confirms a group with that
// gidNumber exists. create_personal allocates a GID under the normal
// allocation rules and instructs the caller to create a group named exactly
// after the uid. Personal-group linkage is a naming convention, not a stored
// flag.
func (r *PrimaryGroupResolver) Resolve(ctx context.Context, mode types.PrimaryGroupMode, explicitGID *int, forceGID bool, uid string) (*ResolvedGroup, error) {
	switch mode {
	case types.GroupModeSelectExisting:
		if explicitGID == nil {
			return nil, errors.NewMissingFieldError("gid_number")
		}
		exists, err := r.directory.GroupExists(ctx, *explicitGID)
		if err != nil {
			return nil, errors.NewDirectoryErrorWithCause("failed to look up group", err)
		}
		if !exists {
			return nil, errors.NewGroupNotFoundError(*explicitGID)
		}
		return &ResolvedGroup{GIDNumber: *explicitGID}, nil

	case types.GroupModeCreatePersonal:
		gid, err := r.allocator.Allocate(ctx, IDKindGID, explicitGID, forceGID)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolved personal group", map[string]interface{}{
			"uid": uid,
			"gid": gid,
		})
		return &ResolvedGroup{
			GIDNumber:   gid,
			CreateGroup: true,
			CN:          uid,
			Personal:    true,
		}, nil

	default:
		return nil, errors.NewInvalidGroupModeError(string(mode))
	}
}

// PersonalGroupDescription is the description stamped on auto-created
// personal groups.
func PersonalGroupDescription(uid string) string {
	return fmt.Sprintf("Personal group for %s", uid)
}
