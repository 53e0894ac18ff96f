package posix

import (
	"context"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
)

// ID range for provisioned accounts and groups. IDs below 1000 belong to
// system accounts; 65535 is reserved.
const (
	MinID = 1000
	MaxID = 65534
)

// IDKind selects which number space an allocation targets.
type IDKind string

const (
	IDKindUID IDKind = "uid"
	IDKindGID IDKind = "gid"
)

// IDAllocator computes or validates UID/GID numbers against the directory.
// Free-ID suggestion is fetched from the directory at call time, never
// computed locally.
type IDAllocator struct {
	directory interfaces.DirectoryService
	logger    interfaces.Logger
	metrics   interfaces.Metrics
}

// NewIDAllocator creates an ID allocator backed by the given directory.
func NewIDAllocator(directory interfaces.DirectoryService, logger interfaces.Logger, metrics interfaces.Metrics) *IDAllocator {
	return &IDAllocator{
		directory: directory,
		logger:    logger,
		metrics:   metrics,
	}
}

// Allocate resolves the ID to assign.
//
// A nil requested ID yields the directory's lowest free ID suggestion. An
// explicit ID is range-checked before any directory call, then verified free
// unless force is set. Force bypasses only the free-ID pre-check: the
// directory remains responsible for resolving or rejecting a duplicate at
// write time.
func (a *IDAllocator) Allocate(ctx context.Context, kind IDKind, requested *int, force bool) (int, error) {
	if requested == nil {
		suggested, err := a.suggest(ctx, kind)
		if err != nil {
			return 0, errors.NewDirectoryErrorWithCause("failed to fetch next free ID", err)
		}
		a.metrics.Counter("posix_id_allocated", 1, map[string]string{"kind": string(kind), "mode": "auto"})
		return suggested, nil
	}

	id := *requested
	if id < MinID || id > MaxID {
		return 0, errors.NewIDOutOfRangeError(id)
	}

	if !force {
		inUse, err := a.inUse(ctx, kind, id)
		if err != nil {
			return 0, errors.NewDirectoryErrorWithCause("failed to check ID availability", err)
		}
		if inUse {
			return 0, errors.NewIDConflictError(id)
		}
	} else {
		a.logger.Warn("force-allocating ID without free check", map[string]interface{}{
			"kind": string(kind),
			"id":   id,
		})
	}

	a.metrics.Counter("posix_id_allocated", 1, map[string]string{"kind": string(kind), "mode": "explicit"})
	return id, nil
}

func (a *IDAllocator) suggest(ctx context.Context, kind IDKind) (int, error) {
	if kind == IDKindGID {
		return a.directory.SuggestNextGID(ctx)
	}
	return a.directory.SuggestNextUID(ctx)
}

func (a *IDAllocator) inUse(ctx context.Context, kind IDKind, id int) (bool, error) {
	if kind == IDKindGID {
		return a.directory.GIDNumberInUse(ctx, id)
	}
	return a.directory.UIDNumberInUse(ctx, id)
}
