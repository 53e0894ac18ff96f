package posix

import (
	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// TrustPolicy validates system-access-scope declarations. The same rules
// apply to user and group subjects.
type TrustPolicy struct{}

// NewTrustPolicy creates a trust policy validator.
func NewTrustPolicy() *TrustPolicy {
	return &TrustPolicy{}
}

// Validate checks a trust declaration and returns the scope to store.
//
// For none and fullaccess the host list is ignored and stored empty. For
// byhost the host list must be non-empty; duplicates pass through unmodified,
// deduplication is a caller concern.
func (p *TrustPolicy) Validate(mode types.TrustMode, hosts []string) (*types.TrustScope, error) {
	if mode == "" {
		mode = types.TrustModeNone
	}
	if !mode.IsValid() {
		return nil, errors.NewInvalidInputError("unknown trust mode: " + string(mode))
	}

	if mode == types.TrustModeByHost {
		if len(hosts) == 0 {
			return nil, errors.NewHostsRequiredError()
		}
		return &types.TrustScope{Mode: mode, Hosts: hosts}, nil
	}

	return &types.TrustScope{Mode: mode}, nil
}
