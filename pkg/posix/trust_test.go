package posix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

func TestTrustPolicyValidate(t *testing.T) {
	policy := NewTrustPolicy()

	t.Run("None", func(t *testing.T) {
		scope, err := policy.Validate(types.TrustModeNone, []string{"ignored.example.com"})
		require.NoError(t, err)
		assert.Equal(t, types.TrustModeNone, scope.Mode)
		assert.Empty(t, scope.Hosts)
	})

	t.Run("FullAccess", func(t *testing.T) {
		scope, err := policy.Validate(types.TrustModeFullAccess, []string{"ignored.example.com"})
		require.NoError(t, err)
		assert.Equal(t, types.TrustModeFullAccess, scope.Mode)
		assert.Empty(t, scope.Hosts)
	})

	t.Run("ByHost", func(t *testing.T) {
		scope, err := policy.Validate(types.TrustModeByHost, []string{"h1"})
		require.NoError(t, err)
		assert.Equal(t, types.TrustModeByHost, scope.Mode)
		assert.Equal(t, []string{"h1"}, scope.Hosts)
	})

	t.Run("ByHostEmpty", func(t *testing.T) {
		_, err := policy.Validate(types.TrustModeByHost, []string{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeHostsRequired))

		_, err = policy.Validate(types.TrustModeByHost, nil)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeHostsRequired))
	})

	t.Run("ByHostDuplicatesPassThrough", func(t *testing.T) {
		scope, err := policy.Validate(types.TrustModeByHost, []string{"h1", "h1", "h2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "h1", "h2"}, scope.Hosts)
	})

	t.Run("EmptyModeDefaultsToNone", func(t *testing.T) {
		scope, err := policy.Validate("", nil)
		require.NoError(t, err)
		assert.Equal(t, types.TrustModeNone, scope.Mode)
	})

	t.Run("UnknownMode", func(t *testing.T) {
		_, err := policy.Validate("everywhere", nil)
		require.Error(t, err)
	})
}
