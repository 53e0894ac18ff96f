package posix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestComputeStatus(t *testing.T) {
	t.Run("NoFields", func(t *testing.T) {
		status := ComputeStatus(20000, types.ShadowFields{})
		assert.Equal(t, types.StatusActive, status)
	})

	t.Run("ExpirePassed", func(t *testing.T) {
		fields := types.ShadowFields{Expire: int64Ptr(19000)}
		assert.Equal(t, types.StatusExpired, ComputeStatus(19000, fields))
		assert.Equal(t, types.StatusExpired, ComputeStatus(20000, fields))
	})

	t.Run("ExpireInFuture", func(t *testing.T) {
		fields := types.ShadowFields{Expire: int64Ptr(21000)}
		assert.Equal(t, types.StatusActive, ComputeStatus(20000, fields))
	})

	t.Run("ExpireZeroOrNegativeMeansNoExpiry", func(t *testing.T) {
		assert.Equal(t, types.StatusActive, ComputeStatus(20000, types.ShadowFields{Expire: int64Ptr(0)}))
		assert.Equal(t, types.StatusActive, ComputeStatus(20000, types.ShadowFields{Expire: int64Ptr(-1)}))
	})

	t.Run("ExpiryBeatsPasswordAging", func(t *testing.T) {
		fields := types.ShadowFields{
			Expire:     int64Ptr(120),
			LastChange: int64Ptr(100),
			Max:        int64Ptr(30),
			Inactive:   int64Ptr(5),
		}
		assert.Equal(t, types.StatusExpired, ComputeStatus(200, fields))
	})

	t.Run("AgingWindow", func(t *testing.T) {
		fields := types.ShadowFields{
			LastChange: int64Ptr(100),
			Max:        int64Ptr(30),
			Inactive:   int64Ptr(5),
		}
		assert.Equal(t, types.StatusActive, ComputeStatus(125, fields))
		assert.Equal(t, types.StatusGraceTime, ComputeStatus(132, fields))
		assert.Equal(t, types.StatusLocked, ComputeStatus(136, fields))
	})

	t.Run("GraceBoundaries", func(t *testing.T) {
		fields := types.ShadowFields{
			LastChange: int64Ptr(100),
			Max:        int64Ptr(30),
			Inactive:   int64Ptr(5),
		}
		assert.Equal(t, types.StatusGraceTime, ComputeStatus(130, fields))
		assert.Equal(t, types.StatusGraceTime, ComputeStatus(134, fields))
		assert.Equal(t, types.StatusLocked, ComputeStatus(135, fields))
	})

	t.Run("AgedWithoutInactive", func(t *testing.T) {
		fields := types.ShadowFields{
			LastChange: int64Ptr(100),
			Max:        int64Ptr(30),
		}
		assert.Equal(t, types.StatusPasswordExpired, ComputeStatus(130, fields))
		assert.Equal(t, types.StatusPasswordExpired, ComputeStatus(500, fields))
	})

	t.Run("AgedWithZeroInactive", func(t *testing.T) {
		fields := types.ShadowFields{
			LastChange: int64Ptr(100),
			Max:        int64Ptr(30),
			Inactive:   int64Ptr(0),
		}
		assert.Equal(t, types.StatusPasswordExpired, ComputeStatus(130, fields))
	})

	t.Run("ForcedChangeSentinel", func(t *testing.T) {
		assert.Equal(t, types.StatusPasswordExpired, ComputeStatus(20000, types.ShadowFields{LastChange: int64Ptr(0)}))

		// Sentinel holds independent of aging math
		fields := types.ShadowFields{LastChange: int64Ptr(0), Max: int64Ptr(99999)}
		assert.Equal(t, types.StatusPasswordExpired, ComputeStatus(100, fields))
	})

	t.Run("Deterministic", func(t *testing.T) {
		fields := types.ShadowFields{
			LastChange: int64Ptr(100),
			Max:        int64Ptr(30),
			Inactive:   int64Ptr(5),
			Expire:     int64Ptr(500),
		}
		first := ComputeStatus(132, fields)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ComputeStatus(132, fields))
		}
	})
}

func TestDaysSinceEpoch(t *testing.T) {
	assert.Equal(t, int64(0), DaysSinceEpoch(time.Unix(0, 0)))
	assert.Equal(t, int64(0), DaysSinceEpoch(time.Unix(86399, 0)))
	assert.Equal(t, int64(1), DaysSinceEpoch(time.Unix(86400, 0)))
	assert.Equal(t, int64(19723), DaysSinceEpoch(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
}
