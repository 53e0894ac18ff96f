// Package posix implements POSIX account provisioning and lifecycle rules:
// UID/GID allocation, primary-group resolution, trust-scope validation,
// shadow aging status derivation, and the account lifecycle state machine.
package posix

import (
	"time"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

const secondsPerDay = 86400

// DaysSinceEpoch converts a point in time to whole days since the Unix
// epoch, the unit used by all shadow aging fields.
func DaysSinceEpoch(t time.Time) int64 {
	return t.Unix() / secondsPerDay
}

// Today returns the current day number in shadow units.
func Today() int64 {
	return DaysSinceEpoch(time.Now().UTC())
}

// ComputeStatus derives the operational status of an account from its shadow
// aging fields. It is a pure function: deterministic, total, no side effects.
//
// Evaluation order is fixed and short-circuits at the first match:
//
//  1. expire set and > 0 and today >= expire            -> expired
//  2. lastChange and max set and today >= lastChange+max:
//     inactive set and > 0: today < lastChange+max+inactive -> grace_time
//     otherwise past the grace window                       -> locked
//     inactive unset or <= 0                                -> password_expired
//  3. lastChange == 0 (forced immediate change)         -> password_expired
//  4. otherwise                                         -> active
//
// Account expiry always beats password aging. The grace window is only
// consulted once the password has already aged out. A zero lastChange is a
// distinct "must change now" sentinel, independent of the aging math.
// Zero or negative expire values mean "no expiry" and are ignored.
func ComputeStatus(today int64, fields types.ShadowFields) types.AccountStatus {
	if fields.Expire != nil && *fields.Expire > 0 && today >= *fields.Expire {
		return types.StatusExpired
	}

	if fields.LastChange != nil && fields.Max != nil && today >= *fields.LastChange+*fields.Max {
		if fields.Inactive != nil && *fields.Inactive > 0 {
			graceEnd := *fields.LastChange + *fields.Max + *fields.Inactive
			if today < graceEnd {
				return types.StatusGraceTime
			}
			return types.StatusLocked
		}
		return types.StatusPasswordExpired
	}

	if fields.LastChange != nil && *fields.LastChange == 0 {
		return types.StatusPasswordExpired
	}

	return types.StatusActive
}

// StatusNow derives the status against the current day.
func StatusNow(fields types.ShadowFields) types.AccountStatus {
	return ComputeStatus(Today(), fields)
}
