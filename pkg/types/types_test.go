package types

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountStatus(t *testing.T) {
	t.Run("AccountStatus Constants", func(t *testing.T) {
		assert.Equal(t, AccountStatus("active"), StatusActive)
		assert.Equal(t, AccountStatus("expired"), StatusExpired)
		assert.Equal(t, AccountStatus("password_expired"), StatusPasswordExpired)
		assert.Equal(t, AccountStatus("grace_time"), StatusGraceTime)
		assert.Equal(t, AccountStatus("locked"), StatusLocked)
	})

	t.Run("String Method", func(t *testing.T) {
		assert.Equal(t, "grace_time", StatusGraceTime.String())
	})
}

func TestPrimaryGroupMode(t *testing.T) {
	t.Run("Valid Modes", func(t *testing.T) {
		assert.True(t, GroupModeSelectExisting.IsValid())
		assert.True(t, GroupModeCreatePersonal.IsValid())
	})

	t.Run("Invalid Modes", func(t *testing.T) {
		assert.False(t, PrimaryGroupMode("").IsValid())
		assert.False(t, PrimaryGroupMode("both").IsValid())
	})
}

func TestTrustMode(t *testing.T) {
	t.Run("Valid Modes", func(t *testing.T) {
		assert.True(t, TrustModeNone.IsValid())
		assert.True(t, TrustModeFullAccess.IsValid())
		assert.True(t, TrustModeByHost.IsValid())
	})

	t.Run("Invalid Modes", func(t *testing.T) {
		assert.False(t, TrustMode("somehosts").IsValid())
	})
}

func TestShadowFields(t *testing.T) {
	t.Run("JSON Serialization Omits Absent Fields", func(t *testing.T) {
		lastChange := int64(19000)
		fields := ShadowFields{
			LastChange: &lastChange,
		}

		data, err := json.Marshal(fields)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Contains(t, decoded, "shadow_last_change")
		assert.NotContains(t, decoded, "shadow_max")
		assert.NotContains(t, decoded, "shadow_expire")
	})

	t.Run("JSON Round Trip", func(t *testing.T) {
		lastChange := int64(19000)
		max := int64(90)
		expire := int64(20000)
		fields := ShadowFields{
			LastChange: &lastChange,
			Max:        &max,
			Expire:     &expire,
		}

		data, err := json.Marshal(fields)
		require.NoError(t, err)

		var decoded ShadowFields
		require.NoError(t, json.Unmarshal(data, &decoded))

		require.NotNil(t, decoded.LastChange)
		assert.Equal(t, int64(19000), *decoded.LastChange)
		require.NotNil(t, decoded.Expire)
		assert.Equal(t, int64(20000), *decoded.Expire)
		assert.Nil(t, decoded.Min)
	})
}

func TestPosixAccount(t *testing.T) {
	t.Run("PosixAccount Creation", func(t *testing.T) {
		account := PosixAccount{
			UID:           "jdoe",
			UIDNumber:     2001,
			GIDNumber:     2001,
			HomeDirectory: "/home/jdoe",
			LoginShell:    "/bin/bash",
			GECOS:         "Jane Doe",
			CreatedAt:     time.Now(),
		}

		assert.Equal(t, "jdoe", account.UID)
		assert.Equal(t, 2001, account.UIDNumber)
		assert.Equal(t, "/home/jdoe", account.HomeDirectory)
	})
}

func TestPosixGroup(t *testing.T) {
	t.Run("IsPersonalGroupFor", func(t *testing.T) {
		group := PosixGroup{CN: "jdoe", GIDNumber: 2001}

		assert.True(t, group.IsPersonalGroupFor("jdoe", 2001))
		assert.False(t, group.IsPersonalGroupFor("jdoe", 3000))
		assert.False(t, group.IsPersonalGroupFor("msmith", 2001))
	})
}

func TestTrustScope(t *testing.T) {
	t.Run("JSON Serialization", func(t *testing.T) {
		scope := TrustScope{
			Mode:  TrustModeByHost,
			Hosts: []string{"web01", "web02"},
		}

		data, err := json.Marshal(scope)
		require.NoError(t, err)

		var decoded TrustScope
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, TrustModeByHost, decoded.Mode)
		assert.Equal(t, []string{"web01", "web02"}, decoded.Hosts)
	})
}

func TestLifecycleEvent(t *testing.T) {
	t.Run("NewLifecycleEvent", func(t *testing.T) {
		event := NewLifecycleEvent(EventAccountActivated)

		assert.NotEmpty(t, event.ID)
		assert.Equal(t, EventAccountActivated, event.Kind)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("Event Kind Constants", func(t *testing.T) {
		assert.Equal(t, LifecycleEventKind("account.activated"), EventAccountActivated)
		assert.Equal(t, LifecycleEventKind("account.deactivated"), EventAccountDeactivated)
		assert.Equal(t, LifecycleEventKind("group.created"), EventGroupCreated)
	})
}

func TestOperatorRole(t *testing.T) {
	t.Run("OperatorRole Constants", func(t *testing.T) {
		assert.Equal(t, OperatorRole("root"), RoleRoot)
		assert.Equal(t, OperatorRole("admin"), RoleAdmin)
		assert.Equal(t, OperatorRole("operator"), RoleOperator)
		assert.Equal(t, OperatorRole("auditor"), RoleAuditor)
	})
}

func TestErrorType(t *testing.T) {
	t.Run("ErrorType Constants", func(t *testing.T) {
		assert.Equal(t, ErrorType("validation"), ErrorTypeValidation)
		assert.Equal(t, ErrorType("allocation"), ErrorTypeAllocation)
		assert.Equal(t, ErrorType("resolution"), ErrorTypeResolution)
		assert.Equal(t, ErrorType("lifecycle"), ErrorTypeLifecycle)
		assert.Equal(t, ErrorType("not_found"), ErrorTypeNotFound)
	})
}

func TestDirigoError(t *testing.T) {
	t.Run("NewDirigoError", func(t *testing.T) {
		details := map[string]interface{}{
			"field": "uid",
			"value": "",
		}

		err := NewDirigoError(ErrorTypeValidation, "uid is required", "MISSING_FIELD", details)

		assert.Equal(t, ErrorTypeValidation, err.Type)
		assert.Equal(t, "uid is required", err.Message)
		assert.Equal(t, "MISSING_FIELD", err.Code)
		assert.Equal(t, details, err.Details)
	})

	t.Run("Error Method", func(t *testing.T) {
		err := NewDirigoError(ErrorTypeInternal, "something went wrong", "INTERNAL_ERROR", nil)

		assert.Equal(t, "something went wrong", err.Error())
	})

	t.Run("JSON Serialization", func(t *testing.T) {
		err := NewDirigoError(ErrorTypeNotFound, "group not found", "GROUP_NOT_FOUND", map[string]interface{}{
			"cn": "engineering",
		})

		data, errJson := json.Marshal(err)
		require.NoError(t, errJson)

		var decoded DirigoError
		errJson = json.Unmarshal(data, &decoded)
		require.NoError(t, errJson)

		assert.Equal(t, err.Type, decoded.Type)
		assert.Equal(t, err.Message, decoded.Message)
		assert.Equal(t, err.Code, decoded.Code)
		assert.Equal(t, err.Details["cn"], decoded.Details["cn"])
	})
}

func TestContextKey(t *testing.T) {
	t.Run("ContextKey Constants", func(t *testing.T) {
		assert.Equal(t, ContextKey("operator_id"), ContextKeyOperatorID)
		assert.Equal(t, ContextKey("session_id"), ContextKeySessionID)
		assert.Equal(t, ContextKey("request_id"), ContextKeyRequestID)
		assert.Equal(t, ContextKey("trace_id"), ContextKeyTraceID)
	})
}

func TestRequestContext(t *testing.T) {
	t.Run("NewRequestContext", func(t *testing.T) {
		reqCtx := NewRequestContext("op123", "session456")

		assert.Equal(t, "op123", reqCtx.OperatorID)
		assert.Equal(t, "session456", reqCtx.SessionID)
		assert.NotEmpty(t, reqCtx.RequestID)
		assert.NotEmpty(t, reqCtx.TraceID)

		// IDs should be different
		assert.NotEqual(t, reqCtx.RequestID, reqCtx.TraceID)
	})

	t.Run("GetRequestContext", func(t *testing.T) {
		ctx := context.Background()
		ctx = context.WithValue(ctx, ContextKeyOperatorID, "op123")
		ctx = context.WithValue(ctx, ContextKeyRequestID, "req789")

		reqCtx := GetRequestContext(ctx)

		assert.Equal(t, "op123", reqCtx.OperatorID)
		assert.Equal(t, "req789", reqCtx.RequestID)
		assert.Empty(t, reqCtx.SessionID)
	})

	t.Run("GetRequestContext Empty", func(t *testing.T) {
		reqCtx := GetRequestContext(context.Background())

		assert.Empty(t, reqCtx.OperatorID)
		assert.Empty(t, reqCtx.RequestID)
	})
}
