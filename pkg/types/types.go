// Package types defines the core types and interfaces for Dirigo
package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountStatus represents the derived operational status of a POSIX account.
// It is computed from the shadow aging fields on every read and never stored.
type AccountStatus string

const (
	StatusActive          AccountStatus = "active"
	StatusExpired         AccountStatus = "expired"
	StatusPasswordExpired AccountStatus = "password_expired"
	StatusGraceTime       AccountStatus = "grace_time"
	StatusLocked          AccountStatus = "locked"
)

// String returns the string representation of AccountStatus
func (s AccountStatus) String() string {
	return string(s)
}

// PrimaryGroupMode represents how a user's primary Unix group is established
type PrimaryGroupMode string

const (
	// GroupModeSelectExisting attaches the account to an existing POSIX group
	GroupModeSelectExisting PrimaryGroupMode = "select_existing"
	// GroupModeCreatePersonal auto-creates a personal group named after the user
	GroupModeCreatePersonal PrimaryGroupMode = "create_personal"
)

// IsValid checks if the PrimaryGroupMode is a known mode
func (m PrimaryGroupMode) IsValid() bool {
	switch m {
	case GroupModeSelectExisting, GroupModeCreatePersonal:
		return true
	default:
		return false
	}
}

// TrustMode represents a system-access-scope declaration
type TrustMode string

const (
	TrustModeNone       TrustMode = "none"
	TrustModeFullAccess TrustMode = "fullaccess"
	TrustModeByHost     TrustMode = "byhost"
)

// IsValid checks if the TrustMode is a known mode
func (m TrustMode) IsValid() bool {
	switch m {
	case TrustModeNone, TrustModeFullAccess, TrustModeByHost:
		return true
	default:
		return false
	}
}

// TrustScope declares which managed systems a user or group may access.
// Hosts is non-empty iff Mode is TrustModeByHost.
type TrustScope struct {
	Mode  TrustMode `json:"mode" validate:"required,oneof=none fullaccess byhost"`
	Hosts []string  `json:"hosts,omitempty"`
}

// ShadowFields holds the password-aging attributes modeled on /etc/shadow.
// Nil pointers mean the attribute is absent from the directory entry.
// Day values are days since the Unix epoch.
type ShadowFields struct {
	LastChange *int64 `json:"shadow_last_change,omitempty"`
	Min        *int64 `json:"shadow_min,omitempty"`
	Max        *int64 `json:"shadow_max,omitempty"`
	Warning    *int64 `json:"shadow_warning,omitempty"`
	Inactive   *int64 `json:"shadow_inactive,omitempty" validate:"omitempty"`
	Expire     *int64 `json:"shadow_expire,omitempty"`
}

// PosixAccount is the Unix-login attribute set attached to a directory user
type PosixAccount struct {
	UID           string       `json:"uid" validate:"required"`
	UIDNumber     int          `json:"uid_number" validate:"required,gte=1000"`
	GIDNumber     int          `json:"gid_number" validate:"required,gte=1000"`
	HomeDirectory string       `json:"home_directory" validate:"required"`
	LoginShell    string       `json:"login_shell" validate:"required"`
	GECOS         string       `json:"gecos,omitempty"`
	Shadow        ShadowFields `json:"shadow"`
	Trust         *TrustScope  `json:"trust,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PosixGroup represents a POSIX group in the directory
type PosixGroup struct {
	CN          string      `json:"cn" validate:"required"`
	GIDNumber   int         `json:"gid_number" validate:"required,gte=1000"`
	Description string      `json:"description,omitempty"`
	MemberUIDs  []string    `json:"member_uids,omitempty"`
	Trust       *TrustScope `json:"trust,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsPersonalGroupFor reports whether the group follows the personal-group
// naming convention for the given account. Personal groups carry no stored
// flag; the linkage is the name plus a matching primary GID.
func (g *PosixGroup) IsPersonalGroupFor(uid string, gidNumber int) bool {
	return g.CN == uid && g.GIDNumber == gidNumber
}

// DirectoryUser represents the owning directory entry a POSIX account is
// attached to. The entry itself survives deactivation.
type DirectoryUser struct {
	UID         string    `json:"uid" validate:"required"`
	CommonName  string    `json:"cn,omitempty"`
	Mail        string    `json:"mail,omitempty"`
	HasPosix    bool      `json:"has_posix"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LifecycleEventKind identifies a published lifecycle event
type LifecycleEventKind string

const (
	EventAccountActivated   LifecycleEventKind = "account.activated"
	EventAccountUpdated     LifecycleEventKind = "account.updated"
	EventAccountDeactivated LifecycleEventKind = "account.deactivated"
	EventGroupCreated       LifecycleEventKind = "group.created"
	EventGroupDeleted       LifecycleEventKind = "group.deleted"
)

// LifecycleEvent is published after a successful lifecycle mutation
type LifecycleEvent struct {
	ID         string             `json:"id"`
	Kind       LifecycleEventKind `json:"kind"`
	UID        string             `json:"uid,omitempty"`
	GroupCN    string             `json:"group_cn,omitempty"`
	UIDNumber  int                `json:"uid_number,omitempty"`
	GIDNumber  int                `json:"gid_number,omitempty"`
	OperatorID string             `json:"operator_id,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// NewLifecycleEvent creates a lifecycle event with a generated ID
func NewLifecycleEvent(kind LifecycleEventKind) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.New().String(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
}

// OperatorRole represents the role of a console operator
type OperatorRole string

const (
	RoleRoot     OperatorRole = "root"     // Root operator with all permissions
	RoleAdmin    OperatorRole = "admin"    // Admin with account and group management
	RoleOperator OperatorRole = "operator" // Day-to-day provisioning operator
	RoleAuditor  OperatorRole = "auditor"  // Read-only access
)

// BackendType represents the type of directory backend
type BackendType string

const (
	BackendSQLite BackendType = "sqlite"
	BackendNeo4j  BackendType = "neo4j"
	BackendRedis  BackendType = "redis"
)

// Error types for better error handling
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeAllocation   ErrorType = "allocation"
	ErrorTypeResolution   ErrorType = "resolution"
	ErrorTypeLifecycle    ErrorType = "lifecycle"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
)

// DirigoError represents a structured error in Dirigo
type DirigoError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DirigoError) Error() string {
	return e.Message
}

// NewDirigoError creates a new Dirigo error
func NewDirigoError(errType ErrorType, message string, code string, details map[string]interface{}) *DirigoError {
	return &DirigoError{
		Type:    errType,
		Message: message,
		Code:    code,
		Details: details,
	}
}

// Context keys for request context
type ContextKey string

const (
	ContextKeyOperatorID ContextKey = "operator_id"
	ContextKeySessionID  ContextKey = "session_id"
	ContextKeyRequestID  ContextKey = "request_id"
	ContextKeyTraceID    ContextKey = "trace_id"
)

// RequestContext holds request-specific context information
type RequestContext struct {
	OperatorID string
	SessionID  string
	RequestID  string
	TraceID    string
}

// GetRequestContext extracts request context from Go context
func GetRequestContext(ctx context.Context) *RequestContext {
	return &RequestContext{
		OperatorID: getStringFromContext(ctx, ContextKeyOperatorID),
		SessionID:  getStringFromContext(ctx, ContextKeySessionID),
		RequestID:  getStringFromContext(ctx, ContextKeyRequestID),
		TraceID:    getStringFromContext(ctx, ContextKeyTraceID),
	}
}

// helper function to extract string from context
func getStringFromContext(ctx context.Context, key ContextKey) string {
	if value := ctx.Value(key); value != nil {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return ""
}

// NewRequestContext creates a new request context with generated IDs
func NewRequestContext(operatorID, sessionID string) *RequestContext {
	return &RequestContext{
		OperatorID: operatorID,
		SessionID:  sessionID,
		RequestID:  uuid.New().String(),
		TraceID:    uuid.New().String(),
	}
}
