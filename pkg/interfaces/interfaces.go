// Package interfaces defines the core interfaces for Dirigo components
package interfaces

import (
	"context"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

// DirectoryService is the contract the lifecycle core assumes from the
// directory/backend layer. Implementations own storage, transport, and
// atomicity; the core treats every call as blocking-until-resolved.
type DirectoryService interface {
	// SuggestNextUID returns the lowest free uidNumber >= 1000
	SuggestNextUID(ctx context.Context) (int, error)

	// SuggestNextGID returns the lowest free gidNumber >= 1000
	SuggestNextGID(ctx context.Context) (int, error)

	// UIDNumberInUse reports whether a uidNumber is already assigned
	UIDNumberInUse(ctx context.Context, uidNumber int) (bool, error)

	// GIDNumberInUse reports whether a gidNumber is already assigned
	GIDNumberInUse(ctx context.Context, gidNumber int) (bool, error)

	// GroupExists reports whether a group with the given gidNumber exists
	GroupExists(ctx context.Context, gidNumber int) (bool, error)

	// GroupByCN retrieves a group by name, nil if not found
	GroupByCN(ctx context.Context, cn string) (*types.PosixGroup, error)

	// CreateGroup creates a new POSIX group
	CreateGroup(ctx context.Context, cn string, gidNumber int, description string) (*types.PosixGroup, error)

	// DeleteGroupIfEmpty deletes a group only when it has no members,
	// returning whether a deletion happened
	DeleteGroupIfEmpty(ctx context.Context, cn string) (bool, error)

	// AddGroupMember adds a username to a group's member list
	AddGroupMember(ctx context.Context, cn, uid string) error

	// RemoveGroupMember removes a username from a group's member list
	RemoveGroupMember(ctx context.Context, cn, uid string) error

	// SetGroupTrust stores a trust scope on a group
	SetGroupTrust(ctx context.Context, cn string, trust *types.TrustScope) error

	// GetPosixAccount retrieves the POSIX attribute set for a user,
	// nil if the user has no POSIX attributes
	GetPosixAccount(ctx context.Context, uid string) (*types.PosixAccount, error)

	// WritePosixAttributes persists a full attribute set for a user
	WritePosixAttributes(ctx context.Context, uid string, account *types.PosixAccount) error

	// ApplyPosixChanges applies a sparse attribute patch to a user
	ApplyPosixChanges(ctx context.Context, uid string, changes map[string]interface{}) error

	// RemovePosixAttributes strips all POSIX attributes from a user.
	// The owning directory entry is not destroyed.
	RemovePosixAttributes(ctx context.Context, uid string) error

	// GetShadowFields reads the shadow aging attributes for status display
	GetShadowFields(ctx context.Context, uid string) (*types.ShadowFields, error)

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error

	// Close closes the backend connection
	Close() error
}

// AccountCache is a read-through cache over directory lookups. Derived
// status values are never cached, only raw directory reads.
type AccountCache interface {
	// GetAccount retrieves a cached account, nil on miss
	GetAccount(ctx context.Context, uid string) (*types.PosixAccount, error)

	// SetAccount caches an account
	SetAccount(ctx context.Context, account *types.PosixAccount) error

	// GetGroup retrieves a cached group, nil on miss
	GetGroup(ctx context.Context, cn string) (*types.PosixGroup, error)

	// SetGroup caches a group
	SetGroup(ctx context.Context, group *types.PosixGroup) error

	// InvalidateAccount drops a cached account
	InvalidateAccount(ctx context.Context, uid string) error

	// InvalidateGroup drops a cached group
	InvalidateGroup(ctx context.Context, cn string) error

	// Close closes the cache connection
	Close() error
}

// EventPublisher publishes lifecycle events after successful mutations.
// Publishing is best-effort and must never fail a lifecycle operation.
type EventPublisher interface {
	// Publish publishes a lifecycle event
	Publish(ctx context.Context, event *types.LifecycleEvent) error

	// Close closes the publisher connection
	Close() error
}

// IdentityCore defines the facade consumed by the API, CLI, and MCP surfaces
type IdentityCore interface {
	// Initialize initializes the core and its collaborators
	Initialize(ctx context.Context) error

	// ActivateAccount provisions POSIX attributes for a directory user
	ActivateAccount(ctx context.Context, req *ActivationRequest) (*types.PosixAccount, error)

	// UpdateAccount applies a sparse attribute patch to an active account
	UpdateAccount(ctx context.Context, uid string, patch *AccountPatch) (*types.PosixAccount, error)

	// DeactivateAccount strips POSIX attributes from an account
	DeactivateAccount(ctx context.Context, uid string, deletePersonalGroup bool) error

	// GetAccount retrieves an account's POSIX attributes
	GetAccount(ctx context.Context, uid string) (*types.PosixAccount, error)

	// AccountStatus derives the operational status from the shadow fields
	AccountStatus(ctx context.Context, uid string) (types.AccountStatus, error)

	// CreateGroup creates a standalone POSIX group
	CreateGroup(ctx context.Context, req *GroupCreateRequest) (*types.PosixGroup, error)

	// DeleteGroup deletes a group if it has no members
	DeleteGroup(ctx context.Context, cn string) (bool, error)

	// GetGroup retrieves a group by name
	GetGroup(ctx context.Context, cn string) (*types.PosixGroup, error)

	// AddGroupMember adds a user to a group
	AddGroupMember(ctx context.Context, cn, uid string) error

	// RemoveGroupMember removes a user from a group
	RemoveGroupMember(ctx context.Context, cn, uid string) error

	// SetUserTrust validates and stores a trust scope on a user
	SetUserTrust(ctx context.Context, uid string, mode types.TrustMode, hosts []string) error

	// SetGroupTrust validates and stores a trust scope on a group
	SetGroupTrust(ctx context.Context, cn string, mode types.TrustMode, hosts []string) error

	// HealthCheck reports the health of the core and its collaborators
	HealthCheck(ctx context.Context) (map[string]interface{}, error)

	// Close closes the core
	Close() error
}

// ActivationRequest carries the candidate attribute set and the
// allocation/trust options for an activation call
type ActivationRequest struct {
	UID           string                 `json:"uid" validate:"required"`
	UIDNumber     *int                   `json:"uid_number,omitempty"`
	ForceUID      bool                   `json:"force_uid,omitempty"`
	GroupMode     types.PrimaryGroupMode `json:"group_mode" validate:"required,oneof=select_existing create_personal"`
	GIDNumber     *int                   `json:"gid_number,omitempty"`
	ForceGID      bool                   `json:"force_gid,omitempty"`
	HomeDirectory string                 `json:"home_directory,omitempty"`
	LoginShell    string                 `json:"login_shell,omitempty"`
	GECOS         string                 `json:"gecos,omitempty"`
	Shadow        types.ShadowFields     `json:"shadow,omitempty"`
	TrustMode     types.TrustMode        `json:"trust_mode,omitempty"`
	TrustHosts    []string               `json:"trust_hosts,omitempty"`
	OperatorID    string                 `json:"-"`
}

// AccountPatch is a sparse attribute patch for an active account.
// Nil fields are left untouched. UIDNumber is present only to be rejected:
// it is immutable after creation.
type AccountPatch struct {
	UIDNumber     *int                `json:"uid_number,omitempty"`
	GIDNumber     *int                `json:"gid_number,omitempty"`
	HomeDirectory *string             `json:"home_directory,omitempty"`
	LoginShell    *string             `json:"login_shell,omitempty"`
	GECOS         *string             `json:"gecos,omitempty"`
	Shadow        *types.ShadowFields `json:"shadow,omitempty"`
	TrustMode     *types.TrustMode    `json:"trust_mode,omitempty"`
	TrustHosts    []string            `json:"trust_hosts,omitempty"`
	OperatorID    string              `json:"-"`
}

// GroupCreateRequest carries the inputs for standalone group creation
type GroupCreateRequest struct {
	CN          string          `json:"cn" validate:"required"`
	GIDNumber   *int            `json:"gid_number,omitempty"`
	ForceGID    bool            `json:"force_gid,omitempty"`
	Description string          `json:"description,omitempty"`
	TrustMode   types.TrustMode `json:"trust_mode,omitempty"`
	TrustHosts  []string        `json:"trust_hosts,omitempty"`
	OperatorID  string          `json:"-"`
}

// OperatorManager defines the interface for console operator management
type OperatorManager interface {
	// Authenticate authenticates an operator with username and password
	Authenticate(ctx context.Context, username, password string) (string, error)

	// ValidateToken validates an access token and returns the operator ID
	ValidateToken(ctx context.Context, token string) (string, error)

	// GetOperatorRole returns the role of an operator
	GetOperatorRole(ctx context.Context, operatorID string) (types.OperatorRole, error)

	// RecordAction writes an audit entry for a lifecycle action
	RecordAction(ctx context.Context, operatorID, action, resource, resourceID string, success bool) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	// Load loads configuration from a file
	Load(ctx context.Context, path string) error

	// Get retrieves a configuration value
	Get(key string) interface{}

	// Set sets a configuration value
	Set(key string, value interface{}) error

	// Save saves configuration to a file
	Save(ctx context.Context, path string) error

	// Watch watches for configuration changes
	Watch(ctx context.Context, callback func(key string, value interface{})) error
}

// Logger defines the interface for logging implementations
type Logger interface {
	// Debug logs debug level messages
	Debug(msg string, fields ...map[string]interface{})

	// Info logs info level messages
	Info(msg string, fields ...map[string]interface{})

	// Warn logs warning level messages
	Warn(msg string, fields ...map[string]interface{})

	// Error logs error level messages
	Error(msg string, err error, fields ...map[string]interface{})

	// Fatal logs fatal level messages and exits
	Fatal(msg string, err error, fields ...map[string]interface{})

	// WithFields returns a logger with additional fields
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for metrics collection
type Metrics interface {
	// Counter increments a counter metric
	Counter(name string, value float64, labels map[string]string)

	// Gauge sets a gauge metric
	Gauge(name string, value float64, labels map[string]string)

	// Histogram records a histogram metric
	Histogram(name string, value float64, labels map[string]string)

	// Timer records timing metrics
	Timer(name string, duration float64, labels map[string]string)
}

// HealthChecker defines the interface for health checking
type HealthChecker interface {
	// Check performs a health check
	Check(ctx context.Context) error

	// GetStatus returns the current health status
	GetStatus() string

	// RegisterCheck registers a health check
	RegisterCheck(name string, check func(ctx context.Context) error)
}
