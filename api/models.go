package api

import "github.com/dirigo-idm/dirigo/pkg/types"

// BaseResponse represents the base structure for all API responses
type BaseResponse[T any] struct {
	Code    int    `json:"code" example:"200"`
	Message string `json:"message" example:"Operation successful"`
	Data    *T     `json:"data,omitempty"`
}

// SimpleResponse for operations without data return
type SimpleResponse = BaseResponse[interface{}]

// AccountActivateRequest represents an account activation request
type AccountActivateRequest struct {
	UID           string                 `json:"uid" binding:"required" example:"jdoe"`
	UIDNumber     *int                   `json:"uid_number,omitempty" example:"2001"`
	ForceUID      bool                   `json:"force_uid,omitempty"`
	GroupMode     types.PrimaryGroupMode `json:"group_mode,omitempty" example:"create_personal"`
	GIDNumber     *int                   `json:"gid_number,omitempty" example:"2001"`
	ForceGID      bool                   `json:"force_gid,omitempty"`
	HomeDirectory string                 `json:"home_directory,omitempty" example:"/home/jdoe"`
	LoginShell    string                 `json:"login_shell,omitempty" example:"/bin/bash"`
	GECOS         string                 `json:"gecos,omitempty" example:"Jane Doe"`
	Shadow        types.ShadowFields     `json:"shadow,omitempty"`
	TrustMode     types.TrustMode        `json:"trust_mode,omitempty" example:"byhost"`
	TrustHosts    []string               `json:"trust_hosts,omitempty"`
}

// AccountUpdateRequest represents a sparse account update request
type AccountUpdateRequest struct {
	UIDNumber     *int                `json:"uid_number,omitempty"`
	GIDNumber     *int                `json:"gid_number,omitempty"`
	HomeDirectory *string             `json:"home_directory,omitempty"`
	LoginShell    *string             `json:"login_shell,omitempty"`
	GECOS         *string             `json:"gecos,omitempty"`
	Shadow        *types.ShadowFields `json:"shadow,omitempty"`
	TrustMode     *types.TrustMode    `json:"trust_mode,omitempty"`
	TrustHosts    []string            `json:"trust_hosts,omitempty"`
}

// GroupRequest represents a group creation request
type GroupRequest struct {
	CN          string          `json:"cn" binding:"required" example:"engineering"`
	GIDNumber   *int            `json:"gid_number,omitempty" example:"3000"`
	ForceGID    bool            `json:"force_gid,omitempty"`
	Description string          `json:"description,omitempty" example:"Engineering department"`
	TrustMode   types.TrustMode `json:"trust_mode,omitempty"`
	TrustHosts  []string        `json:"trust_hosts,omitempty"`
}

// TrustRequest represents a trust scope update request
type TrustRequest struct {
	Mode  types.TrustMode `json:"mode" binding:"required" example:"byhost"`
	Hosts []string        `json:"hosts,omitempty" example:"web01,web02"`
}

// LoginRequest represents an operator login request
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"root"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Response types
type AccountResponse = BaseResponse[types.PosixAccount]
type GroupResponse = BaseResponse[types.PosixGroup]
type StatusResponse = BaseResponse[map[string]interface{}]

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]interface{} `json:"checks"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// MetricsResponse represents metrics response
type MetricsResponse struct {
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Metrics   map[string]interface{} `json:"metrics"`
}
