// Package operators provides console operator management, authentication,
// and audit logging for Dirigo.
package operators

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Operator represents a console operator
type Operator struct {
	OperatorID string             `gorm:"primaryKey;type:varchar(36)" json:"operator_id"`
	Username   string             `gorm:"uniqueIndex;not null" json:"username"`
	Email      string             `gorm:"uniqueIndex" json:"email,omitempty"`
	Role       types.OperatorRole `gorm:"not null;default:'operator'" json:"role"`
	Password   string             `gorm:"not null" json:"-"` // Password hash, never returned in JSON
	CreatedAt  time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time          `gorm:"not null" json:"updated_at"`
	IsActive   bool               `gorm:"not null;default:true" json:"is_active"`

	Sessions  []Session  `gorm:"foreignKey:OperatorID;constraint:OnDelete:CASCADE" json:"-"`
	AuditLogs []AuditLog `gorm:"foreignKey:OperatorID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate hook for Operator model
func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.OperatorID == "" {
		o.OperatorID = uuid.New().String()
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate hook for Operator model
func (o *Operator) BeforeUpdate(tx *gorm.DB) error {
	o.UpdatedAt = time.Now()
	return nil
}

// Session represents an operator authentication session
type Session struct {
	SessionID  string    `gorm:"primaryKey;type:varchar(36)" json:"session_id"`
	OperatorID string    `gorm:"not null;type:varchar(36)" json:"operator_id"`
	Token      string    `gorm:"not null;uniqueIndex" json:"-"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`

	Operator Operator `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
}

// BeforeCreate hook for Session model
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.SessionID == "" {
		s.SessionID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	return nil
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuditLog records a lifecycle or administrative action taken by an operator
type AuditLog struct {
	LogID      string    `gorm:"primaryKey;type:varchar(36)" json:"log_id"`
	OperatorID string    `gorm:"type:varchar(36);index" json:"operator_id,omitempty"`
	Action     string    `gorm:"not null" json:"action"`
	Resource   string    `gorm:"not null" json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	Success    bool      `gorm:"not null" json:"success"`

	Operator Operator `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
}

// BeforeCreate hook for AuditLog model
func (al *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if al.LogID == "" {
		al.LogID = uuid.New().String()
	}
	al.CreatedAt = time.Now()
	return nil
}

// HasPermission checks if an operator role may perform an action on a resource
func HasPermission(role types.OperatorRole, resource, action string) bool {
	// Root has all permissions
	if role == types.RoleRoot {
		return true
	}

	rolePermissions := map[types.OperatorRole]map[string][]string{
		types.RoleAdmin: {
			"accounts":  {"create", "read", "update", "delete"},
			"groups":    {"create", "read", "update", "delete"},
			"trust":     {"read", "update"},
			"operators": {"create", "read", "update", "delete"},
			"system":    {"read"},
		},
		types.RoleOperator: {
			"accounts": {"create", "read", "update", "delete"},
			"groups":   {"create", "read", "update", "delete"},
			"trust":    {"read", "update"},
			"system":   {"read"},
		},
		types.RoleAuditor: {
			"accounts": {"read"},
			"groups":   {"read"},
			"trust":    {"read"},
			"system":   {"read"},
		},
	}

	if permissions, exists := rolePermissions[role]; exists {
		if actions, resourceExists := permissions[resource]; resourceExists {
			for _, allowedAction := range actions {
				if allowedAction == action {
					return true
				}
			}
		}
	}

	return false
}

// ValidRole checks if a role string is a known operator role
func ValidRole(role types.OperatorRole) bool {
	switch role {
	case types.RoleRoot, types.RoleAdmin, types.RoleOperator, types.RoleAuditor:
		return true
	default:
		return false
	}
}
