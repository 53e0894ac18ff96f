package operators

import (
	"time"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Config holds the configuration for operator management
type Config struct {
	// Database configuration
	DatabaseType string `json:"database_type" yaml:"database_type"`
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// Authentication configuration
	JWTSecret          string        `json:"jwt_secret" yaml:"jwt_secret"`
	JWTExpirationTime  time.Duration `json:"jwt_expiration_time" yaml:"jwt_expiration_time"`
	SessionTimeout     time.Duration `json:"session_timeout" yaml:"session_timeout"`
	RefreshTokenExpiry time.Duration `json:"refresh_token_expiry" yaml:"refresh_token_expiry"`

	// Password policy configuration
	PasswordPolicy PasswordPolicy `json:"password_policy" yaml:"password_policy"`

	// Security configuration
	EnableAuditLogging bool `json:"enable_audit_logging" yaml:"enable_audit_logging"`

	// Default role for newly created operators
	DefaultRole types.OperatorRole `json:"default_role" yaml:"default_role"`
}

// PasswordPolicy defines password requirements
type PasswordPolicy struct {
	MinLength        int  `json:"min_length" yaml:"min_length"`
	RequireUppercase bool `json:"require_uppercase" yaml:"require_uppercase"`
	RequireLowercase bool `json:"require_lowercase" yaml:"require_lowercase"`
	RequireNumbers   bool `json:"require_numbers" yaml:"require_numbers"`
	RequireSymbols   bool `json:"require_symbols" yaml:"require_symbols"`
}

// DefaultConfig returns a default operator management configuration
func DefaultConfig() *Config {
	return &Config{
		DatabaseType: "sqlite",
		DatabasePath: "./data/operators.db",

		JWTExpirationTime:  24 * time.Hour,
		SessionTimeout:     8 * time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,

		PasswordPolicy: PasswordPolicy{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumbers:   true,
			RequireSymbols:   false,
		},

		EnableAuditLogging: true,
		DefaultRole:        types.RoleOperator,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseType == "" {
		return NewValidationError("database_type is required")
	}
	if c.DatabaseType == "sqlite" && c.DatabasePath == "" {
		return NewValidationError("database_path is required for SQLite")
	}
	if c.JWTSecret == "" {
		return NewValidationError("jwt_secret is required")
	}
	if !ValidRole(c.DefaultRole) {
		return NewValidationError("invalid default_role")
	}
	if c.PasswordPolicy.MinLength < 4 {
		return NewValidationError("password minimum length must be at least 4")
	}
	return nil
}

// ValidationError represents a configuration or input validation error
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(message string) error {
	return ValidationError{Message: message}
}
