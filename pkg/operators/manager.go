package operators

import (
	"context"
	"fmt"

	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Manager coordinates operator accounts, authentication and audit logging.
type Manager struct {
	config     *Config
	repository *Repository
	auth       *AuthService
}

// NewManager creates a new operator manager
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid operator configuration: %w", err)
	}

	repository, err := NewRepository(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize operator repository: %w", err)
	}

	return &Manager{
		config:     config,
		repository: repository,
		auth:       NewAuthService(config, repository),
	}, nil
}

// Authenticate authenticates an operator and returns an access token
func (m *Manager) Authenticate(ctx context.Context, username, password string) (string, error) {
	response, err := m.auth.Authenticate(LoginCredentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	return response.AccessToken, nil
}

// Login authenticates an operator and returns the full auth response,
// including the refresh token.
func (m *Manager) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return m.auth.Authenticate(LoginCredentials{
		Username: username,
		Password: password,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	return m.auth.RefreshToken(refreshToken)
}

// ValidateToken validates an access token and returns the operator ID
func (m *Manager) ValidateToken(ctx context.Context, token string) (string, error) {
	operator, err := m.auth.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return operator.OperatorID, nil
}

// GetOperatorRole returns the role of an operator
func (m *Manager) GetOperatorRole(ctx context.Context, operatorID string) (types.OperatorRole, error) {
	operator, err := m.repository.GetOperator(operatorID)
	if err != nil {
		return "", fmt.Errorf("failed to get operator: %w", err)
	}
	if operator == nil {
		return "", NewValidationError("operator not found")
	}
	return operator.Role, nil
}

// RecordAction writes an audit entry for a lifecycle action
func (m *Manager) RecordAction(ctx context.Context, operatorID, action, resource, resourceID string, success bool) error {
	if !m.config.EnableAuditLogging {
		return nil
	}

	return m.repository.CreateAuditLog(&AuditLog{
		OperatorID: operatorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Success:    success,
	})
}

// CreateOperator creates a new operator account
func (m *Manager) CreateOperator(ctx context.Context, username, email, password string, role types.OperatorRole) (*Operator, error) {
	if role == "" {
		role = m.config.DefaultRole
	}
	if !ValidRole(role) {
		return nil, NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}

	hashedPassword, err := m.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	operator := &Operator{
		Username: username,
		Email:    email,
		Password: hashedPassword,
		Role:     role,
		IsActive: true,
	}

	if _, err := m.repository.CreateOperator(operator); err != nil {
		return nil, err
	}

	operatorResponse := *operator
	operatorResponse.Password = ""
	return &operatorResponse, nil
}

// GetOperator returns an operator by ID with the password hash stripped
func (m *Manager) GetOperator(ctx context.Context, operatorID string) (*Operator, error) {
	operator, err := m.repository.GetOperator(operatorID)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, nil
	}
	operatorResponse := *operator
	operatorResponse.Password = ""
	return &operatorResponse, nil
}

// ListOperators lists operators with pagination
func (m *Manager) ListOperators(ctx context.Context, limit, offset int) ([]Operator, int64, error) {
	operators, total, err := m.repository.ListOperators(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range operators {
		operators[i].Password = ""
	}
	return operators, total, nil
}

// DeactivateOperator deactivates an operator account and its sessions
func (m *Manager) DeactivateOperator(ctx context.Context, operatorID string) error {
	if err := m.repository.DeactivateOperator(operatorID); err != nil {
		return err
	}
	return m.repository.InvalidateAllOperatorSessions(operatorID)
}

// ChangePassword changes an operator's password
func (m *Manager) ChangePassword(ctx context.Context, operatorID, oldPassword, newPassword string) error {
	return m.auth.ChangePassword(operatorID, oldPassword, newPassword)
}

// Logout invalidates all sessions for an operator
func (m *Manager) Logout(ctx context.Context, operatorID string) error {
	return m.auth.LogoutAll(operatorID)
}

// ListAuditLogs lists audit log entries, optionally filtered by operator
func (m *Manager) ListAuditLogs(ctx context.Context, operatorID string, limit, offset int) ([]AuditLog, int64, error) {
	return m.repository.ListAuditLogs(operatorID, limit, offset)
}

// CheckPermission reports whether an operator may perform an action on a resource
func (m *Manager) CheckPermission(ctx context.Context, operatorID, resource, action string) (bool, error) {
	role, err := m.GetOperatorRole(ctx, operatorID)
	if err != nil {
		return false, err
	}
	return HasPermission(role, resource, action), nil
}

// Close releases the manager's resources
func (m *Manager) Close() error {
	return m.repository.Close()
}

var _ interfaces.OperatorManager = (*Manager)(nil)
