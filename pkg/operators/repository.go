package operators

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Repository provides data access for operator management
type Repository struct {
	db     *gorm.DB
	config *Config
}

// NewRepository creates a new operator repository
func NewRepository(config *Config) (*Repository, error) {
	var db *gorm.DB
	var err error

	switch config.DatabaseType {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		db, err = gorm.Open(sqlite.Open(config.DatabasePath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.DatabaseType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{
		db:     db,
		config: config,
	}

	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := repo.initializeDefaultData(); err != nil {
		return nil, fmt.Errorf("failed to initialize default data: %w", err)
	}

	return repo, nil
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	return r.db.AutoMigrate(
		&Operator{},
		&Session{},
		&AuditLog{},
	)
}

// initializeDefaultData creates the root operator if absent
func (r *Repository) initializeDefaultData() error {
	var rootOperator Operator
	result := r.db.Where("role = ?", types.RoleRoot).First(&rootOperator)
	if result.Error == gorm.ErrRecordNotFound {
		rootOperator = Operator{
			Username: "root",
			Email:    "root@dirigo.local",
			Role:     types.RoleRoot,
			Password: "$2a$10$8K1p/a0dhrxC9H4H4X6YV.BsKvpXUTQ5PjVG8XQ4nGhf5l7wX2.2m", // Default: "admin123"
			IsActive: true,
		}

		if err := r.db.Create(&rootOperator).Error; err != nil {
			return fmt.Errorf("failed to create root operator: %w", err)
		}
	}

	return nil
}

// CreateOperator creates a new operator
func (r *Repository) CreateOperator(operator *Operator) (*Operator, error) {
	if err := r.db.Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return operator, nil
}

// GetOperator retrieves an active operator by ID
func (r *Repository) GetOperator(operatorID string) (*Operator, error) {
	var operator Operator
	if err := r.db.Where("operator_id = ? AND is_active = ?", operatorID, true).First(&operator).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return &operator, nil
}

// GetOperatorByUsername retrieves an active operator by username
func (r *Repository) GetOperatorByUsername(username string) (*Operator, error) {
	var operator Operator
	if err := r.db.Where("username = ? AND is_active = ?", username, true).First(&operator).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get operator by username: %w", err)
	}
	return &operator, nil
}

// UpdateOperator updates an operator
func (r *Repository) UpdateOperator(operator *Operator) error {
	if err := r.db.Save(operator).Error; err != nil {
		return fmt.Errorf("failed to update operator: %w", err)
	}
	return nil
}

// DeactivateOperator soft deletes an operator. The root operator is protected.
func (r *Repository) DeactivateOperator(operatorID string) error {
	result := r.db.Model(&Operator{}).Where("operator_id = ? AND role != ?", operatorID, types.RoleRoot).Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate operator: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("operator not found or cannot deactivate root operator")
	}
	return nil
}

// ListOperators returns all active operators with pagination
func (r *Repository) ListOperators(limit, offset int) ([]Operator, int64, error) {
	var operators []Operator
	var total int64

	if err := r.db.Model(&Operator{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count operators: %w", err)
	}

	query := r.db.Where("is_active = ?", true).Order("created_at")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&operators).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list operators: %w", err)
	}

	return operators, total, nil
}

// Session operations

// CreateSession creates a new session
func (r *Repository) CreateSession(session *Session) (*Session, error) {
	if err := r.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID
func (r *Repository) GetSession(sessionID string) (*Session, error) {
	var session Session
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// InvalidateSession marks a session as inactive
func (r *Repository) InvalidateSession(sessionID string) error {
	if err := r.db.Model(&Session{}).Where("session_id = ?", sessionID).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// InvalidateAllOperatorSessions marks all of an operator's sessions inactive
func (r *Repository) InvalidateAllOperatorSessions(operatorID string) error {
	if err := r.db.Model(&Session{}).Where("operator_id = ?", operatorID).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes sessions past their expiry
func (r *Repository) CleanupExpiredSessions() error {
	if err := r.db.Where("expires_at < ?", time.Now()).Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return nil
}

// Audit operations

// CreateAuditLog writes an audit entry
func (r *Repository) CreateAuditLog(entry *AuditLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit entries newest first, optionally filtered by
// operator
func (r *Repository) ListAuditLogs(operatorID string, limit, offset int) ([]AuditLog, int64, error) {
	var logs []AuditLog
	var total int64

	query := r.db.Model(&AuditLog{})
	if operatorID != "" {
		query = query.Where("operator_id = ?", operatorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	listQuery := r.db.Order("created_at DESC")
	if operatorID != "" {
		listQuery = listQuery.Where("operator_id = ?", operatorID)
	}
	if limit > 0 {
		listQuery = listQuery.Limit(limit).Offset(offset)
	}
	if err := listQuery.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, total, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
