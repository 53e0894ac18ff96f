package directory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// posixEntry is the persisted POSIX attribute set of a directory user
type posixEntry struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	UID           string `gorm:"uniqueIndex;not null"`
	UIDNumber     int    `gorm:"uniqueIndex;not null"`
	GIDNumber     int    `gorm:"column:gid_number;not null;index"`
	HomeDirectory string `gorm:"not null"`
	LoginShell    string `gorm:"not null"`
	GECOS         string

	ShadowLastChange *int64
	ShadowMin        *int64
	ShadowMax        *int64
	ShadowWarning    *int64
	ShadowInactive   *int64
	ShadowExpire     *int64

	TrustMode  string
	TrustHosts string // comma-joined host list

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (posixEntry) TableName() string {
	return "posix_entries"
}

// groupEntry is a persisted POSIX group
type groupEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	CN          string `gorm:"uniqueIndex;not null"`
	GIDNumber   int    `gorm:"column:gid_number;uniqueIndex;not null"`
	Description string

	TrustMode  string
	TrustHosts string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (groupEntry) TableName() string {
	return "group_entries"
}

// groupMember links a username to a group
type groupMember struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	GroupCN   string `gorm:"index:idx_group_member,unique;not null"`
	MemberUID string `gorm:"index:idx_group_member,unique;not null"`
	CreatedAt time.Time
}

func (groupMember) TableName() string {
	return "group_members"
}

// SQLiteDirectory implements DirectoryService on an embedded SQLite database
type SQLiteDirectory struct {
	*BaseDirectory
	db *gorm.DB
}

// NewSQLiteDirectory creates a SQLite-backed directory
func NewSQLiteDirectory(cfg *config.DirectoryConfig, logger interfaces.Logger, metrics interfaces.Metrics) (*SQLiteDirectory, error) {
	if cfg == nil {
		cfg = config.NewDirectoryConfig()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	start := time.Now()
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}

	if err := db.AutoMigrate(&posixEntry{}, &groupEntry{}, &groupMember{}); err != nil {
		return nil, fmt.Errorf("failed to migrate directory schema: %w", err)
	}

	sd := &SQLiteDirectory{
		BaseDirectory: NewBaseDirectory(cfg, logger, metrics),
		db:            db,
	}
	sd.stats.mu.Lock()
	sd.stats.connectionTime = time.Since(start)
	sd.stats.mu.Unlock()
	sd.UpdateHealth("healthy", nil)

	logger.Info("connected to SQLite directory", map[string]interface{}{
		"path": cfg.Path,
	})
	return sd, nil
}

func (sd *SQLiteDirectory) checkOpen() error {
	if sd.IsClosed() {
		return errors.NewDirectoryError("directory backend is closed")
	}
	return nil
}

// SuggestNextUID returns the lowest free uidNumber >= 1000
func (sd *SQLiteDirectory) SuggestNextUID(ctx context.Context) (int, error) {
	if err := sd.checkOpen(); err != nil {
		return 0, err
	}

	start := time.Now()
	var used []int
	err := sd.db.WithContext(ctx).Model(&posixEntry{}).
		Where("uid_number >= ?", MinID).
		Order("uid_number").
		Pluck("uid_number", &used).Error
	sd.RecordQuery(err == nil, time.Since(start))
	if err != nil {
		return 0, errors.NewQueryFailedError("suggest next uid", err)
	}

	return nextFreeID(used), nil
}

// SuggestNextGID returns the lowest free gidNumber >= 1000
func (sd *SQLiteDirectory) SuggestNextGID(ctx context.Context) (int, error) {
	if err := sd.checkOpen(); err != nil {
		return 0, err
	}

	start := time.Now()
	var used []int
	err := sd.db.WithContext(ctx).Model(&groupEntry{}).
		Where("gid_number >= ?", MinID).
		Order("gid_number").
		Pluck("gid_number", &used).Error
	sd.RecordQuery(err == nil, time.Since(start))
	if err != nil {
		return 0, errors.NewQueryFailedError("suggest next gid", err)
	}

	return nextFreeID(used), nil
}

// UIDNumberInUse reports whether a uidNumber is already assigned
func (sd *SQLiteDirectory) UIDNumberInUse(ctx context.Context, uidNumber int) (bool, error) {
	if err := sd.checkOpen(); err != nil {
		return false, err
	}

	var count int64
	err := sd.db.WithContext(ctx).Model(&posixEntry{}).Where("uid_number = ?", uidNumber).Count(&count).Error
	if err != nil {
		return false, errors.NewQueryFailedError("uid in use", err)
	}
	return count > 0, nil
}

// GIDNumberInUse reports whether a gidNumber is already assigned
func (sd *SQLiteDirectory) GIDNumberInUse(ctx context.Context, gidNumber int) (bool, error) {
	if err := sd.checkOpen(); err != nil {
		return false, err
	}

	var count int64
	err := sd.db.WithContext(ctx).Model(&groupEntry{}).Where("gid_number = ?", gidNumber).Count(&count).Error
	if err != nil {
		return false, errors.NewQueryFailedError("gid in use", err)
	}
	return count > 0, nil
}

// GroupExists reports whether a group with the given gidNumber exists
func (sd *SQLiteDirectory) GroupExists(ctx context.Context, gidNumber int) (bool, error) {
	return sd.GIDNumberInUse(ctx, gidNumber)
}

// GroupByCN retrieves a group by name, nil if not found
func (sd *SQLiteDirectory) GroupByCN(ctx context.Context, cn string) (*types.PosixGroup, error) {
	if err := sd.checkOpen(); err != nil {
		return nil, err
	}

	var entry groupEntry
	err := sd.db.WithContext(ctx).Where("cn = ?", cn).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("group by cn", err)
	}

	var members []string
	if err := sd.db.WithContext(ctx).Model(&groupMember{}).
		Where("group_cn = ?", cn).
		Order("member_uid").
		Pluck("member_uid", &members).Error; err != nil {
		return nil, errors.NewQueryFailedError("group members", err)
	}

	return groupEntryToType(&entry, members), nil
}

// CreateGroup creates a new POSIX group
func (sd *SQLiteDirectory) CreateGroup(ctx context.Context, cn string, gidNumber int, description string) (*types.PosixGroup, error) {
	if err := sd.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	entry := &groupEntry{
		CN:          cn,
		GIDNumber:   gidNumber,
		Description: description,
	}

	err := sd.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&groupEntry{}).Where("cn = ? OR gid_number = ?", cn, gidNumber).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.NewAlreadyExistsError("group")
		}
		return tx.Create(entry).Error
	})
	sd.RecordQuery(err == nil, time.Since(start))
	if err != nil {
		if errors.IsDirigoError(err) {
			return nil, err
		}
		return nil, errors.NewTransactionFailedError(err)
	}

	sd.logger.Info("group created", map[string]interface{}{
		"cn":  cn,
		"gid": gidNumber,
	})
	return groupEntryToType(entry, nil), nil
}

// DeleteGroupIfEmpty deletes a group only when it has no members, returning
// whether a deletion happened. A missing group counts as not deleted.
func (sd *SQLiteDirectory) DeleteGroupIfEmpty(ctx context.Context, cn string) (bool, error) {
	if err := sd.checkOpen(); err != nil {
		return false, err
	}

	start := time.Now()
	deleted := false
	err := sd.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry groupEntry
		if err := tx.Where("cn = ?", cn).First(&entry).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}

		var members int64
		if err := tx.Model(&groupMember{}).Where("group_cn = ?", cn).Count(&members).Error; err != nil {
			return err
		}
		if members > 0 {
			return nil
		}

		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	sd.RecordQuery(err == nil, time.Since(start))
	if err != nil {
		return false, errors.NewTransactionFailedError(err)
	}

	return deleted, nil
}

// AddGroupMember adds a username to a group's member list
func (sd *SQLiteDirectory) AddGroupMember(ctx context.Context, cn, uid string) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	return sd.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&groupEntry{}).Where("cn = ?", cn).Count(&count).Error; err != nil {
			return errors.NewQueryFailedError("group lookup", err)
		}
		if count == 0 {
			return errors.NewNotFoundError("group " + cn)
		}

		var existing int64
		if err := tx.Model(&groupMember{}).Where("group_cn = ? AND member_uid = ?", cn, uid).Count(&existing).Error; err != nil {
			return errors.NewQueryFailedError("member lookup", err)
		}
		if existing > 0 {
			return nil
		}
		return tx.Create(&groupMember{GroupCN: cn, MemberUID: uid}).Error
	})
}

// RemoveGroupMember removes a username from a group's member list
func (sd *SQLiteDirectory) RemoveGroupMember(ctx context.Context, cn, uid string) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	err := sd.db.WithContext(ctx).Where("group_cn = ? AND member_uid = ?", cn, uid).Delete(&groupMember{}).Error
	if err != nil {
		return errors.NewQueryFailedError("remove member", err)
	}
	return nil
}

// SetGroupTrust stores a trust scope on a group
func (sd *SQLiteDirectory) SetGroupTrust(ctx context.Context, cn string, trust *types.TrustScope) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	mode, hosts := flattenTrust(trust)
	result := sd.db.WithContext(ctx).Model(&groupEntry{}).Where("cn = ?", cn).Updates(map[string]interface{}{
		"trust_mode":  mode,
		"trust_hosts": hosts,
	})
	if result.Error != nil {
		return errors.NewQueryFailedError("set group trust", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("group " + cn)
	}
	return nil
}

// GetPosixAccount retrieves the POSIX attribute set for a user, nil if the
// user has no POSIX attributes
func (sd *SQLiteDirectory) GetPosixAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	if err := sd.checkOpen(); err != nil {
		return nil, err
	}

	var entry posixEntry
	err := sd.db.WithContext(ctx).Where("uid = ?", uid).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("get account", err)
	}

	return posixEntryToType(&entry), nil
}

// WritePosixAttributes persists a full attribute set for a user
func (sd *SQLiteDirectory) WritePosixAttributes(ctx context.Context, uid string, account *types.PosixAccount) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	mode, hosts := flattenTrust(account.Trust)
	entry := &posixEntry{
		UID:              uid,
		UIDNumber:        account.UIDNumber,
		GIDNumber:        account.GIDNumber,
		HomeDirectory:    account.HomeDirectory,
		LoginShell:       account.LoginShell,
		GECOS:            account.GECOS,
		ShadowLastChange: account.Shadow.LastChange,
		ShadowMin:        account.Shadow.Min,
		ShadowMax:        account.Shadow.Max,
		ShadowWarning:    account.Shadow.Warning,
		ShadowInactive:   account.Shadow.Inactive,
		ShadowExpire:     account.Shadow.Expire,
		TrustMode:        mode,
		TrustHosts:       hosts,
	}

	err := sd.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&posixEntry{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.NewAlreadyExistsError("posix account")
		}
		return tx.Create(entry).Error
	})
	sd.RecordQuery(err == nil, time.Since(start))
	if err != nil {
		if errors.IsDirigoError(err) {
			return err
		}
		return errors.NewTransactionFailedError(err)
	}
	return nil
}

// ApplyPosixChanges applies a sparse attribute patch to a user
func (sd *SQLiteDirectory) ApplyPosixChanges(ctx context.Context, uid string, changes map[string]interface{}) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	columns := make(map[string]interface{})
	for key, value := range changes {
		switch key {
		case "gid_number":
			columns["gid_number"] = value
		case "home_directory":
			columns["home_directory"] = value
		case "login_shell":
			columns["login_shell"] = value
		case "gecos":
			columns["gecos"] = value
		case "shadow":
			shadow, ok := value.(*types.ShadowFields)
			if !ok {
				return errors.NewInvalidInputError("shadow patch has wrong type")
			}
			columns["shadow_last_change"] = shadow.LastChange
			columns["shadow_min"] = shadow.Min
			columns["shadow_max"] = shadow.Max
			columns["shadow_warning"] = shadow.Warning
			columns["shadow_inactive"] = shadow.Inactive
			columns["shadow_expire"] = shadow.Expire
		case "trust":
			trust, ok := value.(*types.TrustScope)
			if !ok {
				return errors.NewInvalidInputError("trust patch has wrong type")
			}
			mode, hosts := flattenTrust(trust)
			columns["trust_mode"] = mode
			columns["trust_hosts"] = hosts
		default:
			return errors.NewInvalidInputError("unknown attribute: " + key)
		}
	}
	if len(columns) == 0 {
		return nil
	}

	start := time.Now()
	result := sd.db.WithContext(ctx).Model(&posixEntry{}).Where("uid = ?", uid).Updates(columns)
	sd.RecordQuery(result.Error == nil, time.Since(start))
	if result.Error != nil {
		return errors.NewQueryFailedError("apply changes", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("posix account " + uid)
	}
	return nil
}

// RemovePosixAttributes strips all POSIX attributes from a user
func (sd *SQLiteDirectory) RemovePosixAttributes(ctx context.Context, uid string) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	err := sd.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("uid = ?", uid).Delete(&posixEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("member_uid = ?", uid).Delete(&groupMember{}).Error
	})
	sd.RecordQuery(err == nil, time.Since(start))
	if err != nil {
		return errors.NewTransactionFailedError(err)
	}
	return nil
}

// GetShadowFields reads the shadow aging attributes for status display
func (sd *SQLiteDirectory) GetShadowFields(ctx context.Context, uid string) (*types.ShadowFields, error) {
	if err := sd.checkOpen(); err != nil {
		return nil, err
	}

	var entry posixEntry
	err := sd.db.WithContext(ctx).Select(
		"shadow_last_change", "shadow_min", "shadow_max",
		"shadow_warning", "shadow_inactive", "shadow_expire",
	).Where("uid = ?", uid).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryFailedError("get shadow fields", err)
	}

	return &types.ShadowFields{
		LastChange: entry.ShadowLastChange,
		Min:        entry.ShadowMin,
		Max:        entry.ShadowMax,
		Warning:    entry.ShadowWarning,
		Inactive:   entry.ShadowInactive,
		Expire:     entry.ShadowExpire,
	}, nil
}

// HealthCheck verifies the backend is reachable
func (sd *SQLiteDirectory) HealthCheck(ctx context.Context) error {
	if err := sd.checkOpen(); err != nil {
		return err
	}

	if err := sd.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		sd.UpdateHealth("unhealthy", err)
		return err
	}
	sd.UpdateHealth("healthy", nil)
	return nil
}

// Close closes the database connection
func (sd *SQLiteDirectory) Close() error {
	if sd.IsClosed() {
		return nil
	}
	if sqlDB, err := sd.db.DB(); err == nil {
		sqlDB.Close()
	}
	return sd.BaseDirectory.Close()
}

func flattenTrust(trust *types.TrustScope) (string, string) {
	if trust == nil {
		return "", ""
	}
	return string(trust.Mode), strings.Join(trust.Hosts, ",")
}

func expandTrust(mode, hosts string) *types.TrustScope {
	if mode == "" {
		return nil
	}
	scope := &types.TrustScope{Mode: types.TrustMode(mode)}
	if hosts != "" {
		scope.Hosts = strings.Split(hosts, ",")
	}
	return scope
}

func posixEntryToType(entry *posixEntry) *types.PosixAccount {
	return &types.PosixAccount{
		UID:           entry.UID,
		UIDNumber:     entry.UIDNumber,
		GIDNumber:     entry.GIDNumber,
		HomeDirectory: entry.HomeDirectory,
		LoginShell:    entry.LoginShell,
		GECOS:         entry.GECOS,
		Shadow: types.ShadowFields{
			LastChange: entry.ShadowLastChange,
			Min:        entry.ShadowMin,
			Max:        entry.ShadowMax,
			Warning:    entry.ShadowWarning,
			Inactive:   entry.ShadowInactive,
			Expire:     entry.ShadowExpire,
		},
		Trust:     expandTrust(entry.TrustMode, entry.TrustHosts),
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}

func groupEntryToType(entry *groupEntry, members []string) *types.PosixGroup {
	return &types.PosixGroup{
		CN:          entry.CN,
		GIDNumber:   entry.GIDNumber,
		Description: entry.Description,
		MemberUIDs:  members,
		Trust:       expandTrust(entry.TrustMode, entry.TrustHosts),
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}
