// Package core provides the identity core implementation wiring the
// directory backend, provisioning engine, cache, events and operator
// management behind a single facade.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dirigo-idm/dirigo/pkg/cache"
	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/directory"
	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/events"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/operators"
	"github.com/dirigo-idm/dirigo/pkg/posix"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// IdentityCore implements the account and group lifecycle facade
type IdentityCore struct {
	config    *config.CoreConfig
	directory interfaces.DirectoryService
	lifecycle *posix.LifecycleManager
	cache     interfaces.AccountCache
	events    interfaces.EventPublisher
	operators *operators.Manager
	logger    interfaces.Logger
	metrics   interfaces.Metrics

	mu          sync.RWMutex
	initialized bool
	closed      bool
}

// NewIdentityCore creates a new identity core instance
func NewIdentityCore(cfg *config.CoreConfig, logger interfaces.Logger, metrics interfaces.Metrics) (*IdentityCore, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("configuration is required")
	}

	return &IdentityCore{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Initialize initializes the core and its collaborators
func (c *IdentityCore) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if c.closed {
		return errors.NewInternalError("identity core is closed")
	}

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.Timer("core_initialize_duration", float64(time.Since(start).Milliseconds()), nil)
		}
	}()

	if err := c.initializeComponents(ctx); err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	c.initialized = true

	c.logger.Info("identity core initialized", map[string]interface{}{
		"backend":        string(c.config.Directory.Backend),
		"cache_enabled":  c.config.Cache != nil && c.config.Cache.Enabled,
		"events_enabled": c.config.Events != nil && c.config.Events.Enabled,
	})

	if c.metrics != nil {
		c.metrics.Counter("core_initialize_count", 1, nil)
	}

	return nil
}

func (c *IdentityCore) initializeComponents(ctx context.Context) error {
	if err := c.initializeDirectory(ctx); err != nil {
		return fmt.Errorf("failed to initialize directory: %w", err)
	}
	if err := c.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if err := c.initializeEvents(); err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	if err := c.initializeOperators(); err != nil {
		return fmt.Errorf("failed to initialize operator manager: %w", err)
	}

	c.lifecycle = posix.NewLifecycleManager(c.directory, posix.Defaults{
		HomeDirectoryBase: c.config.Provisioning.HomeDirectoryBase,
		DefaultShell:      c.config.Provisioning.DefaultShell,
		ShellAllowList:    c.config.Provisioning.ShellAllowList,
		DefaultGroupMode:  c.config.Provisioning.DefaultGroupMode,
	}, c.logger, c.metrics)

	return nil
}

func (c *IdentityCore) initializeDirectory(ctx context.Context) error {
	factory := directory.NewFactory(c.logger, c.metrics)
	svc, err := factory.Create(c.config.Directory)
	if err != nil {
		return err
	}
	if err := svc.HealthCheck(ctx); err != nil {
		svc.Close()
		return fmt.Errorf("directory backend unhealthy: %w", err)
	}
	c.directory = svc
	return nil
}

func (c *IdentityCore) initializeCache() error {
	if c.config.Cache == nil || !c.config.Cache.Enabled {
		c.cache = cache.NewNoOpCache()
		return nil
	}
	redisCache, err := cache.NewRedisCache(c.config.Cache, c.logger, c.metrics)
	if err != nil {
		return err
	}
	c.cache = redisCache
	return nil
}

func (c *IdentityCore) initializeEvents() error {
	if c.config.Events == nil || !c.config.Events.Enabled {
		c.events = events.NewNoOpPublisher()
		return nil
	}
	publisher, err := events.NewNATSPublisher(c.config.Events, c.logger, c.metrics)
	if err != nil {
		return err
	}
	c.events = publisher
	return nil
}

func (c *IdentityCore) initializeOperators() error {
	if c.config.JWTSecret == "" {
		c.logger.Warn("operator management disabled: no JWT secret configured")
		return nil
	}

	opConfig := operators.DefaultConfig()
	opConfig.DatabasePath = c.config.OperatorDBPath
	opConfig.JWTSecret = c.config.JWTSecret
	opConfig.EnableAuditLogging = c.config.AuditEnabled

	manager, err := operators.NewManager(opConfig)
	if err != nil {
		return err
	}
	c.operators = manager
	return nil
}

// Operators returns the operator manager, nil when operator management
// is disabled
func (c *IdentityCore) Operators() *operators.Manager {
	return c.operators
}

// Directory returns the underlying directory service
func (c *IdentityCore) Directory() interfaces.DirectoryService {
	return c.directory
}

func (c *IdentityCore) checkInitialized() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.NewInternalError("identity core is closed")
	}
	if !c.initialized {
		return errors.NewInternalError("identity core is not initialized")
	}
	return nil
}

// recordAction writes an audit entry, best effort
func (c *IdentityCore) recordAction(ctx context.Context, operatorID, action, resource, resourceID string, success bool) {
	if c.operators == nil || operatorID == "" {
		return
	}
	if err := c.operators.RecordAction(ctx, operatorID, action, resource, resourceID, success); err != nil {
		c.logger.Warn("failed to record audit entry", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
	}
}

// publish publishes a lifecycle event, best effort
func (c *IdentityCore) publish(ctx context.Context, event *types.LifecycleEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish lifecycle event", map[string]interface{}{
			"kind":  string(event.Kind),
			"error": err.Error(),
		})
	}
}

// ActivateAccount provisions POSIX attributes for a directory user
func (c *IdentityCore) ActivateAccount(ctx context.Context, req *interfaces.ActivationRequest) (*types.PosixAccount, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	start := time.Now()
	account, err := c.lifecycle.Activate(ctx, req)
	if c.metrics != nil {
		c.metrics.Timer("account_activate_duration", float64(time.Since(start).Milliseconds()), nil)
	}

	c.recordAction(ctx, req.OperatorID, "account.activate", "account", req.UID, err == nil)
	if err != nil {
		return nil, err
	}

	if cacheErr := c.cache.SetAccount(ctx, account); cacheErr != nil {
		c.logger.Warn("failed to cache account", map[string]interface{}{"uid": account.UID, "error": cacheErr.Error()})
	}

	event := types.NewLifecycleEvent(types.EventAccountActivated)
	event.UID = account.UID
	event.UIDNumber = account.UIDNumber
	event.GIDNumber = account.GIDNumber
	event.OperatorID = req.OperatorID
	c.publish(ctx, event)

	return account, nil
}

// UpdateAccount applies a sparse attribute patch to an active account
func (c *IdentityCore) UpdateAccount(ctx context.Context, uid string, patch *interfaces.AccountPatch) (*types.PosixAccount, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	account, err := c.lifecycle.Update(ctx, uid, patch)
	c.recordAction(ctx, patch.OperatorID, "account.update", "account", uid, err == nil)
	if err != nil {
		return nil, err
	}

	if cacheErr := c.cache.SetAccount(ctx, account); cacheErr != nil {
		c.logger.Warn("failed to cache account", map[string]interface{}{"uid": uid, "error": cacheErr.Error()})
	}

	event := types.NewLifecycleEvent(types.EventAccountUpdated)
	event.UID = account.UID
	event.UIDNumber = account.UIDNumber
	event.GIDNumber = account.GIDNumber
	event.OperatorID = patch.OperatorID
	c.publish(ctx, event)

	return account, nil
}

// DeactivateAccount strips POSIX attributes from an account
func (c *IdentityCore) DeactivateAccount(ctx context.Context, uid string, deletePersonalGroup bool) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}

	err := c.lifecycle.Deactivate(ctx, uid, deletePersonalGroup)
	c.recordAction(ctx, operatorFromContext(ctx), "account.deactivate", "account", uid, err == nil)
	if err != nil {
		return err
	}

	if cacheErr := c.cache.InvalidateAccount(ctx, uid); cacheErr != nil {
		c.logger.Warn("failed to invalidate cached account", map[string]interface{}{"uid": uid, "error": cacheErr.Error()})
	}
	if deletePersonalGroup {
		// Personal groups share the account name.
		if cacheErr := c.cache.InvalidateGroup(ctx, uid); cacheErr != nil {
			c.logger.Warn("failed to invalidate cached group", map[string]interface{}{"cn": uid, "error": cacheErr.Error()})
		}
	}

	event := types.NewLifecycleEvent(types.EventAccountDeactivated)
	event.UID = uid
	event.OperatorID = operatorFromContext(ctx)
	c.publish(ctx, event)

	return nil
}

// GetAccount retrieves an account's POSIX attributes, nil when the
// account has no POSIX footprint
func (c *IdentityCore) GetAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	if cached, err := c.cache.GetAccount(ctx, uid); err == nil && cached != nil {
		return cached, nil
	}

	account, err := c.directory.GetPosixAccount(ctx, uid)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if cacheErr := c.cache.SetAccount(ctx, account); cacheErr != nil {
			c.logger.Warn("failed to cache account", map[string]interface{}{"uid": uid, "error": cacheErr.Error()})
		}
	}
	return account, nil
}

// AccountStatus derives the operational status from the shadow fields
func (c *IdentityCore) AccountStatus(ctx context.Context, uid string) (types.AccountStatus, error) {
	if err := c.checkInitialized(); err != nil {
		return "", err
	}
	return c.lifecycle.Status(ctx, uid)
}

// CreateGroup creates a standalone POSIX group
func (c *IdentityCore) CreateGroup(ctx context.Context, req *interfaces.GroupCreateRequest) (*types.PosixGroup, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	if req.CN == "" {
		return nil, errors.NewMissingFieldError("cn")
	}

	gid, err := c.lifecycle.Allocator().Allocate(ctx, posix.IDKindGID, req.GIDNumber, req.ForceGID)
	if err != nil {
		c.recordAction(ctx, req.OperatorID, "group.create", "group", req.CN, false)
		return nil, err
	}

	group, err := c.directory.CreateGroup(ctx, req.CN, gid, req.Description)
	c.recordAction(ctx, req.OperatorID, "group.create", "group", req.CN, err == nil)
	if err != nil {
		return nil, err
	}

	if req.TrustMode != "" {
		scope, err := c.lifecycle.TrustPolicy().Validate(req.TrustMode, req.TrustHosts)
		if err != nil {
			return nil, err
		}
		if err := c.directory.SetGroupTrust(ctx, req.CN, scope); err != nil {
			return nil, err
		}
		group.Trust = scope
	}

	if cacheErr := c.cache.SetGroup(ctx, group); cacheErr != nil {
		c.logger.Warn("failed to cache group", map[string]interface{}{"cn": req.CN, "error": cacheErr.Error()})
	}

	event := types.NewLifecycleEvent(types.EventGroupCreated)
	event.GroupCN = group.CN
	event.GIDNumber = group.GIDNumber
	event.OperatorID = req.OperatorID
	c.publish(ctx, event)

	return group, nil
}

// DeleteGroup deletes a group if it has no members. Returns false when
// the group is missing or still has members.
func (c *IdentityCore) DeleteGroup(ctx context.Context, cn string) (bool, error) {
	if err := c.checkInitialized(); err != nil {
		return false, err
	}

	deleted, err := c.directory.DeleteGroupIfEmpty(ctx, cn)
	c.recordAction(ctx, operatorFromContext(ctx), "group.delete", "group", cn, err == nil)
	if err != nil {
		return false, err
	}

	if deleted {
		if cacheErr := c.cache.InvalidateGroup(ctx, cn); cacheErr != nil {
			c.logger.Warn("failed to invalidate cached group", map[string]interface{}{"cn": cn, "error": cacheErr.Error()})
		}

		event := types.NewLifecycleEvent(types.EventGroupDeleted)
		event.GroupCN = cn
		event.OperatorID = operatorFromContext(ctx)
		c.publish(ctx, event)
	}

	return deleted, nil
}

// GetGroup retrieves a group by name, nil when it does not exist
func (c *IdentityCore) GetGroup(ctx context.Context, cn string) (*types.PosixGroup, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	if cached, err := c.cache.GetGroup(ctx, cn); err == nil && cached != nil {
		return cached, nil
	}

	group, err := c.directory.GroupByCN(ctx, cn)
	if err != nil {
		return nil, err
	}
	if group != nil {
		if cacheErr := c.cache.SetGroup(ctx, group); cacheErr != nil {
			c.logger.Warn("failed to cache group", map[string]interface{}{"cn": cn, "error": cacheErr.Error()})
		}
	}
	return group, nil
}

// AddGroupMember adds a user to a group
func (c *IdentityCore) AddGroupMember(ctx context.Context, cn, uid string) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}

	err := c.directory.AddGroupMember(ctx, cn, uid)
	c.recordAction(ctx, operatorFromContext(ctx), "group.member.add", "group", cn, err == nil)
	if err != nil {
		return err
	}
	return c.cache.InvalidateGroup(ctx, cn)
}

// RemoveGroupMember removes a user from a group
func (c *IdentityCore) RemoveGroupMember(ctx context.Context, cn, uid string) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}

	err := c.directory.RemoveGroupMember(ctx, cn, uid)
	c.recordAction(ctx, operatorFromContext(ctx), "group.member.remove", "group", cn, err == nil)
	if err != nil {
		return err
	}
	return c.cache.InvalidateGroup(ctx, cn)
}

// SetUserTrust validates and stores a trust scope on a user
func (c *IdentityCore) SetUserTrust(ctx context.Context, uid string, mode types.TrustMode, hosts []string) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}

	scope, err := c.lifecycle.TrustPolicy().Validate(mode, hosts)
	if err != nil {
		return err
	}

	err = c.directory.ApplyPosixChanges(ctx, uid, map[string]interface{}{"trust": scope})
	c.recordAction(ctx, operatorFromContext(ctx), "trust.user.set", "account", uid, err == nil)
	if err != nil {
		return err
	}
	return c.cache.InvalidateAccount(ctx, uid)
}

// SetGroupTrust validates and stores a trust scope on a group
func (c *IdentityCore) SetGroupTrust(ctx context.Context, cn string, mode types.TrustMode, hosts []string) error {
	if err := c.checkInitialized(); err != nil {
		return err
	}

	scope, err := c.lifecycle.TrustPolicy().Validate(mode, hosts)
	if err != nil {
		return err
	}

	err = c.directory.SetGroupTrust(ctx, cn, scope)
	c.recordAction(ctx, operatorFromContext(ctx), "trust.group.set", "group", cn, err == nil)
	if err != nil {
		return err
	}
	return c.cache.InvalidateGroup(ctx, cn)
}

// HealthCheck reports the health of the core and its collaborators
func (c *IdentityCore) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	c.mu.RLock()
	initialized := c.initialized
	closed := c.closed
	c.mu.RUnlock()

	health := map[string]interface{}{
		"initialized": initialized,
		"closed":      closed,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	if closed || !initialized {
		health["status"] = "unavailable"
		return health, nil
	}

	directoryStatus := "healthy"
	if err := c.directory.HealthCheck(ctx); err != nil {
		directoryStatus = fmt.Sprintf("unhealthy: %v", err)
	}
	health["directory"] = map[string]interface{}{
		"backend": string(c.config.Directory.Backend),
		"status":  directoryStatus,
	}
	health["cache_enabled"] = c.config.Cache != nil && c.config.Cache.Enabled
	health["events_enabled"] = c.config.Events != nil && c.config.Events.Enabled
	health["operators_enabled"] = c.operators != nil

	if directoryStatus == "healthy" {
		health["status"] = "healthy"
	} else {
		health["status"] = "degraded"
	}

	return health, nil
}

// Close closes the core and its collaborators
func (c *IdentityCore) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var errs []error

	if c.events != nil {
		if err := c.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}
	if c.operators != nil {
		if err := c.operators.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close operator manager: %w", err))
		}
	}
	if c.directory != nil {
		if err := c.directory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close directory: %w", err))
		}
	}

	c.closed = true

	c.logger.Info("identity core closed")

	if len(errs) > 0 {
		return fmt.Errorf("errors occurred while closing identity core: %v", errs)
	}

	return nil
}

// operatorFromContext extracts the acting operator ID from the request
// context, empty when not set
func operatorFromContext(ctx context.Context) string {
	if v := ctx.Value(types.ContextKeyOperatorID); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

var _ interfaces.IdentityCore = (*IdentityCore)(nil)
