// Package cache provides a Redis read-through cache over directory lookups.
// Only raw directory reads are cached; derived status values never are.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

const (
	accountKeyPrefix = "dirigo:account:"
	groupKeyPrefix   = "dirigo:group:"
)

// RedisCache implements AccountCache on Redis
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  interfaces.Logger
	metrics interfaces.Metrics
}

// NewRedisCache creates a Redis-backed account cache and verifies the
// connection before returning.
func NewRedisCache(cfg *config.CacheConfig, logger interfaces.Logger, metrics interfaces.Metrics) (*RedisCache, error) {
	if cfg == nil {
		cfg = config.NewCacheConfig()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis cache", map[string]interface{}{
		"address": addr,
		"db":      cfg.DB,
		"ttl":     cfg.TTL.String(),
	})

	return &RedisCache{
		client:  client,
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// GetAccount retrieves a cached account, nil on miss
func (c *RedisCache) GetAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	data, err := c.client.Get(ctx, accountKeyPrefix+uid).Bytes()
	if err == redis.Nil {
		c.metrics.Counter("cache_requests", 1, map[string]string{"kind": "account", "result": "miss"})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var account types.PosixAccount
	if err := json.Unmarshal(data, &account); err != nil {
		// Corrupt entry, drop it and report a miss
		c.client.Del(ctx, accountKeyPrefix+uid)
		return nil, nil
	}

	c.metrics.Counter("cache_requests", 1, map[string]string{"kind": "account", "result": "hit"})
	return &account, nil
}

// SetAccount caches an account
func (c *RedisCache) SetAccount(ctx context.Context, account *types.PosixAccount) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return c.client.Set(ctx, accountKeyPrefix+account.UID, data, c.ttl).Err()
}

// GetGroup retrieves a cached group, nil on miss
func (c *RedisCache) GetGroup(ctx context.Context, cn string) (*types.PosixGroup, error) {
	data, err := c.client.Get(ctx, groupKeyPrefix+cn).Bytes()
	if err == redis.Nil {
		c.metrics.Counter("cache_requests", 1, map[string]string{"kind": "group", "result": "miss"})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var group types.PosixGroup
	if err := json.Unmarshal(data, &group); err != nil {
		c.client.Del(ctx, groupKeyPrefix+cn)
		return nil, nil
	}

	c.metrics.Counter("cache_requests", 1, map[string]string{"kind": "group", "result": "hit"})
	return &group, nil
}

// SetGroup caches a group
func (c *RedisCache) SetGroup(ctx context.Context, group *types.PosixGroup) error {
	data, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("failed to marshal group: %w", err)
	}
	return c.client.Set(ctx, groupKeyPrefix+group.CN, data, c.ttl).Err()
}

// InvalidateAccount drops a cached account
func (c *RedisCache) InvalidateAccount(ctx context.Context, uid string) error {
	return c.client.Del(ctx, accountKeyPrefix+uid).Err()
}

// InvalidateGroup drops a cached group
func (c *RedisCache) InvalidateGroup(ctx context.Context, cn string) error {
	return c.client.Del(ctx, groupKeyPrefix+cn).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoOpCache is used when caching is disabled; every read is a miss.
type NoOpCache struct{}

// NewNoOpCache creates a cache that never stores anything
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (n *NoOpCache) GetAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	return nil, nil
}

func (n *NoOpCache) SetAccount(ctx context.Context, account *types.PosixAccount) error {
	return nil
}

func (n *NoOpCache) GetGroup(ctx context.Context, cn string) (*types.PosixGroup, error) {
	return nil, nil
}

func (n *NoOpCache) SetGroup(ctx context.Context, group *types.PosixGroup) error {
	return nil
}

func (n *NoOpCache) InvalidateAccount(ctx context.Context, uid string) error {
	return nil
}

func (n *NoOpCache) InvalidateGroup(ctx context.Context, cn string) error {
	return nil
}

func (n *NoOpCache) Close() error {
	return nil
}

var (
	_ interfaces.AccountCache = (*RedisCache)(nil)
	_ interfaces.AccountCache = (*NoOpCache)(nil)
)
