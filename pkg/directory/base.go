// Package directory provides directory backend implementations for Dirigo.
// A backend owns storage and atomicity for POSIX entries and groups; the
// lifecycle core consumes it through the DirectoryService contract.
package directory

import (
	"fmt"
	"sync"
	"time"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
)

// MinID is the lowest ID a backend will suggest for new accounts or groups.
const MinID = 1000

// BaseDirectory provides common functionality for all backend implementations
type BaseDirectory struct {
	config  *config.DirectoryConfig
	logger  interfaces.Logger
	metrics interfaces.Metrics
	mu      sync.RWMutex
	closed  bool

	// Health monitoring
	health struct {
		lastCheck time.Time
		status    string
		err       error
		mu        sync.RWMutex
	}

	// Query stats
	stats struct {
		totalQueries   int64
		failedQueries  int64
		connectionTime time.Duration
		lastQueryTime  time.Duration
		mu             sync.RWMutex
	}
}

// NewBaseDirectory creates a new base directory backend
func NewBaseDirectory(cfg *config.DirectoryConfig, logger interfaces.Logger, metrics interfaces.Metrics) *BaseDirectory {
	if cfg == nil {
		cfg = config.NewDirectoryConfig()
	}

	return &BaseDirectory{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// GetConfig returns the backend configuration
func (bd *BaseDirectory) GetConfig() *config.DirectoryConfig {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	return bd.config
}

// IsClosed returns true if the backend is closed
func (bd *BaseDirectory) IsClosed() bool {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	return bd.closed
}

// Close marks the backend as closed
func (bd *BaseDirectory) Close() error {
	bd.mu.Lock()
	defer bd.mu.Unlock()

	if bd.closed {
		return nil
	}

	bd.closed = true
	if bd.logger != nil {
		bd.logger.Info("directory backend closed")
	}
	return nil
}

// RecordQuery records query statistics
func (bd *BaseDirectory) RecordQuery(success bool, duration time.Duration) {
	bd.stats.mu.Lock()
	defer bd.stats.mu.Unlock()

	bd.stats.totalQueries++
	bd.stats.lastQueryTime = duration

	if !success {
		bd.stats.failedQueries++
	}

	if bd.metrics != nil {
		bd.metrics.Counter("directory_queries_total", 1, map[string]string{
			"backend": string(bd.config.Backend),
			"success": fmt.Sprintf("%t", success),
		})
		bd.metrics.Timer("directory_query_duration", float64(duration.Milliseconds()), map[string]string{
			"backend": string(bd.config.Backend),
		})
	}
}

// UpdateHealth updates the health status
func (bd *BaseDirectory) UpdateHealth(status string, err error) {
	bd.health.mu.Lock()
	defer bd.health.mu.Unlock()

	bd.health.lastCheck = time.Now()
	bd.health.status = status
	bd.health.err = err

	if bd.metrics != nil {
		bd.metrics.Gauge("directory_health_status", map[string]float64{"healthy": 1, "unhealthy": 0}[status], map[string]string{
			"backend": string(bd.config.Backend),
		})
	}
}

// GetHealth returns the current health status, the time of the last
// check, and the last recorded error.
func (bd *BaseDirectory) GetHealth() (string, time.Time, error) {
	bd.health.mu.RLock()
	defer bd.health.mu.RUnlock()

	return bd.health.status, bd.health.lastCheck, bd.health.err
}

// GetStats returns backend statistics
func (bd *BaseDirectory) GetStats() map[string]interface{} {
	bd.stats.mu.RLock()
	defer bd.stats.mu.RUnlock()

	stats := map[string]interface{}{
		"total_queries":   bd.stats.totalQueries,
		"failed_queries":  bd.stats.failedQueries,
		"connection_time": bd.stats.connectionTime.String(),
		"last_query_time": bd.stats.lastQueryTime.String(),
	}
	if bd.stats.totalQueries > 0 {
		stats["success_rate"] = float64(bd.stats.totalQueries-bd.stats.failedQueries) / float64(bd.stats.totalQueries)
	}
	return stats
}

// nextFreeID returns the lowest ID >= MinID absent from the sorted used list.
func nextFreeID(used []int) int {
	candidate := MinID
	for _, id := range used {
		if id < candidate {
			continue
		}
		if id > candidate {
			break
		}
		candidate++
	}
	return candidate
}
