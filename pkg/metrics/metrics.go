// Package metrics provides metrics implementations for Dirigo
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dirigo-idm/dirigo/pkg/interfaces"
)

// NoOpMetrics is a no-operation metrics implementation
type NoOpMetrics struct{}

// Counter increments a counter metric
func (m *NoOpMetrics) Counter(name string, value float64, labels map[string]string) {
	// No-op
}

// Gauge sets a gauge metric
func (m *NoOpMetrics) Gauge(name string, value float64, labels map[string]string) {
	// No-op
}

// Histogram records a histogram metric
func (m *NoOpMetrics) Histogram(name string, value float64, labels map[string]string) {
	// No-op
}

// Timer records timing metrics
func (m *NoOpMetrics) Timer(name string, duration float64, labels map[string]string) {
	// No-op
}

// DevMetrics is an in-memory metrics implementation for development and tests
type DevMetrics struct {
	mu       sync.RWMutex
	counters map[string]float64
	gauges   map[string]float64
}

// NewDevMetrics creates a new in-memory metrics implementation
func NewDevMetrics() *DevMetrics {
	return &DevMetrics{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
	}
}

// Counter increments a counter metric
func (m *DevMetrics) Counter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(name, labels)] += value
}

// Gauge sets a gauge metric
func (m *DevMetrics) Gauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metricKey(name, labels)] = value
}

// Histogram records a histogram metric
func (m *DevMetrics) Histogram(name string, value float64, labels map[string]string) {
	m.Counter(name+"_count", 1, labels)
}

// Timer records timing metrics
func (m *DevMetrics) Timer(name string, duration float64, labels map[string]string) {
	m.Gauge(name+"_last_ms", duration, labels)
	m.Counter(name+"_total", 1, labels)
}

// CounterValue returns the accumulated value of a counter
func (m *DevMetrics) CounterValue(name string, labels map[string]string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[metricKey(name, labels)]
}

// Snapshot returns a copy of all recorded metric values
func (m *DevMetrics) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, v := range m.counters {
		snapshot[k] = v
	}
	for k, v := range m.gauges {
		snapshot[k] = v
	}
	return snapshot
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(",%s=%s", k, labels[k]))
	}
	return sb.String()
}

var _ interfaces.Metrics = (*NoOpMetrics)(nil)
var _ interfaces.Metrics = (*DevMetrics)(nil)

// NewNoOpMetrics creates a new no-op metrics implementation
func NewNoOpMetrics() interfaces.Metrics {
	return &NoOpMetrics{}
}

// NewTestMetrics creates a metrics implementation for testing
func NewTestMetrics() interfaces.Metrics {
	return NewDevMetrics()
}
