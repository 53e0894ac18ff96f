package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpMetrics(t *testing.T) {
	metrics := NewNoOpMetrics()
	assert.NotNil(t, metrics)

	// All operations are no-ops and must not panic
	metrics.Counter("activations_total", 1, nil)
	metrics.Gauge("accounts_active", 42, nil)
	metrics.Histogram("activation_duration", 12.5, nil)
	metrics.Timer("directory_query", 3.1, map[string]string{"backend": "sqlite"})
}

func TestDevMetrics_Counter(t *testing.T) {
	m := NewDevMetrics()

	m.Counter("activations_total", 1, nil)
	m.Counter("activations_total", 1, nil)
	assert.Equal(t, float64(2), m.CounterValue("activations_total", nil))

	labels := map[string]string{"result": "conflict"}
	m.Counter("activations_total", 1, labels)
	assert.Equal(t, float64(1), m.CounterValue("activations_total", labels))
	assert.Equal(t, float64(2), m.CounterValue("activations_total", nil))
}

func TestDevMetrics_Snapshot(t *testing.T) {
	m := NewDevMetrics()

	m.Counter("deactivations_total", 3, nil)
	m.Gauge("accounts_active", 7, nil)
	m.Timer("directory_query", 1.5, map[string]string{"backend": "neo4j"})

	snapshot := m.Snapshot()
	assert.Equal(t, float64(3), snapshot["deactivations_total"])
	assert.Equal(t, float64(7), snapshot["accounts_active"])
	assert.Equal(t, float64(1.5), snapshot["directory_query_last_ms,backend=neo4j"])
	assert.Equal(t, float64(1), snapshot["directory_query_total,backend=neo4j"])
}

func TestMetricKey_LabelOrderStable(t *testing.T) {
	a := metricKey("op", map[string]string{"a": "1", "b": "2"})
	b := metricKey("op", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
}
