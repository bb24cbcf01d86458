package logging

import (
	"sort"
	"sync"
)

// Metrics is a process-local registry of named counters and gauges.
type Metrics struct {
	mu     sync.RWMutex
	values map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]uint64)}
}

// TelemetryAdd increments a counter.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] += delta
	m.mu.Unlock()
}

// TelemetryStore overwrites a gauge.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] = value
	m.mu.Unlock()
}

// Value returns the current value of key.
func (m *Metrics) Value(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// Snapshot copies every metric.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Keys lists metric names in sorted order.
func (m *Metrics) Keys() []string {
	snapshot := m.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
