// Package monitoring records per-step metrics of preprocessing runs.
package monitoring

import (
	"sync"
	"time"
)

// OperationMetrics describes one recorded step.
type OperationMetrics struct {
	Operation     string        `json:"operation"`
	Duration      time.Duration `json:"duration"`
	RowsProcessed int64         `json:"rows_processed"`
	Failed        bool          `json:"failed,omitempty"`
}

// MetricsCollector collects metrics for the steps of one preprocessor.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics
	enabled bool
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{enabled: enabled}
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// RecordOperation runs fn and records its duration and the rows it touched.
// The error of fn is returned unchanged.
func (mc *MetricsCollector) RecordOperation(operation string, rows int, fn func() error) error {
	if !mc.IsEnabled() {
		return fn()
	}

	start := time.Now()
	err := fn()
	m := OperationMetrics{
		Operation:     operation,
		Duration:      time.Since(start),
		RowsProcessed: int64(rows),
		Failed:        err != nil,
	}

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, m)
	mc.mu.Unlock()
	return err
}

// Len returns the number of recorded steps.
func (mc *MetricsCollector) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.metrics)
}

// GetMetrics returns a copy of all collected metrics.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	return mc.Since(0)
}

// Since returns a copy of the metrics recorded from position start on.
func (mc *MetricsCollector) Since(start int) []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if start >= len(mc.metrics) {
		return nil
	}
	return append([]OperationMetrics(nil), mc.metrics[start:]...)
}

// Clear removes all collected metrics.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
}

// MetricsSummary aggregates collected metrics.
type MetricsSummary struct {
	TotalOperations int                      `json:"total_operations"`
	TotalDuration   time.Duration            `json:"total_duration"`
	TotalRows       int64                    `json:"total_rows"`
	Failures        int                      `json:"failures"`
	OperationCounts map[string]int           `json:"operation_counts"`
	Durations       map[string]time.Duration `json:"durations"`
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := MetricsSummary{
		OperationCounts: make(map[string]int),
		Durations:       make(map[string]time.Duration),
	}
	for _, m := range mc.metrics {
		summary.TotalOperations++
		summary.TotalDuration += m.Duration
		summary.TotalRows += m.RowsProcessed
		summary.OperationCounts[m.Operation]++
		summary.Durations[m.Operation] += m.Duration
		if m.Failed {
			summary.Failures++
		}
	}
	return summary
}
