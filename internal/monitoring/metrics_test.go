//nolint:testpackage // requires internal access to unexported types and functions
package monitoring

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	t.Run("disabled collector only runs the operation", func(t *testing.T) {
		collector := NewMetricsCollector(false)

		callCount := 0
		err := collector.RecordOperation("StripColumns", 10, func() error {
			callCount++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, callCount)
		assert.Empty(t, collector.GetMetrics())
	})

	t.Run("records successes and failures", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		boom := errors.New("boom")

		require.NoError(t, collector.RecordOperation("StringIndex", 7, func() error { return nil }))
		err := collector.RecordOperation("OneHotEncode", 7, func() error { return boom })
		assert.ErrorIs(t, err, boom)

		metrics := collector.GetMetrics()
		require.Len(t, metrics, 2)
		assert.Equal(t, "StringIndex", metrics[0].Operation)
		assert.Equal(t, int64(7), metrics[0].RowsProcessed)
		assert.False(t, metrics[0].Failed)
		assert.True(t, metrics[1].Failed)
	})

	t.Run("since returns the tail", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		for _, op := range []string{"a", "b", "c"} {
			require.NoError(t, collector.RecordOperation(op, 1, func() error { return nil }))
		}

		assert.Equal(t, 3, collector.Len())
		tail := collector.Since(1)
		require.Len(t, tail, 2)
		assert.Equal(t, "b", tail[0].Operation)
		assert.Nil(t, collector.Since(3))

		collector.Clear()
		assert.Equal(t, 0, collector.Len())
	})

	t.Run("toggle", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		collector.SetEnabled(false)
		assert.False(t, collector.IsEnabled())
		require.NoError(t, collector.RecordOperation("x", 1, func() error { return nil }))
		assert.Equal(t, 0, collector.Len())
	})
}

func TestMetricsSummary(t *testing.T) {
	collector := NewMetricsCollector(true)
	require.NoError(t, collector.RecordOperation("StripColumns", 4, func() error { return nil }))
	require.NoError(t, collector.RecordOperation("StripColumns", 4, func() error { return nil }))
	_ = collector.RecordOperation("AssembleFeatures", 3, func() error { return errors.New("null value") })

	summary := collector.GetSummary()
	assert.Equal(t, 3, summary.TotalOperations)
	assert.Equal(t, int64(11), summary.TotalRows)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, map[string]int{"StripColumns": 2, "AssembleFeatures": 1}, summary.OperationCounts)
	assert.Len(t, summary.Durations, 2)
}

func TestMetricsCollectorConcurrent(t *testing.T) {
	collector := NewMetricsCollector(true)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = collector.RecordOperation("op", 1, func() error { return nil })
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, collector.Len())
}
