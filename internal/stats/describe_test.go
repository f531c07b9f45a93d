package stats_test

import (
	"math"
	"testing"

	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/stats"
	"github.com/paveg/prepkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("float column", func(t *testing.T) {
		s, err := series.NewSafe("x", []float64{2, 4, 0, 4, 5, 5, 7, 9}, mem.Allocator)
		require.NoError(t, err)
		defer s.Release()
		arr := s.Array()
		defer arr.Release()

		summary, err := stats.Describe(arr)
		require.NoError(t, err)
		assert.Equal(t, 8, summary.Count)
		assert.InDelta(t, 4.5, summary.Mean, 1e-12)
		assert.InDelta(t, 2.7774602993176543, summary.StdDev, 1e-12)
		assert.InDelta(t, 0.0, summary.Min, 0)
		assert.InDelta(t, 9.0, summary.Max, 0)
	})

	t.Run("integer column with null", func(t *testing.T) {
		s, err := series.NewNullable("n", []int64{3, 0, 7}, []bool{true, false, true}, mem.Allocator)
		require.NoError(t, err)
		defer s.Release()
		arr := s.Array()
		defer arr.Release()

		summary, err := stats.Describe(arr)
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "5", "2.8284271247461903", "3", "7"}, summary.Strings())
	})

	t.Run("single value", func(t *testing.T) {
		s := series.New("n", []int32{42}, mem.Allocator)
		defer s.Release()
		arr := s.Array()
		defer arr.Release()

		summary, err := stats.Describe(arr)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(summary.StdDev))
		assert.Equal(t, []string{"1", "42", "NaN", "42", "42"}, summary.Strings())
	})

	t.Run("all null", func(t *testing.T) {
		s, err := series.NewNullable("n", []float32{1, 2}, []bool{false, false}, mem.Allocator)
		require.NoError(t, err)
		defer s.Release()
		arr := s.Array()
		defer arr.Release()

		summary, err := stats.Describe(arr)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "NaN", "NaN", "NaN", "NaN"}, summary.Strings())
	})

	t.Run("string column", func(t *testing.T) {
		s := series.New("c", []string{"a"}, mem.Allocator)
		defer s.Release()
		arr := s.Array()
		defer arr.Release()

		_, err := stats.Describe(arr)
		assert.ErrorIs(t, err, prepErrors.ErrUnsupportedType)
	})
}

func TestDescribeColumn(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.CreateTrainFrame(mem.Allocator)
	defer df.Release()

	summary, err := stats.DescribeColumn(df, "count")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Count)
	assert.InDelta(t, 2.75, summary.Mean, 1e-12)

	_, err = stats.DescribeColumn(df, "missing")
	assert.ErrorIs(t, err, prepErrors.ErrColumnNotFound)

	_, err = stats.DescribeColumn(df, "color")
	require.ErrorIs(t, err, prepErrors.ErrUnsupportedType)
	assert.Contains(t, err.Error(), "'color'")

	assert.Len(t, stats.SummaryNames, len(summary.Strings()))
}
