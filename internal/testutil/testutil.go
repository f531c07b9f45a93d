// Package testutil provides common testing utilities shared by the package
// tests: memory allocators that verify release, the paired train/test
// fixtures used across preprocessing tests, and column readers for assertions.
package testutil

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/dataframe"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryContext provides a checked allocator that must be empty on Release.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release asserts that every buffer allocated through the context was freed.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a checked allocator for tests.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	checked := memory.NewCheckedAllocator(memory.NewGoAllocator())

	return &TestMemoryContext{
		Allocator: checked,
		cleanup: func() {
			checked.AssertSize(tb, 0)
		},
	}
}

// FixtureOption configures the train/test fixtures.
type FixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	factorTarget bool
	unseenLabel  bool
	padded       bool
	nullWeight   bool
}

// WithFactorTarget makes "target" a string column ("yes"/"no") instead of float64.
func WithFactorTarget() FixtureOption {
	return func(cfg *fixtureConfig) {
		cfg.factorTarget = true
	}
}

// WithUnseenLabel puts a "green" color into the test fixture, which train never has.
func WithUnseenLabel() FixtureOption {
	return func(cfg *fixtureConfig) {
		cfg.unseenLabel = true
	}
}

// WithPaddedFactors surrounds color values with spaces.
func WithPaddedFactors() FixtureOption {
	return func(cfg *fixtureConfig) {
		cfg.padded = true
	}
}

// WithNullWeight makes the second weight of each fixture null.
func WithNullWeight() FixtureOption {
	return func(cfg *fixtureConfig) {
		cfg.nullWeight = true
	}
}

func newFixtureConfig(opts []FixtureOption) *fixtureConfig {
	cfg := &fixtureConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// CreateTrainFrame returns the four-row training fixture:
//
//	color  (string):  red, blue, red, blue
//	size   (string):  S, M, S, L
//	weight (float64): 1.5, 2, 3.25, 0.5
//	count  (int64):   3, 0, 7, 1
//	target (float64): 1, 0, 1, 0   (or yes, no, yes, no)
func CreateTrainFrame(allocator memory.Allocator, opts ...FixtureOption) *dataframe.DataFrame {
	cfg := newFixtureConfig(opts)
	colors := []string{"red", "blue", "red", "blue"}
	if cfg.padded {
		colors = []string{" red ", "blue ", "red", " blue"}
	}
	return buildFixture(allocator, cfg,
		colors,
		[]string{"S", "M", "S", "L"},
		[]float64{1.5, 2, 3.25, 0.5},
		[]int64{3, 0, 7, 1},
		[]float64{1, 0, 1, 0},
		[]string{"yes", "no", "yes", "no"},
	)
}

// CreateTestFrame returns the three-row test fixture with the same schema:
//
//	color  (string):  blue, red, red   (blue, green, red with WithUnseenLabel)
//	size   (string):  M, L, S
//	weight (float64): 2.5, 1, 0
//	count  (int64):   0, 2, 5
//	target (float64): 0, 1, 1   (or no, yes, yes)
func CreateTestFrame(allocator memory.Allocator, opts ...FixtureOption) *dataframe.DataFrame {
	cfg := newFixtureConfig(opts)
	colors := []string{"blue", "red", "red"}
	if cfg.unseenLabel {
		colors[1] = "green"
	}
	if cfg.padded {
		for i, c := range colors {
			colors[i] = " " + c + " "
		}
	}
	return buildFixture(allocator, cfg,
		colors,
		[]string{"M", "L", "S"},
		[]float64{2.5, 1, 0},
		[]int64{0, 2, 5},
		[]float64{0, 1, 1},
		[]string{"no", "yes", "yes"},
	)
}

func buildFixture(
	allocator memory.Allocator, cfg *fixtureConfig,
	colors, sizes []string, weights []float64, counts []int64,
	numericTarget []float64, factorTarget []string,
) *dataframe.DataFrame {
	var weightValid []bool
	if cfg.nullWeight {
		weightValid = make([]bool, len(weights))
		for i := range weightValid {
			weightValid[i] = i != 1
		}
	}
	weight, err := series.NewNullable("weight", weights, weightValid, allocator)
	if err != nil {
		panic(err)
	}

	var target dataframe.ISeries
	if cfg.factorTarget {
		target = series.New("target", factorTarget, allocator)
	} else {
		target = series.New("target", numericTarget, allocator)
	}

	return dataframe.New(
		series.New("color", colors, allocator),
		series.New("size", sizes, allocator),
		weight,
		series.New("count", counts, allocator),
		target,
	)
}

// CreateTestTableWithData creates a DataFrame from a column map. Columns are
// added in the order given by names.
func CreateTestTableWithData(
	allocator memory.Allocator, names []string, data map[string]interface{},
) *dataframe.DataFrame {
	cols := make([]dataframe.ISeries, 0, len(names))
	for _, name := range names {
		switch values := data[name].(type) {
		case []string:
			cols = append(cols, series.New(name, values, allocator))
		case []int64:
			cols = append(cols, series.New(name, values, allocator))
		case []int32:
			cols = append(cols, series.New(name, values, allocator))
		case []float64:
			cols = append(cols, series.New(name, values, allocator))
		case []float32:
			cols = append(cols, series.New(name, values, allocator))
		case []bool:
			cols = append(cols, series.New(name, values, allocator))
		case []vector.Vector:
			cols = append(cols, series.New(name, values, allocator))
		}
	}
	return dataframe.New(cols...)
}

// AssertDataFrameEqual compares schemas and rendered values row by row.
func AssertDataFrameEqual(t *testing.T, expected, actual *dataframe.DataFrame) {
	t.Helper()

	require.NotNil(t, expected, "expected DataFrame should not be nil")
	require.NotNil(t, actual, "actual DataFrame should not be nil")

	assert.Equal(t, expected.Len(), actual.Len(), "DataFrame lengths should match")
	assert.True(t, expected.Schema().Equal(actual.Schema()), "schemas should match: %v",
		expected.Schema().Diff(actual.Schema()))

	for _, colName := range expected.Columns() {
		expectedCol, _ := expected.Column(colName)
		actualCol, ok := actual.Column(colName)
		require.True(t, ok, "actual column %s should exist", colName)

		for row := 0; row < expectedCol.Len() && row < actualCol.Len(); row++ {
			assert.Equal(t, expectedCol.GetAsString(row), actualCol.GetAsString(row),
				"column %s row %d should match", colName, row)
		}
	}
}

// AssertDataFrameHasColumns verifies the exact column list, in order.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Equal(t, expectedColumns, df.Columns())
}

// StringValues renders every row of column, nulls as "null".
func StringValues(t *testing.T, df *dataframe.DataFrame, column string) []string {
	t.Helper()

	col, ok := df.Column(column)
	require.True(t, ok, "column %s should exist", column)
	out := make([]string, col.Len())
	for i := range out {
		out[i] = col.GetAsString(i)
	}
	return out
}

// Int64Values returns the values of an int64 column.
func Int64Values(t *testing.T, df *dataframe.DataFrame, column string) []int64 {
	t.Helper()

	col, ok := df.Column(column)
	require.True(t, ok, "column %s should exist", column)
	arr := col.Array()
	defer arr.Release()
	ints, ok := arr.(*array.Int64)
	require.True(t, ok, "column %s should be int64, got %s", column, arr.DataType())
	return append([]int64(nil), ints.Int64Values()...)
}

// Float64Values returns the values of a float64 column.
func Float64Values(t *testing.T, df *dataframe.DataFrame, column string) []float64 {
	t.Helper()

	col, ok := df.Column(column)
	require.True(t, ok, "column %s should exist", column)
	arr := col.Array()
	defer arr.Release()
	floats, ok := arr.(*array.Float64)
	require.True(t, ok, "column %s should be float64, got %s", column, arr.DataType())
	return append([]float64(nil), floats.Float64Values()...)
}

// VectorValues decodes every row of a vector column.
func VectorValues(t *testing.T, df *dataframe.DataFrame, column string) []vector.Vector {
	t.Helper()

	col, ok := df.Column(column)
	require.True(t, ok, "column %s should exist", column)
	arr := col.Array()
	defer arr.Release()
	reader, err := vector.NewReader(arr)
	require.NoError(t, err)

	out := make([]vector.Vector, reader.Len())
	for i := range out {
		out[i] = reader.Value(i)
	}
	return out
}
