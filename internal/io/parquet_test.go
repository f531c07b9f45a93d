package io_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/dataframe"
	"github.com/paveg/prepkit/internal/io"
	"github.com/paveg/prepkit/internal/testutil"
	"github.com/paveg/prepkit/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripParquet(t *testing.T, df *dataframe.DataFrame, options io.ParquetOptions) *dataframe.DataFrame {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, io.NewParquetWriter(&buf, options).Write(context.Background(), df))
	require.NotZero(t, buf.Len())

	back, err := io.NewParquetReader(&buf, options, memory.NewGoAllocator()).Read(context.Background())
	require.NoError(t, err)
	return back
}

func TestParquetRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("keeps types and nulls", func(t *testing.T) {
		df := testutil.CreateTrainFrame(mem, testutil.WithNullWeight())
		defer df.Release()

		back := roundTripParquet(t, df, io.DefaultParquetOptions())
		defer back.Release()

		testutil.AssertDataFrameEqual(t, df, back)
		assert.Equal(t, []string{"1.5", "null", "3.25", "0.5"}, testutil.StringValues(t, back, "weight"))
	})

	t.Run("keeps vector columns", func(t *testing.T) {
		sparse, err := vector.Sparse(7, []int32{0, 2, 6}, []float64{2, 1, 1})
		require.NoError(t, err)
		df := testutil.CreateTestTableWithData(mem, []string{"label", "features"},
			map[string]interface{}{
				"label":    []int64{1, 0},
				"features": []vector.Vector{sparse, vector.Dense([]float64{1.5, 3, 0, 1, 1, 0, 0})},
			})
		defer df.Release()

		back := roundTripParquet(t, df, io.DefaultParquetOptions())
		defer back.Release()

		testutil.AssertDataFrameEqual(t, df, back)
		assert.Equal(t, []string{"features"}, back.Schema().Names(dataframe.KindVector))
		vectors := testutil.VectorValues(t, back, "features")
		require.Len(t, vectors, 2)
		assert.True(t, vectors[0].IsSparse())
		assert.Equal(t, []float64{1.5, 3, 0, 1, 1, 0, 0}, vectors[1].ToDense())
	})

	t.Run("supports every codec", func(t *testing.T) {
		df := testutil.CreateTestFrame(mem)
		defer df.Release()

		for _, codec := range []string{"snappy", "gzip", "zstd", "uncompressed"} {
			t.Run(codec, func(t *testing.T) {
				options := io.DefaultParquetOptions()
				options.Compression = codec
				back := roundTripParquet(t, df, options)
				defer back.Release()
				testutil.AssertDataFrameEqual(t, df, back)
			})
		}
	})

	t.Run("empty frame keeps schema", func(t *testing.T) {
		df := testutil.CreateTestTableWithData(mem, []string{"color", "count"},
			map[string]interface{}{
				"color": []string{},
				"count": []int64{},
			})
		defer df.Release()

		back := roundTripParquet(t, df, io.DefaultParquetOptions())
		defer back.Release()

		assert.Equal(t, 0, back.Len())
		assert.True(t, df.Schema().Equal(back.Schema()), back.Schema().String())
	})
}

func TestParquetReaderRejectsGarbage(t *testing.T) {
	_, err := io.NewParquetReader(bytes.NewReader([]byte("not parquet")), io.DefaultParquetOptions(), nil).
		Read(context.Background())
	assert.Error(t, err)
}
