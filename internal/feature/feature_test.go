package feature_test

import (
	"context"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/feature"
	"github.com/paveg/prepkit/internal/parallel"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/testutil"
	"github.com/paveg/prepkit/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(mem memory.Allocator) feature.Env {
	// threshold 1 so that multi-column stages fan out
	return feature.Env{Mem: mem, Pool: parallel.NewWorkerPool(2, 1)}
}

func TestStripper(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	ctx := context.Background()

	padded, err := series.NewNullable("color",
		[]string{" red ", "..blue.", "", "green"}, []bool{true, true, false, true}, mem.Allocator)
	require.NoError(t, err)
	df := dataframe.New(padded, series.New("n", []int64{1, 2, 3, 4}, mem.Allocator))
	defer df.Release()

	t.Run("trims chars and spaces", func(t *testing.T) {
		s := &feature.Stripper{Columns: []string{"color"}, Chars: ".", Env: testEnv(mem.Allocator)}
		assert.Equal(t, ". ", s.CutSet())

		out, err := s.Transform(ctx, df)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, []string{"red", "blue", "null", "green"}, testutil.StringValues(t, out, "color"))
		assert.Equal(t, []string{"color", "n"}, out.Columns())
		// input untouched
		assert.Equal(t, " red ", testutil.StringValues(t, df, "color")[0])
	})

	t.Run("non string column", func(t *testing.T) {
		s := &feature.Stripper{Columns: []string{"n"}, Env: testEnv(mem.Allocator)}
		_, err := s.Transform(ctx, df)
		assert.ErrorIs(t, err, prepErrors.ErrUnsupportedType)
	})

	t.Run("missing column", func(t *testing.T) {
		s := &feature.Stripper{Columns: []string{"shape"}, Env: testEnv(mem.Allocator)}
		_, err := s.Transform(ctx, df)
		assert.ErrorIs(t, err, prepErrors.ErrColumnNotFound)
	})
}

func TestStringIndexerOrder(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	ctx := context.Background()

	df := dataframe.New(series.New("c",
		[]string{"b", "a", "c", "b", "a", "b", "d"}, mem.Allocator))
	defer df.Release()

	tests := []struct {
		order  string
		labels []string
	}{
		{config.OrderFrequencyDesc, []string{"b", "a", "c", "d"}},
		{config.OrderFrequencyAsc, []string{"c", "d", "a", "b"}},
		{config.OrderAlphabetDesc, []string{"d", "c", "b", "a"}},
		{config.OrderAlphabetAsc, []string{"a", "b", "c", "d"}},
		{"", []string{"b", "a", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run("order "+tt.order, func(t *testing.T) {
			si := &feature.StringIndexer{
				InputCols:  []string{"c"},
				OutputCols: []string{"c_cat"},
				OrderType:  tt.order,
				Env:        testEnv(mem.Allocator),
			}
			model, err := si.Fit(ctx, df)
			require.NoError(t, err)

			labels, ok := model.Labels("c")
			require.True(t, ok)
			assert.Equal(t, tt.labels, labels)
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		si := &feature.StringIndexer{InputCols: []string{"c"}, OutputCols: []string{"x"}, OrderType: "random"}
		_, err := si.Fit(ctx, df)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)
	})

	t.Run("mismatched outputs", func(t *testing.T) {
		si := &feature.StringIndexer{InputCols: []string{"c"}}
		_, err := si.Fit(ctx, df)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)
	})
}

func TestStringIndexerTransform(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	ctx := context.Background()

	train := testutil.CreateTrainFrame(mem.Allocator)
	defer train.Release()
	test := testutil.CreateTestFrame(mem.Allocator)
	defer test.Release()

	si := &feature.StringIndexer{
		InputCols:  []string{"color", "size"},
		OutputCols: feature.SuffixNames([]string{"color", "size"}, "_cat"),
		Env:        testEnv(mem.Allocator),
	}
	model, err := si.Fit(ctx, train)
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "size"}, model.InputCols())
	assert.Equal(t, []string{"color_cat", "size_cat"}, model.OutputCols())

	colors, _ := model.Labels("color")
	assert.Equal(t, []string{"blue", "red"}, colors) // tie broken alphabetically
	sizes, _ := model.Labels("size")
	assert.Equal(t, []string{"S", "L", "M"}, sizes)
	_, ok := model.Labels("weight")
	assert.False(t, ok)

	newTrain, newTest, err := feature.ApplyPair(ctx, model, train, test)
	require.NoError(t, err)
	defer newTrain.Release()
	defer newTest.Release()

	testutil.AssertDataFrameHasColumns(t, newTrain,
		[]string{"color", "size", "weight", "count", "target", "color_cat", "size_cat"})
	assert.Equal(t, []int64{1, 0, 1, 0}, testutil.Int64Values(t, newTrain, "color_cat"))
	assert.Equal(t, []int64{0, 2, 0, 1}, testutil.Int64Values(t, newTrain, "size_cat"))
	assert.Equal(t, []int64{0, 1, 1}, testutil.Int64Values(t, newTest, "color_cat"))
	assert.Equal(t, []int64{2, 1, 0}, testutil.Int64Values(t, newTest, "size_cat"))
	assert.True(t, newTrain.Schema().Equal(newTest.Schema()))

	t.Run("rerun replaces columns", func(t *testing.T) {
		again, err := model.Transform(ctx, newTrain)
		require.NoError(t, err)
		defer again.Release()
		assert.Equal(t, newTrain.Columns(), again.Columns())
	})

	t.Run("non string input", func(t *testing.T) {
		bad := &feature.StringIndexer{InputCols: []string{"count"}, OutputCols: []string{"count_cat"}}
		_, err := bad.Fit(ctx, train)
		assert.ErrorIs(t, err, prepErrors.ErrUnsupportedType)
	})
}

func TestStringIndexerHandleInvalid(t *testing.T) {
	// Filter goes through compute kernels, so use a plain allocator here.
	mem := memory.NewGoAllocator()
	ctx := context.Background()

	train := testutil.CreateTrainFrame(mem)
	defer train.Release()
	test := testutil.CreateTestFrame(mem, testutil.WithUnseenLabel())
	defer test.Release()

	nullable, err := series.NewNullable("color", []string{"red", ""}, []bool{true, false}, mem)
	require.NoError(t, err)
	withNull := dataframe.New(nullable)
	defer withNull.Release()

	fit := func(t *testing.T, handle string) *feature.StringIndexerModel {
		t.Helper()
		si := &feature.StringIndexer{
			InputCols:     []string{"color"},
			OutputCols:    []string{"color_cat"},
			HandleInvalid: handle,
			Env:           testEnv(mem),
		}
		model, err := si.Fit(ctx, train)
		require.NoError(t, err)
		return model
	}

	t.Run("error", func(t *testing.T) {
		model := fit(t, config.HandleError)

		_, err := model.Transform(ctx, test)
		require.ErrorIs(t, err, prepErrors.ErrUnseenLabel)
		assert.Contains(t, err.Error(), `"green"`)

		_, err = model.Transform(ctx, withNull)
		assert.ErrorIs(t, err, prepErrors.ErrNullValue)
	})

	t.Run("keep", func(t *testing.T) {
		model := fit(t, config.HandleKeep)

		out, err := model.Transform(ctx, test)
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, []int64{0, 2, 1}, testutil.Int64Values(t, out, "color_cat"))
	})

	t.Run("skip", func(t *testing.T) {
		model := fit(t, config.HandleSkip)

		out, err := model.Transform(ctx, test)
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, 2, out.Len())
		assert.Equal(t, []string{"blue", "red"}, testutil.StringValues(t, out, "color"))
		assert.Equal(t, []int64{0, 1}, testutil.Int64Values(t, out, "color_cat"))
		assert.Equal(t, []float64{2.5, 0}, testutil.Float64Values(t, out, "weight"))
	})

	t.Run("unsupported", func(t *testing.T) {
		si := &feature.StringIndexer{
			InputCols: []string{"color"}, OutputCols: []string{"x"}, HandleInvalid: "ignore",
		}
		_, err := si.Fit(ctx, train)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)
	})
}

func TestOneHotEncoder(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	ctx := context.Background()

	train := dataframe.New(series.New("c", []int64{0, 1, 2, 0}, mem.Allocator))
	defer train.Release()
	test := dataframe.New(series.New("c", []int64{2, 3}, mem.Allocator))
	defer test.Release()

	encoder := func(dropLast bool, handle string) *feature.OneHotEncoder {
		return &feature.OneHotEncoder{
			InputCols:     []string{"c"},
			OutputCols:    []string{"c_vec"},
			DropLast:      dropLast,
			HandleInvalid: handle,
			Env:           testEnv(mem.Allocator),
		}
	}

	t.Run("one set position", func(t *testing.T) {
		model, err := encoder(false, "").Fit(ctx, train)
		require.NoError(t, err)
		size, ok := model.CategorySize("c")
		require.True(t, ok)
		assert.Equal(t, 3, size)

		out, err := model.Transform(ctx, train)
		require.NoError(t, err)
		defer out.Release()

		vecs := testutil.VectorValues(t, out, "c_vec")
		require.Len(t, vecs, 4)
		for i, code := range []int{0, 1, 2, 0} {
			assert.True(t, vecs[i].IsSparse())
			assert.Equal(t, 3, vecs[i].Size())
			assert.Equal(t, 1, vecs[i].NumNonzeros())
			assert.InDelta(t, 1.0, vecs[i].At(code), 0)
		}
	})

	t.Run("drop last", func(t *testing.T) {
		model, err := encoder(true, "").Fit(ctx, train)
		require.NoError(t, err)

		out, err := model.Transform(ctx, train)
		require.NoError(t, err)
		defer out.Release()

		vecs := testutil.VectorValues(t, out, "c_vec")
		assert.Equal(t, "(2,[0],[1])", vecs[0].String())
		assert.Equal(t, "(2,[],[])", vecs[2].String())
	})

	t.Run("code beyond fitted size", func(t *testing.T) {
		model, err := encoder(false, config.HandleError).Fit(ctx, train)
		require.NoError(t, err)
		_, err = model.Transform(ctx, test)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)
	})

	t.Run("keep adds a slot", func(t *testing.T) {
		model, err := encoder(false, config.HandleKeep).Fit(ctx, train)
		require.NoError(t, err)

		out, err := model.Transform(ctx, test)
		require.NoError(t, err)
		defer out.Release()

		vecs := testutil.VectorValues(t, out, "c_vec")
		assert.Equal(t, "(4,[2],[1])", vecs[0].String())
		assert.Equal(t, "(4,[3],[1])", vecs[1].String())
	})

	t.Run("invalid codes", func(t *testing.T) {
		negative := dataframe.New(series.New("c", []int64{0, -1}, mem.Allocator))
		defer negative.Release()
		_, err := encoder(false, "").Fit(ctx, negative)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)

		fractional := dataframe.New(series.New("c", []float64{0, 1.5}, mem.Allocator))
		defer fractional.Release()
		_, err = encoder(false, "").Fit(ctx, fractional)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)

		nulls, err := series.NewNullable("c", []int64{0, 0}, []bool{true, false}, mem.Allocator)
		require.NoError(t, err)
		withNull := dataframe.New(nulls)
		defer withNull.Release()
		_, err = encoder(false, "").Fit(ctx, withNull)
		assert.ErrorIs(t, err, prepErrors.ErrNullValue)
	})

	t.Run("string input", func(t *testing.T) {
		strs := dataframe.New(series.New("c", []string{"a"}, mem.Allocator))
		defer strs.Release()
		_, err := encoder(false, "").Fit(ctx, strs)
		assert.ErrorIs(t, err, prepErrors.ErrUnsupportedType)
	})
}

func TestVectorAssembler(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	ctx := context.Background()

	df := testutil.CreateTestTableWithData(mem.Allocator,
		[]string{"a", "b", "v", "s"},
		map[string]interface{}{
			"a": []float64{1.5, 0},
			"b": []int32{2, 0},
			"v": []vector.Vector{vector.OneHot(5, 4), vector.Dense([]float64{0, 0, 3, 0, 0})},
			"s": []string{"x", "y"},
		})
	defer df.Release()

	t.Run("concatenates in order", func(t *testing.T) {
		va := &feature.VectorAssembler{InputCols: []string{"a", "b", "v"}, OutputCol: "features", Env: testEnv(mem.Allocator)}
		out, err := va.Transform(ctx, df)
		require.NoError(t, err)
		defer out.Release()

		vecs := testutil.VectorValues(t, out, "features")
		require.Len(t, vecs, 2)
		assert.Equal(t, []float64{1.5, 2, 0, 0, 0, 0, 1}, vecs[0].ToDense())
		assert.Equal(t, "(7,[0,1,6],[1.5,2,1])", vecs[0].String())
		assert.Equal(t, "(7,[4],[3])", vecs[1].String())
	})

	t.Run("replaces existing output", func(t *testing.T) {
		va := &feature.VectorAssembler{InputCols: []string{"a"}, OutputCol: "v", Env: testEnv(mem.Allocator)}
		out, err := va.Transform(ctx, df)
		require.NoError(t, err)
		defer out.Release()

		assert.Equal(t, df.Columns(), out.Columns())
		assert.Equal(t, "[1.5]", testutil.VectorValues(t, out, "v")[0].String())
	})

	t.Run("null fails", func(t *testing.T) {
		train := testutil.CreateTrainFrame(mem.Allocator, testutil.WithNullWeight())
		defer train.Release()

		va := &feature.VectorAssembler{InputCols: []string{"count", "weight"}, OutputCol: "features"}
		_, err := va.Transform(ctx, train)
		require.ErrorIs(t, err, prepErrors.ErrNullValue)
		assert.Contains(t, err.Error(), "'weight'")
		assert.Contains(t, err.Error(), "row 1")
	})

	t.Run("NaN fails", func(t *testing.T) {
		nan := testutil.CreateTestTableWithData(mem.Allocator,
			[]string{"w", "v"},
			map[string]interface{}{
				"w": []float64{1, math.NaN()},
				"v": []vector.Vector{vector.Dense([]float64{1, 2}), vector.Dense([]float64{math.NaN(), 0})},
			})
		defer nan.Release()

		va := &feature.VectorAssembler{InputCols: []string{"w"}, OutputCol: "features"}
		_, err := va.Transform(ctx, nan)
		require.ErrorIs(t, err, prepErrors.ErrNullValue)
		assert.Contains(t, err.Error(), "'w'")
		assert.Contains(t, err.Error(), "NaN value at row 1")

		va = &feature.VectorAssembler{InputCols: []string{"v"}, OutputCol: "features"}
		_, err = va.Transform(ctx, nan)
		require.ErrorIs(t, err, prepErrors.ErrNullValue)
		assert.Contains(t, err.Error(), "'v'")
		assert.Contains(t, err.Error(), "row 1")
	})

	t.Run("string input", func(t *testing.T) {
		va := &feature.VectorAssembler{InputCols: []string{"a", "s"}, OutputCol: "features"}
		_, err := va.Transform(ctx, df)
		assert.ErrorIs(t, err, prepErrors.ErrUnsupportedType)
	})

	t.Run("empty output name", func(t *testing.T) {
		va := &feature.VectorAssembler{InputCols: []string{"a"}}
		_, err := va.Transform(ctx, df)
		assert.ErrorIs(t, err, prepErrors.ErrInvalidInput)
	})
}

func TestApplyPairReleasesOnFailure(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()
	ctx := context.Background()

	train := testutil.CreateTrainFrame(mem.Allocator)
	defer train.Release()
	test := testutil.CreateTestFrame(mem.Allocator, testutil.WithUnseenLabel())
	defer test.Release()

	si := &feature.StringIndexer{
		InputCols:  []string{"size", "color"},
		OutputCols: []string{"size_cat", "color_cat"},
		Env:        testEnv(mem.Allocator),
	}
	model, err := si.Fit(ctx, train)
	require.NoError(t, err)

	newTrain, newTest, err := feature.ApplyPair(ctx, model, train, test)
	require.ErrorIs(t, err, prepErrors.ErrUnseenLabel)
	assert.Contains(t, err.Error(), "transforming test")
	assert.Nil(t, newTrain)
	assert.Nil(t, newTest)
}
