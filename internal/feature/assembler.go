package feature

import (
	"context"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
)

const assembleOp = "AssembleFeatures"

// VectorAssembler concatenates numeric and vector columns into one vector
// column. Numeric columns contribute one slot, vector columns their full length.
type VectorAssembler struct {
	InputCols []string
	OutputCol string
	Env       Env
}

// Transform adds OutputCol, replacing it when already present. Each row is
// stored in its compressed form. Any null or NaN input fails the whole transform.
func (va *VectorAssembler) Transform(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if va.OutputCol == "" {
		return nil, prepErrors.NewInvalidInputError(assembleOp, "output column name must not be empty")
	}
	if err := requireKind(assembleOp, df, va.InputCols, dataframe.KindNumeric, dataframe.KindVector); err != nil {
		return nil, err
	}
	env := va.Env.withDefaults()

	inputs := make([]assemblerInput, len(va.InputCols))
	defer func() {
		for _, in := range inputs {
			if in.arr != nil {
				in.arr.Release()
			}
		}
	}()
	for i, name := range va.InputCols {
		col, _ := df.Column(name)
		inputs[i] = assemblerInput{name: name, arr: col.Array()}
		if vector.IsVectorType(inputs[i].arr.DataType()) {
			reader, err := vector.NewReader(inputs[i].arr)
			if err != nil {
				return nil, err
			}
			inputs[i].vectors = reader
		}
	}

	b := vector.NewBuilder(env.Mem)
	defer b.Release()

	var (
		indices []int32
		values  []float64
	)
	for row := 0; row < df.Len(); row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		indices, values = indices[:0], values[:0]
		offset := 0
		for _, in := range inputs {
			if in.arr.IsNull(row) {
				return nil, prepErrors.NewNullValueError(assembleOp, in.name, row)
			}
			if in.vectors == nil {
				x, _ := series.Float64At(in.arr, row)
				if math.IsNaN(x) {
					return nil, prepErrors.NewNaNValueError(assembleOp, in.name, row)
				}
				if x != 0 {
					indices = append(indices, int32(offset))
					values = append(values, x)
				}
				offset++
				continue
			}
			v := in.vectors.Value(row)
			hasNaN := false
			v.ForEachActive(func(i int, x float64) {
				if math.IsNaN(x) {
					hasNaN = true
					return
				}
				if x != 0 {
					indices = append(indices, int32(offset+i))
					values = append(values, x)
				}
			})
			if hasNaN {
				return nil, prepErrors.NewNaNValueError(assembleOp, in.name, row)
			}
			offset += v.Size()
		}

		assembled, err := vector.Sparse(offset,
			append([]int32(nil), indices...), append([]float64(nil), values...))
		if err != nil {
			return nil, err
		}
		b.Append(assembled.Compressed())
	}

	out := b.NewArray()
	defer out.Release()
	return withColumns(df, []dataframe.ISeries{dataframe.Wrap(va.OutputCol, out)})
}

type assemblerInput struct {
	name    string
	arr     arrow.Array
	vectors *vector.Reader
}
