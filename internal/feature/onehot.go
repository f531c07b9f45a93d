package feature

import (
	"context"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/parallel"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
)

const oneHotOp = "OneHotEncode"

// OneHotEncoder maps integer category codes to sparse indicator vectors.
type OneHotEncoder struct {
	InputCols     []string
	OutputCols    []string
	DropLast      bool
	HandleInvalid string
	Env           Env
}

// OneHotEncoderModel holds the number of categories seen per input column.
type OneHotEncoderModel struct {
	inputCols     []string
	outputCols    []string
	categories    []int
	dropLast      bool
	handleInvalid string
	env           Env
}

// Fit sizes each input column as its largest code plus one.
func (e *OneHotEncoder) Fit(ctx context.Context, df *dataframe.DataFrame) (*OneHotEncoderModel, error) {
	if err := outputNames(oneHotOp, e.InputCols, e.OutputCols); err != nil {
		return nil, err
	}
	if err := requireKind(oneHotOp, df, e.InputCols, dataframe.KindNumeric); err != nil {
		return nil, err
	}
	handle := e.HandleInvalid
	if handle == "" {
		handle = config.HandleError
	}
	if err := checkHandleInvalid(oneHotOp, handle); err != nil {
		return nil, err
	}
	env := e.Env.withDefaults()

	sizes, err := parallel.ProcessIndexed(ctx, env.Pool, df.Len(), e.InputCols,
		func(_ context.Context, _ int, name string) (int, error) {
			col, _ := df.Column(name)
			arr := col.Array()
			defer arr.Release()

			maxCode := -1
			for row := 0; row < arr.Len(); row++ {
				code, err := categoryAt(arr, name, row)
				if err != nil {
					return 0, err
				}
				if code > maxCode {
					maxCode = code
				}
			}
			return maxCode + 1, nil
		})
	if err != nil {
		return nil, err
	}

	return &OneHotEncoderModel{
		inputCols:     append([]string(nil), e.InputCols...),
		outputCols:    append([]string(nil), e.OutputCols...),
		categories:    sizes,
		dropLast:      e.DropLast,
		handleInvalid: handle,
		env:           env,
	}, nil
}

// categoryAt reads a category code. Codes must be non-null, non-negative integers.
func categoryAt(arr arrow.Array, column string, row int) (int, error) {
	value, ok := series.Float64At(arr, row)
	if !ok {
		return 0, prepErrors.NewNullValueError(oneHotOp, column, row)
	}
	if value < 0 || value != math.Trunc(value) || math.IsInf(value, 0) {
		return 0, &prepErrors.PrepError{
			Op:      oneHotOp,
			Column:  column,
			Message: fmt.Sprintf("row %d holds %v, expected a non-negative integer code", row, value),
			Kind:    prepErrors.ErrInvalidInput,
		}
	}
	return int(value), nil
}

// CategorySize returns the number of categories fitted for column.
func (m *OneHotEncoderModel) CategorySize(column string) (int, bool) {
	for i, name := range m.inputCols {
		if name == column {
			return m.categories[i], true
		}
	}
	return 0, false
}

// vectorSize returns the length of the vectors produced for input column i.
func (m *OneHotEncoderModel) vectorSize(i int) int {
	n := m.categories[i]
	if m.handleInvalid == config.HandleKeep {
		n++
	}
	if m.dropLast {
		n--
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Transform adds one vector column per input column. A code past the fitted
// size fails unless handleInvalid is "keep", which maps it to an extra slot.
func (m *OneHotEncoderModel) Transform(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if err := requireKind(oneHotOp, df, m.inputCols, dataframe.KindNumeric); err != nil {
		return nil, err
	}

	cols, err := parallel.ProcessIndexed(ctx, m.env.Pool, df.Len(), m.inputCols,
		func(_ context.Context, i int, name string) (dataframe.ISeries, error) {
			return m.encodeColumn(df, i, name)
		})
	if err != nil {
		return nil, err
	}
	return withColumns(df, cols)
}

func (m *OneHotEncoderModel) encodeColumn(df *dataframe.DataFrame, i int, name string) (dataframe.ISeries, error) {
	col, _ := df.Column(name)
	arr := col.Array()
	defer arr.Release()

	size := m.vectorSize(i)
	b := vector.NewBuilder(m.env.Mem)
	defer b.Release()

	for row := 0; row < arr.Len(); row++ {
		code, err := categoryAt(arr, name, row)
		if err != nil {
			return nil, err
		}
		if code >= m.categories[i] {
			if m.handleInvalid != config.HandleKeep {
				return nil, &prepErrors.PrepError{
					Op:     oneHotOp,
					Column: name,
					Message: fmt.Sprintf("row %d holds code %d but only %d categories were fitted",
						row, code, m.categories[i]),
					Kind: prepErrors.ErrInvalidInput,
				}
			}
			code = m.categories[i]
		}
		b.Append(vector.OneHot(size, code))
	}

	out := b.NewArray()
	defer out.Release()
	return dataframe.Wrap(m.outputCols[i], out), nil
}
