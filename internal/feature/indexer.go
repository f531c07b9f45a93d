package feature

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/parallel"
	"github.com/paveg/prepkit/internal/series"
)

const indexOp = "StringIndex"

// StringIndexer maps the distinct values of string columns to integer codes.
// Codes start at 0 and follow OrderType; ties are broken by ascending value.
type StringIndexer struct {
	InputCols     []string
	OutputCols    []string
	OrderType     string
	HandleInvalid string
	Env           Env
}

// StringIndexerModel holds the labels fitted for each input column.
type StringIndexerModel struct {
	inputCols     []string
	outputCols    []string
	labels        [][]string
	codes         []map[string]int64
	handleInvalid string
	env           Env
}

// Fit learns the label set of every input column from df.
func (si *StringIndexer) Fit(ctx context.Context, df *dataframe.DataFrame) (*StringIndexerModel, error) {
	if err := outputNames(indexOp, si.InputCols, si.OutputCols); err != nil {
		return nil, err
	}
	if err := requireKind(indexOp, df, si.InputCols, dataframe.KindFactor); err != nil {
		return nil, err
	}
	order := si.OrderType
	if order == "" {
		order = config.OrderFrequencyDesc
	}
	less, err := labelOrder(order)
	if err != nil {
		return nil, err
	}
	handle := si.HandleInvalid
	if handle == "" {
		handle = config.HandleError
	}
	if err := checkHandleInvalid(indexOp, handle); err != nil {
		return nil, err
	}
	env := si.Env.withDefaults()

	labels, err := parallel.ProcessIndexed(ctx, env.Pool, df.Len(), si.InputCols,
		func(_ context.Context, _ int, name string) ([]string, error) {
			col, _ := df.Column(name)
			arr := col.Array()
			defer arr.Release()
			strs := arr.(*array.String)

			counts := make(map[string]int)
			for i := 0; i < strs.Len(); i++ {
				if strs.IsNull(i) {
					continue
				}
				counts[strs.Value(i)]++
			}
			out := make([]string, 0, len(counts))
			for label := range counts {
				out = append(out, label)
			}
			sort.Slice(out, func(i, j int) bool { return less(out[i], out[j], counts) })
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	model := &StringIndexerModel{
		inputCols:     append([]string(nil), si.InputCols...),
		outputCols:    append([]string(nil), si.OutputCols...),
		labels:        labels,
		codes:         make([]map[string]int64, len(labels)),
		handleInvalid: handle,
		env:           env,
	}
	for i, ls := range labels {
		model.codes[i] = make(map[string]int64, len(ls))
		for code, label := range ls {
			model.codes[i][label] = int64(code)
		}
	}
	return model, nil
}

type labelLess func(a, b string, counts map[string]int) bool

func labelOrder(order string) (labelLess, error) {
	switch order {
	case config.OrderFrequencyDesc:
		return func(a, b string, counts map[string]int) bool {
			if counts[a] != counts[b] {
				return counts[a] > counts[b]
			}
			return a < b
		}, nil
	case config.OrderFrequencyAsc:
		return func(a, b string, counts map[string]int) bool {
			if counts[a] != counts[b] {
				return counts[a] < counts[b]
			}
			return a < b
		}, nil
	case config.OrderAlphabetDesc:
		return func(a, b string, _ map[string]int) bool { return a > b }, nil
	case config.OrderAlphabetAsc:
		return func(a, b string, _ map[string]int) bool { return a < b }, nil
	default:
		return nil, prepErrors.NewInvalidInputError(indexOp, fmt.Sprintf("unsupported string order type %q", order))
	}
}

func checkHandleInvalid(op, handle string) error {
	switch handle {
	case config.HandleError, config.HandleSkip, config.HandleKeep:
		return nil
	default:
		return prepErrors.NewInvalidInputError(op, fmt.Sprintf("unsupported handleInvalid %q", handle))
	}
}

// InputCols returns the indexed column names.
func (m *StringIndexerModel) InputCols() []string {
	return append([]string(nil), m.inputCols...)
}

// OutputCols returns the code column names.
func (m *StringIndexerModel) OutputCols() []string {
	return append([]string(nil), m.outputCols...)
}

// Labels returns the fitted labels of column in code order.
func (m *StringIndexerModel) Labels(column string) ([]string, bool) {
	for i, name := range m.inputCols {
		if name == column {
			return append([]string(nil), m.labels[i]...), true
		}
	}
	return nil, false
}

// indexed is the code column built for one input plus the rows it rejects.
type indexed struct {
	series  dataframe.ISeries
	invalid []bool
}

func (r indexed) Release() {
	if r.series != nil {
		r.series.Release()
	}
}

// Transform adds one int64 code column per input column. Values missing from
// the fitted labels, and nulls, are handled according to handleInvalid:
// "error" fails, "skip" drops the row and "keep" assigns the code len(labels).
func (m *StringIndexerModel) Transform(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if err := requireKind(indexOp, df, m.inputCols, dataframe.KindFactor); err != nil {
		return nil, err
	}

	results, err := parallel.ProcessIndexed(ctx, m.env.Pool, df.Len(), m.inputCols,
		func(_ context.Context, i int, name string) (indexed, error) {
			return m.indexColumn(df, i, name)
		})
	if err != nil {
		return nil, err
	}

	keep := make([]bool, df.Len())
	for i := range keep {
		keep[i] = true
	}
	dropped := false
	cols := make([]dataframe.ISeries, len(results))
	for i, r := range results {
		cols[i] = r.series
		for row, bad := range r.invalid {
			if bad {
				keep[row] = false
				dropped = true
			}
		}
	}

	out, err := withColumns(df, cols)
	if err != nil || !dropped {
		return out, err
	}
	defer out.Release()
	return out.Filter(ctx, keep, m.env.Mem)
}

func (m *StringIndexerModel) indexColumn(df *dataframe.DataFrame, i int, name string) (indexed, error) {
	col, _ := df.Column(name)
	arr := col.Array()
	defer arr.Release()
	strs := arr.(*array.String)

	codes := m.codes[i]
	unknown := int64(len(m.labels[i]))
	values := make([]int64, strs.Len())
	var invalid []bool

	for row := 0; row < strs.Len(); row++ {
		code, ok := int64(0), false
		if !strs.IsNull(row) {
			code, ok = codes[strs.Value(row)]
		}
		if ok {
			values[row] = code
			continue
		}
		switch m.handleInvalid {
		case config.HandleKeep:
			values[row] = unknown
		case config.HandleSkip:
			if invalid == nil {
				invalid = make([]bool, strs.Len())
			}
			invalid[row] = true
		default:
			if strs.IsNull(row) {
				return indexed{}, prepErrors.NewNullValueError(indexOp, name, row)
			}
			return indexed{}, prepErrors.NewUnseenLabelError(indexOp, name, strs.Value(row))
		}
	}

	s, err := series.NewSafe(m.outputCols[i], values, m.env.Mem)
	if err != nil {
		return indexed{}, err
	}
	return indexed{series: s, invalid: invalid}, nil
}
