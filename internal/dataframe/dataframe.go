// Package dataframe provides the Arrow-backed tabular dataset used for train and
// test data. DataFrames are immutable: every operation returns a new DataFrame
// holding its own retained references, so each one must be released.
package dataframe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
)

// CountColumn is the name of the count column produced by ValueCounts.
const CountColumn = "count"

// DataFrame represents a table of data with typed columns
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries. The DataFrame takes
// ownership of the series.
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		columns[name] = s
		order = append(order, name)
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// NewChecked is New with validation of unique names and equal column lengths.
// On error the series are released.
func NewChecked(series ...ISeries) (*DataFrame, error) {
	seen := make(map[string]bool, len(series))
	var err error
	for _, s := range series {
		switch {
		case seen[s.Name()]:
			err = prepErrors.NewInvalidInputError("New", fmt.Sprintf("duplicate column %q", s.Name()))
		case s.Len() != series[0].Len():
			err = prepErrors.NewInvalidInputError("New",
				fmt.Sprintf("column %q has %d rows, expected %d", s.Name(), s.Len(), series[0].Len()))
		}
		if err != nil {
			for _, toRelease := range series {
				toRelease.Release()
			}
			return nil, err
		}
		seen[s.Name()] = true
	}
	return New(series...), nil
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	if len(df.order) == 0 {
		return []string{}
	}
	return append([]string(nil), df.order...)
}

// Len returns the number of rows (assumes all columns have same length)
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	series, exists := df.columns[name]
	return series, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// Schema returns a snapshot of the current column names and types.
func (df *DataFrame) Schema() Schema {
	fields := make([]Field, len(df.order))
	for i, name := range df.order {
		fields[i] = Field{Name: name, Type: df.columns[name].DataType()}
	}
	return Schema{fields: fields}
}

// Select returns a new DataFrame with only the specified columns.
// Unknown names are ignored.
func (df *DataFrame) Select(names ...string) *DataFrame {
	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		if s, exists := df.columns[name]; exists {
			selected = append(selected, retain(s, name))
		}
	}
	return New(selected...)
}

// Copy returns a new DataFrame sharing (and retaining) every column.
func (df *DataFrame) Copy() *DataFrame {
	return df.Select(df.order...)
}

// Drop returns a new DataFrame without the specified columns
func (df *DataFrame) Drop(names ...string) *DataFrame {
	dropSet := make(map[string]bool)
	for _, name := range names {
		dropSet[name] = true
	}

	kept := make([]string, 0, len(df.order))
	for _, name := range df.order {
		if !dropSet[name] {
			kept = append(kept, name)
		}
	}
	return df.Select(kept...)
}

// WithColumn returns a new DataFrame with s appended, or replacing the column
// of the same name in place. The new DataFrame retains s; the caller keeps its
// own reference.
func (df *DataFrame) WithColumn(s ISeries) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, prepErrors.NewInvalidInputError("WithColumn",
			fmt.Sprintf("column %q has %d rows, expected %d", s.Name(), s.Len(), df.Len()))
	}

	out := make([]ISeries, 0, len(df.order)+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			out = append(out, retain(s, name))
			replaced = true
			continue
		}
		out = append(out, retain(df.columns[name], name))
	}
	if !replaced {
		out = append(out, retain(s, s.Name()))
	}
	return New(out...), nil
}

// Rename returns a new DataFrame with column oldName called newName.
func (df *DataFrame) Rename(oldName, newName string) (*DataFrame, error) {
	if !df.HasColumn(oldName) {
		return nil, prepErrors.NewColumnNotFoundError("Rename", oldName)
	}
	if oldName != newName && df.HasColumn(newName) {
		return nil, prepErrors.NewInvalidInputError("Rename", fmt.Sprintf("column %q already exists", newName))
	}

	out := make([]ISeries, len(df.order))
	for i, name := range df.order {
		target := name
		if name == oldName {
			target = newName
		}
		out[i] = retain(df.columns[name], target)
	}
	return New(out...), nil
}

// Filter returns the rows where keep[i] is true.
func (df *DataFrame) Filter(ctx context.Context, keep []bool, mem memory.Allocator) (*DataFrame, error) {
	if len(keep) != df.Len() {
		return nil, prepErrors.NewInvalidInputError("Filter",
			fmt.Sprintf("mask has %d entries, expected %d", len(keep), df.Len()))
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	maskBuilder := array.NewBooleanBuilder(mem)
	maskBuilder.AppendValues(keep, nil)
	mask := maskBuilder.NewArray()
	maskBuilder.Release()
	defer mask.Release()

	ctx = compute.WithAllocator(ctx, mem)
	out := make([]ISeries, 0, len(df.order))
	release := func() {
		for _, s := range out {
			s.Release()
		}
	}

	for _, name := range df.order {
		arr := df.columns[name].Array()
		filtered, err := filterArray(ctx, arr, mask, keep, mem)
		arr.Release()
		if err != nil {
			release()
			return nil, fmt.Errorf("filtering column %s: %w", name, err)
		}
		out = append(out, Wrap(name, filtered))
		filtered.Release()
	}
	return New(out...), nil
}

func filterArray(ctx context.Context, arr, mask arrow.Array, keep []bool, mem memory.Allocator) (arrow.Array, error) {
	if !vector.IsVectorType(arr.DataType()) {
		return compute.FilterArray(ctx, arr, mask, *compute.DefaultFilterOptions())
	}

	reader, err := vector.NewReader(arr)
	if err != nil {
		return nil, err
	}
	b := vector.NewBuilder(mem)
	defer b.Release()
	for i, ok := range keep {
		switch {
		case !ok:
		case reader.IsNull(i):
			b.AppendNull()
		default:
			b.Append(reader.Value(i))
		}
	}
	return b.NewArray(), nil
}

// ValueCounts groups a string column by value and counts rows per value.
// Nulls form their own group. Rows are ordered by descending count, then value.
func (df *DataFrame) ValueCounts(column string, mem memory.Allocator) (*DataFrame, error) {
	s, ok := df.columns[column]
	if !ok {
		return nil, prepErrors.NewColumnNotFoundError("ValueCounts", column)
	}
	arr := s.Array()
	defer arr.Release()

	strs, ok := arr.(*array.String)
	if !ok {
		return nil, prepErrors.NewUnsupportedTypeError("ValueCounts", column, arr.DataType().String())
	}

	counts := make(map[string]int64)
	var nulls int64
	for i := 0; i < strs.Len(); i++ {
		if strs.IsNull(i) {
			nulls++
			continue
		}
		counts[strs.Value(i)]++
	}

	values := make([]string, 0, len(counts)+1)
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	n := make([]int64, len(values))
	valid := make([]bool, len(values))
	for i, v := range values {
		n[i] = counts[v]
		valid[i] = true
	}
	if nulls > 0 {
		values = append(values, "")
		n = append(n, nulls)
		valid = append(valid, false)
	}

	keys, err := series.NewNullable(column, values, valid, mem)
	if err != nil {
		return nil, err
	}
	return New(keys, series.New(CountColumn, n, mem)), nil
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}

	for _, name := range df.order {
		field := Field{Name: name, Type: df.columns[name].DataType()}
		parts = append(parts, fmt.Sprintf("  %s: %s", name, field.TypeName()))
	}

	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, series := range df.columns {
		series.Release()
	}
}

// Wrap wraps an Arrow array as a named series of the matching Go type.
// The series retains arr.
func Wrap(name string, arr arrow.Array) ISeries {
	switch arr.DataType().ID() {
	case arrow.STRING:
		return series.FromArray[string](name, arr)
	case arrow.INT64:
		return series.FromArray[int64](name, arr)
	case arrow.INT32:
		return series.FromArray[int32](name, arr)
	case arrow.FLOAT64:
		return series.FromArray[float64](name, arr)
	case arrow.FLOAT32:
		return series.FromArray[float32](name, arr)
	case arrow.BOOL:
		return series.FromArray[bool](name, arr)
	case arrow.STRUCT:
		return series.FromArray[vector.Vector](name, arr)
	default:
		return series.FromArray[any](name, arr)
	}
}

// retain returns a new series named name sharing s's data.
func retain(s ISeries, name string) ISeries {
	arr := s.Array()
	defer arr.Release()
	return Wrap(name, arr)
}
