// Package stats computes the summary statistics shown when exploring numeric
// columns.
package stats

import (
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummaryNames lists the statistics in the order Describe reports them.
var SummaryNames = []string{"count", "mean", "stddev", "min", "max"}

// Summary holds the statistics of the non-null values of a numeric column.
// Undefined statistics are NaN: every one but Count on an empty column, and
// StdDev when fewer than two values are present.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64 // sample standard deviation
	Min    float64
	Max    float64
}

// Describe summarizes a numeric Arrow array, skipping nulls.
func Describe(arr arrow.Array) (Summary, error) {
	if !series.IsNumericType(arr.DataType()) {
		return Summary{}, prepErrors.NewUnsupportedTypeError("Describe", "", arr.DataType().String())
	}

	values := make([]float64, 0, arr.Len()-arr.NullN())
	for i := 0; i < arr.Len(); i++ {
		if x, ok := series.Float64At(arr, i); ok {
			values = append(values, x)
		}
	}

	nan := math.NaN()
	summary := Summary{Count: len(values), Mean: nan, StdDev: nan, Min: nan, Max: nan}
	if len(values) == 0 {
		return summary, nil
	}

	mean, std := stat.MeanStdDev(values, nil)
	summary.Mean = mean
	if len(values) > 1 {
		summary.StdDev = std
	}
	summary.Min = floats.Min(values)
	summary.Max = floats.Max(values)
	return summary, nil
}

// DescribeColumn summarizes column of df.
func DescribeColumn(df *dataframe.DataFrame, column string) (Summary, error) {
	col, ok := df.Column(column)
	if !ok {
		return Summary{}, prepErrors.NewColumnNotFoundError("Describe", column)
	}
	arr := col.Array()
	defer arr.Release()

	summary, err := Describe(arr)
	if err != nil {
		return Summary{}, prepErrors.NewUnsupportedTypeError("Describe", column, arr.DataType().String())
	}
	return summary, nil
}

// Strings renders the statistics in SummaryNames order. Undefined values render as "NaN".
func (s Summary) Strings() []string {
	return []string{
		strconv.Itoa(s.Count),
		formatStat(s.Mean),
		formatStat(s.StdDev),
		formatStat(s.Min),
		formatStat(s.Max),
	}
}

func formatStat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
