// Package explore builds the per-column tables that compare a train and a test
// dataset: which factor values occur in each, and summary statistics of
// numeric columns side by side.
//
// Tables are go-gota DataFrames so they can be printed and exported as they are.
package explore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gota "github.com/go-gota/gota/dataframe"
	gotaseries "github.com/go-gota/gota/series"
	"github.com/paveg/prepkit/internal/dataframe"
	"github.com/paveg/prepkit/internal/stats"
)

// Column names of the exploration tables.
const (
	InTrainColumn = "in_train"
	InTestColumn  = "in_test"
	SummaryColumn = "summary"
	TrainColumn   = "train"
	TestColumn    = "test"
)

// Exploration holds one table per explored column, in column order.
type Exploration struct {
	Columns []string
	Tables  map[string]gota.DataFrame
}

func newExploration(capacity int) *Exploration {
	return &Exploration{
		Columns: make([]string, 0, capacity),
		Tables:  make(map[string]gota.DataFrame, capacity),
	}
}

func (e *Exploration) add(column string, table gota.DataFrame) {
	e.Columns = append(e.Columns, column)
	e.Tables[column] = table
}

// Table returns the table built for column.
func (e *Exploration) Table(column string) (gota.DataFrame, bool) {
	table, ok := e.Tables[column]
	return table, ok
}

// Factors builds, for every column, the outer join of the distinct values of
// train and test with in_train/in_test set to 1 when the value occurs in that
// dataset and 0 otherwise. Rows are sorted by value. Null values never match
// each other: a null in train and a null in test give one row each, after all
// other values.
func Factors(ctx context.Context, train, test *dataframe.DataFrame, columns []string, mem memory.Allocator) (*Exploration, error) {
	e := newExploration(len(columns))
	for _, column := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trainValues, err := distinctValues(train, column, mem)
		if err != nil {
			return nil, fmt.Errorf("counting train values: %w", err)
		}
		testValues, err := distinctValues(test, column, mem)
		if err != nil {
			return nil, fmt.Errorf("counting test values: %w", err)
		}

		table := outerJoin(trainValues, testValues).frame(column)
		if table.Err != nil {
			return nil, fmt.Errorf("joining value counts of %s: %w", column, table.Err)
		}
		e.add(column, table)
	}
	return e, nil
}

// presence lists the distinct non-null values of a column and whether it
// holds any null.
type presence struct {
	values  map[string]struct{}
	hasNull bool
}

func distinctValues(df *dataframe.DataFrame, column string, mem memory.Allocator) (presence, error) {
	counts, err := df.ValueCounts(column, mem)
	if err != nil {
		return presence{}, err
	}
	defer counts.Release()

	valueCol, _ := counts.Column(column)
	valueArr := valueCol.Array()
	defer valueArr.Release()

	strs := valueArr.(*array.String)
	p := presence{values: make(map[string]struct{}, strs.Len())}
	for i := 0; i < strs.Len(); i++ {
		if strs.IsNull(i) {
			p.hasNull = true
			continue
		}
		p.values[strs.Value(i)] = struct{}{}
	}
	return p, nil
}

// factorRow is one row of a factor table; a nil value is a null key.
type factorRow struct {
	value   *string
	inTrain int
	inTest  int
}

type factorTable []factorRow

func outerJoin(train, test presence) factorTable {
	keys := make([]string, 0, len(train.values)+len(test.values))
	for v := range train.values {
		keys = append(keys, v)
	}
	for v := range test.values {
		if _, ok := train.values[v]; !ok {
			keys = append(keys, v)
		}
	}
	sort.Strings(keys)

	rows := make(factorTable, 0, len(keys)+2)
	for _, k := range keys {
		row := factorRow{value: &k}
		if _, ok := train.values[k]; ok {
			row.inTrain = 1
		}
		if _, ok := test.values[k]; ok {
			row.inTest = 1
		}
		rows = append(rows, row)
	}
	if train.hasNull {
		rows = append(rows, factorRow{inTrain: 1})
	}
	if test.hasNull {
		rows = append(rows, factorRow{inTest: 1})
	}
	return rows
}

// frame materializes the joined rows as a gota frame with columns
// [column, in_train, in_test]. gota renders null keys as NaN.
func (t factorTable) frame(column string) gota.DataFrame {
	values := make([]interface{}, len(t))
	inTrain := make([]int, len(t))
	inTest := make([]int, len(t))
	for i, row := range t {
		if row.value != nil {
			values[i] = *row.value
		}
		inTrain[i] = row.inTrain
		inTest[i] = row.inTest
	}
	return gota.New(
		gotaseries.New(values, gotaseries.String, column),
		gotaseries.New(inTrain, gotaseries.Int, InTrainColumn),
		gotaseries.New(inTest, gotaseries.Int, InTestColumn),
	)
}

// Numeric builds, for every column, the train and test summary statistics
// joined on the statistic name, with both value columns as floats.
func Numeric(ctx context.Context, train, test *dataframe.DataFrame, columns []string) (*Exploration, error) {
	e := newExploration(len(columns))
	for _, column := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trainSummary, err := stats.DescribeColumn(train, column)
		if err != nil {
			return nil, fmt.Errorf("describing train: %w", err)
		}
		testSummary, err := stats.DescribeColumn(test, column)
		if err != nil {
			return nil, fmt.Errorf("describing test: %w", err)
		}

		joined := summaryFrame(trainSummary, TrainColumn).OuterJoin(summaryFrame(testSummary, TestColumn), SummaryColumn)
		joined = joined.Mutate(asFloat(joined, TrainColumn)).Mutate(asFloat(joined, TestColumn))
		if joined.Err != nil {
			return nil, fmt.Errorf("joining summaries of %s: %w", column, joined.Err)
		}
		e.add(column, joined)
	}
	return e, nil
}

func summaryFrame(s stats.Summary, name string) gota.DataFrame {
	return gota.New(
		gotaseries.New(stats.SummaryNames, gotaseries.String, SummaryColumn),
		gotaseries.New(s.Strings(), gotaseries.String, name),
	)
}

func asFloat(df gota.DataFrame, name string) gotaseries.Series {
	return gotaseries.New(df.Col(name).Float(), gotaseries.Float, name)
}

// Print writes every table preceded by a header naming its column and
// followed by a separator line.
func Print(w io.Writer, e *Exploration) error {
	for _, column := range e.Columns {
		if _, err := fmt.Fprintf(w, "COLUMN: %s ===============\n", column); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, e.Tables[column]); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, strings.Repeat("=", 50)); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes each table to <dir>/<column>.csv, creating dir if needed.
func (e *Exploration) WriteCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, column := range e.Columns {
		path := filepath.Join(dir, fileName(column)+".csv")
		if err := writeTable(path, e.Tables[column]); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(path string, table gota.DataFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// fileName keeps a column name from escaping the output directory.
func fileName(column string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, column)
}
