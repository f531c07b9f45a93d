package feature

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/prepkit/internal/dataframe"
	"github.com/paveg/prepkit/internal/parallel"
)

// Stripper trims leading and trailing characters from string columns.
// A space is always part of the cut set.
type Stripper struct {
	Columns []string
	Chars   string
	Env     Env
}

// CutSet returns the characters removed from both ends of each value.
func (s *Stripper) CutSet() string {
	return s.Chars + " "
}

// Transform replaces each listed column with its trimmed values. Nulls stay null.
func (s *Stripper) Transform(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if err := requireKind("StripColumns", df, s.Columns, dataframe.KindFactor); err != nil {
		return nil, err
	}
	env := s.Env.withDefaults()
	cutset := s.CutSet()

	cols, err := parallel.ProcessIndexed(ctx, env.Pool, df.Len(), s.Columns,
		func(_ context.Context, _ int, name string) (dataframe.ISeries, error) {
			col, _ := df.Column(name)
			arr := col.Array()
			defer arr.Release()
			strs := arr.(*array.String)

			b := array.NewStringBuilder(env.Mem)
			defer b.Release()
			b.Reserve(strs.Len())
			for i := 0; i < strs.Len(); i++ {
				if strs.IsNull(i) {
					b.AppendNull()
					continue
				}
				b.Append(strings.Trim(strs.Value(i), cutset))
			}
			out := b.NewArray()
			defer out.Release()
			return dataframe.Wrap(name, out), nil
		})
	if err != nil {
		return nil, err
	}
	return withColumns(df, cols)
}
