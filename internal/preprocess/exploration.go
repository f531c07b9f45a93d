package preprocess

import (
	"context"
	"io"

	"github.com/paveg/prepkit/internal/explore"
)

// ExploreFactors compares the distinct values of every factor in train and test.
func (p *Preprocessor) ExploreFactors(ctx context.Context) (*explore.Exploration, error) {
	factors, err := p.Factors()
	if err != nil {
		return nil, err
	}
	e, err := explore.Factors(ctx, p.train, p.test, factors, p.mem)
	if err != nil {
		return nil, p.fail(err)
	}
	p.logStep(ctx, "ExploreFactors", factors)
	return e, nil
}

// ExploreNumericColumns compares summary statistics of every numeric column
// in train and test.
func (p *Preprocessor) ExploreNumericColumns(ctx context.Context) (*explore.Exploration, error) {
	numeric, err := p.NumericColumns()
	if err != nil {
		return nil, err
	}
	e, err := explore.Numeric(ctx, p.train, p.test, numeric)
	if err != nil {
		return nil, p.fail(err)
	}
	p.logStep(ctx, "ExploreNumericColumns", numeric)
	return e, nil
}

// PrintExploration writes every table of e to w.
func (p *Preprocessor) PrintExploration(w io.Writer, e *explore.Exploration) error {
	if err := p.usable("PrintExploration"); err != nil {
		return err
	}
	return explore.Print(w, e)
}
