package preprocess

import (
	"context"
	"fmt"

	"github.com/paveg/prepkit/internal/feature"
	"github.com/paveg/prepkit/internal/logging"
	"github.com/sirupsen/logrus"
)

// StripColumns trims toStrip and spaces from both ends of every value of the
// given factor columns, in both datasets.
func (p *Preprocessor) StripColumns(ctx context.Context, columns []string, toStrip string) error {
	const op = "StripColumns"
	if err := p.usable(op); err != nil {
		return err
	}
	if err := p.requireFactors(op, columns); err != nil {
		return p.fail(err)
	}

	stage := &feature.Stripper{Columns: columns, Chars: toStrip, Env: p.env()}
	if err := p.apply(ctx, op, stage); err != nil {
		return err
	}
	p.logStep(ctx, op, columns)
	return nil
}

// StringIndex fits a string indexer on train and appends a
// <column><suffix> code column for every factor to both datasets. An empty
// suffix uses the configured one.
func (p *Preprocessor) StringIndex(ctx context.Context, columns []string, suffix string) (*feature.StringIndexerModel, error) {
	const op = "StringIndex"
	if err := p.usable(op); err != nil {
		return nil, err
	}
	if err := p.requireFactors(op, columns); err != nil {
		return nil, p.fail(err)
	}
	if suffix == "" {
		suffix = p.cfg.IndexedSuffix
	}

	indexer := &feature.StringIndexer{
		InputCols:     columns,
		OutputCols:    feature.SuffixNames(columns, suffix),
		OrderType:     p.cfg.StringOrderType,
		HandleInvalid: p.cfg.HandleInvalid,
		Env:           p.env(),
	}
	model, err := indexer.Fit(ctx, p.train)
	if err != nil {
		return nil, p.fail(fmt.Errorf("fitting string indexer: %w", err))
	}
	if err := p.apply(ctx, op, model); err != nil {
		return nil, err
	}
	p.logStep(ctx, op, columns)
	return model, nil
}

// OneHotEncode fits a one-hot encoder on the train category codes and
// appends a <column><suffix> vector column for every input to both datasets.
// An empty suffix uses the configured one.
func (p *Preprocessor) OneHotEncode(ctx context.Context, columns []string, suffix string) (*feature.OneHotEncoderModel, error) {
	const op = "OneHotEncode"
	if err := p.usable(op); err != nil {
		return nil, err
	}
	if suffix == "" {
		suffix = p.cfg.OneHotSuffix
	}

	encoder := &feature.OneHotEncoder{
		InputCols:     columns,
		OutputCols:    feature.SuffixNames(columns, suffix),
		DropLast:      p.cfg.OneHotDropLast,
		HandleInvalid: p.cfg.HandleInvalid,
		Env:           p.env(),
	}
	model, err := encoder.Fit(ctx, p.train)
	if err != nil {
		return nil, p.fail(fmt.Errorf("fitting one-hot encoder: %w", err))
	}
	if err := p.apply(ctx, op, model); err != nil {
		return nil, err
	}
	p.logStep(ctx, op, columns)
	return model, nil
}

// AssembleFeatures concatenates the given numeric and vector columns into
// the vector column outName in both datasets. An empty outName uses the
// configured features column.
func (p *Preprocessor) AssembleFeatures(ctx context.Context, columns []string, outName string) error {
	const op = "AssembleFeatures"
	if err := p.usable(op); err != nil {
		return err
	}
	if outName == "" {
		outName = p.cfg.FeaturesColumn
	}

	stage := &feature.VectorAssembler{InputCols: columns, OutputCol: outName, Env: p.env()}
	if err := p.apply(ctx, op, stage); err != nil {
		return err
	}
	p.logStep(ctx, op, columns)
	return nil
}

// apply runs t on both datasets and commits the results together.
func (p *Preprocessor) apply(ctx context.Context, op string, t feature.Transformer) error {
	rows := p.train.Len() + p.test.Len()
	return p.metrics.RecordOperation(op, rows, func() error {
		train, test, err := feature.ApplyPair(ctx, t, p.train, p.test)
		if err != nil {
			return p.fail(err)
		}
		return p.commit(op, train, test)
	})
}

func (p *Preprocessor) log(ctx context.Context) logrus.FieldLogger {
	return logging.FromContextOr(ctx, p.logger)
}

func (p *Preprocessor) logStep(ctx context.Context, op string, columns []string) {
	p.log(ctx).WithFields(logrus.Fields{
		"op":         op,
		"columns":    columns,
		"train_rows": p.train.Len(),
		"test_rows":  p.test.Len(),
		"schema":     fmt.Sprintf("%016x", p.train.Schema().Fingerprint()),
	}).Debug("step completed")
}
