package preprocess

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/logging"
	"github.com/paveg/prepkit/internal/monitoring"
	"github.com/paveg/prepkit/internal/vector"
	"github.com/sirupsen/logrus"
)

// Report describes a completed PrepareToModel run.
type Report struct {
	RunID          string        `json:"run_id"`
	Target         string        `json:"target"`
	LabelColumn    string        `json:"label_column"`
	Factors        []string      `json:"factors"`
	Numeric        []string      `json:"numeric"`
	FeatureColumns []string      `json:"feature_columns"`
	FeatureSize    int           `json:"feature_size"`
	TrainRows      int           `json:"train_rows"`
	TestRows       int           `json:"test_rows"`
	Duration       time.Duration `json:"duration"`

	Steps []monitoring.OperationMetrics `json:"steps"`
}

// PrepareToModel runs the full encoding pipeline for target:
//
//  1. strip every factor, target included;
//  2. string-index every factor;
//  3. one-hot encode every indexed factor except the target;
//  4. assemble the numeric columns (minus target and code columns) followed
//     by the one-hot vectors into the features column.
//
// The encoded outputs then hold the label, which is the target's code column
// for a factor target and the target itself otherwise, and the features.
// An empty toStrip uses the configured strip characters. A failure stops the
// pipeline; completed steps are not rolled back.
func (p *Preprocessor) PrepareToModel(ctx context.Context, target, toStrip string) (*Report, error) {
	const op = "PrepareToModel"
	if err := p.usable(op); err != nil {
		return nil, err
	}
	if !p.train.HasColumn(target) {
		return nil, p.fail(prepErrors.NewColumnNotFoundError(op, target))
	}
	if target == p.cfg.FeaturesColumn {
		return nil, p.fail(prepErrors.NewInvalidInputError(op,
			fmt.Sprintf("target %q collides with the features column", target)))
	}
	if f, ok := p.train.Schema().Field(p.cfg.FeaturesColumn); ok && dataframe.KindOf(f.Type) != dataframe.KindVector {
		return nil, p.fail(prepErrors.NewInvalidInputError(op,
			fmt.Sprintf("input column %q collides with the features column", f.Name)))
	}
	if toStrip == "" {
		toStrip = p.cfg.StripChars
	}

	start := time.Now()
	firstStep := p.metrics.Len()
	report := &Report{RunID: uuid.NewString(), Target: target}
	logger := p.log(ctx).WithField("run_id", report.RunID)
	ctx = logging.WithLogger(ctx, logger)

	factors, err := p.Factors()
	if err != nil {
		return nil, err
	}
	report.Factors = factors

	indexedSuffix := p.cfg.IndexedSuffix
	if len(factors) > 0 {
		if err := p.StripColumns(ctx, factors, toStrip); err != nil {
			return nil, err
		}
		if _, err := p.StringIndex(ctx, factors, indexedSuffix); err != nil {
			return nil, err
		}
	}

	var toEncode []string
	for _, name := range factors {
		if name != target {
			toEncode = append(toEncode, name+indexedSuffix)
		}
	}
	if len(toEncode) > 0 {
		if _, err := p.OneHotEncode(ctx, toEncode, p.cfg.OneHotSuffix); err != nil {
			return nil, err
		}
	}

	numeric, err := p.NumericColumns()
	if err != nil {
		return nil, err
	}
	report.Numeric = numeric

	vectorSuffix := indexedSuffix + p.cfg.OneHotSuffix
	for _, name := range numeric {
		if name != target && !strings.HasSuffix(name, indexedSuffix) {
			report.FeatureColumns = append(report.FeatureColumns, name)
		}
	}
	for _, name := range p.train.Schema().Names(dataframe.KindVector) {
		if strings.HasSuffix(name, vectorSuffix) {
			report.FeatureColumns = append(report.FeatureColumns, name)
		}
	}

	if err := p.AssembleFeatures(ctx, report.FeatureColumns, p.cfg.FeaturesColumn); err != nil {
		return nil, err
	}

	report.LabelColumn = target
	if slices.Contains(factors, target) {
		report.LabelColumn = target + indexedSuffix
	}
	if err := p.encode(op, report.LabelColumn); err != nil {
		return nil, err
	}

	report.FeatureSize = p.featureSize()
	report.TrainRows = p.trainEncoded.Len()
	report.TestRows = p.testEncoded.Len()
	report.Duration = time.Since(start)
	report.Steps = p.metrics.Since(firstStep)

	logger.WithFields(logrus.Fields{
		"op":           op,
		"target":       target,
		"label":        report.LabelColumn,
		"features":     report.FeatureColumns,
		"feature_size": report.FeatureSize,
		"train_rows":   report.TrainRows,
		"test_rows":    report.TestRows,
		"duration":     report.Duration,
	}).Info("datasets prepared")
	return report, nil
}

// encode projects both datasets to the label and features columns.
func (p *Preprocessor) encode(op, labelColumn string) error {
	trainEncoded, err := p.project(p.train, labelColumn)
	if err != nil {
		return p.fail(err)
	}
	testEncoded, err := p.project(p.test, labelColumn)
	if err != nil {
		trainEncoded.Release()
		return p.fail(err)
	}
	if diffs := trainEncoded.Schema().Diff(testEncoded.Schema()); len(diffs) > 0 {
		trainEncoded.Release()
		testEncoded.Release()
		return p.fail(prepErrors.NewSchemaMismatchError(op, diffs))
	}

	if p.trainEncoded != nil {
		p.trainEncoded.Release()
		p.testEncoded.Release()
	}
	p.trainEncoded, p.testEncoded = trainEncoded, testEncoded
	return nil
}

// project selects the label and features columns of df and renames the label.
func (p *Preprocessor) project(df *dataframe.DataFrame, labelColumn string) (*dataframe.DataFrame, error) {
	selected := df.Select(labelColumn, p.cfg.FeaturesColumn)
	defer selected.Release()
	return selected.Rename(labelColumn, p.cfg.LabelColumn)
}

// featureSize is the width of the first assembled vector, 0 for empty data.
func (p *Preprocessor) featureSize() int {
	col, ok := p.trainEncoded.Column(p.cfg.FeaturesColumn)
	if !ok || col.Len() == 0 {
		return 0
	}
	arr := col.Array()
	defer arr.Release()
	v, err := vector.ValueAt(arr, 0)
	if err != nil {
		return 0
	}
	return v.Size()
}
