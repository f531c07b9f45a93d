// Package preprocess prepares a paired train and test dataset for a
// downstream model.
//
// A Preprocessor owns both datasets and applies every step to both of them.
// Data-dependent stages are fitted on train only, so test is always encoded
// with the vocabulary and cardinalities learned from train. After a
// successful PrepareToModel the encoded outputs hold exactly a label column
// and a features vector column.
//
// A Preprocessor is not safe for concurrent use. Once an operation fails the
// instance is unusable and every later call returns ErrInstanceFailed.
package preprocess

import (
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/feature"
	"github.com/paveg/prepkit/internal/logging"
	"github.com/paveg/prepkit/internal/monitoring"
	"github.com/paveg/prepkit/internal/parallel"
	"github.com/sirupsen/logrus"
)

// Preprocessor holds a train and a test DataFrame with identical schemas.
type Preprocessor struct {
	train        *dataframe.DataFrame
	test         *dataframe.DataFrame
	trainEncoded *dataframe.DataFrame
	testEncoded  *dataframe.DataFrame

	cfg     config.Config
	logger  logrus.FieldLogger
	mem     memory.Allocator
	pool    *parallel.WorkerPool
	metrics *monitoring.MetricsCollector

	failure error
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithConfig replaces the global configuration for this instance.
func WithConfig(cfg config.Config) Option {
	return func(p *Preprocessor) {
		p.cfg = cfg
	}
}

// WithLogger sets the logger used for step and summary logging.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Preprocessor) {
		p.logger = logger
	}
}

// WithAllocator sets the allocator for every column the preprocessor builds.
func WithAllocator(mem memory.Allocator) Option {
	return func(p *Preprocessor) {
		p.mem = mem
	}
}

// New validates that train and test share a schema and returns a
// Preprocessor holding its own references to both. The caller still owns,
// and must release, the frames it passed.
func New(train, test *dataframe.DataFrame, opts ...Option) (*Preprocessor, error) {
	if train == nil || test == nil {
		return nil, prepErrors.NewInvalidInputError("New", "train and test datasets are required")
	}
	if diffs := train.Schema().Diff(test.Schema()); len(diffs) > 0 {
		return nil, prepErrors.NewSchemaMismatchError("New", diffs)
	}

	p := &Preprocessor{cfg: config.GetGlobalConfig()}
	for _, opt := range opts {
		opt(p)
	}

	p.cfg = p.cfg.WithDefaults()
	if err := p.cfg.Validate(); err != nil {
		return nil, prepErrors.NewInvalidInputError("New", fmt.Sprintf("invalid configuration: %v", err))
	}
	if p.logger == nil {
		logger, err := logging.New(p.cfg.LogLevel, p.cfg.LogFormat, nil)
		if err != nil {
			return nil, prepErrors.NewInvalidInputError("New", err.Error())
		}
		p.logger = logger
	}
	if p.mem == nil {
		p.mem = memory.NewGoAllocator()
	}
	p.pool = parallel.NewWorkerPool(p.cfg.Workers(), p.cfg.ParallelThreshold)
	p.metrics = monitoring.NewMetricsCollector(true)

	p.train = train.Copy()
	p.test = test.Copy()
	return p, nil
}

// Config returns the effective configuration.
func (p *Preprocessor) Config() config.Config {
	return p.cfg
}

// Train returns a copy of the current train dataset; the caller releases it.
func (p *Preprocessor) Train() (*dataframe.DataFrame, error) {
	if err := p.usable("Train"); err != nil {
		return nil, err
	}
	return p.train.Copy(), nil
}

// Test returns a copy of the current test dataset; the caller releases it.
func (p *Preprocessor) Test() (*dataframe.DataFrame, error) {
	if err := p.usable("Test"); err != nil {
		return nil, err
	}
	return p.test.Copy(), nil
}

// TrainEncoded returns a copy of the encoded train output of PrepareToModel.
func (p *Preprocessor) TrainEncoded() (*dataframe.DataFrame, error) {
	return p.encoded("TrainEncoded", p.trainEncoded)
}

// TestEncoded returns a copy of the encoded test output of PrepareToModel.
func (p *Preprocessor) TestEncoded() (*dataframe.DataFrame, error) {
	return p.encoded("TestEncoded", p.testEncoded)
}

func (p *Preprocessor) encoded(op string, df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if err := p.usable(op); err != nil {
		return nil, err
	}
	if df == nil {
		return nil, prepErrors.NewInvalidInputError(op, "PrepareToModel has not completed")
	}
	return df.Copy(), nil
}

// Metrics returns the duration and row count of every step applied so far.
func (p *Preprocessor) Metrics() []monitoring.OperationMetrics {
	return p.metrics.GetMetrics()
}

// Err returns the failure that made the instance unusable, or nil.
func (p *Preprocessor) Err() error {
	return p.failure
}

// Release frees every dataset held by the preprocessor.
func (p *Preprocessor) Release() {
	for _, df := range []*dataframe.DataFrame{p.train, p.test, p.trainEncoded, p.testEncoded} {
		if df != nil {
			df.Release()
		}
	}
	p.train, p.test, p.trainEncoded, p.testEncoded = nil, nil, nil, nil
}

// Factors returns the string columns in schema order.
func (p *Preprocessor) Factors() ([]string, error) {
	return p.classify("Factors", dataframe.Schema.Factors)
}

// NumericColumns returns the integer and floating point columns in schema order.
func (p *Preprocessor) NumericColumns() ([]string, error) {
	return p.classify("NumericColumns", dataframe.Schema.Numeric)
}

func (p *Preprocessor) classify(op string, pick func(dataframe.Schema) []string) ([]string, error) {
	if err := p.usable(op); err != nil {
		return nil, err
	}
	trainCols := pick(p.train.Schema())
	testCols := pick(p.test.Schema())
	if !slices.Equal(trainCols, testCols) {
		return nil, p.fail(prepErrors.NewSchemaMismatchError(op,
			[]string{fmt.Sprintf("train %v != test %v", trainCols, testCols)}))
	}
	return trainCols, nil
}

// usable reports the earlier failure, if any, and rejects released instances.
func (p *Preprocessor) usable(op string) error {
	if p.failure != nil {
		return prepErrors.NewInstanceFailedError(op, p.failure)
	}
	if p.train == nil || p.test == nil {
		return prepErrors.NewInvalidInputError(op, "preprocessor has been released")
	}
	return nil
}

// fail poisons the instance with err and returns it.
func (p *Preprocessor) fail(err error) error {
	if p.failure == nil {
		p.failure = err
	}
	return err
}

// commit swaps in new train and test datasets after checking that their
// schemas still agree.
func (p *Preprocessor) commit(op string, train, test *dataframe.DataFrame) error {
	if diffs := train.Schema().Diff(test.Schema()); len(diffs) > 0 {
		train.Release()
		test.Release()
		return p.fail(prepErrors.NewSchemaMismatchError(op, diffs))
	}
	p.train.Release()
	p.test.Release()
	p.train, p.test = train, test
	return nil
}

// requireFactors checks that every column exists and is a factor. All
// non-factor columns are reported together.
func (p *Preprocessor) requireFactors(op string, columns []string) error {
	schema := p.train.Schema()
	var notFactors []string
	for _, name := range columns {
		field, ok := schema.Field(name)
		if !ok {
			return prepErrors.NewColumnNotFoundError(op, name)
		}
		if dataframe.KindOf(field.Type) != dataframe.KindFactor {
			notFactors = append(notFactors, name)
		}
	}
	return prepErrors.NewNotFactorError(op, notFactors)
}

func (p *Preprocessor) env() feature.Env {
	return feature.Env{Mem: p.mem, Pool: p.pool}
}
