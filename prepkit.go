// Package prepkit prepares paired train and test datasets for machine learning
// models. This package is the sole public API for the library.
//
// A Preprocessor holds both datasets, trims and string-indexes their factor
// columns, one-hot encodes the codes and assembles everything into a single
// features vector next to a label column. Every data-dependent stage is fitted
// on train and applied unchanged to test.
//
//	mem := memory.NewGoAllocator()
//	train, _ := prepkit.ReadFile(ctx, "train.csv", mem)
//	test, _ := prepkit.ReadFile(ctx, "test.csv", mem)
//	defer train.Release()
//	defer test.Release()
//
//	p, err := prepkit.New(train, test)
//	if err != nil {
//		return err
//	}
//	defer p.Release()
//	report, err := p.PrepareToModel(ctx, "survived", "")
//
// Memory management: DataFrames and Series are backed by Apache Arrow buffers
// and must be released by their owner, usually with defer.
package prepkit

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/explore"
	prepio "github.com/paveg/prepkit/internal/io"
	"github.com/paveg/prepkit/internal/preprocess"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
	"github.com/sirupsen/logrus"
)

type (
	// DataFrame is an ordered set of named Arrow-backed columns.
	DataFrame = dataframe.DataFrame
	// ISeries is a type-erased column.
	ISeries = dataframe.ISeries
	// Schema is an immutable snapshot of column names and types.
	Schema = dataframe.Schema
	// Vector is a dense or sparse float64 feature vector.
	Vector = vector.Vector
	// Config holds the preprocessing settings.
	Config = config.Config
	// Preprocessor prepares a train and a test DataFrame together.
	Preprocessor = preprocess.Preprocessor
	// Option configures a Preprocessor.
	Option = preprocess.Option
	// Report describes a completed PrepareToModel run.
	Report = preprocess.Report
	// Exploration holds per-column comparison tables of train and test.
	Exploration = explore.Exploration
	// Format names a supported file format.
	Format = prepio.Format
)

// File formats understood by ReadFile and WriteFile.
const (
	FormatCSV     = prepio.FormatCSV
	FormatParquet = prepio.FormatParquet
)

// Error kinds, matched with errors.Is.
var (
	ErrSchemaMismatch  = prepErrors.ErrSchemaMismatch
	ErrNotFactor       = prepErrors.ErrNotFactor
	ErrColumnNotFound  = prepErrors.ErrColumnNotFound
	ErrUnsupportedType = prepErrors.ErrUnsupportedType
	ErrNullValue       = prepErrors.ErrNullValue
	ErrUnseenLabel     = prepErrors.ErrUnseenLabel
	ErrInvalidInput    = prepErrors.ErrInvalidInput
	ErrInstanceFailed  = prepErrors.ErrInstanceFailed
)

// New creates a Preprocessor over train and test, which must share a schema.
// The caller keeps ownership of the frames it passes.
func New(train, test *DataFrame, opts ...Option) (*Preprocessor, error) {
	return preprocess.New(train, test, opts...)
}

// WithConfig replaces the global configuration for one Preprocessor.
func WithConfig(cfg Config) Option {
	return preprocess.WithConfig(cfg)
}

// WithLogger sets the logger a Preprocessor reports its steps to.
func WithLogger(logger logrus.FieldLogger) Option {
	return preprocess.WithLogger(logger)
}

// WithAllocator sets the allocator for the columns a Preprocessor builds.
func WithAllocator(mem memory.Allocator) Option {
	return preprocess.WithAllocator(mem)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a JSON or YAML configuration file.
func LoadConfig(path string) (Config, error) {
	return config.LoadFromFile(path)
}

// SetGlobalConfig sets the configuration used by Preprocessors created without WithConfig.
func SetGlobalConfig(cfg Config) {
	config.SetGlobalConfig(cfg)
}

// NewSeries creates a column from values. T is one of string, int32, int64,
// float32, float64, bool or Vector.
func NewSeries[T any](name string, values []T, mem memory.Allocator) (ISeries, error) {
	s, err := series.NewSafe(name, values, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewNullableSeries creates a column where valid[i] == false marks row i as null.
func NewNullableSeries[T any](name string, values []T, valid []bool, mem memory.Allocator) (ISeries, error) {
	s, err := series.NewNullable(name, values, valid, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewDataFrame creates a DataFrame that takes ownership of columns. Names
// must be unique and lengths equal; on error the columns are released.
func NewDataFrame(columns ...ISeries) (*DataFrame, error) {
	return dataframe.NewChecked(columns...)
}

// DenseVector creates a dense vector that takes ownership of values.
func DenseVector(values []float64) Vector {
	return vector.Dense(values)
}

// SparseVector creates a sparse vector from strictly increasing indices.
func SparseVector(size int, indices []int32, values []float64) (Vector, error) {
	return vector.Sparse(size, indices, values)
}

// ReadCSV reads a CSV document with a header row, inferring column types.
func ReadCSV(ctx context.Context, r io.Reader, mem memory.Allocator) (*DataFrame, error) {
	return prepio.NewCSVReader(r, prepio.DefaultCSVOptions(), mem).Read(ctx)
}

// WriteCSV writes df with a header row. Nulls become empty cells.
func WriteCSV(ctx context.Context, w io.Writer, df *DataFrame) error {
	return prepio.NewCSVWriter(w, prepio.DefaultCSVOptions()).Write(ctx, df)
}

// ReadParquet reads a Parquet document.
func ReadParquet(ctx context.Context, r io.Reader, mem memory.Allocator) (*DataFrame, error) {
	return prepio.NewParquetReader(r, prepio.DefaultParquetOptions(), mem).Read(ctx)
}

// WriteParquet writes df as snappy-compressed Parquet.
func WriteParquet(ctx context.Context, w io.Writer, df *DataFrame) error {
	return prepio.NewParquetWriter(w, prepio.DefaultParquetOptions()).Write(ctx, df)
}

// ReadFile reads a .csv or .parquet file.
func ReadFile(ctx context.Context, path string, mem memory.Allocator) (*DataFrame, error) {
	return prepio.ReadFile(ctx, path, mem)
}

// WriteFile writes df to path in the given format.
func WriteFile(ctx context.Context, path string, format Format, df *DataFrame) error {
	return prepio.WriteFile(ctx, path, format, df)
}
