// Package feature provides the feature engineering stages used to encode train
// and test datasets: trimming, categorical indexing, one-hot encoding and
// vector assembly.
//
// Stages follow a two-phase contract. Estimators (StringIndexer,
// OneHotEncoder) are fitted on the training data only and return a model
// holding the fitted state; models and plain transformers (Stripper,
// VectorAssembler) are then applied unmodified to any number of datasets.
package feature

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepErrors "github.com/paveg/prepkit/internal/errors"
	"github.com/paveg/prepkit/internal/parallel"
)

// Transformer maps a DataFrame to a new DataFrame. The input is left untouched.
type Transformer interface {
	Transform(ctx context.Context, df *dataframe.DataFrame) (*dataframe.DataFrame, error)
}

// Env carries the allocator and worker pool shared by stages.
type Env struct {
	Mem  memory.Allocator
	Pool *parallel.WorkerPool
}

// DefaultEnv returns an Env with a Go allocator and a pool sized from the global config.
func DefaultEnv() Env {
	return Env{}.withDefaults()
}

func (e Env) withDefaults() Env {
	if e.Mem == nil {
		e.Mem = memory.NewGoAllocator()
	}
	if e.Pool == nil {
		cfg := config.GetGlobalConfig()
		e.Pool = parallel.NewWorkerPool(cfg.WorkerPoolSize, cfg.ParallelThreshold)
	}
	return e
}

// ApplyPair applies t to train and test. Either both results are returned or
// neither is.
func ApplyPair(
	ctx context.Context, t Transformer, train, test *dataframe.DataFrame,
) (*dataframe.DataFrame, *dataframe.DataFrame, error) {
	newTrain, err := t.Transform(ctx, train)
	if err != nil {
		return nil, nil, fmt.Errorf("transforming train: %w", err)
	}
	newTest, err := t.Transform(ctx, test)
	if err != nil {
		newTrain.Release()
		return nil, nil, fmt.Errorf("transforming test: %w", err)
	}
	return newTrain, newTest, nil
}

// requireKind checks that every column exists and has one of the given kinds.
func requireKind(op string, df *dataframe.DataFrame, columns []string, kinds ...dataframe.Kind) error {
	for _, name := range columns {
		s, ok := df.Column(name)
		if !ok {
			return prepErrors.NewColumnNotFoundError(op, name)
		}
		kind := dataframe.KindOf(s.DataType())
		matched := false
		for _, k := range kinds {
			if kind == k {
				matched = true
				break
			}
		}
		if !matched {
			field := dataframe.Field{Name: name, Type: s.DataType()}
			return prepErrors.NewUnsupportedTypeError(op, name, field.TypeName())
		}
	}
	return nil
}

// outputNames pairs input and output column names.
func outputNames(op string, inputs, outputs []string) error {
	if len(inputs) != len(outputs) {
		return prepErrors.NewInvalidInputError(op,
			fmt.Sprintf("%d input columns but %d output columns", len(inputs), len(outputs)))
	}
	return nil
}

// withColumns appends or replaces cols on df. It takes ownership of cols.
func withColumns(df *dataframe.DataFrame, cols []dataframe.ISeries) (*dataframe.DataFrame, error) {
	defer func() {
		for _, s := range cols {
			s.Release()
		}
	}()

	current := df.Copy()
	for _, s := range cols {
		next, err := current.WithColumn(s)
		current.Release()
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// SuffixNames returns name+suffix for every name.
func SuffixNames(names []string, suffix string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name + suffix
	}
	return out
}
