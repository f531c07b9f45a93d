package io

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/prepkit/internal/dataframe"
)

// Format names a supported file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q", name)
	}
}

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("cannot infer format of %s", path)
	}
}

// ReadFile reads a CSV or Parquet file, chosen by extension, with default options.
func ReadFile(ctx context.Context, path string, mem memory.Allocator) (*dataframe.DataFrame, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var reader DataReader
	switch format {
	case FormatParquet:
		reader = NewParquetReader(f, DefaultParquetOptions(), mem)
	default:
		reader = NewCSVReader(f, DefaultCSVOptions(), mem)
	}
	df, err := reader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return df, nil
}

// WriteFile writes df to path in format, creating or truncating the file.
func WriteFile(ctx context.Context, path string, format Format, df *dataframe.DataFrame) (err error) {
	var writer func(*os.File) DataWriter
	switch format {
	case FormatCSV:
		writer = func(f *os.File) DataWriter { return NewCSVWriter(f, DefaultCSVOptions()) }
	case FormatParquet:
		writer = func(f *os.File) DataWriter { return NewParquetWriter(f, DefaultParquetOptions()) }
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()

	if err := writer(f).Write(ctx, df); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
