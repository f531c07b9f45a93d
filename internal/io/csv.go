package io

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/paveg/prepkit/internal/dataframe"
	"github.com/paveg/prepkit/internal/parallel"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
)

const (
	trueStr  = "true"
	falseStr = "false"
)

type columnType int

const (
	stringColumn columnType = iota
	boolColumn
	intColumn
	floatColumn
	vectorColumn
)

// Read reads CSV data and returns a DataFrame
func (r *CSVReader) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return dataframe.New(), nil
	}

	var headers []string
	dataRows := records
	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
	}

	pool := parallel.NewWorkerPool(r.options.Workers, 0)
	columns, err := parallel.ProcessIndexed(ctx, pool, len(dataRows), headers,
		func(_ context.Context, i int, name string) (dataframe.ISeries, error) {
			data := make([]string, len(dataRows))
			for j, row := range dataRows {
				data[j] = row[i]
			}
			s, err := r.createSeriesFromStrings(name, data)
			if err != nil {
				return nil, fmt.Errorf("creating series for column %s: %w", name, err)
			}
			return s, nil
		})
	if err != nil {
		return nil, err
	}
	return dataframe.NewChecked(columns...)
}

// createSeriesFromStrings creates a series from string data, inferring the appropriate type
func (r *CSVReader) createSeriesFromStrings(name string, data []string) (dataframe.ISeries, error) {
	switch inferColumnType(data) {
	case boolColumn:
		values, valid := parseColumn(data, func(s string) (bool, error) {
			return strings.EqualFold(s, trueStr), nil
		})
		return series.NewNullable(name, values, valid, r.mem)
	case intColumn:
		values, valid := parseColumn(data, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
		return series.NewNullable(name, values, valid, r.mem)
	case floatColumn:
		values, valid := parseColumn(data, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
		return series.NewNullable(name, values, valid, r.mem)
	case vectorColumn:
		values, valid := parseColumn(data, vector.Parse)
		return series.NewNullable(name, values, valid, r.mem)
	default:
		return series.NewSafe(name, data, r.mem)
	}
}

// inferColumnType picks the most specific type every non-empty value parses
// as. Columns without any non-empty value are strings.
func inferColumnType(data []string) columnType {
	canBeBool, canBeInt, canBeFloat, canBeVector := true, true, true, true
	hasNonEmptyValue := false

	for _, value := range data {
		if value == "" {
			continue
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			canBeBool = lower == trueStr || lower == falseStr
		}
		if canBeInt {
			_, err := strconv.ParseInt(value, 10, 64)
			canBeInt = err == nil
		}
		if canBeFloat {
			_, err := strconv.ParseFloat(value, 64)
			canBeFloat = err == nil
		}
		if canBeVector {
			_, err := vector.Parse(value)
			canBeVector = err == nil
		}
	}

	switch {
	case !hasNonEmptyValue:
		return stringColumn
	case canBeBool:
		return boolColumn
	case canBeInt:
		return intColumn
	case canBeFloat:
		return floatColumn
	case canBeVector:
		return vectorColumn
	default:
		return stringColumn
	}
}

// parseColumn converts data with parse, marking empty cells as null.
// Inference has already checked that every non-empty cell parses.
func parseColumn[T any](data []string, parse func(string) (T, error)) ([]T, []bool) {
	values := make([]T, len(data))
	valid := make([]bool, len(data))
	for i, value := range data {
		if value == "" {
			continue
		}
		values[i], _ = parse(value)
		valid[i] = true
	}
	return values, valid
}

// Write writes the DataFrame to CSV format. Nulls are written as empty cells
// and vectors in their text form.
func (w *CSVWriter) Write(ctx context.Context, df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	if w.options.Header {
		if err := csvWriter.Write(df.Columns()); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	columns := make([]dataframe.ISeries, 0, df.Width())
	for _, name := range df.Columns() {
		column, _ := df.Column(name)
		columns = append(columns, column)
	}

	row := make([]string, len(columns))
	for i := 0; i < df.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, column := range columns {
			row[j] = getValueAsString(column, i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// getValueAsString renders a cell; nulls are empty.
func getValueAsString(column dataframe.ISeries, index int) string {
	if column.IsNull(index) {
		return ""
	}
	return column.GetAsString(index)
}
