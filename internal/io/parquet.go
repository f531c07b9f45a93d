package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/prepkit/internal/dataframe"
	"github.com/paveg/prepkit/internal/vector"
)

// Read reads Parquet data and returns a DataFrame.
func (r *ParquetReader) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	props := pqarrow.ArrowReadProperties{BatchSize: int64(r.options.BatchSize)}
	arrowReader, err := pqarrow.NewFileReader(pqReader, props, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.arrowTableToDataFrame(table)
}

// arrowTableToDataFrame converts an Arrow table to a DataFrame.
func (r *ParquetReader) arrowTableToDataFrame(table arrow.Table) (*dataframe.DataFrame, error) {
	schema := table.Schema()
	seriesList := make([]dataframe.ISeries, 0, table.NumCols())
	for i := range int(table.NumCols()) {
		field := schema.Field(i)
		s, err := r.arrowColumnToSeries(field.Name, table.Column(i))
		if err != nil {
			for _, done := range seriesList {
				done.Release()
			}
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}
	return dataframe.NewChecked(seriesList...)
}

// arrowColumnToSeries joins the chunks of column into one array and wraps it.
func (r *ParquetReader) arrowColumnToSeries(name string, column *arrow.Column) (dataframe.ISeries, error) {
	arr, err := r.concatenate(column.Data())
	if err != nil {
		return nil, err
	}
	defer arr.Release()

	switch {
	case arr.DataType().ID() == arrow.STRUCT:
		conformed, err := vector.Conform(arr, r.mem)
		if err != nil {
			return nil, err
		}
		defer conformed.Release()
		return dataframe.Wrap(name, conformed), nil
	case isSupportedType(arr.DataType()):
		return dataframe.Wrap(name, arr), nil
	default:
		return nil, fmt.Errorf("unsupported Arrow type: %s", arr.DataType())
	}
}

func (r *ParquetReader) concatenate(chunked *arrow.Chunked) (arrow.Array, error) {
	chunks := chunked.Chunks()
	switch len(chunks) {
	case 0:
		return array.MakeArrayOfNull(r.mem, chunked.DataType(), 0), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, r.mem)
	}
}

func isSupportedType(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRING, arrow.INT64, arrow.INT32, arrow.FLOAT64, arrow.FLOAT32, arrow.BOOL:
		return true
	default:
		return false
	}
}

// Write writes the DataFrame to Parquet format.
func (w *ParquetWriter) Write(ctx context.Context, df *dataframe.DataFrame) error {
	table := w.dataFrameToArrowTable(df)
	defer table.Release()

	if err := ctx.Err(); err != nil {
		return err
	}

	batchSize := w.options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(w.compression()),
		parquet.WithBatchSize(int64(batchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(table.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	chunkSize := int64(df.Len())
	if chunkSize == 0 {
		chunkSize = 1
	}
	if err := writer.WriteTable(table, chunkSize); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

func (w *ParquetWriter) compression() compress.Compression {
	switch w.options.Compression {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// dataFrameToArrowTable shares the column arrays of df in an Arrow table.
func (w *ParquetWriter) dataFrameToArrowTable(df *dataframe.DataFrame) arrow.Table {
	fields := make([]arrow.Field, 0, df.Width())
	arrays := make([]arrow.Array, 0, df.Width())
	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		arr := col.Array()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}

	record := array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(df.Len()))
	for _, arr := range arrays {
		arr.Release()
	}
	defer record.Release()
	return array.NewTableFromRecords(record.Schema(), []arrow.Record{record})
}
