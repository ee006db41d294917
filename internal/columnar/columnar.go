// Package columnar converts a ParseOutcome into an Arrow record so results
// can be exported as an Arrow IPC stream or a Parquet file.
//
// Each column becomes an Arrow field typed from its inferred ColumnType:
// numeric to float64, temporal to timestamp[ms, UTC], boolean to bool, and
// textual or mixed to utf8. Values that do not coerce to the column type are
// written as nulls; the text view in the outcome keeps the original.
package columnar

import (
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/tabular/internal/core"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Metadata keys attached to the Arrow schema and fields.
const (
	MetaInferredType = "tabular.inferred_type"
	MetaSourceName   = "tabular.source_name"
	MetaSourceFormat = "tabular.source_format"
	MetaHeaderRow    = "tabular.header_row"
)

// ArrowType returns the Arrow type used for an inferred column type.
func ArrowType(t core.ColumnType) arrow.DataType {
	switch t {
	case core.TypeNumeric:
		return arrow.PrimitiveTypes.Float64
	case core.TypeTemporal:
		return &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}
	case core.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// Schema builds the Arrow schema for an outcome's columns.
func Schema(out core.ParseOutcome) *arrow.Schema {
	fields := make([]arrow.Field, len(out.Columns))
	for i, col := range out.Columns {
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     ArrowType(col.Type),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{MetaInferredType}, []string{string(col.Type)}),
		}
	}

	md := arrow.NewMetadata(
		[]string{MetaSourceName, MetaSourceFormat, MetaHeaderRow},
		[]string{out.Source.OriginalName, string(out.Source.Format), strconv.Itoa(out.Stats.HeaderRow)},
	)
	return arrow.NewSchema(fields, &md)
}

// Build converts the outcome into one Arrow record. The caller must
// Release it. A nil allocator uses the Go allocator.
func Build(out core.ParseOutcome, mem memory.Allocator) (arrow.Record, error) {
	if out.Err != nil {
		return nil, fmt.Errorf("build arrow record: %w", out.Err)
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	schema := Schema(out)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, col := range out.Columns {
		fb := b.Field(i)
		for _, r := range out.Records {
			appendCell(fb, col.Type, r.Get(col.Name))
		}
	}
	return b.NewRecord(), nil
}

func appendCell(fb array.Builder, t core.ColumnType, c core.Cell) {
	switch t {
	case core.TypeNumeric:
		bld := fb.(*array.Float64Builder)
		if f, ok := core.NumberOf(c); ok {
			bld.Append(f)
			return
		}
	case core.TypeTemporal:
		bld := fb.(*array.TimestampBuilder)
		if tm, ok := core.TimeOf(c); ok {
			bld.Append(arrow.Timestamp(tm.UTC().UnixMilli()))
			return
		}
	case core.TypeBoolean:
		bld := fb.(*array.BooleanBuilder)
		if v, ok := core.BoolOf(c); ok {
			bld.Append(v)
			return
		}
	default:
		if !c.IsNull() {
			fb.(*array.StringBuilder).Append(c.String())
			return
		}
	}
	fb.AppendNull()
}

// WriteIPC writes the outcome to w as an Arrow IPC stream.
func WriteIPC(w io.Writer, out core.ParseOutcome) error {
	rec, err := Build(out, nil)
	if err != nil {
		return err
	}
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("write arrow stream: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}
	return nil
}

// WriteParquet writes the outcome to w as a Snappy-compressed Parquet file
// with the Arrow schema embedded.
func WriteParquet(w io.Writer, out core.ParseOutcome) error {
	rec, err := Build(out, nil)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
