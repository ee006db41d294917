package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions the engine cannot read.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrEmptySource is returned when a source yields no rows at all.
var ErrEmptySource = errors.New("empty file")

// Options holds the tunable constants of one ingestion. Zero numeric and
// string fields take the engine defaults; use DefaultOptions for a fully
// populated value.
type Options struct {
	Header            HeaderOptions
	BlankLines        BlankLinePolicy
	TypeThreshold     float64
	KeepEmptyRows     bool
	PreserveCellTypes bool
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Header: HeaderOptions{
			SearchRows:     DefaultHeaderSearchRows,
			MinColumns:     DefaultMinHeaderColumns,
			FallbackPrefix: DefaultFallbackPrefix,
		},
		BlankLines:    BlankLinesGreedy,
		TypeThreshold: DefaultTypeThreshold,
	}
}

func (o Options) withDefaults() Options {
	o.Header = o.Header.withDefaults()
	if o.TypeThreshold <= 0 || o.TypeThreshold > 1 {
		o.TypeThreshold = DefaultTypeThreshold
	}
	return o
}

// DetectFormat maps a file name to its format by extension.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	default:
		return FormatUnknown
	}
}

// SupportedExtensions lists the extensions Ingest accepts.
func SupportedExtensions() []string {
	return []string{".csv", ".xlsx", ".xls"}
}

// Ingest parses a buffered file into a ParseOutcome. It never panics or
// returns an error; failures are reported through ParseOutcome.Err.
func Ingest(name string, data []byte, opts Options) ParseOutcome {
	opts = opts.withDefaults()
	format := DetectFormat(name)
	out := ParseOutcome{
		Source: SourceDescriptor{OriginalName: name, Format: format},
	}

	var grid RawGrid
	switch format {
	case FormatCSV:
		text, enc, err := Decode(data)
		out.Stats.Encoding = enc
		if err != nil {
			out.Stats.Warnings = append(out.Stats.Warnings, err.Error())
		}
		grid, err = Tokenize(text, opts.BlankLines)
		if err != nil {
			if len(grid) == 0 {
				return failed(out, err)
			}
			out.Stats.Warnings = append(out.Stats.Warnings, err.Error())
		}

	case FormatXLSX, FormatXLS:
		sheet, err := ExtractSheet(data, format)
		if err != nil {
			return failed(out, err)
		}
		out.Stats.SheetName = sheet.Name
		grid = sheet.Rows

	default:
		ext := filepath.Ext(name)
		if ext == "" {
			ext = name
		}
		return failed(out, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), ", ")))
	}

	return buildOutcome(out, grid, opts)
}

// IngestGrid runs header discovery, materialization, and inference over an
// already extracted grid.
func IngestGrid(name string, format Format, grid RawGrid, opts Options) ParseOutcome {
	out := ParseOutcome{
		Source: SourceDescriptor{OriginalName: name, Format: format},
	}
	return buildOutcome(out, grid, opts.withDefaults())
}

func buildOutcome(out ParseOutcome, grid RawGrid, opts Options) ParseOutcome {
	out.Stats.GridRows = len(grid)
	if len(grid) == 0 {
		return failed(out, ErrEmptySource)
	}

	header := DiscoverHeader(grid, opts.Header)
	m := Materialize(grid, header, MaterializeOptions{
		KeepEmptyRows:     opts.KeepEmptyRows,
		PreserveCellTypes: opts.PreserveCellTypes,
	})

	out.Records = m.Records
	out.Columns = DescribeColumns(m.Records, m.Columns, opts.TypeThreshold)
	out.Source.RowCount = len(m.Records)
	out.Source.ColumnCount = len(m.Columns)
	out.Stats.HeaderRow = header.Index
	out.Stats.HeaderFallback = header.Fallback
	out.Stats.SkippedRows = m.SkippedRows
	out.Stats.PrunedColumns = m.PrunedColumns
	return out
}

func failed(out ParseOutcome, err error) ParseOutcome {
	out.Records = []Record{}
	out.Columns = []ColumnMetadata{}
	out.Err = err
	return out
}
