// Package core provides the schema-less tabular ingestion engine.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// CellKind tags the variant held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellBool
	CellTime
)

// String returns the lowercase kind name.
func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	case CellTime:
		return "time"
	default:
		return "empty"
	}
}

// Cell is a single grid or record value. Exactly one payload field is
// meaningful, selected by Kind.
type Cell struct {
	Kind CellKind
	Text string
	Num  float64
	Bool bool
	Time time.Time
}

// EmptyCell returns the absent/null value.
func EmptyCell() Cell { return Cell{} }

// TextCell wraps a string.
func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }

// NumberCell wraps a native number.
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Num: f} }

// BoolCell wraps a native boolean.
func BoolCell(b bool) Cell { return Cell{Kind: CellBool, Bool: b} }

// TimeCell wraps a calendar value.
func TimeCell(t time.Time) Cell { return Cell{Kind: CellTime, Time: t} }

// IsNull reports whether the cell holds no value at all.
func (c Cell) IsNull() bool { return c.Kind == CellEmpty }

// IsBlank reports whether the cell is null or renders to whitespace only.
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// String renders the cell as text. Dates without a clock component render
// as YYYY-MM-DD.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(c.Bool)
	case CellTime:
		if c.Time.Hour() == 0 && c.Time.Minute() == 0 && c.Time.Second() == 0 && c.Time.Nanosecond() == 0 {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// MarshalJSON encodes numbers and booleans natively, null for empty cells,
// and everything else as a string.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellEmpty:
		return []byte("null"), nil
	case CellNumber:
		return json.Marshal(c.Num)
	case CellBool:
		return json.Marshal(c.Bool)
	default:
		return json.Marshal(c.String())
	}
}

// RawGrid is the unstructured two-dimensional output of the tokenizer or
// the spreadsheet extractor. Rows may have different lengths.
type RawGrid [][]Cell

// TextGrid builds a RawGrid from plain strings. Used by tests and callers
// that already hold tokenized text.
func TextGrid(rows [][]string) RawGrid {
	grid := make(RawGrid, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = TextCell(v)
		}
		grid[i] = cells
	}
	return grid
}

// HeaderRow is the result of header discovery.
type HeaderRow struct {
	Index    int      // Row index within the grid
	Names    []string // Unique, non-empty column names
	Fallback bool     // True if no row qualified and row 0 was used
}

// Record is one materialized data row. Every record produced by a single
// ingestion shares the same column list.
type Record struct {
	columns []string
	values  map[string]Cell
	row     int
}

// NewRecord builds a record over columns. Columns missing from values are
// stored as empty cells and keys not in columns are dropped.
func NewRecord(columns []string, values map[string]Cell) Record {
	cols := append([]string(nil), columns...)
	vals := make(map[string]Cell, len(cols))
	for _, c := range cols {
		vals[c] = values[c]
	}
	return Record{columns: cols, values: vals}
}

// Get returns the value for column, or an empty cell if absent.
func (r Record) Get(column string) Cell {
	return r.values[column]
}

// Has reports whether column is part of the record's key set.
func (r Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Columns returns the record's ordered column names.
func (r Record) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Len returns the number of columns.
func (r Record) Len() int { return len(r.columns) }

// SourceRow returns the 1-based grid row the record was built from,
// or 0 for records constructed directly.
func (r Record) SourceRow() int { return r.row }

// Strings returns the record as a plain string map.
func (r Record) Strings() map[string]string {
	out := make(map[string]string, len(r.columns))
	for _, c := range r.columns {
		out[c] = r.values[c].String()
	}
	return out
}

// MarshalJSON writes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[c].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ColumnType is the inferred shape of a column.
type ColumnType string

const (
	TypeNumeric  ColumnType = "numeric"
	TypeTemporal ColumnType = "temporal"
	TypeBoolean  ColumnType = "boolean"
	TypeTextual  ColumnType = "textual"
	TypeMixed    ColumnType = "mixed"
)

// ColumnMetadata describes one final column.
type ColumnMetadata struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
	Distinct int        `json:"distinct"`
}

// Format is the detected source format.
type Format string

const (
	FormatUnknown Format = ""
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
)

// SourceDescriptor summarizes the ingested source.
type SourceDescriptor struct {
	OriginalName string `json:"originalName"`
	Format       Format `json:"format"`
	RowCount     int    `json:"rowCount"`
	ColumnCount  int    `json:"columnCount"`
}

// Stats carries diagnostics gathered during ingestion.
type Stats struct {
	HeaderRow      int      `json:"headerRow"`
	HeaderFallback bool     `json:"headerFallback,omitempty"`
	Encoding       Encoding `json:"encoding,omitempty"`
	SheetName      string   `json:"sheetName,omitempty"`
	GridRows       int      `json:"gridRows"`
	SkippedRows    int      `json:"skippedRows"`
	PrunedColumns  []string `json:"prunedColumns,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// ParseOutcome is the unit handed to callers. Err is set on failure, in
// which case Records and Columns are empty.
type ParseOutcome struct {
	ID      string           `json:"id,omitempty"`
	Records []Record         `json:"records"`
	Columns []ColumnMetadata `json:"columns"`
	Source  SourceDescriptor `json:"source"`
	Stats   Stats            `json:"stats"`
	Err     error            `json:"-"`
}

// Failure returns the failure message, or "" on success.
func (o ParseOutcome) Failure() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ColumnNames returns the final column list in order.
func (o ParseOutcome) ColumnNames() []string {
	names := make([]string, len(o.Columns))
	for i, c := range o.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns metadata for name.
func (o ParseOutcome) Column(name string) (ColumnMetadata, bool) {
	for _, c := range o.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}
