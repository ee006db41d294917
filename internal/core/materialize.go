package core

import "strings"

// MaterializeOptions configures Materialize.
type MaterializeOptions struct {
	// KeepEmptyRows retains data rows whose cells are all blank.
	KeepEmptyRows bool

	// PreserveCellTypes keeps native numbers, booleans, and dates from
	// spreadsheet cells instead of rendering every value as trimmed text.
	// Blank cells then become empty (null) cells.
	PreserveCellTypes bool
}

// Materialized is the output of Materialize.
type Materialized struct {
	Columns       []string
	Records       []Record
	SkippedRows   int
	PrunedColumns []string
}

// Materialize maps every row after the header onto the header names.
//
// Missing trailing cells are empty and cells beyond the header length are
// ignored. Columns that are blank in every record are pruned, unless that
// would remove all of them.
func Materialize(grid RawGrid, header HeaderRow, opts MaterializeOptions) Materialized {
	var out Materialized
	if len(header.Names) == 0 {
		return out
	}

	type pending struct {
		row    int
		values []Cell
	}
	var rows []pending

	for i := header.Index + 1; i < len(grid); i++ {
		row := grid[i]
		if !opts.KeepEmptyRows && isBlankRow(row) {
			out.SkippedRows++
			continue
		}

		values := make([]Cell, len(header.Names))
		for j := range header.Names {
			var c Cell
			if j < len(row) {
				c = row[j]
			}
			values[j] = coerceCell(c, opts.PreserveCellTypes)
		}
		rows = append(rows, pending{row: i + 1, values: values})
	}

	keep := make([]bool, len(header.Names))
	kept := 0
	for j := range header.Names {
		for _, r := range rows {
			if !r.values[j].IsBlank() {
				keep[j] = true
				kept++
				break
			}
		}
	}
	if kept == 0 {
		for j := range keep {
			keep[j] = true
		}
	}

	columns := make([]string, 0, len(header.Names))
	for j, name := range header.Names {
		if keep[j] {
			columns = append(columns, name)
		} else {
			out.PrunedColumns = append(out.PrunedColumns, name)
		}
	}

	out.Columns = columns
	out.Records = make([]Record, 0, len(rows))
	for _, r := range rows {
		vals := make(map[string]Cell, len(columns))
		for j, name := range header.Names {
			if keep[j] {
				vals[name] = r.values[j]
			}
		}
		out.Records = append(out.Records, Record{columns: columns, values: vals, row: r.row})
	}
	return out
}

// coerceCell renders c as trimmed text, or with preserve set, keeps native
// values and maps blanks to the empty cell.
func coerceCell(c Cell, preserve bool) Cell {
	if !preserve {
		return TextCell(strings.TrimSpace(c.String()))
	}
	switch c.Kind {
	case CellEmpty:
		return c
	case CellText:
		s := strings.TrimSpace(c.Text)
		if s == "" {
			return EmptyCell()
		}
		return TextCell(s)
	default:
		return c
	}
}

func isBlankRow(row []Cell) bool {
	for _, c := range row {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}
