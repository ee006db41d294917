package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Header discovery defaults.
const (
	DefaultHeaderSearchRows = 20
	DefaultMinHeaderColumns = 2
	DefaultFallbackPrefix   = "Column"
)

// HeaderOptions configures DiscoverHeader. Zero fields take the defaults.
type HeaderOptions struct {
	SearchRows     int
	MinColumns     int
	FallbackPrefix string
}

func (o HeaderOptions) withDefaults() HeaderOptions {
	if o.SearchRows <= 0 {
		o.SearchRows = DefaultHeaderSearchRows
	}
	if o.MinColumns <= 0 {
		o.MinColumns = DefaultMinHeaderColumns
	}
	if strings.TrimSpace(o.FallbackPrefix) == "" {
		o.FallbackPrefix = DefaultFallbackPrefix
	}
	return o
}

// DiscoverHeader picks the header row of grid.
//
// The first row within the search window holding at least MinColumns
// meaningful cells wins. If none qualifies, row 0 is used. Blank header
// cells become "{prefix} {letter}" using the column's own index, and
// repeated names are renamed "{name} ({letter})" so every record keeps
// every source column.
func DiscoverHeader(grid RawGrid, opts HeaderOptions) HeaderRow {
	opts = opts.withDefaults()
	if len(grid) == 0 {
		return HeaderRow{Fallback: true}
	}

	idx, found := findHeaderRow(grid, opts.SearchRows, opts.MinColumns)
	if !found {
		idx = 0
	}

	return HeaderRow{
		Index:    idx,
		Names:    headerNames(grid[idx], opts.FallbackPrefix),
		Fallback: !found,
	}
}

func findHeaderRow(grid RawGrid, searchRows, minColumns int) (int, bool) {
	maxRows := searchRows
	if len(grid) < maxRows {
		maxRows = len(grid)
	}

	for i := 0; i < maxRows; i++ {
		if meaningfulCells(grid[i]) >= minColumns {
			return i, true
		}
	}
	return -1, false
}

// meaningfulCells counts cells that are non-blank and not the literal
// "undefined" some exporters write for missing values.
func meaningfulCells(row []Cell) int {
	n := 0
	for _, c := range row {
		if !isBlankHeaderCell(c) {
			n++
		}
	}
	return n
}

func isBlankHeaderCell(c Cell) bool {
	if c.IsBlank() {
		return true
	}
	return c.Kind == CellText && strings.TrimSpace(c.Text) == "undefined"
}

func headerNames(row []Cell, prefix string) []string {
	names := make([]string, len(row))
	seen := make(map[string]bool, len(row))

	for i, c := range row {
		name := strings.TrimSpace(c.String())
		if isBlankHeaderCell(c) {
			name = prefix + " " + columnLetter(i)
		}
		if seen[name] {
			name = dedupeName(name, i, seen)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// dedupeName renames a repeated header using the column's letter, adding a
// counter if that is taken too.
func dedupeName(name string, idx int, seen map[string]bool) string {
	candidate := fmt.Sprintf("%s (%s)", name, columnLetter(idx))
	for n := 2; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s (%s) %d", name, columnLetter(idx), n)
	}
	return candidate
}

// columnLetter returns A-Z for the first 26 columns and the 1-based column
// number beyond that.
func columnLetter(idx int) string {
	if idx >= 0 && idx < 26 {
		return string(rune('A' + idx))
	}
	return strconv.Itoa(idx + 1)
}
