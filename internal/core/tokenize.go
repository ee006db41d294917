package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// BlankLinePolicy controls which tokenized records count as blank lines.
type BlankLinePolicy int

const (
	// BlankLinesGreedy drops empty lines and lines whose fields are all
	// whitespace, so runs of visually blank lines collapse away.
	BlankLinesGreedy BlankLinePolicy = iota
	// BlankLinesSkip drops only lines with no content at all.
	BlankLinesSkip
)

// ParseBlankLinePolicy maps "greedy" or "skip" to a policy. Anything else
// yields BlankLinesGreedy.
func ParseBlankLinePolicy(s string) BlankLinePolicy {
	if strings.EqualFold(strings.TrimSpace(s), "skip") {
		return BlankLinesSkip
	}
	return BlankLinesGreedy
}

// String returns the config name of the policy.
func (p BlankLinePolicy) String() string {
	if p == BlankLinesSkip {
		return "skip"
	}
	return "greedy"
}

// Tokenize splits decoded comma-separated text into a RawGrid.
//
// Trailing empty fields are dropped from every record, and a record left
// with no fields is discarded, as is a leading record holding only blanks.
// Quoted fields may contain commas and newlines.
func Tokenize(text string, policy BlankLinePolicy) (RawGrid, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var grid RawGrid
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return grid, fmt.Errorf("invalid csv: %w", err)
		}

		leading := first
		first = false
		rec = trimTrailingEmpty(rec)
		if len(rec) == 0 || (leading && isEmptyRow(rec)) {
			continue
		}
		if policy == BlankLinesGreedy && isEmptyRow(rec) {
			continue
		}
		grid = append(grid, textRow(rec))
	}
	return grid, nil
}

// trimTrailingEmpty removes the empty fields left by trailing delimiters.
func trimTrailingEmpty(rec []string) []string {
	n := len(rec)
	for n > 0 && rec[n-1] == "" {
		n--
	}
	return rec[:n]
}

func textRow(fields []string) []Cell {
	cells := make([]Cell, len(fields))
	for i, f := range fields {
		cells[i] = TextCell(f)
	}
	return cells
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
