package core

import "strings"

// DefaultTypeThreshold is the share of non-empty values one category needs
// for a column to take that type.
const DefaultTypeThreshold = 0.8

// inferenceOrder fixes which category wins when a low threshold lets more
// than one qualify.
var inferenceOrder = []ColumnType{TypeNumeric, TypeTemporal, TypeBoolean, TypeTextual}

// ClassifyCell returns the category of a single non-blank value.
// Booleans are checked first, then numbers, then dates.
func ClassifyCell(c Cell) ColumnType {
	switch c.Kind {
	case CellBool:
		return TypeBoolean
	case CellNumber:
		return TypeNumeric
	case CellTime:
		return TypeTemporal
	}

	if _, ok := BoolOf(c); ok {
		return TypeBoolean
	}
	if _, ok := ParseNumber(c.Text); ok {
		return TypeNumeric
	}
	if _, ok := ParseTime(c.Text); ok {
		return TypeTemporal
	}
	return TypeTextual
}

// InferColumnType classifies column by majority vote over its non-empty
// values. A threshold outside (0, 1] means DefaultTypeThreshold.
func InferColumnType(records []Record, column string, threshold float64) ColumnType {
	return DescribeColumn(records, column, threshold).Type
}

// DescribeColumn computes the metadata for one column.
func DescribeColumn(records []Record, column string, threshold float64) ColumnMetadata {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTypeThreshold
	}

	meta := ColumnMetadata{Name: column, Type: TypeTextual}
	counts := make(map[ColumnType]int, len(inferenceOrder))
	distinct := make(map[string]struct{})
	total := 0

	for _, r := range records {
		c := r.Get(column)
		if c.IsBlank() {
			meta.Nullable = true
			continue
		}
		total++
		counts[ClassifyCell(c)]++
		distinct[strings.TrimSpace(c.String())] = struct{}{}
	}

	meta.Distinct = len(distinct)
	if total == 0 {
		return meta
	}

	meta.Type = TypeMixed
	for _, t := range inferenceOrder {
		if float64(counts[t])/float64(total) >= threshold {
			meta.Type = t
			break
		}
	}
	return meta
}

// DescribeColumns computes metadata for every column, in order.
func DescribeColumns(records []Record, columns []string, threshold float64) []ColumnMetadata {
	out := make([]ColumnMetadata, len(columns))
	for i, c := range columns {
		out[i] = DescribeColumn(records, c, threshold)
	}
	return out
}
