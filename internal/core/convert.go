package core

// convert.go turns cell text into numbers, dates, and booleans.
//
// Source files carry values the way people type them:
//   - Thousands separators and currency symbols ("1,200", "₩35,000")
//   - Unit suffixes on prices and distances ("1,200만원", "43,437 Km")
//   - Dates in ISO, US, dotted Korean, and spelled-out forms
//   - Accounting negatives ("(123.45)")
//
// ParseNumber and ParseTime are the shared parsers used by type inference,
// filtering, sorting, and the columnar projection. The ToPg* functions wrap
// them into pgtype values for the typed schema projection; they return
// Valid=false for empty or invalid input.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// currencySymbols are removed wherever they appear.
var currencySymbols = []string{"$", "€", "£", "₩", "￦", "¥"}

// unitSuffixes are stripped from the end of a value, longest first so
// "만원" wins over "원".
var unitSuffixes = []string{"천원", "만원", "원", "km", "㎞", "킬로", "mi"}

// distanceUnits are the suffixes recognized on distance-like columns.
var distanceUnits = []string{"km", "㎞", "킬로", "mi"}

var (
	timestampLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04",
		"2006/01/02 15:04:05", "2006/01/02 15:04",
		"2006.01.02 15:04:05", "2006.01.02 15:04",
		"1/2/2006 15:04:05", "1/2/2006 15:04",
		time.RFC1123Z, time.RFC1123, time.RFC850, time.ANSIC,
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006-1-2", "2006/01/02", "2006/1/2", "2006.01.02", "2006.1.2",
		"2006. 1. 2.", "2006. 1. 2", "2006년 1월 2일", "2006년 01월 02일",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "Jan 2 2006", "2 Jan 2006", "2 January 2006",
		"2006-01", "2006/01",
	}
)

// cleanNumber removes separators, whitespace, currency symbols, and a
// trailing unit. Accounting parentheses become a leading minus.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = s[1 : len(s)-1]
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	s = trimUnit(s, unitSuffixes)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if isNegative {
		s = "-" + s
	}
	return s
}

func trimUnit(s string, units []string) string {
	for _, u := range units {
		if len(s) >= len(u) && strings.EqualFold(s[len(s)-len(u):], u) {
			return strings.TrimSpace(s[:len(s)-len(u)])
		}
	}
	return s
}

// ParseNumber parses decorated numeric text into a finite float.
func ParseNumber(s string) (float64, bool) {
	s = cleanNumber(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseDistance parses a distance such as "43,437 Km".
func ParseDistance(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = trimUnit(s, distanceUnits)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseTime parses a calendar date or timestamp in any supported layout.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// NumberOf returns the numeric value of a cell.
func NumberOf(c Cell) (float64, bool) {
	switch c.Kind {
	case CellNumber:
		return c.Num, true
	case CellText:
		return ParseNumber(c.Text)
	default:
		return 0, false
	}
}

// TimeOf returns the calendar value of a cell.
func TimeOf(c Cell) (time.Time, bool) {
	switch c.Kind {
	case CellTime:
		return c.Time, true
	case CellText:
		return ParseTime(c.Text)
	default:
		return time.Time{}, false
	}
}

// BoolOf returns the boolean value of a cell. Only native booleans and
// the literals "true"/"false" qualify.
func BoolOf(c Cell) (bool, bool) {
	switch c.Kind {
	case CellBool:
		return c.Bool, true
	case CellText:
		s := strings.TrimSpace(c.Text)
		switch {
		case strings.EqualFold(s, "true"):
			return true, true
		case strings.EqualFold(s, "false"):
			return false, true
		}
	}
	return false, false
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date, dropping any clock component.
func ToPgDate(s string) pgtype.Date {
	t, ok := ParseTime(s)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, unit suffixes, thousands separators, and
// accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = cleanNumber(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts true/false, yes/no, t/f, y/n, 1/0, and 예/아니오.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "true", "t", "yes", "y", "1", "예", "o":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0", "아니오", "x":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// CleanCell removes common spreadsheet artifacts from a header or value:
// surrounding whitespace, the Excel formula prefix (="..."), and
// surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}
