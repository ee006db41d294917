package core

// query.go implements filtering, sorting, and paging over materialized
// records. All operations are pure: they never modify their input and
// return new slices.

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ============================================================================
// Filter
// ============================================================================

// ConstraintKind selects how a Constraint matches a value.
type ConstraintKind int

const (
	// ConstraintText matches a case-insensitive substring of the value's text.
	ConstraintText ConstraintKind = iota
	// ConstraintNumber matches values numerically equal to Number.
	ConstraintNumber
	// ConstraintRange matches numeric values within [Min, Max]; a nil bound
	// is open.
	ConstraintRange
)

// Constraint is a single field predicate.
type Constraint struct {
	Kind   ConstraintKind
	Text   string
	Number float64
	Min    *float64
	Max    *float64
}

// Contains builds a substring constraint.
func Contains(text string) Constraint {
	return Constraint{Kind: ConstraintText, Text: text}
}

// Equals builds an exact numeric constraint.
func Equals(n float64) Constraint {
	return Constraint{Kind: ConstraintNumber, Number: n}
}

// Between builds an inclusive range constraint.
func Between(lo, hi float64) Constraint {
	return Constraint{Kind: ConstraintRange, Min: &lo, Max: &hi}
}

// Range builds a range constraint with optional bounds.
func Range(lo, hi *float64) Constraint {
	return Constraint{Kind: ConstraintRange, Min: lo, Max: hi}
}

// ParseConstraint reads the query-string form of a constraint:
// "min..max" (either side may be omitted) is a range, a bare number is an
// exact match, and anything else is a substring match.
func ParseConstraint(raw string) Constraint {
	s := strings.TrimSpace(raw)
	if lo, hi, ok := strings.Cut(s, ".."); ok {
		minV, minOK := parseBound(lo)
		maxV, maxOK := parseBound(hi)
		if minOK && maxOK {
			return Range(minV, maxV)
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && s != "" {
		return Equals(n)
	}
	return Contains(raw)
}

// parseBound returns nil for an empty bound and fails on non-numeric text.
func parseBound(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	n, ok := ParseNumber(s)
	if !ok {
		return nil, false
	}
	return &n, true
}

// IsEmpty reports whether the constraint has nothing to apply.
func (c Constraint) IsEmpty() bool {
	switch c.Kind {
	case ConstraintText:
		return c.Text == ""
	case ConstraintRange:
		return c.Min == nil && c.Max == nil
	default:
		return false
	}
}

// Match reports whether v satisfies the constraint. Numeric constraints
// fail for values that do not parse as numbers.
func (c Constraint) Match(v Cell) bool {
	switch c.Kind {
	case ConstraintNumber:
		n, ok := NumberOf(v)
		return ok && n == c.Number
	case ConstraintRange:
		n, ok := NumberOf(v)
		if !ok {
			return false
		}
		if c.Min != nil && n < *c.Min {
			return false
		}
		if c.Max != nil && n > *c.Max {
			return false
		}
		return true
	default:
		return strings.Contains(strings.ToLower(v.String()), strings.ToLower(c.Text))
	}
}

// Filter returns the records matching every non-empty constraint, in their
// original order.
func Filter(records []Record, constraints map[string]Constraint) []Record {
	active := make(map[string]Constraint, len(constraints))
	for field, c := range constraints {
		if !c.IsEmpty() {
			active[field] = c
		}
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if matchesAll(r, active) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r Record, constraints map[string]Constraint) bool {
	for field, c := range constraints {
		if !c.Match(r.Get(field)) {
			return false
		}
	}
	return true
}

// ============================================================================
// Sort
// ============================================================================

// Direction is a sort direction token.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection maps "desc" (any case) to Descending and anything else to
// Ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Descending)) {
		return Descending
	}
	return Ascending
}

// NullPlacement decides where null values go in a sorted list.
type NullPlacement int

const (
	// NullsLast puts nulls at the end in both directions.
	NullsLast NullPlacement = iota
	// NullsFirst puts nulls at the start in both directions.
	NullsFirst
	// NullsByDirection treats null as the largest value: last when
	// ascending, first when descending.
	NullsByDirection
)

// ParseNullPlacement maps "first", "direction", and "last" to a placement.
// Anything else yields NullsLast.
func ParseNullPlacement(s string) NullPlacement {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return NullsFirst
	case "direction", "auto":
		return NullsByDirection
	default:
		return NullsLast
	}
}

// SortOptions configures SortWith.
type SortOptions struct {
	Field     string
	Direction Direction
	Nulls     NullPlacement
}

// distanceHints mark column names whose values carry a distance unit.
var distanceHints = []string{"주행", "거리", "mileage", "distance", "odometer", "km"}

// IsDistanceField reports whether name looks like a distance column.
func IsDistanceField(name string) bool {
	lower := strings.ToLower(name)
	for _, h := range distanceHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// Sort returns records ordered by field with blanks last.
func Sort(records []Record, field string, dir Direction) []Record {
	return SortWith(records, SortOptions{Field: field, Direction: dir})
}

// SortWith returns a stably sorted copy of records.
//
// Values are compared by runtime shape: distance fields numerically after
// stripping separators and units, native numbers numerically, digit
// strings numerically, and everything else with Korean collation. Blank
// values, whether null or whitespace-only text, sort as nulls. Null
// placement follows opts.Nulls and is not affected by direction unless
// NullsByDirection is set.
func SortWith(records []Record, opts SortOptions) []Record {
	out := slices.Clone(records)
	if opts.Field == "" || len(out) < 2 {
		return out
	}

	// Collators keep scratch buffers, so each call gets its own.
	coll := collate.New(language.Korean)
	distance := IsDistanceField(opts.Field)
	desc := opts.Direction == Descending
	nullsFirst := opts.Nulls == NullsFirst || (opts.Nulls == NullsByDirection && desc)

	slices.SortStableFunc(out, func(a, b Record) int {
		va, vb := a.Get(opts.Field), b.Get(opts.Field)
		an, bn := va.IsBlank(), vb.IsBlank()
		switch {
		case an && bn:
			return 0
		case an:
			if nullsFirst {
				return -1
			}
			return 1
		case bn:
			if nullsFirst {
				return 1
			}
			return -1
		}

		c := compareCells(va, vb, distance, coll)
		if desc {
			return -c
		}
		return c
	})
	return out
}

func compareCells(a, b Cell, distance bool, coll *collate.Collator) int {
	if distance {
		x, okA := cellDistance(a)
		y, okB := cellDistance(b)
		if okA && okB {
			return cmp.Compare(x, y)
		}
	}

	if a.Kind == CellNumber && b.Kind == CellNumber {
		return cmp.Compare(a.Num, b.Num)
	}
	if a.Kind == CellTime && b.Kind == CellTime {
		return a.Time.Compare(b.Time)
	}

	sa, sb := a.String(), b.String()
	if da, ok := digitString(sa); ok {
		if db, ok := digitString(sb); ok {
			return compareDigits(da, db)
		}
	}
	return coll.CompareString(sa, sb)
}

func cellDistance(c Cell) (float64, bool) {
	if c.Kind == CellNumber {
		return c.Num, true
	}
	return ParseDistance(c.String())
}

// digitString strips thousands separators and reports whether the rest is
// a non-empty run of ASCII digits.
func digitString(s string) (string, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	return s, true
}

// compareDigits compares two digit strings as unbounded integers.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return cmp.Compare(len(a), len(b))
	}
	return strings.Compare(a, b)
}

// ============================================================================
// Paging
// ============================================================================

// Page returns the 1-based page of records and the total count. A size of
// zero or less returns everything.
func Page(records []Record, page, size int) ([]Record, int) {
	total := len(records)
	if size <= 0 {
		return slices.Clone(records), total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= total {
		return []Record{}, total
	}
	end := min(start+size, total)
	return slices.Clone(records[start:end]), total
}

// ============================================================================
// Query
// ============================================================================

// QuerySpec bundles the read operations a caller applies to an outcome.
type QuerySpec struct {
	Constraints map[string]Constraint
	Sort        SortOptions
	Page        int
	Size        int
}

// Apply filters, sorts, then pages records. It returns the page and the
// number of records that passed the filter.
func (q QuerySpec) Apply(records []Record) ([]Record, int) {
	filtered := Filter(records, q.Constraints)
	sorted := SortWith(filtered, q.Sort)
	return Page(sorted, q.Page, q.Size)
}
