package core

import (
	"reflect"
	"testing"
)

func record(columns []string, values ...Cell) Record {
	m := make(map[string]Cell, len(columns))
	for i, c := range columns {
		if i < len(values) {
			m[c] = values[i]
		}
	}
	return NewRecord(columns, m)
}

func column(records []Record, name string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		c := r.Get(name)
		if c.IsNull() {
			out[i] = "<null>"
			continue
		}
		out[i] = c.String()
	}
	return out
}

func ptr(f float64) *float64 { return &f }

// ============================================================================
// Filter Tests
// ============================================================================

func TestFilter(t *testing.T) {
	cols := []string{"name", "price"}
	records := []Record{
		record(cols, TextCell("Sonata"), TextCell("1,500")),
		record(cols, TextCell("Avante"), TextCell("abc")),
		record(cols, TextCell("Grandeur"), TextCell("2,000")),
		record(cols, TextCell("sonata hybrid"), TextCell("2500")),
		record(cols, TextCell("Morning"), EmptyCell()),
	}

	tests := []struct {
		name        string
		constraints map[string]Constraint
		want        []string
	}{
		{
			name:        "range excludes non-numeric text",
			constraints: map[string]Constraint{"price": Between(1000, 2000)},
			want:        []string{"Sonata", "Grandeur"},
		},
		{
			name:        "range is inclusive",
			constraints: map[string]Constraint{"price": Between(2000, 2500)},
			want:        []string{"Grandeur", "sonata hybrid"},
		},
		{
			name:        "open lower bound",
			constraints: map[string]Constraint{"price": Range(nil, ptr(1500))},
			want:        []string{"Sonata"},
		},
		{
			name:        "open upper bound",
			constraints: map[string]Constraint{"price": Range(ptr(2001), nil)},
			want:        []string{"sonata hybrid"},
		},
		{
			name:        "substring is case-insensitive",
			constraints: map[string]Constraint{"name": Contains("SONATA")},
			want:        []string{"Sonata", "sonata hybrid"},
		},
		{
			name:        "numeric equality",
			constraints: map[string]Constraint{"price": Equals(2000)},
			want:        []string{"Grandeur"},
		},
		{
			name: "constraints combine with AND",
			constraints: map[string]Constraint{
				"name":  Contains("sonata"),
				"price": Range(ptr(2000), nil),
			},
			want: []string{"sonata hybrid"},
		},
		{
			name: "empty constraints ignored",
			constraints: map[string]Constraint{
				"name":  Contains(""),
				"price": Range(nil, nil),
			},
			want: []string{"Sonata", "Avante", "Grandeur", "sonata hybrid", "Morning"},
		},
		{
			name:        "unknown field matches nothing",
			constraints: map[string]Constraint{"missing": Contains("x")},
			want:        []string{},
		},
		{
			name:        "no constraints",
			constraints: nil,
			want:        []string{"Sonata", "Avante", "Grandeur", "sonata hybrid", "Morning"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := column(Filter(records, tt.constraints), "name")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter() names = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilter_RangeRejectsText(t *testing.T) {
	cols := []string{"price"}
	records := []Record{
		record(cols, TextCell("1500")),
		record(cols, TextCell("abc")),
	}

	got := Filter(records, map[string]Constraint{"price": Between(1000, 2000)})
	if want := []string{"1500"}; !reflect.DeepEqual(column(got, "price"), want) {
		t.Errorf("Filter() = %q, want %q", column(got, "price"), want)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	cols := []string{"name", "price"}
	records := []Record{
		record(cols, TextCell("a"), TextCell("10")),
		record(cols, TextCell("ab"), TextCell("20")),
		record(cols, TextCell("b"), TextCell("30")),
		record(cols, TextCell("abc"), TextCell("x")),
	}
	constraints := map[string]Constraint{
		"name":  Contains("a"),
		"price": Range(ptr(15), nil),
	}

	once := Filter(records, constraints)
	twice := Filter(once, constraints)
	if !reflect.DeepEqual(column(once, "name"), column(twice, "name")) {
		t.Errorf("Filter twice = %q, want %q", column(twice, "name"), column(once, "name"))
	}
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		raw  string
		want Constraint
	}{
		{"sonata", Contains("sonata")},
		{"1500", Equals(1500)},
		{"1000..2000", Between(1000, 2000)},
		{"1,000..2,000", Between(1000, 2000)},
		{"..2000", Range(nil, ptr(2000))},
		{"1000..", Range(ptr(1000), nil)},
		{"a..b", Contains("a..b")},
		{"", Contains("")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseConstraint(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseConstraint(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Sort Tests
// ============================================================================

func TestSort_DistanceField(t *testing.T) {
	cols := []string{"주행거리"}
	records := []Record{
		record(cols, TextCell("43,437 Km")),
		record(cols, TextCell("1,200 Km")),
		record(cols, EmptyCell()),
	}

	got := column(Sort(records, "주행거리", Ascending), "주행거리")
	want := []string{"1,200 Km", "43,437 Km", "<null>"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sort(asc) = %q, want %q", got, want)
	}

	got = column(Sort(records, "주행거리", Descending), "주행거리")
	want = []string{"43,437 Km", "1,200 Km", "<null>"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sort(desc) = %q, want %q", got, want)
	}
}

func TestSort_DistanceFieldEnglishName(t *testing.T) {
	cols := []string{"Mileage"}
	records := []Record{
		record(cols, TextCell("9,000km")),
		record(cols, TextCell("10,000km")),
		record(cols, TextCell("800km")),
	}

	got := column(Sort(records, "Mileage", Ascending), "Mileage")
	want := []string{"800km", "9,000km", "10,000km"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sort() = %q, want %q", got, want)
	}
}

func TestSort_ValueShapes(t *testing.T) {
	tests := []struct {
		name   string
		values []Cell
		dir    Direction
		want   []string
	}{
		{
			name:   "native numbers",
			values: []Cell{NumberCell(10), NumberCell(-2), NumberCell(3.5)},
			dir:    Ascending,
			want:   []string{"-2", "3.5", "10"},
		},
		{
			name:   "digit strings compare numerically",
			values: []Cell{TextCell("100"), TextCell("9"), TextCell("0010")},
			dir:    Ascending,
			want:   []string{"9", "0010", "100"},
		},
		{
			name:   "digit strings with separators",
			values: []Cell{TextCell("1,000"), TextCell("200"), TextCell("30,000")},
			dir:    Descending,
			want:   []string{"30,000", "1,000", "200"},
		},
		{
			name:   "long digit strings beyond int64",
			values: []Cell{TextCell("99999999999999999999"), TextCell("100000000000000000000")},
			dir:    Ascending,
			want:   []string{"99999999999999999999", "100000000000000000000"},
		},
		{
			name:   "korean collation",
			values: []Cell{TextCell("하나"), TextCell("가나"), TextCell("다라")},
			dir:    Ascending,
			want:   []string{"가나", "다라", "하나"},
		},
		{
			name:   "korean collation descending",
			values: []Cell{TextCell("나"), TextCell("가"), TextCell("다")},
			dir:    Descending,
			want:   []string{"다", "나", "가"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := []string{"v"}
			records := make([]Record, len(tt.values))
			for i, v := range tt.values {
				records[i] = record(cols, v)
			}
			got := column(Sort(records, "v", tt.dir), "v")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sort() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSort_Stable(t *testing.T) {
	cols := []string{"group", "id"}
	records := []Record{
		record(cols, TextCell("b"), TextCell("1")),
		record(cols, TextCell("a"), TextCell("2")),
		record(cols, TextCell("b"), TextCell("3")),
		record(cols, TextCell("a"), TextCell("4")),
		record(cols, TextCell("b"), TextCell("5")),
	}

	once := Sort(records, "group", Ascending)
	want := []string{"2", "4", "1", "3", "5"}
	if got := column(once, "id"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sort() ids = %q, want %q", got, want)
	}

	twice := Sort(once, "group", Ascending)
	if got := column(twice, "id"); !reflect.DeepEqual(got, want) {
		t.Errorf("Sort(Sort()) ids = %q, want %q", got, want)
	}

	desc := Sort(records, "group", Descending)
	wantDesc := []string{"1", "3", "5", "2", "4"}
	if got := column(desc, "id"); !reflect.DeepEqual(got, wantDesc) {
		t.Errorf("Sort(desc) ids = %q, want %q", got, wantDesc)
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	cols := []string{"v"}
	records := []Record{
		record(cols, TextCell("3")),
		record(cols, TextCell("1")),
		record(cols, TextCell("2")),
	}

	_ = Sort(records, "v", Ascending)
	if got := column(records, "v"); !reflect.DeepEqual(got, []string{"3", "1", "2"}) {
		t.Errorf("input reordered to %q", got)
	}
}

func TestSort_EmptyFieldReturnsCopy(t *testing.T) {
	cols := []string{"v"}
	records := []Record{record(cols, TextCell("b")), record(cols, TextCell("a"))}

	got := Sort(records, "", Ascending)
	if !reflect.DeepEqual(column(got, "v"), []string{"b", "a"}) {
		t.Errorf("Sort(no field) = %q, want original order", column(got, "v"))
	}
}

func TestSort_BlankTextSortsAsNull(t *testing.T) {
	cols := []string{"차량명", "주행거리"}
	records := []Record{
		record(cols, TextCell("쏘나타"), TextCell("43,437 Km")),
		record(cols, TextCell("아반떼"), TextCell("")),
		record(cols, TextCell("그랜저"), TextCell("1,200 Km")),
		record(cols, TextCell("모닝"), TextCell("  ")),
	}

	tests := []struct {
		name  string
		dir   Direction
		field string
		want  []string
	}{
		{"distance ascending", Ascending, "주행거리", []string{"그랜저", "쏘나타", "아반떼", "모닝"}},
		{"distance descending", Descending, "주행거리", []string{"쏘나타", "그랜저", "아반떼", "모닝"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := column(Sort(records, tt.field, tt.dir), "차량명")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sort(%s) = %q, want %q", tt.dir, got, tt.want)
			}
		})
	}
}

func TestSort_BlankTextFromIngest(t *testing.T) {
	out := Ingest("cars.csv", []byte("차량명,주행거리\n쏘나타,\"43,437 Km\"\n아반떼,\n그랜저,\"1,200 Km\"\n"), DefaultOptions())
	if out.Err != nil {
		t.Fatalf("Ingest() error = %v", out.Err)
	}

	got := column(Sort(out.Records, "주행거리", Ascending), "차량명")
	want := []string{"그랜저", "쏘나타", "아반떼"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sort() = %q, want %q", got, want)
	}
}

func TestSortWith_NullPlacement(t *testing.T) {
	cols := []string{"v"}
	records := []Record{
		record(cols, EmptyCell()),
		record(cols, TextCell("2")),
		record(cols, TextCell("1")),
	}

	tests := []struct {
		name  string
		dir   Direction
		nulls NullPlacement
		want  []string
	}{
		{"last ascending", Ascending, NullsLast, []string{"1", "2", "<null>"}},
		{"last descending", Descending, NullsLast, []string{"2", "1", "<null>"}},
		{"first ascending", Ascending, NullsFirst, []string{"<null>", "1", "2"}},
		{"first descending", Descending, NullsFirst, []string{"<null>", "2", "1"}},
		{"by direction ascending", Ascending, NullsByDirection, []string{"1", "2", "<null>"}},
		{"by direction descending", Descending, NullsByDirection, []string{"<null>", "2", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := column(SortWith(records, SortOptions{Field: "v", Direction: tt.dir, Nulls: tt.nulls}), "v")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SortWith() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"desc", Descending},
		{"DESC", Descending},
		{" desc ", Descending},
		{"asc", Ascending},
		{"", Ascending},
		{"down", Ascending},
	}
	for _, tt := range tests {
		if got := ParseDirection(tt.in); got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseNullPlacement(t *testing.T) {
	tests := []struct {
		in   string
		want NullPlacement
	}{
		{"first", NullsFirst},
		{"FIRST", NullsFirst},
		{"direction", NullsByDirection},
		{"auto", NullsByDirection},
		{"last", NullsLast},
		{"", NullsLast},
	}
	for _, tt := range tests {
		if got := ParseNullPlacement(tt.in); got != tt.want {
			t.Errorf("ParseNullPlacement(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsDistanceField(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"주행거리", true},
		{"주행 km", true},
		{"Mileage", true},
		{"odometer_km", true},
		{"출품가", false},
		{"price", false},
	}
	for _, tt := range tests {
		if got := IsDistanceField(tt.name); got != tt.want {
			t.Errorf("IsDistanceField(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// ============================================================================
// Page Tests
// ============================================================================

func TestPage(t *testing.T) {
	cols := []string{"v"}
	var records []Record
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		records = append(records, record(cols, TextCell(v)))
	}

	tests := []struct {
		name string
		page int
		size int
		want []string
	}{
		{"first page", 1, 2, []string{"a", "b"}},
		{"last partial page", 3, 2, []string{"e"}},
		{"past the end", 4, 2, []string{}},
		{"page below one", 0, 2, []string{"a", "b"}},
		{"no size returns all", 2, 0, []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := Page(records, tt.page, tt.size)
			if total != 5 {
				t.Errorf("total = %d, want 5", total)
			}
			if names := column(got, "v"); !reflect.DeepEqual(names, tt.want) {
				t.Errorf("Page(%d, %d) = %q, want %q", tt.page, tt.size, names, tt.want)
			}
		})
	}
}

// ============================================================================
// QuerySpec Tests
// ============================================================================

func TestQuerySpec_Apply(t *testing.T) {
	cols := []string{"name", "price"}
	records := []Record{
		record(cols, TextCell("Sonata"), TextCell("1,500")),
		record(cols, TextCell("Avante"), TextCell("900")),
		record(cols, TextCell("Sonata Hybrid"), TextCell("2,500")),
		record(cols, TextCell("sonata N"), TextCell("3,100")),
	}

	q := QuerySpec{
		Constraints: map[string]Constraint{"name": Contains("sonata")},
		Sort:        SortOptions{Field: "price", Direction: Descending},
		Page:        1,
		Size:        2,
	}
	page, total := q.Apply(records)

	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	got := column(page, "price")
	want := []string{"3,100", "2,500"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("page prices = %q, want %q", got, want)
	}
}

func TestQuerySpec_ZeroValueReturnsAll(t *testing.T) {
	cols := []string{"a"}
	records := []Record{record(cols, TextCell("2")), record(cols, TextCell("1"))}

	page, total := QuerySpec{}.Apply(records)
	if total != 2 || len(page) != 2 {
		t.Errorf("Apply() = %d records of %d, want 2 of 2", len(page), total)
	}
	if got := column(page, "a"); got[0] != "2" {
		t.Errorf("order changed without a sort field: %q", got)
	}
}
