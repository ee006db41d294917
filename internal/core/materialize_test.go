package core

import (
	"reflect"
	"testing"
	"time"
)

func materializeRows(rows [][]string, opts MaterializeOptions) Materialized {
	grid := TextGrid(rows)
	return Materialize(grid, DiscoverHeader(grid, HeaderOptions{}), opts)
}

// ============================================================================
// Materialize Tests
// ============================================================================

func TestMaterialize_EveryRecordHasEveryColumn(t *testing.T) {
	m := materializeRows([][]string{
		{"a", "b", "c"},
		{"1"},
		{"1", "2", "3", "4", "5"},
		{"", "x"},
	}, MaterializeOptions{})

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(m.Columns, want) {
		t.Fatalf("Columns = %q, want %q", m.Columns, want)
	}
	if len(m.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(m.Records))
	}
	for i, r := range m.Records {
		if !reflect.DeepEqual(r.Columns(), want) {
			t.Errorf("record %d columns = %q, want %q", i, r.Columns(), want)
		}
		for _, col := range want {
			if !r.Has(col) {
				t.Errorf("record %d missing %q", i, col)
			}
		}
	}

	if got := m.Records[0].Get("b"); got.Kind != CellText || got.Text != "" {
		t.Errorf("short row padding = %+v, want empty text", got)
	}
	if got := m.Records[1].Get("c").String(); got != "3" {
		t.Errorf("long row c = %q, want %q", got, "3")
	}
}

func TestMaterialize_SkipsEmptyRows(t *testing.T) {
	m := materializeRows([][]string{
		{"a", "b"},
		{"1", "2"},
		{"", "  "},
		{},
		{"3", "4"},
	}, MaterializeOptions{})

	if len(m.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(m.Records))
	}
	if m.SkippedRows != 2 {
		t.Errorf("SkippedRows = %d, want 2", m.SkippedRows)
	}
	if got := m.Records[1].SourceRow(); got != 5 {
		t.Errorf("SourceRow() = %d, want 5", got)
	}
}

func TestMaterialize_KeepEmptyRows(t *testing.T) {
	m := materializeRows([][]string{
		{"a", "b"},
		{"1", "2"},
		{"", ""},
	}, MaterializeOptions{KeepEmptyRows: true})

	if len(m.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(m.Records))
	}
	if m.SkippedRows != 0 {
		t.Errorf("SkippedRows = %d, want 0", m.SkippedRows)
	}
}

func TestMaterialize_TrimsValues(t *testing.T) {
	m := materializeRows([][]string{
		{"a", "b"},
		{"  padded ", "\tx"},
	}, MaterializeOptions{})

	r := m.Records[0]
	if got := r.Get("a").String(); got != "padded" {
		t.Errorf("a = %q, want %q", got, "padded")
	}
	if got := r.Get("b").String(); got != "x" {
		t.Errorf("b = %q, want %q", got, "x")
	}
}

// ============================================================================
// Column pruning
// ============================================================================

func TestMaterialize_PrunesEmptyColumns(t *testing.T) {
	m := materializeRows([][]string{
		{"a", "b", "c", "d"},
		{"1", "", "x", ""},
		{"2", " ", "", ""},
	}, MaterializeOptions{})

	wantCols := []string{"a", "c"}
	if !reflect.DeepEqual(m.Columns, wantCols) {
		t.Errorf("Columns = %q, want %q", m.Columns, wantCols)
	}
	wantPruned := []string{"b", "d"}
	if !reflect.DeepEqual(m.PrunedColumns, wantPruned) {
		t.Errorf("PrunedColumns = %q, want %q", m.PrunedColumns, wantPruned)
	}
	for i, r := range m.Records {
		if r.Has("b") || r.Has("d") {
			t.Errorf("record %d still carries a pruned column", i)
		}
	}
}

func TestMaterialize_NeverPrunesToZero(t *testing.T) {
	m := materializeRows([][]string{
		{"a", "b"},
		{"", ""},
	}, MaterializeOptions{KeepEmptyRows: true})

	want := []string{"a", "b"}
	if !reflect.DeepEqual(m.Columns, want) {
		t.Errorf("Columns = %q, want %q", m.Columns, want)
	}
	if len(m.PrunedColumns) != 0 {
		t.Errorf("PrunedColumns = %q, want none", m.PrunedColumns)
	}
}

func TestMaterialize_HeaderOnly(t *testing.T) {
	m := materializeRows([][]string{{"a", "b"}}, MaterializeOptions{})

	if len(m.Records) != 0 {
		t.Errorf("len(Records) = %d, want 0", len(m.Records))
	}
	if !reflect.DeepEqual(m.Columns, []string{"a", "b"}) {
		t.Errorf("Columns = %q, want header names", m.Columns)
	}
}

func TestMaterialize_NoHeaderNames(t *testing.T) {
	m := Materialize(nil, HeaderRow{}, MaterializeOptions{})
	if len(m.Records) != 0 || len(m.Columns) != 0 {
		t.Errorf("Materialize(empty) = %+v, want zero value", m)
	}
}

// ============================================================================
// Cell type handling
// ============================================================================

func TestMaterialize_RendersNativeCellsAsText(t *testing.T) {
	grid := RawGrid{
		{TextCell("n"), TextCell("d"), TextCell("b")},
		{NumberCell(1200), TimeCell(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)), BoolCell(true)},
	}
	m := Materialize(grid, DiscoverHeader(grid, HeaderOptions{}), MaterializeOptions{})

	r := m.Records[0]
	tests := []struct {
		col  string
		want string
	}{
		{"n", "1200"},
		{"d", "2024-03-09"},
		{"b", "true"},
	}
	for _, tt := range tests {
		c := r.Get(tt.col)
		if c.Kind != CellText || c.Text != tt.want {
			t.Errorf("%s = %+v, want text %q", tt.col, c, tt.want)
		}
	}
}

func TestMaterialize_PreserveCellTypes(t *testing.T) {
	grid := RawGrid{
		{TextCell("n"), TextCell("t"), TextCell("e")},
		{NumberCell(1200), TextCell("  x "), TextCell("  ")},
		{NumberCell(5), EmptyCell(), TextCell("y")},
	}
	m := Materialize(grid, DiscoverHeader(grid, HeaderOptions{}), MaterializeOptions{PreserveCellTypes: true})

	first := m.Records[0]
	if c := first.Get("n"); c.Kind != CellNumber || c.Num != 1200 {
		t.Errorf("n = %+v, want number 1200", c)
	}
	if c := first.Get("t"); c.Kind != CellText || c.Text != "x" {
		t.Errorf("t = %+v, want trimmed text", c)
	}
	if c := first.Get("e"); !c.IsNull() {
		t.Errorf("blank cell = %+v, want null", c)
	}
	if c := m.Records[1].Get("t"); !c.IsNull() {
		t.Errorf("empty cell = %+v, want null", c)
	}
}
