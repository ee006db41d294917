package core

// spreadsheet.go turns workbook bytes into RawGrids.
//
// Three physical layouts arrive under spreadsheet extensions:
//
//   - OOXML zip packages (.xlsx, and .xls files that are really .xlsx)
//   - BIFF compound documents (legacy .xls)
//   - HTML tables saved with an .xls extension by web exporters
//
// The layout is sniffed from the leading bytes; the extension only decides
// the fallback when the bytes are inconclusive.

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ErrWorkbook is returned when a spreadsheet cannot be opened or has no sheets.
var ErrWorkbook = errors.New("invalid workbook")

// Sheet is one worksheet's grid.
type Sheet struct {
	Name string
	Rows RawGrid
}

type workbookLayout int

const (
	layoutOOXML workbookLayout = iota
	layoutBIFF
	layoutHTML
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ExtractSheet returns the first sheet of a workbook.
func ExtractSheet(data []byte, format Format) (Sheet, error) {
	sheets, err := extractSheets(data, format, true)
	if err != nil {
		return Sheet{}, err
	}
	return sheets[0], nil
}

// ExtractAllSheets returns every sheet of a workbook in workbook order.
func ExtractAllSheets(data []byte, format Format) ([]Sheet, error) {
	return extractSheets(data, format, false)
}

func extractSheets(data []byte, format Format, firstOnly bool) (sheets []Sheet, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrWorkbook, ErrEmptySource)
	}

	switch sniffLayout(data, format) {
	case layoutBIFF:
		sheets, err = readBIFF(data, firstOnly)
	case layoutHTML:
		sheets, err = readHTMLTables(data, firstOnly)
	default:
		sheets, err = readOOXML(data, firstOnly)
	}
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets found", ErrWorkbook)
	}
	return sheets, nil
}

func sniffLayout(data []byte, format Format) workbookLayout {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return layoutOOXML
	case bytes.HasPrefix(data, oleMagic):
		return layoutBIFF
	case looksLikeHTML(data):
		return layoutHTML
	case format == FormatXLS:
		return layoutBIFF
	default:
		return layoutOOXML
	}
}

func looksLikeHTML(data []byte) bool {
	head := bytes.TrimPrefix(data, utf8BOM)
	head = bytes.TrimSpace(head)
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<")) &&
		(bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<table")) ||
			bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<meta")))
}

// ============================================================================
// OOXML (.xlsx)
// ============================================================================

func readOOXML(data []byte, firstOnly bool) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %w", ErrWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	names := f.GetSheetList()
	if firstOnly && len(names) > 1 {
		names = names[:1]
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		grid, err := readOOXMLSheet(f, name, date1904)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, Sheet{Name: name, Rows: grid})
	}
	return sheets, nil
}

func readOOXMLSheet(f *excelize.File, sheet string, date1904 bool) (RawGrid, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrWorkbook, sheet, err)
	}

	dateStyles := make(map[int]bool)
	grid := make(RawGrid, 0, len(rows))

	for r, row := range rows {
		if len(row) == 0 {
			continue
		}
		cells := make([]Cell, len(row))
		for c, raw := range row {
			if raw == "" {
				cells[c] = EmptyCell()
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				cells[c] = TextCell(raw)
				continue
			}
			cells[c] = ooxmlCell(f, sheet, axis, raw, date1904, dateStyles)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// ooxmlCell converts a raw cell value using its declared type. Numeric
// cells with a date number format become temporal cells.
func ooxmlCell(f *excelize.File, sheet, axis, raw string, date1904 bool, dateStyles map[int]bool) Cell {
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return TextCell(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))

	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return TimeCell(t)
			}
		}
		return TextCell(raw)

	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return TextCell(raw)
		}
		if isDateStyled(f, sheet, axis, dateStyles) {
			if t, err := excelize.ExcelDateToTime(n, date1904); err == nil {
				return TimeCell(t)
			}
		}
		return NumberCell(n)

	default:
		return TextCell(raw)
	}
}

func isDateStyled(f *excelize.File, sheet, axis string, cache map[int]bool) bool {
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if v, ok := cache[styleID]; ok {
		return v
	}

	v := false
	if style, err := f.GetStyle(styleID); err == nil && style != nil {
		custom := ""
		if style.CustomNumFmt != nil {
			custom = *style.CustomNumFmt
		}
		v = isDateFormat(style.NumFmt, custom)
	}
	cache[styleID] = v
	return v
}

// isDateFormat reports whether a number format renders a date. Built-in ids
// 27-36 and 50-58 are the CJK locale date formats.
func isDateFormat(id int, custom string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	if custom == "" {
		return false
	}

	// Drop quoted literals, escapes, and bracketed sections before looking
	// for date tokens.
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(custom); i++ {
		ch := custom[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	s := strings.ToLower(b.String())
	return strings.ContainsAny(s, "yd") || (strings.Contains(s, "h") && strings.Contains(s, "m")) ||
		strings.Contains(s, "ss")
}

// ============================================================================
// BIFF (.xls)
// ============================================================================

func readBIFF(data []byte, firstOnly bool) (sheets []Sheet, err error) {
	// The BIFF reader panics on some malformed records.
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("%w: read xls: %v", ErrWorkbook, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open xls: %w", ErrWorkbook, err)
	}

	n := wb.NumSheets()
	if firstOnly && n > 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Rows: readBIFFSheet(ws)})
	}
	return sheets, nil
}

func readBIFFSheet(ws *xls.WorkSheet) RawGrid {
	var grid RawGrid
	for r := 0; r <= int(ws.MaxRow); r++ {
		row := biffRow(ws, r)
		if row == nil || row.LastCol() <= 0 {
			continue
		}
		cells := make([]Cell, row.LastCol())
		for c := range cells {
			cells[c] = biffCell(row.Col(c))
		}
		grid = append(grid, cells)
	}
	return grid
}

// biffRow returns nil for rows the sheet holds no record for; the reader
// dereferences them unchecked.
func biffRow(ws *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(r)
}

// biffCell types a rendered BIFF value. The reader prints numbers in
// shortest form and custom-format dates as RFC 3339, so only values that
// round-trip through one of those renderings become native cells. Labels
// such as "0001" stay text.
func biffCell(v string) Cell {
	if v == "" {
		return EmptyCell()
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) &&
		strconv.FormatFloat(n, 'f', -1, 64) == v {
		return NumberCell(n)
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil && t.Format(time.RFC3339) == v {
		return TimeCell(t)
	}
	return TextCell(v)
}

// ============================================================================
// HTML tables (.xls exports)
// ============================================================================

var charsetRe = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-z0-9_-]+)`)

func readHTMLTables(data []byte, firstOnly bool) ([]Sheet, error) {
	text, err := decodeHTML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkbook, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrWorkbook, err)
	}

	var sheets []Sheet
	doc.Find("table").EachWithBreak(func(i int, table *goquery.Selection) bool {
		// Nested tables are read as part of their parent.
		if table.ParentsFiltered("table").Length() > 0 {
			return true
		}
		sheets = append(sheets, Sheet{
			Name: "Table " + strconv.Itoa(len(sheets)+1),
			Rows: readHTMLTable(table),
		})
		return !firstOnly
	})
	return sheets, nil
}

func readHTMLTable(table *goquery.Selection) RawGrid {
	var grid RawGrid
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(table) {
			return
		}
		var cells []Cell
		tr.ChildrenFiltered("th, td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, TextCell(td.Text()))
			span, err := strconv.Atoi(td.AttrOr("colspan", "1"))
			for k := 1; err == nil && k < span && k < 64; k++ {
				cells = append(cells, EmptyCell())
			}
		})
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	})
	return grid
}

// decodeHTML honors a declared UTF-8 charset and otherwise runs the
// regular decoding cascade.
func decodeHTML(data []byte) (string, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := charsetRe.FindSubmatch(head); m != nil {
		cs := strings.ToLower(string(m[1]))
		if cs == "utf-8" || cs == "utf8" {
			return string(sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))), nil
		}
	}
	text, _, err := Decode(data)
	if err != nil && !errors.Is(err, ErrDecodeFailure) {
		return "", err
	}
	return text, nil
}
