package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/pivoten/caat/internal/table"
)

// quotedOrBracketed strips literal text and [color]/[$-locale] parts of a number format
var quotedOrBracketed = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

func openXLSX(data []byte, filename string) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{File: filename, Reason: "unreadable workbook", Err: err}
	}
	return f, nil
}

func xlsxSheetNames(data []byte, filename string) ([]string, error) {
	f, err := openXLSX(data, filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func pickSheet(names []string, wanted, filename string) (string, error) {
	if len(names) == 0 {
		return "", &FormatError{File: filename, Reason: "workbook has no sheets"}
	}
	if wanted == "" {
		return names[0], nil
	}
	for _, name := range names {
		if name == wanted {
			return name, nil
		}
	}
	return "", &FormatError{File: filename, Reason: fmt.Sprintf("sheet %q not found", wanted)}
}

// readXLSX reads one worksheet. The first row is the header. Numeric cells
// become numbers unless their number format is a date, in which case they
// become ISO date strings. Text cells stay text.
func readXLSX(data []byte, filename, sheet string) (*table.Table, error) {
	f, err := openXLSX(data, filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet, err = pickSheet(f.GetSheetList(), sheet, filename)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FormatError{File: filename, Reason: "unreadable sheet " + sheet, Err: err}
	}
	if len(rows) == 0 {
		return nil, &FormatError{File: filename, Reason: "sheet " + sheet + " is empty", Err: errNoColumns}
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	labels := make([]string, width)
	copy(labels, rows[0])

	dates := make(map[int]bool)
	cols := make([]*table.Column, width)
	names := table.NormalizeLabels(labels)
	for j := range cols {
		cols[j] = &table.Column{Name: names[j]}
	}

	for i, r := range rows[1:] {
		if blankRecord(r) {
			continue
		}
		excelRow := i + 2
		for j := 0; j < width; j++ {
			raw := ""
			if j < len(r) {
				raw = r[j]
			}
			cols[j].Values = append(cols[j].Values, xlsxCell(f, sheet, j+1, excelRow, raw, dates))
		}
	}

	t, err := table.FromColumns(cols)
	if err != nil {
		return nil, &FormatError{File: filename, Reason: "inconsistent sheet", Err: err}
	}
	return t, nil
}

func xlsxCell(f *excelize.File, sheet string, col, row int, raw string, dateStyles map[int]bool) table.Value {
	if raw == "" {
		return table.Missing()
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return table.String(raw)
	}

	cellType, _ := f.GetCellType(sheet, cell)
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeDate, excelize.CellTypeError:
		return table.String(raw)
	case excelize.CellTypeBool:
		if raw == "1" {
			return table.String("True")
		}
		return table.String("False")
	}

	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return table.String(raw)
	}

	styleID, err := f.GetCellStyle(sheet, cell)
	if err == nil && isDateStyle(f, styleID, dateStyles) {
		when, err := excelize.ExcelDateToTime(num, false)
		if err == nil {
			if when.Hour() == 0 && when.Minute() == 0 && when.Second() == 0 {
				return table.String(when.Format("2006-01-02"))
			}
			return table.String(when.Format("2006-01-02 15:04:05"))
		}
	}
	return table.Number(num)
}

// isDateStyle reports whether a cell style formats numbers as dates. Results are cached per style.
func isDateStyle(f *excelize.File, styleID int, cache map[int]bool) bool {
	if v, ok := cache[styleID]; ok {
		return v
	}
	isDate := false
	if style, err := f.GetStyle(styleID); err == nil && style != nil {
		switch {
		case style.NumFmt >= 14 && style.NumFmt <= 22, style.NumFmt >= 45 && style.NumFmt <= 47:
			isDate = true
		case style.CustomNumFmt != nil:
			isDate = isDateFormat(*style.CustomNumFmt)
		}
	}
	cache[styleID] = isDate
	return isDate
}

// isDateFormat looks for day or year tokens outside literal text
func isDateFormat(format string) bool {
	format = strings.ToLower(quotedOrBracketed.ReplaceAllString(format, ""))
	return strings.ContainsAny(format, "dy")
}

func openXLS(data []byte, filename string) (xls.Workbook, func(), error) {
	path, cleanup, err := writeTemp(data, "caat-*.xls")
	if err != nil {
		return xls.Workbook{}, nil, fmt.Errorf("failed to stage %s: %w", filename, err)
	}
	book, err := xls.OpenFile(path)
	if err != nil {
		cleanup()
		return xls.Workbook{}, nil, &FormatError{File: filename, Reason: "unreadable workbook", Err: err}
	}
	return book, cleanup, nil
}

func xlsSheetNames(data []byte, filename string) ([]string, error) {
	book, cleanup, err := openXLS(data, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var names []string
	for i := 0; i < book.GetNumberSheets(); i++ {
		sheet, err := book.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		names = append(names, sheet.GetName())
	}
	return names, nil
}

// readXLS reads one worksheet of a legacy workbook. Cells come back as text
// and columns are typed the same way as delimited text.
func readXLS(data []byte, filename, sheetName string) (*table.Table, error) {
	book, cleanup, err := openXLS(data, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var names []string
	index := make(map[string]int)
	for i := 0; i < book.GetNumberSheets(); i++ {
		sheet, err := book.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		names = append(names, sheet.GetName())
		index[sheet.GetName()] = i
	}
	sheetName, err = pickSheet(names, sheetName, filename)
	if err != nil {
		return nil, err
	}

	sheet, err := book.GetSheet(index[sheetName])
	if err != nil || sheet == nil {
		return nil, &FormatError{File: filename, Reason: "unreadable sheet " + sheetName, Err: err}
	}

	var records [][]string
	for _, xlsRow := range sheet.GetRows() {
		var rec []string
		for _, col := range xlsRow.GetCols() {
			rec = append(rec, col.GetString())
		}
		if len(records) > 0 && blankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, &FormatError{File: filename, Reason: "sheet " + sheetName + " is empty", Err: errNoColumns}
	}
	return buildTable(records), nil
}
