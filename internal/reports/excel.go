package reports

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pivoten/caat/internal/financials/audit"
	"github.com/pivoten/caat/internal/table"
)

// maxSheetName is the Excel limit on sheet name length
const maxSheetName = 31

var invalidSheetChars = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

// sheetName makes a valid, unique sheet name
func sheetName(name string, used map[string]bool) string {
	name = strings.Trim(invalidSheetChars.Replace(name), "'")
	if name == "" {
		name = "Sheet"
	}
	name = truncateRunes(name, maxSheetName)
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// WriteXLSX builds a workbook with a summary sheet, the findings and one
// sheet per sub-table
func (s *Service) WriteXLSX(result *audit.AuditResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F0F0F0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	used := make(map[string]bool)
	summary := sheetName(s.i18n.T("report.summarySheet"), used)
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{s.i18n.T("report.metric"), s.i18n.T("report.value")},
		{"Test", result.Title},
		{"Run", result.RunID},
		{s.i18n.T("report.generated"), s.now().Format("2006-01-02 15:04:05")},
	}
	for _, m := range result.Metrics {
		rows = append(rows, []interface{}{m.Label, m.Value})
	}
	if result.Error != "" {
		rows = append(rows, []interface{}{"Error", result.Error + ": " + result.Message})
	}
	for _, notice := range result.Notices {
		rows = append(rows, []interface{}{s.i18n.T("report.notices"), notice})
	}
	if err := writeRows(f, summary, rows, header); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summary, "A", "A", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summary, "B", "B", 60); err != nil {
		return nil, err
	}

	if result.Findings != nil {
		name := sheetName(s.i18n.T("report.findingsSheet"), used)
		if err := writeTable(f, name, result.Findings, header); err != nil {
			return nil, err
		}
	}
	for _, nt := range result.Tables {
		if err := writeTable(f, sheetName(nt.Name, used), nt.Table, header); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, t *table.Table, header int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := make([][]interface{}, 0, t.Len()+1)
	names := t.ColumnNames()
	labels := make([]interface{}, len(names))
	for i, n := range names {
		labels[i] = n
	}
	rows = append(rows, labels)
	for i := 0; i < t.Len(); i++ {
		values := t.Row(i)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v.Interface()
		}
		rows = append(rows, row)
	}
	return writeRows(f, sheet, rows, header)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, header int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 {
		if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
			return fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}
	return nil
}
