package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Valentin-Kaiser/go-dbase/dbase"

	"github.com/pivoten/caat/internal/table"
)

func readDBFBytes(data []byte, filename string) (*table.Table, error) {
	path, cleanup, err := writeTemp(data, "caat-*.dbf")
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", filename, err)
	}
	defer cleanup()

	t, err := readDBF(path)
	if err != nil {
		return nil, &FormatError{File: filename, Reason: "unreadable dBase table", Err: err}
	}
	return t, nil
}

func readDBFPath(path string) (*table.Table, error) {
	t, err := readDBF(path)
	if err != nil {
		return nil, &FormatError{File: filepath.Base(path), Reason: "unreadable dBase table", Err: err}
	}
	return t, nil
}

// readDBF reads every live record of a dBase/FoxPro table. Deleted records
// are skipped, text is trimmed and dates become ISO strings.
func readDBF(path string) (*table.Table, error) {
	dbf, err := dbase.OpenTable(&dbase.Config{
		Filename:   path,
		TrimSpaces: true,
		ReadOnly:   true,
	})
	if err != nil {
		return nil, err
	}
	defer dbf.Close()

	columns := dbf.Columns()
	labels := make([]string, len(columns))
	for i, col := range columns {
		labels[i] = col.Name()
	}

	t := table.New(table.NormalizeLabels(labels))
	for !dbf.EOF() {
		row, err := dbf.Next()
		if err != nil {
			return nil, err
		}
		if row.Deleted {
			continue
		}

		raw := row.Values()
		values := make([]table.Value, len(raw))
		for i, v := range raw {
			values[i] = dbfValue(v)
		}
		t.AppendRow(values)
	}
	return t, nil
}

func dbfValue(v interface{}) table.Value {
	switch x := v.(type) {
	case nil:
		return table.Missing()
	case float64:
		return table.Number(x)
	case float32:
		return table.Number(float64(x))
	case int:
		return table.Number(float64(x))
	case int32:
		return table.Number(float64(x))
	case int64:
		return table.Number(float64(x))
	case bool:
		if x {
			return table.String("True")
		}
		return table.String("False")
	case time.Time:
		if x.IsZero() {
			return table.Missing()
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return table.String(x.Format("2006-01-02"))
		}
		return table.String(x.Format("2006-01-02 15:04:05"))
	case []byte:
		return textValue(string(x))
	case string:
		return textValue(x)
	default:
		return textValue(fmt.Sprintf("%v", x))
	}
}

func textValue(s string) table.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return table.Missing()
	}
	return table.String(s)
}
