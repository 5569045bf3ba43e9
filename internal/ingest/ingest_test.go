package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/pivoten/caat/internal/table"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
		ok   bool
	}{
		{"semicolon", "a;b;c\n1;2;3\n4;5;6\n", ';', true},
		{"comma", "a,b\n1,2\n", ',', true},
		{"pipe", "a|b|c\nx|y|z\n", '|', true},
		{"tab", "a\tb\n1\t2\n", '\t', true},
		{"decimal commas inside semicolon file", "id;total\n1;1.234,56\n2;10,5\n", ';', true},
		{"single column", "total\n1\n2\n", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SniffDelimiter(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSemicolonCSVTypesColumns(t *testing.T) {
	data := []byte("\ufeffNumero ; Total;Fecha\n001;1.234,56;05/01/2024\n002;10,5;\n003;NA;06/01/2024\n")
	tbl, err := NewService().Load(data, "facturas.CSV", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Numero", "Total", "Fecha"}, tbl.ColumnNames())
	require.Equal(t, 3, tbl.Len())

	assert.True(t, tbl.Column("Numero").IsNumeric())
	assert.Equal(t, 1.0, tbl.Cell(0, "Numero").Num)
	assert.False(t, tbl.Column("Total").IsNumeric())
	assert.Equal(t, "1.234,56", tbl.Cell(0, "Total").Str)
	assert.True(t, tbl.Cell(2, "Total").IsMissing())
	assert.True(t, tbl.Cell(1, "Fecha").IsMissing())
}

func TestLoadQuotedCommaCSV(t *testing.T) {
	data := []byte("id,desc,amount\n1,\"a, b\",10\n2,c,20.5\n")
	tbl, err := NewService().Load(data, "x.txt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "a, b", tbl.Cell(0, "desc").Str)
	assert.True(t, tbl.Column("amount").IsNumeric())
	assert.Equal(t, 20.5, tbl.Cell(1, "amount").Num)
}

func TestLoadLatin1Retry(t *testing.T) {
	utf, err := charmap.ISO8859_1.NewEncoder().String("Número;Descripción\n1;Pequeño\n")
	require.NoError(t, err)

	tbl, err := NewService().Load([]byte(utf), "latin.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Número", "Descripción"}, tbl.ColumnNames())
	assert.Equal(t, "Pequeño", tbl.Cell(0, "Descripción").Str)
}

func TestLoadRaggedRowsFallsBack(t *testing.T) {
	data := []byte("a;b\n1;2\n3;4;5\n")
	tbl, err := NewService().Load(data, "ragged.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "Unnamed: 2"}, tbl.ColumnNames())
	assert.Equal(t, 5.0, tbl.Cell(1, "Unnamed: 2").Num)
}

func TestLoadDuplicateHeadersAreUnique(t *testing.T) {
	data := []byte("Total,Total , \n1,2,3\n")
	tbl, err := NewService().Load(data, "dup.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Total", "Total.1", "Unnamed: 2"}, tbl.ColumnNames())
}

func TestLoadRejectsUnsupportedAndEmpty(t *testing.T) {
	_, err := NewService().Load([]byte("x"), "report.pdf", Options{})
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "unsupported format", fe.Reason)

	_, err = NewService().Load([]byte("  \n"), "empty.csv", Options{})
	require.True(t, errors.As(err, &fe))
	assert.True(t, errors.Is(err, errNoColumns))
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Ventas"))
	require.NoError(t, f.SetSheetRow("Ventas", "A1", &[]interface{}{" Numero ", "Total", "Fecha", "Nota"}))
	require.NoError(t, f.SetSheetRow("Ventas", "A2", &[]interface{}{"F-1", 100.5, 45296, "ok"}))
	require.NoError(t, f.SetSheetRow("Ventas", "A3", &[]interface{}{"F-2", "1.000,00", 45297, nil}))

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Ventas", "C2", "C3", dateStyle))

	_, err = f.NewSheet("Compras")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Compras", "A1", &[]interface{}{"id", "monto"}))
	require.NoError(t, f.SetSheetRow("Compras", "A2", &[]interface{}{1, 5}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXSheetsAndTyping(t *testing.T) {
	data := buildWorkbook(t)
	svc := NewService()

	names, err := svc.SheetNames(data, "libro.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ventas", "Compras"}, names)

	tbl, err := svc.Load(data, "libro.xlsx", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Numero", "Total", "Fecha", "Nota"}, tbl.ColumnNames())
	require.Equal(t, 2, tbl.Len())

	assert.Equal(t, table.Number(100.5), tbl.Cell(0, "Total"))
	assert.Equal(t, table.String("1.000,00"), tbl.Cell(1, "Total"))
	assert.False(t, tbl.Column("Total").IsNumeric())

	assert.Equal(t, "2024-01-05", tbl.Cell(0, "Fecha").Str)
	assert.True(t, tbl.Cell(1, "Nota").IsMissing())

	compras, err := svc.Load(data, "libro.xlsx", Options{Sheet: "Compras"})
	require.NoError(t, err)
	assert.True(t, compras.Column("monto").IsNumeric())

	_, err = svc.Load(data, "libro.xlsx", Options{Sheet: "Nope"})
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	tbl, err := NewService().LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}
