package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorOutput(t *testing.T) {
	g := NewGenerator(nil)
	g.SetReportTitle("Ley de Benford (primer dígito)")
	g.SetFooterText("CAAT")
	g.SetGeneratedAt(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	g.AddPage()
	g.AddTitle("Montos inusuales", 16)
	g.AddSubtitle("Archivo: facturas.csv")
	g.AddSection("RESUMEN", []string{"Criterio: media µ + 2·σ → 1,000.00", "Chi²: 3.210 Cumple (α=0.05, gl=8)"})
	g.AddTable([]string{"Dígito", "Observada"}, [][]string{{"1", "30.10"}, {"2", "17.61"}}, nil)
	g.AddBarChart("Proporción", []string{"1", "2"}, []ChartSeries{
		{Name: "Observada", Values: []float64{0.3, 0.2}},
		{Name: "Esperada", Values: []float64{0.301, 0.176}},
	}, 50)
	g.AddSeparator()

	data, err := g.Output()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestGeneratorEmptyInputsAreIgnored(t *testing.T) {
	g := NewGenerator(nil)
	g.AddPage()
	g.AddTable(nil, nil, nil)
	g.AddBarChart("empty", nil, nil, 40)

	data, err := g.Output()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestToLatin(t *testing.T) {
	assert.Equal(t, "media µ + 2·sigma -> 10", ToLatin("media μ + 2·σ → 10"))
	assert.Equal(t, "Número", ToLatin("Número"))
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "Núm...", TruncateText("Número Factura", 6))
	assert.Equal(t, "abc", TruncateText("abc", 6))
	assert.Equal(t, "a_b_c", SanitizeFileName("a/b:c"))
	assert.Equal(t, []float64{50, 50}, CalculateColumnWidths([]string{"a", "b"}, 100))
	assert.True(t, isNumeric("-1,234.56"))
	assert.True(t, isNumeric("12.5%"))
	assert.False(t, isNumeric("F-1"))
	assert.False(t, isNumeric("-"))
}
