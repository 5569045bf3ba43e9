package audit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivoten/caat/internal/common"
)

func benfordOptions() BenfordOptions {
	opts := DefaultBenfordOptions()
	opts.AmountColumn = "monto"
	return opts
}

func TestFirstSignificantDigit(t *testing.T) {
	tests := []struct {
		value float64
		digit int
		ok    bool
	}{
		{0.0456, 4, true},
		{4500, 4, true},
		{0, 0, false},
		{-987.5, 9, true},
		{0.001, 1, true},
		{4.5e-05, 4, true},
		{1e21, 1, true},
		{0.1 + 0.2, 3, true},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		d, ok := FirstSignificantDigit(tt.value)
		assert.Equal(t, tt.ok, ok, "value %v", tt.value)
		assert.Equal(t, tt.digit, d, "value %v", tt.value)
	}
}

func TestBenfordExpected(t *testing.T) {
	expected := BenfordExpected()
	assert.InDelta(t, 0.30103, expected[0], 1e-5)
	assert.InDelta(t, math.Log10(10.0/9.0), expected[8], 1e-12)

	var sum float64
	for _, p := range expected {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBenfordFlagsOverRepresentedDigits(t *testing.T) {
	tbl := amountsTable(t, 1, 10, 100, 1000, 11, 12, 13, 14, 15, 2)
	result, err := NewService().Benford(tbl, benfordOptions())
	require.NoError(t, err)
	require.True(t, result.Success)

	freq := result.Table("Frequencies")
	require.NotNil(t, freq)
	require.Equal(t, 9, freq.Len())
	assert.Equal(t, 9.0, freq.Cell(0, BenfordColObserved).Num)
	assert.Equal(t, 90.0, freq.Cell(0, BenfordColObservedPct).Num)
	assert.Equal(t, 30.1, freq.Cell(0, BenfordColExpectedPct).Num)
	assert.Equal(t, 59.9, freq.Cell(0, BenfordColDeviation).Num)
	assert.Equal(t, -7.61, freq.Cell(1, BenfordColDeviation).Num)

	assert.Equal(t, []string{"1"}, result.Metadata["flaggedDigits"])
	assert.Equal(t, false, result.Metadata["conforms"])
	require.Equal(t, 9, result.FindingsCount())
	assert.Equal(t, 1.0, result.Findings.Cell(0, ColFirstDigit).Num)
	assert.Equal(t, 1.0, result.Findings.Cell(0, ColAmount).Num)

	require.Len(t, result.Notices, 1, "fewer observations than the advisory minimum")
	require.NotNil(t, result.Chart)
	assert.Len(t, result.Chart.Series, 2)
	assert.InDelta(t, 0.9, result.Chart.Series[0].Values[0], 1e-12)
}

func TestBenfordConformingSample(t *testing.T) {
	counts := []int{301, 176, 125, 97, 79, 67, 58, 51, 46}
	var amounts []float64
	for d, c := range counts {
		for i := 0; i < c; i++ {
			amounts = append(amounts, float64(d+1)*100+float64(i%10))
		}
	}
	result, err := NewService().Benford(amountsTable(t, amounts...), benfordOptions())
	require.NoError(t, err)

	chi2, _ := result.MetricValue("chiSquare")
	assert.Less(t, chi2.(float64), 1.0)
	assert.Equal(t, true, result.Metadata["conforms"])
	assert.Equal(t, 0, result.FindingsCount())
	assert.Empty(t, result.Notices)
}

func TestBenfordFilters(t *testing.T) {
	tbl := amountsTable(t, 5, 50, -500, 0)
	opts := benfordOptions()
	opts.MinValue = 10

	result, err := NewService().Benford(tbl, opts)
	require.NoError(t, err)
	n, _ := result.MetricValue("observations")
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, result.Excluded)
	require.Equal(t, 2, result.FindingsCount())
	assert.Equal(t, -500.0, result.Findings.Cell(1, ColAmount).Num)
	assert.Equal(t, 5.0, result.Findings.Cell(1, ColFirstDigit).Num)
}

func TestBenfordObservationsBulletCountsFilteredRows(t *testing.T) {
	tbl := newTable(t, []string{"id", "monto"},
		[]interface{}{1, "1"},
		[]interface{}{2, "2"},
		[]interface{}{3, "abc"},
		[]interface{}{4, nil},
		[]interface{}{5, "0,5"},
		[]interface{}{6, "0"},
	)
	s := englishService(t)

	result, err := s.Benford(tbl, benfordOptions())
	require.NoError(t, err)
	assert.Equal(t, "Valid observations: 3 (of 4 after filters)", result.Narrative[0].Bullets[0])
	rows, _ := result.MetricValue("rows")
	assert.Equal(t, 6, rows)

	opts := benfordOptions()
	opts.MinValue = 1
	result, err = s.Benford(tbl, opts)
	require.NoError(t, err)
	assert.Equal(t, "Valid observations: 2 (of 2 after filters)", result.Narrative[0].Bullets[0])
}

func TestBenfordErrors(t *testing.T) {
	s := NewService()

	_, err := s.Benford(amountsTable(t, 0, 0), benfordOptions())
	var ide *common.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, TestBenford, ide.Test)

	text := newTable(t, []string{"monto"},
		[]interface{}{"abc"}, []interface{}{"def"}, []interface{}{"1,5"}, []interface{}{"x"},
	)
	opts := benfordOptions()
	_, err = s.Benford(text, opts)
	var mc *common.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Contains(t, mc.Reason, "25%")

	opts.DeviationThresholdPP = -1
	_, err = s.Benford(text, opts)
	var ve common.ValidationError
	assert.True(t, errors.As(err, &ve))
}
