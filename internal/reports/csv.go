package reports

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/pivoten/caat/internal/financials/audit"
	"github.com/pivoten/caat/internal/table"
)

// MetricRow is one line of a summary csv
type MetricRow struct {
	Key   string `csv:"key"`
	Label string `csv:"metric"`
	Value string `csv:"value"`
}

// FrequencyRow is one digit of the Benford frequency table
type FrequencyRow struct {
	Digit       int     `csv:"digit"`
	Observed    int     `csv:"observed"`
	ObservedPct float64 `csv:"observed_pct"`
	ExpectedPct float64 `csv:"expected_pct"`
	DeviationPP float64 `csv:"deviation_pp"`
}

// SummaryRows flattens the result metrics
func SummaryRows(result *audit.AuditResult) []*MetricRow {
	rows := make([]*MetricRow, 0, len(result.Metrics)+1)
	for _, m := range result.Metrics {
		rows = append(rows, &MetricRow{Key: m.Key, Label: m.Label, Value: FormatMetric(m.Value)})
	}
	if result.Error != "" {
		rows = append(rows, &MetricRow{Key: "error", Label: "Error", Value: result.Error})
	}
	return rows
}

// WriteSummaryCSV renders the metrics as key,metric,value lines
func (s *Service) WriteSummaryCSV(result *audit.AuditResult) ([]byte, error) {
	rows := SummaryRows(result)
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to write summary csv: %w", err)
	}
	return data, nil
}

// FrequencyRows converts the Benford frequency table
func FrequencyRows(t *table.Table) []*FrequencyRow {
	rows := make([]*FrequencyRow, t.Len())
	for i := range rows {
		rows[i] = &FrequencyRow{
			Digit:       int(t.Cell(i, audit.BenfordColDigit).Num),
			Observed:    int(t.Cell(i, audit.BenfordColObserved).Num),
			ObservedPct: t.Cell(i, audit.BenfordColObservedPct).Num,
			ExpectedPct: t.Cell(i, audit.BenfordColExpectedPct).Num,
			DeviationPP: t.Cell(i, audit.BenfordColDeviation).Num,
		}
	}
	return rows
}

// WriteFrequenciesCSV renders the Benford frequency table
func WriteFrequenciesCSV(t *table.Table) ([]byte, error) {
	rows := FrequencyRows(t)
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to write frequency csv: %w", err)
	}
	return data, nil
}
