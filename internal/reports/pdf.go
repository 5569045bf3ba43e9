package reports

import (
	"fmt"

	"github.com/pivoten/caat/internal/financials/audit"
	"github.com/pivoten/caat/internal/pdf"
)

// WritePDF renders the narrative document of a result: title, metrics,
// notices, the headed bullet sections and, when present, the chart.
func (s *Service) WritePDF(result *audit.AuditResult, source string) ([]byte, error) {
	gen := pdf.NewGenerator(nil)
	gen.SetReportTitle(result.Title)
	gen.SetFooterText("CAAT " + result.RunID)
	gen.SetGeneratedAt(s.now())
	gen.AddPage()

	gen.AddTitle(result.Title, 16)
	if source != "" {
		gen.AddSubtitle(source)
	}
	if result.Message != "" {
		gen.AddSubtitle(result.Message)
	}

	if len(result.Metrics) > 0 {
		data := make([][]string, 0, len(result.Metrics))
		for _, m := range result.Metrics {
			data = append(data, []string{m.Label, FormatMetric(m.Value)})
		}
		gen.AddTable([]string{s.i18n.T("report.metric"), s.i18n.T("report.value")}, data, []float64{70, 100})
		gen.AddSeparator()
	}

	if len(result.Notices) > 0 {
		gen.AddSection(s.i18n.T("report.notices"), result.Notices)
	}
	for _, section := range result.Narrative {
		gen.AddSection(section.Heading, section.Bullets)
	}

	if result.Chart != nil {
		gen.AddPage()
		series := make([]pdf.ChartSeries, len(result.Chart.Series))
		for i, cs := range result.Chart.Series {
			series[i] = pdf.ChartSeries{Name: cs.Name, Values: cs.Values}
		}
		gen.AddBarChart(result.Chart.Title, result.Chart.Labels, series, 90)
		gen.AddSeparator()
		if freq := result.Table("Frequencies"); freq != nil {
			gen.AddTable(freq.ColumnNames(), freq.StringRows(), nil)
		}
	}

	data, err := gen.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to render %s report: %w", result.Test, err)
	}
	return data, nil
}
