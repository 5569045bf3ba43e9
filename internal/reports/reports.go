// Package reports renders audit results as downloadable artifacts: an xlsx
// workbook, csv summaries and a narrative pdf.
package reports

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/financials/audit"
	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/pdf"
)

// Service handles all reporting operations
type Service struct {
	i18n *common.I18n
	now  func() time.Time
}

// NewService creates a new reports service
func NewService(i18n *common.I18n) *Service {
	return &Service{
		i18n: i18n,
		now:  time.Now,
	}
}

// Artifacts lists the files written for one result
type Artifacts struct {
	XLSX           string `json:"xlsx"`
	SummaryCSV     string `json:"summaryCsv"`
	FrequenciesCSV string `json:"frequenciesCsv,omitempty"`
	PDF            string `json:"pdf"`
}

// Files returns the written paths in a stable order
func (a *Artifacts) Files() []string {
	files := []string{a.XLSX, a.SummaryCSV}
	if a.FrequenciesCSV != "" {
		files = append(files, a.FrequenciesCSV)
	}
	return append(files, a.PDF)
}

// Export writes every artifact of a result into dir. source names the input
// file(s) and appears in the document subtitle.
func (s *Service) Export(result *audit.AuditResult, dir, source string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	base := pdf.SanitizeFileName(result.Test)
	artifacts := &Artifacts{
		XLSX:       filepath.Join(dir, base+".xlsx"),
		SummaryCSV: filepath.Join(dir, base+"_summary.csv"),
		PDF:        filepath.Join(dir, base+"_report.pdf"),
	}

	xlsx, err := s.WriteXLSX(result)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(artifacts.XLSX, xlsx, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", artifacts.XLSX, err)
	}

	summary, err := s.WriteSummaryCSV(result)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(artifacts.SummaryCSV, summary, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", artifacts.SummaryCSV, err)
	}

	if result.Test == audit.TestBenford && result.Table("Frequencies") != nil {
		artifacts.FrequenciesCSV = filepath.Join(dir, "benford_frequencies.csv")
		freq, err := WriteFrequenciesCSV(result.Table("Frequencies"))
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(artifacts.FrequenciesCSV, freq, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", artifacts.FrequenciesCSV, err)
		}
	}

	doc, err := s.WritePDF(result, source)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(artifacts.PDF, doc, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", artifacts.PDF, err)
	}

	logger.WriteInfo("Reports", "artifacts written",
		zap.String("run_id", result.RunID),
		zap.String("dir", dir),
		zap.Strings("files", artifacts.Files()),
	)
	return artifacts, nil
}

// FormatMetric renders a metric value for text outputs
func FormatMetric(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(math.Round(x*10000)/10000, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
