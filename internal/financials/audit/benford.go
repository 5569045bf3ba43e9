package audit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

// BenfordCritical is the chi-square critical value for alpha 0.05 with 8 degrees of freedom
const BenfordCritical = 15.507

// Frequency table columns
const (
	BenfordColDigit       = "Digit"
	BenfordColObserved    = "Observed"
	BenfordColObservedPct = "ObservedPct"
	BenfordColExpectedPct = "ExpectedPct"
	BenfordColDeviation   = "DeviationPP"
)

// BenfordOptions configures the Benford analyzer
type BenfordOptions struct {
	AmountColumn            string
	MinValue                float64
	DeviationThresholdPP    float64
	MinObservationsAdvisory int
}

// DefaultBenfordOptions returns the defaults used when nothing is configured
func DefaultBenfordOptions() BenfordOptions {
	return BenfordOptions{
		DeviationThresholdPP:    2.0,
		MinObservationsAdvisory: 100,
	}
}

// Validate checks option ranges
func (o BenfordOptions) Validate() error {
	if o.MinValue < 0 || math.IsNaN(o.MinValue) || math.IsInf(o.MinValue, 0) {
		return common.ValidationError{Field: "min_value", Message: "must be a finite number >= 0"}
	}
	if o.DeviationThresholdPP < 0 || math.IsNaN(o.DeviationThresholdPP) || math.IsInf(o.DeviationThresholdPP, 0) {
		return common.ValidationError{Field: "deviation_threshold_pp", Message: "must be a finite number >= 0"}
	}
	if o.MinObservationsAdvisory < 0 {
		return common.ValidationError{Field: "min_observations_advisory", Message: "must be >= 0"}
	}
	return nil
}

// FirstSignificantDigit returns the leading non-zero digit of |v|. The value
// is rendered with 15 significant digits so float noise never decides the digit.
func FirstSignificantDigit(v float64) (int, bool) {
	v = math.Abs(v)
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	text := strconv.FormatFloat(v, 'g', 15, 64)
	text = strings.ReplaceAll(text, ".", "")
	text = strings.TrimLeft(text, "0")
	if text == "" || text[0] < '1' || text[0] > '9' {
		return 0, false
	}
	return int(text[0] - '0'), true
}

// BenfordExpected returns log10(1 + 1/d) for d = 1..9
func BenfordExpected() [9]float64 {
	var expected [9]float64
	for d := 1; d <= 9; d++ {
		expected[d-1] = math.Log10(1 + 1/float64(d))
	}
	return expected
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Benford compares the first-digit distribution of an amount column with
// Benford's law and returns the rows whose digit is over-represented.
func (s *Service) Benford(t *table.Table, opts BenfordOptions) (*AuditResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	col, err := requireColumn(t, "amount", opts.AmountColumn, "")
	if err != nil {
		return nil, err
	}
	if !col.IsNumeric() {
		if ratio := common.ConvertibleRatio(col); ratio < common.MinConvertibleRatio {
			return nil, &common.MissingColumnError{
				Role:   "amount",
				Column: opts.AmountColumn,
				Reason: fmt.Sprintf("only %.0f%% of values convert to numbers", ratio*100),
			}
		}
	}

	amounts := common.CoerceAmountColumn(col)
	var rows, digits []int
	var kept []table.Value
	filtered := 0 // valid amounts passing the minimum, zeros included
	for i, v := range amounts {
		if v.IsMissing() {
			continue
		}
		magnitude := math.Abs(v.Num)
		if opts.MinValue > 0 && magnitude < opts.MinValue {
			continue
		}
		filtered++
		d, ok := FirstSignificantDigit(magnitude)
		if !ok {
			continue
		}
		rows = append(rows, i)
		digits = append(digits, d)
		kept = append(kept, v)
	}

	n := len(rows)
	if n == 0 {
		return nil, &common.InsufficientDataError{Test: TestBenford, Reason: "no values with a first digit 1-9 remain after filtering"}
	}

	var counts [9]int
	for _, d := range digits {
		counts[d-1]++
	}
	expected := BenfordExpected()

	freq := table.New([]string{BenfordColDigit, BenfordColObserved, BenfordColObservedPct, BenfordColExpectedPct, BenfordColDeviation})
	observed := make([]float64, 9)
	deviations := make([]float64, 9)
	var chi2 float64
	flagged := make(map[int]bool)
	var flaggedDigits []string
	for d := 1; d <= 9; d++ {
		observed[d-1] = float64(counts[d-1]) / float64(n)
		obsPct := round2(observed[d-1] * 100)
		expPct := round2(expected[d-1] * 100)
		deviations[d-1] = round2(observed[d-1]*100 - expected[d-1]*100)
		freq.AppendRow([]table.Value{
			table.Number(float64(d)),
			table.Number(float64(counts[d-1])),
			table.Number(obsPct),
			table.Number(expPct),
			table.Number(deviations[d-1]),
		})

		if e := expected[d-1] * float64(n); e > 0 {
			diff := float64(counts[d-1]) - e
			chi2 += diff * diff / e
		}
		if deviations[d-1] >= opts.DeviationThresholdPP {
			flagged[d] = true
			flaggedDigits = append(flaggedDigits, strconv.Itoa(d))
		}
	}
	conforms := chi2 <= BenfordCritical

	var findingRows []int
	var findingAmounts, findingDigits []table.Value
	for k, r := range rows {
		if flagged[digits[k]] {
			findingRows = append(findingRows, r)
			findingAmounts = append(findingAmounts, kept[k])
			findingDigits = append(findingDigits, table.Number(float64(digits[k])))
		}
	}
	findings, err := t.Select(findingRows).WithColumn(ColAmount, findingAmounts)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate amounts: %w", err)
	}
	if findings, err = findings.WithColumn(ColFirstDigit, findingDigits); err != nil {
		return nil, fmt.Errorf("failed to annotate digits: %w", err)
	}

	result := s.newResult(TestBenford)
	result.Success = true
	result.Findings = findings
	result.Excluded = t.Len() - n
	result.Tables = []NamedTable{{Name: "Frequencies", Table: freq}}

	labels := make([]string, 9)
	for d := 1; d <= 9; d++ {
		labels[d-1] = strconv.Itoa(d)
	}
	result.Chart = &ChartData{
		Title:  s.T("benford.chart.title"),
		XLabel: s.T("benford.chart.xLabel"),
		YLabel: s.T("benford.chart.yLabel"),
		Labels: labels,
		Series: []ChartSeries{
			{Name: s.T("benford.chart.observed"), Values: observed},
			{Name: s.T("benford.chart.expected"), Values: expected[:]},
		},
	}

	verdict := s.T("benford.conforms")
	if !conforms {
		verdict = s.T("benford.notConforms")
	}
	flaggedText := strings.Join(flaggedDigits, ", ")
	if flaggedText == "" {
		flaggedText = s.T("benford.noFlagged")
	}

	result.Metadata["conforms"] = conforms
	result.Metadata["flaggedDigits"] = flaggedDigits
	s.addMetric(result, "observations", n)
	s.addMetric(result, "rows", t.Len())
	s.addMetric(result, "excluded", result.Excluded)
	s.addMetric(result, "chiSquare", chi2)
	s.addMetric(result, "critical", BenfordCritical)
	s.addMetric(result, "conforms", conforms)
	s.addMetric(result, "flaggedDigits", flaggedText)
	s.addMetric(result, "findings", findings.Len())
	s.addMetric(result, "threshold", opts.DeviationThresholdPP)
	s.addMetric(result, "minValue", opts.MinValue)

	if n < opts.MinObservationsAdvisory {
		result.Notices = append(result.Notices, s.T("benford.notices.fewObservations", n, opts.MinObservationsAdvisory))
	}
	result.Message = s.T("benford.done", n, verdict, findings.Len())

	s.addSection(result, "sections.summary", []string{
		s.T("benford.bullets.observations", n, filtered),
		s.T("benford.bullets.chiSquare", chi2, verdict),
		s.T("benford.bullets.flagged", flaggedText),
		s.T("benford.bullets.settings", opts.DeviationThresholdPP, opts.MinValue),
	})

	deviationLines := make([]string, 9)
	for d := 1; d <= 9; d++ {
		deviationLines[d-1] = s.T("benford.bullets.digit", d,
			round2(observed[d-1]*100), round2(expected[d-1]*100), deviations[d-1])
	}
	s.addSection(result, "sections.digitDeviations", deviationLines)
	s.addSection(result, "sections.recommendations", s.i18n.Lines("benford.recommendations"))
	s.addSection(result, "sections.reference", []string{s.T("benford.reference")})

	logger.WriteInfo("Audit", "benford analysis finished",
		zap.String("run_id", result.RunID),
		zap.Int("observations", n),
		zap.Float64("chi_square", chi2),
		zap.Bool("conforms", conforms),
		zap.Strings("flagged_digits", flaggedDigits),
		zap.Int("findings", findings.Len()),
	)
	return result, nil
}
