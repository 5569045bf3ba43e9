package audit

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/currency"
	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

// Method selects how the unusual-amount limit is computed
type Method string

const (
	MethodFixed       Method = "fixed"
	MethodStatistical Method = "statistical"
)

// Bounds for the statistical multiplier and the size of ranked sub-tables
const (
	MinK    = 1
	MaxK    = 5
	TopRows = 20
)

// UnusualOptions configures the unusual-amount detector
type UnusualOptions struct {
	AmountColumn   string
	IDColumn       string
	DateColumn     string
	Method         Method
	FixedThreshold float64
	K              int
}

// DefaultUnusualOptions returns the defaults used when nothing is configured
func DefaultUnusualOptions() UnusualOptions {
	return UnusualOptions{
		Method:         MethodFixed,
		FixedThreshold: 10000,
		K:              2,
	}
}

// Validate checks option ranges
func (o UnusualOptions) Validate() error {
	switch o.Method {
	case MethodFixed:
		if o.FixedThreshold < 0 || math.IsNaN(o.FixedThreshold) || math.IsInf(o.FixedThreshold, 0) {
			return common.ValidationError{Field: "fixed_threshold", Message: "must be a finite number >= 0"}
		}
	case MethodStatistical:
		if o.K < MinK || o.K > MaxK {
			return common.ValidationError{Field: "k", Message: fmt.Sprintf("must be between %d and %d", MinK, MaxK)}
		}
	default:
		return common.ValidationError{Field: "method", Message: fmt.Sprintf("unknown method %q", o.Method)}
	}
	return nil
}

// meanStd returns the mean and population standard deviation (divisor N)
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// UnusualAmounts flags rows whose coerced amount exceeds a fixed threshold or
// mean + k standard deviations. Rows without a valid amount are excluded from
// the baseline and from the findings.
func (s *Service) UnusualAmounts(t *table.Table, opts UnusualOptions) (*AuditResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	amountCol, err := requireColumn(t, "amount", opts.AmountColumn, "")
	if err != nil {
		return nil, err
	}
	idCol, err := optionalColumn(t, "identifier", opts.IDColumn, "")
	if err != nil {
		return nil, err
	}
	dateCol, err := optionalColumn(t, "date", opts.DateColumn, "")
	if err != nil {
		return nil, err
	}

	result := s.newResult(TestUnusualAmounts)
	amounts := common.CoerceAmountColumn(amountCol)

	var valid []int
	var values []float64
	for i, v := range amounts {
		if v.IsMissing() {
			continue
		}
		valid = append(valid, i)
		values = append(values, v.Num)
	}
	result.Excluded = t.Len() - len(valid)

	base, err := t.Select(valid).WithColumn(ColAmount, selectValues(amounts, valid))
	if err != nil {
		return nil, fmt.Errorf("failed to annotate amounts: %w", err)
	}

	var dates []time.Time
	if dateCol != nil {
		all := common.CoerceDateColumn(dateCol)
		dates = make([]time.Time, len(valid))
		dateValues := make([]table.Value, len(valid))
		for k, r := range valid {
			dates[k] = all[r]
			if formatted := common.FormatDate(all[r]); formatted != "" {
				dateValues[k] = table.String(formatted)
			} else {
				dateValues[k] = table.Missing()
			}
		}
		if base, err = base.WithColumn(ColDate, dateValues); err != nil {
			return nil, fmt.Errorf("failed to annotate dates: %w", err)
		}
	}

	mean, std := meanStd(values)
	var limit float64
	var criterion string
	if opts.Method == MethodFixed {
		limit = opts.FixedThreshold
		criterion = s.T("unusual.criterion.fixed", currency.FormatFloat(limit, 2))
	} else {
		limit = mean + float64(opts.K)*std
		criterion = s.T("unusual.criterion.statistical",
			currency.FormatFloat(mean, 2), opts.K, currency.FormatFloat(std, 2), currency.FormatFloat(limit, 2))
	}

	// z-scores use 1.0 when every amount is equal
	divisor := std
	if divisor == 0 {
		divisor = 1.0
	}
	zscores := make([]table.Value, len(values))
	for k, v := range values {
		zscores[k] = table.Number((v - mean) / divisor)
	}
	if base, err = base.WithColumn(ColZScore, zscores); err != nil {
		return nil, fmt.Errorf("failed to annotate z-scores: %w", err)
	}

	var flagged []int
	var flaggedValues []float64
	for k, v := range values {
		if v > limit {
			flagged = append(flagged, k)
			flaggedValues = append(flaggedValues, v)
		}
	}
	findings := base.Select(flagged)
	result.Findings = findings

	byAmount := stableOrder(findings.Len(), func(i int) float64 { return findings.Cell(i, ColAmount).Num })
	byZScore := stableOrder(findings.Len(), func(i int) float64 { return findings.Cell(i, ColZScore).Num })
	result.Tables = []NamedTable{
		{Name: "TopByAmount", Table: findings.Select(limitRows(byAmount, TopRows))},
		{Name: "TopByZScore", Table: findings.Select(limitRows(byZScore, TopRows))},
	}
	if idCol != nil {
		result.Tables = append(result.Tables, NamedTable{
			Name:  "GroupByID",
			Table: groupByID(findings, opts.IDColumn, true, TopRows),
		})
	}

	total := currency.SumFloats(values)
	flaggedTotal := currency.SumFloats(flaggedValues)
	dateRange := s.T("unusual.noDate")
	if lo, hi, ok := dateBounds(dates); ok {
		dateRange = common.FormatDate(lo) + " → " + common.FormatDate(hi)
	}

	result.Success = true
	result.Metadata["method"] = string(opts.Method)
	result.Metadata["limit"] = limit
	s.addMetric(result, "transactions", len(values))
	s.addMetric(result, "findings", len(flagged))
	s.addMetric(result, "findingsPct", percent(len(flagged), len(values)))
	s.addMetric(result, "totalAmount", total.ToFloat64())
	s.addMetric(result, "findingsAmount", flaggedTotal.ToFloat64())
	s.addMetric(result, "mean", mean)
	s.addMetric(result, "stdDev", std)
	s.addMetric(result, "limit", limit)
	s.addMetric(result, "criterion", criterion)
	s.addMetric(result, "dateRange", dateRange)
	s.addMetric(result, "excluded", result.Excluded)

	if len(values) == 0 {
		result.Notices = append(result.Notices, s.T("unusual.notices.noAmounts", opts.AmountColumn))
	}
	if len(flagged) == 0 {
		result.Message = s.T("unusual.none")
	} else {
		result.Message = s.T("unusual.found", len(flagged), percent(len(flagged), len(values)))
	}

	s.addSection(result, "sections.summary", []string{
		s.T("unusual.bullets.valid", len(values), result.Excluded),
		s.T("unusual.bullets.findings", len(flagged), percent(len(flagged), len(values))),
		s.T("unusual.bullets.sums", total.String(), flaggedTotal.String()),
		s.T("unusual.bullets.criterion", criterion),
		s.T("unusual.bullets.dateRange", dateRange),
	})

	var detail []string
	if len(flaggedValues) > 0 {
		largest := findings.Cell(byAmount[0], ColAmount).Num
		detail = append(detail,
			s.T("unusual.bullets.largest", currency.FormatFloat(largest, 2)),
			s.T("unusual.bullets.meanFinding", currency.FormatFloat(flaggedTotal.ToFloat64()/float64(len(flaggedValues)), 2)),
		)
		if idCol != nil {
			top := groupByID(findings, opts.IDColumn, false, 5)
			for i := 0; i < top.Len(); i++ {
				detail = append(detail, s.T("unusual.bullets.topID",
					top.Cell(i, opts.IDColumn).String(),
					int(top.Cell(i, ColCount).Num),
					currency.FormatFloat(top.Cell(i, ColSum).Num, 2),
				))
			}
		}
	} else {
		detail = append(detail, s.T("unusual.bullets.noFindings"))
	}
	s.addSection(result, "sections.detail", detail)
	s.addSection(result, "sections.recommendations", s.i18n.Lines("unusual.recommendations"))
	s.addSection(result, "sections.reference", []string{s.T("unusual.reference")})

	logger.WriteInfo("Audit", "unusual amount detection finished",
		zap.String("run_id", result.RunID),
		zap.String("method", string(opts.Method)),
		zap.Float64("limit", limit),
		zap.Int("valid", len(values)),
		zap.Int("excluded", result.Excluded),
		zap.Int("findings", len(flagged)),
	)
	return result, nil
}

func selectValues(values []table.Value, rows []int) []table.Value {
	out := make([]table.Value, len(rows))
	for k, r := range rows {
		out[k] = values[r]
	}
	return out
}

func limitRows(rows []int, n int) []int {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

func dateBounds(dates []time.Time) (time.Time, time.Time, bool) {
	var lo, hi time.Time
	found := false
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if !found || d.Before(lo) {
			lo = d
		}
		if !found || d.After(hi) {
			hi = d
		}
		found = true
	}
	return lo, hi, found
}

type idGroup struct {
	id    table.Value
	count int
	sum   float64
	max   float64
}

// groupByID aggregates findings per identifier, sorted by sum descending.
// keepMissing groups rows without an identifier under a single missing key.
func groupByID(findings *table.Table, idColumn string, keepMissing bool, top int) *table.Table {
	index := make(map[string]*idGroup)
	var groups []*idGroup
	for i := 0; i < findings.Len(); i++ {
		id := findings.Cell(i, idColumn)
		if id.IsMissing() && !keepMissing {
			continue
		}
		k := rowKey(findings, i, []string{idColumn})
		amount := findings.Cell(i, ColAmount).Num
		g, ok := index[k]
		if !ok {
			g = &idGroup{id: id, max: amount}
			index[k] = g
			groups = append(groups, g)
		}
		g.count++
		g.sum += amount
		if amount > g.max {
			g.max = amount
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].sum > groups[b].sum
	})
	if len(groups) > top {
		groups = groups[:top]
	}

	out := table.New([]string{idColumn, ColCount, ColSum, ColMax})
	for _, g := range groups {
		out.AppendRow([]table.Value{
			g.id,
			table.Number(float64(g.count)),
			table.Number(g.sum),
			table.Number(g.max),
		})
	}
	return out
}
