package audit

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/columns"
	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/currency"
	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

// Suffixes added to columns present in both reconciled tables
const (
	SuffixA = "_A"
	SuffixB = "_B"
)

// MissingKeyToken is the text a missing key cell normalizes from. Because it
// is a plain string, rows with missing keys on both sides match each other.
const MissingKeyToken = table.MissingToken

// ReconcileOptions configures a two-source reconciliation
type ReconcileOptions struct {
	KeyColumn     string
	AmountColumnA string
	AmountColumnB string
	DateColumnA   string
	DateColumnB   string
	Tolerance     float64
}

// Validate checks option ranges
func (o ReconcileOptions) Validate() error {
	if o.Tolerance < 0 || math.IsNaN(o.Tolerance) || math.IsInf(o.Tolerance, 0) {
		return common.ValidationError{Field: "tolerance", Message: "must be a finite number >= 0"}
	}
	return nil
}

// normalizeKey builds the join key: the cell rendered as text, trimmed and
// upper-cased. Missing cells render as MissingKeyToken and are not special-cased.
func normalizeKey(v table.Value) string {
	return strings.ToUpper(strings.TrimSpace(v.String()))
}

// reconcileSide holds one table prepared for the join
type reconcileSide struct {
	t       *table.Table
	amounts []table.Value
	dates   []time.Time
	rows    map[string][]int
	labels  []string
}

func prepareSide(t *table.Table, keyCol, amountCol, dateCol *table.Column, other *table.Table, suffix string) *reconcileSide {
	side := &reconcileSide{
		t:       t,
		amounts: common.CoerceAmountColumn(amountCol),
		rows:    make(map[string][]int),
	}
	if dateCol != nil {
		side.dates = common.CoerceDateColumn(dateCol)
	}
	for i, v := range keyCol.Values {
		k := normalizeKey(v)
		side.rows[k] = append(side.rows[k], i)
	}
	for _, name := range t.ColumnNames() {
		if other.HasColumn(name) {
			name += suffix
		}
		side.labels = append(side.labels, name)
	}
	return side
}

// cells returns a row, or missing cells for the absent side of the join
func (side *reconcileSide) cells(row int) []table.Value {
	if row < 0 {
		return make([]table.Value, len(side.labels))
	}
	return side.t.Row(row)
}

func (side *reconcileSide) amount(row int) table.Value {
	if row < 0 {
		return table.Missing()
	}
	return side.amounts[row]
}

func (side *reconcileSide) date(row int) time.Time {
	if row < 0 || side.dates == nil {
		return time.Time{}
	}
	return side.dates[row]
}

// joinedRow is one row of the outer join; -1 marks the absent side
type joinedRow struct {
	key  string
	a, b int
}

// Reconcile performs a full outer join of two tables on a normalized key and
// reports rows present on one side only, amount differences beyond tolerance,
// and date differences.
func (s *Service) Reconcile(a, b *table.Table, opts ReconcileOptions) (*AuditResult, error) {
	if len(columns.CommonColumns(a, b)) == 0 {
		return nil, &common.InsufficientDataError{Test: TestReconciliation, Reason: "the tables share no column"}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	keyA, err := requireColumn(a, "key", opts.KeyColumn, "A")
	if err != nil {
		return nil, err
	}
	keyB, err := requireColumn(b, "key", opts.KeyColumn, "B")
	if err != nil {
		return nil, err
	}
	amountA, err := requireColumn(a, "amount", opts.AmountColumnA, "A")
	if err != nil {
		return nil, err
	}
	amountB, err := requireColumn(b, "amount", opts.AmountColumnB, "B")
	if err != nil {
		return nil, err
	}
	dateA, err := optionalColumn(a, "date", opts.DateColumnA, "A")
	if err != nil {
		return nil, err
	}
	dateB, err := optionalColumn(b, "date", opts.DateColumnB, "B")
	if err != nil {
		return nil, err
	}
	compareDates := dateA != nil && dateB != nil

	sideA := prepareSide(a, keyA, amountA, dateA, b, SuffixA)
	sideB := prepareSide(b, keyB, amountB, dateB, a, SuffixB)

	// Keys in lexicographic order, duplicate keys expanded A rows x B rows
	var keys []string
	for k := range sideA.rows {
		keys = append(keys, k)
	}
	for k := range sideB.rows {
		if _, ok := sideA.rows[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var joined []joinedRow
	for _, k := range keys {
		rowsA, rowsB := sideA.rows[k], sideB.rows[k]
		switch {
		case len(rowsB) == 0:
			for _, ra := range rowsA {
				joined = append(joined, joinedRow{key: k, a: ra, b: -1})
			}
		case len(rowsA) == 0:
			for _, rb := range rowsB {
				joined = append(joined, joinedRow{key: k, a: -1, b: rb})
			}
		default:
			for _, ra := range rowsA {
				for _, rb := range rowsB {
					joined = append(joined, joinedRow{key: k, a: ra, b: rb})
				}
			}
		}
	}

	labels := append(append(append([]string{}, sideA.labels...), ColKey), sideB.labels...)
	labels = append(labels, ColDiff, ColAbsDiff)
	merged := table.New(table.NormalizeLabels(labels))

	var onlyA, onlyB, matched, amountDiffs, unresolved, dateDiffs []int
	diffRows := make(map[int]float64)
	for i, j := range joined {
		row := append(append(append([]table.Value{}, sideA.cells(j.a)...), table.String(j.key)), sideB.cells(j.b)...)

		diff, absDiff := table.Missing(), table.Missing()
		switch {
		case j.b < 0:
			onlyA = append(onlyA, i)
		case j.a < 0:
			onlyB = append(onlyB, i)
		default:
			matched = append(matched, i)
			va, vb := sideA.amount(j.a), sideB.amount(j.b)
			if va.IsMissing() || vb.IsMissing() {
				unresolved = append(unresolved, i)
			} else {
				d := va.Num - vb.Num
				diff, absDiff = table.Number(d), table.Number(math.Abs(d))
				diffRows[i] = d
				if math.Abs(d) > opts.Tolerance {
					amountDiffs = append(amountDiffs, i)
				}
			}
			if compareDates {
				da, db := sideA.date(j.a), sideB.date(j.b)
				if !da.IsZero() && !db.IsZero() && !da.Equal(db) {
					dateDiffs = append(dateDiffs, i)
				}
			}
		}
		merged.AppendRow(append(row, diff, absDiff))
	}

	result := s.newResult(TestReconciliation)
	result.Findings = merged.Select(amountDiffs)
	result.Tables = []NamedTable{
		{Name: "OnlyInA", Table: merged.Select(onlyA)},
		{Name: "OnlyInB", Table: merged.Select(onlyB)},
		{Name: "Matched", Table: merged.Select(matched)},
		{Name: "AmountDifferences", Table: merged.Select(amountDiffs)},
		{Name: "UnresolvedAmounts", Table: merged.Select(unresolved)},
	}
	if compareDates {
		result.Tables = append(result.Tables, NamedTable{Name: "DateDifferences", Table: merged.Select(dateDiffs)})
	}

	totalA := sumValues(sideA.amounts)
	totalB := sumValues(sideB.amounts)
	delta := totalA.Sub(totalB)
	// Signed sums cover only the differences beyond the tolerance
	var over, under []currency.Currency
	for _, i := range amountDiffs {
		c := currency.NewFromFloat(diffRows[i])
		switch {
		case c.IsPositive():
			over = append(over, c)
		case c.IsNegative():
			under = append(under, c)
		}
	}
	positive := currency.SumCurrencies(over)
	negative := currency.SumCurrencies(under)

	result.Success = true
	result.Excluded = len(unresolved)
	result.Metadata["key"] = opts.KeyColumn
	result.Metadata["tolerance"] = opts.Tolerance
	s.addMetric(result, "rowsA", a.Len())
	s.addMetric(result, "rowsB", b.Len())
	s.addMetric(result, "onlyInA", len(onlyA))
	s.addMetric(result, "onlyInB", len(onlyB))
	s.addMetric(result, "matched", len(matched))
	s.addMetric(result, "amountDifferences", len(amountDiffs))
	s.addMetric(result, "unresolvedAmounts", len(unresolved))
	if compareDates {
		s.addMetric(result, "dateDifferences", len(dateDiffs))
	}
	s.addMetric(result, "totalA", totalA.ToFloat64())
	s.addMetric(result, "totalB", totalB.ToFloat64())
	s.addMetric(result, "totalDiff", delta.ToFloat64())
	s.addMetric(result, "positiveDiff", positive.ToFloat64())
	s.addMetric(result, "negativeDiff", negative.ToFloat64())
	s.addMetric(result, "tolerance", opts.Tolerance)

	if len(matched) == 0 {
		result.Notices = append(result.Notices, s.T("reconciliation.notices.noOverlap", opts.KeyColumn))
	}
	if len(unresolved) > 0 {
		result.Notices = append(result.Notices, s.T("reconciliation.notices.unresolved", len(unresolved)))
	}
	result.Message = s.T("reconciliation.done", len(matched), len(onlyA), len(onlyB), len(amountDiffs))

	summary := []string{
		s.T("reconciliation.bullets.key", opts.KeyColumn, opts.AmountColumnA, opts.AmountColumnB),
		s.T("reconciliation.bullets.rows", a.Len(), b.Len()),
		s.T("reconciliation.bullets.partitions", len(matched), len(onlyA), len(onlyB)),
		s.T("reconciliation.bullets.amountDiffs", len(amountDiffs), currency.FormatFloat(opts.Tolerance, 2)),
		s.T("reconciliation.bullets.totals", totalA.String(), totalB.String(), delta.String()),
		s.T("reconciliation.bullets.signed", positive.String(), negative.String()),
	}
	if compareDates {
		summary = append(summary, s.T("reconciliation.bullets.dateDiffs", len(dateDiffs)))
	}
	if len(unresolved) > 0 {
		summary = append(summary, s.T("reconciliation.bullets.unresolved", len(unresolved)))
	}
	s.addSection(result, "sections.summary", summary)

	ranked := append([]int(nil), amountDiffs...)
	sort.SliceStable(ranked, func(x, y int) bool {
		return math.Abs(diffRows[ranked[x]]) > math.Abs(diffRows[ranked[y]])
	})
	var top []string
	for _, i := range limitRows(ranked, 10) {
		j := joined[i]
		top = append(top, s.T("reconciliation.bullets.difference",
			j.key,
			currency.FormatFloat(sideA.amount(j.a).Num, 2),
			currency.FormatFloat(sideB.amount(j.b).Num, 2),
			currency.FormatFloat(diffRows[i], 2),
		))
	}
	if len(top) == 0 {
		top = []string{s.T("reconciliation.bullets.noDifferences")}
	}
	s.addSection(result, "sections.topDifferences", top)
	s.addSection(result, "sections.recommendations", s.i18n.Lines("reconciliation.recommendations"))
	s.addSection(result, "sections.reference", []string{s.T("reconciliation.reference")})

	logger.WriteInfo("Audit", "reconciliation finished",
		zap.String("run_id", result.RunID),
		zap.String("key", opts.KeyColumn),
		zap.Int("matched", len(matched)),
		zap.Int("only_a", len(onlyA)),
		zap.Int("only_b", len(onlyB)),
		zap.Int("amount_differences", len(amountDiffs)),
		zap.Int("unresolved", len(unresolved)),
	)
	return result, nil
}

func sumValues(values []table.Value) currency.Currency {
	total := currency.Zero()
	for _, v := range values {
		if !v.IsMissing() {
			total = total.Add(currency.NewFromFloat(v.Num))
		}
	}
	return total
}
