package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/table"
)

func ledgers(t *testing.T) (*table.Table, *table.Table) {
	a := newTable(t, []string{"id", "monto", "fecha"},
		[]interface{}{1, 100, "01/01/2024"},
		[]interface{}{2, 200, "02/01/2024"},
		[]interface{}{3, 300, "03/01/2024"},
	)
	b := newTable(t, []string{"id", "monto", "fecha"},
		[]interface{}{2, 200, "02/01/2024"},
		[]interface{}{3, 300, "04/01/2024"},
		[]interface{}{4, 400, "05/01/2024"},
	)
	return a, b
}

func TestReconcilePartitions(t *testing.T) {
	a, b := ledgers(t)
	result, err := NewService().Reconcile(a, b, ReconcileOptions{
		KeyColumn:     "id",
		AmountColumnA: "monto",
		AmountColumnB: "monto",
		DateColumnA:   "fecha",
		DateColumnB:   "fecha",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	onlyA := result.Table("OnlyInA")
	require.Equal(t, 1, onlyA.Len())
	assert.Equal(t, "1", onlyA.Cell(0, ColKey).Str)
	assert.True(t, onlyA.Cell(0, "monto_B").IsMissing())

	onlyB := result.Table("OnlyInB")
	require.Equal(t, 1, onlyB.Len())
	assert.Equal(t, "4", onlyB.Cell(0, ColKey).Str)

	matched := result.Table("Matched")
	require.Equal(t, 2, matched.Len())
	assert.Equal(t, "2", matched.Cell(0, ColKey).Str)
	assert.Equal(t, 0.0, matched.Cell(0, ColDiff).Num)

	assert.Equal(t, 0, result.FindingsCount())
	assert.Equal(t, 0, result.Table("AmountDifferences").Len())

	dates := result.Table("DateDifferences")
	require.Equal(t, 1, dates.Len())
	assert.Equal(t, "3", dates.Cell(0, ColKey).Str)

	assert.Equal(t, []string{
		"id_A", "monto_A", "fecha_A", ColKey, "id_B", "monto_B", "fecha_B", ColDiff, ColAbsDiff,
	}, matched.ColumnNames())

	totalA, _ := result.MetricValue("totalA")
	totalB, _ := result.MetricValue("totalB")
	diff, _ := result.MetricValue("totalDiff")
	assert.Equal(t, 600.0, totalA)
	assert.Equal(t, 900.0, totalB)
	assert.Equal(t, -300.0, diff)
	assert.Empty(t, result.Notices)
}

func TestReconcileTolerance(t *testing.T) {
	a := newTable(t, []string{"id", "monto"}, []interface{}{"F1", 200.0})
	b := newTable(t, []string{"id", "importe"}, []interface{}{"F1", 200.005})
	opts := ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "importe"}

	result, err := NewService().Reconcile(a, b, opts)
	require.NoError(t, err)
	require.Equal(t, 1, result.FindingsCount())
	assert.InDelta(t, -0.005, result.Findings.Cell(0, ColDiff).Num, 1e-9)
	assert.InDelta(t, 0.005, result.Findings.Cell(0, ColAbsDiff).Num, 1e-9)
	assert.True(t, result.Findings.HasColumn("monto"))
	assert.True(t, result.Findings.HasColumn("importe"))

	opts.Tolerance = 0.01
	result, err = NewService().Reconcile(a, b, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FindingsCount())
	assert.Nil(t, result.Table("DateDifferences"))
}

func TestReconcileSignedSumsOnlyCountDifferencesBeyondTolerance(t *testing.T) {
	a := newTable(t, []string{"id", "monto"},
		[]interface{}{"F1", 100}, []interface{}{"F2", 200}, []interface{}{"F3", 300})
	b := newTable(t, []string{"id", "monto"},
		[]interface{}{"F1", 100}, []interface{}{"F2", 201}, []interface{}{"F3", 350})

	result, err := englishService(t).Reconcile(a, b, ReconcileOptions{
		KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto", Tolerance: 10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.FindingsCount())

	positive, _ := result.MetricValue("positiveDiff")
	negative, _ := result.MetricValue("negativeDiff")
	assert.Equal(t, 0.0, positive)
	assert.Equal(t, -50.0, negative)

	require.Len(t, result.Narrative, 4)
	assert.Contains(t, result.Narrative[0].Bullets, "Positive differences: 0.00 | Negative differences: -50.00")
	assert.Equal(t, "TOP 10 DIFFERENCES", result.Narrative[1].Heading)
	assert.Equal(t, []string{"F3: A 300.00 | B 350.00 | Δ -50.00"}, result.Narrative[1].Bullets)
}

func TestReconcileWithinToleranceHasNoTopDifferences(t *testing.T) {
	a := newTable(t, []string{"id", "monto"}, []interface{}{"F1", 100}, []interface{}{"F2", 200})
	b := newTable(t, []string{"id", "monto"}, []interface{}{"F1", 100}, []interface{}{"F2", 201})

	result, err := englishService(t).Reconcile(a, b, ReconcileOptions{
		KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto", Tolerance: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"There are no amount differences"}, result.Narrative[1].Bullets)
	negative, _ := result.MetricValue("negativeDiff")
	assert.Equal(t, 0.0, negative)
}

func TestReconcileMissingKeysMatchEachOther(t *testing.T) {
	assert.Equal(t, "nan", MissingKeyToken)
	assert.Equal(t, "NAN", normalizeKey(table.Missing()))
	assert.Equal(t, "AB-1", normalizeKey(table.String("  ab-1 ")))
	assert.Equal(t, "1001", normalizeKey(table.Number(1001)))

	a := newTable(t, []string{"id", "monto"},
		[]interface{}{nil, 10},
		[]interface{}{"x", 5},
	)
	b := newTable(t, []string{"id", "monto"},
		[]interface{}{nil, 10},
		[]interface{}{" X ", 7},
	)
	result, err := NewService().Reconcile(a, b, ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto"})
	require.NoError(t, err)

	matched := result.Table("Matched")
	require.Equal(t, 2, matched.Len())
	assert.Equal(t, "NAN", matched.Cell(0, ColKey).Str)
	assert.Equal(t, "X", matched.Cell(1, ColKey).Str)
	assert.Equal(t, 1, result.FindingsCount())
}

func TestReconcileDuplicateKeysExpand(t *testing.T) {
	a := newTable(t, []string{"id", "monto"}, []interface{}{"K", 1}, []interface{}{"K", 2})
	b := newTable(t, []string{"id", "monto"}, []interface{}{"K", 1}, []interface{}{"K", 3})
	result, err := NewService().Reconcile(a, b, ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto"})
	require.NoError(t, err)

	matched := result.Table("Matched")
	require.Equal(t, 4, matched.Len())
	assert.Equal(t, 1.0, matched.Cell(0, "monto_A").Num)
	assert.Equal(t, 3.0, matched.Cell(1, "monto_B").Num)
	assert.Equal(t, 3, result.FindingsCount())
}

func TestReconcileUnresolvedAmounts(t *testing.T) {
	a := newTable(t, []string{"id", "monto"}, []interface{}{"1", "abc"}, []interface{}{"2", "10,5"})
	b := newTable(t, []string{"id", "monto"}, []interface{}{"1", 5}, []interface{}{"2", 10.5})
	result, err := NewService().Reconcile(a, b, ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto"})
	require.NoError(t, err)

	unresolved := result.Table("UnresolvedAmounts")
	require.Equal(t, 1, unresolved.Len())
	assert.True(t, unresolved.Cell(0, ColDiff).IsMissing())
	assert.Equal(t, 0, result.FindingsCount())
	assert.Equal(t, 1, result.Excluded)
	assert.Len(t, result.Notices, 1)
}

func TestReconcileNoOverlapIsANotice(t *testing.T) {
	a := newTable(t, []string{"id", "monto"}, []interface{}{"1", 5})
	b := newTable(t, []string{"id", "monto"}, []interface{}{"2", 5})
	result, err := englishService(t).Reconcile(a, b, ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Notices, 1)
	assert.Equal(t, "No id key matches between A and B", result.Notices[0])
}

func TestReconcileErrors(t *testing.T) {
	s := NewService()
	a := newTable(t, []string{"id", "monto"}, []interface{}{"1", 5})

	_, err := s.Reconcile(a, newTable(t, []string{"x"}), ReconcileOptions{KeyColumn: "id"})
	var ide *common.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, TestReconciliation, ide.Test)

	b := newTable(t, []string{"monto", "codigo"}, []interface{}{5, "1"})
	_, err = s.Reconcile(a, b, ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto"})
	var mc *common.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "B", mc.Table)
	assert.Equal(t, "key", mc.Role)

	_, err = s.Reconcile(a, a, ReconcileOptions{KeyColumn: "id", AmountColumnA: "monto", AmountColumnB: "monto", Tolerance: -1})
	var ve common.ValidationError
	assert.True(t, errors.As(err, &ve))
}
