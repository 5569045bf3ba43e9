package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/table"
)

// newTable builds a table from plain Go values: nil is missing, strings are
// text and float64/int are numbers.
func newTable(t *testing.T, names []string, rows ...[]interface{}) *table.Table {
	t.Helper()
	tbl := table.New(names)
	for _, r := range rows {
		require.Len(t, r, len(names))
		values := make([]table.Value, len(r))
		for i, v := range r {
			switch x := v.(type) {
			case nil:
				values[i] = table.Missing()
			case string:
				values[i] = table.String(x)
			case int:
				values[i] = table.Number(float64(x))
			case float64:
				values[i] = table.Number(x)
			default:
				t.Fatalf("unsupported cell %T", v)
			}
		}
		tbl.AppendRow(values)
	}
	return tbl
}

func amountsTable(t *testing.T, amounts ...float64) *table.Table {
	rows := make([][]interface{}, len(amounts))
	for i, a := range amounts {
		rows[i] = []interface{}{i + 1, a}
	}
	return newTable(t, []string{"id", "monto"}, rows...)
}

func englishService(t *testing.T) *Service {
	t.Helper()
	i, err := common.NewDefaultI18n("en")
	require.NoError(t, err)
	return NewService(WithTranslator(i))
}

func TestNewServiceDefaultsToSpanish(t *testing.T) {
	s := NewService()
	assert.Equal(t, "Montos inusuales", s.T("unusual_amounts.title"))
	assert.Equal(t, "Unusual amounts", englishService(t).T("unusual_amounts.title"))
}

func TestResultJSONIncludesFindings(t *testing.T) {
	s := englishService(t)
	result, err := s.UnusualAmounts(amountsTable(t, 100, 5000, 20000), UnusualOptions{
		AmountColumn: "monto", Method: MethodFixed, FixedThreshold: 10000,
	})
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TestUnusualAmounts, decoded["test"])
	assert.Equal(t, float64(1), decoded["findingsCount"])
	assert.Len(t, decoded["findings"], 1)
	assert.Contains(t, decoded["tables"], "TopByAmount")
	assert.NotEmpty(t, decoded["runId"])
}

func TestStableOrderKeepsTies(t *testing.T) {
	keys := []float64{1, 3, 3, 2}
	got := stableOrder(len(keys), func(i int) float64 { return keys[i] })
	assert.Equal(t, []int{1, 2, 3, 0}, got)
}
