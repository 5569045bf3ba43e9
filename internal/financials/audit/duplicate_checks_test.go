package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicatesReturnsEveryRowOfAGroup(t *testing.T) {
	tbl := newTable(t, []string{"Número", "R.U.C.", "Total", "Fecha", "Nombres"},
		[]interface{}{"001-1", "1790011", 150.0, "05/01/2024", "ACME"},
		[]interface{}{"001-2", "1790011", 80.0, "06/01/2024", "ACME"},
		[]interface{}{"001-1", "1790011", 150.0, "05/01/2024", "ACME S.A."},
	)

	result, err := NewService().Duplicates(tbl)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, []string{"Número", "R.U.C.", "Total", "Fecha"}, result.Metadata["key"])

	require.Equal(t, 2, result.FindingsCount())
	assert.Equal(t, "ACME", result.Findings.Cell(0, "Nombres").Str)
	assert.Equal(t, "ACME S.A.", result.Findings.Cell(1, "Nombres").Str)
	assert.Equal(t, 1.0, result.Findings.Cell(0, ColDupGroup).Num)
	assert.Equal(t, 2.0, result.Findings.Cell(1, ColDupCount).Num)

	groups := result.Table("Groups")
	require.NotNil(t, groups)
	assert.Equal(t, 1, groups.Len())
	assert.Equal(t, 2.0, groups.Cell(0, ColCount).Num)

	view := result.Table("KeyView")
	require.NotNil(t, view)
	assert.Equal(t, []string{"Número", "R.U.C.", "Total", "Fecha", "Nombres"}, view.ColumnNames())

	v, ok := result.MetricValue("duplicateRows")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestDuplicatesUsesFirstCompleteTuple(t *testing.T) {
	tbl := newTable(t, []string{"Numero", "RUC", "Total", "Fecha", "Número"},
		[]interface{}{"1", "9", 10, "x", "a"},
		[]interface{}{"1", "9", 10, "x", "b"},
	)
	key, ok := SelectDuplicateKey(tbl)
	require.True(t, ok)
	assert.Equal(t, []string{"Numero", "RUC", "Total", "Fecha"}, key)

	result, err := NewService().Duplicates(tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FindingsCount())
}

func TestDuplicatesMissingCellsMatch(t *testing.T) {
	tbl := newTable(t, []string{"Numero", "RUC", "Total", "Fecha"},
		[]interface{}{"1", nil, 10, nil},
		[]interface{}{"1", nil, 10, nil},
		[]interface{}{"1", "", 10, nil},
	)
	result, err := NewService().Duplicates(tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FindingsCount())
}

func TestDuplicatesWithoutKeyIsNotAnError(t *testing.T) {
	tbl := newTable(t, []string{"Número", "Total"}, []interface{}{"1", 2})

	result, err := NewService().Duplicates(tbl)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "no applicable key", result.Error)
	assert.Nil(t, result.Findings)
}

func TestDuplicatesNoneFound(t *testing.T) {
	tbl := newTable(t, []string{"Numero", "RUC", "Total", "Fecha"},
		[]interface{}{"1", "9", 10, "x"},
		[]interface{}{"2", "9", 10, "x"},
	)
	result, err := englishService(t).Duplicates(tbl)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.FindingsCount())
	assert.Equal(t, "No duplicates found", result.Message)
	assert.Equal(t, 0, result.Table("Groups").Len())
}
