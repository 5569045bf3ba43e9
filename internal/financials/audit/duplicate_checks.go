package audit

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

// DuplicateKeyTuples are the invoice key layouts we know about, in priority order.
// The first tuple whose every field exists is used; tuples are never mixed.
var DuplicateKeyTuples = [][]string{
	{"Número", "R.U.C.", "Total", "Fecha"},
	{"Numero", "RUC", "Total", "Fecha"},
	{"Número Factura", "RUC Proveedor", "Importe Total", "Fecha Emisión"},
}

// displayExtras are shown next to the key fields when present
var displayExtras = []string{"Nombres"}

// SelectDuplicateKey returns the first key tuple fully present in the table
func SelectDuplicateKey(t *table.Table) ([]string, bool) {
	for _, tuple := range DuplicateKeyTuples {
		complete := true
		for _, field := range tuple {
			if !t.HasColumn(field) {
				complete = false
				break
			}
		}
		if complete {
			return tuple, true
		}
	}
	return nil, false
}

// rowKey encodes the key fields of a row; two missing cells produce the same code
func rowKey(t *table.Table, row int, fields []string) string {
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		v := t.Cell(row, field)
		switch v.Kind {
		case table.KindMissing:
			b.WriteString("m")
		case table.KindNumber:
			b.WriteString("n" + v.String())
		default:
			b.WriteString("s" + v.Str)
		}
	}
	return b.String()
}

// Duplicates flags every row that shares identical values on all key fields
// with at least one other row. All rows of a group are returned in source order.
func (s *Service) Duplicates(t *table.Table) (*AuditResult, error) {
	result := s.newResult(TestDuplicates)

	key, ok := SelectDuplicateKey(t)
	if !ok {
		candidates := make([]string, len(DuplicateKeyTuples))
		for i, tuple := range DuplicateKeyTuples {
			candidates[i] = "{" + strings.Join(tuple, ", ") + "}"
		}
		result.Success = false
		result.Error = "no applicable key"
		result.Message = s.T("duplicates.noKey", strings.Join(candidates, " | "))
		result.Metadata["candidateKeys"] = DuplicateKeyTuples
		logger.WriteWarning("Audit", "no duplicate key tuple present", zap.Strings("columns", t.ColumnNames()))
		return result, nil
	}

	// Group rows by key, remembering first-occurrence order
	groups := make(map[string][]int)
	var order []string
	for i := 0; i < t.Len(); i++ {
		k := rowKey(t, i, key)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	groupNo := make(map[string]int)
	var dupGroups []string
	for _, k := range order {
		if len(groups[k]) > 1 {
			dupGroups = append(dupGroups, k)
			groupNo[k] = len(dupGroups)
		}
	}

	var rows []int
	var groupCol, countCol []table.Value
	for i := 0; i < t.Len(); i++ {
		k := rowKey(t, i, key)
		if n, dup := groupNo[k]; dup {
			rows = append(rows, i)
			groupCol = append(groupCol, table.Number(float64(n)))
			countCol = append(countCol, table.Number(float64(len(groups[k]))))
		}
	}

	findings := t.Select(rows)
	var err error
	if findings, err = findings.WithColumn(ColDupGroup, groupCol); err != nil {
		return nil, fmt.Errorf("failed to annotate duplicates: %w", err)
	}
	if findings, err = findings.WithColumn(ColDupCount, countCol); err != nil {
		return nil, fmt.Errorf("failed to annotate duplicates: %w", err)
	}
	result.Findings = findings

	// Group summary, most repeated first
	sort.SliceStable(dupGroups, func(a, b int) bool {
		return len(groups[dupGroups[a]]) > len(groups[dupGroups[b]])
	})
	summary := table.New(append(append([]string{}, key...), ColCount))
	for _, k := range dupGroups {
		first := groups[k][0]
		row := make([]table.Value, 0, len(key)+1)
		for _, field := range key {
			row = append(row, t.Cell(first, field))
		}
		summary.AppendRow(append(row, table.Number(float64(len(groups[k])))))
	}

	view := append([]string{}, key...)
	for _, extra := range displayExtras {
		if t.HasColumn(extra) {
			view = append(view, extra)
		}
	}
	keyView := table.New(view)
	for _, r := range rows {
		vals := make([]table.Value, len(view))
		for j, field := range view {
			vals[j] = t.Cell(r, field)
		}
		keyView.AppendRow(vals)
	}

	result.Tables = []NamedTable{
		{Name: "Groups", Table: summary},
		{Name: "KeyView", Table: keyView},
	}

	result.Success = true
	result.Metadata["key"] = key
	s.addMetric(result, "rows", t.Len())
	s.addMetric(result, "duplicateRows", len(rows))
	s.addMetric(result, "duplicateGroups", len(dupGroups))
	s.addMetric(result, "key", strings.Join(key, ", "))

	if len(rows) > 0 {
		result.Message = s.T("duplicates.found", len(rows), len(dupGroups))
	} else {
		result.Message = s.T("duplicates.none")
	}

	s.addSection(result, "sections.summary", []string{
		s.T("duplicates.bullets.key", strings.Join(key, ", ")),
		s.T("duplicates.bullets.rows", t.Len()),
		s.T("duplicates.bullets.found", len(rows), len(dupGroups)),
	})

	var detail []string
	for i, k := range dupGroups {
		if i == 10 {
			break
		}
		first := groups[k][0]
		parts := make([]string, len(key))
		for j, field := range key {
			parts[j] = field + "=" + t.Cell(first, field).String()
		}
		detail = append(detail, s.T("duplicates.bullets.group", strings.Join(parts, " | "), len(groups[k])))
	}
	if len(detail) == 0 {
		detail = []string{s.T("duplicates.bullets.noGroups")}
	}
	s.addSection(result, "sections.detail", detail)
	s.addSection(result, "sections.recommendations", s.i18n.Lines("duplicates.recommendations"))
	s.addSection(result, "sections.reference", []string{s.T("duplicates.reference")})

	logger.WriteInfo("Audit", "duplicate detection finished",
		zap.String("run_id", result.RunID),
		zap.Strings("key", key),
		zap.Int("rows", len(rows)),
		zap.Int("groups", len(dupGroups)),
	)
	return result, nil
}
