package table

import (
	"fmt"
	"strings"
)

// NormalizeLabels trims every label, names blank ones "Unnamed: <i>" and
// suffixes repeats with ".1", ".2" so the result is unique. Applying it to its
// own output changes nothing.
func NormalizeLabels(labels []string) []string {
	trimmed := make([]string, len(labels))
	taken := make(map[string]bool, len(labels))
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			label = fmt.Sprintf("Unnamed: %d", i)
		}
		trimmed[i] = label
	}

	out := make([]string, len(trimmed))
	counts := make(map[string]int)
	for i, label := range trimmed {
		if !taken[label] {
			taken[label] = true
			out[i] = label
			continue
		}
		n := counts[label]
		candidate := label
		for taken[candidate] || laterLabel(trimmed[i+1:], candidate) {
			n++
			candidate = fmt.Sprintf("%s.%d", label, n)
		}
		counts[label] = n
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

func laterLabel(rest []string, label string) bool {
	for _, l := range rest {
		if l == label {
			return true
		}
	}
	return false
}

// NormalizeHeaders returns the table with normalized column labels. Cell data is shared.
func NormalizeHeaders(t *Table) *Table {
	labels := NormalizeLabels(t.ColumnNames())
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		cols[i] = &Column{Name: labels[i], Values: col.Values}
	}
	out := &Table{index: make(map[string]int, len(cols)), rows: t.rows}
	for i, col := range cols {
		out.index[col.Name] = i
		out.columns = append(out.columns, col)
	}
	return out
}
