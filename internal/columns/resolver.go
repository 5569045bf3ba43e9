// Package columns suggests which column plays which role (identifier, amount, date)
// from heterogeneous header names. Suggestions never run a test on their own.
package columns

import (
	"strings"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/table"
)

// Role is a semantic column role
type Role string

const (
	Identifier Role = "identifier"
	Amount     Role = "amount"
	Date       Role = "date"
)

// MatchRule says how a suggestion was produced
type MatchRule string

const (
	RuleNone       MatchRule = "none"
	RuleExactAlias MatchRule = "exact_alias"
	RuleSubstring  MatchRule = "substring"
	RuleFallback   MatchRule = "fallback"
)

// Aliases are lowercase header names per role, in priority order
var Aliases = map[Role][]string{
	Identifier: {
		"idfactura", "id_factura", "numero", "número", "numerofactura", "numero_factura",
		"serie", "serie_comprobante", "clave_acceso", "idtransaccion", "id_transaccion",
		"referencia", "doc", "documento", "id", "idcliente", "idproveedor",
	},
	Amount: {
		"total", "monto", "importe", "valor", "monto_total", "total_ingresado",
		"importe_total", "importe neto", "subtotal+iva", "total factura", "totalfactura",
		"amount", "total_amount",
	},
	Date: {
		"fecha", "fecha_emision", "fecha emisión", "f_emision", "fecha documento",
		"fecha_doc", "fechadoc", "fecha fact", "fecha factura", "emision", "date",
		"fecha_registro",
	},
}

// Resolution is a column suggestion and how confident it is
type Resolution struct {
	Column string    `json:"column"`
	Rule   MatchRule `json:"rule"`
}

// Found reports whether a column was suggested
func (r Resolution) Found() bool {
	return r.Rule != RuleNone
}

// Resolve suggests a column for the role among the given labels.
// Pass 1 matches the lowercased, trimmed label exactly against the aliases in
// alias order. Pass 2 returns the first label, in table order, containing any alias.
func Resolve(labels []string, role Role) Resolution {
	aliases := Aliases[role]

	normalized := make(map[string]string, len(labels))
	for _, label := range labels {
		key := strings.ToLower(strings.TrimSpace(label))
		if _, seen := normalized[key]; !seen {
			normalized[key] = label
		}
	}
	for _, alias := range aliases {
		if label, ok := normalized[alias]; ok {
			return Resolution{Column: label, Rule: RuleExactAlias}
		}
	}

	for _, label := range labels {
		lower := strings.ToLower(label)
		for _, alias := range aliases {
			if strings.Contains(lower, alias) {
				return Resolution{Column: label, Rule: RuleSubstring}
			}
		}
	}
	return Resolution{Rule: RuleNone}
}

// ResolveTable is Resolve over a table's columns
func ResolveTable(t *table.Table, role Role) Resolution {
	return Resolve(t.ColumnNames(), role)
}

// SuggestAmount resolves the amount role, falling back to the first numeric column
func SuggestAmount(t *table.Table) Resolution {
	if res := ResolveTable(t, Amount); res.Found() {
		return res
	}
	for _, col := range t.Columns() {
		if col.IsNumeric() {
			return Resolution{Column: col.Name, Rule: RuleFallback}
		}
	}
	return Resolution{Rule: RuleNone}
}

// AmountCandidates lists columns that are numeric or mostly convertible to amounts
func AmountCandidates(t *table.Table) []string {
	var out []string
	for _, col := range t.Columns() {
		if common.IsAmountCandidate(col) {
			out = append(out, col.Name)
		}
	}
	return out
}

// SuggestBenfordAmount resolves the amount role among the amount candidates only,
// falling back to the first candidate
func SuggestBenfordAmount(t *table.Table) Resolution {
	candidates := AmountCandidates(t)
	if len(candidates) == 0 {
		return Resolution{Rule: RuleNone}
	}
	if res := Resolve(candidates, Amount); res.Found() {
		return res
	}
	return Resolution{Column: candidates[0], Rule: RuleFallback}
}

// CommonColumns returns the labels present in both tables, in a's order
func CommonColumns(a, b *table.Table) []string {
	var out []string
	for _, name := range a.ColumnNames() {
		if b.HasColumn(name) {
			out = append(out, name)
		}
	}
	return out
}

// SuggestKey proposes a reconciliation key: the identifier suggestion when it is
// a common column, otherwise the first common column
func SuggestKey(a, b *table.Table) Resolution {
	common := CommonColumns(a, b)
	if len(common) == 0 {
		return Resolution{Rule: RuleNone}
	}
	if res := ResolveTable(a, Identifier); res.Found() && b.HasColumn(res.Column) {
		return res
	}
	return Resolution{Column: common[0], Rule: RuleFallback}
}
