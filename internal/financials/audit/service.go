// Package audit provides the computer-assisted audit tests: duplicates,
// unusual amounts, two-source reconciliation and Benford's law.
//
// Every test is a pure function of its input tables and options. The Service
// only carries the translator used for narrative text.
package audit

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/table"
)

// Test names
const (
	TestDuplicates     = "duplicates"
	TestUnusualAmounts = "unusual_amounts"
	TestReconciliation = "reconciliation"
	TestBenford        = "benford"
)

// Annotation columns added to findings
const (
	ColAmount     = "_AMOUNT_"
	ColDate       = "_DATE_"
	ColZScore     = "_ZSCORE_"
	ColKey        = "_KEY_"
	ColDiff       = "_DIFF_"
	ColAbsDiff    = "_ABS_DIFF_"
	ColFirstDigit = "_FIRST_DIGIT_"
	ColDupGroup   = "_DUP_GROUP_"
	ColDupCount   = "_DUP_COUNT_"
)

// Aggregate columns of grouped sub-tables. They never clash with source labels
// that follow the usual naming.
const (
	ColCount = "_COUNT_"
	ColSum   = "_SUM_"
	ColMax   = "_MAX_"
)

// Service handles all audit operations
type Service struct {
	i18n *common.I18n
}

// Option configures a Service
type Option func(*Service)

// WithTranslator sets the translator used for headings and bullets
func WithTranslator(i *common.I18n) Option {
	return func(s *Service) {
		s.i18n = i
	}
}

// NewService creates a new audit service. Without a translator the bundled
// Spanish texts are used.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.i18n == nil {
		if i, err := common.NewDefaultI18n("es"); err == nil {
			s.i18n = i
		}
	}
	return s
}

// T translates a narrative key
func (s *Service) T(key string, args ...interface{}) string {
	return s.i18n.T(key, args...)
}

// Metric is a named summary value
type Metric struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

// NamedTable is a sub-table of a result, exported as its own sheet
type NamedTable struct {
	Name  string
	Table *table.Table
}

// Section is one heading of the narrative outline with its bullets
type Section struct {
	Heading string   `json:"heading"`
	Bullets []string `json:"bullets"`
}

// ChartSeries is one bar series
type ChartSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// ChartData describes a grouped bar chart
type ChartData struct {
	Title  string        `json:"title"`
	XLabel string        `json:"xLabel"`
	YLabel string        `json:"yLabel"`
	Labels []string      `json:"labels"`
	Series []ChartSeries `json:"series"`
}

// AuditResult represents the result of an audit operation
type AuditResult struct {
	RunID     string                 `json:"runId"`
	Test      string                 `json:"test"`
	Title     string                 `json:"title"`
	Success   bool                   `json:"success"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metrics   []Metric               `json:"metrics,omitempty"`
	Findings  *table.Table           `json:"-"`
	Tables    []NamedTable           `json:"-"`
	Narrative []Section              `json:"narrative,omitempty"`
	Notices   []string               `json:"notices,omitempty"`
	Chart     *ChartData             `json:"chart,omitempty"`
	Excluded  int                    `json:"excluded"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (s *Service) newResult(test string) *AuditResult {
	return &AuditResult{
		RunID:    uuid.NewString(),
		Test:     test,
		Title:    s.T(test + ".title"),
		Metadata: map[string]interface{}{},
	}
}

func (s *Service) addMetric(r *AuditResult, key string, value interface{}) {
	r.Metrics = append(r.Metrics, Metric{Key: key, Label: s.T("metrics." + key), Value: value})
}

func (s *Service) addSection(r *AuditResult, headingKey string, bullets []string) {
	r.Narrative = append(r.Narrative, Section{Heading: s.T(headingKey), Bullets: bullets})
}

// MetricValue returns a metric by key
func (r *AuditResult) MetricValue(key string) (interface{}, bool) {
	for _, m := range r.Metrics {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Table returns a named sub-table, or nil
func (r *AuditResult) Table(name string) *table.Table {
	for _, nt := range r.Tables {
		if nt.Name == name {
			return nt.Table
		}
	}
	return nil
}

// FindingsCount returns the number of finding rows
func (r *AuditResult) FindingsCount() int {
	if r.Findings == nil {
		return 0
	}
	return r.Findings.Len()
}

// MarshalJSON adds the findings and sub-tables as row records
func (r *AuditResult) MarshalJSON() ([]byte, error) {
	type plain AuditResult
	out := struct {
		*plain
		FindingsCount int                                 `json:"findingsCount"`
		Findings      []map[string]interface{}            `json:"findings,omitempty"`
		Tables        map[string][]map[string]interface{} `json:"tables,omitempty"`
	}{plain: (*plain)(r), FindingsCount: r.FindingsCount()}

	if r.Findings != nil {
		out.Findings = r.Findings.Records()
	}
	if len(r.Tables) > 0 {
		out.Tables = make(map[string][]map[string]interface{}, len(r.Tables))
		for _, nt := range r.Tables {
			out.Tables[nt.Name] = nt.Table.Records()
		}
	}
	return json.Marshal(out)
}

// requireColumn checks that an explicitly selected column exists
func requireColumn(t *table.Table, role, name, which string) (*table.Column, error) {
	if name == "" {
		return nil, &common.MissingColumnError{Role: role, Table: which}
	}
	col := t.Column(name)
	if col == nil {
		return nil, &common.MissingColumnError{Role: role, Column: name, Table: which, Reason: "column not found"}
	}
	return col, nil
}

// optionalColumn is requireColumn for roles that may be left empty
func optionalColumn(t *table.Table, role, name, which string) (*table.Column, error) {
	if name == "" {
		return nil, nil
	}
	return requireColumn(t, role, name, which)
}

// stableOrder returns row indexes sorted by key descending, ties kept in source order
func stableOrder(n int, key func(int) float64) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return key(idx[a]) > key(idx[b])
	})
	return idx
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
