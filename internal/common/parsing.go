package common

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pivoten/caat/internal/table"
)

// dayFirstFormats are tried before the flexible parser so common
// day/month/year layouts never depend on heuristics.
var dayFirstFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
}

// CoerceAmountString applies the decimal-comma convention: every '.' is a
// thousands separator and ',' is the decimal point. "1.234,56" -> 1234.56.
// A US-style "1,234.56" therefore becomes 1.23456.
func CoerceAmountString(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// CoerceAmount converts a single cell. Numbers pass through unchanged,
// text goes through CoerceAmountString, missing stays missing.
func CoerceAmount(v table.Value) (float64, bool) {
	switch v.Kind {
	case table.KindNumber:
		return v.Num, true
	case table.KindString:
		return CoerceAmountString(v.Str)
	default:
		return 0, false
	}
}

// CoerceAmountColumn converts a whole column. A numeric column passes through;
// a text column has every cell rendered as text first, numbers included, and
// then goes through the decimal-comma rule.
func CoerceAmountColumn(col *table.Column) []table.Value {
	out := make([]table.Value, len(col.Values))
	numeric := col.IsNumeric()
	for i, v := range col.Values {
		if v.IsMissing() {
			out[i] = table.Missing()
			continue
		}
		if numeric {
			out[i] = table.Number(v.Num)
			continue
		}
		if f, ok := CoerceAmountString(v.String()); ok {
			out[i] = table.Number(f)
		} else {
			out[i] = table.Missing()
		}
	}
	return out
}

// ConvertibleRatio is the share of all cells, missing ones included, that coerce to an amount
func ConvertibleRatio(col *table.Column) float64 {
	if len(col.Values) == 0 {
		return 0
	}
	ok := 0
	for _, v := range CoerceAmountColumn(col) {
		if !v.IsMissing() {
			ok++
		}
	}
	return float64(ok) / float64(len(col.Values))
}

// IsAmountCandidate reports whether a column can serve as an amount column
func IsAmountCandidate(col *table.Column) bool {
	if col.IsNumeric() {
		return true
	}
	return ConvertibleRatio(col) >= MinConvertibleRatio
}

// ParseDate parses a date with day-before-month preference
func ParseDate(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}
	for _, format := range dayFirstFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(dateStr, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CoerceDate converts a single cell. Failures yield false, never an error.
func CoerceDate(v table.Value) (time.Time, bool) {
	if v.IsMissing() {
		return time.Time{}, false
	}
	return ParseDate(v.String())
}

// CoerceDateColumn converts a column. Missing dates are the zero time.
func CoerceDateColumn(col *table.Column) []time.Time {
	out := make([]time.Time, len(col.Values))
	for i, v := range col.Values {
		if t, ok := CoerceDate(v); ok {
			out[i] = t
		}
	}
	return out
}

// FormatDate renders a coerced date, or an empty string when missing
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(DateFormat)
	}
	return t.Format(DateTimeFormat)
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)

	result := strings.Builder{}
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
