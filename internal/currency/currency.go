// Package currency provides decimal-accurate money arithmetic for totals and report text
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a monetary value with exact decimal arithmetic
type Currency struct {
	value decimal.Decimal
}

// NewFromFloat creates a Currency from a coerced float64 amount.
// The shortest decimal representation of the float is kept, so 0.1 stays 0.1.
func NewFromFloat(f float64) Currency {
	return Currency{value: decimal.NewFromFloat(f)}
}

// Zero returns a zero Currency value
func Zero() Currency {
	return Currency{value: decimal.Zero}
}

// Add adds two Currency values
func (c Currency) Add(other Currency) Currency {
	return Currency{value: c.value.Add(other.value)}
}

// Sub subtracts a Currency value from another
func (c Currency) Sub(other Currency) Currency {
	return Currency{value: c.value.Sub(other.value)}
}

// IsPositive returns true if the Currency is positive
func (c Currency) IsPositive() bool {
	return c.value.IsPositive()
}

// IsNegative returns true if the Currency is negative
func (c Currency) IsNegative() bool {
	return c.value.IsNegative()
}

// ToFloat64 returns the Currency value as a float64
func (c Currency) ToFloat64() float64 {
	f, _ := c.value.Float64()
	return f
}

// String implements the Stringer interface using report formatting
func (c Currency) String() string {
	return c.Format(2)
}

// Format renders the value with thousands separators, e.g. "-1,234,567.89"
func (c Currency) Format(places int32) string {
	str := c.value.StringFixed(places)

	negative := strings.HasPrefix(str, "-")
	str = strings.TrimPrefix(str, "-")

	intPart, fracPart, hasFrac := strings.Cut(str, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatFloat is shorthand for NewFromFloat(f).Format(places)
func FormatFloat(f float64, places int32) string {
	return NewFromFloat(f).Format(places)
}

// SumCurrencies sums a slice of Currency values
func SumCurrencies(values []Currency) Currency {
	sum := Zero()
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum
}

// SumFloats sums coerced amounts without float accumulation error
func SumFloats(values []float64) Currency {
	sum := Zero()
	for _, v := range values {
		sum = sum.Add(NewFromFloat(v))
	}
	return sum
}
