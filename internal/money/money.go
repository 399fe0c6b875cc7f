package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is a signed decimal amount. Arithmetic keeps full decimal
// precision; rounding happens only when formatting for display.
type Money struct {
	dec decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// FromInt creates a Money from a whole number of currency units.
func FromInt(v int64) Money {
	return Money{dec: decimal.NewFromInt(v)}
}

// FromFloat creates a Money from a float amount, e.g. a value
// unmarshaled from a model response.
func FromFloat(v float64) Money {
	return Money{dec: decimal.NewFromFloat(v)}
}

// FromDecimal wraps an existing decimal value.
func FromDecimal(d decimal.Decimal) Money {
	return Money{dec: d}
}

// Parse parses a decimal string such as "250", "-50" or "12.95".
// Grouping separators must already be stripped.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return Money{dec: d}, nil
}

func (m Money) Add(other Money) Money {
	return Money{dec: m.dec.Add(other.dec)}
}

func (m Money) Sub(other Money) Money {
	return Money{dec: m.dec.Sub(other.dec)}
}

func (m Money) Neg() Money {
	return Money{dec: m.dec.Neg()}
}

// Half returns exactly half the amount. Halving is always exact in
// base ten, so Half(p).Add(Half(p)) equals p.
func (m Money) Half() Money {
	return Money{dec: m.dec.Div(decimal.NewFromInt(2))}
}

// Percent returns rate percent of the amount, e.g. m.Percent(10) is the
// 10% tax on m.
func (m Money) Percent(rate float64) Money {
	r := decimal.NewFromFloat(rate)
	return Money{dec: m.dec.Mul(r).Div(decimal.NewFromInt(100))}
}

func (m Money) IsZero() bool     { return m.dec.IsZero() }
func (m Money) IsNegative() bool { return m.dec.IsNegative() }

// Equal reports whether two amounts are numerically equal.
func (m Money) Equal(other Money) bool { return m.dec.Equal(other.dec) }

// Cmp compares m and other, returning -1, 0 or 1.
func (m Money) Cmp(other Money) int { return m.dec.Cmp(other.dec) }

// Abs returns the absolute value.
func (m Money) Abs() Money { return Money{dec: m.dec.Abs()} }

// Float64 returns the amount as a float, for callers that only need an
// approximate value.
func (m Money) Float64() float64 {
	f, _ := m.dec.Float64()
	return f
}

// String returns the plain decimal representation without any rounding.
func (m Money) String() string { return m.dec.String() }

// MarshalJSON encodes the amount as a plain JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.dec.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("unmarshaling amount %q: %w", s, err)
	}
	m.dec = d
	return nil
}

// Currency is an ISO 4217 code such as "JPY" or "USD".
type Currency string

const (
	JPY Currency = "JPY"
	USD Currency = "USD"
)

// fraction returns the number of decimal places for the currency per
// ISO 4217, defaulting to 2 for unknown codes.
func (c Currency) fraction() int {
	cur := gomoney.GetCurrency(strings.ToUpper(string(c)))
	if cur == nil {
		return 2
	}
	return cur.Fraction
}

// ZeroDecimal reports whether the currency is displayed in whole units,
// like yen.
func (c Currency) ZeroDecimal() bool {
	return c.fraction() == 0
}

// Symbol returns the display symbol for the currency, falling back to
// the code itself.
func (c Currency) Symbol() string {
	cur := gomoney.GetCurrency(strings.ToUpper(string(c)))
	if cur == nil {
		return string(c)
	}
	return cur.Grapheme
}

// Format renders the amount for display in the given currency:
// zero-decimal currencies get a grouped whole-unit figure ("1,234"),
// everything else a fixed two-decimal figure ("12.95"). Rounding is
// half-to-even and happens only here.
func (m Money) Format(c Currency) string {
	if c.ZeroDecimal() {
		return groupDigits(m.dec.RoundBank(0).String())
	}
	return m.dec.RoundBank(2).StringFixed(2)
}

// groupDigits inserts thousands separators into a plain integer string.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
