// Package money implements a two-decimal fixed-point amount used for every
// monetary field of a quote.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"quote_manager/internal/apperrors"

	"github.com/shopspring/decimal"
)

const Scale = 2

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)

	// MaxAmount bounds every amount the engine will persist.
	MaxAmount = decimal.New(1, 13)
)

// Money always holds exactly Scale fractional digits.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{d: decimal.Zero}

// Round rounds half-up to two places: floor(x*100 + 0.5) / 100.
func Round(d decimal.Decimal) Money {
	return Money{d: d.Mul(hundred).Add(half).Floor().Div(hundred)}
}

// New builds a non-negative amount.
func New(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Zero, apperrors.InvalidAmount("", "%s is negative", d.String())
	}
	return Round(d), nil
}

func FromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero, apperrors.InvalidAmount("", "%v is not a finite number", f)
	}
	return New(decimal.NewFromFloat(f))
}

func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, apperrors.InvalidAmount("", "%q is not a decimal number", s)
	}
	return New(d)
}

// MustParse panics on invalid input. Intended for seeds and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

func (m Money) Add(o Money) Money {
	return Round(m.d.Add(o.d))
}

func (m Money) Sub(o Money) Money {
	return Round(m.d.Sub(o.d))
}

func (m Money) MulQuantity(qty int) Money {
	return Round(m.d.Mul(decimal.NewFromInt(int64(qty))))
}

// PercentageOf returns round(m * pct / 100). pct is a plain percentage: 10 means 10%.
func (m Money) PercentageOf(pct decimal.Decimal) Money {
	return Round(m.d.Mul(pct).Div(hundred))
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Cents() int64 { return m.d.Mul(hundred).IntPart() }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Exceeds reports whether the amount is outside the representable business range.
func (m Money) Exceeds() bool {
	return m.d.Abs().GreaterThan(MaxAmount)
}

func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.50" and 12.5. Negative values are rejected.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return apperrors.InvalidAmount("", "%s is not a decimal number", string(data))
	}
	parsed, err := New(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as a decimal string so no float conversion happens on the way out.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(value interface{}) error {
	if value == nil {
		m.d = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.d = Round(d).d
	return nil
}

// GormDataType keeps AutoMigrate from guessing a column type.
func (Money) GormDataType() string {
	return "decimal(20,2)"
}
