// Package core holds the ledger domain types, money handling and error kinds.
//
// Amounts are kept as integer cents so that sums never drift. Decimal text from
// the user is parsed with shopspring/decimal and rounded half-up to two places.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// MaxAmountCents caps a single amount at one billion units, which keeps sums
// of millions of rows inside int64.
const MaxAmountCents = 100_000_000_000

var maxAmount = decimal.New(MaxAmountCents, -2)

// ParseMoney converts a decimal string to Money.
//
// Both dot (12.34) and comma (12,34) separators are accepted. The value is
// rounded half-up on the third decimal place and must end up strictly positive.
//
//	ParseMoney("12.345") -> 12.35
//	ParseMoney("12,34")  -> 12.34
//	ParseMoney("0.004")  -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.ContainsAny(s, "+-eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 is for chart rendering only; never sum the result.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String formats m with two decimals, e.g. "1200.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
