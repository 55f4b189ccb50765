// Package core contains the domain model of the bookkeeping engine:
// exact monetary amounts, accounts, transactions with entry lines,
// cashflow classifications and fixed expense configurations.
//
// This file handles exact monetary amounts. Amounts are decimal.Decimal
// values everywhere inside the engine; the storage boundary represents
// them as (numerator, denominator) integer pairs whose denominator is a
// power of ten between 10^0 and 10^6. Float64 never carries money.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxFractionScale bounds the denominator written to storage at 10^6.
// Amounts with more fractional digits are rejected at the boundary
// instead of being rounded, so stored values stay exact.
const MaxFractionScale = 6

// MinFractionScale keeps at least two decimal places in stored
// fractions so that plain cent amounts share a common denominator.
const MinFractionScale = 2

var pow10 = [MaxFractionScale + 1]int64{1, 10, 100, 1000, 10000, 100000, 1000000}

// AmountFromFraction rebuilds an exact amount from a stored
// (numerator, denominator) pair. The denominator must be a power of
// ten not larger than 10^6; a zero denominator is read as 1, matching
// rows written before the denominator column had a default.
func AmountFromFraction(num, denom int64) (decimal.Decimal, error) {
	if denom == 0 {
		denom = 1
	}
	if denom < 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	for exp := 0; exp <= MaxFractionScale; exp++ {
		if denom == pow10[exp] {
			return decimal.New(num, int32(-exp)), nil
		}
	}
	return decimal.Zero, ErrInvalidAmount
}

// FractionOf converts an amount to its storage representation. The
// scale is clamped to [2, 6]; amounts that need more than six decimal
// places cannot be represented exactly and are rejected.
func FractionOf(d decimal.Decimal) (num, denom int64, err error) {
	scale := int(-d.Exponent())
	if scale < MinFractionScale {
		scale = MinFractionScale
	}
	if scale > MaxFractionScale {
		// The decimal may still be representable if the trailing
		// digits are zero (e.g. 1.2000000 parsed with exponent -7).
		trimmed := decimal.NewFromBigInt(d.Coefficient(), d.Exponent())
		if int(-trimmed.Exponent()) > MaxFractionScale && !trimmed.Equal(trimmed.Truncate(MaxFractionScale)) {
			return 0, 0, ErrInvalidAmount
		}
		scale = MaxFractionScale
	}
	denom = pow10[scale]
	shifted := d.Shift(int32(scale))
	if !shifted.IsInteger() {
		return 0, 0, ErrInvalidAmount
	}
	return shifted.IntPart(), denom, nil
}

// ParseAmount converts a user supplied decimal string into an exact
// amount. Both dot (12.34) and comma (12,34) separators are accepted.
// At most six fractional digits are allowed; nothing is rounded.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")

	body := s
	if strings.HasPrefix(body, "+") || strings.HasPrefix(body, "-") {
		body = body[1:]
	}
	parts := strings.Split(body, ".")
	if len(parts) > 2 || parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
			digits++
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(parts) == 2 && len(parts[1]) > MaxFractionScale {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimal places. Only for
// presentation; calculations keep the full exact value.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
