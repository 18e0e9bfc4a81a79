// Package money converts between user-supplied decimal text and integer
// minor currency units.
//
// Amounts enter the system as strings or JSON numbers and are converted
// exactly once, at the boundary, with fixed-point arithmetic. Past that
// point every calculation works on Amount (whole cents) and nothing is ever
// represented as a binary float.
//
// Rounding policy: amounts with more than two fractional digits are rounded
// half-up to the nearest cent ("12.345" -> 1235, "12.344" -> 1234).
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits of the currencies in scope.
const Places = 2

var (
	// ErrInvalidAmount is returned for text that is not a non-negative decimal number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountTooLarge is returned when an amount does not fit in an Amount.
	ErrAmountTooLarge = errors.New("amount too large")
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Exponent bounds for parsed text. Anything outside them is either far above
// the largest Amount or far below a cent, and is rejected before any
// arithmetic scales the coefficient.
const (
	maxExponent = 18
	minExponent = -20
)

// Amount is a non-negative count of minor currency units (cents).
type Amount int64

// Parse converts decimal text such as "12.34" to cents.
// Blank input parses as zero.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	if d.IsZero() {
		return 0, nil
	}
	if exp := d.Exponent(); exp > maxExponent {
		return 0, fmt.Errorf("%w: %q", ErrAmountTooLarge, s)
	} else if exp < minExponent {
		return 0, fmt.Errorf("%w: %q has too many decimal places", ErrInvalidAmount, s)
	}

	// Round is half away from zero, which is half-up for non-negative values.
	cents := d.Shift(Places).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %q", ErrAmountTooLarge, s)
	}
	return Amount(cents.IntPart()), nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b and false if the sum overflows.
func (a Amount) Add(b Amount) (Amount, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// Decimal returns the amount in major units as an exact decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Places)
}

// String formats the amount with exactly two fractional digits, e.g. "3.34".
func (a Amount) String() string {
	return a.Decimal().StringFixed(Places)
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts the same forms as RawAmount.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var raw RawAmount
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}
	parsed, err := Parse(string(raw))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// RawAmount holds an amount exactly as the client sent it. It decodes from
// either a JSON string or a JSON number; numbers keep their literal text and
// are never routed through float64.
type RawAmount string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = RawAmount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number: %w", err)
	}
	*r = RawAmount(n.String())
	return nil
}
