package model

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity is a decimal quote value that may be missing.
//
// The zero value is missing. A missing Quantity encodes as JSON null and is
// never equal to a present zero.
type Quantity struct {
	v decimal.NullDecimal
}

// Missing returns a Quantity with no value.
func Missing() Quantity {
	return Quantity{}
}

// QuantityOf returns a present Quantity holding d.
func QuantityOf(d decimal.Decimal) Quantity {
	return Quantity{v: decimal.NullDecimal{Decimal: d, Valid: true}}
}

// ParseQuantity parses a decimal literal such as "1234.5" or "-0.25".
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Missing(), fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return QuantityOf(d), nil
}

// MustQuantity is like ParseQuantity but panics on error. For fixtures.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// IsMissing reports whether the value was not reported.
func (q Quantity) IsMissing() bool {
	return !q.v.Valid
}

// Decimal returns the value and whether it is present.
func (q Quantity) Decimal() (decimal.Decimal, bool) {
	return q.v.Decimal, q.v.Valid
}

// Compare orders two quantities. Missing sorts below every present value and
// two missing values are equal.
func (q Quantity) Compare(o Quantity) int {
	switch {
	case !q.v.Valid && !o.v.Valid:
		return 0
	case !q.v.Valid:
		return -1
	case !o.v.Valid:
		return 1
	}
	return q.v.Decimal.Cmp(o.v.Decimal)
}

// Equal reports whether both are missing or both hold the same value.
func (q Quantity) Equal(o Quantity) bool {
	if q.v.Valid != o.v.Valid {
		return false
	}
	return !q.v.Valid || q.v.Decimal.Equal(o.v.Decimal)
}

func (q Quantity) String() string {
	if !q.v.Valid {
		return "<missing>"
	}
	return q.v.Decimal.String()
}

// MarshalJSON encodes a present value as a bare JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.v.Valid {
		return []byte("null"), nil
	}
	return []byte(q.v.Decimal.String()), nil
}

// UnmarshalJSON accepts null, a JSON number, or a quoted decimal.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = Missing()
		return nil
	}
	parsed, err := ParseQuantity(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
