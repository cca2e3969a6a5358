package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is an immutable non-negative amount tagged with its quote unit.
type Price struct {
	value decimal.Decimal
	unit  string
}

// NewPrice builds a price; negative values are rejected.
func NewPrice(value decimal.Decimal, unit string) (Price, error) {
	if value.IsNegative() {
		return Price{}, fmt.Errorf("%w: %s", ErrNegativePrice, value)
	}
	return Price{value: value, unit: unit}, nil
}

// ParsePrice builds a price from its exchange string form.
func ParsePrice(s, unit string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return NewPrice(d, unit)
}

func (p Price) Decimal() decimal.Decimal { return p.value }
func (p Price) Unit() string             { return p.unit }
func (p Price) IsZero() bool             { return p.value.IsZero() }
func (p Price) String() string           { return p.value.String() + " " + p.unit }

// Quantity is an immutable positive amount of the base asset.
type Quantity struct {
	value decimal.Decimal
}

// NewQuantity builds a quantity; zero and negative values are rejected.
func NewQuantity(value decimal.Decimal) (Quantity, error) {
	if !value.IsPositive() {
		return Quantity{}, fmt.Errorf("%w: %s", ErrNonPositiveQty, value)
	}
	return Quantity{value: value}, nil
}

// ParseQuantity builds a quantity from its exchange string form.
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return NewQuantity(d)
}

func (q Quantity) Decimal() decimal.Decimal { return q.value }
func (q Quantity) String() string           { return q.value.String() }
