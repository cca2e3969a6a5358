package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIALLY_FILLED"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
)

// IsFinal reports whether the status can no longer change.
func (s OrderStatus) IsFinal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Order is the local view of one exchange order. Market orders carry a zero
// price.
type Order struct {
	OrderID        string
	ClientOrderID  string
	Symbol         Symbol
	Side           Side
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Status         OrderStatus
	FilledQuantity decimal.Decimal
}

// Fill records executed quantity and advances the status. Filling past the
// order quantity or touching a final order is rejected.
func (o *Order) Fill(qty decimal.Decimal) error {
	if o.Status.IsFinal() {
		return fmt.Errorf("order %s: %w", o.OrderID, ErrOrderFinal)
	}
	next := o.FilledQuantity.Add(qty)
	if next.GreaterThan(o.Quantity) {
		return fmt.Errorf("order %s: fill %s exceeds quantity %s", o.OrderID, next, o.Quantity)
	}
	o.FilledQuantity = next
	if next.Equal(o.Quantity) {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartial
	}
	return nil
}
