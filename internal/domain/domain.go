// Package domain holds the value types shared by the trading pipeline.
// All monetary amounts are decimals; float64 never touches position or
// cost-basis math.
package domain

import (
	"errors"
	"fmt"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Action is a strategy decision. Unlike Side it includes HOLD, which carries
// no execution intent and is never risk-evaluated.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Side maps a trading action onto an order side. HOLD has no side.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	default:
		return "", false
	}
}

var (
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrNegativePrice  = errors.New("price must not be negative")
	ErrNonPositiveQty = errors.New("quantity must be positive")
	ErrInsufficient   = errors.New("insufficient balance")
	ErrOversell       = errors.New("sell quantity exceeds position")
	ErrOrderFinal     = errors.New("order already in final status")
)

// Symbol is a validated uppercase alphanumeric trading pair identifier,
// compared by value.
type Symbol string

// NewSymbol validates and returns a trading pair identifier.
func NewSymbol(s string) (Symbol, error) {
	if s == "" {
		return "", ErrInvalidSymbol
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }
