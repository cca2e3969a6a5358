package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the held quantity of the base asset with its cost basis.
// CoreQuantity never exceeds TotalQuantity. Positions are created on the
// first buy and never deleted; a full sell brings the quantity to zero and
// clears the average cost.
type Position struct {
	Symbol        Symbol
	TotalQuantity decimal.Decimal
	CoreQuantity  decimal.Decimal
	AverageCost   decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	UpdatedAt     time.Time
}

// Tradeable returns the quantity eligible for automated selling:
// max(0, total - total*corePct). The protected core fraction is never
// touched by SELL signals.
func (p Position) Tradeable(corePct decimal.Decimal) decimal.Decimal {
	free := p.TotalQuantity.Sub(p.TotalQuantity.Mul(corePct))
	if free.IsNegative() {
		return decimal.Zero
	}
	return free
}

// Notional is the current market value of the position.
func (p Position) Notional(price decimal.Decimal) decimal.Decimal {
	return p.TotalQuantity.Mul(price)
}

// PositionTiers splits holdings into the core/swing/active layers used by
// the accumulation strategy.
type PositionTiers struct {
	Core        decimal.Decimal `json:"core"`
	Swing       decimal.Decimal `json:"swing"`
	Active      decimal.Decimal `json:"active"`
	Total       decimal.Decimal `json:"total"`
	CorePercent decimal.Decimal `json:"core_percent"`
}

// SplitTiers derives the layer breakdown from a total quantity: the core
// fraction is protected, the remainder splits evenly into swing and active.
func SplitTiers(total, corePct decimal.Decimal) PositionTiers {
	core := total.Mul(corePct)
	rest := total.Sub(core)
	half := rest.Div(decimal.NewFromInt(2))
	return PositionTiers{
		Core:        core,
		Swing:       half,
		Active:      rest.Sub(half),
		Total:       total,
		CorePercent: corePct,
	}
}
