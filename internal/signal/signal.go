// Package signal turns market and portfolio snapshots into trade
// recommendations. Strategies are pure decision functions: they never
// touch the exchange, the ledger, or the store.
package signal

import (
	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// Snapshot is everything a strategy is allowed to look at when it
// decides. All values are point-in-time copies.
type Snapshot struct {
	Symbol    domain.Symbol
	Prices    []decimal.Decimal // close prices, oldest first
	Price     decimal.Decimal   // latest trade price
	AvgCost   decimal.Decimal   // average acquisition cost, zero when flat
	BaseQty   decimal.Decimal   // total base asset held
	QuoteFree decimal.Decimal   // free quote balance
	Tiers     domain.PositionTiers
}

// Strategy evaluates one snapshot into a plan. A HOLD plan with a
// Reason is a valid outcome, not an error.
type Strategy interface {
	Name() string
	Evaluate(snap Snapshot) domain.RebalancePlan
}

func hold(reason string) domain.RebalancePlan {
	return domain.RebalancePlan{Action: domain.ActionHold, Reason: reason}
}
