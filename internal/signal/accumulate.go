package signal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// AccumulateConfig tunes the accumulation strategy.
type AccumulateConfig struct {
	ShortPeriod int
	LongPeriod  int
	// TakeProfitPct is the minimum gain over average cost before a death
	// cross is allowed to sell, e.g. 0.03 for 3%.
	TakeProfitPct decimal.Decimal
	// RebalanceMinNotional is the smallest absolute quote-value drift worth
	// trading when no crossover fires.
	RebalanceMinNotional decimal.Decimal
	// RebalanceThresholdPct is the drift, relative to portfolio value,
	// required before a rebalance trade fires, e.g. 0.05 for 5%.
	RebalanceThresholdPct decimal.Decimal
}

// Accumulate buys dips on golden crosses, takes profit on death crosses,
// and otherwise drifts the portfolio back toward a 50/50 base/quote split.
// Crossover trades only fire when they improve the cost basis: buys
// require price at or below average cost, sells require the configured
// profit margin over it.
type Accumulate struct {
	cfg AccumulateConfig
}

func NewAccumulate(cfg AccumulateConfig) *Accumulate {
	if cfg.ShortPeriod <= 0 {
		cfg.ShortPeriod = 5
	}
	if cfg.LongPeriod <= cfg.ShortPeriod {
		cfg.LongPeriod = cfg.ShortPeriod * 4
	}
	if cfg.TakeProfitPct.IsZero() {
		cfg.TakeProfitPct = decimal.NewFromFloat(0.03)
	}
	return &Accumulate{cfg: cfg}
}

func (a *Accumulate) Name() string { return "accumulate" }

func (a *Accumulate) Evaluate(snap Snapshot) domain.RebalancePlan {
	// One extra sample so yesterday's MAs exist for cross detection.
	if len(snap.Prices) < a.cfg.LongPeriod+1 {
		return hold("insufficient data")
	}

	prev := snap.Prices[:len(snap.Prices)-1]
	shortNow := SMA(snap.Prices, a.cfg.ShortPeriod)
	longNow := SMA(snap.Prices, a.cfg.LongPeriod)
	shortPrev := SMA(prev, a.cfg.ShortPeriod)
	longPrev := SMA(prev, a.cfg.LongPeriod)
	ind := domain.MAIndicators{Short: shortNow, Long: longNow}

	plan := domain.RebalancePlan{
		Action:    domain.ActionHold,
		Price:     snap.Price,
		CostAvg:   snap.AvgCost,
		Tiers:     snap.Tiers,
		Indicator: ind,
	}

	goldenCross := shortPrev.LessThanOrEqual(longPrev) && shortNow.GreaterThan(longNow)
	deathCross := shortPrev.GreaterThanOrEqual(longPrev) && shortNow.LessThan(longNow)

	switch {
	case goldenCross:
		if !snap.AvgCost.IsPositive() || snap.Price.LessThanOrEqual(snap.AvgCost) {
			plan.Action = domain.ActionBuy
			plan.Reason = "golden cross at or below average cost"
			return plan
		}
		plan.Reason = "golden cross above average cost, not accumulating"
		return plan
	case deathCross:
		if !snap.AvgCost.IsPositive() {
			plan.Reason = "death cross with no cost basis"
			return plan
		}
		floor := snap.AvgCost.Mul(decimal.NewFromInt(1).Add(a.cfg.TakeProfitPct))
		if snap.Price.GreaterThanOrEqual(floor) {
			plan.Action = domain.ActionSell
			plan.Reason = "death cross above take-profit floor"
			return plan
		}
		plan.Reason = "death cross below take-profit floor"
		return plan
	}

	return a.rebalance(snap, plan)
}

// rebalance moves half the drift between base value and quote value, so a
// single trade lands the book on an even split. Both the absolute and the
// relative drift gates must pass.
func (a *Accumulate) rebalance(snap Snapshot, plan domain.RebalancePlan) domain.RebalancePlan {
	if !snap.Price.IsPositive() {
		plan.Reason = "no price for rebalance"
		return plan
	}

	baseVal := snap.BaseQty.Mul(snap.Price)
	total := baseVal.Add(snap.QuoteFree)
	if !total.IsPositive() {
		plan.Reason = "empty portfolio"
		return plan
	}

	drift := baseVal.Sub(snap.QuoteFree).Abs().Div(decimal.NewFromInt(2))
	if a.cfg.RebalanceMinNotional.IsPositive() && drift.LessThan(a.cfg.RebalanceMinNotional) {
		plan.Reason = "drift below minimum notional"
		return plan
	}
	if a.cfg.RebalanceThresholdPct.IsPositive() && drift.LessThan(total.Mul(a.cfg.RebalanceThresholdPct)) {
		plan.Reason = "drift below rebalance threshold"
		return plan
	}

	qty := drift.Div(snap.Price)
	if baseVal.GreaterThan(snap.QuoteFree) {
		plan.Action = domain.ActionSell
	} else {
		plan.Action = domain.ActionBuy
	}
	plan.Quantity = qty
	plan.Reason = fmt.Sprintf("rebalance toward even split, drift %s", drift.StringFixed(2))
	return plan
}
