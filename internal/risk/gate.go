// Package risk validates candidate trades against frequency, interval,
// balance and position-protection rules.
package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// Config holds the risk limits. Zero-valued optional checks are disabled.
type Config struct {
	MaxDailyTrades   int
	MinTradeInterval time.Duration
	CorePercent      decimal.Decimal
	MinSellProfitPct decimal.Decimal // e.g. 0.01 requires +1% over avg cost
	QuoteReservePct  decimal.Decimal // fraction of portfolio value kept in quote
}

// Decision is the gate outcome. A deny is not an error; the reason is a
// human-readable explanation of the deterministic HOLD.
type Decision struct {
	Allowed bool
	Reason  string
}

// Input is the snapshot a single evaluation runs against.
type Input struct {
	Action        domain.Action
	Price         decimal.Decimal
	AverageCost   decimal.Decimal
	DailyTrades   int
	LastTradeTime time.Time // zero means no trade has ever happened
	Now           time.Time
	TradeableQty  decimal.Decimal
	QuoteFree     decimal.Decimal
	PortfolioVal  decimal.Decimal
}

// Gate runs the checks in fixed order, short-circuiting on the first
// failure.
type Gate struct {
	cfg Config
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate applies the ordered rule set. HOLD carries no execution intent:
// only the frequency and interval rules ever see it, and callers normally
// skip evaluation for HOLD entirely.
func (g *Gate) Evaluate(in Input) Decision {
	// 1. Daily trade count.
	if in.DailyTrades >= g.cfg.MaxDailyTrades {
		return deny("daily trade limit reached: %d/%d", in.DailyTrades, g.cfg.MaxDailyTrades)
	}

	// 2. Minimum interval between trades; the first ever trade passes.
	if !in.LastTradeTime.IsZero() {
		if elapsed := in.Now.Sub(in.LastTradeTime); elapsed < g.cfg.MinTradeInterval {
			return deny("trade interval not elapsed: %s since last trade, need %s",
				elapsed.Truncate(time.Second), g.cfg.MinTradeInterval)
		}
	}

	switch in.Action {
	case domain.ActionSell:
		// 3. Position protection: only the non-core holdings may sell.
		if !in.TradeableQty.IsPositive() {
			return deny("no tradeable quantity: core position protected at %s%%",
				g.cfg.CorePercent.Mul(decimal.NewFromInt(100)))
		}
		if g.cfg.MinSellProfitPct.IsPositive() {
			if !in.AverageCost.IsPositive() {
				return deny("no cost basis to measure sell profit against")
			}
			profit := in.Price.Div(in.AverageCost).Sub(decimal.NewFromInt(1))
			if profit.LessThan(g.cfg.MinSellProfitPct) {
				return deny("sell profit %s below minimum %s", profit, g.cfg.MinSellProfitPct)
			}
		}
	case domain.ActionBuy:
		// 4. Quote-asset availability.
		if !in.QuoteFree.IsPositive() {
			return deny("no quote balance available")
		}
		if g.cfg.QuoteReservePct.IsPositive() {
			reserve := in.PortfolioVal.Mul(g.cfg.QuoteReservePct)
			if in.QuoteFree.LessThanOrEqual(reserve) {
				return deny("quote balance %s at or below reserve %s", in.QuoteFree, reserve)
			}
		}
	}

	return Decision{Allowed: true}
}

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}
