package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketCandle is an immutable OHLCV record. Candles come off the aggregator
// fully formed and are never mutated afterwards.
type MarketCandle struct {
	Symbol   Symbol
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
	ClosedAt time.Time
}

// MAIndicators carries the moving averages a signal decision was based on.
type MAIndicators struct {
	Short decimal.Decimal `json:"short_ma"`
	Long  decimal.Decimal `json:"long_ma"`
}

// RebalancePlan is the value snapshot a strategy emits each cycle. It is
// regenerated every run and never persisted.
type RebalancePlan struct {
	Action    Action          `json:"action"`
	Reason    string          `json:"reason"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CostAvg   decimal.Decimal `json:"cost_avg"`
	Tiers     PositionTiers   `json:"position_tiers"`
	Indicator MAIndicators    `json:"ma_indicators"`
}
