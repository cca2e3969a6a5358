package events

import (
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// Event enumerates high-level topics inside the trading core.
type Event string

const (
	EventPriceTick      Event = "price_tick"
	EventCandleClosed   Event = "candle_closed"
	EventSignal         Event = "signal"
	EventRiskDenied     Event = "risk_denied"
	EventOrderSubmitted Event = "order.submitted"
	EventOrderFilled    Event = "order.filled"
	EventPositionChange Event = "position_change"
	EventStreamState    Event = "stream_state"
)

// PriceTick is published for every base candle ingested from the stream.
type PriceTick struct {
	Symbol domain.Symbol
	Price  decimal.Decimal
	At     time.Time
}

// SignalFired carries the plan a strategy produced for one cycle.
type SignalFired struct {
	Strategy string
	Plan     domain.RebalancePlan
}

// OrderEvent carries submission and fill notifications.
type OrderEvent struct {
	Order  domain.Order
	Reason string
}
