// Package coordinator runs the trade cycle: snapshot, signal, risk gate,
// sizing, submission, bookkeeping. Cycles are single-flight per symbol and
// every outcome crosses the boundary as a structured result, never as an
// error.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
	"accum-core/internal/events"
	"accum-core/internal/ledger"
	"accum-core/internal/monitor"
	"accum-core/internal/risk"
	"accum-core/internal/signal"
	"accum-core/pkg/exchange"
	"accum-core/pkg/store"
)

// CycleStatus tags the outcome of one execution cycle.
type CycleStatus string

const (
	// StatusExecuted means an order was submitted and accepted.
	StatusExecuted CycleStatus = "EXECUTED"
	// StatusHeld means the cycle completed with nothing to do: a HOLD
	// signal or a risk denial. Not an error.
	StatusHeld CycleStatus = "HELD"
	// StatusRejected means the trigger was refused before doing any work,
	// e.g. a cycle was already in flight.
	StatusRejected CycleStatus = "REJECTED"
	// StatusFailed means the cycle genuinely failed.
	StatusFailed CycleStatus = "FAILED"
	// StatusUnsupported means the requested operation is disabled in this
	// configuration, e.g. order submission without an order API.
	StatusUnsupported CycleStatus = "UNSUPPORTED"
)

// CycleResult is the structured outcome of RunCycle.
type CycleResult struct {
	Status   CycleStatus          `json:"status"`
	Action   domain.Action        `json:"action"`
	Reason   string               `json:"reason"`
	OrderID  string               `json:"order_id,omitempty"`
	Quantity decimal.Decimal      `json:"quantity"`
	Price    decimal.Decimal      `json:"price"`
	Plan     domain.RebalancePlan `json:"plan"`
}

// Success reports whether the cycle ran to completion, trading or not.
func (r CycleResult) Success() bool {
	return r.Status == StatusExecuted || r.Status == StatusHeld
}

// CycleRecord is one archived cycle outcome.
type CycleRecord struct {
	At     time.Time   `json:"at"`
	Result CycleResult `json:"result"`
}

// maxHistory bounds the in-memory cycle archive.
const maxHistory = 64

// Config sizes trades and names the pair.
type Config struct {
	Symbol     domain.Symbol
	BaseAsset  string
	QuoteAsset string
	// BuyFraction of the free quote balance spent per BUY.
	BuyFraction decimal.Decimal
	// SellFraction of the tradeable (non-core) quantity sold per SELL.
	SellFraction decimal.Decimal
	// QuantityScale is the exchange lot-size precision; sized quantities
	// are rounded down to it.
	QuantityScale int32
}

// Coordinator wires the decision pipeline to one exchange client, one
// ledger and one store.
type Coordinator struct {
	cfg      Config
	market   exchange.MarketAPI
	account  exchange.AccountAPI
	orders   exchange.OrderAPI
	ledger   *ledger.Ledger
	gate     *risk.Gate
	strategy signal.Strategy
	store    *store.Store
	bus      *events.Bus
	metrics  *monitor.SystemMetrics
	now      func() time.Time

	mu      sync.Mutex
	running map[domain.Symbol]bool

	histMu  sync.Mutex
	history []CycleRecord
}

// New wires a coordinator. A nil orders API disables submission: cycles
// that decide to trade finish with StatusUnsupported.
func New(cfg Config, market exchange.MarketAPI, account exchange.AccountAPI, orders exchange.OrderAPI,
	led *ledger.Ledger, gate *risk.Gate, strat signal.Strategy, st *store.Store, bus *events.Bus) *Coordinator {
	if cfg.BuyFraction.IsZero() {
		cfg.BuyFraction = decimal.NewFromFloat(0.25)
	}
	if cfg.SellFraction.IsZero() {
		cfg.SellFraction = decimal.NewFromFloat(0.25)
	}
	if cfg.QuantityScale == 0 {
		cfg.QuantityScale = 6
	}
	return &Coordinator{
		cfg:      cfg,
		market:   market,
		account:  account,
		orders:   orders,
		ledger:   led,
		gate:     gate,
		strategy: strat,
		store:    st,
		bus:      bus,
		now:      time.Now,
		running:  make(map[domain.Symbol]bool),
	}
}

// SetMetrics attaches a metrics sink; nil disables recording.
func (c *Coordinator) SetMetrics(m *monitor.SystemMetrics) { c.metrics = m }

// RunCycle executes one full decision cycle for the symbol. A concurrent
// trigger for the same symbol is rejected immediately, not queued. Completed
// cycles (not rejected triggers) are archived for Recent.
func (c *Coordinator) RunCycle(ctx context.Context, symbol domain.Symbol) CycleResult {
	result := c.runCycle(ctx, symbol)
	if result.Status != StatusRejected {
		c.record(result)
	}
	return result
}

// Recent returns up to limit archived cycle outcomes, newest first.
func (c *Coordinator) Recent(limit int) []CycleRecord {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	if limit <= 0 || limit > len(c.history) {
		limit = len(c.history)
	}
	out := make([]CycleRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = c.history[len(c.history)-1-i]
	}
	return out
}

func (c *Coordinator) record(result CycleResult) {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	c.history = append(c.history, CycleRecord{At: c.now(), Result: result})
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
}

func (c *Coordinator) runCycle(ctx context.Context, symbol domain.Symbol) CycleResult {
	if !c.acquire(symbol) {
		return CycleResult{Status: StatusRejected, Action: domain.ActionHold, Reason: "cycle already running"}
	}
	defer c.release(symbol)
	if c.metrics != nil {
		defer monitor.NewTimer(c.metrics.CycleLatency).Stop()
	}

	price, err := c.refreshSnapshot(ctx, symbol)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		return CycleResult{Status: StatusFailed, Action: domain.ActionHold, Reason: fmt.Sprintf("refresh snapshot: %v", err)}
	}

	pos := c.ledger.Position()
	quote := c.ledger.Balance(c.cfg.QuoteAsset)
	snap := signal.Snapshot{
		Symbol:    symbol,
		Prices:    c.ledger.PriceHistory(),
		Price:     price,
		AvgCost:   pos.AverageCost,
		BaseQty:   pos.TotalQuantity,
		QuoteFree: quote.Free,
		Tiers:     c.ledger.Tiers(),
	}
	var signalTimer *monitor.Timer
	if c.metrics != nil {
		signalTimer = monitor.NewTimer(c.metrics.SignalLatency)
	}
	plan := c.strategy.Evaluate(snap)
	if signalTimer != nil {
		signalTimer.Stop()
	}
	c.publish(events.EventSignal, events.SignalFired{Strategy: c.strategy.Name(), Plan: plan})

	result := CycleResult{Action: plan.Action, Reason: plan.Reason, Price: price, Plan: plan}
	if plan.Action == domain.ActionHold {
		result.Status = StatusHeld
		return result
	}

	decision, err := c.checkRisk(ctx, symbol, plan, price, pos, quote)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("risk state: %v", err)
		return result
	}
	if !decision.Allowed {
		c.publish(events.EventRiskDenied, decision.Reason)
		result.Status = StatusHeld
		result.Action = domain.ActionHold
		result.Reason = decision.Reason
		return result
	}

	qty := c.size(plan, price, quote.Free)
	if !qty.IsPositive() {
		result.Status = StatusFailed
		result.Reason = "insufficient quantity"
		return result
	}
	result.Quantity = qty

	if c.orders == nil {
		result.Status = StatusUnsupported
		result.Reason = "order submission disabled"
		return result
	}

	side, _ := plan.Action.Side()
	res, err := c.orders.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:        symbol.String(),
		Side:          string(side),
		Type:          exchange.OrderTypeMarket,
		Quantity:      qty.String(),
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("place order: %v", err)
		return result
	}

	// Book the fill at the exchange ack price when one comes back; the
	// pre-submission snapshot is only a fallback. A market order can fill
	// away from the snapshot and the cost basis must reflect that.
	fillPrice := price
	if p, err := decimal.NewFromString(res.Price); err == nil && p.IsPositive() {
		fillPrice = p
	}

	result.Status = StatusExecuted
	result.OrderID = res.OrderID
	result.Reason = plan.Reason
	result.Price = fillPrice
	c.publish(events.EventOrderSubmitted, events.OrderEvent{Order: domain.Order{
		OrderID:  res.OrderID,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    fillPrice,
		Status:   domain.OrderStatus(res.Status),
	}})

	// A bookkeeping failure after a fill must not hide the order id, so it
	// is reported on the result instead of failing the cycle.
	if err := c.settle(ctx, symbol, plan.Action, qty, fillPrice); err != nil {
		log.Printf("coordinator: order %s filled but bookkeeping failed: %v", res.OrderID, err)
		result.Reason = fmt.Sprintf("filled, bookkeeping failed: %v", err)
	}
	return result
}

func (c *Coordinator) acquire(symbol domain.Symbol) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[symbol] {
		return false
	}
	c.running[symbol] = true
	return true
}

func (c *Coordinator) release(symbol domain.Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, symbol)
}

// refreshSnapshot pulls a fresh price and balance view from the exchange
// before any decision is made.
func (c *Coordinator) refreshSnapshot(ctx context.Context, symbol domain.Symbol) (decimal.Decimal, error) {
	raw, err := c.market.GetTickerPrice(ctx, symbol.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker: %w", err)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker price %q: %w", raw, err)
	}

	info, err := c.account.GetAccountInfo(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account info: %w", err)
	}
	free := make(map[string]decimal.Decimal, 2)
	locked := make(map[string]decimal.Decimal, 2)
	for _, asset := range []string{c.cfg.BaseAsset, c.cfg.QuoteAsset} {
		b := info.Balance(asset)
		f, err := decimal.NewFromString(b.Free)
		if err != nil {
			return decimal.Zero, fmt.Errorf("balance %s free %q: %w", asset, b.Free, err)
		}
		l, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return decimal.Zero, fmt.Errorf("balance %s locked %q: %w", asset, b.Locked, err)
		}
		free[asset] = f
		locked[asset] = l
	}
	c.ledger.SyncBalances(free, locked)
	return price, nil
}

func (c *Coordinator) checkRisk(ctx context.Context, symbol domain.Symbol, plan domain.RebalancePlan,
	price decimal.Decimal, pos domain.Position, quote domain.Balance) (risk.Decision, error) {
	now := c.now()
	trades, err := c.store.DailyTradeCount(ctx, symbol, now.Format("2006-01-02"))
	if err != nil {
		return risk.Decision{}, fmt.Errorf("daily trade count: %w", err)
	}
	lastTrade, err := c.store.LastTradeTime(ctx, symbol)
	if err != nil {
		return risk.Decision{}, fmt.Errorf("last trade time: %w", err)
	}

	portfolio := pos.TotalQuantity.Mul(price).Add(quote.Total())
	return c.gate.Evaluate(risk.Input{
		Action:        plan.Action,
		Price:         price,
		AverageCost:   pos.AverageCost,
		DailyTrades:   trades,
		LastTradeTime: lastTrade,
		Now:           now,
		TradeableQty:  c.ledger.TradeableQuantity(c.ledger.CorePercent()),
		QuoteFree:     quote.Free,
		PortfolioVal:  portfolio,
	}), nil
}

// size converts the plan into a base-asset quantity. BUY spends a fraction
// of the free quote balance; SELL releases a fraction of the tradeable
// quantity. A plan that carries its own quantity (a rebalance) is honored
// up to those same limits, never beyond them.
func (c *Coordinator) size(plan domain.RebalancePlan, price, quoteFree decimal.Decimal) decimal.Decimal {
	var limit decimal.Decimal
	switch plan.Action {
	case domain.ActionBuy:
		if !price.IsPositive() {
			return decimal.Zero
		}
		limit = quoteFree.Mul(c.cfg.BuyFraction).Div(price)
	case domain.ActionSell:
		limit = c.ledger.TradeableQuantity(c.ledger.CorePercent()).Mul(c.cfg.SellFraction)
	default:
		return decimal.Zero
	}

	qty := limit
	if plan.Quantity.IsPositive() && plan.Quantity.LessThan(limit) {
		qty = plan.Quantity
	}
	return qty.RoundDown(c.cfg.QuantityScale)
}

// settle applies the fill to the ledger and persists the post-trade state.
func (c *Coordinator) settle(ctx context.Context, symbol domain.Symbol, action domain.Action,
	qty, price decimal.Decimal) error {
	q, err := domain.NewQuantity(qty)
	if err != nil {
		return err
	}
	p, err := domain.NewPrice(price, c.cfg.QuoteAsset)
	if err != nil {
		return err
	}

	notional := qty.Mul(price)
	switch action {
	case domain.ActionBuy:
		if err := c.ledger.ApplyBuy(q, p); err != nil {
			return err
		}
		if err := c.ledger.Withdraw(c.cfg.QuoteAsset, notional); err != nil {
			return err
		}
		if err := c.ledger.Deposit(c.cfg.BaseAsset, qty); err != nil {
			return err
		}
	case domain.ActionSell:
		if err := c.ledger.ApplySell(q, p); err != nil {
			return err
		}
		if err := c.ledger.Withdraw(c.cfg.BaseAsset, qty); err != nil {
			return err
		}
		if err := c.ledger.Deposit(c.cfg.QuoteAsset, notional); err != nil {
			return err
		}
	}
	c.publish(events.EventPositionChange, c.ledger.Position())

	now := c.now()
	if _, err := c.store.IncrDailyTradeCount(ctx, symbol, now.Format("2006-01-02")); err != nil {
		return fmt.Errorf("trade counter: %w", err)
	}
	if err := c.store.SetLastTradeTime(ctx, symbol, now); err != nil {
		return fmt.Errorf("last trade time: %w", err)
	}

	pos := c.ledger.Position()
	base := c.ledger.Balance(c.cfg.BaseAsset)
	if err := c.store.SavePosition(ctx, symbol, store.PositionState{
		Total:   pos.TotalQuantity,
		AvgCost: pos.AverageCost,
		Locked:  base.Locked,
	}); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if err := c.store.SaveLayers(ctx, symbol, c.ledger.Tiers()); err != nil {
		return fmt.Errorf("layers: %w", err)
	}
	if err := c.store.SaveCost(ctx, symbol, store.CostState{
		AvgCost:       pos.AverageCost,
		TotalInvested: c.ledger.TotalInvested(),
		RealizedPnL:   pos.RealizedPnL,
		UnrealizedPnL: pos.UnrealizedPnL,
	}); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	return nil
}

func (c *Coordinator) publish(e events.Event, payload any) {
	if c.bus != nil {
		c.bus.Publish(e, payload)
	}
}
