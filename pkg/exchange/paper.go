package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PaperConfig tunes the simulated fill model.
type PaperConfig struct {
	FeeRate     decimal.Decimal // e.g. 0.0004 = 4 bps per fill
	SlippageBps decimal.Decimal // upper bound of random adverse slippage
	LatencyMin  time.Duration   // simulated gateway latency lower bound
	LatencyMax  time.Duration   // simulated gateway latency upper bound
	Quote       func(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PaperBroker implements OrderAPI against an in-memory book. Market orders
// fill immediately at the quoted price plus random adverse slippage; no
// request ever reaches the exchange.
type PaperBroker struct {
	cfg  PaperConfig
	rng  *rand.Rand
	mu   sync.Mutex
	seq  int64
	book map[string]OrderDetail // orderID -> fill record
}

func NewPaperBroker(cfg PaperConfig) *PaperBroker {
	return &PaperBroker{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		book: make(map[string]OrderDetail),
	}
}

func (p *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}

	price, err := p.fillPrice(ctx, req)
	if err != nil {
		return nil, err
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("paper: bad quantity %q: %w", req.Quantity, err)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("paper: non-positive quantity %s", qty)
	}

	p.mu.Lock()
	p.seq++
	orderID := fmt.Sprintf("paper-%d", p.seq)
	p.book[orderID] = OrderDetail{
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          string(req.Type),
		Price:         price.String(),
		OrigQty:       qty.String(),
		ExecutedQty:   qty.String(),
		Status:        "FILLED",
		Time:          time.Now().UnixMilli(),
	}
	p.mu.Unlock()

	return &OrderResult{
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Status:        "FILLED",
		ExecutedQty:   qty.String(),
		Price:         price.String(),
	}, nil
}

func (p *PaperBroker) GetOrder(ctx context.Context, symbol, orderID string) (*OrderDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.book[orderID]
	if !ok {
		return nil, fmt.Errorf("paper: unknown order %s", orderID)
	}
	return &d, nil
}

// CancelOrder always fails: paper fills are immediate, so there is never an
// open order to cancel.
func (p *PaperBroker) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return fmt.Errorf("paper: order %s already filled", orderID)
}

func (p *PaperBroker) GetOpenOrders(ctx context.Context, symbol string) ([]OrderDetail, error) {
	return nil, nil
}

// Fills returns every simulated fill so far, oldest first.
func (p *PaperBroker) Fills() []OrderDetail {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderDetail, 0, len(p.book))
	for i := int64(1); i <= p.seq; i++ {
		if d, ok := p.book[fmt.Sprintf("paper-%d", i)]; ok {
			out = append(out, d)
		}
	}
	return out
}

// fillPrice resolves the execution price: limit orders fill at their limit,
// market orders at the current quote shifted against the taker.
func (p *PaperBroker) fillPrice(ctx context.Context, req OrderRequest) (decimal.Decimal, error) {
	var price decimal.Decimal
	if req.Price != "" {
		parsed, err := decimal.NewFromString(req.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("paper: bad price %q: %w", req.Price, err)
		}
		price = parsed
	} else if p.cfg.Quote != nil {
		quoted, err := p.cfg.Quote(ctx, req.Symbol)
		if err != nil {
			return decimal.Zero, fmt.Errorf("paper: quote %s: %w", req.Symbol, err)
		}
		price = quoted
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("paper: no reference price for %s", req.Symbol)
	}

	// Slippage and taker fee both move the effective price against the
	// order, which keeps downstream cost-basis math honest.
	adverse := decimal.Zero
	if p.cfg.SlippageBps.IsPositive() {
		frac := p.cfg.SlippageBps.Div(decimal.NewFromInt(10000))
		adverse = frac.Mul(decimal.NewFromFloat(p.rng.Float64()))
	}
	if p.cfg.FeeRate.IsPositive() {
		adverse = adverse.Add(p.cfg.FeeRate)
	}
	if adverse.IsPositive() {
		if req.Side == "BUY" {
			price = price.Mul(decimal.NewFromInt(1).Add(adverse))
		} else {
			price = price.Mul(decimal.NewFromInt(1).Sub(adverse))
		}
	}
	return price, nil
}

func (p *PaperBroker) simulateLatency(ctx context.Context) error {
	min, max := p.cfg.LatencyMin, p.cfg.LatencyMax
	if max <= 0 {
		return nil
	}
	if min < 0 {
		min = 0
	}
	if min > max {
		min, max = max, min
	}
	delay := min
	if span := max - min; span > 0 {
		delay += time.Duration(p.rng.Int63n(int64(span) + 1))
	}
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
