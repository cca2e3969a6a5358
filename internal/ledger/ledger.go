// Package ledger is the single writer for balances, position and cost-basis
// state. Every other component works on snapshots; all mutation goes through
// the operations here, which fail with a domain error instead of clamping
// when an invariant would be violated.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// Ledger holds the account view for one trading pair: base and quote
// balances, the tiered position, weighted-average cost and PnL, plus the
// price history the signal engine reads.
type Ledger struct {
	mu sync.RWMutex

	symbol     domain.Symbol
	baseAsset  string
	quoteAsset string
	corePct    decimal.Decimal

	balances      map[string]*domain.Balance
	position      domain.Position
	totalInvested decimal.Decimal

	latestPrice decimal.Decimal
	history     []decimal.Decimal
	maxHistory  int
}

// Config sizes a ledger for one symbol.
type Config struct {
	Symbol      domain.Symbol
	BaseAsset   string
	QuoteAsset  string
	CorePercent decimal.Decimal // fraction of holdings protected from selling
	MaxHistory  int             // price samples kept for the signal engine
}

// New builds an empty ledger.
func New(cfg Config) *Ledger {
	if cfg.MaxHistory == 0 {
		cfg.MaxHistory = 500
	}
	return &Ledger{
		symbol:     cfg.Symbol,
		baseAsset:  cfg.BaseAsset,
		quoteAsset: cfg.QuoteAsset,
		corePct:    cfg.CorePercent,
		balances: map[string]*domain.Balance{
			cfg.BaseAsset:  domain.NewBalance(cfg.BaseAsset),
			cfg.QuoteAsset: domain.NewBalance(cfg.QuoteAsset),
		},
		position:   domain.Position{Symbol: cfg.Symbol},
		maxHistory: cfg.MaxHistory,
	}
}

func (l *Ledger) Symbol() domain.Symbol { return l.symbol }

// --- balances ---

func (l *Ledger) balance(asset string) (*domain.Balance, error) {
	b, ok := l.balances[asset]
	if !ok {
		return nil, fmt.Errorf("ledger: unknown asset %q", asset)
	}
	return b, nil
}

func (l *Ledger) Deposit(asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.balance(asset)
	if err != nil {
		return err
	}
	return b.Deposit(amount)
}

func (l *Ledger) Withdraw(asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.balance(asset)
	if err != nil {
		return err
	}
	return b.Withdraw(amount)
}

func (l *Ledger) Lock(asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.balance(asset)
	if err != nil {
		return err
	}
	return b.Lock(amount)
}

func (l *Ledger) Unlock(asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.balance(asset)
	if err != nil {
		return err
	}
	return b.Unlock(amount)
}

func (l *Ledger) Release(asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.balance(asset)
	if err != nil {
		return err
	}
	return b.Release(amount)
}

// SyncBalances replaces the whole balance view from an exchange snapshot.
func (l *Ledger) SyncBalances(free, locked map[string]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for asset, b := range l.balances {
		if f, ok := free[asset]; ok {
			b.Free = f
		}
		if lk, ok := locked[asset]; ok {
			b.Locked = lk
		}
	}
}

// Balance returns a snapshot for one asset.
func (l *Ledger) Balance(asset string) domain.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[asset]; ok {
		return b.Snapshot()
	}
	return domain.Balance{Asset: asset}
}

// Balances returns snapshots of every tracked balance, sorted by asset.
func (l *Ledger) Balances() []domain.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Balance, 0, len(l.balances))
	for _, b := range l.balances {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// --- position / cost basis ---

// Restore seeds position and cost state from persisted storage. Used once
// at startup, before any market data flows.
func (l *Ledger) Restore(total, avgCost, realizedPnL, totalInvested decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position.TotalQuantity = total
	l.position.AverageCost = avgCost
	l.position.RealizedPnL = realizedPnL
	l.totalInvested = totalInvested
	l.refreshDerived()
}

// ApplyBuy folds a fill into the position, recomputing the weighted-average
// cost as (oldAvg*oldQty + price*qty) / (oldQty+qty).
func (l *Ledger) ApplyBuy(qty domain.Quantity, price domain.Price) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := qty.Decimal()
	p := price.Decimal()
	oldQty := l.position.TotalQuantity
	newQty := oldQty.Add(q)

	invested := l.position.AverageCost.Mul(oldQty).Add(p.Mul(q))
	l.position.AverageCost = invested.Div(newQty)
	l.position.TotalQuantity = newQty
	l.totalInvested = l.totalInvested.Add(p.Mul(q))
	l.refreshDerived()
	return nil
}

// ApplySell realizes (price-avgCost)*qty of PnL and decrements the position.
// Selling more than held is a domain error, never a clamp. Average cost is
// cleared only when the position reaches exactly zero.
func (l *Ledger) ApplySell(qty domain.Quantity, price domain.Price) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := qty.Decimal()
	if q.GreaterThan(l.position.TotalQuantity) {
		return fmt.Errorf("sell %s of %s held: %w", q, l.position.TotalQuantity, domain.ErrOversell)
	}
	p := price.Decimal()

	l.position.RealizedPnL = l.position.RealizedPnL.Add(p.Sub(l.position.AverageCost).Mul(q))
	l.totalInvested = l.totalInvested.Sub(l.position.AverageCost.Mul(q))
	l.position.TotalQuantity = l.position.TotalQuantity.Sub(q)
	if l.position.TotalQuantity.IsZero() {
		l.position.AverageCost = decimal.Zero
	}
	l.refreshDerived()
	return nil
}

// refreshDerived recomputes core quantity, unrealized PnL and the update
// timestamp. Caller holds the write lock.
func (l *Ledger) refreshDerived() {
	l.position.CoreQuantity = l.position.TotalQuantity.Mul(l.corePct)
	if !l.latestPrice.IsZero() && !l.position.TotalQuantity.IsZero() {
		l.position.UnrealizedPnL = l.latestPrice.Sub(l.position.AverageCost).Mul(l.position.TotalQuantity)
	} else {
		l.position.UnrealizedPnL = decimal.Zero
	}
	l.position.UpdatedAt = time.Now()
}

// TradeableQuantity returns max(0, total - total*corePct): the holdings not
// protected as core.
func (l *Ledger) TradeableQuantity(corePct decimal.Decimal) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position.Tradeable(corePct)
}

// Position returns a copy of the current position.
func (l *Ledger) Position() domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position
}

// CorePercent returns the configured protected fraction.
func (l *Ledger) CorePercent() decimal.Decimal { return l.corePct }

// Tiers returns the current layer breakdown.
func (l *Ledger) Tiers() domain.PositionTiers {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.SplitTiers(l.position.TotalQuantity, l.corePct)
}

// TotalInvested returns the running invested capital.
func (l *Ledger) TotalInvested() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalInvested
}

// --- price history ---

// RecordPrice replaces the latest price and appends to the bounded history.
// Whole values only; readers never observe a half-updated sample.
func (l *Ledger) RecordPrice(price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latestPrice = price
	l.history = append(l.history, price)
	if len(l.history) > l.maxHistory {
		l.history = l.history[len(l.history)-l.maxHistory:]
	}
	l.refreshDerived()
}

// LatestPrice returns the last recorded price, zero when none seen yet.
func (l *Ledger) LatestPrice() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latestPrice
}

// PriceHistory returns a copy of the recorded closes, oldest first.
func (l *Ledger) PriceHistory() []decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]decimal.Decimal, len(l.history))
	copy(out, l.history)
	return out
}
