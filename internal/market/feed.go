package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
	"accum-core/internal/events"
	"accum-core/internal/ledger"
	"accum-core/pkg/exchange"
	"accum-core/pkg/store"
)

// Feed drains the stream supervisor, finalizes base candles, and fans the
// results out to the aggregator, the ledger, and the store. The exchange
// re-pushes the open candle on every trade, so a candle is only final once
// a push for a later window arrives.
type Feed struct {
	Supervisor *exchange.StreamSupervisor
	Aggregator *TimeframeAggregator
	Ledger     *ledger.Ledger
	Store      *store.Store
	Bus        *events.Bus
	Symbol     domain.Symbol

	pending     *domain.MarketCandle
	windowStart int64
}

// wsKline is the wire shape of one kline push.
type wsKline struct {
	Kline struct {
		Start  int64       `json:"t"`
		End    int64       `json:"T"`
		Open   json.Number `json:"o"`
		High   json.Number `json:"h"`
		Low    json.Number `json:"l"`
		Close  json.Number `json:"c"`
		Volume json.Number `json:"v"`
	} `json:"k"`
}

// Run drains messages until the supervisor channel closes or the context
// is cancelled.
func (f *Feed) Run(ctx context.Context) {
	msgs := f.Supervisor.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if !strings.Contains(msg.Channel, "kline") {
				continue
			}
			if err := f.handleKline(ctx, msg); err != nil {
				log.Printf("market feed: %v", err)
			}
		}
	}
}

func (f *Feed) handleKline(ctx context.Context, msg exchange.RawMessage) error {
	candle, start, err := parseKline(f.Symbol, msg.Payload)
	if err != nil {
		return fmt.Errorf("parse kline: %w", err)
	}

	if f.Bus != nil {
		f.Bus.Publish(events.EventPriceTick, events.PriceTick{
			Symbol: f.Symbol,
			Price:  candle.Close,
			At:     candle.ClosedAt,
		})
	}
	if f.Store != nil {
		if err := f.Store.SetLatestPrice(ctx, f.Symbol, candle.Close, candle.ClosedAt); err != nil {
			return fmt.Errorf("persist latest price: %w", err)
		}
	}

	// Same window: the open candle just grew, keep the newest version.
	if f.pending != nil && start == f.windowStart {
		f.pending = &candle
		return nil
	}

	var closed *domain.MarketCandle
	if f.pending != nil {
		closed = f.pending
	}
	f.pending = &candle
	f.windowStart = start
	if closed == nil {
		return nil
	}
	return f.finalize(ctx, *closed)
}

func (f *Feed) finalize(ctx context.Context, c domain.MarketCandle) error {
	if f.Ledger != nil {
		f.Ledger.RecordPrice(c.Close)
	}
	if f.Store != nil {
		if err := f.Store.AppendPrice(ctx, c.Symbol, c.ClosedAt, c.Close); err != nil {
			return fmt.Errorf("persist price history: %w", err)
		}
	}

	merged := []domain.MarketCandle{c}
	if f.Aggregator != nil {
		merged = append(merged, f.Aggregator.Push(c)...)
	}
	if f.Bus != nil {
		for _, m := range merged {
			f.Bus.Publish(events.EventCandleClosed, m)
		}
	}
	return nil
}

func parseKline(symbol domain.Symbol, payload json.RawMessage) (domain.MarketCandle, int64, error) {
	var w wsKline
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.MarketCandle{}, 0, err
	}
	open, err := decimal.NewFromString(w.Kline.Open.String())
	if err != nil {
		return domain.MarketCandle{}, 0, fmt.Errorf("open: %w", err)
	}
	high, err := decimal.NewFromString(w.Kline.High.String())
	if err != nil {
		return domain.MarketCandle{}, 0, fmt.Errorf("high: %w", err)
	}
	low, err := decimal.NewFromString(w.Kline.Low.String())
	if err != nil {
		return domain.MarketCandle{}, 0, fmt.Errorf("low: %w", err)
	}
	closePx, err := decimal.NewFromString(w.Kline.Close.String())
	if err != nil {
		return domain.MarketCandle{}, 0, fmt.Errorf("close: %w", err)
	}
	vol, err := decimal.NewFromString(w.Kline.Volume.String())
	if err != nil {
		return domain.MarketCandle{}, 0, fmt.Errorf("volume: %w", err)
	}

	return domain.MarketCandle{
		Symbol:   symbol,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   vol,
		ClosedAt: time.UnixMilli(w.Kline.End),
	}, w.Kline.Start, nil
}
