// Package market ingests the exchange candle stream and rolls base
// candles up into coarser timeframes.
package market

import (
	"sort"
	"time"

	"accum-core/internal/domain"
)

// TimeframeAggregator merges a base candle stream into one or more coarser
// timeframes. Each timeframe keeps an independent buffer, so one base
// candle may close zero, one, or several timeframes at once.
type TimeframeAggregator struct {
	base    time.Duration
	buffers []*bucket
}

type bucket struct {
	span    time.Duration
	candles []domain.MarketCandle
}

// NewTimeframeAggregator builds buffers for each multiple of the base
// interval. Multiples below 2 are ignored; the base stream itself does
// not need aggregating.
func NewTimeframeAggregator(base time.Duration, multiples ...int) *TimeframeAggregator {
	agg := &TimeframeAggregator{base: base}
	sort.Ints(multiples)
	for _, m := range multiples {
		if m < 2 {
			continue
		}
		agg.buffers = append(agg.buffers, &bucket{span: base * time.Duration(m)})
	}
	return agg
}

// Push appends one base candle to every buffer and returns the merged
// candles for each timeframe that closed on this push, in ascending
// span order.
func (a *TimeframeAggregator) Push(c domain.MarketCandle) []domain.MarketCandle {
	var closed []domain.MarketCandle
	for _, b := range a.buffers {
		b.candles = append(b.candles, c)

		// The buffer covers the first candle's own interval plus the
		// elapsed time to the newest close.
		elapsed := b.candles[len(b.candles)-1].ClosedAt.Sub(b.candles[0].ClosedAt) + a.base
		if elapsed < b.span {
			continue
		}
		closed = append(closed, merge(b.candles))
		b.candles = b.candles[:0]
	}
	return closed
}

func merge(candles []domain.MarketCandle) domain.MarketCandle {
	first, last := candles[0], candles[len(candles)-1]
	out := domain.MarketCandle{
		Symbol:   first.Symbol,
		Open:     first.Open,
		High:     first.High,
		Low:      first.Low,
		Close:    last.Close,
		Volume:   first.Volume,
		ClosedAt: last.ClosedAt,
	}
	for _, c := range candles[1:] {
		if c.High.GreaterThan(out.High) {
			out.High = c.High
		}
		if c.Low.LessThan(out.Low) {
			out.Low = c.Low
		}
		out.Volume = out.Volume.Add(c.Volume)
	}
	return out
}
