package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// PricePoint is one time-scored history sample.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
}

// PositionState mirrors the persisted position row.
type PositionState struct {
	Total   decimal.Decimal
	AvgCost decimal.Decimal
	Locked  decimal.Decimal
}

// CostState mirrors the persisted cost-basis row.
type CostState struct {
	AvgCost       decimal.Decimal
	TotalInvested decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// SetLatestPrice replaces the cached latest price for a symbol.
func (s *Store) SetLatestPrice(ctx context.Context, symbol domain.Symbol, price decimal.Decimal, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO latest_price (symbol, price, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET price = excluded.price, updated_at = excluded.updated_at
	`, symbol.String(), price.String(), at.UnixMilli())
	return err
}

// LatestPrice returns the cached latest price.
func (s *Store) LatestPrice(ctx context.Context, symbol domain.Symbol) (decimal.Decimal, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT price FROM latest_price WHERE symbol = ?`, symbol.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// AppendPrice records one time-scored history sample.
func (s *Store) AppendPrice(ctx context.Context, symbol domain.Symbol, at time.Time, price decimal.Decimal) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO price_history (symbol, ts, price) VALUES (?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET price = excluded.price
	`, symbol.String(), at.UnixMilli(), price.String())
	return err
}

// PriceHistory returns samples at or after since, oldest first.
func (s *Store) PriceHistory(ctx context.Context, symbol domain.Symbol, since time.Time) ([]PricePoint, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT ts, price FROM price_history WHERE symbol = ? AND ts >= ? ORDER BY ts ASC
	`, symbol.String(), since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var ts int64
		var raw string
		if err := rows.Scan(&ts, &raw); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored price %q: %w", raw, err)
		}
		points = append(points, PricePoint{Time: time.UnixMilli(ts), Price: p})
	}
	return points, rows.Err()
}

// TrimPriceHistory drops samples older than before.
func (s *Store) TrimPriceHistory(ctx context.Context, symbol domain.Symbol, before time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM price_history WHERE symbol = ? AND ts < ?`, symbol.String(), before.UnixMilli())
	return err
}

// SavePosition upserts the position row.
func (s *Store) SavePosition(ctx context.Context, symbol domain.Symbol, p PositionState) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO position (symbol, total, avg_cost, locked, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			total = excluded.total,
			avg_cost = excluded.avg_cost,
			locked = excluded.locked,
			updated_at = excluded.updated_at
	`, symbol.String(), p.Total.String(), p.AvgCost.String(), p.Locked.String(), time.Now().UnixMilli())
	return err
}

// Position reads the position row.
func (s *Store) Position(ctx context.Context, symbol domain.Symbol) (PositionState, error) {
	var total, avg, locked string
	err := s.DB.QueryRowContext(ctx,
		`SELECT total, avg_cost, locked FROM position WHERE symbol = ?`, symbol.String()).
		Scan(&total, &avg, &locked)
	if err == sql.ErrNoRows {
		return PositionState{}, ErrNotFound
	}
	if err != nil {
		return PositionState{}, err
	}
	return parsePositionState(total, avg, locked)
}

// SaveLayers upserts the tier breakdown row.
func (s *Store) SaveLayers(ctx context.Context, symbol domain.Symbol, tiers domain.PositionTiers) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO position_layers (symbol, core, swing, active, total, core_percent)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			core = excluded.core,
			swing = excluded.swing,
			active = excluded.active,
			total = excluded.total,
			core_percent = excluded.core_percent
	`, symbol.String(), tiers.Core.String(), tiers.Swing.String(), tiers.Active.String(),
		tiers.Total.String(), tiers.CorePercent.String())
	return err
}

// Layers reads the tier breakdown row.
func (s *Store) Layers(ctx context.Context, symbol domain.Symbol) (domain.PositionTiers, error) {
	var core, swing, active, total, corePct string
	err := s.DB.QueryRowContext(ctx, `
		SELECT core, swing, active, total, core_percent FROM position_layers WHERE symbol = ?
	`, symbol.String()).Scan(&core, &swing, &active, &total, &corePct)
	if err == sql.ErrNoRows {
		return domain.PositionTiers{}, ErrNotFound
	}
	if err != nil {
		return domain.PositionTiers{}, err
	}
	return parseTiers(core, swing, active, total, corePct)
}

// SaveCost upserts the cost-basis row.
func (s *Store) SaveCost(ctx context.Context, symbol domain.Symbol, c CostState) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO cost (symbol, avg_cost, total_invested, realized_pnl, unrealized_pnl)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			avg_cost = excluded.avg_cost,
			total_invested = excluded.total_invested,
			realized_pnl = excluded.realized_pnl,
			unrealized_pnl = excluded.unrealized_pnl
	`, symbol.String(), c.AvgCost.String(), c.TotalInvested.String(),
		c.RealizedPnL.String(), c.UnrealizedPnL.String())
	return err
}

// Cost reads the cost-basis row.
func (s *Store) Cost(ctx context.Context, symbol domain.Symbol) (CostState, error) {
	var avg, invested, realized, unrealized string
	err := s.DB.QueryRowContext(ctx, `
		SELECT avg_cost, total_invested, realized_pnl, unrealized_pnl FROM cost WHERE symbol = ?
	`, symbol.String()).Scan(&avg, &invested, &realized, &unrealized)
	if err == sql.ErrNoRows {
		return CostState{}, ErrNotFound
	}
	if err != nil {
		return CostState{}, err
	}
	return parseCostState(avg, invested, realized, unrealized)
}

// IncrDailyTradeCount atomically bumps the per-date counter and returns the
// new value. Concurrent triggers each see a distinct count.
func (s *Store) IncrDailyTradeCount(ctx context.Context, symbol domain.Symbol, date string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO daily_trade_count (symbol, date, count) VALUES (?, ?, 1)
		ON CONFLICT(symbol, date) DO UPDATE SET count = count + 1
		RETURNING count
	`, symbol.String(), date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment daily trade count: %w", err)
	}
	return count, nil
}

// DailyTradeCount reads the counter for one date; zero when absent.
func (s *Store) DailyTradeCount(ctx context.Context, symbol domain.Symbol, date string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count FROM daily_trade_count WHERE symbol = ? AND date = ?`,
		symbol.String(), date).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// SetLastTradeTime advances the last-trade timestamp. The conditional update
// never moves the timestamp backwards, so close-together triggers cannot
// clobber each other.
func (s *Store) SetLastTradeTime(ctx context.Context, symbol domain.Symbol, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO last_trade_time (symbol, ts) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET ts = excluded.ts WHERE excluded.ts > ts
	`, symbol.String(), at.UnixMilli())
	return err
}

// LastTradeTime reads the last-trade timestamp; zero time when no trade has
// ever happened.
func (s *Store) LastTradeTime(ctx context.Context, symbol domain.Symbol) (time.Time, error) {
	var ts int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT ts FROM last_trade_time WHERE symbol = ?`, symbol.String()).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ts), nil
}

func parsePositionState(total, avg, locked string) (PositionState, error) {
	var p PositionState
	var err error
	if p.Total, err = decimal.NewFromString(total); err != nil {
		return p, fmt.Errorf("parse total %q: %w", total, err)
	}
	if p.AvgCost, err = decimal.NewFromString(avg); err != nil {
		return p, fmt.Errorf("parse avg_cost %q: %w", avg, err)
	}
	if p.Locked, err = decimal.NewFromString(locked); err != nil {
		return p, fmt.Errorf("parse locked %q: %w", locked, err)
	}
	return p, nil
}

func parseTiers(core, swing, active, total, corePct string) (domain.PositionTiers, error) {
	var t domain.PositionTiers
	var err error
	if t.Core, err = decimal.NewFromString(core); err != nil {
		return t, err
	}
	if t.Swing, err = decimal.NewFromString(swing); err != nil {
		return t, err
	}
	if t.Active, err = decimal.NewFromString(active); err != nil {
		return t, err
	}
	if t.Total, err = decimal.NewFromString(total); err != nil {
		return t, err
	}
	if t.CorePercent, err = decimal.NewFromString(corePct); err != nil {
		return t, err
	}
	return t, nil
}

func parseCostState(avg, invested, realized, unrealized string) (CostState, error) {
	var c CostState
	var err error
	if c.AvgCost, err = decimal.NewFromString(avg); err != nil {
		return c, err
	}
	if c.TotalInvested, err = decimal.NewFromString(invested); err != nil {
		return c, err
	}
	if c.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
		return c, err
	}
	if c.UnrealizedPnL, err = decimal.NewFromString(unrealized); err != nil {
		return c, err
	}
	return c, nil
}
