package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func baseConfig() Config {
	return Config{
		MaxDailyTrades:   5,
		MinTradeInterval: 15 * time.Minute,
		CorePercent:      d("0.70"),
	}
}

func allowedInput(action domain.Action) Input {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return Input{
		Action:        action,
		Price:         d("100"),
		AverageCost:   d("90"),
		DailyTrades:   0,
		LastTradeTime: now.Add(-time.Hour),
		Now:           now,
		TradeableQty:  d("3000"),
		QuoteFree:     d("5000"),
		PortfolioVal:  d("20000"),
	}
}

// At the daily cap every signal is denied regardless of other inputs: the
// count check runs first and short-circuits.
func TestDailyCapShortCircuits(t *testing.T) {
	g := NewGate(baseConfig())
	for _, action := range []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold} {
		in := allowedInput(action)
		in.DailyTrades = 5
		dec := g.Evaluate(in)
		if dec.Allowed {
			t.Errorf("%s allowed at daily cap", action)
		}
		if !strings.Contains(dec.Reason, "daily trade limit") {
			t.Errorf("%s reason=%q, want the count check to fire first", action, dec.Reason)
		}
	}
}

func TestTradeInterval(t *testing.T) {
	g := NewGate(baseConfig())

	in := allowedInput(domain.ActionBuy)
	in.LastTradeTime = in.Now.Add(-5 * time.Minute)
	if dec := g.Evaluate(in); dec.Allowed {
		t.Error("trade allowed 5m after last with 15m minimum")
	}

	// First-ever trade passes regardless of interval.
	in.LastTradeTime = time.Time{}
	if dec := g.Evaluate(in); !dec.Allowed {
		t.Errorf("first trade denied: %s", dec.Reason)
	}
}

func TestSellChecks(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config, *Input)
		allowed bool
		reason  string
	}{
		{
			name:    "happy path",
			mutate:  func(*Config, *Input) {},
			allowed: true,
		},
		{
			name: "core fully protected",
			mutate: func(_ *Config, in *Input) {
				in.TradeableQty = decimal.Zero
			},
			reason: "core position protected",
		},
		{
			name: "profit below minimum",
			mutate: func(cfg *Config, in *Input) {
				cfg.MinSellProfitPct = d("0.03")
				in.Price = d("91") // +1.1% over 90 avg
			},
			reason: "below minimum",
		},
		{
			name: "profit above minimum",
			mutate: func(cfg *Config, in *Input) {
				cfg.MinSellProfitPct = d("0.03")
				in.Price = d("95") // +5.6%
			},
			allowed: true,
		},
		{
			name: "no cost basis with profit check on",
			mutate: func(cfg *Config, in *Input) {
				cfg.MinSellProfitPct = d("0.03")
				in.AverageCost = decimal.Zero
			},
			reason: "no cost basis",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			in := allowedInput(domain.ActionSell)
			tt.mutate(&cfg, &in)
			dec := NewGate(cfg).Evaluate(in)
			if dec.Allowed != tt.allowed {
				t.Fatalf("allowed=%v reason=%q, want allowed=%v", dec.Allowed, dec.Reason, tt.allowed)
			}
			if !tt.allowed && !strings.Contains(dec.Reason, tt.reason) {
				t.Errorf("reason=%q, want it to contain %q", dec.Reason, tt.reason)
			}
		})
	}
}

func TestBuyChecks(t *testing.T) {
	g := NewGate(baseConfig())

	in := allowedInput(domain.ActionBuy)
	in.QuoteFree = decimal.Zero
	if dec := g.Evaluate(in); dec.Allowed {
		t.Error("buy allowed with zero quote balance")
	}

	cfg := baseConfig()
	cfg.QuoteReservePct = d("0.30")
	in = allowedInput(domain.ActionBuy)
	in.QuoteFree = d("5000")
	in.PortfolioVal = d("20000") // reserve = 6000 > 5000 free
	if dec := NewGate(cfg).Evaluate(in); dec.Allowed {
		t.Error("buy allowed below quote reserve")
	}
	in.QuoteFree = d("8000")
	if dec := NewGate(cfg).Evaluate(in); !dec.Allowed {
		t.Errorf("buy denied above reserve: %s", dec.Reason)
	}
}

// HOLD carries no execution intent: the side-specific checks never fire.
func TestHoldBypassesSideChecks(t *testing.T) {
	g := NewGate(baseConfig())
	in := allowedInput(domain.ActionHold)
	in.TradeableQty = decimal.Zero
	in.QuoteFree = decimal.Zero
	if dec := g.Evaluate(in); !dec.Allowed {
		t.Errorf("hold denied by side checks: %s", dec.Reason)
	}
}
