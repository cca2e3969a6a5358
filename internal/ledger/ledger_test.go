package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func qty(t *testing.T, s string) domain.Quantity {
	t.Helper()
	q, err := domain.ParseQuantity(s)
	if err != nil {
		t.Fatalf("quantity %q: %v", s, err)
	}
	return q
}

func price(t *testing.T, s string) domain.Price {
	t.Helper()
	p, err := domain.ParsePrice(s, "USDT")
	if err != nil {
		t.Fatalf("price %q: %v", s, err)
	}
	return p
}

func newTestLedger(corePct string) *Ledger {
	return New(Config{
		Symbol:      "BTCUSDT",
		BaseAsset:   "BTC",
		QuoteAsset:  "USDT",
		CorePercent: d(corePct),
	})
}

func TestWeightedAverageCost(t *testing.T) {
	l := newTestLedger("0")

	if err := l.ApplyBuy(qty(t, "1"), price(t, "100")); err != nil {
		t.Fatalf("buy 1: %v", err)
	}
	if err := l.ApplyBuy(qty(t, "1"), price(t, "200")); err != nil {
		t.Fatalf("buy 2: %v", err)
	}
	pos := l.Position()
	if !pos.AverageCost.Equal(d("150")) {
		t.Errorf("avg=%s, want 150", pos.AverageCost)
	}

	if err := l.ApplySell(qty(t, "1"), price(t, "250")); err != nil {
		t.Fatalf("sell: %v", err)
	}
	pos = l.Position()
	if !pos.RealizedPnL.Equal(d("100")) {
		t.Errorf("realized=%s, want 100", pos.RealizedPnL)
	}
	if !pos.AverageCost.Equal(d("150")) {
		t.Errorf("avg after partial sell=%s, want unchanged 150", pos.AverageCost)
	}

	if err := l.ApplySell(qty(t, "1"), price(t, "250")); err != nil {
		t.Fatalf("final sell: %v", err)
	}
	pos = l.Position()
	if !pos.TotalQuantity.IsZero() {
		t.Errorf("qty=%s, want 0", pos.TotalQuantity)
	}
	if !pos.AverageCost.IsZero() {
		t.Errorf("avg=%s, want cleared to 0 at exactly zero quantity", pos.AverageCost)
	}
}

// Buying then selling the same quantity at the same price must restore the
// prior average cost and total quantity.
func TestBuySellRoundTrip(t *testing.T) {
	l := newTestLedger("0")
	if err := l.ApplyBuy(qty(t, "3"), price(t, "120")); err != nil {
		t.Fatal(err)
	}
	before := l.Position()

	if err := l.ApplyBuy(qty(t, "2.5"), price(t, "95.5")); err != nil {
		t.Fatal(err)
	}
	if err := l.ApplySell(qty(t, "2.5"), price(t, "95.5")); err != nil {
		t.Fatal(err)
	}

	after := l.Position()
	if !after.TotalQuantity.Equal(before.TotalQuantity) {
		t.Errorf("qty=%s, want %s", after.TotalQuantity, before.TotalQuantity)
	}
	if !after.AverageCost.Round(12).Equal(before.AverageCost.Round(12)) {
		t.Errorf("avg=%s, want %s", after.AverageCost, before.AverageCost)
	}
}

func TestOversellRejected(t *testing.T) {
	l := newTestLedger("0")
	if err := l.ApplyBuy(qty(t, "1"), price(t, "100")); err != nil {
		t.Fatal(err)
	}
	err := l.ApplySell(qty(t, "2"), price(t, "100"))
	if !errors.Is(err, domain.ErrOversell) {
		t.Fatalf("err=%v, want ErrOversell", err)
	}
	// The failed sell must leave the position untouched.
	if !l.Position().TotalQuantity.Equal(d("1")) {
		t.Errorf("qty=%s after rejected sell, want 1", l.Position().TotalQuantity)
	}
}

func TestTradeableQuantityProtectsCore(t *testing.T) {
	l := newTestLedger("0.70")
	if err := l.ApplyBuy(qty(t, "10000"), price(t, "1")); err != nil {
		t.Fatal(err)
	}

	pos := l.Position()
	if !pos.CoreQuantity.Equal(d("7000")) {
		t.Errorf("core=%s, want 7000", pos.CoreQuantity)
	}
	tradeable := l.TradeableQuantity(d("0.70"))
	if !tradeable.Equal(d("3000")) {
		t.Errorf("tradeable=%s, want 3000", tradeable)
	}
	// A sell sized above the tradeable amount still fits the raw position,
	// so the ledger accepts it; blocking it is the risk gate's job. But a
	// sell above the whole position must fail here.
	if err := l.ApplySell(qty(t, "10001"), price(t, "1")); !errors.Is(err, domain.ErrOversell) {
		t.Errorf("err=%v, want ErrOversell", err)
	}
}

func TestPriceHistoryBounded(t *testing.T) {
	l := New(Config{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", MaxHistory: 3})
	for i := 1; i <= 5; i++ {
		l.RecordPrice(decimal.NewFromInt(int64(i)))
	}
	h := l.PriceHistory()
	if len(h) != 3 {
		t.Fatalf("len=%d, want 3", len(h))
	}
	if !h[0].Equal(d("3")) || !h[2].Equal(d("5")) {
		t.Errorf("history=%v, want [3 4 5]", h)
	}
	if !l.LatestPrice().Equal(d("5")) {
		t.Errorf("latest=%s, want 5", l.LatestPrice())
	}
}

func TestBalanceOperations(t *testing.T) {
	l := newTestLedger("0")
	if err := l.Deposit("USDT", d("1000")); err != nil {
		t.Fatal(err)
	}
	if err := l.Lock("USDT", d("400")); err != nil {
		t.Fatal(err)
	}
	if err := l.Withdraw("USDT", d("700")); err == nil {
		t.Error("withdraw past free accepted")
	}
	if err := l.Release("USDT", d("400")); err != nil {
		t.Fatal(err)
	}
	b := l.Balance("USDT")
	if !b.Free.Equal(d("600")) || !b.Locked.IsZero() {
		t.Errorf("balance=%+v", b)
	}
	if err := l.Deposit("DOGE", d("1")); err == nil {
		t.Error("unknown asset accepted")
	}
}
