package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
	"accum-core/internal/ledger"
	"accum-core/internal/risk"
	"accum-core/internal/signal"
	"accum-core/pkg/exchange"
	"accum-core/pkg/store"
)

const testSymbol = domain.Symbol("BTCUSDT")

type fakeMarket struct {
	price string
	err   error
	block chan struct{} // when set, GetTickerPrice waits until closed
}

func (f *fakeMarket) GetTickerPrice(ctx context.Context, symbol string) (string, error) {
	if f.block != nil {
		<-f.block
	}
	return f.price, f.err
}

func (f *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error) {
	return nil, nil
}
func (f *fakeMarket) GetDepth(ctx context.Context, symbol string, limit int) (*exchange.Depth, error) {
	return nil, nil
}
func (f *fakeMarket) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]exchange.PublicTrade, error) {
	return nil, nil
}
func (f *fakeMarket) GetAggTrades(ctx context.Context, symbol string, limit int) ([]exchange.AggTrade, error) {
	return nil, nil
}

type fakeAccount struct {
	base, quote exchange.AssetBalance
}

func (f *fakeAccount) GetAccountInfo(ctx context.Context) (*exchange.AccountInfo, error) {
	return &exchange.AccountInfo{
		CanTrade: true,
		Balances: []exchange.AssetBalance{f.base, f.quote},
	}, nil
}

type fakeOrders struct {
	placed    []exchange.OrderRequest
	err       error
	fillPrice string // ack price; empty mimics venues that omit it
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, req)
	return &exchange.OrderResult{
		OrderID:       "42",
		ClientOrderID: req.ClientOrderID,
		Status:        "FILLED",
		Price:         f.fillPrice,
	}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, symbol, orderID string) (*exchange.OrderDetail, error) {
	return nil, nil
}
func (f *fakeOrders) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeOrders) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderDetail, error) {
	return nil, nil
}

type fixedStrategy struct {
	plan domain.RebalancePlan
}

func (f *fixedStrategy) Name() string { return "fixed" }

func (f *fixedStrategy) Evaluate(signal.Snapshot) domain.RebalancePlan { return f.plan }

type fixture struct {
	coord  *Coordinator
	ledger *ledger.Ledger
	store  *store.Store
	orders *fakeOrders
	market *fakeMarket
}

func newFixture(t *testing.T, plan domain.RebalancePlan, riskCfg risk.Config) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	led := ledger.New(ledger.Config{
		Symbol:      testSymbol,
		BaseAsset:   "BTC",
		QuoteAsset:  "USDT",
		CorePercent: decimal.NewFromFloat(0.70),
	})
	if riskCfg.MaxDailyTrades == 0 {
		riskCfg.MaxDailyTrades = 10
	}

	market := &fakeMarket{price: "100"}
	orders := &fakeOrders{}
	coord := New(
		Config{
			Symbol:       testSymbol,
			BaseAsset:    "BTC",
			QuoteAsset:   "USDT",
			BuyFraction:  decimal.NewFromFloat(0.50),
			SellFraction: decimal.NewFromFloat(0.50),
		},
		market,
		&fakeAccount{
			base:  exchange.AssetBalance{Asset: "BTC", Free: "2", Locked: "0"},
			quote: exchange.AssetBalance{Asset: "USDT", Free: "1000", Locked: "0"},
		},
		orders,
		led,
		risk.NewGate(riskCfg),
		&fixedStrategy{plan: plan},
		st,
		nil,
	)
	return &fixture{coord: coord, ledger: led, store: st, orders: orders, market: market}
}

func TestRunCycleHoldSkipsExecution(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionHold, Reason: "flat market"}, risk.Config{})

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusHeld {
		t.Fatalf("status = %s, want HELD", res.Status)
	}
	if !res.Success() {
		t.Error("HOLD cycle should count as success")
	}
	if len(f.orders.placed) != 0 {
		t.Errorf("placed %d orders on HOLD", len(f.orders.placed))
	}
}

func TestRunCycleExecutesBuy(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionBuy, Reason: "golden cross"}, risk.Config{})

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusExecuted {
		t.Fatalf("status = %s (%s), want EXECUTED", res.Status, res.Reason)
	}
	if res.OrderID != "42" {
		t.Errorf("order id = %q, want 42", res.OrderID)
	}
	if len(f.orders.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(f.orders.placed))
	}

	req := f.orders.placed[0]
	if req.Side != "BUY" || req.Type != exchange.OrderTypeMarket {
		t.Errorf("request = %+v, want market BUY", req)
	}
	if req.ClientOrderID == "" {
		t.Error("client order id missing")
	}
	// 50% of 1000 USDT at price 100 buys 5 BTC.
	if req.Quantity != "5" {
		t.Errorf("quantity = %s, want 5", req.Quantity)
	}

	pos := f.ledger.Position()
	if pos.TotalQuantity.String() != "5" {
		t.Errorf("position = %s, want 5", pos.TotalQuantity)
	}
	if pos.AverageCost.String() != "100" {
		t.Errorf("avg cost = %s, want 100", pos.AverageCost)
	}

	ctx := context.Background()
	count, err := f.store.DailyTradeCount(ctx, testSymbol, time.Now().Format("2006-01-02"))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("daily trade count = %d, want 1", count)
	}
	if _, err := f.store.LastTradeTime(ctx, testSymbol); err != nil {
		t.Errorf("last trade time not persisted: %v", err)
	}
	saved, err := f.store.Position(ctx, testSymbol)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Total.String() != "5" {
		t.Errorf("persisted position = %s, want 5", saved.Total)
	}
}

func TestRunCycleBooksAckPrice(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionBuy, Reason: "golden cross"}, risk.Config{})
	// Snapshot quotes 100, the order fills at 101.
	f.orders.fillPrice = "101"

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusExecuted {
		t.Fatalf("status = %s (%s), want EXECUTED", res.Status, res.Reason)
	}
	if res.Price.String() != "101" {
		t.Errorf("result price = %s, want the ack price 101", res.Price)
	}

	pos := f.ledger.Position()
	if pos.AverageCost.String() != "101" {
		t.Errorf("avg cost = %s, want 101", pos.AverageCost)
	}

	saved, err := f.store.Cost(context.Background(), testSymbol)
	if err != nil {
		t.Fatal(err)
	}
	if saved.AvgCost.String() != "101" {
		t.Errorf("persisted avg cost = %s, want 101", saved.AvgCost)
	}
}

func TestRunCycleRiskDenialIsHeld(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionBuy, Reason: "golden cross"},
		risk.Config{MaxDailyTrades: 1})

	ctx := context.Background()
	if _, err := f.store.IncrDailyTradeCount(ctx, testSymbol, time.Now().Format("2006-01-02")); err != nil {
		t.Fatal(err)
	}

	res := f.coord.RunCycle(ctx, testSymbol)
	if res.Status != StatusHeld {
		t.Fatalf("status = %s, want HELD", res.Status)
	}
	if res.Action != domain.ActionHold {
		t.Errorf("action = %s, want HOLD", res.Action)
	}
	if res.Reason == "" {
		t.Error("denial reason missing")
	}
	if len(f.orders.placed) != 0 {
		t.Errorf("placed %d orders after denial", len(f.orders.placed))
	}
}

func TestRunCycleInsufficientQuantityFails(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionSell, Reason: "death cross"}, risk.Config{})

	// A dust position passes the tradeable check but sizes to zero once
	// rounded to the lot precision.
	qty, err := domain.NewQuantity(decimal.NewFromFloat(0.000001))
	if err != nil {
		t.Fatal(err)
	}
	price, err := domain.NewPrice(decimal.NewFromInt(100), "USDT")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.ApplyBuy(qty, price); err != nil {
		t.Fatal(err)
	}

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusFailed {
		t.Fatalf("status = %s (%s), want FAILED", res.Status, res.Reason)
	}
	if res.Reason != "insufficient quantity" {
		t.Errorf("reason = %q, want insufficient quantity", res.Reason)
	}
	if len(f.orders.placed) != 0 {
		t.Errorf("placed %d orders, want none", len(f.orders.placed))
	}
}

func TestRunCycleSubmitFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionBuy, Reason: "golden cross"}, risk.Config{})
	f.orders.err = errors.New("exchange down")

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if !f.ledger.Position().TotalQuantity.IsZero() {
		t.Error("ledger mutated on submission failure")
	}
	count, err := f.store.DailyTradeCount(context.Background(), testSymbol, time.Now().Format("2006-01-02"))
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("trade counter incremented on failure: %d", count)
	}
}

func TestRunCycleSingleFlight(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionHold}, risk.Config{})
	f.market.block = make(chan struct{})

	first := make(chan CycleResult, 1)
	go func() { first <- f.coord.RunCycle(context.Background(), testSymbol) }()

	// Wait for the first cycle to take the slot.
	deadline := time.After(2 * time.Second)
	for {
		f.coord.mu.Lock()
		running := f.coord.running[testSymbol]
		f.coord.mu.Unlock()
		if running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusRejected {
		t.Fatalf("concurrent trigger status = %s, want REJECTED", res.Status)
	}

	close(f.market.block)
	if res := <-first; res.Status != StatusHeld {
		t.Errorf("first cycle status = %s, want HELD", res.Status)
	}

	// Slot released: the next trigger runs.
	if res := f.coord.RunCycle(context.Background(), testSymbol); res.Status != StatusHeld {
		t.Errorf("post-release status = %s, want HELD", res.Status)
	}
}

func TestRecentArchivesCompletedCycles(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionHold, Reason: "flat"}, risk.Config{})
	ctx := context.Background()

	if got := f.coord.Recent(10); len(got) != 0 {
		t.Fatalf("fresh coordinator has %d records", len(got))
	}

	f.coord.RunCycle(ctx, testSymbol)
	f.coord.RunCycle(ctx, testSymbol)

	records := f.coord.Recent(10)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].At.Before(records[1].At) {
		t.Error("records not newest first")
	}
	for i, r := range records {
		if r.Result.Status != StatusHeld {
			t.Errorf("record[%d] status = %s, want HELD", i, r.Result.Status)
		}
	}

	if got := f.coord.Recent(1); len(got) != 1 {
		t.Errorf("limited query returned %d records, want 1", len(got))
	}
}

func TestRejectedTriggerNotArchived(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionHold}, risk.Config{})
	f.market.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		f.coord.RunCycle(context.Background(), testSymbol)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		f.coord.mu.Lock()
		running := f.coord.running[testSymbol]
		f.coord.mu.Unlock()
		if running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if res := f.coord.RunCycle(context.Background(), testSymbol); res.Status != StatusRejected {
		t.Fatalf("status = %s, want REJECTED", res.Status)
	}
	close(f.market.block)
	<-done

	records := f.coord.Recent(10)
	if len(records) != 1 {
		t.Fatalf("records = %d, want only the completed cycle", len(records))
	}
	if records[0].Result.Status != StatusHeld {
		t.Errorf("archived status = %s, want HELD", records[0].Result.Status)
	}
}

func TestRunCycleWithoutOrderAPIIsUnsupported(t *testing.T) {
	f := newFixture(t, domain.RebalancePlan{Action: domain.ActionBuy, Reason: "golden cross"}, risk.Config{})
	f.coord.orders = nil

	res := f.coord.RunCycle(context.Background(), testSymbol)
	if res.Status != StatusUnsupported {
		t.Fatalf("status = %s, want UNSUPPORTED", res.Status)
	}
}
