package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"accum-core/internal/api"
	"accum-core/internal/coordinator"
	"accum-core/internal/domain"
	"accum-core/internal/events"
	"accum-core/internal/ledger"
	"accum-core/internal/market"
	"accum-core/internal/monitor"
	"accum-core/internal/risk"
	strategy "accum-core/internal/signal"
	"accum-core/pkg/config"
	"accum-core/pkg/exchange"
	"accum-core/pkg/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	symbol, err := domain.NewSymbol(cfg.Symbol)
	if err != nil {
		log.Fatalf("invalid symbol %q: %v", cfg.Symbol, err)
	}
	log.Printf("starting accumulation core for %s (dry_run=%v)", symbol, cfg.DryRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	collector := &monitor.Collector{Bus: bus, Metrics: metrics, Alerts: monitor.LogSink{}}
	collector.Start(ctx)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()
	log.Printf("store ready at %s", cfg.DBPath)

	client := exchange.NewClient(exchange.TransportConfig{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.RESTBaseURL,
	})

	led := ledger.New(ledger.Config{
		Symbol:      symbol,
		BaseAsset:   cfg.BaseAsset,
		QuoteAsset:  cfg.QuoteAsset,
		CorePercent: cfg.CorePercent,
	})
	restoreLedger(ctx, st, led, symbol)

	// Market data pipeline
	interval := intervalName(cfg.BaseInterval)
	build := func() *exchange.StreamClient {
		return exchange.NewStreamClient(exchange.StreamConfig{
			URL:       cfg.StreamBaseURL,
			Heartbeat: cfg.StreamHeartbeat,
		}, exchange.KlineChannel(symbol.String(), interval))
	}
	supervisor := exchange.NewStreamSupervisor(build, cfg.ReconnectDelay, 256)
	go supervisor.Run(ctx)

	feed := &market.Feed{
		Supervisor: supervisor,
		Aggregator: market.NewTimeframeAggregator(cfg.BaseInterval, cfg.TimeframeMultiples...),
		Ledger:     led,
		Store:      st,
		Bus:        bus,
		Symbol:     symbol,
	}
	go feed.Run(ctx)
	log.Printf("market feed started: %s %s", symbol, interval)

	// Decision pipeline
	strat, err := buildStrategy(cfg)
	if err != nil {
		log.Fatalf("load strategy: %v", err)
	}
	log.Printf("strategy: %s", strat.Name())

	gate := risk.NewGate(risk.Config{
		MaxDailyTrades:   cfg.MaxDailyTrades,
		MinTradeInterval: cfg.MinTradeInterval,
		CorePercent:      cfg.CorePercent,
		MinSellProfitPct: cfg.MinSellProfitPct,
		QuoteReservePct:  cfg.QuoteReservePct,
	})

	live := cfg.EnableTrading && !cfg.DryRun
	var orders exchange.OrderAPI
	switch {
	case live:
		orders = client
	case cfg.DryRun:
		orders = exchange.NewPaperBroker(exchange.PaperConfig{
			FeeRate:     decimal.NewFromFloat(0.0005),
			SlippageBps: decimal.NewFromInt(5),
			LatencyMin:  20 * time.Millisecond,
			LatencyMax:  80 * time.Millisecond,
			Quote: func(ctx context.Context, _ string) (decimal.Decimal, error) {
				if p := led.LatestPrice(); p.IsPositive() {
					return p, nil
				}
				return decimal.Zero, errors.New("no price observed yet")
			},
		})
		log.Println("dry run: orders fill against the paper broker")
	default:
		log.Println("order submission disabled; cycles stop at sizing")
	}

	coord := coordinator.New(coordinator.Config{
		Symbol:        symbol,
		BaseAsset:     cfg.BaseAsset,
		QuoteAsset:    cfg.QuoteAsset,
		BuyFraction:   cfg.BuyFraction,
		SellFraction:  cfg.SellFraction,
		QuantityScale: int32(cfg.QuantityScale),
	}, client, client, orders, led, gate, strat, st, bus)
	coord.SetMetrics(metrics)

	scheduler := coordinator.NewScheduler(coord, symbol, cfg.CycleIntervals...)
	go scheduler.Run(ctx)

	// Private user stream (live trading only)
	if live && cfg.APIKey != "" {
		go runUserStream(ctx, cfg, client, bus)
	}

	// API
	server := api.NewServer(bus, st, led, coord, orders, symbol, metrics,
		api.SystemMeta{
			DryRun:  cfg.DryRun,
			Venue:   "mexc",
			Version: version(),
		}, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()
	log.Printf("api listening on :%s", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	supervisor.Stop()
	cancel()
}

// restoreLedger seeds the in-memory ledger from the persisted position,
// cost basis and recent price history.
func restoreLedger(ctx context.Context, st *store.Store, led *ledger.Ledger, symbol domain.Symbol) {
	pos, err := st.Position(ctx, symbol)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("restore position: %v", err)
	}
	cost, err := st.Cost(ctx, symbol)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("restore cost: %v", err)
	}
	led.Restore(pos.Total, pos.AvgCost, cost.RealizedPnL, cost.TotalInvested)

	points, err := st.PriceHistory(ctx, symbol, time.Now().Add(-24*time.Hour))
	if err != nil {
		log.Printf("restore price history: %v", err)
		return
	}
	for _, p := range points {
		led.RecordPrice(p.Price)
	}
	if len(points) > 0 {
		log.Printf("restored %d price samples", len(points))
	}
}

// buildStrategy resolves the signal strategy from the YAML file when one is
// configured, falling back to the accumulation default.
func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	if cfg.StrategyFile != "" {
		entries, err := strategy.LoadConfig(cfg.StrategyFile)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Name == cfg.StrategyName || e.Type == cfg.StrategyName {
				return strategy.Build(e)
			}
		}
		return nil, fmt.Errorf("strategy %q not found in %s", cfg.StrategyName, cfg.StrategyFile)
	}
	return strategy.NewAccumulate(strategy.AccumulateConfig{}), nil
}

// runUserStream opens the private account/deals/orders channels over a
// listen-key-scoped session and keeps the key alive. The exchange expires
// keys after an hour without a keepalive.
func runUserStream(ctx context.Context, cfg *config.Config, client *exchange.Client, bus *events.Bus) {
	key, err := client.CreateListenKey(ctx)
	if err != nil {
		log.Printf("user stream: create listen key: %v", err)
		return
	}
	log.Println("user stream listen key created")
	defer func() {
		if err := client.CloseListenKey(context.Background(), key); err != nil {
			log.Printf("user stream: close listen key: %v", err)
		}
	}()

	build := func() *exchange.StreamClient {
		return exchange.NewStreamClient(exchange.StreamConfig{
			URL:       exchange.StreamURL(cfg.StreamBaseURL, key),
			Heartbeat: cfg.StreamHeartbeat,
		},
			exchange.PrivateAccountChannel(),
			exchange.PrivateDealsChannel(),
			exchange.PrivateOrdersChannel())
	}
	private := exchange.NewStreamSupervisor(build, cfg.ReconnectDelay, 64)
	go private.Run(ctx)
	defer private.Stop()

	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.KeepAliveListenKey(ctx, key); err != nil {
				log.Printf("user stream: keepalive: %v", err)
			}
		case msg, ok := <-private.Messages():
			if !ok {
				return
			}
			switch msg.Channel {
			case exchange.PrivateDealsChannel():
				bus.Publish(events.EventOrderFilled, msg)
			case exchange.PrivateOrdersChannel():
				bus.Publish(events.EventOrderSubmitted, msg)
			default:
				log.Printf("user stream: %s update", msg.Channel)
			}
		}
	}
}

// intervalName maps a duration onto the exchange kline interval token.
func intervalName(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("Min%d", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("Hour%d", int(d.Hours()))
	default:
		return fmt.Sprintf("Day%d", int(d.Hours()/24))
	}
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "v1.0-dev"
}
