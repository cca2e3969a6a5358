package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	Port string

	// Exchange
	APIKey        string
	APISecret     string
	RESTBaseURL   string
	StreamBaseURL string
	EnableTrading bool

	// Pair
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	// Market data
	BaseInterval       time.Duration
	TimeframeMultiples []int
	ReconnectDelay     time.Duration
	StreamHeartbeat    time.Duration

	// Position / risk
	CorePercent      decimal.Decimal
	MaxDailyTrades   int
	MinTradeInterval time.Duration
	MinSellProfitPct decimal.Decimal
	QuoteReservePct  decimal.Decimal

	// Sizing
	BuyFraction   decimal.Decimal
	SellFraction  decimal.Decimal
	QuantityScale int

	// Execution
	DryRun         bool
	CycleIntervals []time.Duration
	StrategyFile   string
	StrategyName   string

	// Database
	DBPath string

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		APIKey:             os.Getenv("EXCHANGE_API_KEY"),
		APISecret:          os.Getenv("EXCHANGE_API_SECRET"),
		RESTBaseURL:        getEnv("EXCHANGE_REST_URL", "https://api.mexc.com"),
		StreamBaseURL:      getEnv("EXCHANGE_STREAM_URL", "wss://wbs.mexc.com/ws"),
		EnableTrading:      getEnv("ENABLE_TRADING", "false") == "true",
		Symbol:             getEnv("SYMBOL", "BTCUSDT"),
		BaseAsset:          getEnv("BASE_ASSET", "BTC"),
		QuoteAsset:         getEnv("QUOTE_ASSET", "USDT"),
		BaseInterval:       getEnvDuration("BASE_INTERVAL", time.Minute),
		TimeframeMultiples: splitInts(getEnv("TIMEFRAME_MULTIPLES", "5,15,60")),
		ReconnectDelay:     getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		StreamHeartbeat:    getEnvDuration("STREAM_HEARTBEAT", 60*time.Second),
		CorePercent:        getEnvDecimal("CORE_PERCENT", "0.70"),
		MaxDailyTrades:     getEnvInt("MAX_DAILY_TRADES", 10),
		MinTradeInterval:   getEnvDuration("MIN_TRADE_INTERVAL", 15*time.Minute),
		MinSellProfitPct:   getEnvDecimal("MIN_SELL_PROFIT_PCT", "0"),
		QuoteReservePct:    getEnvDecimal("QUOTE_RESERVE_PCT", "0"),
		BuyFraction:        getEnvDecimal("BUY_FRACTION", "0.25"),
		SellFraction:       getEnvDecimal("SELL_FRACTION", "0.25"),
		QuantityScale:      getEnvInt("QUANTITY_SCALE", 6),
		DryRun:             getEnv("DRY_RUN", "true") == "true",
		CycleIntervals:     splitDurations(getEnv("CYCLE_INTERVALS", "1m,15m")),
		StrategyFile:       getEnv("STRATEGY_FILE", ""),
		StrategyName:       getEnv("STRATEGY_NAME", "accumulate"),
		DBPath:             getEnv("DB_PATH", "./data/accum.db"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvDecimal(key, def string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(def)
}

func splitInts(val string) []int {
	var out []int
	for _, p := range strings.Split(val, ",") {
		if t := strings.TrimSpace(p); t != "" {
			if i, err := strconv.Atoi(t); err == nil {
				out = append(out, i)
			}
		}
	}
	return out
}

func splitDurations(val string) []time.Duration {
	var out []time.Duration
	for _, p := range strings.Split(val, ",") {
		if t := strings.TrimSpace(p); t != "" {
			if d, err := time.ParseDuration(t); err == nil {
				out = append(out, d)
			}
		}
	}
	return out
}
