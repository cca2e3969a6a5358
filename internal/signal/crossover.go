package signal

import (
	"github.com/shopspring/decimal"

	"accum-core/internal/domain"
)

// CrossoverConfig tunes the plain MA crossover strategy.
type CrossoverConfig struct {
	ShortPeriod int
	LongPeriod  int
	// Threshold is the relative band around the long MA the short MA must
	// leave before a signal fires, e.g. 0.001 for 0.1%.
	Threshold decimal.Decimal
}

// Crossover recommends BUY when the short MA is above the long MA by more
// than the threshold band, SELL when it is below by more than the band,
// and HOLD inside the band.
type Crossover struct {
	cfg CrossoverConfig
}

func NewCrossover(cfg CrossoverConfig) *Crossover {
	if cfg.ShortPeriod <= 0 {
		cfg.ShortPeriod = 5
	}
	if cfg.LongPeriod <= cfg.ShortPeriod {
		cfg.LongPeriod = cfg.ShortPeriod * 4
	}
	return &Crossover{cfg: cfg}
}

func (c *Crossover) Name() string { return "ma_crossover" }

func (c *Crossover) Evaluate(snap Snapshot) domain.RebalancePlan {
	if len(snap.Prices) < c.cfg.LongPeriod {
		return hold("insufficient data")
	}

	short := SMA(snap.Prices, c.cfg.ShortPeriod)
	long := SMA(snap.Prices, c.cfg.LongPeriod)
	ind := domain.MAIndicators{Short: short, Long: long}

	one := decimal.NewFromInt(1)
	upper := long.Mul(one.Add(c.cfg.Threshold))
	lower := long.Mul(one.Sub(c.cfg.Threshold))

	plan := domain.RebalancePlan{
		Action:    domain.ActionHold,
		Reason:    "short MA inside threshold band",
		Price:     snap.Price,
		CostAvg:   snap.AvgCost,
		Tiers:     snap.Tiers,
		Indicator: ind,
	}
	switch {
	case short.GreaterThan(upper):
		plan.Action = domain.ActionBuy
		plan.Reason = "short MA above long MA"
	case short.LessThan(lower):
		plan.Action = domain.ActionSell
		plan.Reason = "short MA below long MA"
	}
	return plan
}
