package signal

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileConfig is one strategy entry in the YAML strategy file.
type FileConfig struct {
	Name       string             `yaml:"name"`
	Type       string             `yaml:"type"`
	Parameters map[string]float64 `yaml:"parameters"`
}

// ConfigFile is the top-level YAML structure.
type ConfigFile struct {
	Strategies []FileConfig `yaml:"strategies"`
}

// LoadConfig reads strategy definitions from a YAML file.
func LoadConfig(path string) ([]FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return file.Strategies, nil
}

// Build turns a file entry into a runnable strategy.
func Build(cfg FileConfig) (Strategy, error) {
	p := func(key string) decimal.Decimal {
		return decimal.NewFromFloat(cfg.Parameters[key])
	}
	pi := func(key string) int {
		return int(cfg.Parameters[key])
	}

	switch cfg.Type {
	case "ma_crossover":
		return NewCrossover(CrossoverConfig{
			ShortPeriod: pi("short_period"),
			LongPeriod:  pi("long_period"),
			Threshold:   p("threshold"),
		}), nil
	case "accumulate":
		return NewAccumulate(AccumulateConfig{
			ShortPeriod:           pi("short_period"),
			LongPeriod:            pi("long_period"),
			TakeProfitPct:         p("take_profit_pct"),
			RebalanceMinNotional:  p("rebalance_min_notional"),
			RebalanceThresholdPct: p("rebalance_threshold_pct"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", cfg.Type)
	}
}
