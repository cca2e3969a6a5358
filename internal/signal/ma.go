package signal

import "github.com/shopspring/decimal"

// SMA calculates the simple moving average over the last period values.
// Too little data returns zero; callers must treat that as "insufficient
// data", never as a real average.
func SMA(values []decimal.Decimal, period int) decimal.Decimal {
	if period <= 0 || len(values) < period {
		return decimal.Zero
	}
	sum := decimal.Zero
	for i := len(values) - period; i < len(values); i++ {
		sum = sum.Add(values[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
