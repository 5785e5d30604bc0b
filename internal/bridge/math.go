package bridge

import "github.com/shopspring/decimal"

var dec100 = decimal.NewFromInt(100)

// grossWithFee applies a percentage fee on top of a principal, rounding up.
func grossWithFee(value int64, pct float64) int64 {
	if pct == 0 {
		return value
	}
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct).Div(dec100))
	return decimal.NewFromInt(value).Mul(factor).Ceil().IntPart()
}

// ceilPercent computes pct% of value, rounding up.
func ceilPercent(value int64, pct float64) int64 {
	if pct == 0 {
		return 0
	}
	return decimal.NewFromInt(value).Mul(decimal.NewFromFloat(pct)).Div(dec100).Ceil().IntPart()
}

// ceilDiv divides rounding toward the ceiling.
func ceilDiv(value, divisor int64) int64 {
	return (value + divisor - 1) / divisor
}
