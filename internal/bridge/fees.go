package bridge

import (
	"fiatbridge/internal/currency"
	"fiatbridge/internal/ledger"
)

// FeeSchedule holds per-unit percentage fees for mint and melt operations.
// Immutable after construction; unconfigured units pay no fee.
type FeeSchedule struct {
	mint map[currency.Unit]float64
	melt map[currency.Unit]float64
}

// NewFeeSchedule copies the given fee tables into a schedule.
func NewFeeSchedule(mint, melt map[currency.Unit]float64) FeeSchedule {
	s := FeeSchedule{
		mint: make(map[currency.Unit]float64, len(mint)),
		melt: make(map[currency.Unit]float64, len(melt)),
	}
	for unit, pct := range mint {
		s.mint[unit] = pct
	}
	for unit, pct := range melt {
		s.melt[unit] = pct
	}
	return s
}

// Percent returns the fee percentage for a unit and operation, 0 if unset.
func (s FeeSchedule) Percent(unit currency.Unit, op ledger.Operation) float64 {
	switch op {
	case ledger.OpMint:
		return s.mint[unit]
	case ledger.OpMelt:
		return s.melt[unit]
	default:
		return 0
	}
}
