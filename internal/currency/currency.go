package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit identifies a currency by its lowercase code, e.g. "sat" or "usd".
type Unit string

// Sat is the unit the wrapped Lightning backend settles in.
const Sat Unit = "sat"

// Currency pairs a unit with its decimal precision (sub-units per main
// unit, e.g. 2 for cents). The set of currencies is fixed at process start.
type Currency struct {
	Unit     Unit
	Decimals int
}

// ParseUnit normalises a currency code.
func ParseUnit(code string) Unit {
	return Unit(strings.ToLower(strings.TrimSpace(code)))
}

// Amount is an integer number of sub-units of a single currency. Values are
// never fractional; crossing currencies requires explicit conversion.
type Amount struct {
	Unit  Unit
	Value int64
}

// NewAmount builds an amount in the given unit.
func NewAmount(unit Unit, value int64) Amount {
	return Amount{Unit: unit, Value: value}
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Value, a.Unit)
}

// Format renders the amount in main units for display, e.g. 1050 with two
// decimals becomes "10.50".
func (a Amount) Format(decimals int) string {
	return decimal.New(a.Value, -int32(decimals)).StringFixed(int32(decimals))
}
