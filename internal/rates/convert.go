package rates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fiatbridge/internal/currency"
)

// Converter translates amounts between a configured currency and sats using
// the cached exchange rate. Both directions round toward the ceiling: the
// backend receives no less than fair value on the way in, and the customer
// is charged no less than fair value on the way out.
type Converter struct {
	cache *Cache
}

// NewConverter builds a converter over the given cache.
func NewConverter(cache *Cache) *Converter {
	return &Converter{cache: cache}
}

// ToBase converts a currency amount into sats, rounding up.
func (c *Converter) ToBase(ctx context.Context, amount currency.Amount) (int64, error) {
	rate, err := c.FreshRate(ctx, amount.Unit)
	if err != nil {
		return 0, err
	}
	return ToBaseAt(amount.Value, rate), nil
}

// FromBase converts sats into a currency amount, rounding up.
func (c *Converter) FromBase(ctx context.Context, sats int64, unit currency.Unit) (currency.Amount, error) {
	rate, err := c.FreshRate(ctx, unit)
	if err != nil {
		return currency.Amount{}, err
	}
	return currency.NewAmount(unit, FromBaseAt(sats, rate)), nil
}

// FreshRate refreshes the cache when stale and returns the unit's rate.
// Callers that convert and record the rate should read it once here and use
// the At helpers, so the recorded rate is the one actually applied.
func (c *Converter) FreshRate(ctx context.Context, unit currency.Unit) (decimal.Decimal, error) {
	if err := c.cache.EnsureFresh(ctx); err != nil {
		return decimal.Decimal{}, fmt.Errorf("convert %s: %w", unit, err)
	}
	return c.cache.Rate(unit)
}

// ToBaseAt converts a sub-unit value into sats at the given rate, rounding up.
func ToBaseAt(value int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(value).Mul(rate).Ceil().IntPart()
}

// FromBaseAt converts sats into a sub-unit value at the given rate, rounding up.
func FromBaseAt(sats int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(sats).Div(rate).Ceil().IntPart()
}
