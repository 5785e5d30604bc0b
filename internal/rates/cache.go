package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fiatbridge/internal/currency"
)

// ErrRateUnavailable indicates no usable rate exists for the requested unit.
var ErrRateUnavailable = errors.New("rates: no exchange rate available")

// CacheOptions parameterise the rate cache.
type CacheOptions struct {
	Units []currency.Currency
	// ReferenceUnit must be present in every refresh for it to count as a
	// success; without it the refresh fails for all units.
	ReferenceUnit currency.Unit
	TTL           time.Duration
}

// Cache holds the latest exchange rates and refreshes them on expiry. A
// single mutex serialises refreshers: the lock is held across the fetch, so
// concurrent callers wait for the in-flight refresh and then observe the
// fresh timestamp instead of issuing duplicate fetches.
type Cache struct {
	source Source
	opts   CacheOptions
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	rates     map[currency.Unit]decimal.Decimal
	fetchedAt time.Time
}

// NewCache constructs a rate cache over the given source.
func NewCache(source Source, opts CacheOptions, logger zerolog.Logger) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	opts.TTL = ttl

	return &Cache{
		source: source,
		opts:   opts,
		logger: logger.With().Str("component", "rate_cache").Logger(),
		now:    time.Now,
		rates:  make(map[currency.Unit]decimal.Decimal),
	}
}

// EnsureFresh refreshes the cache if it is older than the TTL. Returns
// without network access while the cache is fresh.
func (c *Cache) EnsureFresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Sub(c.fetchedAt) < c.opts.TTL {
		return nil
	}
	return c.refreshLocked(ctx)
}

// Refresh fetches rates unconditionally, bypassing the TTL gate.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	fetched, err := c.source.FetchRates(ctx, c.opts.Units)
	if err != nil {
		c.logger.Error().Err(err).Msg("rate fetch failed")
		return fmt.Errorf("fetch exchange rates: %w", err)
	}

	// Units absent from the response keep their last known rate.
	for unit, rate := range fetched {
		c.rates[unit] = rate
	}

	if _, ok := c.rates[c.opts.ReferenceUnit]; !ok {
		return fmt.Errorf("%w: reference rate for %s missing from response",
			ErrRateUnavailable, c.opts.ReferenceUnit)
	}

	c.fetchedAt = c.now()
	c.logger.Debug().Int("units", len(fetched)).Msg("exchange rates refreshed")
	return nil
}

// Rate returns the cached sat-per-sub-unit rate for a unit.
func (c *Cache) Rate(unit currency.Unit) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate, ok := c.rates[unit]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w for %s", ErrRateUnavailable, unit)
	}
	return rate, nil
}

// Rates returns a copy of all cached rates.
func (c *Cache) Rates() map[currency.Unit]decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[currency.Unit]decimal.Decimal, len(c.rates))
	for unit, rate := range c.rates {
		out[unit] = rate
	}
	return out
}
