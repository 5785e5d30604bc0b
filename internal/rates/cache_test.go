package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fiatbridge/internal/currency"
)

type fakeSource struct {
	mu      sync.Mutex
	fetches int32
	delay   time.Duration
	rates   map[currency.Unit]decimal.Decimal
	err     error
}

func (f *fakeSource) FetchRates(ctx context.Context, units []currency.Currency) (map[currency.Unit]decimal.Decimal, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[currency.Unit]decimal.Decimal, len(f.rates))
	for unit, rate := range f.rates {
		out[unit] = rate
	}
	return out, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) fetchCount() int32 {
	return atomic.LoadInt32(&f.fetches)
}

func newTestCache(source Source, ttl time.Duration) *Cache {
	return NewCache(source, CacheOptions{
		Units:         testUnits(),
		ReferenceUnit: "usd",
		TTL:           ttl,
	}, noopLogger())
}

func TestEnsureFreshSkipsNetworkWhileFresh(t *testing.T) {
	source := &fakeSource{rates: map[currency.Unit]decimal.Decimal{
		"usd": decimal.NewFromInt(20),
	}}
	cache := newTestCache(source, time.Hour)

	for i := 0; i < 3; i++ {
		if err := cache.EnsureFresh(context.Background()); err != nil {
			t.Fatalf("EnsureFresh should succeed: %v", err)
		}
	}

	if got := source.fetchCount(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}

	rate, err := cache.Rate("usd")
	if err != nil {
		t.Fatalf("Rate should succeed: %v", err)
	}
	if rate.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("expected rate 20, got %s", rate.String())
	}
}

func TestEnsureFreshSingleFlight(t *testing.T) {
	source := &fakeSource{
		delay: 50 * time.Millisecond,
		rates: map[currency.Unit]decimal.Decimal{"usd": decimal.NewFromInt(20)},
	}
	cache := newTestCache(source, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cache.EnsureFresh(context.Background()); err != nil {
				t.Errorf("EnsureFresh should succeed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := source.fetchCount(); got != 1 {
		t.Fatalf("concurrent callers should share one fetch, got %d", got)
	}
}

func TestRefreshFailsWithoutReferenceRate(t *testing.T) {
	source := &fakeSource{rates: map[currency.Unit]decimal.Decimal{
		"eur": decimal.NewFromInt(25),
	}}
	cache := newTestCache(source, time.Hour)

	err := cache.EnsureFresh(context.Background())
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}

	// Timestamp must not advance: the next call fetches again.
	_ = cache.EnsureFresh(context.Background())
	if got := source.fetchCount(); got != 2 {
		t.Fatalf("failed refresh should not advance the timestamp, fetches=%d", got)
	}

	// Rates that were parsed stay available as stale values.
	if _, err := cache.Rate("eur"); err != nil {
		t.Fatalf("eur rate should be retained: %v", err)
	}
	if _, err := cache.Rate("usd"); err == nil {
		t.Fatal("usd rate should be unavailable")
	}
}

func TestRefreshKeepsStaleRatesOnSourceError(t *testing.T) {
	source := &fakeSource{rates: map[currency.Unit]decimal.Decimal{
		"usd": decimal.NewFromInt(20),
		"eur": decimal.NewFromInt(25),
	}}
	cache := newTestCache(source, time.Hour)

	if err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("initial refresh should succeed: %v", err)
	}

	source.setErr(errors.New("boom"))
	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("refresh should propagate the source error")
	}

	rate, err := cache.Rate("eur")
	if err != nil {
		t.Fatalf("stale rate should remain usable: %v", err)
	}
	if rate.Cmp(decimal.NewFromInt(25)) != 0 {
		t.Fatalf("expected stale rate 25, got %s", rate.String())
	}
}

func TestRefreshKeepsUnitMissingFromResponse(t *testing.T) {
	source := &fakeSource{rates: map[currency.Unit]decimal.Decimal{
		"usd": decimal.NewFromInt(20),
		"eur": decimal.NewFromInt(25),
	}}
	cache := newTestCache(source, time.Hour)

	if err := cache.EnsureFresh(context.Background()); err != nil {
		t.Fatalf("initial refresh should succeed: %v", err)
	}

	source.mu.Lock()
	delete(source.rates, "eur")
	source.mu.Unlock()

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh should succeed without eur: %v", err)
	}

	rate, err := cache.Rate("eur")
	if err != nil {
		t.Fatalf("eur should keep its last known rate: %v", err)
	}
	if rate.Cmp(decimal.NewFromInt(25)) != 0 {
		t.Fatalf("expected retained rate 25, got %s", rate.String())
	}
}
