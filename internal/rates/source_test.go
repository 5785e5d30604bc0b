package rates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fiatbridge/internal/currency"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testUnits() []currency.Currency {
	return []currency.Currency{
		{Unit: "usd", Decimals: 2},
		{Unit: "eur", Decimals: 2},
	}
}

func TestFetchRatesComputesSatPerSubUnit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Fatalf("expected ids=bitcoin, got %q", got)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "usd,eur" {
			t.Fatalf("expected vs_currencies=usd,eur, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bitcoin": map[string]any{
				"usd": 50000,
				"eur": 40000,
			},
		})
	}))
	defer srv.Close()

	source := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	fetched, err := source.FetchRates(context.Background(), testUnits())
	if err != nil {
		t.Fatalf("FetchRates should succeed: %v", err)
	}

	// 50,000 USD/BTC with 2 decimals is 5,000,000 cents/BTC, so one cent
	// is worth 100,000,000 / 5,000,000 = 20 sats.
	if rate := fetched["usd"]; rate.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("expected 20 sat per cent, got %s", rate.String())
	}
	if rate := fetched["eur"]; rate.Cmp(decimal.NewFromInt(25)) != 0 {
		t.Fatalf("expected 25 sat per eurocent, got %s", rate.String())
	}
}

func TestFetchRatesOmitsMissingAndZeroPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bitcoin": map[string]any{
				"usd": 50000,
				"eur": 0,
			},
		})
	}))
	defer srv.Close()

	source := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	fetched, err := source.FetchRates(context.Background(), testUnits())
	if err != nil {
		t.Fatalf("FetchRates should succeed: %v", err)
	}
	if _, ok := fetched["usd"]; !ok {
		t.Fatal("usd rate should be present")
	}
	if _, ok := fetched["eur"]; ok {
		t.Fatal("zero-priced eur should be omitted")
	}
}

func TestFetchRatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"error_message": "rate limited"},
		})
	}))
	defer srv.Close()

	source := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if _, err := source.FetchRates(context.Background(), testUnits()); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}

func TestFetchRatesNoUnits(t *testing.T) {
	source := NewCoinGecko(CoinGeckoOptions{}, noopLogger())
	if _, err := source.FetchRates(context.Background(), nil); err == nil {
		t.Fatal("empty unit list should return an error")
	}
}
