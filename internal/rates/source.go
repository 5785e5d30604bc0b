package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fiatbridge/internal/currency"
)

const simplePricePath = "/simple/price"

var satsPerBTC = decimal.NewFromInt(100_000_000)

// Source retrieves exchange rates for a basket of currencies in one request.
// The returned map holds, per unit, how many sats one smallest sub-unit of
// that currency is worth. Units the source has no price for are omitted.
type Source interface {
	FetchRates(ctx context.Context, units []currency.Currency) (map[currency.Unit]decimal.Decimal, error)
}

// CoinGeckoOptions parameterise the CoinGecko price fetcher.
type CoinGeckoOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// CoinGecko fetches BTC prices from the CoinGecko simple price API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko rate source.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "rate_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchRates requests the BTC price in every configured currency's main unit
// and converts each to sats per smallest sub-unit.
func (c *CoinGecko) FetchRates(ctx context.Context, units []currency.Currency) (map[currency.Unit]decimal.Decimal, error) {
	if len(units) == 0 {
		return nil, errors.New("no units to fetch rates for")
	}

	codes := make([]string, 0, len(units))
	for _, u := range units {
		codes = append(codes, string(u.Unit))
	}

	query := url.Values{}
	query.Set("ids", "bitcoin")
	query.Set("vs_currencies", strings.Join(codes, ","))

	endpoint := c.baseURL + simplePricePath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var priceRes priceResponse
	decoder := json.NewDecoder(strings.NewReader(string(payload)))
	decoder.UseNumber()
	if err := decoder.Decode(&priceRes); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	rates := make(map[currency.Unit]decimal.Decimal, len(units))
	for _, u := range units {
		raw, ok := priceRes.Bitcoin[string(u.Unit)]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(raw.String())
		if err != nil || !price.IsPositive() {
			continue
		}
		// price is main units per BTC; scale to smallest sub-units.
		subUnitsPerBTC := price.Shift(int32(u.Decimals))
		rates[u.Unit] = satsPerBTC.Div(subUnitsPerBTC)
	}

	return rates, nil
}

type priceResponse struct {
	Bitcoin map[string]json.Number `json:"bitcoin"`
}

type errorResponse struct {
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Error string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("rate api error (%d): %s", status, apiErr.Status.ErrorMessage)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("rate api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("rate api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("rate api error (%d)", status)
}

var _ Source = (*CoinGecko)(nil)
