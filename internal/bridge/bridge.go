package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"fiatbridge/internal/currency"
	"fiatbridge/internal/ledger"
	"fiatbridge/internal/lightning"
	"fiatbridge/internal/rates"
)

// Recorder appends accounting entries. Satisfied by *ledger.Store.
type Recorder interface {
	AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
}

// Options parameterise the fiat bridge.
type Options struct {
	// Units the bridge accepts in addition to the wrapped backend's own.
	Units []currency.Currency
	Fees  FeeSchedule
	// Recorder may be nil, in which case accounting is a no-op.
	Recorder Recorder
}

// FiatBackend wraps a sat-denominated payment backend and adds support for
// fiat units: amounts are converted through the rate cache, percentage fees
// are applied on mint and melt, melt quotes are re-validated against the
// wrapped backend's current terms before settling, and every completed
// operation is recorded in the ledger. Calls in units outside the configured
// fiat set pass through to the wrapped backend unchanged.
type FiatBackend struct {
	backend  lightning.Backend
	convert  *rates.Converter
	fees     FeeSchedule
	recorder Recorder
	logger   zerolog.Logger

	units map[currency.Unit]currency.Currency

	mu     sync.Mutex
	minted map[currency.Unit]int64
	melted map[currency.Unit]int64
}

// New constructs the fiat bridge over a wrapped backend. The wrapped backend
// must settle in sat and at least one fiat unit must be configured.
func New(backend lightning.Backend, cache *rates.Cache, opts Options, logger zerolog.Logger) (*FiatBackend, error) {
	if !supportsSat(backend) {
		return nil, errors.New("wrapped payment backend must support the sat unit")
	}
	if len(opts.Units) == 0 {
		return nil, errors.New("no fiat units configured")
	}

	units := make(map[currency.Unit]currency.Currency, len(opts.Units))
	minted := make(map[currency.Unit]int64, len(opts.Units))
	melted := make(map[currency.Unit]int64, len(opts.Units))
	for _, c := range opts.Units {
		units[c.Unit] = c
		minted[c.Unit] = 0
		melted[c.Unit] = 0
	}

	return &FiatBackend{
		backend:  backend,
		convert:  rates.NewConverter(cache),
		fees:     opts.Fees,
		recorder: opts.Recorder,
		logger:   logger.With().Str("component", "fiat_bridge").Logger(),
		units:    units,
		minted:   minted,
		melted:   melted,
	}, nil
}

func supportsSat(backend lightning.Backend) bool {
	for _, unit := range backend.SupportedUnits() {
		if unit == currency.Sat {
			return true
		}
	}
	return false
}

// SupportedUnits is the wrapped backend's set plus the configured fiat units.
func (b *FiatBackend) SupportedUnits() []currency.Unit {
	supported := b.backend.SupportedUnits()
	out := make([]currency.Unit, 0, len(supported)+len(b.units))
	out = append(out, supported...)
	for unit := range b.units {
		out = append(out, unit)
	}
	return out
}

// Status reports the wrapped backend's status unchanged.
func (b *FiatBackend) Status(ctx context.Context) (lightning.StatusResponse, error) {
	return b.backend.Status(ctx)
}

// CreateInvoice issues an invoice. For fiat units the mint fee is added to
// the principal, the gross amount is converted to sats (rounding up), and on
// success the issuance is recorded.
func (b *FiatBackend) CreateInvoice(ctx context.Context, amount currency.Amount, opts lightning.InvoiceOptions) (lightning.InvoiceResponse, error) {
	if !b.isFiat(amount.Unit) {
		return b.backend.CreateInvoice(ctx, amount, opts)
	}

	feePct := b.fees.Percent(amount.Unit, ledger.OpMint)
	gross := grossWithFee(amount.Value, feePct)
	feeAmount := gross - amount.Value

	rate, err := b.convert.FreshRate(ctx, amount.Unit)
	if err != nil {
		return invoiceFailure("failed to create invoice: %v", err), nil
	}
	sats := rates.ToBaseAt(gross, rate)

	b.logger.Info().
		Str("amount", amount.String()).
		Float64("mint_fee_pct", feePct).
		Int64("sats", sats).
		Msg("creating invoice")

	resp, err := b.backend.CreateInvoice(ctx, currency.NewAmount(currency.Sat, sats), opts)
	if err != nil {
		return resp, err
	}

	if resp.Ok {
		b.addMinted(amount.Unit, amount.Value)
		b.record(ctx, ledger.Entry{
			Unit:         string(amount.Unit),
			Amount:       amount.Value,
			Operation:    ledger.OpMint,
			ExchangeRate: rate,
			SatAmount:    sats,
			FeePercent:   feePct,
			FeeAmount:    feeAmount,
		})
	}

	return resp, nil
}

// PayInvoice settles an accepted melt quote. For fiat units the quote is
// re-derived against the wrapped backend's current terms first; settlement
// is refused when the rate or fees have moved against the original quote.
func (b *FiatBackend) PayInvoice(ctx context.Context, quote lightning.MeltQuote, feeLimitMsat int64) (lightning.PaymentResponse, error) {
	if !b.isFiat(quote.Unit) {
		return b.backend.PayInvoice(ctx, quote, feeLimitMsat)
	}
	unit := quote.Unit

	rate, err := b.convert.FreshRate(ctx, unit)
	if err != nil {
		return paymentFailure("payment validation failed: %v", err), nil
	}

	fresh, err := b.GetPaymentQuote(ctx, lightning.QuoteRequest{Request: quote.Request, Unit: unit})
	if err != nil {
		return paymentFailure("payment validation failed: %v", err), nil
	}

	reserveSat := ceilDiv(quote.FeeReserve, 1000)
	reserve := currency.NewAmount(unit, rates.FromBaseAt(reserveSat, rate))

	if msg := requoteFailure(quote, fresh, reserve); msg != "" {
		b.logger.Error().
			Str("unit", string(unit)).
			Str("reason", msg).
			Msg("refusing to settle melt quote")
		return paymentFailure("%s", msg), nil
	}

	satAmount := rates.ToBaseAt(quote.Amount, rate)

	satQuote := quote
	satQuote.Unit = currency.Sat
	satQuote.Amount = satAmount

	resp, err := b.backend.PayInvoice(ctx, satQuote, feeLimitMsat)
	if err != nil {
		return resp, err
	}

	if resp.Fee != nil {
		fiatFee := currency.NewAmount(unit, rates.FromBaseAt(resp.Fee.Value, rate))
		resp.Fee = &fiatFee
	}

	if resp.Result == lightning.PaymentSettled {
		var feeAmount int64
		if resp.Fee != nil {
			feeAmount = resp.Fee.Value
		}
		b.addMelted(unit, quote.Amount)
		b.record(ctx, ledger.Entry{
			Unit:         string(unit),
			Amount:       quote.Amount,
			Operation:    ledger.OpMelt,
			ExchangeRate: rate,
			SatAmount:    satAmount,
			FeePercent:   b.fees.Percent(unit, ledger.OpMelt),
			FeeAmount:    feeAmount,
		})
	}

	return resp, nil
}

// GetPaymentQuote prices a payment request. For fiat units the wrapped
// backend is quoted in sat, the melt fee is applied on the sat principal,
// and the total is converted to the requested unit, rounding up.
func (b *FiatBackend) GetPaymentQuote(ctx context.Context, req lightning.QuoteRequest) (lightning.PaymentQuote, error) {
	lnQuote, err := b.backend.GetPaymentQuote(ctx, lightning.QuoteRequest{Request: req.Request, Unit: currency.Sat})
	if err != nil {
		return lnQuote, err
	}
	if !b.isFiat(req.Unit) {
		return lnQuote, nil
	}

	if lnQuote.Error != "" {
		b.logger.Error().
			Str("unit", string(req.Unit)).
			Str("error", lnQuote.Error).
			Msg("wrapped backend failed to quote payment request")
		return lightning.PaymentQuote{
			CheckingID: lnQuote.CheckingID,
			Amount:     currency.NewAmount(req.Unit, 0),
			Fee:        currency.NewAmount(req.Unit, 0),
			Error:      lnQuote.Error,
		}, nil
	}

	rate, err := b.convert.FreshRate(ctx, req.Unit)
	if err != nil {
		return quoteFailure(lnQuote.CheckingID, req.Unit, err), nil
	}

	meltPct := b.fees.Percent(req.Unit, ledger.OpMelt)
	meltFeeSat := ceilPercent(lnQuote.Amount.Value, meltPct)
	totalSat := lnQuote.Amount.Value + meltFeeSat

	feeFiat := currency.NewAmount(req.Unit, rates.FromBaseAt(lnQuote.Fee.Value, rate))
	totalFiat := currency.NewAmount(req.Unit, rates.FromBaseAt(totalSat, rate))

	b.logger.Debug().
		Int64("ln_amount_sat", lnQuote.Amount.Value).
		Int64("ln_fee_sat", lnQuote.Fee.Value).
		Float64("melt_fee_pct", meltPct).
		Int64("total_sat", totalSat).
		Str("unit", string(req.Unit)).
		Msg("payment quote computed")

	return lightning.PaymentQuote{
		CheckingID: lnQuote.CheckingID,
		Amount:     totalFiat,
		Fee:        feeFiat,
	}, nil
}

// GetInvoiceStatus is a passthrough; checking IDs are currency-agnostic.
func (b *FiatBackend) GetInvoiceStatus(ctx context.Context, checkingID string) (lightning.PaymentStatus, error) {
	return b.backend.GetInvoiceStatus(ctx, checkingID)
}

// GetPaymentStatus is a passthrough; checking IDs are currency-agnostic.
func (b *FiatBackend) GetPaymentStatus(ctx context.Context, checkingID string) (lightning.PaymentStatus, error) {
	return b.backend.GetPaymentStatus(ctx, checkingID)
}

// PaidInvoicesStream forwards the wrapped backend's stream unchanged.
func (b *FiatBackend) PaidInvoicesStream(ctx context.Context) (<-chan string, error) {
	return b.backend.PaidInvoicesStream(ctx)
}

// MintedTotals returns a copy of the advisory minted counters.
func (b *FiatBackend) MintedTotals() map[currency.Unit]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyTotals(b.minted)
}

// MeltedTotals returns a copy of the advisory melted counters.
func (b *FiatBackend) MeltedTotals() map[currency.Unit]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyTotals(b.melted)
}

func (b *FiatBackend) isFiat(unit currency.Unit) bool {
	_, ok := b.units[unit]
	return ok
}

func (b *FiatBackend) addMinted(unit currency.Unit, value int64) {
	b.mu.Lock()
	b.minted[unit] += value
	b.mu.Unlock()
}

func (b *FiatBackend) addMelted(unit currency.Unit, value int64) {
	b.mu.Lock()
	b.melted[unit] += value
	b.mu.Unlock()
}

// record appends an accounting entry best-effort: the money has already
// moved, so storage failures are logged and never surfaced to the caller.
func (b *FiatBackend) record(ctx context.Context, entry ledger.Entry) {
	if b.recorder == nil {
		return
	}
	if _, err := b.recorder.AppendEntry(ctx, entry); err != nil {
		b.logger.Error().Err(err).
			Str("unit", entry.Unit).
			Str("operation", string(entry.Operation)).
			Msg("failed to record accounting entry")
	}
}

// requoteFailure re-checks an accepted quote against the wrapped backend's
// current terms. Returns the refusal reason, or "" when settlement may
// proceed. A failed re-quote refuses settlement with the backend's own cause.
func requoteFailure(original lightning.MeltQuote, fresh lightning.PaymentQuote, reserve currency.Amount) string {
	if fresh.Error != "" {
		return fmt.Sprintf("payment validation failed: %s", fresh.Error)
	}
	if fresh.Amount.Unit != original.Unit {
		return fmt.Sprintf("unit mismatch: original %s, current %s; please request a new quote",
			original.Unit, fresh.Amount.Unit)
	}
	if original.Amount < fresh.Amount.Value {
		return fmt.Sprintf("exchange rate has changed: original %d %s, current %d %s; please request a new quote",
			original.Amount, original.Unit, fresh.Amount.Value, original.Unit)
	}
	if reserve.Value < fresh.Fee.Value {
		return fmt.Sprintf("lightning network fees have increased: reserved %d %s, current %d %s; please request a new quote",
			reserve.Value, original.Unit, fresh.Fee.Value, original.Unit)
	}
	return ""
}

func invoiceFailure(format string, args ...interface{}) lightning.InvoiceResponse {
	return lightning.InvoiceResponse{Ok: false, Error: fmt.Sprintf(format, args...)}
}

func paymentFailure(format string, args ...interface{}) lightning.PaymentResponse {
	return lightning.PaymentResponse{Result: lightning.PaymentFailed, Error: fmt.Sprintf(format, args...)}
}

func quoteFailure(checkingID string, unit currency.Unit, err error) lightning.PaymentQuote {
	return lightning.PaymentQuote{
		CheckingID: checkingID,
		Amount:     currency.NewAmount(unit, 0),
		Fee:        currency.NewAmount(unit, 0),
		Error:      fmt.Sprintf("failed to calculate quote in %s: %v", unit, err),
	}
}

func copyTotals(totals map[currency.Unit]int64) map[currency.Unit]int64 {
	out := make(map[currency.Unit]int64, len(totals))
	for unit, value := range totals {
		out[unit] = value
	}
	return out
}

var _ lightning.Backend = (*FiatBackend)(nil)
