package lightning

import (
	"context"
	"time"

	"fiatbridge/internal/currency"
)

// PaymentResult classifies the outcome of an outgoing payment.
type PaymentResult int

const (
	PaymentUnknown PaymentResult = iota
	PaymentPending
	PaymentSettled
	PaymentFailed
)

func (r PaymentResult) String() string {
	switch r {
	case PaymentPending:
		return "pending"
	case PaymentSettled:
		return "settled"
	case PaymentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusResponse reports backend health and funds.
type StatusResponse struct {
	Balance currency.Amount
	Error   string
}

// InvoiceOptions carry the optional invoice description fields.
type InvoiceOptions struct {
	Memo                string
	DescriptionHash     []byte
	UnhashedDescription string
}

// InvoiceResponse is the result of creating an invoice. CheckingID is an
// opaque key into the backend's own state and must never be rewritten.
type InvoiceResponse struct {
	Ok             bool
	CheckingID     string
	PaymentRequest string
	Error          string
}

// PaymentResponse is the result of paying an invoice. A FAILED result with a
// populated Error is a known-failed payment; transport failures are returned
// as Go errors instead.
type PaymentResponse struct {
	Result   PaymentResult
	Fee      *currency.Amount
	Preimage string
	Error    string
}

// PaymentQuote prices a payment request in the requested unit.
type PaymentQuote struct {
	CheckingID string
	Amount     currency.Amount
	Fee        currency.Amount
	Error      string
}

// QuoteRequest asks for a payment quote in a specific unit.
type QuoteRequest struct {
	Request string
	Unit    currency.Unit
}

// MeltQuote is an accepted quote being settled. FeeReserve is in msat.
type MeltQuote struct {
	Quote      string
	Request    string
	CheckingID string
	Unit       currency.Unit
	Amount     int64
	FeeReserve int64
	Expiry     time.Time
}

// PaymentStatus reports the state of an invoice or payment by checking ID.
type PaymentStatus struct {
	Result   PaymentResult
	Fee      *currency.Amount
	Preimage string
}

// Backend is the capability set of a payment backend. It is implemented both
// by native sat backends and by the conversion bridge wrapping them.
type Backend interface {
	SupportedUnits() []currency.Unit
	Status(ctx context.Context) (StatusResponse, error)
	CreateInvoice(ctx context.Context, amount currency.Amount, opts InvoiceOptions) (InvoiceResponse, error)
	PayInvoice(ctx context.Context, quote MeltQuote, feeLimitMsat int64) (PaymentResponse, error)
	GetPaymentQuote(ctx context.Context, req QuoteRequest) (PaymentQuote, error)
	GetInvoiceStatus(ctx context.Context, checkingID string) (PaymentStatus, error)
	GetPaymentStatus(ctx context.Context, checkingID string) (PaymentStatus, error)
	PaidInvoicesStream(ctx context.Context) (<-chan string, error)
}
