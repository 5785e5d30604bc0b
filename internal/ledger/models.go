package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation distinguishes the two monetary movements.
type Operation string

const (
	OpMint Operation = "mint"
	OpMelt Operation = "melt"
)

// Entry is one immutable accounting record for a completed mint or melt.
// The entry log is the system of record; in-memory counters are advisory.
type Entry struct {
	ID           int64
	Unit         string
	Amount       int64
	Operation    Operation
	ExchangeRate decimal.Decimal
	SatAmount    int64
	FeePercent   float64
	FeeAmount    int64
	CreatedAt    time.Time
}

// Summary aggregates entries for one unit.
type Summary struct {
	Unit      string
	Minted    int64
	Melted    int64
	MintFees  int64
	MeltFees  int64
	MintCount int64
	MeltCount int64
}

// SummaryFilter narrows a summary query. Zero values mean no filtering.
type SummaryFilter struct {
	Unit  string
	Start *time.Time
	End   *time.Time
}

// EntriesFilter narrows an entry listing.
type EntriesFilter struct {
	Unit      string
	Operation Operation
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

// RateSnapshot records the exchange rate observed at a monitor tick.
type RateSnapshot struct {
	Bucket    time.Time
	Unit      string
	Rate      decimal.Decimal
	CreatedAt time.Time
}
