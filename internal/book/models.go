package book

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// PriceLevel is one (price, quantity) pair on a book side.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Snapshot is a full-replace view of one book: bids best-first (descending
// price), asks best-first (ascending price). There is no incremental
// patching; each snapshot fully supersedes the previous one for its key.
type Snapshot struct {
	Symbol     string       `json:"symbol"`
	Market     MarketType   `json:"market"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

var errBadLevel = errors.New("level with negative price or quantity")

// Validate rejects snapshots that would corrupt derived state. Empty sides
// are legal; negative numbers are not.
func (s *Snapshot) Validate() error {
	if s == nil {
		return errors.New("nil snapshot")
	}
	if s.Symbol == "" {
		return errors.New("snapshot without symbol")
	}
	for _, lvl := range s.Bids {
		if lvl.Price.IsNegative() || lvl.Quantity.IsNegative() {
			return errBadLevel
		}
	}
	for _, lvl := range s.Asks {
		if lvl.Price.IsNegative() || lvl.Quantity.IsNegative() {
			return errBadLevel
		}
	}
	return nil
}

// DepthPoint is one renderable row: the running depth total plus the
// per-row quantity normalized against the heaviest single row.
type DepthPoint struct {
	Price        decimal.Decimal `json:"price"`
	Cumulative   decimal.Decimal `json:"cumulative"`
	PercentOfMax float64         `json:"percentOfMax"`
}

// DepthSeries is the aggregated, renderable form of a Snapshot.
// Spread fields are null when either side is empty.
type DepthSeries struct {
	Bids          []DepthPoint        `json:"bids"`
	Asks          []DepthPoint        `json:"asks"`
	Spread        decimal.NullDecimal `json:"spread"`
	SpreadPercent decimal.NullDecimal `json:"spreadPercent"`
	MaxVolume     decimal.Decimal     `json:"maxVolume"`
}
