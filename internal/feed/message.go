package feed

import (
	"time"

	"github.com/shopspring/decimal"

	"deskcore/internal/book"
)

// Ticker is the rolling 24h market summary pushed on ticker channels.
type Ticker struct {
	Symbol        string          `json:"symbol"`
	Last          decimal.Decimal `json:"last"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        decimal.Decimal `json:"volume"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	At            time.Time       `json:"at"`
}

// Trade is one executed print pushed on trade channels.
type Trade struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Side     string          `json:"side"` // "buy" or "sell"
	At       time.Time       `json:"at"`
}

// Message is one parsed upstream push. Exactly one payload field is set,
// matching the key's channel.
type Message struct {
	Key    Key
	Book   *book.Snapshot
	Ticker *Ticker
	Trades []Trade
}
