package book

import (
	"github.com/shopspring/decimal"
)

// DefaultRowLimit is the per-side row budget; levels past it do not
// participate in cumulative totals.
const DefaultRowLimit = 25

var one = decimal.NewFromInt(1)

// Aggregator turns raw snapshots into renderable depth series. Pure
// transform, no I/O, no retained state: every snapshot is recomputed from
// scratch. Snapshots can arrive out of order relative to true exchange
// time, so diffing against a previous book would silently corrupt state;
// full replace keeps each computation idempotent given its input.
type Aggregator struct {
	rowLimit int
}

func NewAggregator(rowLimit int) *Aggregator {
	if rowLimit < 1 {
		rowLimit = DefaultRowLimit
	}
	return &Aggregator{rowLimit: rowLimit}
}

// Compute aggregates one snapshot. Sides are assumed best-first
// (bids descending, asks ascending by price).
func (a *Aggregator) Compute(s Snapshot) DepthSeries {
	bids := truncate(s.Bids, a.rowLimit)
	asks := truncate(s.Asks, a.rowLimit)

	// Heaviest single row across both sides, floored at 1 so all-zero
	// books normalize to 0% instead of dividing by zero.
	maxVol := one
	for _, lvl := range bids {
		if lvl.Quantity.GreaterThan(maxVol) {
			maxVol = lvl.Quantity
		}
	}
	for _, lvl := range asks {
		if lvl.Quantity.GreaterThan(maxVol) {
			maxVol = lvl.Quantity
		}
	}

	series := DepthSeries{
		Bids:      cumulate(bids, maxVol),
		Asks:      cumulate(asks, maxVol),
		MaxVolume: maxVol,
	}

	if len(bids) > 0 && len(asks) > 0 {
		spread := asks[0].Price.Sub(bids[0].Price)
		series.Spread = decimal.NewNullDecimal(spread)
		if !asks[0].Price.IsZero() {
			pct := spread.Div(asks[0].Price).Mul(decimal.NewFromInt(100))
			series.SpreadPercent = decimal.NewNullDecimal(pct)
		}
	}
	return series
}

func truncate(levels []PriceLevel, limit int) []PriceLevel {
	if len(levels) > limit {
		return levels[:limit]
	}
	return levels
}

// cumulate walks one side best-first, summing quantity row over row.
// PercentOfMax normalizes the row's own quantity, not the running total:
// depth bars show the size of the order at that level, while the
// cumulative figure next to it shows depth-to-here.
func cumulate(levels []PriceLevel, maxVol decimal.Decimal) []DepthPoint {
	points := make([]DepthPoint, 0, len(levels))
	running := decimal.Zero
	for _, lvl := range levels {
		running = running.Add(lvl.Quantity)
		pct, _ := lvl.Quantity.Mul(decimal.NewFromInt(100)).Div(maxVol).Float64()
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		points = append(points, DepthPoint{
			Price:        lvl.Price,
			Cumulative:   running,
			PercentOfMax: pct,
		})
	}
	return points
}

// Layout is the book rendering arrangement a consumer picks from its
// vertical pixel budget.
type Layout int

const (
	LayoutStacked Layout = iota // asks above bids
	LayoutSideBySide
)

// layoutMinHeightPx is the smallest budget that still fits a stacked book.
const layoutMinHeightPx = 560

// LayoutFor chooses the rendering arrangement for a vertical pixel budget.
// Stateless; a pure function of one scalar.
func LayoutFor(heightPx int) Layout {
	if heightPx < layoutMinHeightPx {
		return LayoutSideBySide
	}
	return LayoutStacked
}
