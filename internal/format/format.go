package format

import (
	"math"

	"github.com/shopspring/decimal"
)

// Kind selects the formatting rules for a numeric field.
type Kind int

const (
	KindPrice Kind = iota
	KindAmount
	KindVolume
)

// Placeholder is rendered for non-finite input (NaN, ±Inf).
const Placeholder = "--"

// Profile carries per-market precision metadata. Nil fields fall back to
// magnitude-banded defaults.
type Profile struct {
	PricePrecision  *int
	AmountPrecision *int
}

var (
	one      = decimal.NewFromInt(1)
	thousand = decimal.NewFromInt(1000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	hundred  = decimal.NewFromInt(100)
)

// Format renders v according to kind and the optional precision profile.
// Pure, never fails on any decimal input.
func Format(v decimal.Decimal, kind Kind, p *Profile) string {
	switch kind {
	case KindPrice:
		return price(v, p)
	default:
		return amount(v, p)
	}
}

// FormatFloat is the entry point for float-typed fields coming off the wire.
// Non-finite values render as the placeholder instead of propagating.
func FormatFloat(f float64, kind Kind, p *Profile) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Placeholder
	}
	return Format(decimal.NewFromFloat(f), kind, p)
}

func price(v decimal.Decimal, p *Profile) string {
	abs := v.Abs()
	if p != nil && p.PricePrecision != nil {
		dp := *p.PricePrecision
		if dp < 0 {
			dp = 0
		}
		// Large prices get unreadable with long configured tails; cap at 2dp.
		if abs.GreaterThanOrEqual(thousand) && dp > 2 {
			dp = 2
		}
		return v.StringFixed(int32(dp))
	}
	switch {
	case abs.GreaterThanOrEqual(thousand):
		return v.StringFixed(2)
	case abs.GreaterThanOrEqual(one):
		return v.StringFixed(4)
	default:
		return v.StringFixed(8)
	}
}

func amount(v decimal.Decimal, p *Profile) string {
	if p != nil && p.AmountPrecision != nil {
		dp := *p.AmountPrecision
		if dp < 0 {
			dp = 0
		}
		return v.StringFixed(int32(dp))
	}
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return v.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(2) + "K"
	default:
		return v.StringFixed(2)
	}
}

// SpreadPercent formats a spread expressed in percent. Tight books routinely
// sit below 0.01%, so sub-band values switch to basis points with a floor
// label below 0.01bp.
func SpreadPercent(v decimal.Decimal) string {
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(one):
		return v.StringFixed(2) + "%"
	case abs.GreaterThanOrEqual(decimal.NewFromFloat(0.1)):
		return v.StringFixed(3) + "%"
	case abs.GreaterThanOrEqual(decimal.NewFromFloat(0.01)):
		return v.StringFixed(4) + "%"
	default:
		bp := v.Mul(hundred)
		if bp.Abs().LessThan(decimal.NewFromFloat(0.01)) {
			return "<0.01bp"
		}
		return bp.StringFixed(2) + "bp"
	}
}

// SpreadPercentFloat mirrors FormatFloat for spread figures.
func SpreadPercentFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Placeholder
	}
	return SpreadPercent(decimal.NewFromFloat(f))
}
