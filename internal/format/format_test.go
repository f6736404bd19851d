package format

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func intp(v int) *int { return &v }

func TestPriceBands(t *testing.T) {
	if got := Format(decimal.NewFromFloat(64321.7), KindPrice, nil); got != "64321.70" {
		t.Fatalf("large price got %q want 64321.70", got)
	}
	if got := Format(decimal.NewFromFloat(1.5), KindPrice, nil); got != "1.5000" {
		t.Fatalf("mid price got %q want 1.5000", got)
	}
	if got := Format(decimal.NewFromFloat(0.00001234), KindPrice, nil); got != "0.00001234" {
		t.Fatalf("sub-unit price got %q want 0.00001234", got)
	}
}

func TestPriceProfileClamp(t *testing.T) {
	p := &Profile{PricePrecision: intp(6)}
	if got := Format(decimal.NewFromFloat(0.5), KindPrice, p); got != "0.500000" {
		t.Fatalf("profile price got %q want 0.500000", got)
	}
	// Configured 6dp must clamp to 2dp once the price crosses 1000.
	if got := Format(decimal.NewFromFloat(1234.56789), KindPrice, p); got != "1234.57" {
		t.Fatalf("clamped price got %q want 1234.57", got)
	}
}

func TestAmountAbbreviation(t *testing.T) {
	if got := Format(decimal.NewFromInt(2_500_000_000), KindVolume, nil); got != "2.50B" {
		t.Fatalf("billions got %q", got)
	}
	if got := Format(decimal.NewFromInt(3_400_000), KindAmount, nil); got != "3.40M" {
		t.Fatalf("millions got %q", got)
	}
	if got := Format(decimal.NewFromInt(1500), KindAmount, nil); got != "1.50K" {
		t.Fatalf("thousands got %q", got)
	}
	if got := Format(decimal.NewFromFloat(999.4), KindAmount, nil); got != "999.40" {
		t.Fatalf("plain amount got %q", got)
	}
}

func TestAmountProfileDisablesAbbreviation(t *testing.T) {
	p := &Profile{AmountPrecision: intp(3)}
	if got := Format(decimal.NewFromInt(1500), KindAmount, p); got != "1500.000" {
		t.Fatalf("profile amount got %q want 1500.000", got)
	}
}

func TestSpreadPercentBands(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{2.5, "2.50%"},
		{0.25, "0.250%"},
		{0.025, "0.0250%"},
		{0.005, "0.50bp"}, // 0.005% = 0.5bp
		{0.00005, "<0.01bp"},
	}
	for _, c := range cases {
		if got := SpreadPercent(decimal.NewFromFloat(c.in)); got != c.want {
			t.Fatalf("spread %v got %q want %q", c.in, got, c.want)
		}
	}
}

func TestNonFinite(t *testing.T) {
	if got := FormatFloat(math.NaN(), KindPrice, nil); got != Placeholder {
		t.Fatalf("NaN got %q", got)
	}
	if got := FormatFloat(math.Inf(1), KindAmount, nil); got != Placeholder {
		t.Fatalf("+Inf got %q", got)
	}
	if got := SpreadPercentFloat(math.NaN()); got != Placeholder {
		t.Fatalf("NaN spread got %q", got)
	}
}
