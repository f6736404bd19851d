package state

import (
	"testing"

	"deskcore/internal/book"
)

func TestSwitchNormalizes(t *testing.T) {
	s := NewState(" btc-usdt ", book.MarketSpot)
	if s.Symbol() != "BTC-USDT" {
		t.Fatalf("symbol got %q", s.Symbol())
	}
	c := s.Switch("eth-usdt", "perp")
	if c != "ETH-USDT" || s.Market() != book.MarketSpot {
		t.Fatalf("switch got %q market %q", c, s.Market())
	}
	s.Switch("ETH-USDT", book.MarketFutures)
	if s.Market() != book.MarketFutures {
		t.Fatalf("market got %q", s.Market())
	}
}

func TestConnectedFlag(t *testing.T) {
	s := NewState("BTC-USDT", book.MarketSpot)
	if s.Connected() {
		t.Fatal("fresh state should be disconnected")
	}
	s.SetConnected(true)
	if !s.Connected() {
		t.Fatal("connected flag lost")
	}
}
