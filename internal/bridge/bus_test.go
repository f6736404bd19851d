package bridge

import (
	"testing"

	"deskcore/internal/book"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	got := 0
	b.SubscribeOrders(func(OrderChanged) { got++ })
	b.SubscribeOrders(func(OrderChanged) { got++ })
	b.PublishOrderChanged(OrderChanged{Symbol: "BTC-USDT", Market: book.MarketSpot})
	if got != 2 {
		t.Fatalf("deliveries got %d want 2", got)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	got := 0
	cancel := b.SubscribeMarket(func(MarketSwitched) { got++ })
	b.PublishMarketSwitched(MarketSwitched{Symbol: "ETH-USDT"})
	cancel()
	cancel() // idempotent
	b.PublishMarketSwitched(MarketSwitched{Symbol: "SOL-USDT"})
	if got != 1 {
		t.Fatalf("deliveries got %d want 1", got)
	}
}

func TestIndependentEventTypes(t *testing.T) {
	b := NewBus()
	wallet, orders := 0, 0
	b.SubscribeWallet(func(WalletChanged) { wallet++ })
	b.SubscribeOrders(func(OrderChanged) { orders++ })
	b.PublishWalletChanged(WalletChanged{})
	if wallet != 1 || orders != 0 {
		t.Fatalf("cross-type delivery: wallet=%d orders=%d", wallet, orders)
	}
}
