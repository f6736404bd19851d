package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"deskcore/internal/book"
	"deskcore/internal/bridge"
	"deskcore/internal/feed"
	"deskcore/internal/fetch"
	"deskcore/internal/state"
)

func TestListPanelLoadAndStatus(t *testing.T) {
	fc := fetch.NewCoordinator(nil)
	calls := 0
	p := NewListPanel(fc, "orders:BTC-USDT:spot", 2*time.Second, func(context.Context) (any, error) {
		calls++
		return []string{"order-1"}, nil
	})

	v, st := p.Load(context.Background())
	if st.Err != nil || st.IsLoading || st.IsStale {
		t.Fatalf("status after load: %+v", st)
	}
	if v.([]string)[0] != "order-1" {
		t.Fatalf("value got %v", v)
	}
	p.Load(context.Background())
	if calls != 1 {
		t.Fatalf("load within cooldown refetched: %d", calls)
	}
	p.Refresh(context.Background())
	if calls != 2 {
		t.Fatalf("refresh did not force a fetch: %d", calls)
	}
}

func TestListPanelStaleIfError(t *testing.T) {
	fc := fetch.NewCoordinator(nil)
	fail := false
	p := NewListPanel(fc, "balances", 0, func(context.Context) (any, error) {
		if fail {
			return nil, errors.New("gateway 502")
		}
		return "balances-v1", nil
	})

	p.Load(context.Background())
	fail = true
	v, st := p.Refresh(context.Background())
	if st.Err == nil || !st.IsStale {
		t.Fatalf("error status wrong: %+v", st)
	}
	if v != "balances-v1" {
		t.Fatalf("stale value lost: %v", v)
	}
}

func TestWorkspaceBusWiring(t *testing.T) {
	mock := feed.NewMockTransport()
	coord := feed.NewCoordinator(mock, nil)
	fc := fetch.NewCoordinator(nil)
	st := state.NewState("BTC-USDT", book.MarketSpot)
	bus := bridge.NewBus()

	orderFetches, balanceFetches := 0, 0
	orders := NewListPanel(fc, "orders", time.Minute, func(context.Context) (any, error) {
		orderFetches++
		return nil, nil
	})
	balances := NewListPanel(fc, "balances", time.Minute, func(context.Context) (any, error) {
		balanceFetches++
		return nil, nil
	})
	bookPanel := NewBookPanel(coord, book.NewAggregator(25), time.Minute, 720, nil, nil)

	w := NewWorkspace(bookPanel, orders, balances, coord, st, nil)
	w.Attach(bus)
	defer w.Detach()

	if err := bookPanel.Watch(st.Symbol(), st.Market()); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Primed caches...
	orders.Load(context.Background())
	balances.Load(context.Background())

	// ...must be bypassed when the mutation signals fire.
	bus.PublishOrderChanged(bridge.OrderChanged{Symbol: "BTC-USDT", Market: book.MarketSpot})
	if orderFetches != 2 {
		t.Fatalf("order signal fetches got %d want 2", orderFetches)
	}
	bus.PublishWalletChanged(bridge.WalletChanged{})
	if balanceFetches != 2 {
		t.Fatalf("wallet signal fetches got %d want 2", balanceFetches)
	}

	// Market switch: coordinator reset plus book resync onto the new key.
	oldDepth := feed.NewKey("BTC-USDT", book.MarketSpot, feed.ChannelDepth)
	bus.PublishMarketSwitched(bridge.MarketSwitched{Symbol: "eth-usdt", Market: book.MarketSpot})
	if st.Symbol() != "ETH-USDT" {
		t.Fatalf("state symbol got %q", st.Symbol())
	}
	if mock.UnsubscribeCount(oldDepth) != 1 {
		t.Fatal("old market stream not torn down on switch")
	}
	newDepth := feed.NewKey("ETH-USDT", book.MarketSpot, feed.ChannelDepth)
	if mock.SubscribeCount(newDepth) != 1 {
		t.Fatal("book did not resync onto the new market")
	}
}
