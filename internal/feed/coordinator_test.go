package feed

import (
	"errors"
	"sync"
	"testing"

	"deskcore/internal/book"
)

func depthKey(symbol string) Key {
	return NewKey(symbol, book.MarketSpot, ChannelDepth)
}

func bookMsg(symbol string) Message {
	return Message{Book: &book.Snapshot{Symbol: symbol, Market: book.MarketSpot}}
}

func TestFanOutSingleUpstreamSubscribe(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	key := depthKey("BTC-USDT")

	var mu sync.Mutex
	counts := make([]int, 3)
	handles := make([]*Handle, 3)
	for i := range handles {
		i := i
		h, err := c.Register(key, func(Message) {
			mu.Lock()
			counts[i]++
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		handles[i] = h
	}
	if got := mock.SubscribeCount(key); got != 1 {
		t.Fatalf("upstream subscribes got %d want 1", got)
	}

	mock.Push(key, bookMsg("BTC-USDT"))
	mu.Lock()
	for i, n := range counts {
		if n != 1 {
			t.Fatalf("listener %d deliveries got %d want 1", i, n)
		}
	}
	mu.Unlock()

	for _, h := range handles {
		c.Dispose(h)
	}
	if got := mock.UnsubscribeCount(key); got != 1 {
		t.Fatalf("upstream unsubscribes got %d want 1", got)
	}
	if len(c.ActiveKeys()) != 0 {
		t.Fatalf("entry leaked after last dispose")
	}
}

func TestDisposeIdempotent(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	key := depthKey("ETH-USDT")

	h1, _ := c.Register(key, func(Message) {})
	h2, _ := c.Register(key, func(Message) {})

	c.Dispose(h1)
	c.Dispose(h1)
	h1.Dispose()

	// Double-disposing h1 must not tear down h2's subscription.
	if got := mock.UnsubscribeCount(key); got != 0 {
		t.Fatalf("unsubscribed early: %d", got)
	}
	c.Dispose(h2)
	if got := mock.UnsubscribeCount(key); got != 1 {
		t.Fatalf("unsubscribes got %d want 1", got)
	}
}

func TestNoDeliveryAfterDispose(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	key := depthKey("SOL-USDT")

	delivered := 0
	h, _ := c.Register(key, func(Message) { delivered++ })

	// Capture the dispatcher as the transport would hold it, dispose, then
	// deliver the "already in flight" message.
	dispatch := mock.Dispatcher(key)
	keep, _ := c.Register(key, func(Message) {}) // keeps the entry alive
	c.Dispose(h)
	dispatch(bookMsg("SOL-USDT"))

	if delivered != 0 {
		t.Fatalf("disposed handle observed %d deliveries", delivered)
	}
	c.Dispose(keep)
}

func TestIndependentKeys(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	k1 := depthKey("BTC-USDT")
	k2 := NewKey("BTC-USDT", book.MarketSpot, ChannelTicker)

	got1, got2 := 0, 0
	h1, _ := c.Register(k1, func(Message) { got1++ })
	h2, _ := c.Register(k2, func(Message) { got2++ })

	mock.Push(k1, bookMsg("BTC-USDT"))
	if got1 != 1 || got2 != 0 {
		t.Fatalf("cross-key delivery: %d %d", got1, got2)
	}
	c.Dispose(h1)
	c.Dispose(h2)
}

func TestKeyEqualityParamOrderIndependent(t *testing.T) {
	a := Key{Symbol: "BTC-USDT", Market: book.MarketSpot, Channel: ChannelDepth,
		Params: map[string]string{"depth": "25", "speed": "100ms"}}
	b := Key{Symbol: "BTC-USDT", Market: book.MarketSpot, Channel: ChannelDepth,
		Params: map[string]string{"speed": "100ms", "depth": "25"}}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("param order changed canonical form: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestRegisterFailure(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	key := depthKey("XRP-USDT")

	mock.FailNextSubscribe(errors.New("gateway down"))
	if _, err := c.Register(key, func(Message) {}); err == nil {
		t.Fatal("expected subscribe error")
	}
	if len(c.ActiveKeys()) != 0 {
		t.Fatal("failed registration leaked an entry")
	}

	// A later registration must retry the upstream subscribe.
	h, err := c.Register(key, func(Message) {})
	if err != nil {
		t.Fatalf("retry register: %v", err)
	}
	if got := mock.SubscribeCount(key); got != 1 {
		t.Fatalf("subscribes got %d want 1", got)
	}
	c.Dispose(h)
}

func TestReset(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	k1 := depthKey("BTC-USDT")
	k2 := depthKey("ETH-USDT")

	delivered := 0
	h1, _ := c.Register(k1, func(Message) { delivered++ })
	h2, _ := c.Register(k2, func(Message) { delivered++ })

	c.Reset()

	if got := mock.UnsubscribeCount(k1) + mock.UnsubscribeCount(k2); got != 2 {
		t.Fatalf("reset unsubscribes got %d want 2", got)
	}
	mock.Push(k1, bookMsg("BTC-USDT"))
	if delivered != 0 {
		t.Fatal("reset handle observed a delivery")
	}
	// Disposing already-reset handles is a no-op.
	c.Dispose(h1)
	c.Dispose(h2)
	if len(c.ActiveKeys()) != 0 {
		t.Fatal("entries leaked after reset")
	}
}

func TestResubscribeAfterSymbolSwitch(t *testing.T) {
	mock := NewMockTransport()
	c := NewCoordinator(mock, nil)
	oldKey := depthKey("BTC-USDT")
	newKey := depthKey("ETH-USDT")

	var got []string
	h, _ := c.Register(oldKey, func(m Message) { got = append(got, m.Book.Symbol) })

	// Caller discipline on symbol switch: dispose old, register new.
	c.Dispose(h)
	h, _ = c.Register(newKey, func(m Message) { got = append(got, m.Book.Symbol) })

	mock.Push(oldKey, bookMsg("BTC-USDT"))
	mock.Push(newKey, bookMsg("ETH-USDT"))

	if len(got) != 1 || got[0] != "ETH-USDT" {
		t.Fatalf("deliveries got %v want [ETH-USDT]", got)
	}
	if mock.UnsubscribeCount(oldKey) != 1 || mock.SubscribeCount(newKey) != 1 {
		t.Fatal("switch did not tear down old key and set up new key exactly once")
	}
	c.Dispose(h)
}
