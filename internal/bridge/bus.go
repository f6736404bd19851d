// Package bridge carries domain invalidation signals between producers
// (order entry, wallet updates, symbol switching) and the coordinators
// that must react to them. A typed bus keeps producers and consumers
// statically traceable instead of connected by string event names.
package bridge

import (
	"sync"

	"deskcore/internal/book"
)

// OrderChanged fires when an order was placed, updated, or cancelled.
type OrderChanged struct {
	Symbol string
	Market book.MarketType
}

// WalletChanged fires when a balance moved.
type WalletChanged struct{}

// MarketSwitched fires when the active symbol or market type changes;
// stream consumers must tear down and resync rather than trust in-flight
// data from the previous market.
type MarketSwitched struct {
	Symbol string
	Market book.MarketType
}

type Bus struct {
	mu     sync.Mutex
	nextID uint64
	orders map[uint64]func(OrderChanged)
	wallet map[uint64]func(WalletChanged)
	market map[uint64]func(MarketSwitched)
}

func NewBus() *Bus {
	return &Bus{
		orders: make(map[uint64]func(OrderChanged)),
		wallet: make(map[uint64]func(WalletChanged)),
		market: make(map[uint64]func(MarketSwitched)),
	}
}

func (b *Bus) SubscribeOrders(fn func(OrderChanged)) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.orders[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.orders, id)
		b.mu.Unlock()
	}
}

func (b *Bus) SubscribeWallet(fn func(WalletChanged)) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.wallet[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.wallet, id)
		b.mu.Unlock()
	}
}

func (b *Bus) SubscribeMarket(fn func(MarketSwitched)) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.market[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.market, id)
		b.mu.Unlock()
	}
}

func (b *Bus) PublishOrderChanged(ev OrderChanged) {
	b.mu.Lock()
	fns := make([]func(OrderChanged), 0, len(b.orders))
	for _, fn := range b.orders {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bus) PublishWalletChanged(ev WalletChanged) {
	b.mu.Lock()
	fns := make([]func(WalletChanged), 0, len(b.wallet))
	for _, fn := range b.wallet {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bus) PublishMarketSwitched(ev MarketSwitched) {
	b.mu.Lock()
	fns := make([]func(MarketSwitched), 0, len(b.market))
	for _, fn := range b.market {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
