package state

import (
	"strings"
	"sync"
	"sync/atomic"

	"deskcore/internal/book"
)

// State holds the workspace-wide selection: which symbol and market every
// streaming panel is pointed at, plus gateway connectivity.
type State struct {
	mu     sync.RWMutex
	symbol string
	market book.MarketType

	connected atomic.Bool
}

func NewState(symbol string, market book.MarketType) *State {
	s := &State{}
	s.Switch(symbol, market)
	return s
}

// Switch sets the active symbol/market and returns the canonical symbol.
func (s *State) Switch(symbol string, market book.MarketType) string {
	canon := strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol = canon
	if market != book.MarketFutures {
		market = book.MarketSpot
	}
	s.market = market
	return canon
}

func (s *State) Symbol() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbol
}

func (s *State) Market() book.MarketType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market
}

func (s *State) SetConnected(v bool) { s.connected.Store(v) }
func (s *State) Connected() bool     { return s.connected.Load() }
