package panel

import (
	"context"
	"log/slog"

	"deskcore/internal/bridge"
	"deskcore/internal/feed"
	"deskcore/internal/state"
)

// Workspace owns the panels and translates bus signals into coordinator
// invalidations: order and wallet mutations force fresh REST reads,
// market switches reset every stream subscription and resync the book.
type Workspace struct {
	Book     *BookPanel
	Orders   *ListPanel
	Balances *ListPanel

	coord   *feed.Coordinator
	st      *state.State
	log     *slog.Logger
	cancels []func()
}

func NewWorkspace(bookPanel *BookPanel, orders, balances *ListPanel, coord *feed.Coordinator, st *state.State, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		Book:     bookPanel,
		Orders:   orders,
		Balances: balances,
		coord:    coord,
		st:       st,
		log:      logger,
	}
}

// Attach subscribes the workspace to the invalidation bus.
func (w *Workspace) Attach(bus *bridge.Bus) {
	w.cancels = append(w.cancels,
		bus.SubscribeOrders(func(bridge.OrderChanged) {
			if _, st := w.Orders.Refresh(context.Background()); st.Err != nil {
				w.log.Warn("orders refresh", slog.String("err", st.Err.Error()))
			}
		}),
		bus.SubscribeWallet(func(bridge.WalletChanged) {
			if _, st := w.Balances.Refresh(context.Background()); st.Err != nil {
				w.log.Warn("balances refresh", slog.String("err", st.Err.Error()))
			}
		}),
		bus.SubscribeMarket(func(ev bridge.MarketSwitched) {
			symbol := w.st.Switch(ev.Symbol, ev.Market)
			// Full reset, not a diff against the previous key: rapid jumps
			// between symbols must never leave a panel trusting data that
			// was in flight for the old market.
			w.coord.Reset()
			if err := w.Book.Watch(symbol, w.st.Market()); err != nil {
				w.log.Error("book resync", slog.String("symbol", symbol), slog.String("err", err.Error()))
			}
		}),
	)
}

// Detach unsubscribes from the bus and closes the book panel.
func (w *Workspace) Detach() {
	for _, cancel := range w.cancels {
		cancel()
	}
	w.cancels = nil
	w.Book.Close()
}
