package panel

import (
	"log/slog"
	"sync"
	"time"

	"deskcore/internal/book"
	"deskcore/internal/feed"
	"deskcore/internal/format"
)

// BookView is what the book panel pushes to renderers on every recompute.
// The *Text fields are display-ready strings so call sites never reimplement
// precision fallbacks.
type BookView struct {
	Symbol     string
	Market     book.MarketType
	Series     book.DepthSeries
	Ticker     *feed.Ticker
	Layout     book.Layout
	SpreadText string
	LastText   string
	VolumeText string
}

// BookPanel follows one symbol's depth and ticker streams, recomputing the
// renderable depth series on every push. Malformed payloads are dropped
// and the last good series retained; a transport interruption marks the
// view stale instead of clearing it.
type BookPanel struct {
	coord       *feed.Coordinator
	agg         *book.Aggregator
	loadTimeout time.Duration
	heightPx    int
	log         *slog.Logger
	onUpdate    func(BookView)

	mu        sync.Mutex
	profile   *format.Profile
	symbol    string
	market    book.MarketType
	handles   []*feed.Handle
	series    book.DepthSeries
	ticker    *feed.Ticker
	loading   bool
	stale     bool
	loadTimer *time.Timer
	gen       uint64
}

func NewBookPanel(coord *feed.Coordinator, agg *book.Aggregator, loadTimeout time.Duration, heightPx int, logger *slog.Logger, onUpdate func(BookView)) *BookPanel {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookPanel{
		coord:       coord,
		agg:         agg,
		loadTimeout: loadTimeout,
		heightPx:    heightPx,
		log:         logger,
		onUpdate:    onUpdate,
	}
}

// Watch points the panel at a symbol/market, disposing any previous
// subscriptions first so a rapid sequence of switches can never leave two
// live registrations behind.
func (p *BookPanel) Watch(symbol string, market book.MarketType) error {
	depthKey := feed.NewKey(symbol, market, feed.ChannelDepth)
	tickerKey := feed.NewKey(symbol, market, feed.ChannelTicker)

	p.mu.Lock()
	old := p.handles
	p.handles = nil
	p.symbol = depthKey.Symbol
	p.market = market
	p.series = book.DepthSeries{}
	p.ticker = nil
	p.stale = false
	p.loading = true
	p.gen++
	gen := p.gen
	if p.loadTimer != nil {
		p.loadTimer.Stop()
	}
	// The timeout only stops the spinner; the subscription stays up and a
	// late first message still lands.
	p.loadTimer = time.AfterFunc(p.loadTimeout, func() { p.timeoutLoading(gen) })
	p.mu.Unlock()

	for _, h := range old {
		h.Dispose()
	}

	var handles []*feed.Handle
	for _, key := range []feed.Key{depthKey, tickerKey} {
		h, err := p.coord.Register(key, func(msg feed.Message) { p.onMessage(gen, msg) })
		if err != nil {
			for _, prev := range handles {
				prev.Dispose()
			}
			p.mu.Lock()
			if p.gen == gen {
				p.loading = false
				p.stale = true
			}
			p.mu.Unlock()
			return err
		}
		handles = append(handles, h)
	}

	p.mu.Lock()
	if p.gen != gen {
		// Superseded by a newer Watch while registering.
		p.mu.Unlock()
		for _, h := range handles {
			h.Dispose()
		}
		return nil
	}
	p.handles = handles
	p.mu.Unlock()
	return nil
}

// Resync tears the current subscriptions down and re-registers the same
// key. Used on market-switch broadcasts where the key may not have
// changed but in-flight data can no longer be trusted.
func (p *BookPanel) Resync() error {
	p.mu.Lock()
	symbol, market := p.symbol, p.market
	p.mu.Unlock()
	if symbol == "" {
		return nil
	}
	return p.Watch(symbol, market)
}

// MarkStale flags the view stale, keeping the last good series visible.
func (p *BookPanel) MarkStale() {
	p.mu.Lock()
	p.stale = true
	view, cb := p.viewLocked(), p.onUpdate
	p.mu.Unlock()
	if cb != nil {
		cb(view)
	}
}

// Close disposes the panel's subscriptions.
func (p *BookPanel) Close() {
	p.mu.Lock()
	old := p.handles
	p.handles = nil
	p.gen++
	if p.loadTimer != nil {
		p.loadTimer.Stop()
	}
	p.mu.Unlock()
	for _, h := range old {
		h.Dispose()
	}
}

// Snapshot returns the current view and its status.
func (p *BookPanel) Snapshot() (BookView, Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked(), Status{IsLoading: p.loading, IsStale: p.stale}
}

// SetProfile installs market precision metadata for display formatting.
// A nil profile falls back to magnitude-banded rules.
func (p *BookPanel) SetProfile(profile *format.Profile) {
	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
}

func (p *BookPanel) viewLocked() BookView {
	view := BookView{
		Symbol:     p.symbol,
		Market:     p.market,
		Series:     p.series,
		Ticker:     p.ticker,
		Layout:     book.LayoutFor(p.heightPx),
		SpreadText: format.Placeholder,
		LastText:   format.Placeholder,
		VolumeText: format.Placeholder,
	}
	if p.series.SpreadPercent.Valid {
		view.SpreadText = format.SpreadPercent(p.series.SpreadPercent.Decimal)
	}
	if p.ticker != nil {
		view.LastText = format.Format(p.ticker.Last, format.KindPrice, p.profile)
		view.VolumeText = format.Format(p.ticker.Volume, format.KindVolume, p.profile)
	}
	return view
}

func (p *BookPanel) onMessage(gen uint64, msg feed.Message) {
	switch {
	case msg.Book != nil:
		if err := msg.Book.Validate(); err != nil {
			// Drop and keep the last known good series.
			p.log.Debug("dropping malformed snapshot", slog.String("err", err.Error()))
			return
		}
		series := p.agg.Compute(*msg.Book)
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		p.series = series
		p.firstDataLocked()
		view, cb := p.viewLocked(), p.onUpdate
		p.mu.Unlock()
		if cb != nil {
			cb(view)
		}
	case msg.Ticker != nil:
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		p.ticker = msg.Ticker
		p.firstDataLocked()
		view, cb := p.viewLocked(), p.onUpdate
		p.mu.Unlock()
		if cb != nil {
			cb(view)
		}
	}
}

func (p *BookPanel) firstDataLocked() {
	p.loading = false
	p.stale = false
	if p.loadTimer != nil {
		p.loadTimer.Stop()
	}
}

func (p *BookPanel) timeoutLoading(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || !p.loading {
		return
	}
	p.loading = false
}
