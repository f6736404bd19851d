package panel

import (
	"context"
	"time"

	"deskcore/internal/fetch"
)

// ListPanel is a REST-backed list (open orders, balances, positions)
// served through the fetch coordinator's cache.
type ListPanel struct {
	fc       *fetch.Coordinator
	key      string
	cooldown time.Duration
	fn       fetch.FetchFunc
}

func NewListPanel(fc *fetch.Coordinator, key string, cooldown time.Duration, fn fetch.FetchFunc) *ListPanel {
	return &ListPanel{fc: fc, key: key, cooldown: cooldown, fn: fn}
}

// Load returns cached data when fresh, otherwise fetches. Concurrent
// callers during a fetch get the stale value immediately.
func (p *ListPanel) Load(ctx context.Context) (any, Status) {
	out := p.fc.Get(ctx, p.key, p.fn, fetch.Options{Cooldown: p.cooldown})
	return out.Value, statusOf(out)
}

// Refresh forces a fresh read, bypassing cooldown and any in-flight
// short-circuit. Called after domain mutations.
func (p *ListPanel) Refresh(ctx context.Context) (any, Status) {
	out := p.fc.Get(ctx, p.key, p.fn, fetch.Options{Cooldown: p.cooldown, Force: true})
	return out.Value, statusOf(out)
}

func statusOf(out fetch.Outcome) Status {
	return Status{
		IsLoading: out.FetchedAt.IsZero() && out.Value == nil && out.Err == nil,
		IsStale:   out.Stale,
		Err:       out.Err,
	}
}
