package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc performs the actual REST read for one key.
type FetchFunc func(ctx context.Context) (any, error)

// Options controls one Get call.
type Options struct {
	// Cooldown is the minimum age before a cached value is refetched.
	Cooldown time.Duration
	// Force bypasses the cooldown and the in-flight short-circuit. Used
	// after mutations so the next read reflects them.
	Force bool
}

// Outcome is what a caller gets back: the current value (possibly stale),
// the last fetch error, and freshness metadata.
type Outcome struct {
	Value     any
	Err       error
	FetchedAt time.Time
	// Stale is true when Value predates the fetch that produced this
	// outcome (in-flight short-circuit or stale-if-error).
	Stale bool
}

type entry struct {
	flight sync.Mutex // serializes fetches for this key

	value     any
	hasValue  bool
	fetchedAt time.Time
	lastErr   error
	inFlight  bool
}

// Coordinator deduplicates concurrent REST reads per key and serves a
// short-lived cache with explicit invalidation. At most one fetch runs per
// key at any instant; unrelated keys fetch fully in parallel.
type Coordinator struct {
	log *slog.Logger
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		log:     logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (c *Coordinator) entryFor(key string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Get returns the cached value for key when it is fresh, returns the stale
// value immediately when another caller's fetch is in flight, and
// otherwise runs exactly one fetch. Callers never block on another
// caller's request unless they forced a fresh read.
func (c *Coordinator) Get(ctx context.Context, key string, fn FetchFunc, opts Options) Outcome {
	e := c.entryFor(key)

	c.mu.Lock()
	if !opts.Force {
		if e.inFlight {
			// Stale-but-available: hand back whatever we have now.
			out := Outcome{Value: e.value, Err: e.lastErr, FetchedAt: e.fetchedAt, Stale: e.hasValue}
			c.mu.Unlock()
			return out
		}
		if e.hasValue && e.lastErr == nil && c.now().Sub(e.fetchedAt) < opts.Cooldown {
			out := Outcome{Value: e.value, FetchedAt: e.fetchedAt}
			c.mu.Unlock()
			return out
		}
	}
	c.mu.Unlock()

	// Forced callers queue on the per-key lock behind any running fetch so
	// the single-flight invariant holds; unforced callers racing here just
	// serialize and the loser re-checks freshness below.
	e.flight.Lock()
	defer e.flight.Unlock()

	c.mu.Lock()
	if !opts.Force && e.hasValue && e.lastErr == nil && c.now().Sub(e.fetchedAt) < opts.Cooldown {
		out := Outcome{Value: e.value, FetchedAt: e.fetchedAt}
		c.mu.Unlock()
		return out
	}
	e.inFlight = true
	c.mu.Unlock()

	value, err := runFetch(ctx, fn)

	c.mu.Lock()
	e.inFlight = false
	var out Outcome
	if err != nil {
		// Stale-if-error: the previous value survives the failed fetch.
		e.lastErr = err
		out = Outcome{Value: e.value, Err: err, FetchedAt: e.fetchedAt, Stale: e.hasValue}
		c.mu.Unlock()
		c.log.Warn("fetch failed", slog.String("key", key), slog.String("err", err.Error()))
		return out
	}
	e.value = value
	e.hasValue = true
	e.lastErr = nil
	e.fetchedAt = c.now()
	out = Outcome{Value: e.value, FetchedAt: e.fetchedAt}
	c.mu.Unlock()
	return out
}

// runFetch guarantees the in-flight flag is cleared even when fn panics.
func runFetch(ctx context.Context, fn FetchFunc) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Peek returns the current cache state for key without triggering a fetch.
func (c *Coordinator) Peek(key string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return Outcome{}, false
	}
	return Outcome{Value: e.value, Err: e.lastErr, FetchedAt: e.fetchedAt}, true
}

// Invalidate marks key expired so the next Get refetches regardless of
// cooldown. The cached value stays readable until then.
func (c *Coordinator) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.fetchedAt = time.Time{}
	}
}

// InFlight reports whether a fetch for key is currently outstanding.
func (c *Coordinator) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.inFlight
}
