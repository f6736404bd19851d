package feed

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Transport is the upstream publish/subscribe primitive the coordinator
// multiplexes. The returned func tears the upstream subscription down.
type Transport interface {
	Subscribe(key Key, fn func(Message)) (func(), error)
}

// Handle is one consumer's membership in one key's listener set. Dispose
// is idempotent; a disposed handle never observes another callback, even
// for a message already in flight at dispose time.
type Handle struct {
	key      Key
	canon    string
	id       uint64
	disposed atomic.Bool
	c        *Coordinator
}

// Key returns the key the handle was registered under.
func (h *Handle) Key() Key { return h.key }

// Dispose releases the membership. Safe to call any number of times.
func (h *Handle) Dispose() {
	if h != nil {
		h.c.Dispose(h)
	}
}

type entry struct {
	listeners   map[uint64]*listener
	unsubscribe func() // nil while the upstream subscribe is still in flight
}

type listener struct {
	h  *Handle
	fn func(Message)
}

// Coordinator fans one upstream feed out to many consumers per key.
// N concurrent registrations on a key cause exactly one upstream subscribe;
// after all N are disposed, exactly one upstream unsubscribe.
type Coordinator struct {
	transport Transport
	log       *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
}

func NewCoordinator(transport Transport, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		transport: transport,
		log:       logger,
		entries:   make(map[string]*entry),
	}
}

// Register adds cb to the listener set for key, creating the upstream
// subscription on first registration.
func (c *Coordinator) Register(key Key, cb func(Message)) (*Handle, error) {
	canon := key.Canonical()

	c.mu.Lock()
	c.nextID++
	h := &Handle{key: key, canon: canon, id: c.nextID, c: c}
	if e, ok := c.entries[canon]; ok {
		e.listeners[h.id] = &listener{h: h, fn: cb}
		c.mu.Unlock()
		return h, nil
	}
	e := &entry{listeners: map[uint64]*listener{h.id: {h: h, fn: cb}}}
	c.entries[canon] = e
	c.mu.Unlock()

	// Subscribe outside the lock: the transport may deliver synchronously.
	unsub, err := c.transport.Subscribe(key, func(msg Message) { c.dispatch(canon, msg) })

	c.mu.Lock()
	if err != nil {
		if cur, ok := c.entries[canon]; ok && cur == e {
			delete(c.entries, canon)
		}
		c.mu.Unlock()
		h.disposed.Store(true)
		return nil, fmt.Errorf("subscribe %s: %w", canon, err)
	}
	if len(e.listeners) == 0 {
		// Every registrant disposed while the upstream subscribe was in
		// flight; tear it straight back down.
		if cur, ok := c.entries[canon]; ok && cur == e {
			delete(c.entries, canon)
		}
		c.mu.Unlock()
		c.safeUnsubscribe(canon, unsub)
		return h, nil
	}
	e.unsubscribe = unsub
	c.mu.Unlock()
	return h, nil
}

// Dispose removes the handle's callback from its key. When the listener
// set empties, the upstream subscription is torn down and the entry
// deleted. Never panics, never double-unsubscribes.
func (c *Coordinator) Dispose(h *Handle) {
	if h == nil || h.disposed.Swap(true) {
		return
	}
	c.mu.Lock()
	e, ok := c.entries[h.canon]
	if !ok {
		c.mu.Unlock()
		return
	}
	if _, ok := e.listeners[h.id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(e.listeners, h.id)
	if len(e.listeners) > 0 {
		c.mu.Unlock()
		return
	}
	unsub := e.unsubscribe
	if unsub != nil {
		// If unsubscribe is still nil the upstream subscribe is in
		// flight; Register reaps the empty entry when it returns.
		delete(c.entries, h.canon)
	}
	c.mu.Unlock()
	if unsub != nil {
		c.safeUnsubscribe(h.canon, unsub)
	}
}

// Reset disposes every active handle and tears down every upstream
// subscription. Used on market-switch broadcasts to force a clean resync
// instead of trusting partially stale in-flight data.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	type down struct {
		canon string
		fn    func()
	}
	var downs []down
	for canon, e := range c.entries {
		for _, l := range e.listeners {
			l.h.disposed.Store(true)
		}
		e.listeners = make(map[uint64]*listener)
		if e.unsubscribe != nil {
			downs = append(downs, down{canon, e.unsubscribe})
			delete(c.entries, canon)
		}
		// Entries mid-subscribe stay for Register to reap.
	}
	c.mu.Unlock()
	for _, d := range downs {
		c.safeUnsubscribe(d.canon, d.fn)
	}
}

// ActiveKeys reports the canonical keys with live upstream subscriptions.
func (c *Coordinator) ActiveKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for canon := range c.entries {
		keys = append(keys, canon)
	}
	return keys
}

func (c *Coordinator) dispatch(canon string, msg Message) {
	c.mu.Lock()
	e, ok := c.entries[canon]
	if !ok {
		c.mu.Unlock()
		return
	}
	snapshot := make([]*listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		snapshot = append(snapshot, l)
	}
	c.mu.Unlock()
	for _, l := range snapshot {
		// Membership is re-checked at delivery time so a handle disposed
		// after the snapshot above still sees no late callback.
		if l.h.disposed.Load() {
			continue
		}
		l.fn(msg)
	}
}

func (c *Coordinator) safeUnsubscribe(canon string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("upstream unsubscribe panicked",
				slog.String("key", canon), slog.Any("panic", r))
		}
	}()
	fn()
}
