package feed

import "sync"

// MockTransport is an in-process Transport for tests and demos. It records
// subscribe/unsubscribe counts per canonical key and lets tests push
// messages by hand.
type MockTransport struct {
	mu       sync.Mutex
	routes   map[string]func(Message)
	subs     map[string]int
	unsubs   map[string]int
	failNext error
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		routes: make(map[string]func(Message)),
		subs:   make(map[string]int),
		unsubs: make(map[string]int),
	}
}

func (m *MockTransport) Subscribe(key Key, fn func(Message)) (func(), error) {
	canon := key.Canonical()
	m.mu.Lock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		m.mu.Unlock()
		return nil, err
	}
	m.subs[canon]++
	m.routes[canon] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.unsubs[canon]++
		delete(m.routes, canon)
		m.mu.Unlock()
	}, nil
}

// Push delivers a message to the current subscriber of key, if any.
func (m *MockTransport) Push(key Key, msg Message) {
	m.mu.Lock()
	fn := m.routes[key.Canonical()]
	m.mu.Unlock()
	if fn != nil {
		msg.Key = key
		fn(msg)
	}
}

// Dispatcher exposes the raw dispatch func so tests can simulate a message
// already in flight at dispose time.
func (m *MockTransport) Dispatcher(key Key) func(Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routes[key.Canonical()]
}

func (m *MockTransport) SubscribeCount(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[key.Canonical()]
}

func (m *MockTransport) UnsubscribeCount(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubs[key.Canonical()]
}

// FailNextSubscribe makes the next Subscribe call return err.
func (m *MockTransport) FailNextSubscribe(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}
