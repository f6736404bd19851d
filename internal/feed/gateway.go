package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"deskcore/internal/book"
)

// GatewayTransport implements Transport over a single websocket to the
// market-data gateway. All logical streams multiplex onto one connection;
// the gateway routes frames by topic string (the key's canonical form).
// It reconnects with capped exponential backoff and replays every wanted
// subscription after each reconnect.
type GatewayTransport struct {
	url string
	log *slog.Logger

	mu        sync.RWMutex
	routes    map[string]*route
	conn      *websocket.Conn
	connected bool

	writeMu sync.Mutex

	errCh  chan error
	ctx    context.Context
	cancel context.CancelFunc
}

type route struct {
	key Key
	fn  func(Message)
}

func NewGatewayTransport(url string, logger *slog.Logger) *GatewayTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayTransport{
		url:    url,
		log:    logger,
		routes: make(map[string]*route),
		errCh:  make(chan error, 16),
	}
}

func (g *GatewayTransport) Errors() <-chan error { return g.errCh }

func (g *GatewayTransport) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// Subscribe registers a topic route and, when connected, sends the
// subscribe frame. The returned func sends the matching unsubscribe frame
// and drops the route.
func (g *GatewayTransport) Subscribe(key Key, fn func(Message)) (func(), error) {
	topic := key.Canonical()
	g.mu.Lock()
	if _, ok := g.routes[topic]; ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("duplicate upstream subscription for %s", topic)
	}
	g.routes[topic] = &route{key: key, fn: fn}
	conn := g.conn
	g.mu.Unlock()

	if conn != nil {
		if err := g.send(conn, controlFrame{Op: "subscribe", Topics: []string{topic}}); err != nil {
			// Keep the route; the reconnect loop replays it.
			g.emitErr(fmt.Errorf("subscribe %s: %w", topic, err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.routes, topic)
			conn := g.conn
			g.mu.Unlock()
			if conn != nil {
				_ = g.send(conn, controlFrame{Op: "unsubscribe", Topics: []string{topic}})
			}
		})
	}, nil
}

// Run drives the connect/read/reconnect loop until ctx is cancelled.
// onStatus fires on every connectivity transition.
func (g *GatewayTransport) Run(ctx context.Context, onStatus func(connected bool)) {
	if g.cancel != nil {
		return
	}
	g.ctx, g.cancel = context.WithCancel(ctx)

	backoff := time.Second
	for {
		select {
		case <-g.ctx.Done():
			return
		default:
		}

		conn, err := g.dial()
		if err != nil {
			g.setConnected(false, onStatus)
			g.emitErr(fmt.Errorf("gateway dial: %w", err))
			time.Sleep(backoff)
			backoff = minDur(backoff*2, 30*time.Second)
			continue
		}

		g.mu.Lock()
		g.conn = conn
		topics := make([]string, 0, len(g.routes))
		for topic := range g.routes {
			topics = append(topics, topic)
		}
		g.mu.Unlock()
		g.setConnected(true, onStatus)
		backoff = time.Second

		if len(topics) > 0 {
			if err := g.send(conn, controlFrame{Op: "subscribe", Topics: topics}); err != nil {
				g.emitErr(fmt.Errorf("resubscribe: %w", err))
				_ = conn.Close()
				continue
			}
		}

		if err := g.readLoop(conn); err != nil {
			g.setConnected(false, onStatus)
			g.emitErr(err)
		}
		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
	}
}

func (g *GatewayTransport) Close() {
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		_ = conn.Close()
	}
}

func (g *GatewayTransport) dial() (*websocket.Conn, error) {
	d := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true}, // #nosec G402 local gateway
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, "tcp4", addr)
		},
	}
	conn, _, err := d.DialContext(g.ctx, g.url, nil)
	return conn, err
}

type controlFrame struct {
	Op     string   `json:"op"`
	Topics []string `json:"topics"`
}

func (g *GatewayTransport) send(conn *websocket.Conn, v any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

func (g *GatewayTransport) readLoop(conn *websocket.Conn) error {
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			case <-stopPing:
				return
			case <-g.ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-g.ctx.Done():
			return nil
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read: %w", err)
		}
		topic, msg, ok := parseFrame(data)
		if !ok {
			// Malformed or irrelevant frame (ack, heartbeat): drop it and
			// keep the last known good state downstream.
			continue
		}
		g.mu.RLock()
		r := g.routes[topic]
		g.mu.RUnlock()
		if r == nil {
			continue
		}
		msg.Key = r.key
		r.fn(msg)
	}
}

func (g *GatewayTransport) setConnected(v bool, onStatus func(bool)) {
	g.mu.Lock()
	changed := g.connected != v
	g.connected = v
	g.mu.Unlock()
	if changed && onStatus != nil {
		onStatus(v)
	}
}

func (g *GatewayTransport) emitErr(err error) {
	select {
	case g.errCh <- err:
	default:
		// drop if buffer full
	}
}

// ---------- wire parsing ----------

type inboundFrame struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type depthPayload struct {
	Symbol string      `json:"symbol"`
	Bids   [][2]string `json:"bids"` // [price, quantity], best first
	Asks   [][2]string `json:"asks"`
	Ts     int64       `json:"ts"` // unix millis
}

type tickerPayload struct {
	Symbol        string `json:"symbol"`
	Last          string `json:"last"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Volume        string `json:"volume"`
	ChangePercent string `json:"changePercent"`
	Ts            int64  `json:"ts"`
}

type tradePayload struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
	Side  string `json:"side"`
	Ts    int64  `json:"ts"`
}

// parseFrame decodes one gateway frame into a Message. Frames that do not
// carry a routable payload report ok=false and are dropped by the caller.
func parseFrame(data []byte) (topic string, msg Message, ok bool) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Topic == "" || len(frame.Data) == 0 {
		return "", Message{}, false
	}
	switch {
	case strings.HasPrefix(frame.Topic, string(ChannelDepth)+":"):
		snap, ok := parseDepth(frame.Data, marketFromTopic(frame.Topic))
		if !ok {
			return "", Message{}, false
		}
		return frame.Topic, Message{Book: snap}, true
	case strings.HasPrefix(frame.Topic, string(ChannelTicker)+":"):
		tk, ok := parseTicker(frame.Data)
		if !ok {
			return "", Message{}, false
		}
		return frame.Topic, Message{Ticker: tk}, true
	case strings.HasPrefix(frame.Topic, string(ChannelTrades)+":"):
		trades, ok := parseTrades(frame.Data)
		if !ok {
			return "", Message{}, false
		}
		return frame.Topic, Message{Trades: trades}, true
	}
	return "", Message{}, false
}

func marketFromTopic(topic string) book.MarketType {
	parts := strings.SplitN(topic, ":", 3)
	if len(parts) == 3 && strings.HasPrefix(parts[2], string(book.MarketFutures)) {
		return book.MarketFutures
	}
	return book.MarketSpot
}

func parseDepth(data []byte, market book.MarketType) (*book.Snapshot, bool) {
	var p depthPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Symbol == "" {
		return nil, false
	}
	bids, ok := parseLevels(p.Bids)
	if !ok {
		return nil, false
	}
	asks, ok := parseLevels(p.Asks)
	if !ok {
		return nil, false
	}
	snap := &book.Snapshot{
		Symbol:     strings.ToUpper(p.Symbol),
		Market:     market,
		Bids:       bids,
		Asks:       asks,
		ReceivedAt: time.UnixMilli(p.Ts),
	}
	if err := snap.Validate(); err != nil {
		return nil, false
	}
	return snap, true
}

func parseLevels(rows [][2]string) ([]book.PriceLevel, bool) {
	levels := make([]book.PriceLevel, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, false
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, false
		}
		levels = append(levels, book.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, true
}

func parseTicker(data []byte) (*Ticker, bool) {
	var p tickerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Symbol == "" {
		return nil, false
	}
	last, err1 := decimal.NewFromString(p.Last)
	high, err2 := decimal.NewFromString(p.High)
	low, err3 := decimal.NewFromString(p.Low)
	vol, err4 := decimal.NewFromString(p.Volume)
	chg, err5 := decimal.NewFromString(p.ChangePercent)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return nil, false
	}
	return &Ticker{
		Symbol:        strings.ToUpper(p.Symbol),
		Last:          last,
		High:          high,
		Low:           low,
		Volume:        vol,
		ChangePercent: chg,
		At:            time.UnixMilli(p.Ts),
	}, true
}

func parseTrades(data []byte) ([]Trade, bool) {
	var rows []tradePayload
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	trades := make([]Trade, 0, len(rows))
	for _, r := range rows {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(r.Qty)
		if err != nil {
			continue
		}
		trades = append(trades, Trade{Price: price, Quantity: qty, Side: r.Side, At: time.UnixMilli(r.Ts)})
	}
	if len(trades) == 0 {
		return nil, false
	}
	return trades, true
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
