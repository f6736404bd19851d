package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"deskcore/internal/book"
	"deskcore/internal/bridge"
	"deskcore/internal/config"
	"deskcore/internal/panel"
	"deskcore/internal/state"
)

// HTTPServer exposes the workspace over REST and pushes streaming view
// state to browsers through the websocket hub.
type HTTPServer struct {
	cfg config.Config
	st  *state.State
	ws  *panel.Workspace
	bus *bridge.Bus
	hub *hub
	log *slog.Logger
	mux *http.ServeMux
}

func NewHTTPServer(cfg config.Config, st *state.State, ws *panel.Workspace, bus *bridge.Bus, logger *slog.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg: cfg,
		st:  st,
		ws:  ws,
		bus: bus,
		log: logger,
		mux: http.NewServeMux(),
	}
	s.hub = newHub(logger, s.handleCommand)
	s.routes()
	go s.hub.run()
	return s
}

func (s *HTTPServer) Router() http.Handler { return s.mux }

func (s *HTTPServer) handleCommand(cmd clientCommand) {
	switch cmd.Op {
	case "switch":
		s.switchMarket(cmd.Symbol, cmd.Market)
	}
}

func (s *HTTPServer) switchMarket(symbol, market string) {
	mkt := book.MarketSpot
	if strings.EqualFold(market, string(book.MarketFutures)) {
		mkt = book.MarketFutures
	}
	s.bus.PublishMarketSwitched(bridge.MarketSwitched{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Market: mkt,
	})
	s.BroadcastStatus()
}

// --------- WS broadcasts ----------

func (s *HTTPServer) BroadcastStatus() {
	s.hub.broadcast <- marshalWS("status", map[string]any{
		"connected": s.st.Connected(),
		"symbol":    s.st.Symbol(),
		"market":    s.st.Market(),
	})
}

func (s *HTTPServer) BroadcastBook(view panel.BookView) {
	s.hub.broadcast <- marshalWS("book", view)
}

func (s *HTTPServer) BroadcastError(msg string) {
	s.hub.broadcast <- marshalWS("error", map[string]string{"message": msg})
}

// --------- Routes ----------

func (s *HTTPServer) routes() {
	s.mux.HandleFunc("/ws", s.hub.serveWS)

	s.mux.HandleFunc("/api/health", s.apiHealth)
	s.mux.HandleFunc("/api/config", s.apiConfig)
	s.mux.HandleFunc("/api/symbol", s.apiSymbol)
	s.mux.HandleFunc("/api/book", s.apiBook)
	s.mux.HandleFunc("/api/orders", s.apiOrders)
	s.mux.HandleFunc("/api/balances", s.apiBalances)
}

func (s *HTTPServer) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"ok":        true,
		"connected": s.st.Connected(),
	})
}

func (s *HTTPServer) apiConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"symbol":            s.st.Symbol(),
		"market":            s.st.Market(),
		"bookRows":          s.cfg.BookRows,
		"fetchCooldownMs":   s.cfg.FetchCooldownMs,
		"loadingTimeoutSec": s.cfg.LoadingTimeoutSecs,
	})
}

func (s *HTTPServer) apiSymbol(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Symbol string `json:"symbol"`
		Market string `json:"market"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Symbol) == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}
	s.switchMarket(body.Symbol, body.Market)
	writeJSON(w, map[string]any{"symbol": s.st.Symbol(), "market": s.st.Market()})
}

func (s *HTTPServer) apiBook(w http.ResponseWriter, r *http.Request) {
	view, st := s.ws.Book.Snapshot()
	writeJSON(w, map[string]any{
		"view":   view,
		"status": statusBody(st),
	})
}

func (s *HTTPServer) apiOrders(w http.ResponseWriter, r *http.Request) {
	value, st := s.ws.Orders.Load(r.Context())
	writeJSON(w, map[string]any{
		"orders": value,
		"status": statusBody(st),
	})
}

func (s *HTTPServer) apiBalances(w http.ResponseWriter, r *http.Request) {
	value, st := s.ws.Balances.Load(r.Context())
	writeJSON(w, map[string]any{
		"balances": value,
		"status":   statusBody(st),
	})
}

func statusBody(st panel.Status) map[string]any {
	body := map[string]any{
		"isLoading": st.IsLoading,
		"isStale":   st.IsStale,
	}
	if st.Err != nil {
		body["error"] = st.Err.Error()
	}
	return body
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
