package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskcore/internal/book"
	"deskcore/internal/bridge"
	"deskcore/internal/config"
	"deskcore/internal/feed"
	"deskcore/internal/fetch"
	"deskcore/internal/panel"
	"deskcore/internal/server"
	"deskcore/internal/state"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config.yaml: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel)

	logger.Info("deskcore starting",
		slog.Int("port", cfg.Port),
		slog.String("symbol", cfg.DefaultSymbol),
		slog.String("gateway_ws_url", cfg.GatewayWSURL),
	)

	st := state.NewState(cfg.DefaultSymbol, book.MarketType(cfg.DefaultMarket))
	bus := bridge.NewBus()

	// Streaming side: one gateway websocket fanned out per key.
	transport := feed.NewGatewayTransport(cfg.GatewayWSURL, logger)
	coord := feed.NewCoordinator(transport, logger)

	// REST side: deduped, cooled-down reads over the gateway's HTTP API.
	rest := fetch.NewClient(cfg.RestBaseURL, logger)
	fc := fetch.NewCoordinator(logger)

	orders := panel.NewListPanel(fc, "orders", cfg.FetchCooldown(), func(ctx context.Context) (any, error) {
		var out []map[string]any
		if err := rest.GetJSON(ctx, "/api/v1/orders/open", &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	balances := panel.NewListPanel(fc, "balances", cfg.FetchCooldown(), func(ctx context.Context) (any, error) {
		var out map[string]any
		if err := rest.GetJSON(ctx, "/api/v1/wallet/balances", &out); err != nil {
			return nil, err
		}
		return out, nil
	})

	agg := book.NewAggregator(cfg.BookRows)
	var srv *server.HTTPServer
	bookPanel := panel.NewBookPanel(coord, agg, cfg.LoadingTimeout(), cfg.BookHeightPx, logger,
		func(view panel.BookView) {
			if srv != nil {
				srv.BroadcastBook(view)
			}
		})

	workspace := panel.NewWorkspace(bookPanel, orders, balances, coord, st, logger)
	workspace.Attach(bus)

	srv = server.NewHTTPServer(cfg, st, workspace, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gateway connect loop; connectivity flips mark the book stale rather
	// than clearing it.
	go transport.Run(ctx, func(connected bool) {
		st.SetConnected(connected)
		if !connected {
			bookPanel.MarkStale()
		}
		srv.BroadcastStatus()
	})

	go func() {
		for {
			select {
			case err := <-transport.Errors():
				if err != nil {
					logger.Error("gateway", slog.String("err", err.Error()))
					srv.BroadcastError(err.Error())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := bookPanel.Watch(st.Symbol(), st.Market()); err != nil {
		logger.Error("initial watch", slog.String("err", err.Error()))
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(),
	}

	done := make(chan struct{})
	go func() {
		logger.Info("HTTP server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("err", err.Error()))
			cancel()
		}
		close(done)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	logger.Info("shutting down...")
	shCtx, shCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shCancel()

	_ = httpSrv.Shutdown(shCtx)
	workspace.Detach()
	transport.Close()
	<-done
	logger.Info("bye")
}
