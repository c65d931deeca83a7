package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	datafeed "github.com/fazecat/morningscout/Internal/database"
	"github.com/fazecat/morningscout/Internal/logger"
	"github.com/fazecat/morningscout/Internal/metrics"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/scanner"
	"github.com/fazecat/morningscout/cmd/api/internal"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")
	logger.Init("morningscout-api", logger.ParseLevel(os.Getenv("LOG_LEVEL")), true)

	cfg, err := config.LoadConfig("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if os.Getenv("API_CLIENT_KEY") == "" {
		slog.Warn("API_CLIENT_KEY not set, token issuance disabled")
	}
	if os.Getenv("JWT_SECRET_KEY") == "" {
		slog.Warn("JWT_SECRET_KEY not set, signing with the development key")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	api := &internal.API{
		Cfg:        cfg,
		JWTManager: internal.NewJWTManager(os.Getenv("JWT_SECRET_KEY")),
		Metrics:    metrics.NewMetrics(reg),
		Gatherer:   reg,
		ClientKey:  os.Getenv("API_CLIENT_KEY"),
		NewSource:  scanner.NewBarSource,
	}

	if trading, err := datafeed.NewTradingClient(); err == nil {
		api.Universe.Assets = trading
	} else {
		slog.Warn("alpaca universe disabled", "error", err)
	}

	if os.Getenv("DB_PASSWORD") != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := datafeed.OpenDatabase(ctx, datafeed.DatabaseConfigFromEnv())
		cancel()
		if err != nil {
			slog.Warn("watchlist universe disabled", "error", err)
		} else {
			defer db.Close()
			store := datafeed.NewWatchlistStore(db)
			api.Universe.Watchlist = store
			api.Watchlist = store
		}
	}

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
