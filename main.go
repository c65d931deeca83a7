package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	datafeed "github.com/fazecat/morningscout/Internal/database"
	"github.com/fazecat/morningscout/Internal/handlers"
	"github.com/fazecat/morningscout/Internal/logger"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment")
	}
	logger.Init("morningscout", logger.ParseLevel(os.Getenv("LOG_LEVEL")), false)

	configPath := os.Getenv(config.EnvConfigPath)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	session := handlers.NewSession(cfg, configPath, os.Stdin, os.Stdout)

	if trading, err := datafeed.NewTradingClient(); err == nil {
		session.Universe.Assets = trading
	} else {
		slog.Debug("alpaca universe disabled", "error", err)
	}

	if os.Getenv("DB_PASSWORD") != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := datafeed.OpenDatabase(ctx, datafeed.DatabaseConfigFromEnv())
		cancel()
		if err != nil {
			slog.Warn("watchlist universe disabled", "error", err)
		} else {
			defer db.Close()
			session.Universe.Watchlist = datafeed.NewWatchlistStore(db)
			slog.Info("watchlist database connected")
		}
	}

	for {
		fmt.Println("\n--- MorningScout Menu ---")
		fmt.Println("1. Run Scan")
		fmt.Println("2. View Results")
		fmt.Println("3. Ticker Detail")
		fmt.Println("4. Export CSV")
		fmt.Println("5. Configure")
		fmt.Println("6. Market Status")
		fmt.Println("7. Exit")
		fmt.Print("Enter choice (1-7): ")

		line, err := session.In.ReadString('\n')
		if err != nil && line == "" {
			fmt.Println("\nGoodbye!")
			return
		}

		switch strings.TrimSpace(line) {
		case "1":
			// Ctrl-C stops the running scan and keeps what finished
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			session.HandleScan(ctx)
			stop()
		case "2":
			session.HandleViewResults()
		case "3":
			session.HandleTickerDetail()
		case "4":
			session.HandleExport()
		case "5":
			session.HandleConfigure()
		case "6":
			session.HandleMarketStatus()
		case "7":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Try again.")
		}
	}
}
