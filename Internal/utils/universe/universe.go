package universe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// AssetLister is the part of the Alpaca trading client that lists assets.
type AssetLister interface {
	GetAssets(req alpaca.GetAssetsRequest) ([]alpaca.Asset, error)
}

var _ AssetLister = (*alpaca.Client)(nil)

// SymbolLister returns the symbols on the stored watchlist.
type SymbolLister interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// Options carries the optional backends for the named universes.
type Options struct {
	Assets    AssetLister
	Watchlist SymbolLister
}

var (
	sp500Fallback = []string{
		"AAPL", "MSFT", "NVDA", "AMZN", "META", "GOOGL", "BRK-B", "LLY",
		"AVGO", "JPM", "XOM", "JNJ", "V", "WMT", "UNH",
	}
	nasdaq100Fallback = []string{
		"AAPL", "MSFT", "NVDA", "AMZN", "META", "GOOGL", "AVGO", "TSLA",
		"PEP", "COST", "ADBE", "NFLX", "AMD", "INTC", "CSCO",
	}
)

// Resolve turns a universe name or a path to a ticker file into a
// sorted, de-duplicated, upper-cased ticker list. A readable file wins over
// a built-in name.
func Resolve(ctx context.Context, name string, opts Options) ([]string, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return readTickerFile(name)
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sp500":
		return normalizeTickers(sp500Fallback), nil
	case "nasdaq100":
		return normalizeTickers(nasdaq100Fallback), nil
	case "alpaca":
		if opts.Assets == nil {
			return nil, errors.New("alpaca universe requires an Alpaca trading client")
		}
		return tradableAssets(opts.Assets)
	case "watchlist":
		if opts.Watchlist == nil {
			return nil, errors.New("watchlist universe requires a database connection")
		}
		symbols, err := opts.Watchlist.ActiveSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load watchlist: %w", err)
		}
		return normalizeTickers(symbols), nil
	}
	return nil, fmt.Errorf("Unknown universe or missing file: %s", name)
}

func readTickerFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tickers []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tickers = append(tickers, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return normalizeTickers(tickers), nil
}

// tradableAssets lists active, tradable US equities.
func tradableAssets(client AssetLister) ([]string, error) {
	assets, err := client.GetAssets(alpaca.GetAssetsRequest{
		Status: "active",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assets from Alpaca: %w", err)
	}

	symbols := make([]string, 0, len(assets))
	for _, asset := range assets {
		if asset.Class == "us_equity" && asset.Tradable {
			symbols = append(symbols, asset.Symbol)
		}
	}

	slog.Info("fetched tradable assets", "count", len(symbols))
	return normalizeTickers(symbols), nil
}

func normalizeTickers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
