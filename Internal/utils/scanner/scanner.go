package scanner

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fazecat/morningscout/Internal/metrics"
	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/scoring"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Metrics *metrics.Metrics
	// OnFetched is called from worker goroutines after each ticker resolves.
	OnFetched func(done, total int)
}

// Stats summarises one scan. Rejections maps each failed or filtered
// ticker to its reason.
type Stats struct {
	Requested  int               `json:"requested"`
	Fetched    int               `json:"fetched"`
	Failed     int               `json:"failed"`
	Filtered   int               `json:"filtered"`
	Duration   time.Duration     `json:"duration"`
	Rejections map[string]string `json:"rejections,omitempty"`
}

type Result struct {
	Table    Table                    `json:"table"`
	Stats    Stats                    `json:"stats"`
	Packages map[string]types.Package `json:"-"`
}

// RunScan fetches every ticker on a bounded pool, then filters, scores and
// ranks the packages. Per-ticker failures never fail the scan. When ctx is
// canceled the remaining tickers are recorded as failed, the pool is drained
// and the partial result is returned with ctx's error.
func RunScan(ctx context.Context, tickers []string, cfg *config.Config, fetcher Fetcher, opts Options) (Result, error) {
	start := time.Now()
	pkgs := fetchAll(ctx, tickers, cfg.Scan.Workers, fetcher, opts)

	res := Result{
		Stats: Stats{
			Requested:  len(tickers),
			Rejections: map[string]string{},
		},
		Packages: make(map[string]types.Package, len(pkgs)),
	}

	scorer := scoring.NewScorer(cfg)
	var signal, low []types.ScoredRow
	for _, pkg := range pkgs {
		res.Packages[pkg.Ticker] = pkg
		if pkg.Failed() {
			res.Stats.Failed++
			res.Stats.Rejections[pkg.Ticker] = pkg.Failure
			opts.Metrics.TickerFailed(pkg.Failure)
			slog.Debug("ticker failed", "ticker", pkg.Ticker, "reason", pkg.Failure)
			continue
		}
		res.Stats.Fetched++

		if ok, why := scoring.ApplyFilters(pkg, cfg); !ok {
			res.Stats.Filtered++
			res.Stats.Rejections[pkg.Ticker] = why
			opts.Metrics.TickerFiltered(why)
			continue
		}

		score, reasons := scorer.Score(pkg)
		opts.Metrics.TickerScored()
		row := types.ScoredRow{
			Ticker:         pkg.Ticker,
			Score:          score,
			GapPct:         pkg.Metrics.GapPct,
			RelDollarVol:   pkg.Metrics.RelDollarVol,
			Avg20DollarVol: pkg.Metrics.Avg20DollarVol,
			Reasons:        strings.Join(reasons, "; "),
		}
		switch {
		case score > 0:
			signal = append(signal, row)
		case cfg.Scoring.IncludeLowSignal:
			low = append(low, row)
		}
	}

	res.Table = rank(signal, low, cfg.Scoring.LowSignalLimit, cfg.Scoring.TopN)
	res.Stats.Duration = time.Since(start)
	opts.Metrics.ScanFinished(res.Stats.Duration, res.Table.Len())

	slog.Info("scan complete",
		"tickers", res.Stats.Requested,
		"fetched", res.Stats.Fetched,
		"failed", res.Stats.Failed,
		"filtered", res.Stats.Filtered,
		"rows", res.Table.Len(),
		"duration", res.Stats.Duration,
	)
	return res, ctx.Err()
}

// fetchAll returns one package per ticker in completion order.
func fetchAll(ctx context.Context, tickers []string, workers int, fetcher Fetcher, opts Options) []types.Package {
	if workers < 1 {
		workers = 1
	}
	var (
		mu   sync.Mutex
		pkgs = make([]types.Package, 0, len(tickers))
	)
	collect := func(pkg types.Package) {
		mu.Lock()
		pkgs = append(pkgs, pkg)
		done := len(pkgs)
		mu.Unlock()
		if opts.OnFetched != nil {
			opts.OnFetched(done, len(tickers))
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			collect(types.FailedPackage(ticker, ReasonCanceled))
			continue
		}
		g.Go(func() error {
			pkg, took := timedFetch(ctx, fetcher, ticker)
			opts.Metrics.ObserveFetch(took)
			collect(pkg)
			return nil
		})
	}
	g.Wait()
	return pkgs
}

// rank caps the low-signal rows by relative dollar volume, merges them with
// the signal rows and orders by score, then rel_dollar_vol, then gap_pct,
// all descending with missing values last.
func rank(signal, low []types.ScoredRow, lowLimit, topN int) Table {
	sort.SliceStable(low, func(i, j int) bool {
		return descMissingLast(low[i].RelDollarVol, low[j].RelDollarVol) < 0
	})
	if len(low) > lowLimit {
		low = low[:lowLimit]
	}

	rows := make([]types.ScoredRow, 0, len(signal)+len(low))
	rows = append(rows, signal...)
	rows = append(rows, low...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c := descMissingLast(a.RelDollarVol, b.RelDollarVol); c != 0 {
			return c < 0
		}
		return descMissingLast(a.GapPct, b.GapPct) < 0
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	return Table{Rows: rows}
}

// descMissingLast orders a before b (-1) when a is larger or b is missing.
func descMissingLast(a, b types.NullFloat) int {
	switch {
	case a.Valid && !b.Valid:
		return -1
	case !a.Valid && b.Valid:
		return 1
	case !a.Valid && !b.Valid, a.Float64 == b.Float64:
		return 0
	case a.Float64 > b.Float64:
		return -1
	}
	return 1
}
