package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	datafeed "github.com/fazecat/morningscout/Internal/database"
	"github.com/fazecat/morningscout/Internal/strategy/indicators"
	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils"
	"github.com/fazecat/morningscout/Internal/utils/config"
)

const (
	ModeLive   = "live"
	ModeSample = "sample"

	// ReasonCanceled marks tickers that were not fetched because the scan was canceled.
	ReasonCanceled = "canceled"

	avgWindow          = 20
	baselineFraction   = 0.05
	minBaselineDollars = 1.0
)

// Fetcher turns one ticker into an enriched package. Implementations must
// report problems through Package.Failure rather than panicking.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) types.Package
}

// DataProvider enriches raw bars from a BarSource with indicators, the
// premarket slice and the derived metrics.
type DataProvider struct {
	source datafeed.BarSource
	cfg    *config.Config
}

func NewDataProvider(source datafeed.BarSource, cfg *config.Config) *DataProvider {
	return &DataProvider{source: source, cfg: cfg}
}

// NewBarSource picks the source for a data mode. Live mode needs Alpaca
// credentials in the environment.
func NewBarSource(mode string, cfg *config.Config) (datafeed.BarSource, error) {
	switch mode {
	case ModeSample:
		return datafeed.NewFixtureSource(cfg.Data.SampleDir, cfg.Location()), nil
	case ModeLive, "":
		client, err := datafeed.NewMarketDataClient()
		if err != nil {
			return nil, err
		}
		return datafeed.NewAlpacaSource(client, cfg.Data.DailyLookbackDays, cfg.Data.Feed, cfg.Location()), nil
	}
	return nil, fmt.Errorf("unknown data mode %q: want live or sample", mode)
}

var _ Fetcher = (*DataProvider)(nil)

func (p *DataProvider) Fetch(ctx context.Context, ticker string) types.Package {
	daily, err := p.source.DailyBars(ctx, ticker)
	if err != nil {
		return failure(ticker, err)
	}
	if len(daily) == 0 {
		return types.FailedPackage(ticker, "no daily")
	}

	intraday, err := p.source.IntradayBars(ctx, ticker)
	if err != nil {
		return failure(ticker, err)
	}

	ind := p.cfg.Indicators
	pkg := types.Package{
		Ticker:       ticker,
		Daily:        daily,
		DailyOverlay: indicators.ComputeDaily(daily, ind.MAPeriods, ind.RSIPeriod, ind.ATRPeriod),
		Premarket:    SlicePremarket(intraday, p.cfg.Window()),
	}
	pkg.PremarketOverlay = types.Overlay{VWAP: indicators.CalculateVWAP(pkg.Premarket)}
	pkg.Metrics = DeriveMetrics(pkg.Daily, pkg.Premarket)
	return pkg
}

func failure(ticker string, err error) types.Package {
	var noData *datafeed.NoDataError
	switch {
	case errors.As(err, &noData):
		return types.FailedPackage(ticker, noData.Reason)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.FailedPackage(ticker, ReasonCanceled)
	}
	slog.Debug("fetch failed", "ticker", ticker, "error", err)
	return types.FailedPackage(ticker, err.Error())
}

// SlicePremarket keeps the bars whose exchange-local wall clock falls in
// the window, bounds inclusive.
func SlicePremarket(bars []types.Bar, window utils.ClockWindow) []types.Bar {
	var out []types.Bar
	for _, b := range bars {
		if window.Contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	return out
}

// DeriveMetrics computes price, gap, average and relative dollar volume.
//
//	price    = last daily close
//	gap      = % change of the last premarket close over price
//	avg20    = mean(last 20 volumes) * mean(last 20 closes)
//	rel      = premarket dollar volume / max(avg20 * 5%, 1)
func DeriveMetrics(daily, premarket []types.Bar) types.Metrics {
	var m types.Metrics
	if len(daily) == 0 {
		return m
	}
	m.Price = types.Float(daily[len(daily)-1].Close)

	preCloses := make([]types.NullFloat, len(premarket))
	for i, b := range premarket {
		preCloses[i] = types.Float(b.Close)
	}
	m.GapPct = indicators.PercentChange(types.Last(preCloses), m.Price)

	recent := daily
	if len(recent) > avgWindow {
		recent = recent[len(recent)-avgWindow:]
	}
	vols := make([]float64, len(recent))
	closes := make([]float64, len(recent))
	for i, b := range recent {
		vols[i] = b.Volume
		closes[i] = b.Close
	}
	avgVol, okVol := utils.Average(vols)
	avgClose, okClose := utils.Average(closes)
	if okVol && okClose {
		m.Avg20DollarVol = types.Float(avgVol * avgClose)
	}

	if len(premarket) == 0 || !m.Avg20DollarVol.Valid {
		return m
	}
	preDollarVol := 0.0
	for _, b := range premarket {
		if dv := b.Close * b.Volume; !math.IsNaN(dv) && !math.IsInf(dv, 0) {
			preDollarVol += dv
		}
	}
	baseline := math.Max(m.Avg20DollarVol.Float64*baselineFraction, minBaselineDollars)
	m.RelDollarVol = types.Float(preDollarVol / baseline)
	return m
}

// timedFetch wraps a fetch with its duration.
func timedFetch(ctx context.Context, f Fetcher, ticker string) (types.Package, time.Duration) {
	start := time.Now()
	pkg := f.Fetch(ctx, ticker)
	return pkg, time.Since(start)
}
