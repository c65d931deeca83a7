package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fazecat/morningscout/Internal/metrics"
	"github.com/fazecat/morningscout/Internal/strategy/detection"
	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	pkgs  map[string]types.Package
	delay time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	calls    []string
}

func (m *mockFetcher) Fetch(ctx context.Context, ticker string) types.Package {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxSeen.Load()
		if n <= prev || m.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, ticker)
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	pkg, ok := m.pkgs[ticker]
	if !ok {
		return types.FailedPackage(ticker, "no daily")
	}
	pkg.Ticker = ticker
	return pkg
}

func metricsPackage(gap, rel types.NullFloat) types.Package {
	return types.Package{Metrics: types.Metrics{
		Price:          types.Float(50),
		Avg20DollarVol: types.Float(2_000_000),
		GapPct:         gap,
		RelDollarVol:   rel,
	}}
}

func rankingFixture() *mockFetcher {
	f := types.Float
	return &mockFetcher{pkgs: map[string]types.Package{
		"A": metricsPackage(f(1), f(2)),
		"B": metricsPackage(f(0.5), f(5)),
		"C": metricsPackage(f(0.2), f(0.5)),
		"D": metricsPackage(f(0), f(0.5)),
		"E": metricsPackage(types.NullFloat{}, types.NullFloat{}),
		"F": metricsPackage(f(-1), f(0.9)),
		"G": {Metrics: types.Metrics{Price: f(0.5), Avg20DollarVol: f(2_000_000)}},
	}}
}

func rankingConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Scoring.Weights = map[string]int{"gap_up": 1, "volume_confirm": 2}
	cfg.Scoring.LowSignalLimit = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func tickers(rows []types.ScoredRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Ticker
	}
	return out
}

func TestRunScan_Ranking(t *testing.T) {
	cfg := rankingConfig(t)
	universe := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	res, err := RunScan(context.Background(), universe, cfg, rankingFixture(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A", "C", "F", "D"}, tickers(res.Table.Rows))
	assert.Equal(t, "Gap 0.50%; Rel $Vol 5.00x", res.Table.Rows[0].Reasons)
	assert.Equal(t, 3, res.Table.Rows[0].Score)
	assert.Equal(t, "", res.Table.Rows[4].Reasons)

	assert.Equal(t, 8, res.Stats.Requested)
	assert.Equal(t, 7, res.Stats.Fetched)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 1, res.Stats.Filtered)
	assert.Equal(t, map[string]string{"G": "price range", "H": "no daily"}, res.Stats.Rejections)

	for i := 1; i < len(res.Table.Rows); i++ {
		assert.GreaterOrEqual(t, res.Table.Rows[i-1].Score, res.Table.Rows[i].Score)
	}
}

func TestRunScan_Caps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		want   []string
	}{
		{"top n", func(cfg *config.Config) { cfg.Scoring.TopN = 3 }, []string{"B", "A", "C"}},
		{"no low signal", func(cfg *config.Config) { cfg.Scoring.IncludeLowSignal = false }, []string{"B", "A", "C"}},
		{"low signal limit zero", func(cfg *config.Config) { cfg.Scoring.LowSignalLimit = 0 }, []string{"B", "A", "C"}},
		{"missing rel sorts last", func(cfg *config.Config) { cfg.Scoring.LowSignalLimit = 10 }, []string{"B", "A", "C", "F", "D", "E"}},
		{"top n zero", func(cfg *config.Config) { cfg.Scoring.TopN = 0 }, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := rankingConfig(t)
			tt.mutate(cfg)
			res, err := RunScan(context.Background(), []string{"A", "B", "C", "D", "E", "F", "G"}, cfg, rankingFixture(), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, tickers(res.Table.Rows))
		})
	}
}

func TestRunScan_Empty(t *testing.T) {
	res, err := RunScan(context.Background(), nil, config.Default(), &mockFetcher{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Len())
	assert.Equal(t, types.Columns, res.Table.Columns())

	var buf bytes.Buffer
	require.NoError(t, res.Table.WriteCSV(&buf))
	assert.Equal(t, "ticker,score,gap_pct,rel_dollar_vol,avg20_dollar_vol,reasons\n", buf.String())

	data, err := json.Marshal(res.Table)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["ticker","score","gap_pct","rel_dollar_vol","avg20_dollar_vol","reasons"],"rows":[]}`, string(data))
}

func TestRunScan_BoundedPool(t *testing.T) {
	cfg := config.Default()
	cfg.Scan.Workers = 3
	fetcher := &mockFetcher{delay: 5 * time.Millisecond}

	universe := make([]string, 20)
	for i := range universe {
		universe[i] = string(rune('A' + i))
	}
	var progress atomic.Int32
	res, err := RunScan(context.Background(), universe, cfg, fetcher, Options{
		OnFetched: func(done, total int) {
			progress.Add(1)
			assert.Equal(t, 20, total)
		},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(3))
	assert.Len(t, fetcher.calls, 20)
	assert.Equal(t, int32(20), progress.Load())
	assert.Equal(t, 20, res.Stats.Failed)
	assert.Equal(t, int32(0), fetcher.inFlight.Load(), "pool drained before return")
}

func TestRunScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := rankingFixture()
	res, err := RunScan(ctx, []string{"A", "B"}, rankingConfig(t), fetcher, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
	assert.Equal(t, 0, res.Table.Len())
	assert.Equal(t, ReasonCanceled, res.Stats.Rejections["A"])
	assert.Equal(t, 2, res.Stats.Failed)
}

func TestRunScan_Metrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	_, err := RunScan(context.Background(), []string{"A", "G", "H"}, rankingConfig(t), rankingFixture(), Options{Metrics: m})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickersTotal.WithLabelValues("scored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickersTotal.WithLabelValues("filtered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickersTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsReturned))
}

func TestTable_CSV(t *testing.T) {
	table := Table{Rows: []types.ScoredRow{
		{Ticker: "AAA", Score: 5, GapPct: types.Float(1.005), RelDollarVol: types.Float(2.5), Avg20DollarVol: types.Float(1234567.5), Reasons: "Hammer; Gap 1.00%"},
		{Ticker: "BBB", Score: 0},
		{Ticker: "CCC", Score: 1, GapPct: types.Float(2.675), RelDollarVol: types.Float(0.125), Avg20DollarVol: types.Float(2.5), Reasons: "Gap 2.67%"},
	}}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	assert.Equal(t,
		"ticker,score,gap_pct,rel_dollar_vol,avg20_dollar_vol,reasons\n"+
			"AAA,5,1.00,2.50,1234568,Hammer; Gap 1.00%\n"+
			"BBB,0,na,na,na,\n"+
			"CCC,1,2.67,0.12,2,Gap 2.67%\n",
		buf.String())

	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2024, 3, 14, 8, 5, 9, 0, time.UTC)
	path, err := ExportCSV(table, dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scan_20240314_080509.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}

func TestRecord_AgreesWithReasonLabel(t *testing.T) {
	for _, gap := range []float64{0.125, 1.005, 2.675, 99.995} {
		label := detection.DetectGapUp(types.Float(gap)).Label
		rec := Record(types.ScoredRow{Ticker: "X", GapPct: types.Float(gap)})
		assert.Equal(t, "Gap "+rec[2]+"%", label, "%v", gap)
	}
}

func TestDescMissingLast(t *testing.T) {
	f := types.Float
	none := types.NullFloat{}
	assert.Equal(t, -1, descMissingLast(f(2), f(1)))
	assert.Equal(t, 1, descMissingLast(f(1), f(2)))
	assert.Equal(t, 0, descMissingLast(f(1), f(1)))
	assert.Equal(t, -1, descMissingLast(f(-5), none))
	assert.Equal(t, 1, descMissingLast(none, f(-5)))
	assert.Equal(t, 0, descMissingLast(none, none))
}
