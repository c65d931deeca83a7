package interactive

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() scanner.Table {
	return scanner.Table{Rows: []types.ScoredRow{
		{Ticker: "NVDA", Score: 6, GapPct: types.Float(1.234), RelDollarVol: types.Float(3.5), Avg20DollarVol: types.Float(9.5e9), Reasons: "MA stack up; Gap 1.23%"},
		{Ticker: "INTC", Score: 0, Avg20DollarVol: types.Float(2e9)},
	}}
}

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestDisplayResults(t *testing.T) {
	var out bytes.Buffer
	DisplayResults(&out, sampleTable())

	text := out.String()
	assert.Contains(t, text, "NVDA")
	assert.Contains(t, text, "1.23")
	assert.Contains(t, text, "9500000000")
	assert.Contains(t, text, "MA stack up; Gap 1.23%")
	assert.Regexp(t, `2\s+\| INTC\s+\|\s+0 \|\s+na \|\s+na`, text)

	out.Reset()
	DisplayResults(&out, scanner.Table{})
	assert.Contains(t, out.String(), "No tickers passed the filters.")
}

func TestDisplayScanSummary(t *testing.T) {
	var out bytes.Buffer
	DisplayScanSummary(&out, scanner.Stats{
		Requested: 4, Fetched: 3, Failed: 1, Filtered: 2, Duration: 1500 * time.Millisecond,
		Rejections: map[string]string{"A": "illiquid", "B": "illiquid", "C": "no daily"},
	}, true)

	text := out.String()
	assert.Contains(t, text, "Scanned 4 tickers in 1.5s: 3 fetched, 1 failed, 2 filtered")
	assert.Less(t, strings.Index(text, "illiquid"), strings.Index(text, "no daily"))
}

func TestPickTickerFromResults(t *testing.T) {
	table := sampleTable()
	var out bytes.Buffer

	got, err := PickTickerFromResults(reader("2\n"), &out, table)
	require.NoError(t, err)
	assert.Equal(t, "INTC", got)

	got, err = PickTickerFromResults(reader(" nvda\n"), &out, table)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", got)

	_, err = PickTickerFromResults(reader("3\n"), &out, table)
	assert.Error(t, err)

	_, err = PickTickerFromResults(reader("AMD\n"), &out, table)
	assert.Error(t, err)

	_, err = PickTickerFromResults(reader("1\n"), &out, scanner.Table{})
	assert.Error(t, err)
}

func TestDisplayTickerDetail(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.Weights = map[string]int{"morning_star": 3}

	pkg := types.Package{
		Ticker: "STAR",
		Daily: []types.Bar{
			{Open: 10, High: 10.5, Low: 9.8, Close: 9.9},
			{Open: 9.95, High: 10.05, Low: 9.85, Close: 10.0},
			{Open: 10.1, High: 10.6, Low: 10.0, Close: 10.5},
		},
		Metrics: types.Metrics{Price: types.Float(10.5)},
	}

	var out bytes.Buffer
	DisplayTickerDetail(&out, pkg, cfg)
	text := out.String()
	assert.Contains(t, text, "STAR DETAIL")
	assert.Contains(t, text, "SMA20   na")
	assert.Regexp(t, `✅ bullish\s+morning_star\s+\+3\s+Morning Star`, text)
	assert.Regexp(t, `indecision\s+doji\s+veto`, text)
	assert.Contains(t, text, "Price: 10.50 | Gap: na%")

	out.Reset()
	DisplayTickerDetail(&out, types.FailedPackage("GONE", "no daily"), cfg)
	assert.Contains(t, out.String(), "No data: no daily")
}

func TestShowMenus(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, "sp500", ShowUniverseMenu(reader("\n"), &out, "sp500"))
	assert.Equal(t, "nasdaq100", ShowUniverseMenu(reader("2\n"), &out, "sp500"))
	assert.Equal(t, "universes/tech.csv", ShowUniverseMenu(reader("universes/tech.csv\n"), &out, "sp500"))

	assert.Equal(t, scanner.ModeSample, ShowModeMenu(reader("2\n"), &out, scanner.ModeLive))
	assert.Equal(t, scanner.ModeLive, ShowModeMenu(reader("live\n"), &out, scanner.ModeSample))
	assert.Equal(t, scanner.ModeLive, ShowModeMenu(reader("\n"), &out, scanner.ModeLive))
}
