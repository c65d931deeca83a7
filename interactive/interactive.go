package interactive

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fazecat/morningscout/Internal/strategy/detection"
	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/formatting"
	"github.com/fazecat/morningscout/Internal/utils/scanner"
)

const (
	lineWidth     = 100
	reasonsWidth  = 48
	resultsHeader = "%-4s | %-8s | %5s | %8s | %8s | %14s | %s\n"
	resultsRow    = "%-4d | %-8s | %5d | %8s | %8s | %14s | %s\n"
)

var universeChoices = []string{"sp500", "nasdaq100", "alpaca", "watchlist"}

// DisplayResults prints the ranked table with the display conventions used
// for export.
func DisplayResults(out io.Writer, table scanner.Table) {
	fmt.Fprintln(out, "\n"+formatting.Separator(lineWidth))
	fmt.Fprintln(out, "MORNING UPTREND SCAN")
	fmt.Fprintln(out, formatting.Separator(lineWidth))

	if table.Len() == 0 {
		fmt.Fprintln(out, "No tickers passed the filters.")
		return
	}

	fmt.Fprintf(out, resultsHeader, "Rank", "Ticker", "Score", "Gap %", "Rel $Vol", "Avg $Vol", "Reasons")
	fmt.Fprintln(out, formatting.RepeatString("-", lineWidth))
	for i, row := range table.Rows {
		rec := scanner.Record(row)
		fmt.Fprintf(out, resultsRow, i+1, row.Ticker, row.Score, rec[2], rec[3], rec[4], formatting.Truncate(row.Reasons, reasonsWidth))
	}
}

// DisplayScanSummary prints counts and, when verbose, every rejection.
func DisplayScanSummary(out io.Writer, stats scanner.Stats, verbose bool) {
	fmt.Fprintf(out, "\nScanned %d tickers in %s: %d fetched, %d failed, %d filtered\n",
		stats.Requested, stats.Duration.Round(time.Millisecond), stats.Fetched, stats.Failed, stats.Filtered)
	if !verbose || len(stats.Rejections) == 0 {
		return
	}
	counts := map[string]int{}
	for _, reason := range stats.Rejections {
		counts[reason]++
	}
	for _, reason := range sortedByCount(counts) {
		fmt.Fprintf(out, "   %4d  %s\n", counts[reason], reason)
	}
}

func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// PickTickerFromResults lets the user choose a row by rank or ticker.
func PickTickerFromResults(in *bufio.Reader, out io.Writer, table scanner.Table) (string, error) {
	if table.Len() == 0 {
		return "", fmt.Errorf("no results to choose from")
	}
	fmt.Fprintln(out, "\nSelect a ticker to analyze in detail:")
	for i, row := range table.Rows {
		fmt.Fprintf(out, "%d. %s (Score: %d)\n", i+1, row.Ticker, row.Score)
	}
	fmt.Fprint(out, "Enter rank or ticker: ")

	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 || n > table.Len() {
			return "", fmt.Errorf("invalid choice %d", n)
		}
		return table.Rows[n-1].Ticker, nil
	}
	ticker := strings.ToUpper(line)
	if _, ok := table.Row(ticker); !ok {
		return "", fmt.Errorf("%q is not in the results", line)
	}
	return ticker, nil
}

// DisplayTickerDetail shows the last overlay values, the metrics and every
// rule of the catalog with its weight and whether it matched.
func DisplayTickerDetail(out io.Writer, pkg types.Package, cfg *config.Config) {
	fmt.Fprintln(out, "\n"+formatting.Separator(lineWidth))
	fmt.Fprintf(out, "%s DETAIL\n", pkg.Ticker)
	fmt.Fprintln(out, formatting.Separator(lineWidth))

	if pkg.Failed() {
		fmt.Fprintf(out, "No data: %s\n", pkg.Failure)
		return
	}

	fmt.Fprintln(out, "\n=== Daily Indicators ===")
	for _, p := range cfg.Indicators.MAPeriods {
		fmt.Fprintf(out, "SMA%-4d %s\n", p, formatting.Fixed(pkg.DailyOverlay.LastSMA(p), 2))
	}
	fmt.Fprintf(out, "RSI%-4d %s\n", cfg.Indicators.RSIPeriod, formatting.Fixed(types.Last(pkg.DailyOverlay.RSI), 2))
	fmt.Fprintf(out, "ATR%-4d %s\n", cfg.Indicators.ATRPeriod, formatting.Fixed(types.Last(pkg.DailyOverlay.ATR), 2))

	fmt.Fprintln(out, "\n=== Premarket ===")
	fmt.Fprintf(out, "Bars: %d | VWAP: %s\n", len(pkg.Premarket), formatting.Fixed(types.Last(pkg.PremarketOverlay.VWAP), 2))

	m := pkg.Metrics
	fmt.Fprintln(out, "\n=== Metrics ===")
	fmt.Fprintf(out, "Price: %s | Gap: %s%% | Rel $Vol: %sx | Avg20 $Vol: %s\n",
		formatting.Fixed(m.Price, 2), formatting.Fixed(m.GapPct, 2), formatting.Fixed(m.RelDollarVol, 2), formatting.Fixed(m.Avg20DollarVol, 0))

	displayRuleMatches(out, pkg, cfg)
}

func displayRuleMatches(out io.Writer, pkg types.Package, cfg *config.Config) {
	fmt.Fprintln(out, "\n=== Rules ===")
	detector := detection.NewPatternDetector()
	ev := detection.EvidenceFrom(pkg)
	for _, rule := range detection.Rules() {
		signal := rule.Evaluate(detector, ev)
		mark := "  "
		label := rule.Pattern.Label()
		if signal.Detected {
			mark = "✅"
			label = signal.Label
		}
		if label == "" {
			label = rule.Key
		}
		weight := "veto"
		if rule.Weighted {
			weight = fmt.Sprintf("%+d", cfg.Weight(rule.Key))
		}
		fmt.Fprintf(out, "%s %-10s %-22s %-5s %s\n", mark, rule.Polarity, rule.Key, weight, label)
	}
}

// ShowUniverseMenu asks for a universe name or file path. Empty input keeps def.
func ShowUniverseMenu(in *bufio.Reader, out io.Writer, def string) string {
	fmt.Fprintln(out, "\nChoose universe:")
	for i, u := range universeChoices {
		fmt.Fprintf(out, "%d. %s\n", i+1, u)
	}
	fmt.Fprintf(out, "Enter choice or a ticker file path [%s]: ", def)

	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(universeChoices) {
		return universeChoices[n-1]
	}
	return line
}

// ShowModeMenu asks for live or sample data. Empty input keeps def.
func ShowModeMenu(in *bufio.Reader, out io.Writer, def string) string {
	fmt.Fprintln(out, "\nData source:")
	fmt.Fprintln(out, "1. Live (Alpaca)")
	fmt.Fprintln(out, "2. Sample data (offline)")
	fmt.Fprintf(out, "Enter choice [%s]: ", def)

	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "1", scanner.ModeLive:
		return scanner.ModeLive
	case "2", scanner.ModeSample:
		return scanner.ModeSample
	}
	return def
}
