package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	datafeed "github.com/fazecat/morningscout/Internal/database"
	"github.com/fazecat/morningscout/Internal/metrics"
	"github.com/fazecat/morningscout/Internal/utils"
	"github.com/fazecat/morningscout/Internal/utils/config"
	"github.com/fazecat/morningscout/Internal/utils/scanner"
	"github.com/fazecat/morningscout/Internal/utils/universe"
	"github.com/fazecat/morningscout/interactive"
)

// Session holds the CLI state shared by the menu handlers: the loaded
// config and the most recent scan.
type Session struct {
	Cfg        *config.Config
	ConfigPath string
	Universe   universe.Options
	Metrics    *metrics.Metrics

	In  *bufio.Reader
	Out io.Writer

	// NewSource builds the bar source for a data mode.
	NewSource func(mode string, cfg *config.Config) (datafeed.BarSource, error)
	Now       func() time.Time

	mu   sync.RWMutex
	last *scanner.Result
}

func NewSession(cfg *config.Config, configPath string, in io.Reader, out io.Writer) *Session {
	return &Session{
		Cfg:        cfg,
		ConfigPath: configPath,
		In:         bufio.NewReader(in),
		Out:        out,
		NewSource:  scanner.NewBarSource,
		Now:        time.Now,
	}
}

// LastResult returns the most recent scan, if any.
func (s *Session) LastResult() (scanner.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return scanner.Result{}, false
	}
	return *s.last, true
}

func (s *Session) setLast(res scanner.Result) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
}

// HandleScan prompts for universe and data mode, runs the scan and prints
// the ranked table.
func (s *Session) HandleScan(ctx context.Context) {
	s.warnOutsidePremarket()

	name := interactive.ShowUniverseMenu(s.In, s.Out, s.Cfg.UniverseDefault)
	mode := interactive.ShowModeMenu(s.In, s.Out, s.Cfg.Data.Mode)

	tickers, err := universe.Resolve(ctx, name, s.Universe)
	if err != nil {
		fmt.Fprintf(s.Out, "❌ %v\n", err)
		return
	}
	source, err := s.NewSource(mode, s.Cfg)
	if err != nil {
		fmt.Fprintf(s.Out, "❌ %v\n", err)
		return
	}

	fmt.Fprintf(s.Out, "\nRunning scan on %d symbols (%s, %s)...\n", len(tickers), name, mode)
	res, err := scanner.RunScan(ctx, tickers, s.Cfg, scanner.NewDataProvider(source, s.Cfg), scanner.Options{Metrics: s.Metrics})
	if err != nil {
		fmt.Fprintf(s.Out, "⚠️  Scan interrupted: %v\n", err)
	}
	s.setLast(res)

	interactive.DisplayResults(s.Out, res.Table)
	interactive.DisplayScanSummary(s.Out, res.Stats, false)
}

func (s *Session) HandleViewResults() {
	res, ok := s.LastResult()
	if !ok {
		fmt.Fprintln(s.Out, "No scan has been run yet.")
		return
	}
	interactive.DisplayResults(s.Out, res.Table)
	interactive.DisplayScanSummary(s.Out, res.Stats, true)
}

// HandleTickerDetail drills into one row of the last scan.
func (s *Session) HandleTickerDetail() {
	res, ok := s.LastResult()
	if !ok {
		fmt.Fprintln(s.Out, "No scan has been run yet.")
		return
	}
	ticker, err := interactive.PickTickerFromResults(s.In, s.Out, res.Table)
	if err != nil {
		fmt.Fprintf(s.Out, "❌ %v\n", err)
		return
	}
	interactive.DisplayTickerDetail(s.Out, res.Packages[ticker], s.Cfg)
}

func (s *Session) HandleExport() {
	res, ok := s.LastResult()
	if !ok {
		fmt.Fprintln(s.Out, "No scan has been run yet.")
		return
	}
	path, err := scanner.ExportCSV(res.Table, s.Cfg.Export.Dir, s.Now())
	if err != nil {
		slog.Error("export failed", "error", err)
		fmt.Fprintf(s.Out, "❌ Export failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.Out, "✅ Saved %d rows to %s\n", res.Table.Len(), path)
}

func (s *Session) HandleConfigure() {
	if err := config.ConfigureInteractive(s.Cfg, s.In, s.Out, s.ConfigPath); err != nil {
		fmt.Fprintf(s.Out, "❌ %v\n", err)
	}
}

func (s *Session) HandleMarketStatus() {
	now := s.Now()
	status := utils.CheckMarketStatus(now, s.Cfg.Window())
	fmt.Fprintf(s.Out, "Market Status: %s (%s)\n", status, now.In(s.Cfg.Location()).Format("Mon 15:04 MST"))
}

func (s *Session) warnOutsidePremarket() {
	if status := utils.CheckMarketStatus(s.Now(), s.Cfg.Window()); status != utils.StatusPremarket {
		fmt.Fprintf(s.Out, "⚠️  Market is %s; premarket metrics may be stale or empty.\n", status)
	}
}
