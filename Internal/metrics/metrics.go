package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for scan runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ScansTotal      prometheus.Counter
	TickersTotal    *prometheus.CounterVec // labels: outcome=scored|filtered|failed
	RejectionsTotal *prometheus.CounterVec // labels: reason
	FetchDur        prometheus.Histogram
	ScanDur         prometheus.Histogram
	RowsReturned    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "morningscout_scans_total",
			Help: "Total scans run",
		}),
		TickersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "morningscout_tickers_total",
			Help: "Tickers processed by outcome",
		}, []string{"outcome"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "morningscout_rejections_total",
			Help: "Tickers excluded from results by reason",
		}, []string{"reason"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "morningscout_fetch_duration_seconds",
			Help:    "Per-ticker data fetch and enrichment latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "morningscout_scan_duration_seconds",
			Help:    "Full scan latency",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		RowsReturned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "morningscout_rows_returned",
			Help: "Rows in the most recent ranked table",
		}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.TickersTotal,
		m.RejectionsTotal,
		m.FetchDur,
		m.ScanDur,
		m.RowsReturned,
	)
	return m
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
}

func (m *Metrics) TickerFailed(reason string) {
	if m == nil {
		return
	}
	m.TickersTotal.WithLabelValues("failed").Inc()
	m.RejectionsTotal.WithLabelValues(rejectionLabel(reason)).Inc()
}

func (m *Metrics) TickerFiltered(reason string) {
	if m == nil {
		return
	}
	m.TickersTotal.WithLabelValues("filtered").Inc()
	m.RejectionsTotal.WithLabelValues(rejectionLabel(reason)).Inc()
}

func (m *Metrics) TickerScored() {
	if m == nil {
		return
	}
	m.TickersTotal.WithLabelValues("scored").Inc()
}

// ScanFinished records one completed scan.
func (m *Metrics) ScanFinished(d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.ScansTotal.Inc()
	m.ScanDur.Observe(d.Seconds())
	m.RowsReturned.Set(float64(rows))
}

// rejectionLabel keeps label cardinality bounded: provider error text
// varies per ticker, so anything unrecognised is folded into "error".
func rejectionLabel(reason string) string {
	switch reason {
	case "price range", "illiquid", "no daily", "no sample data", "canceled":
		return reason
	}
	return "error"
}
