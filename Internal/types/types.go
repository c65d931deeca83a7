package types

import (
	"encoding/json"
	"math"
	"time"
)

type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// NullFloat is a float that may be absent. The zero value is absent.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float wraps v, treating NaN and ±Inf as absent.
func Float(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{Float64: v, Valid: true}
}

// Or returns the value, or def when absent.
func (n NullFloat) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Float64
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// Last returns the last present value of a series.
func Last(series []NullFloat) NullFloat {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Valid {
			return series[i]
		}
	}
	return NullFloat{}
}

// Overlay holds indicator columns aligned to a bar series.
type Overlay struct {
	SMA  map[int][]NullFloat
	RSI  []NullFloat
	ATR  []NullFloat
	VWAP []NullFloat
}

// LastSMA returns the value of SMA<period> at the final bar.
func (o Overlay) LastSMA(period int) NullFloat {
	col, ok := o.SMA[period]
	if !ok || len(col) == 0 {
		return NullFloat{}
	}
	return col[len(col)-1]
}

type Metrics struct {
	GapPct         NullFloat `json:"gap_pct"`
	Avg20DollarVol NullFloat `json:"avg20_dollar_vol"`
	RelDollarVol   NullFloat `json:"rel_dollar_vol"`
	Price          NullFloat `json:"price"`
}

// Package is the per-ticker enrichment result. Either Failure is empty and
// the series and Metrics are populated, or Failure carries the reason.
type Package struct {
	Ticker           string
	Daily            []Bar
	DailyOverlay     Overlay
	Premarket        []Bar
	PremarketOverlay Overlay
	Metrics          Metrics
	Failure          string
}

func FailedPackage(ticker, reason string) Package {
	return Package{Ticker: ticker, Failure: reason}
}

func (p Package) Failed() bool {
	return p.Failure != ""
}

// ScoredRow is one line of the ranked table.
type ScoredRow struct {
	Ticker         string    `json:"ticker"`
	Score          int       `json:"score"`
	GapPct         NullFloat `json:"gap_pct"`
	RelDollarVol   NullFloat `json:"rel_dollar_vol"`
	Avg20DollarVol NullFloat `json:"avg20_dollar_vol"`
	Reasons        string    `json:"reasons"`
}

// Columns is the ranked table and CSV export schema.
var Columns = []string{"ticker", "score", "gap_pct", "rel_dollar_vol", "avg20_dollar_vol", "reasons"}
