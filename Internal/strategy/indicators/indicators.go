package indicators

import (
	"math"

	"github.com/fazecat/morningscout/Internal/types"
)

func present(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Closes extracts closing prices in series order.
func Closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// CalculateSMA returns the trailing mean over period values. A position gets a
// value once at least period/2 present observations sit in its window.
func CalculateSMA(values []float64, period int) []types.NullFloat {
	out := make([]types.NullFloat, len(values))
	if period <= 0 {
		return out
	}
	minCount := period / 2
	if minCount < 1 {
		minCount = 1
	}

	for i := range values {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		sum, count := 0.0, 0
		for _, v := range values[start : i+1] {
			if present(v) {
				sum += v
				count++
			}
		}
		if count >= minCount {
			out[i] = types.Float(sum / float64(count))
		}
	}
	return out
}

// CalculateEMA is the span-based exponential mean, alpha = 2/(span+1),
// seeded from the first observation with no bias adjustment.
func CalculateEMA(values []float64, span int) []types.NullFloat {
	if span <= 0 {
		return make([]types.NullFloat, len(values))
	}
	return ewm(values, 2.0/(float64(span)+1.0))
}

// ewm runs the recursive weighted mean y = a*x + (1-a)*y. Missing inputs keep
// the previous value, and the old weight decays once per missing step, so
// after k gaps y = (w*y + a*x) / (w + a) with w = (1-a)^(k+1).
func ewm(values []float64, alpha float64) []types.NullFloat {
	out := make([]types.NullFloat, len(values))
	var prev float64
	seeded := false
	oldWt := 1.0
	for i, v := range values {
		if !seeded {
			if present(v) {
				prev = v
				seeded = true
				out[i] = types.Float(prev)
			}
			continue
		}
		oldWt *= 1 - alpha
		if present(v) {
			prev = (oldWt*prev + alpha*v) / (oldWt + alpha)
			oldWt = 1
		}
		out[i] = types.Float(prev)
	}
	return out
}

// CalculateRSI smooths gains and losses with an EMA of span period. Positions
// where the average loss is zero have no value.
func CalculateRSI(closes []float64, period int) []types.NullFloat {
	n := len(closes)
	out := make([]types.NullFloat, n)
	if period <= 0 || n < 2 {
		return out
	}

	up := make([]float64, n)
	down := make([]float64, n)
	up[0], down[0] = math.NaN(), math.NaN()
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if !present(delta) {
			up[i], down[i] = math.NaN(), math.NaN()
			continue
		}
		up[i] = math.Max(delta, 0)
		down[i] = math.Max(-delta, 0)
	}

	alpha := 2.0 / (float64(period) + 1.0)
	avgUp := ewm(up, alpha)
	avgDown := ewm(down, alpha)
	for i := range out {
		if !avgUp[i].Valid || !avgDown[i].Valid || avgDown[i].Float64 == 0 {
			continue
		}
		rs := avgUp[i].Float64 / avgDown[i].Float64
		out[i] = types.Float(100.0 - 100.0/(1.0+rs))
	}
	return out
}

// CalculateATR is the exponential mean of true range with alpha 1/period.
// The first bar has no prior close so its true range is high minus low.
func CalculateATR(bars []types.Bar, period int) []types.NullFloat {
	if period <= 0 {
		return make([]types.NullFloat, len(bars))
	}
	tr := make([]float64, len(bars))
	for i, b := range bars {
		tr[i] = math.NaN()
		candidates := []float64{math.Abs(b.High - b.Low)}
		if i > 0 {
			prevClose := bars[i-1].Close
			candidates = append(candidates, math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose))
		}
		for _, c := range candidates {
			if present(c) && (!present(tr[i]) || c > tr[i]) {
				tr[i] = c
			}
		}
	}
	return ewm(tr, 1.0/float64(period))
}

// CalculateVWAP accumulates typical price times volume over cumulative volume
// from the first bar of the given series.
func CalculateVWAP(bars []types.Bar) []types.NullFloat {
	out := make([]types.NullFloat, len(bars))
	var cumPV, cumVol float64
	for i, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3.0
		pv := typical * b.Volume
		if present(b.Volume) {
			cumVol += b.Volume
		}
		if present(pv) {
			cumPV += pv
		}
		if !present(pv) || cumVol == 0 {
			continue
		}
		out[i] = types.Float(cumPV / cumVol)
	}
	return out
}

// PercentChange returns (a-b)/b*100, absent when b is zero or either side is absent.
func PercentChange(a, b types.NullFloat) types.NullFloat {
	if !a.Valid || !b.Valid || b.Float64 == 0 {
		return types.NullFloat{}
	}
	return types.Float((a.Float64 - b.Float64) / b.Float64 * 100.0)
}

// ComputeDaily builds the daily overlay: one SMA column per period plus RSI and ATR.
func ComputeDaily(bars []types.Bar, maPeriods []int, rsiPeriod, atrPeriod int) types.Overlay {
	closes := Closes(bars)
	overlay := types.Overlay{SMA: make(map[int][]types.NullFloat, len(maPeriods))}
	for _, p := range maPeriods {
		overlay.SMA[p] = CalculateSMA(closes, p)
	}
	overlay.RSI = CalculateRSI(closes, rsiPeriod)
	overlay.ATR = CalculateATR(bars, atrPeriod)
	return overlay
}
