package detection

import (
	"math"

	"github.com/fazecat/morningscout/Internal/types"
)

// minRange keeps ratio tests defined on bars where high == low.
const minRange = 1e-9

func bodySize(b types.Bar) float64 {
	return math.Abs(b.Close - b.Open)
}

func upperWick(b types.Bar) float64 {
	return b.High - math.Max(b.Open, b.Close)
}

func lowerWick(b types.Bar) float64 {
	return math.Min(b.Open, b.Close) - b.Low
}

func barRange(b types.Bar) float64 {
	return math.Max(minRange, b.High-b.Low)
}

func isGreen(b types.Bar) bool { return b.Close > b.Open }
func isRed(b types.Bar) bool   { return b.Close < b.Open }

func bodyLow(b types.Bar) float64  { return math.Min(b.Open, b.Close) }
func bodyHigh(b types.Bar) float64 { return math.Max(b.Open, b.Close) }

func bodyMidpoint(b types.Bar) float64 {
	return (b.Open + b.Close) / 2.0
}

// wellFormed rejects bars carrying NaN or infinite prices so every
// comparison below can assume real numbers.
func wellFormed(bars ...types.Bar) bool {
	for _, b := range bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// tail returns the last n bars, or nil when fewer exist or any is malformed.
func tail(bars []types.Bar, n int) []types.Bar {
	if n <= 0 || len(bars) < n {
		return nil
	}
	out := bars[len(bars)-n:]
	if !wellFormed(out...) {
		return nil
	}
	return out
}

func (pd *PatternDetector) longLowerWick(b types.Bar) bool {
	body := bodySize(b)
	lower := lowerWick(b)
	return body > 0 && lower/body >= pd.WickBodyRatio && lower > upperWick(b)
}

func (pd *PatternDetector) longUpperWick(b types.Bar) bool {
	body := bodySize(b)
	upper := upperWick(b)
	return body > 0 && upper/body >= pd.WickBodyRatio && upper > lowerWick(b)
}

func (pd *PatternDetector) smallBody(b types.Bar) bool {
	return bodySize(b) <= pd.SmallBodyFraction*barRange(b)
}

func (pd *PatternDetector) isDoji(b types.Bar) bool {
	return bodySize(b) <= pd.DojiBodyFraction*barRange(b)
}

func (pd *PatternDetector) isSpinningTop(b types.Bar) bool {
	rng := barRange(b)
	return bodySize(b) <= pd.SmallBodyFraction*rng &&
		upperWick(b) >= pd.SpinningWickFraction*rng &&
		lowerWick(b) >= pd.SpinningWickFraction*rng
}
