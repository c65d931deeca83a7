package detection

import (
	"math"

	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils"
	"github.com/fazecat/morningscout/Internal/utils/formatting"
)

const (
	// HigherHighsLookback is the number of bars compared against the last one.
	HigherHighsLookback = 12

	// GapThresholdPct is the minimum premarket gap that counts as a gap up.
	GapThresholdPct = 0.1

	// VolumeConfirmMultiple is the minimum relative dollar volume.
	VolumeConfirmMultiple = 1.0
)

// DetectMAStack matches SMA20 > SMA50 > SMA200 at the last bar. Any missing
// average is a non-match.
func DetectMAStack(overlay types.Overlay) PatternSignal {
	s20, s50, s200 := overlay.LastSMA(20), overlay.LastSMA(50), overlay.LastSMA(200)
	ok := s20.Valid && s50.Valid && s200.Valid &&
		s20.Float64 > s50.Float64 && s50.Float64 > s200.Float64
	return trendResult(PatternMAStack, ok, PatternMAStack.Label())
}

// DetectHigherHighsLows compares the last bar of a lookback+3 window with the
// median of the 3-bar rolling highs and lows that precede it.
func DetectHigherHighsLows(bars []types.Bar, lookback int) PatternSignal {
	if lookback < 0 || len(bars) < lookback+3 {
		return noMatch(PatternHigherHighLow)
	}
	recent := bars[len(bars)-(lookback+3):]
	highs := make([]float64, len(recent))
	lows := make([]float64, len(recent))
	for i, b := range recent {
		highs[i] = b.High
		lows[i] = b.Low
	}

	lastHigh, lastLow := highs[len(highs)-1], lows[len(lows)-1]
	if math.IsNaN(lastHigh) || math.IsNaN(lastLow) {
		return noMatch(PatternHigherHighLow)
	}

	rollingHighs := utils.RollingMax(highs, 3)
	rollingLows := utils.RollingMin(lows, 3)
	medHigh, okHigh := utils.Median(rollingHighs[:len(rollingHighs)-1])
	medLow, okLow := utils.Median(rollingLows[:len(rollingLows)-1])
	if !okHigh || !okLow {
		return noMatch(PatternHigherHighLow)
	}

	ok := lastHigh > medHigh && lastLow > medLow
	return trendResult(PatternHigherHighLow, ok, PatternHigherHighLow.Label())
}

// DetectPremarketVWAPReclaim matches when the last premarket close is at or
// above the last premarket VWAP.
func DetectPremarketVWAPReclaim(premarket []types.Bar, vwap []types.NullFloat) PatternSignal {
	lastVWAP := types.Last(vwap)
	if len(premarket) == 0 || !lastVWAP.Valid {
		return noMatch(PatternVWAPReclaim)
	}
	closes := make([]types.NullFloat, len(premarket))
	for i, b := range premarket {
		closes[i] = types.Float(b.Close)
	}
	lastClose := types.Last(closes)
	if !lastClose.Valid {
		return noMatch(PatternVWAPReclaim)
	}
	return trendResult(PatternVWAPReclaim, lastClose.Float64 >= lastVWAP.Float64, PatternVWAPReclaim.Label())
}

func DetectGapUp(gapPct types.NullFloat) PatternSignal {
	ok := gapPct.Valid && gapPct.Float64 >= GapThresholdPct
	return trendResult(PatternGapUp, ok, "Gap "+formatting.Fixed(gapPct, 2)+"%")
}

func DetectVolumeConfirm(relDollarVol types.NullFloat, minMultiple float64) PatternSignal {
	ok := relDollarVol.Valid && relDollarVol.Float64 >= minMultiple
	return trendResult(PatternVolumeConfirm, ok, "Rel $Vol "+formatting.Fixed(relDollarVol, 2)+"x")
}

func trendResult(p PatternType, ok bool, label string) PatternSignal {
	if !ok {
		return noMatch(p)
	}
	return PatternSignal{Pattern: p, Detected: true, Direction: DirectionLong, Label: label}
}
