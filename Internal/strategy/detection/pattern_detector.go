package detection

import (
	"log/slog"

	"github.com/fazecat/morningscout/Internal/types"
)

// defines the type of detected pattern
type PatternType string

const (
	PatternHammer             PatternType = "HAMMER"
	PatternInvertedHammer     PatternType = "INVERTED_HAMMER"
	PatternBullishEngulfing   PatternType = "BULLISH_ENGULFING"
	PatternMorningStar        PatternType = "MORNING_STAR"
	PatternBullishHarami      PatternType = "BULLISH_HARAMI"
	PatternThreeWhiteSoldiers PatternType = "THREE_WHITE_SOLDIERS"
	PatternShootingStar       PatternType = "SHOOTING_STAR"
	PatternBearishEngulfing   PatternType = "BEARISH_ENGULFING"
	PatternEveningStar        PatternType = "EVENING_STAR"
	PatternBearishHarami      PatternType = "BEARISH_HARAMI"
	PatternThreeBlackCrows    PatternType = "THREE_BLACK_CROWS"
	PatternDoji               PatternType = "DOJI"
	PatternSpinningTop        PatternType = "SPINNING_TOP"

	PatternMAStack       PatternType = "MA_STACK"
	PatternHigherHighLow PatternType = "HIGHER_HIGHS_LOWS"
	PatternVWAPReclaim   PatternType = "PREMARKET_VWAP_RECLAIM"
	PatternGapUp         PatternType = "GAP_UP"
	PatternVolumeConfirm PatternType = "VOLUME_CONFIRM"

	PatternNone PatternType = "NONE"
)

const (
	DirectionLong    = "LONG"
	DirectionShort   = "SHORT"
	DirectionNeutral = "NEUTRAL"
	DirectionNone    = "NONE"
)

var patternLabels = map[PatternType]string{
	PatternHammer:             "Hammer",
	PatternInvertedHammer:     "Inverted Hammer",
	PatternBullishEngulfing:   "Bullish Engulfing",
	PatternMorningStar:        "Morning Star",
	PatternBullishHarami:      "Bullish Harami",
	PatternThreeWhiteSoldiers: "Three White Soldiers",
	PatternShootingStar:       "Shooting Star",
	PatternBearishEngulfing:   "Bearish Engulfing",
	PatternEveningStar:        "Evening Star",
	PatternBearishHarami:      "Bearish Harami",
	PatternThreeBlackCrows:    "Three Black Crows",
	PatternDoji:               "Doji",
	PatternSpinningTop:        "Spinning Top",
	PatternMAStack:            "MA stack up",
	PatternHigherHighLow:      "HH/HL uptrend",
	PatternVWAPReclaim:        "Pre VWAP reclaim",
}

// Label is the display name of a pattern.
func (p PatternType) Label() string {
	return patternLabels[p]
}

// represents the outcome of one detector. Label is empty unless Detected.
type PatternSignal struct {
	Pattern       PatternType
	Detected      bool
	Direction     string // "LONG", "SHORT", "NEUTRAL", "NONE"
	Label         string
	FormationBars int
}

// analyzes the last bars of a series for candlestick shapes
type PatternDetector struct {
	WickBodyRatio        float64 // wick must be at least this multiple of the body
	SmallBodyFraction    float64 // small body / spinning top body cap, as a fraction of range
	DojiBodyFraction     float64
	SpinningWickFraction float64 // both wicks of a spinning top reach this fraction of range
	VerboseLogging       bool
}

// creates a new pattern detector with default settings
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{
		WickBodyRatio:        2.0,
		SmallBodyFraction:    0.3,
		DojiBodyFraction:     0.1,
		SpinningWickFraction: 0.2,
	}
}

func noMatch(p PatternType) PatternSignal {
	return PatternSignal{Pattern: p, Direction: DirectionNone}
}

func (pd *PatternDetector) result(p PatternType, ok bool, direction string, bars int) PatternSignal {
	if !ok {
		return noMatch(p)
	}
	if pd.VerboseLogging {
		slog.Debug("pattern detected", "pattern", p, "direction", direction)
	}
	return PatternSignal{
		Pattern:       p,
		Detected:      true,
		Direction:     direction,
		Label:         p.Label(),
		FormationBars: bars,
	}
}

// runs every candlestick detector against the series tail
func (pd *PatternDetector) DetectAllPatterns(bars []types.Bar) []PatternSignal {
	signals := []PatternSignal{}
	for _, rule := range Rules() {
		if rule.Kind != RuleCandle {
			continue
		}
		if s := rule.Evaluate(pd, Evidence{Daily: bars}); s.Detected {
			signals = append(signals, s)
		}
	}
	return signals
}

// lower wick at least twice the body and longer than the upper wick
func (pd *PatternDetector) DetectHammer(bars []types.Bar) PatternSignal {
	r := tail(bars, 1)
	if r == nil {
		return noMatch(PatternHammer)
	}
	return pd.result(PatternHammer, pd.longLowerWick(r[0]), DirectionLong, 1)
}

func (pd *PatternDetector) DetectInvertedHammer(bars []types.Bar) PatternSignal {
	r := tail(bars, 1)
	if r == nil {
		return noMatch(PatternInvertedHammer)
	}
	return pd.result(PatternInvertedHammer, pd.longUpperWick(r[0]) && isGreen(r[0]), DirectionLong, 1)
}

func (pd *PatternDetector) DetectShootingStar(bars []types.Bar) PatternSignal {
	r := tail(bars, 1)
	if r == nil {
		return noMatch(PatternShootingStar)
	}
	return pd.result(PatternShootingStar, pd.longUpperWick(r[0]), DirectionShort, 1)
}

func (pd *PatternDetector) DetectDoji(bars []types.Bar) PatternSignal {
	r := tail(bars, 1)
	if r == nil {
		return noMatch(PatternDoji)
	}
	return pd.result(PatternDoji, pd.isDoji(r[0]), DirectionNeutral, 1)
}

func (pd *PatternDetector) DetectSpinningTop(bars []types.Bar) PatternSignal {
	r := tail(bars, 1)
	if r == nil {
		return noMatch(PatternSpinningTop)
	}
	return pd.result(PatternSpinningTop, pd.isSpinningTop(r[0]), DirectionNeutral, 1)
}

// red bar followed by a green bar whose body swallows it
func (pd *PatternDetector) DetectBullishEngulfing(bars []types.Bar) PatternSignal {
	r := tail(bars, 2)
	if r == nil {
		return noMatch(PatternBullishEngulfing)
	}
	b1, b2 := r[0], r[1]
	ok := isRed(b1) && isGreen(b2) && b2.Open <= b1.Close && b2.Close >= b1.Open
	return pd.result(PatternBullishEngulfing, ok, DirectionLong, 2)
}

func (pd *PatternDetector) DetectBearishEngulfing(bars []types.Bar) PatternSignal {
	r := tail(bars, 2)
	if r == nil {
		return noMatch(PatternBearishEngulfing)
	}
	b1, b2 := r[0], r[1]
	ok := isGreen(b1) && isRed(b2) && b2.Open >= b1.Close && b2.Close <= b1.Open
	return pd.result(PatternBearishEngulfing, ok, DirectionShort, 2)
}

func insideBody(outer, inner types.Bar) bool {
	return bodyLow(inner) >= bodyLow(outer) && bodyHigh(inner) <= bodyHigh(outer)
}

func (pd *PatternDetector) DetectBullishHarami(bars []types.Bar) PatternSignal {
	r := tail(bars, 2)
	if r == nil {
		return noMatch(PatternBullishHarami)
	}
	ok := isRed(r[0]) && isGreen(r[1]) && insideBody(r[0], r[1])
	return pd.result(PatternBullishHarami, ok, DirectionLong, 2)
}

func (pd *PatternDetector) DetectBearishHarami(bars []types.Bar) PatternSignal {
	r := tail(bars, 2)
	if r == nil {
		return noMatch(PatternBearishHarami)
	}
	ok := isGreen(r[0]) && isRed(r[1]) && insideBody(r[0], r[1])
	return pd.result(PatternBearishHarami, ok, DirectionShort, 2)
}

// red bar, small-bodied pause, then a green bar closing at or above the first body's midpoint
func (pd *PatternDetector) DetectMorningStar(bars []types.Bar) PatternSignal {
	r := tail(bars, 3)
	if r == nil {
		return noMatch(PatternMorningStar)
	}
	ok := isRed(r[0]) && pd.smallBody(r[1]) && isGreen(r[2]) && r[2].Close >= bodyMidpoint(r[0])
	return pd.result(PatternMorningStar, ok, DirectionLong, 3)
}

func (pd *PatternDetector) DetectEveningStar(bars []types.Bar) PatternSignal {
	r := tail(bars, 3)
	if r == nil {
		return noMatch(PatternEveningStar)
	}
	ok := isGreen(r[0]) && pd.smallBody(r[1]) && isRed(r[2]) && r[2].Close <= bodyMidpoint(r[0])
	return pd.result(PatternEveningStar, ok, DirectionShort, 3)
}

func (pd *PatternDetector) DetectThreeWhiteSoldiers(bars []types.Bar) PatternSignal {
	r := tail(bars, 3)
	if r == nil {
		return noMatch(PatternThreeWhiteSoldiers)
	}
	ok := isGreen(r[0]) && isGreen(r[1]) && isGreen(r[2]) &&
		r[1].Close > r[0].Close && r[2].Close > r[1].Close &&
		r[1].Open > r[0].Open && r[2].Open > r[1].Open
	return pd.result(PatternThreeWhiteSoldiers, ok, DirectionLong, 3)
}

func (pd *PatternDetector) DetectThreeBlackCrows(bars []types.Bar) PatternSignal {
	r := tail(bars, 3)
	if r == nil {
		return noMatch(PatternThreeBlackCrows)
	}
	ok := isRed(r[0]) && isRed(r[1]) && isRed(r[2]) &&
		r[1].Close < r[0].Close && r[2].Close < r[1].Close
	return pd.result(PatternThreeBlackCrows, ok, DirectionShort, 3)
}
