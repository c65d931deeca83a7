package detection

import "github.com/fazecat/morningscout/Internal/types"

// RuleKind separates candle-shape rules, which read the daily tail, from
// trend rules, which read overlays, the premarket series and metrics.
type RuleKind int

const (
	RuleCandle RuleKind = iota
	RuleTrend
)

func (k RuleKind) String() string {
	if k == RuleTrend {
		return "trend"
	}
	return "candle"
}

type Polarity int

const (
	Bullish Polarity = iota
	Bearish
	Indecision
)

func (p Polarity) String() string {
	switch p {
	case Bearish:
		return "bearish"
	case Indecision:
		return "indecision"
	default:
		return "bullish"
	}
}

// Evidence is everything a rule may inspect for one ticker.
type Evidence struct {
	Daily         []types.Bar
	DailyOverlay  types.Overlay
	Premarket     []types.Bar
	PremarketVWAP []types.NullFloat
	GapPct        types.NullFloat
	RelDollarVol  types.NullFloat
}

// EvidenceFrom collects the rule inputs held by an enriched package.
func EvidenceFrom(pkg types.Package) Evidence {
	return Evidence{
		Daily:         pkg.Daily,
		DailyOverlay:  pkg.DailyOverlay,
		Premarket:     pkg.Premarket,
		PremarketVWAP: pkg.PremarketOverlay.VWAP,
		GapPct:        pkg.Metrics.GapPct,
		RelDollarVol:  pkg.Metrics.RelDollarVol,
	}
}

// Rule is one named entry of the catalog. Key is the scoring weight key;
// indecision rules veto rather than add, so they carry no weight.
type Rule struct {
	Key      string
	Pattern  PatternType
	Kind     RuleKind
	Polarity Polarity
	Weighted bool
	Window   int // bars a candle rule reads from the daily tail

	candle func(*PatternDetector, []types.Bar) PatternSignal
	trend  func(Evidence) PatternSignal
}

// Evaluate runs the rule. A nil detector uses the defaults.
func (r Rule) Evaluate(pd *PatternDetector, ev Evidence) PatternSignal {
	if pd == nil {
		pd = NewPatternDetector()
	}
	switch r.Kind {
	case RuleCandle:
		return r.candle(pd, ev.Daily)
	case RuleTrend:
		return r.trend(ev)
	}
	return noMatch(r.Pattern)
}

func candleRule(key string, p PatternType, pol Polarity, window int, fn func(*PatternDetector, []types.Bar) PatternSignal) Rule {
	return Rule{Key: key, Pattern: p, Kind: RuleCandle, Polarity: pol, Weighted: pol != Indecision, Window: window, candle: fn}
}

func trendRule(key string, p PatternType, fn func(Evidence) PatternSignal) Rule {
	return Rule{Key: key, Pattern: p, Kind: RuleTrend, Polarity: Bullish, Weighted: true, trend: fn}
}

// catalog is kept in evaluation order: bullish shapes, indecision, bearish
// shapes, then trend confirmations.
var catalog = []Rule{
	candleRule("hammer", PatternHammer, Bullish, 1, (*PatternDetector).DetectHammer),
	candleRule("inverted_hammer", PatternInvertedHammer, Bullish, 1, (*PatternDetector).DetectInvertedHammer),
	candleRule("bullish_engulfing", PatternBullishEngulfing, Bullish, 2, (*PatternDetector).DetectBullishEngulfing),
	candleRule("morning_star", PatternMorningStar, Bullish, 3, (*PatternDetector).DetectMorningStar),
	candleRule("harami_bull", PatternBullishHarami, Bullish, 2, (*PatternDetector).DetectBullishHarami),
	candleRule("three_white_soldiers", PatternThreeWhiteSoldiers, Bullish, 3, (*PatternDetector).DetectThreeWhiteSoldiers),

	candleRule("doji", PatternDoji, Indecision, 1, (*PatternDetector).DetectDoji),
	candleRule("spinning_top", PatternSpinningTop, Indecision, 1, (*PatternDetector).DetectSpinningTop),

	candleRule("shooting_star", PatternShootingStar, Bearish, 1, (*PatternDetector).DetectShootingStar),
	candleRule("bearish_engulfing", PatternBearishEngulfing, Bearish, 2, (*PatternDetector).DetectBearishEngulfing),
	candleRule("evening_star", PatternEveningStar, Bearish, 3, (*PatternDetector).DetectEveningStar),
	candleRule("harami_bear", PatternBearishHarami, Bearish, 2, (*PatternDetector).DetectBearishHarami),
	candleRule("three_black_crows", PatternThreeBlackCrows, Bearish, 3, (*PatternDetector).DetectThreeBlackCrows),

	trendRule("uptrend_ma_stack", PatternMAStack, func(ev Evidence) PatternSignal {
		return DetectMAStack(ev.DailyOverlay)
	}),
	trendRule("uptrend_hh_hl", PatternHigherHighLow, func(ev Evidence) PatternSignal {
		return DetectHigherHighsLows(ev.Daily, HigherHighsLookback)
	}),
	trendRule("vwap_reclaim_pre", PatternVWAPReclaim, func(ev Evidence) PatternSignal {
		return DetectPremarketVWAPReclaim(ev.Premarket, ev.PremarketVWAP)
	}),
	trendRule("gap_up", PatternGapUp, func(ev Evidence) PatternSignal {
		return DetectGapUp(ev.GapPct)
	}),
	trendRule("volume_confirm", PatternVolumeConfirm, func(ev Evidence) PatternSignal {
		return DetectVolumeConfirm(ev.RelDollarVol, VolumeConfirmMultiple)
	}),
}

// Rules returns the catalog in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(catalog))
	copy(out, catalog)
	return out
}

// RulesWhere filters the catalog, preserving order.
func RulesWhere(kind RuleKind, pol Polarity) []Rule {
	var out []Rule
	for _, r := range catalog {
		if r.Kind == kind && r.Polarity == pol {
			out = append(out, r)
		}
	}
	return out
}

// WeightKeys lists every key a scoring weight may be configured for.
func WeightKeys() []string {
	keys := make([]string, 0, len(catalog))
	for _, r := range catalog {
		if r.Weighted {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// IsWeightKey reports whether key names a weighted rule.
func IsWeightKey(key string) bool {
	for _, r := range catalog {
		if r.Weighted && r.Key == key {
			return true
		}
	}
	return false
}
