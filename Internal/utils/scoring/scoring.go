package scoring

import (
	"log/slog"

	"github.com/fazecat/morningscout/Internal/strategy/detection"
	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/config"
)

const (
	ReasonPriceRange = "price range"
	ReasonIlliquid   = "illiquid"

	// IndecisionReason is the only reason reported when the indecision veto fires.
	IndecisionReason = "Indecision filter (Doji/Spinning Top)"
)

// ApplyFilters decides whether a package may be scored. The reason is empty
// when it is eligible.
func ApplyFilters(pkg types.Package, cfg *config.Config) (bool, string) {
	if pkg.Failed() {
		return false, pkg.Failure
	}
	price := pkg.Metrics.Price
	if !price.Valid || price.Float64 < cfg.Filters.MinPrice || price.Float64 > cfg.Filters.MaxPrice {
		return false, ReasonPriceRange
	}
	// an unknown average is not treated as illiquid
	if avg := pkg.Metrics.Avg20DollarVol; avg.Valid && avg.Float64 < cfg.Filters.MinAvgDollarVol {
		return false, ReasonIlliquid
	}
	return true, ""
}

// Scorer evaluates the rule catalog against enriched packages.
type Scorer struct {
	cfg      *config.Config
	detector *detection.PatternDetector
}

func NewScorer(cfg *config.Config) *Scorer {
	return &Scorer{cfg: cfg, detector: detection.NewPatternDetector()}
}

// Score is shorthand for NewScorer(cfg).Score(pkg).
func Score(pkg types.Package, cfg *config.Config) (int, []string) {
	return NewScorer(cfg).Score(pkg)
}

// Score adds the weight of every matching rule and returns the matched
// labels in evaluation order. With the indecision filter on, a Doji or
// Spinning Top on the last daily bar vetoes everything evaluated after the
// bullish candles and the score is 0.
func (s *Scorer) Score(pkg types.Package) (int, []string) {
	ev := detection.EvidenceFrom(pkg)
	total := 0
	reasons := []string{}

	add := func(rules []detection.Rule) {
		for _, rule := range rules {
			signal := rule.Evaluate(s.detector, ev)
			if !signal.Detected {
				continue
			}
			total += s.cfg.Weight(rule.Key)
			reasons = append(reasons, signal.Label)
		}
	}

	add(detection.RulesWhere(detection.RuleCandle, detection.Bullish))

	if s.cfg.Scoring.EnableIndecisionFilter && s.indecisive(ev) {
		slog.Debug("indecision veto", "ticker", pkg.Ticker)
		return 0, []string{IndecisionReason}
	}

	if !s.cfg.Scoring.BullishOnly {
		add(detection.RulesWhere(detection.RuleCandle, detection.Bearish))
	}
	add(detection.RulesWhere(detection.RuleTrend, detection.Bullish))

	return total, reasons
}

func (s *Scorer) indecisive(ev detection.Evidence) bool {
	for _, rule := range detection.RulesWhere(detection.RuleCandle, detection.Indecision) {
		if rule.Evaluate(s.detector, ev).Detected {
			return true
		}
	}
	return false
}
