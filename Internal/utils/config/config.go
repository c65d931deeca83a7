package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/fazecat/morningscout/Internal/strategy/detection"
	"github.com/fazecat/morningscout/Internal/utils"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "MORNINGSCOUT_CONFIG"

type Config struct {
	Indicators      IndicatorConfig `yaml:"indicators"`
	PremarketWindow WindowConfig    `yaml:"premarket_window"`
	Filters         FilterConfig    `yaml:"filters"`
	Scoring         ScoringConfig   `yaml:"scoring"`

	UniverseDefault string `yaml:"universe_default"`

	Data struct {
		Mode              string `yaml:"mode"` // "live" or "sample"
		SampleDir         string `yaml:"sample_dir"`
		DailyLookbackDays int    `yaml:"daily_lookback_days"`
		Feed              string `yaml:"feed"`
	} `yaml:"data"`

	Scan struct {
		Workers int `yaml:"workers"`
	} `yaml:"scan"`

	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`

	location *time.Location
	window   utils.ClockWindow
}

type IndicatorConfig struct {
	MAPeriods []int `yaml:"ma_periods"`
	RSIPeriod int   `yaml:"rsi_period"`
	ATRPeriod int   `yaml:"atr_period"`
}

type WindowConfig struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

type FilterConfig struct {
	MinPrice        float64 `yaml:"min_price"`
	MaxPrice        float64 `yaml:"max_price"`
	MinAvgDollarVol float64 `yaml:"min_avg_dollar_vol"`
}

type ScoringConfig struct {
	Weights                map[string]int `yaml:"weights"`
	BullishOnly            bool           `yaml:"bullish_only"`
	EnableIndecisionFilter bool           `yaml:"enable_indecision_filter"`
	IncludeLowSignal       bool           `yaml:"include_low_signal"`
	LowSignalLimit         int            `yaml:"low_signal_limit"`
	TopN                   int            `yaml:"top_n"`
}

// Default returns a validated configuration with every documented default.
func Default() *Config {
	cfg := &Config{
		Indicators: IndicatorConfig{
			MAPeriods: []int{20, 50, 200},
			RSIPeriod: 14,
			ATRPeriod: 14,
		},
		PremarketWindow: WindowConfig{Start: "04:00", End: "09:29", Timezone: "America/New_York"},
		Filters:         FilterConfig{MinPrice: 1, MaxPrice: 1000, MinAvgDollarVol: 1_000_000},
		Scoring: ScoringConfig{
			Weights:          map[string]int{},
			BullishOnly:      true,
			IncludeLowSignal: true,
			LowSignalLimit:   30,
			TopN:             100,
		},
		UniverseDefault: "sp500",
	}
	cfg.Data.Mode = "live"
	cfg.Data.SampleDir = "sample_data"
	cfg.Data.DailyLookbackDays = 300
	cfg.Data.Feed = "iex"
	cfg.Scan.Workers = 16
	cfg.Export.Dir = "."

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Scoring.Weights == nil {
		cfg.Scoring.Weights = map[string]int{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// unknown keys weigh nothing; older files may still carry them
	for _, key := range cfg.UnknownWeightKeys() {
		slog.Warn("ignoring weight for unknown rule", "key", key)
	}
	return cfg, nil
}

// Validate checks every field once and caches the resolved time zone and
// premarket window.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Indicators.MAPeriods) == 0 {
		errs = append(errs, errors.New("indicators.ma_periods must not be empty"))
	}
	for _, p := range c.Indicators.MAPeriods {
		if p <= 0 {
			errs = append(errs, fmt.Errorf("indicators.ma_periods: period %d must be positive", p))
		}
	}
	if c.Indicators.RSIPeriod <= 0 {
		errs = append(errs, errors.New("indicators.rsi_period must be positive"))
	}
	if c.Indicators.ATRPeriod <= 0 {
		errs = append(errs, errors.New("indicators.atr_period must be positive"))
	}

	loc, err := time.LoadLocation(c.PremarketWindow.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("premarket_window.timezone: %w", err))
	} else {
		w, err := utils.NewClockWindow(c.PremarketWindow.Start, c.PremarketWindow.End, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("premarket_window: %w", err))
		} else {
			c.location = loc
			c.window = w
		}
	}

	if c.Filters.MinPrice < 0 || c.Filters.MaxPrice < c.Filters.MinPrice {
		errs = append(errs, fmt.Errorf("filters: price range [%g, %g] is invalid", c.Filters.MinPrice, c.Filters.MaxPrice))
	}
	if c.Filters.MinAvgDollarVol < 0 {
		errs = append(errs, errors.New("filters.min_avg_dollar_vol must not be negative"))
	}

	if c.Scoring.LowSignalLimit < 0 {
		errs = append(errs, errors.New("scoring.low_signal_limit must not be negative"))
	}
	if c.Scoring.TopN < 0 {
		errs = append(errs, errors.New("scoring.top_n must not be negative"))
	}

	switch c.Data.Mode {
	case "live", "sample":
	default:
		errs = append(errs, fmt.Errorf("data.mode %q: want live or sample", c.Data.Mode))
	}
	if c.Data.DailyLookbackDays <= 0 {
		errs = append(errs, errors.New("data.daily_lookback_days must be positive"))
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, errors.New("scan.workers must be at least 1"))
	}

	return errors.Join(errs...)
}

// Weight returns the configured weight of a rule key, 0 when unlisted.
func (c *Config) Weight(key string) int {
	return c.Scoring.Weights[key]
}

// Location is the exchange time zone resolved by Validate.
func (c *Config) Location() *time.Location {
	return c.location
}

// Window is the premarket clock window resolved by Validate.
func (c *Config) Window() utils.ClockWindow {
	return c.window
}

// UnknownWeightKeys lists configured weight keys that name no rule, sorted.
func (c *Config) UnknownWeightKeys() []string {
	var unknown []string
	for _, key := range sortedKeys(c.Scoring.Weights) {
		if !detection.IsWeightKey(key) {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// candidatePaths lists where LoadConfig looks, most specific first.
func candidatePaths(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, "config.yaml")

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, "Internal", "utils", "config", "config.yaml"))
	}
	// Resolve path relative to this file last
	if _, filePath, _, ok := runtime.Caller(0); ok {
		paths = append(paths, filepath.Join(filepath.Dir(filePath), "config.yaml"))
	}
	return paths
}

// LoadConfig reads the first config file found. An explicit path that does
// not exist is an error rather than a fallback.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	for _, p := range candidatePaths(path) {
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", p, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("config.yaml not found (set %s or pass a path)", EnvConfigPath)
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
