package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fazecat/morningscout/Internal/strategy/detection"
)

// ConfigureInteractive allows users to interactively configure the scanner
func ConfigureInteractive(cfg *Config, in io.Reader, out io.Writer, savePath string) error {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprintln(out, "\n⚙️  Configuration Menu:")
		fmt.Fprintln(out, "1. View Current Configuration")
		fmt.Fprintln(out, "2. Configure Rule Weights")
		fmt.Fprintln(out, "3. Configure Scoring Toggles")
		fmt.Fprintln(out, "4. Configure Filters")
		fmt.Fprintln(out, "5. Save & Exit")
		fmt.Fprintln(out, "6. Exit Without Saving")
		fmt.Fprint(out, "Select option: ")

		choice, err := reader.ReadString('\n')
		if err != nil && choice == "" {
			return err
		}
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			DisplayConfiguration(cfg, out)
		case "2":
			configureWeights(cfg, reader, out)
		case "3":
			configureToggles(cfg, reader, out)
		case "4":
			configureFilters(cfg, reader, out)
		case "5":
			if err := SaveConfig(cfg, savePath); err != nil {
				fmt.Fprintf(out, "❌ Error saving config: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "✅ Configuration saved successfully!")
			return nil
		case "6":
			return nil
		default:
			fmt.Fprintln(out, "❌ Invalid option")
		}
	}
}

// DisplayConfiguration shows current configuration
func DisplayConfiguration(cfg *Config, out io.Writer) {
	fmt.Fprintln(out, "\n📋 Current Configuration:")

	fmt.Fprintln(out, "\n=== Indicators ===")
	fmt.Fprintf(out, "MA Periods: %v\n", cfg.Indicators.MAPeriods)
	fmt.Fprintf(out, "RSI Period: %d\n", cfg.Indicators.RSIPeriod)
	fmt.Fprintf(out, "ATR Period: %d\n", cfg.Indicators.ATRPeriod)

	fmt.Fprintln(out, "\n=== Premarket Window ===")
	fmt.Fprintf(out, "%s - %s (%s)\n", cfg.PremarketWindow.Start, cfg.PremarketWindow.End, cfg.PremarketWindow.Timezone)

	fmt.Fprintln(out, "\n=== Filters ===")
	fmt.Fprintf(out, "Price Range: %.2f - %.2f\n", cfg.Filters.MinPrice, cfg.Filters.MaxPrice)
	fmt.Fprintf(out, "Min Avg Dollar Volume: %.0f\n", cfg.Filters.MinAvgDollarVol)

	fmt.Fprintln(out, "\n=== Scoring ===")
	fmt.Fprintf(out, "Bullish Only: %v\n", enabledStr(cfg.Scoring.BullishOnly))
	fmt.Fprintf(out, "Indecision Filter: %v\n", enabledStr(cfg.Scoring.EnableIndecisionFilter))
	fmt.Fprintf(out, "Include Low Signal: %v (limit %d)\n", enabledStr(cfg.Scoring.IncludeLowSignal), cfg.Scoring.LowSignalLimit)
	fmt.Fprintf(out, "Top N: %d\n", cfg.Scoring.TopN)
	fmt.Fprintln(out, "Weights:")
	for _, key := range detection.WeightKeys() {
		fmt.Fprintf(out, "  • %-22s %d\n", key, cfg.Weight(key))
	}

	fmt.Fprintln(out, "\n=== Data ===")
	fmt.Fprintf(out, "Mode: %s\n", cfg.Data.Mode)
	fmt.Fprintf(out, "Default Universe: %s\n", cfg.UniverseDefault)
	fmt.Fprintf(out, "Workers: %d\n", cfg.Scan.Workers)
}

func configureWeights(cfg *Config, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "\nEnter a new integer weight, or press enter to keep the current one.")
	for _, key := range detection.WeightKeys() {
		fmt.Fprintf(out, "%s [%d]: ", key, cfg.Weight(key))
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(out, "❌ %q is not an integer, keeping %d\n", line, cfg.Weight(key))
			continue
		}
		cfg.Scoring.Weights[key] = v
	}
}

func configureToggles(cfg *Config, reader *bufio.Reader, out io.Writer) {
	cfg.Scoring.BullishOnly = askBool(reader, out, "Bullish only", cfg.Scoring.BullishOnly)
	cfg.Scoring.EnableIndecisionFilter = askBool(reader, out, "Indecision filter", cfg.Scoring.EnableIndecisionFilter)
	cfg.Scoring.IncludeLowSignal = askBool(reader, out, "Include low signal", cfg.Scoring.IncludeLowSignal)
	cfg.Scoring.LowSignalLimit = askInt(reader, out, "Low signal limit", cfg.Scoring.LowSignalLimit)
	cfg.Scoring.TopN = askInt(reader, out, "Top N", cfg.Scoring.TopN)
}

func configureFilters(cfg *Config, reader *bufio.Reader, out io.Writer) {
	prev := cfg.Filters
	cfg.Filters.MinPrice = askFloat(reader, out, "Min price", cfg.Filters.MinPrice)
	cfg.Filters.MaxPrice = askFloat(reader, out, "Max price", cfg.Filters.MaxPrice)
	cfg.Filters.MinAvgDollarVol = askFloat(reader, out, "Min avg dollar volume", cfg.Filters.MinAvgDollarVol)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		cfg.Filters = prev
	}
}

func askBool(reader *bufio.Reader, out io.Writer, label string, current bool) bool {
	fmt.Fprintf(out, "%s (y/n) [%s]: ", label, enabledStr(current))
	line, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return current
}

func askInt(reader *bufio.Reader, out io.Writer, label string, current int) int {
	fmt.Fprintf(out, "%s [%d]: ", label, current)
	line, _ := reader.ReadString('\n')
	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || v < 0 {
		return current
	}
	return v
}

func askFloat(reader *bufio.Reader, out io.Writer, label string, current float64) float64 {
	fmt.Fprintf(out, "%s [%g]: ", label, current)
	line, _ := reader.ReadString('\n')
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return current
	}
	return v
}

func enabledStr(enabled bool) string {
	if enabled {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}
