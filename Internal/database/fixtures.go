package datafeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/formatting"
)

// FixtureSource reads bars from <Dir>/<TICKER>_daily.csv and
// <Dir>/<TICKER>_intraday.csv.
type FixtureSource struct {
	Dir      string
	Location *time.Location
}

func NewFixtureSource(dir string, loc *time.Location) *FixtureSource {
	return &FixtureSource{Dir: dir, Location: loc}
}

var _ BarSource = (*FixtureSource)(nil)

func (s *FixtureSource) DailyBars(ctx context.Context, ticker string) ([]types.Bar, error) {
	bars, err := s.load(ctx, ticker+"_daily.csv", "Date")
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NoDataError{Reason: "no sample data"}
	}
	return bars, err
}

// IntradayBars returns no bars, not an error, when the ticker has no intraday file.
func (s *FixtureSource) IntradayBars(ctx context.Context, ticker string) ([]types.Bar, error) {
	bars, err := s.load(ctx, ticker+"_intraday.csv", "Datetime")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return bars, err
}

func (s *FixtureSource) load(ctx context.Context, name, timeColumn string) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f, timeColumn, s.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return bars, nil
}

// ReadBarsCSV parses OHLCV rows keyed by header name (case-insensitive).
// Blank price or volume cells become NaN. The result is sorted by time with
// duplicate timestamps collapsed to the last row.
func ReadBarsCSV(r io.Reader, timeColumn string, loc *time.Location) ([]types.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := map[string]int{}
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	required := []string{strings.ToLower(timeColumn), "open", "high", "low", "close", "volume"}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var bars []types.Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}

		ts, err := formatting.ParseTimestamp(field(strings.ToLower(timeColumn)), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := types.Bar{Timestamp: ts}
		for _, target := range []struct {
			col string
			dst *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume},
		} {
			v, err := parseCell(field(target.col))
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, target.col, err)
			}
			*target.dst = v
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
