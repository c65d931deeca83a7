package scanner

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fazecat/morningscout/Internal/types"
	"github.com/fazecat/morningscout/Internal/utils/formatting"
)

// Table is the ranked scan output. A zero Table is a valid empty result.
type Table struct {
	Rows []types.ScoredRow
}

func (t Table) Columns() []string {
	cols := make([]string, len(types.Columns))
	copy(cols, types.Columns)
	return cols
}

func (t Table) Len() int { return len(t.Rows) }

// Row returns the row for ticker, if present.
func (t Table) Row(ticker string) (types.ScoredRow, bool) {
	for _, r := range t.Rows {
		if r.Ticker == ticker {
			return r, true
		}
	}
	return types.ScoredRow{}, false
}

// Record renders a row with the display conventions: gap and rel to two
// decimals, average dollar volume to none, "na" when missing.
func Record(r types.ScoredRow) []string {
	return []string{
		r.Ticker,
		strconv.Itoa(r.Score),
		formatting.Fixed(r.GapPct, 2),
		formatting.Fixed(r.RelDollarVol, 2),
		formatting.Fixed(r.Avg20DollarVol, 0),
		r.Reasons,
	}
}

// MarshalJSON always emits columns and a non-null rows array.
func (t Table) MarshalJSON() ([]byte, error) {
	rows := t.Rows
	if rows == nil {
		rows = []types.ScoredRow{}
	}
	return json.Marshal(struct {
		Columns []string          `json:"columns"`
		Rows    []types.ScoredRow `json:"rows"`
	}{t.Columns(), rows})
}

// WriteCSV writes a header and one record per row in table order.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(Record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename is scan_<YYYYmmdd_HHMMSS>.csv for now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("scan_%s.csv", now.Format("20060102_150405"))
}

// ExportCSV writes the table into dir and returns the file path.
func ExportCSV(t Table, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(dir, ExportFilename(now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}
