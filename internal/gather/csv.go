package gather

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockbt/internal/domain"
)

// Compile-time interface checks.
var _ Provider = (*CSVProvider)(nil)
var _ TickerLister = (*CSVProvider)(nil)

// CSVProvider serves daily bars from a directory of per-ticker CSV files
// named <TICKER>.csv with a header row containing at least Date, Open, High,
// Low, Close and Volume (any order, case-insensitive; extra columns are
// ignored).
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider reading from dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// Name returns "csv".
func (p *CSVProvider) Name() string { return "csv" }

// GetDailyBars reads <dir>/<TICKER>.csv and returns the bars within the range.
func (p *CSVProvider) GetDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return nil, fmt.Errorf("ticker %q: %w", ticker, domain.ErrNoData)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(p.dir, sym+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no csv file for %s: %w", sym, domain.ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("opening csv for %s: %w", sym, err)
	}
	defer f.Close()

	bars, err := parseBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s.csv: %w", sym, err)
	}
	bars = normalizeBars(sym, bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s between %s and %s: %w", sym,
			start.Format(domain.DateLayout), end.Format(domain.DateLayout), domain.ErrNoData)
	}
	return bars, nil
}

// Tickers lists the CSV files in the directory, falling back to
// DefaultTickers when the directory does not exist.
func (p *CSVProvider) Tickers(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return append([]string(nil), DefaultTickers...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p.dir, err)
	}
	var tickers []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if sym := NormalizeTicker(strings.TrimSuffix(name, filepath.Ext(name))); sym != "" {
			tickers = append(tickers, sym)
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// csvDateLayouts covers plain dates and the timezone-stamped timestamps
// common in exported price files.
var csvDateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseBarsCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(name string) string {
			if i := col[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		ts, err := parseCSVDate(field("date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var prices [4]float64
		for i, name := range []string{"open", "high", "low", "close"} {
			if prices[i], err = strconv.ParseFloat(field(name), 64); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
		}
		vol, err := strconv.ParseFloat(field("volume"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: volume: %w", line, err)
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      prices[0],
			High:      prices[1],
			Low:       prices[2],
			Close:     prices[3],
			Volume:    max(int64(vol), 0),
		})
	}
	return bars, nil
}
