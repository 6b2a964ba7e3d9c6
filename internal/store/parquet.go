package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockbt/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using Parquet files on disk. It also
// records, per symbol, the contiguous date range that has been fetched from
// upstream so a cache can tell "no bars" apart from "never asked".
type ParquetStore struct {
	DataDir string
	Market  string
}

// NewParquetStore creates a new ParquetStore rooted at the given data
// directory. An empty market defaults to "us".
func NewParquetStore(dataDir, market string) *ParquetStore {
	if market == "" {
		market = "us"
	}
	return &ParquetStore{DataDir: dataDir, Market: market}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// CoverageRecord is the Parquet schema for a symbol's fetched date range.
type CoverageRecord struct {
	Symbol    string `parquet:"symbol"`
	Start     int64  `parquet:"start,timestamp(millisecond)"`
	End       int64  `parquet:"end,timestamp(millisecond)"`
	FetchedAt int64  `parquet:"fetched_at,timestamp(millisecond)"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Group by symbol → year.
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		ts := domain.TruncateDay(b.Timestamp)
		k := key{symbol: sym, year: ts.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     sym,
			Timestamp:  ts.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading existing bars for %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and
// inclusive day range. A symbol with no files yields an empty slice.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rng := domain.DateRange{Start: start, End: end}
	var bars []domain.Bar
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		path := s.barPath(symbol, year)

		records, err := readParquetFile[BarRecord](path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if !rng.Contains(ts) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     r.Symbol,
				Timestamp:  ts,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				TradeCount: r.TradeCount,
				VWAP:       r.VWAP,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the store's market.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, s.Market, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Coverage
// ---------------------------------------------------------------------------

// Coverage returns the date range already fetched for symbol. ok is false
// when nothing has been recorded.
func (s *ParquetStore) Coverage(_ context.Context, symbol string) (rng domain.DateRange, ok bool, err error) {
	records, err := readParquetFile[CoverageRecord](s.coveragePath(symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DateRange{}, false, nil
	}
	if err != nil {
		return domain.DateRange{}, false, fmt.Errorf("reading coverage for %s: %w", symbol, err)
	}
	if len(records) == 0 {
		return domain.DateRange{}, false, nil
	}
	r := records[len(records)-1]
	return domain.DateRange{
		Start: time.UnixMilli(r.Start).UTC(),
		End:   time.UnixMilli(r.End).UTC(),
	}, true, nil
}

// MarkFetched records that [start, end] has been fetched for symbol. When the
// new range overlaps or touches the recorded one they are merged; otherwise
// the new range replaces it.
func (s *ParquetStore) MarkFetched(ctx context.Context, symbol string, start, end time.Time) error {
	start, end = domain.TruncateDay(start), domain.TruncateDay(end)
	if cur, ok, err := s.Coverage(ctx, symbol); err != nil {
		return err
	} else if ok && !start.After(cur.End.AddDate(0, 0, 1)) && !cur.Start.After(end.AddDate(0, 0, 1)) {
		if cur.Start.Before(start) {
			start = cur.Start
		}
		if cur.End.After(end) {
			end = cur.End
		}
	}
	rec := CoverageRecord{
		Symbol:    strings.ToUpper(symbol),
		Start:     start.UnixMilli(),
		End:       end.UnixMilli(),
		FetchedAt: time.Now().UnixMilli(),
	}
	if err := writeParquetFile(s.coveragePath(symbol), []CoverageRecord{rec}); err != nil {
		return fmt.Errorf("writing coverage for %s: %w", symbol, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.symbolDir(symbol), fmt.Sprintf("%d.parquet", year))
}

// coveragePath sits beside the year files; the leading underscore keeps it
// from parsing as a year.
func (s *ParquetStore) coveragePath(symbol string) string {
	return filepath.Join(s.symbolDir(symbol), "_coverage.parquet")
}

func (s *ParquetStore) symbolDir(symbol string) string {
	return filepath.Join(s.DataDir, s.Market, "daily", strings.ToUpper(symbol))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

// writeParquetFile writes to a temp file and renames it into place so
// readers never see a partial file.
func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
