// Package gather provides market-data providers that return daily bars for a
// ticker and date range, and the backfill job that keeps the local Parquet
// cache populated.
package gather

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"stockbt/internal/domain"
)

// Provider returns daily bars for one ticker.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// GetDailyBars returns the bars inside [start, end] (inclusive calendar
	// days) sorted by date with one bar per day. It fails with an error
	// wrapping domain.ErrNoData when the ticker is unknown or the range is
	// empty.
	GetDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error)
}

// TickerLister is implemented by providers that can enumerate the tickers
// they serve.
type TickerLister interface {
	Tickers(ctx context.Context) ([]string, error)
}

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}

// DefaultTickers is offered when a provider cannot enumerate its tickers.
var DefaultTickers = []string{"AAPL", "AMZN", "GOOGL", "META", "MSFT", "NVDA", "TSLA"}

// NormalizeTicker upper-cases and trims a ticker. It returns "" for anything
// that is not a plausible exchange symbol, which also keeps tickers safe to
// use as file names.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || len(t) > 10 {
		return ""
	}
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return ""
		}
	}
	return t
}

// normalizeBars enforces the Provider contract on raw upstream bars: stamps
// the symbol, truncates timestamps to UTC days, drops bars outside the range
// or with a non-positive or non-finite close, sorts by date and keeps the
// last bar seen for any duplicated day.
func normalizeBars(ticker string, bars []domain.Bar, start, end time.Time) []domain.Bar {
	rng := domain.DateRange{Start: start, End: end}
	byDay := make(map[int64]domain.Bar, len(bars))
	for _, b := range bars {
		if !(b.Close > 0) || math.IsInf(b.Close, 0) {
			continue
		}
		b.Timestamp = domain.TruncateDay(b.Timestamp)
		if !rng.Contains(b.Timestamp) {
			continue
		}
		b.Symbol = ticker
		byDay[b.Timestamp.Unix()] = b
	}
	out := make([]domain.Bar, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
