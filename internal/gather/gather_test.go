package gather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"stockbt/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fetchCall struct {
	ticker     string
	start, end time.Time
}

// fakeProvider serves fixed bars per ticker and records every call.
type fakeProvider struct {
	mu    sync.Mutex
	bars  map[string][]domain.Bar
	fail  map[string]bool
	err   error
	calls []fetchCall
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetDailyBars(_ context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{ticker, start, end})
	if f.err != nil {
		return nil, f.err
	}
	if f.fail[ticker] {
		return nil, errors.New("upstream unavailable")
	}
	out := normalizeBars(ticker, f.bars[ticker], start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, domain.ErrNoData)
	}
	return out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func series(sym string, from time.Time, closes ...float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{Symbol: sym, Timestamp: from.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return out
}

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"aapl", "AAPL"},
		{"  brk.b ", "BRK.B"},
		{"BF-B", "BF-B"},
		{"", ""},
		{"../etc/passwd", ""},
		{"A B", ""},
		{"TOOLONGTICKER", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTicker(tt.in); got != tt.want {
			t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeBars(t *testing.T) {
	raw := []domain.Bar{
		{Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC), Close: 12},
		{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Close: 11},
		{Timestamp: time.Date(2024, 1, 3, 21, 0, 0, 0, time.UTC), Close: 13}, // same day, later wins
		{Timestamp: day(2024, 1, 4), Close: 0},                               // invalid close
		{Timestamp: day(2024, 1, 5), Close: math.NaN()},
		{Timestamp: day(2023, 12, 29), Close: 10}, // before range
	}
	got := normalizeBars("XYZ", raw, day(2024, 1, 1), day(2024, 1, 31))
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2: %+v", len(got), got)
	}
	if !got[0].Timestamp.Equal(day(2024, 1, 2)) || got[0].Close != 11 {
		t.Errorf("first bar = %+v", got[0])
	}
	if got[1].Close != 13 {
		t.Errorf("duplicate day kept Close %v, want 13", got[1].Close)
	}
	for _, b := range got {
		if b.Symbol != "XYZ" {
			t.Errorf("Symbol = %q, want XYZ", b.Symbol)
		}
	}
}
