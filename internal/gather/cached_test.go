package gather

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockbt/internal/domain"
	"stockbt/internal/store"
)

func newCached(t *testing.T, up *fakeProvider, now time.Time) (*CachedProvider, *store.ParquetStore) {
	t.Helper()
	ps := store.NewParquetStore(t.TempDir(), "us")
	cp := NewCachedProvider(up, ps, nil)
	cp.now = func() time.Time { return now }
	return cp, ps
}

func TestCachedProviderReadThrough(t *testing.T) {
	up := &fakeProvider{bars: map[string][]domain.Bar{
		"AAPL": series("AAPL", day(2024, 1, 2), 100, 101, 102, 103, 104),
	}}
	cp, ps := newCached(t, up, day(2024, 6, 12))
	ctx := context.Background()

	first, err := cp.GetDailyBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if up.callCount() != 1 {
		t.Fatalf("upstream calls = %d, want 1", up.callCount())
	}

	second, err := cp.GetDailyBars(ctx, "aapl", day(2024, 1, 3), day(2024, 1, 20))
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if up.callCount() != 1 {
		t.Errorf("covered sub-range went upstream (calls = %d)", up.callCount())
	}
	if len(first) != 5 || len(second) != 4 {
		t.Errorf("got %d and %d bars, want 5 and 4", len(first), len(second))
	}

	cov, ok, err := ps.Coverage(ctx, "AAPL")
	if err != nil || !ok {
		t.Fatalf("coverage ok=%v err=%v", ok, err)
	}
	if !cov.End.Equal(day(2024, 1, 31)) {
		t.Errorf("coverage end = %v, want 2024-01-31", cov.End)
	}

	// Wider range is not covered.
	if _, err := cp.GetDailyBars(ctx, "AAPL", day(2023, 12, 1), day(2024, 1, 31)); err != nil {
		t.Fatal(err)
	}
	if up.callCount() != 2 {
		t.Errorf("uncovered range served from cache (calls = %d)", up.callCount())
	}
}

func TestCachedProviderCoveredEmptyRange(t *testing.T) {
	up := &fakeProvider{bars: map[string][]domain.Bar{
		"AAPL": series("AAPL", day(2024, 1, 2), 100, 101),
	}}
	cp, _ := newCached(t, up, day(2024, 6, 12))
	ctx := context.Background()

	if _, err := cp.GetDailyBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 3, 31)); err != nil {
		t.Fatal(err)
	}
	// February is inside the fetched range but holds no bars.
	_, err := cp.GetDailyBars(ctx, "AAPL", day(2024, 2, 1), day(2024, 2, 28))
	if !errors.Is(err, domain.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
	if up.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1", up.callCount())
	}
}

func TestCachedProviderUnsettledTail(t *testing.T) {
	up := &fakeProvider{bars: map[string][]domain.Bar{
		"AAPL": series("AAPL", day(2024, 1, 2), 100, 101, 102),
	}}
	// Wednesday Jan 10: the last settled session is Jan 9.
	cp, ps := newCached(t, up, time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := cp.GetDailyBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatal(err)
	}
	cov, _, _ := ps.Coverage(ctx, "AAPL")
	if !cov.End.Equal(day(2024, 1, 9)) {
		t.Errorf("coverage end = %v, want the last settled session", cov.End)
	}
	if _, err := cp.GetDailyBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatal(err)
	}
	if up.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1", up.callCount())
	}
}

func TestCachedProviderPropagatesUpstreamErrors(t *testing.T) {
	up := &fakeProvider{}
	cp, ps := newCached(t, up, day(2024, 6, 12))
	ctx := context.Background()

	_, err := cp.GetDailyBars(ctx, "NOPE", day(2024, 1, 1), day(2024, 1, 31))
	if !errors.Is(err, domain.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
	if _, ok, _ := ps.Coverage(ctx, "NOPE"); ok {
		t.Error("a failed fetch must not record coverage")
	}

	up.err = errors.New("rate limited")
	if _, err := cp.GetDailyBars(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err == nil || IsNoData(err) {
		t.Errorf("err = %v, want upstream error", err)
	}
}

func TestCachedProviderTickers(t *testing.T) {
	up := &fakeProvider{bars: map[string][]domain.Bar{
		"MSFT": series("MSFT", day(2024, 1, 2), 300),
	}}
	cp, _ := newCached(t, up, day(2024, 6, 12))
	ctx := context.Background()

	got, err := cp.Tickers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(DefaultTickers) {
		t.Errorf("empty cache Tickers = %v, want defaults", got)
	}

	if _, err := cp.GetDailyBars(ctx, "MSFT", day(2024, 1, 1), day(2024, 1, 5)); err != nil {
		t.Fatal(err)
	}
	got, _ = cp.Tickers(ctx)
	if len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("Tickers = %v, want [MSFT]", got)
	}
}
