package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockbt/internal/domain"
	"stockbt/internal/store"
	"stockbt/internal/util"
)

// Compile-time interface checks.
var _ Provider = (*CachedProvider)(nil)
var _ TickerLister = (*CachedProvider)(nil)

// CachedProvider is a read-through cache in front of an upstream provider.
// Ranges already recorded as fetched are served from Parquet; anything else
// goes upstream and is written back. Cache failures are logged and never
// fail a request that upstream can serve.
type CachedProvider struct {
	upstream Provider
	cache    *store.ParquetStore
	log      *slog.Logger
	now      func() time.Time
}

// NewCachedProvider wraps upstream with a Parquet cache.
func NewCachedProvider(upstream Provider, cache *store.ParquetStore, log *slog.Logger) *CachedProvider {
	if log == nil {
		log = slog.Default()
	}
	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		log:      log.With("provider", "cache", "upstream", upstream.Name()),
		now:      time.Now,
	}
}

// Name returns "cache+<upstream>".
func (p *CachedProvider) Name() string { return "cache+" + p.upstream.Name() }

// GetDailyBars serves from the cache when it covers the range.
func (p *CachedProvider) GetDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return nil, fmt.Errorf("ticker %q: %w", ticker, domain.ErrNoData)
	}
	start, end = domain.TruncateDay(start), domain.TruncateDay(end)

	// Days after the last completed session can still change upstream.
	settled := end
	if last := util.LastCompletedSession(p.now()); last.Before(settled) {
		settled = last
	}

	if !settled.Before(start) {
		cov, ok, err := p.cache.Coverage(ctx, sym)
		if err != nil {
			p.log.Warn("reading coverage", "symbol", sym, "err", err)
		}
		if ok && !cov.Start.After(start) && !cov.End.Before(settled) {
			bars, err := p.cache.ReadBars(ctx, sym, start, end)
			if err == nil {
				if len(bars) == 0 {
					return nil, fmt.Errorf("%s between %s and %s: %w", sym,
						start.Format(domain.DateLayout), end.Format(domain.DateLayout), domain.ErrNoData)
				}
				p.log.Debug("cache hit", "symbol", sym, "count", len(bars))
				return bars, nil
			}
			p.log.Warn("reading cached bars", "symbol", sym, "err", err)
		}
	}

	bars, err := p.upstream.GetDailyBars(ctx, sym, start, end)
	if err != nil {
		return nil, err
	}
	if err := p.cache.WriteBars(ctx, bars); err != nil {
		p.log.Warn("caching bars", "symbol", sym, "err", err)
		return bars, nil
	}
	if !settled.Before(start) {
		if err := p.cache.MarkFetched(ctx, sym, start, settled); err != nil {
			p.log.Warn("recording coverage", "symbol", sym, "err", err)
		}
	}
	return bars, nil
}

// Tickers asks upstream when it can enumerate, otherwise lists cached
// symbols.
func (p *CachedProvider) Tickers(ctx context.Context) ([]string, error) {
	if tl, ok := p.upstream.(TickerLister); ok {
		return tl.Tickers(ctx)
	}
	syms, err := p.cache.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return append([]string(nil), DefaultTickers...), nil
	}
	return syms, nil
}

// IsNoData reports whether err means the provider has nothing for the
// request.
func IsNoData(err error) bool {
	return errors.Is(err, domain.ErrNoData)
}
