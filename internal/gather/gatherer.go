package gather

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"stockbt/internal/domain"
	"stockbt/internal/metrics"
	"stockbt/internal/store"
	"stockbt/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer backfills daily bars for a fixed ticker list from an
// upstream provider into the Parquet store. Each pass fetches only the days
// after what the store already covers, so reruns are cheap and idempotent
// within a day.
type DailyBarGatherer struct {
	provider   Provider
	store      *store.ParquetStore
	tickers    []string
	start      time.Time
	maxWorkers int
	log        *slog.Logger
	now        func() time.Time

	// Stats of the last Run.
	fetched, empty, upToDate, failed atomic.Int64
}

// GatherStats summarises one Run.
type GatherStats struct {
	Fetched  int64 // tickers with new bars written
	Empty    int64 // tickers the provider had no data for
	UpToDate int64 // tickers skipped because the store already covers the range
	Failed   int64
}

// NewDailyBarGatherer creates a gatherer writing to s. startDate is
// YYYY-MM-DD; maxWorkers <= 0 means 4.
func NewDailyBarGatherer(p Provider, s *store.ParquetStore, tickers []string, startDate string, maxWorkers int, log *slog.Logger) (*DailyBarGatherer, error) {
	start, err := time.Parse(domain.DateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start date %q: %w", startDate, err)
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	var syms []string
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		if sym := NormalizeTicker(t); sym != "" && !seen[sym] {
			seen[sym] = true
			syms = append(syms, sym)
		}
	}
	return &DailyBarGatherer{
		provider:   p,
		store:      s,
		tickers:    syms,
		start:      start,
		maxWorkers: maxWorkers,
		log:        log.With("gatherer", "daily-bars"),
		now:        time.Now,
	}, nil
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily-bars" }

// Stats returns the counters of the most recent Run.
func (g *DailyBarGatherer) Stats() GatherStats {
	return GatherStats{
		Fetched:  g.fetched.Load(),
		Empty:    g.empty.Load(),
		UpToDate: g.upToDate.Load(),
		Failed:   g.failed.Load(),
	}
}

// Run fetches every ticker concurrently up to the last completed session.
// Per-ticker failures are logged and counted; Run fails only when the
// context is cancelled or every ticker failed.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	g.fetched.Store(0)
	g.empty.Store(0)
	g.upToDate.Store(0)
	g.failed.Store(0)

	end := util.LastCompletedSession(g.now())
	runStart := time.Now()
	g.log.Info("starting daily-bars",
		"tickers", len(g.tickers),
		"start", g.start.Format(domain.DateLayout),
		"end", end.Format(domain.DateLayout),
		"workers", g.maxWorkers,
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxWorkers)
	for _, sym := range g.tickers {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			g.gatherOne(gctx, sym, end)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := g.Stats()
	g.log.Info("complete",
		"fetched", st.Fetched,
		"empty", st.Empty,
		"up_to_date", st.UpToDate,
		"failed", st.Failed,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	if len(g.tickers) > 0 && st.Failed == int64(len(g.tickers)) {
		return fmt.Errorf("all %d tickers failed", st.Failed)
	}
	return nil
}

func (g *DailyBarGatherer) gatherOne(ctx context.Context, sym string, end time.Time) {
	from := g.start
	cov, ok, err := g.store.Coverage(ctx, sym)
	if err != nil {
		g.log.Warn("reading coverage", "symbol", sym, "err", err)
	} else if ok && !cov.Start.After(from) {
		from = cov.End.AddDate(0, 0, 1)
	}
	if from.After(end) {
		g.upToDate.Add(1)
		return
	}

	bars, err := g.provider.GetDailyBars(ctx, sym, from, end)
	switch {
	case IsNoData(err):
		g.empty.Add(1)
		g.log.Info("no data", "symbol", sym, "from", from.Format(domain.DateLayout))
		// Record the range anyway so it is not requested again today.
		if err := g.store.MarkFetched(ctx, sym, from, end); err != nil {
			g.log.Warn("recording coverage", "symbol", sym, "err", err)
		}
		return
	case err != nil:
		g.failed.Add(1)
		g.log.Error("fetch failed", "symbol", sym, "err", err)
		return
	}
	metrics.ObserveBars(g.provider.Name(), len(bars))

	if err := g.store.WriteBars(ctx, bars); err != nil {
		g.failed.Add(1)
		g.log.Error("writing bars failed", "symbol", sym, "err", err)
		return
	}
	if err := g.store.MarkFetched(ctx, sym, from, end); err != nil {
		g.log.Warn("recording coverage", "symbol", sym, "err", err)
	}
	g.fetched.Add(1)
	g.log.Info("ticker done", "symbol", sym, "bars", len(bars), "sessions", util.CountWeekdays(from, end))
}
