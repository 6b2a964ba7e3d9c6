package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stockbt/internal/domain"
	"stockbt/internal/gather"
	"stockbt/internal/metrics"
	"stockbt/internal/store"
)

// Backtester validates a request, fetches its bars from a market-data
// provider, replays them through the registered rule strategy and computes
// the summary metrics. Completed runs can be persisted to a RunStore.
type Backtester struct {
	provider gather.Provider
	runs     store.RunStore
	registry *Registry
	log      *slog.Logger
	now      func() time.Time

	initialCapital float64
	timeout        time.Duration
}

// NewBacktester creates a Backtester that reads bars from provider and
// builds strategies from registry. runs may be nil, in which case RunAndSave
// does not persist anything.
func NewBacktester(provider gather.Provider, runs store.RunStore, registry *Registry, log *slog.Logger) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	return &Backtester{
		provider:       provider,
		runs:           runs,
		registry:       registry,
		log:            log.With("component", "backtester"),
		now:            time.Now,
		initialCapital: domain.DefaultInitialCapital,
	}
}

// SetDefaults overrides the capital used when a request leaves
// initial_capital unset, and the per-run timeout. Zero values keep the
// current setting. sma_period has no default and must always be supplied.
func (bt *Backtester) SetDefaults(initialCapital float64, timeout time.Duration) {
	if initialCapital > 0 {
		bt.initialCapital = initialCapital
	}
	if timeout > 0 {
		bt.timeout = timeout
	}
}

// Tickers lists the symbols the provider can serve.
func (bt *Backtester) Tickers(ctx context.Context) ([]string, error) {
	if tl, ok := bt.provider.(gather.TickerLister); ok {
		return tl.Tickers(ctx)
	}
	return append([]string(nil), gather.DefaultTickers...), nil
}

// Run executes one backtest. Errors are a *domain.ValidationError for bad
// input, or wrap domain.ErrNoData or domain.ErrInsufficientData; anything
// else is an internal failure.
func (bt *Backtester) Run(ctx context.Context, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	began := time.Now()
	res, err := bt.run(ctx, req)
	metrics.ObserveBacktest(Outcome(err), time.Since(began))
	return res, err
}

// RunAndSave runs the backtest and, on success, records it for userID.
// A failed save is logged and counted but does not fail the backtest.
func (bt *Backtester) RunAndSave(ctx context.Context, userID string, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	res, err := bt.Run(ctx, req)
	if err != nil || bt.runs == nil || userID == "" {
		return res, err
	}

	run := &domain.BacktestRun{
		ID:             uuid.NewString(),
		UserID:         userID,
		Ticker:         res.Ticker,
		StartDate:      res.StartDate,
		EndDate:        res.EndDate,
		SMAPeriod:      req.SMAPeriod,
		Rule:           req.Rule,
		InitialCapital: bt.requestCapital(req),
		TotalReturn:    res.TotalReturn,
		WinRate:        res.WinRate,
		NumTrades:      res.NumTrades,
		Summary:        res.Summary,
		EquityCurve:    res.EquityCurve,
		CreatedAt:      bt.now().UTC(),
	}
	serr := bt.runs.SaveRun(ctx, run)
	metrics.ObserveSave(serr)
	if serr != nil {
		bt.log.Error("saving backtest run", "user", userID, "ticker", run.Ticker, "err", serr)
		return res, nil
	}
	res.RunID = run.ID
	bt.log.Debug("backtest run saved", "id", run.ID, "user", userID)
	return res, nil
}

func (bt *Backtester) run(ctx context.Context, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	capital := bt.requestCapital(req)
	req.InitialCapital = &capital

	cfg, rng, err := req.Validate(bt.now())
	if err != nil {
		return nil, err
	}

	factory, ok := bt.registry.Get(DefaultStrategy)
	if !ok {
		return nil, fmt.Errorf("strategy %q not registered", DefaultStrategy)
	}
	strat, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", DefaultStrategy, err)
	}

	if bt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bt.timeout)
		defer cancel()
	}

	bars, err := bt.provider.GetDailyBars(ctx, cfg.Ticker, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("loading %s bars: %w", cfg.Ticker, err)
	}

	states, trades, err := Simulate(ctx, bars, cfg, strat)
	if err != nil {
		return nil, fmt.Errorf("simulating %s: %w", cfg.Ticker, err)
	}
	summary := Summarize(states, trades, cfg.InitialCapital)
	if trades == nil {
		trades = []domain.Trade{}
	}

	bt.log.Info("backtest complete",
		"ticker", cfg.Ticker,
		"start", req.StartDate,
		"end", req.EndDate,
		"rule", cfg.Rule.String(),
		"sma_period", cfg.SMAPeriod,
		"bars", len(bars),
		"trades", len(trades),
		"total_return_pct", summary.TotalReturnPct,
	)

	return &domain.BacktestResult{
		TotalReturn: summary.TotalReturnPct,
		WinRate:     summary.WinRatePct,
		NumTrades:   len(trades),
		EquityCurve: states,
		Trades:      trades,
		Summary:     summary,
		Ticker:      cfg.Ticker,
		StartDate:   rng.Start.Format(domain.DateLayout),
		EndDate:     rng.End.Format(domain.DateLayout),
	}, nil
}

func (bt *Backtester) requestCapital(req domain.BacktestRequest) float64 {
	if req.InitialCapital == nil {
		return bt.initialCapital
	}
	return *req.InitialCapital
}

// Outcome classifies a Run error into a metrics outcome label.
func Outcome(err error) string {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &verr):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrNoData):
		return metrics.OutcomeNoData
	case errors.Is(err, domain.ErrInsufficientData):
		return metrics.OutcomeInsufficient
	default:
		return metrics.OutcomeError
	}
}
