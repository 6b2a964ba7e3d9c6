package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"stockbt/internal/domain"
	"stockbt/internal/metrics"
	"stockbt/internal/store"
)

type barSource struct {
	bars  []domain.Bar
	calls int
}

func (s *barSource) Name() string { return "test" }

func (s *barSource) GetDailyBars(_ context.Context, ticker string, _, _ time.Time) ([]domain.Bar, error) {
	s.calls++
	if len(s.bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, domain.ErrNoData)
	}
	return s.bars, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]*domain.BacktestRun
	err  error
}

var _ store.RunStore = (*memRuns)(nil)

func (m *memRuns) SaveRun(_ context.Context, run *domain.BacktestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.runs == nil {
		m.runs = make(map[string]*domain.BacktestRun)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (*domain.BacktestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, store.ErrRunNotFound
}

func (m *memRuns) ListRuns(context.Context, string, int, int) ([]domain.BacktestRun, error) {
	return nil, nil
}

func (m *memRuns) Close() error { return nil }

func request() domain.BacktestRequest {
	return domain.BacktestRequest{
		Ticker:    "test",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
		SMAPeriod: 2,
		Rule:      domain.RuleSpec{IfCondition: "price > sma", ThenAction: "buy", ElseAction: "hold"},
	}
}

// newTestBacktester registers a strategy that buys on every bar and records
// the config it was built with.
func newTestBacktester(src *barSource, runs store.RunStore) (*Backtester, *domain.SimulationConfig) {
	var built domain.SimulationConfig
	r := NewRegistry()
	r.Register(DefaultStrategy, func(cfg domain.SimulationConfig) (Strategy, error) {
		built = cfg
		return &stubStrategy{name: DefaultStrategy, action: domain.ActionBuy}, nil
	})
	bt := NewBacktester(src, runs, r, nil)
	bt.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return bt, &built
}

func TestBacktesterRun(t *testing.T) {
	src := &barSource{bars: bars(100, 105, 110, 120)}
	bt, built := newTestBacktester(src, nil)

	res, err := bt.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if built.Ticker != "TEST" || built.InitialCapital != domain.DefaultInitialCapital {
		t.Errorf("strategy built with %+v", *built)
	}
	if len(res.EquityCurve) != 4 {
		t.Fatalf("equity curve has %d states, want 4", len(res.EquityCurve))
	}
	// All in at 100 on the first bar, still held at 120.
	if !near(res.TotalReturn, 20) || res.TotalReturn != res.Summary.TotalReturnPct {
		t.Errorf("TotalReturn = %v, summary %v, want 20", res.TotalReturn, res.Summary.TotalReturnPct)
	}
	if res.NumTrades != 0 || res.Trades == nil {
		t.Errorf("NumTrades = %d, Trades = %v, want 0 and empty slice", res.NumTrades, res.Trades)
	}
	if res.Ticker != "TEST" || res.StartDate != "2024-01-01" || res.EndDate != "2024-01-31" {
		t.Errorf("echoed fields = %q %q %q", res.Ticker, res.StartDate, res.EndDate)
	}
	if res.RunID != "" {
		t.Errorf("Run set RunID %q", res.RunID)
	}
}

func TestBacktesterDefaults(t *testing.T) {
	src := &barSource{bars: bars(10, 11, 12, 13, 14)}
	bt, built := newTestBacktester(src, nil)
	bt.SetDefaults(500, time.Second)

	req := request()
	res, err := bt.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if built.SMAPeriod != 2 || built.InitialCapital != 500 {
		t.Errorf("built with period %d capital %v, want 2 and 500", built.SMAPeriod, built.InitialCapital)
	}
	if got := res.EquityCurve[0].Equity; got != 500 {
		t.Errorf("starting equity = %v, want 500", got)
	}

	capital := 2500.0
	req.InitialCapital = &capital
	if _, err := bt.Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if built.InitialCapital != 2500 {
		t.Errorf("explicit capital overridden: %v", built.InitialCapital)
	}
}

func TestBacktesterRejectsNonPositivePeriod(t *testing.T) {
	for _, period := range []int{0, -3} {
		src := &barSource{bars: bars(10, 11, 12, 13, 14)}
		bt, _ := newTestBacktester(src, nil)
		bt.SetDefaults(500, time.Second)

		req := request()
		req.SMAPeriod = period
		res, err := bt.Run(context.Background(), req)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("period %d: Run = %+v, %v; want *ValidationError", period, res, err)
		}
		if src.calls != 0 {
			t.Errorf("period %d: provider called %d times before validation", period, src.calls)
		}
	}
}

func TestBacktesterErrors(t *testing.T) {
	tests := []struct {
		name    string
		bars    []domain.Bar
		mutate  func(*domain.BacktestRequest)
		outcome string
		fetches int
	}{
		{
			name:    "missing ticker",
			bars:    bars(1, 2, 3),
			mutate:  func(r *domain.BacktestRequest) { r.Ticker = " " },
			outcome: metrics.OutcomeInvalid,
		},
		{
			name:    "bad action",
			bars:    bars(1, 2, 3),
			mutate:  func(r *domain.BacktestRequest) { r.Rule.ThenAction = "short" },
			outcome: metrics.OutcomeInvalid,
		},
		{
			name:    "future start",
			bars:    bars(1, 2, 3),
			mutate:  func(r *domain.BacktestRequest) { r.StartDate, r.EndDate = "2030-01-01", "2030-02-01" },
			outcome: metrics.OutcomeInvalid,
		},
		{
			name:    "no data",
			outcome: metrics.OutcomeNoData,
			fetches: 1,
		},
		{
			name:    "fewer bars than period",
			bars:    bars(1, 2, 3),
			mutate:  func(r *domain.BacktestRequest) { r.SMAPeriod = 10 },
			outcome: metrics.OutcomeInsufficient,
			fetches: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &barSource{bars: tt.bars}
			bt, _ := newTestBacktester(src, nil)
			req := request()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			res, err := bt.Run(context.Background(), req)
			if err == nil {
				t.Fatalf("Run returned %+v, want error", res)
			}
			if got := Outcome(err); got != tt.outcome {
				t.Errorf("Outcome(%v) = %q, want %q", err, got, tt.outcome)
			}
			if src.calls != tt.fetches {
				t.Errorf("provider called %d times, want %d", src.calls, tt.fetches)
			}
		})
	}
}

func TestBacktesterUnregisteredStrategy(t *testing.T) {
	bt := NewBacktester(&barSource{bars: bars(1, 2, 3)}, nil, NewRegistry(), nil)
	bt.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	_, err := bt.Run(context.Background(), request())
	if err == nil || Outcome(err) != metrics.OutcomeError {
		t.Errorf("err = %v, want internal error", err)
	}
}

func TestBacktesterRunAndSave(t *testing.T) {
	runs := &memRuns{}
	bt, _ := newTestBacktester(&barSource{bars: bars(100, 90, 95)}, runs)
	ctx := context.Background()

	res, err := bt.RunAndSave(ctx, "user-1", request())
	if err != nil {
		t.Fatal(err)
	}
	if res.RunID == "" {
		t.Fatal("RunID not set after save")
	}
	run, err := runs.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.UserID != "user-1" || run.Ticker != "TEST" || run.SMAPeriod != 2 {
		t.Errorf("saved run = %+v", run)
	}
	if run.InitialCapital != domain.DefaultInitialCapital || run.Rule != request().Rule {
		t.Errorf("saved request fields = %v %+v", run.InitialCapital, run.Rule)
	}
	if math.Abs(run.TotalReturn-res.TotalReturn) > 0 || len(run.EquityCurve) != 3 {
		t.Errorf("saved result fields differ from response")
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	// Anonymous runs are not saved.
	res, err = bt.RunAndSave(ctx, "", request())
	if err != nil || res.RunID != "" || len(runs.runs) != 1 {
		t.Errorf("anonymous run: err %v, id %q, stored %d", err, res.RunID, len(runs.runs))
	}
}

func TestBacktesterSaveFailureIsNotFatal(t *testing.T) {
	runs := &memRuns{err: errors.New("disk full")}
	bt, _ := newTestBacktester(&barSource{bars: bars(100, 110, 120)}, runs)

	res, err := bt.RunAndSave(context.Background(), "user-1", request())
	if err != nil {
		t.Fatalf("save failure surfaced: %v", err)
	}
	if res == nil || res.RunID != "" {
		t.Errorf("result = %+v, want result without RunID", res)
	}
}

func TestBacktesterTickers(t *testing.T) {
	bt, _ := newTestBacktester(&barSource{}, nil)
	got, err := bt.Tickers(context.Background())
	if err != nil || len(got) == 0 {
		t.Errorf("Tickers() = %v, %v; want default list", got, err)
	}
}
