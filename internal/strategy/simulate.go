package strategy

import (
	"context"
	"fmt"

	"stockbt/internal/broker"
	"stockbt/internal/domain"
)

// Simulate walks prices once, in order, asking strat for a decision on each
// bar and applying it to an all-in cash account at the bar's close.
//
// It returns one AccountState per bar and the trades closed along the way.
// A position still open after the last bar is not closed; it only shows up
// as unrealised equity in the final state. No costs, slippage or share
// rounding are modelled.
//
// Simulate fails with domain.ErrNoData for an empty series and with
// domain.ErrInsufficientData unless there are more bars than cfg.SMAPeriod.
// The window excludes the current bar, so the first SMA value appears at
// index cfg.SMAPeriod and a shorter series would never produce one.
func Simulate(ctx context.Context, prices []domain.Bar, cfg domain.SimulationConfig, strat Strategy) ([]domain.AccountState, []domain.Trade, error) {
	if len(prices) == 0 {
		return nil, nil, domain.ErrNoData
	}
	if len(prices) <= cfg.SMAPeriod {
		return nil, nil, fmt.Errorf("%w: %d bars, sma period %d", domain.ErrInsufficientData, len(prices), cfg.SMAPeriod)
	}
	if !(cfg.InitialCapital > 0) {
		return nil, nil, &domain.ValidationError{Problems: []string{"initial capital must be positive"}}
	}
	if err := strat.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("initialising %s: %w", strat.Name(), err)
	}

	acct := broker.NewAccount(cfg.InitialCapital)
	states := make([]domain.AccountState, 0, len(prices))
	var trades []domain.Trade

	for i, bar := range prices {
		d, err := strat.OnBar(ctx, bar)
		if err != nil {
			return nil, nil, fmt.Errorf("%s on bar %d (%s): %w", strat.Name(), i, bar.Timestamp.Format(domain.DateLayout), err)
		}
		if closed := acct.Apply(d.Action, bar); closed != nil {
			trades = append(trades, *closed)
		}
		st := acct.Snapshot(bar)
		st.SMA = d.SMA
		st.AverageVolume = d.AverageVolume
		states = append(states, st)
	}

	return states, trades, nil
}
