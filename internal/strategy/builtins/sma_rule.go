// Package builtins provides built-in strategy implementations that ship with
// stockbt.
package builtins

import (
	"context"
	"errors"
	"fmt"

	"stockbt/internal/domain"
	"stockbt/internal/indicator"
	"stockbt/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMARule)(nil)

// SMARule evaluates a single if/then/else rule against a trailing SMA of
// closes or a trailing average of volume.
//
// The indicators seen on day i are computed from days i-period .. i-1 only;
// the current bar is added to the windows after the decision. Until period
// prior bars exist the indicators are nil, the condition is false, and the
// else action is returned.
type SMARule struct {
	rule    domain.Rule
	period  int
	closes  *indicator.SMA
	volumes *indicator.SMA
}

// NewSMARule creates a rule strategy from a validated simulation config.
func NewSMARule(cfg domain.SimulationConfig) (*SMARule, error) {
	if cfg.SMAPeriod < 1 {
		return nil, fmt.Errorf("sma period must be >= 1, got %d", cfg.SMAPeriod)
	}
	return &SMARule{
		rule:   cfg.Rule,
		period: cfg.SMAPeriod,
	}, nil
}

// Register adds the built-in strategies to r.
func Register(r *strategy.Registry) {
	r.Register(strategy.DefaultStrategy, func(cfg domain.SimulationConfig) (strategy.Strategy, error) {
		return NewSMARule(cfg)
	})
}

// Name returns "sma-rule".
func (s *SMARule) Name() string {
	return strategy.DefaultStrategy
}

// Init resets the trailing windows.
func (s *SMARule) Init(_ context.Context) error {
	s.closes = indicator.NewSMA(s.period)
	s.volumes = indicator.NewSMA(s.period)
	return nil
}

// OnBar decides today's action from yesterday's windows, then folds today's
// close and volume in.
func (s *SMARule) OnBar(_ context.Context, bar domain.Bar) (strategy.Decision, error) {
	if s.closes == nil {
		return strategy.Decision{}, errors.New("sma-rule: OnBar before Init")
	}

	sma := s.closes.Pointer()
	avgVol := s.volumes.Pointer()
	met := s.rule.Condition.Evaluate(bar.Close, bar.Volume, sma, avgVol)

	s.closes.Push(bar.Close)
	s.volumes.Push(float64(bar.Volume))

	return strategy.Decision{
		Action:        s.rule.Select(met),
		SMA:           sma,
		AverageVolume: avgVol,
	}, nil
}
