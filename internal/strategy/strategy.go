// Package strategy defines the Strategy interface for rule-driven trading
// strategies, a Registry for constructing them by name, and the simulator and
// metrics calculator that turn a strategy plus a price series into a
// backtest result.
package strategy

import (
	"context"
	"sort"

	"stockbt/internal/domain"
)

// DefaultStrategy is the registry name of the SMA/volume rule strategy.
const DefaultStrategy = "sma-rule"

// Decision is a strategy's verdict for one bar, together with the indicator
// values it was based on.
type Decision struct {
	Action        domain.Action
	SMA           *float64
	AverageVolume *float64
}

// Strategy is the interface that all trading strategies must implement.
// A Strategy is stateful and used for exactly one simulation.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the first bar.
	Init(ctx context.Context) error

	// OnBar is called once per bar in date order. It must only look at bars
	// it has already been given.
	OnBar(ctx context.Context, bar domain.Bar) (Decision, error)
}

// Factory builds a fresh Strategy for a simulation config.
type Factory func(cfg domain.SimulationConfig) (Strategy, error)

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
