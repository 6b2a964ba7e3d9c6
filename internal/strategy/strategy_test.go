package strategy

import (
	"context"
	"testing"

	"stockbt/internal/domain"
)

// stubStrategy returns a fixed action for every bar.
type stubStrategy struct {
	name   string
	action domain.Action
	inits  int
}

func (s *stubStrategy) Name() string                 { return s.name }
func (s *stubStrategy) Init(_ context.Context) error { s.inits++; return nil }
func (s *stubStrategy) OnBar(_ context.Context, _ domain.Bar) (Decision, error) {
	return Decision{Action: s.action}, nil
}

func stubFactory(name string) Factory {
	return func(domain.SimulationConfig) (Strategy, error) {
		return &stubStrategy{name: name, action: domain.ActionHold}, nil
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("test-strategy", stubFactory("test-strategy"))

	f, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	s, err := f(domain.SimulationConfig{})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if s.Name() != "test-strategy" {
		t.Errorf("factory built strategy with Name() = %q, want %q", s.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register("beta", stubFactory("beta"))
	r.Register("alpha", stubFactory("alpha"))

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register("x", stubFactory("first"))
	r.Register("x", stubFactory("second"))

	f, _ := r.Get("x")
	s, _ := f(domain.SimulationConfig{})
	if s.Name() != "second" {
		t.Errorf("Name() = %q, want second", s.Name())
	}
	if n := len(r.List()); n != 1 {
		t.Errorf("List has %d entries, want 1", n)
	}
}
