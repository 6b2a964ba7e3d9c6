package indicator

import (
	"math"
	"testing"
)

func TestSMAWarmup(t *testing.T) {
	s := NewSMA(3)
	s.Push(1)
	s.Push(2)
	if s.Ready() {
		t.Fatal("Ready() = true after 2 of 3 samples")
	}
	if p := s.Pointer(); p != nil {
		t.Errorf("Pointer() = %v during warm-up, want nil", *p)
	}
	s.Push(3)
	v, ok := s.Value()
	if !ok || v != 2 {
		t.Errorf("Value() = %v, %v, want 2, true", v, ok)
	}
}

func TestSMARolls(t *testing.T) {
	s := NewSMA(3)
	for _, v := range []float64{100, 102, 104, 103, 105} {
		s.Push(v)
	}
	v, _ := s.Value()
	want := (104.0 + 103 + 105) / 3
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("Value() = %v, want %v", v, want)
	}
}

func TestSMAPeriodOne(t *testing.T) {
	s := NewSMA(1)
	s.Push(5)
	s.Push(7)
	if v, _ := s.Value(); v != 7 {
		t.Errorf("Value() = %v, want 7", v)
	}
}

func TestNewSMAClampsPeriod(t *testing.T) {
	if got := NewSMA(0).Period(); got != 1 {
		t.Errorf("Period() = %d, want 1", got)
	}
}
