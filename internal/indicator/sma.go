// Package indicator provides streaming technical indicators fed one bar at a
// time.
package indicator

// SMA is a trailing simple moving average over a fixed number of samples.
// Memory is O(period).
type SMA struct {
	period int
	window []float64
	next   int
	count  int
	sum    float64
}

// NewSMA returns an empty SMA. period must be >= 1.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]float64, period),
	}
}

// Period returns the window length.
func (s *SMA) Period() int { return s.period }

// Push adds a sample, evicting the oldest once the window is full.
func (s *SMA) Push(v float64) {
	if s.count == s.period {
		s.sum -= s.window[s.next]
	} else {
		s.count++
	}
	s.window[s.next] = v
	s.sum += v
	s.next = (s.next + 1) % s.period
}

// Ready reports whether the window holds period samples.
func (s *SMA) Ready() bool { return s.count == s.period }

// Value returns the mean of the window, or ok=false during warm-up.
func (s *SMA) Value() (v float64, ok bool) {
	if !s.Ready() {
		return 0, false
	}
	return s.sum / float64(s.period), true
}

// Pointer is Value as a *float64, nil during warm-up.
func (s *SMA) Pointer() *float64 {
	v, ok := s.Value()
	if !ok {
		return nil
	}
	return &v
}
