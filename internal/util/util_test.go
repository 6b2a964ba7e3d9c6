package util

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("not found")
	attempts := 0

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry returned %v, want sentinel", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error { return errors.New("fail") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry returned %v, want context.Canceled", err)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("first Wait should not block: %v", err)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait: %v", err)
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	rl := NewRateLimiter(600) // one slot every 100ms
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	for i, want := range []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond} {
		if got := rl.reserve(); got != want {
			t.Errorf("reserve %d = %v, want %v", i, got, want)
		}
	}

	// Idle time does not bank extra slots.
	now = base.Add(time.Second)
	if got := rl.reserve(); got != 0 {
		t.Errorf("reserve after idle = %v, want 0", got)
	}
	if got := rl.reserve(); got != 100*time.Millisecond {
		t.Errorf("second reserve after idle = %v, want 100ms", got)
	}
}

func TestRateLimiterRespectsContext(t *testing.T) {
	rl := NewRateLimiter(1)
	_ = rl.Wait(context.Background()) // consume the initial token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait returned %v, want deadline exceeded", err)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "text").Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "warn", "json").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	newLogger(&buf, "info", "").Info("kept")
	if !strings.Contains(buf.String(), `"msg":"kept"`) {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestLastCompletedSession(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		// Wednesday -> Tuesday
		{time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC), time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)},
		// Monday -> previous Friday
		{time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)},
		// Sunday -> Friday
		{time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC), time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := LastCompletedSession(tt.now); !got.Equal(tt.want) {
			t.Errorf("LastCompletedSession(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}
}

func TestCountWeekdays(t *testing.T) {
	mon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if n := CountWeekdays(mon, mon.AddDate(0, 0, 13)); n != 10 {
		t.Errorf("two weeks = %d weekdays, want 10", n)
	}
	if n := CountWeekdays(mon, mon.AddDate(0, 0, -1)); n != 0 {
		t.Errorf("reversed range = %d, want 0", n)
	}
}
