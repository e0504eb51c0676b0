package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastPolicy(opts ...Option) *Policy {
	base := []Option{
		WithDelays(time.Millisecond, 5*time.Millisecond),
		WithJitter(0),
	}
	return NewPolicy(append(base, opts...)...)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), func(_ context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoBoundedAttempts(t *testing.T) {
	attempts := 0
	transient := errors.New("still down")

	err := fastPolicy(WithMaxAttempts(3)).Do(context.Background(), func(_ context.Context) error {
		attempts++
		return transient
	})

	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}
	if !errors.Is(err, transient) {
		t.Errorf("error should wrap the last failure, got %v", err)
	}
}

func TestDoPermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	badRequest := errors.New("bad request (400)")

	err := fastPolicy().Do(context.Background(), func(_ context.Context) error {
		attempts++
		return Permanent(badRequest)
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for permanent error", attempts)
	}
	if !errors.Is(err, badRequest) {
		t.Errorf("error = %v, want the unwrapped permanent error", err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := NewPolicy(WithDelays(time.Hour, time.Hour), WithJitter(0)).Do(ctx, func(_ context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry after cancel)", attempts)
	}
}

func TestJitteredSpread(t *testing.T) {
	// rand pinned to 1.0: spread = +jitter.
	p := NewPolicy(WithJitter(0.2), WithRand(func() float64 { return 1 }))
	got := p.jittered(100 * time.Millisecond)
	if got != 120*time.Millisecond {
		t.Errorf("jittered = %v, want 120ms", got)
	}

	// rand pinned to 0: spread = -jitter.
	p = NewPolicy(WithJitter(0.2), WithRand(func() float64 { return 0 }))
	got = p.jittered(100 * time.Millisecond)
	if got != 80*time.Millisecond {
		t.Errorf("jittered = %v, want 80ms", got)
	}
}

func TestRetryableStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusOK, false},
	}

	for _, tc := range cases {
		if got := RetryableStatus(tc.code); got != tc.want {
			t.Errorf("RetryableStatus(%d) = %t, want %t", tc.code, got, tc.want)
		}
	}
}
