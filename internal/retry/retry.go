// Package retry is the single retry-policy abstraction used by every
// network call site: bounded attempts, exponential backoff with jitter,
// and a permanent-error escape hatch for failures that must not repeat.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Default policy values.
const (
	DefaultMaxAttempts  = 4
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultJitter       = 0.2
)

// Policy describes how an operation is retried. The zero value is not
// usable; construct with NewPolicy.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	BackoffMult  float64
	// Jitter is the +/- fraction applied to each delay (0.2 = +/-20%).
	Jitter float64

	rand func() float64
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total attempt bound (first try included).
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

// WithDelays sets the initial and maximum backoff delays.
func WithDelays(initial, max time.Duration) Option {
	return func(p *Policy) {
		p.InitialDelay = initial
		p.MaxDelay = max
	}
}

// WithBackoffMult sets the exponential multiplier.
func WithBackoffMult(m float64) Option {
	return func(p *Policy) {
		if m >= 1 {
			p.BackoffMult = m
		}
	}
}

// WithJitter sets the jitter fraction.
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

// WithRand injects the randomness source for jitter. Tests pin this.
func WithRand(r func() float64) Option {
	return func(p *Policy) {
		p.rand = r
	}
}

// NewPolicy creates a policy with defaults applied.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		BackoffMult:  DefaultBackoffMult,
		Jitter:       DefaultJitter,
		rand:         rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// bound is reached, or the context is cancelled.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.jittered(delay)):
			}
			delay = time.Duration(float64(delay) * p.BackoffMult)
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// jittered spreads a delay by +/- Jitter fraction.
func (p *Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter == 0 {
		return d
	}
	spread := (p.rand()*2 - 1) * p.Jitter
	return time.Duration(float64(d) * (1 + spread))
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryableStatus reports whether an HTTP status warrants a retry:
// rate limits and server errors do, other client errors do not.
func RetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}
