// Package resilience retries transient failures with exponential backoff.
// It is used for dataset downloads; query handling never retries.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes how an operation is retried. The zero value retries three
// times starting at one second, doubling up to thirty seconds.
type Policy struct {
	// Attempts is the total number of calls including the first.
	Attempts int
	// Base is the wait before the second call.
	Base time.Duration
	// Cap bounds any single wait.
	Cap time.Duration
	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64
	// Retryable decides whether an error is worth another call. Defaults to
	// IsRetryable.
	Retryable func(error) bool
	// OnRetry runs before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// PolicyFromSettings builds a Policy from configuration values. Non-positive
// values keep the defaults.
func PolicyFromSettings(attempts, baseMs int) Policy {
	var p Policy
	if attempts > 0 {
		p.Attempts = attempts
	}
	if baseMs > 0 {
		p.Base = time.Duration(baseMs) * time.Millisecond
	}
	return p
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Base <= 0 {
		p.Base = time.Second
	}
	if p.Cap <= 0 {
		p.Cap = 30 * time.Second
	}
	if p.Cap < p.Base {
		p.Cap = p.Base
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	return p
}

// wait returns the delay after the n-th failed call, counting from zero.
func (p Policy) wait(n int) time.Duration {
	d := p.Base
	for i := 0; i < n && d < p.Cap; i++ {
		d *= 2
	}
	d = min(d, p.Cap)
	if p.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.Jitter * float64(d))
	}
	return max(d, 0)
}

// Retry calls fn until it succeeds or returns an error the policy does not
// retry, the attempts run out, or ctx is done. The last error from fn is
// returned.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var err error
	for n := 0; n < p.Attempts; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if n == p.Attempts-1 || ctx.Err() != nil || !p.Retryable(err) {
			break
		}

		d := p.wait(n)
		if p.OnRetry != nil {
			p.OnRetry(n+1, d, err)
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
