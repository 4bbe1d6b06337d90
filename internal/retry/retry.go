// Package retry implements bounded exponential backoff for transient
// failures against remote model and vector store endpoints.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
)

const (
	// DefaultMaxAttempts is the total number of tries, including the first.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps the backoff growth.
	DefaultMaxDelay = 8 * time.Second

	// DefaultJitter is the random fraction applied to each delay.
	DefaultJitter = 0.2
)

// Policy controls how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64

	// Retryable decides whether an error is worth another attempt.
	// Defaults to domain.IsTransient.
	Retryable func(error) bool
}

// DefaultPolicy returns the policy used for model and store calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the
// attempt budget is exhausted, or ctx is cancelled. The last error is
// returned unwrapped so callers can classify it.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}

		delay := p.delay(attempt)
		logger.Debug("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt, attempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// delay computes the backoff for the given 1-based attempt.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = DefaultMaxDelay
	}

	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
		if d < 0 {
			d = base
		}
	}
	return d
}
