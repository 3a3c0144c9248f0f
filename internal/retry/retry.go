// Package retry implements bounded retry with exponential backoff and jitter,
// composed on top of (not inside) the circuit breaker: the breaker decides
// whether a target may be called at all, the retry policy decides how many
// times a single call is attempted before giving up.
//
// Only transient errors are retried. A BreakerOpen rejection is never
// retried within the same call — the caller moves on to the next fallback
// target instead.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Classifier reports whether an error is transient (worth retrying) or
// permanent (fail immediately). Callers supply a classifier appropriate to
// their target (provider HTTP status codes, agent-specific errors, ...).
type Classifier func(err error) bool

// Policy configures a bounded retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first,
	// default 3.
	MaxAttempts int
	// BaseBackoff is the delay before the second attempt; each subsequent
	// attempt doubles it. Default 100ms.
	BaseBackoff time.Duration
	// Jitter is the maximum random delay added on top of the backoff.
	// Default 50ms; a negative value disables jitter.
	Jitter time.Duration
	// Classify decides whether an error should be retried. Defaults to
	// AlwaysTransient.
	Classify Classifier
}

// AlwaysTransient treats every non-nil error as transient. Useful as a
// default when the caller has no finer-grained classification.
func AlwaysTransient(error) bool { return true }

// Never treats no error as transient; a single attempt is made.
func Never(error) bool { return false }

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 100 * time.Millisecond
	}
	if p.Jitter == 0 {
		p.Jitter = 50 * time.Millisecond
	} else if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Classify == nil {
		p.Classify = AlwaysTransient
	}
	return p
}

// ErrPermanent is a sentinel for errors that are not worth retrying. Do does
// not wrap errors with it: an error the classifier rejects is returned as is.
var ErrPermanent = errors.New("retry: permanent error, not retried")

// Do runs fn up to Policy.MaxAttempts times, sleeping with exponential
// backoff plus jitter between attempts, stopping early on a permanent error
// or when ctx is cancelled. It returns the last error encountered.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	backoff := p.BaseBackoff
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Classify(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := backoff
		if p.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(p.Jitter))) //nolint:gosec
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return lastErr
}

// DoCounted behaves exactly like Do but also returns the number of attempts
// made, so callers (the Executor) can populate StepResult.Attempts without
// re-implementing the retry loop.
func DoCounted(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	err := Do(ctx, p, func(ctx context.Context) error {
		attempts++
		return fn(ctx)
	})
	return attempts, err
}
