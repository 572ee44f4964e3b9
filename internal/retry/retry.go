// Package retry provides the bounded exponential backoff policy applied
// around executor calls. Only errors classified transient are retried;
// semantic failures surface immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/pagedex/pagedex/internal/domain"
)

// Defaults per the documented policy: base 1s doubled per attempt, up to 10%
// jitter, 3 attempts total.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	jitterFraction     = 0.1
)

// Policy is an immutable retry configuration.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil means "transient errors only".
	Retryable func(error) bool
}

// DefaultPolicy returns the documented default policy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return errors.Is(err, domain.ErrTransient) }
	}
	return p
}

// Do runs fn up to MaxAttempts times, sleeping baseDelay*2^(attempt-1) plus
// jitter between attempts. The last error is returned unwrapped so callers
// keep the full diagnostic chain.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !p.Retryable(err) || attempt >= p.MaxAttempts {
			return err
		}

		delay := p.delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.NewTransient("retry wait", ctx.Err())
		case <-timer.C:
		}
	}
}

// delay computes baseDelay*2^(attempt-1) with up to 10% random jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(float64(d)*jitterFraction) + 1))
	return d + jitter
}
