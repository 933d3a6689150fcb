package world

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds retries of transient world failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first call.
	MaxAttempts int
	// Backoff computes the wait before the next attempt.
	Backoff func(attempt int) time.Duration
	// RetryIf selects retryable errors (default: errors.Is(err, ErrUnavailable)).
	RetryIf func(err error) bool
}

// DefaultRetryPolicy retries three times with linear 50ms steps.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     func(attempt int) time.Duration { return time.Duration(attempt) * 50 * time.Millisecond },
	}
}

type retrying struct {
	next   World
	policy RetryPolicy
}

// WithRetry decorates w so each call is retried under policy.
func WithRetry(w World, policy RetryPolicy) World {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.RetryIf == nil {
		policy.RetryIf = func(err error) bool { return errors.Is(err, ErrUnavailable) }
	}
	return &retrying{next: w, policy: policy}
}

func (r *retrying) do(ctx context.Context, fn func() error) error {
	var err error
	for i := 1; i <= r.policy.MaxAttempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == r.policy.MaxAttempts || !r.policy.RetryIf(err) {
			return err
		}
		if r.policy.Backoff != nil {
			t := time.NewTimer(r.policy.Backoff(i))
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
	return err
}

func (r *retrying) Block(ctx context.Context, pos Position) (b Block, err error) {
	err = r.do(ctx, func() (e error) {
		b, e = r.next.Block(ctx, pos)
		return e
	})
	return b, err
}

func (r *retrying) SetBlock(ctx context.Context, pos Position, id, aux int) error {
	return r.do(ctx, func() error { return r.next.SetBlock(ctx, pos, id, aux) })
}

func (r *retrying) Height(ctx context.Context, x, z int) (h int, err error) {
	err = r.do(ctx, func() (e error) {
		h, e = r.next.Height(ctx, x, z)
		return e
	})
	return h, err
}

func (r *retrying) PlayerPosition(ctx context.Context) (p Position, err error) {
	err = r.do(ctx, func() (e error) {
		p, e = r.next.PlayerPosition(ctx)
		return e
	})
	return p, err
}
