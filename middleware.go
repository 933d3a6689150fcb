package xagent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/trickstertwo/xlog"
)

// RetryConfig controls retry behavior for handling middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first execution.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt (e.g., exponential backoff).
	Backoff func(attempt int) time.Duration
	// RetryIf, when provided, returns true if the error should be retried.
	// If nil, all errors are retried (bounded by MaxAttempts).
	RetryIf func(err error) bool
	// Jitter adds up to [0, Jitter] random delay to the base backoff.
	Jitter time.Duration
}

// RetryMiddleware provides bounded, selective retries around a handler.
// The wait between attempts is a cooperative delay of the handling agent only.
func RetryMiddleware(cfg RetryConfig) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			var lastErr error
			attempts := cfg.MaxAttempts
			if attempts < 1 {
				attempts = 1
			}
			shouldRetry := cfg.RetryIf
			if shouldRetry == nil {
				shouldRetry = func(error) bool { return true }
			}
			for i := 1; i <= attempts; i++ {
				lastErr = next(ctx, msg)
				if lastErr == nil {
					return nil
				}
				if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return lastErr
				}
				if i == attempts || !shouldRetry(lastErr) {
					return lastErr
				}
				if cfg.Backoff != nil {
					wait := cfg.Backoff(i)
					if cfg.Jitter > 0 {
						wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
					}
					select {
					case <-ctx.Done():
						return lastErr
					case <-time.After(wait):
					}
				}
			}
			return lastErr
		}
	}
}

// RecoveryMiddleware converts handler panics into errors so one bad message
// cannot kill the handling agent.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// LoggingMiddleware logs every handled message at debug level.
func LoggingMiddleware(l *xlog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			start := time.Now()
			err := next(ctx, msg)
			l.Debug().
				Str("type", msg.Type()).
				Str("source", msg.Source()).
				Str("status", msg.Status()).
				Dur("dur", time.Since(start)).
				Err(err).
				Msg("message handled")
			return err
		}
	}
}

// Chain composes middlewares around a handler in order.
func Chain(h Handler, mws ...Middleware) Handler {
	if len(mws) == 0 {
		return h
	}
	wrapped := h
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
