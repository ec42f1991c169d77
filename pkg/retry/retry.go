// Package retry runs operations with exponential backoff. Only transient
// failures are worth another attempt: a dropped connection or a busy database
// may clear up, a validation error or a lost optimistic lock will not.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- share of the delay added at random
}

// DefaultConfig returns the defaults used for database operations:
// 3 retries with 100ms initial delay, capped at 5s, doubling each time, with 10% jitter
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// StartupConfig is used while waiting for Postgres or Redis to come up.
func StartupConfig() *Config {
	return &Config{
		MaxRetries:   10,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   1.5,
		JitterFactor: 0.2,
	}
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// run is the shared backoff loop. shouldRetry decides whether a failed
// attempt is followed by another one.
func run(ctx context.Context, cfg *Config, fn func() error, shouldRetry func(error) bool) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// Do executes fn with exponential backoff, retrying every failure.
// Returns nil on success, or the last error after all retries are exhausted.
// Respects context cancellation during wait periods.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	return run(ctx, cfg, fn, func(error) bool { return true })
}

// DoWithResult is Do for functions that return a value (like pgxpool.New).
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		r, err := fn()
		result = r
		return err
	})
	return result, err
}

// DoIfRetryable only retries transient errors. Anything else, including a
// lost optimistic lock, is returned after the first attempt.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	return run(ctx, cfg, fn, IsRetryable)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"network is unreachable",
	"server closed the connection",
	"the database system is starting up",
	"the database system is shutting down",
}

// IsRetryable determines if an error is transient and worth retrying.
// Errors wrapping apperrors.ErrTransientStore always are; context
// cancellation and ErrStaleState never are. Otherwise the message is matched
// against known connection failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrTransientStore) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrStaleState) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
