// Package retry wraps network operations with bounded exponential backoff.
//
// Timeouts apply per individual attempt, not to the sequence: the worst-case
// duration of one call is the sum of all backoff delays plus the number of
// attempts times the per-attempt timeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config defines the backoff schedule for one engine.
type Config struct {
	// Enabled short-circuits the engine to a single attempt when false.
	Enabled bool
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps every backoff wait regardless of the exponent.
	MaxDelay time.Duration
	// ExponentialBase is the factor applied per additional attempt. Must be >1.
	ExponentialBase float64
}

// ExhaustedError wraps the last error observed once all attempts are spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Engine executes operations with retry on transient failures. Failures are
// transient when the error (or anything it wraps) reports Retryable() == true;
// everything else propagates on first occurrence.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	// sleep is swapped out in tests to observe the schedule without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an engine with the given schedule.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ExponentialBase <= 1 {
		cfg.ExponentialBase = 2.0
	}
	return &Engine{cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Delay returns the backoff before the given attempt (1-based). The first
// attempt never waits; attempt n waits min(MaxDelay, InitialDelay*Base^(n-2)).
func (e *Engine) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := time.Duration(float64(e.cfg.InitialDelay) * math.Pow(e.cfg.ExponentialBase, float64(attempt-2)))
	if d > e.cfg.MaxDelay || d < 0 {
		d = e.cfg.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails fatally, or attempts are exhausted.
// Cancelling ctx stops the sequence between attempts and during waits.
func (e *Engine) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if !e.cfg.Enabled {
		return op(ctx)
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if wait := e.Delay(attempt); wait > 0 {
			e.logger.Debug("retrying after backoff",
				"attempt", attempt, "max_attempts", e.cfg.MaxAttempts, "wait", wait)
			if err := e.sleep(ctx, wait); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		// The caller abandoning the sequence trumps per-attempt classification:
		// an attempt timeout is transient, the caller's cancellation is not.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTransient(lastErr) {
			return lastErr
		}
	}

	return &ExhaustedError{Attempts: e.cfg.MaxAttempts, Err: lastErr}
}

func isTransient(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
