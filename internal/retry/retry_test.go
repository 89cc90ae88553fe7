package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transientErr struct{ msg string }

func (e *transientErr) Error() string   { return e.msg }
func (e *transientErr) Retryable() bool { return true }

func testConfig() Config {
	return Config{
		Enabled:         true,
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// newTestEngine swaps the sleeper for one that records waits and returns
// immediately.
func newTestEngine(cfg Config) (*Engine, *[]time.Duration) {
	e := New(cfg, nil)
	waits := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return e, waits
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	e, waits := newTestEngine(testConfig())

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	e, waits := newTestEngine(testConfig())

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &transientErr{msg: "connection refused"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestDoExhaustsAttempts(t *testing.T) {
	e, waits := newTestEngine(testConfig())

	cause := &transientErr{msg: "upstream down"}
	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return cause
	})

	assert.Equal(t, 3, calls)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestDoFatalErrorNotRetried(t *testing.T) {
	e, waits := newTestEngine(testConfig())

	fatal := errors.New("unauthorized")
	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, fatal)
	assert.Empty(t, *waits)
}

func TestDoDisabledSingleAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	e, waits := newTestEngine(cfg)

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return &transientErr{msg: "still down"}
	})

	assert.Equal(t, 1, calls)
	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted), "disabled engine must not wrap")
	assert.Empty(t, *waits)
}

func TestDoStopsOnCancellation(t *testing.T) {
	e, _ := newTestEngine(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := e.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &transientErr{msg: "would retry"}
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoCancelledBeforeStart(t *testing.T) {
	e, _ := newTestEngine(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := e.Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.Zero(t, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelaySchedule(t *testing.T) {
	e := New(Config{
		Enabled:         true,
		MaxAttempts:     10,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
		{6, 16 * time.Second},
		{7, 30 * time.Second}, // capped: 32s > MaxDelay
		{8, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelayCapsOverflow(t *testing.T) {
	e := New(Config{
		Enabled:         true,
		MaxAttempts:     10,
		InitialDelay:    time.Hour,
		MaxDelay:        time.Hour,
		ExponentialBase: 10.0,
	}, nil)

	// Large exponents overflow time.Duration; the cap must still hold.
	for attempt := 2; attempt <= 50; attempt++ {
		d := e.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, time.Hour, "attempt %d", attempt)
	}
}

func TestNewClampsConfig(t *testing.T) {
	e := New(Config{Enabled: true, MaxAttempts: 0, ExponentialBase: 0.5}, nil)
	assert.Equal(t, 1, e.cfg.MaxAttempts)
	assert.Equal(t, 2.0, e.cfg.ExponentialBase)
}

func TestExhaustedErrorMessage(t *testing.T) {
	err := &ExhaustedError{Attempts: 4, Err: errors.New("boom")}
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Contains(t, err.Error(), "boom")
}
