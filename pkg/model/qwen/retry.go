package qwen

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds the attempts of one logical non-streaming call. The
// backoff before attempt i (i>=2) is min(MaxBackoff, MinBackoff*Multiplier^(i-2)).
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Multiplier  float64

	// Classify decides whether an error is retryable. Nil retries every
	// error, matching the historical behavior; TransientOnly narrows it.
	Classify func(error) bool

	// Notify observes each retry before the backoff sleep. Nil logs at
	// warning level.
	Notify func(attempt int, delay time.Duration, err error)

	// sleep is a test seam; nil sleeps on a timer honoring ctx.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the service client defaults: three attempts with
// 1s..20s exponential backoff, doubling each time.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		MinBackoff:  time.Second,
		MaxBackoff:  20 * time.Second,
		Multiplier:  2,
	}
}

// Backoff returns the delay inserted before the given attempt number.
// Attempt 1 has no delay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := float64(p.MinBackoff)
	for i := 2; i < attempt; i++ {
		delay *= p.Multiplier
	}
	if max := float64(p.MaxBackoff); p.MaxBackoff > 0 && delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// run invokes call up to MaxAttempts times. The final failure is returned
// unchanged so callers keep the original error detail.
func (p RetryPolicy) run(ctx context.Context, call func() (*rawResponse, error)) (*rawResponse, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := p.Backoff(attempt)
			p.notify(attempt, delay, lastErr)
			if err := p.doSleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if p.Classify != nil && !p.Classify(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (p RetryPolicy) notify(attempt int, delay time.Duration, err error) {
	if p.Notify != nil {
		p.Notify(attempt, delay, err)
		return
	}
	slog.Warn("retrying generation call",
		"attempt", attempt,
		"delay", delay,
		"error", err,
	)
}

func (p RetryPolicy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
