package source

import (
	"context"
	"log/slog"
	"time"
)

// DefaultMaxAttempts bounds every retry loop's worst-case latency.
const DefaultMaxAttempts = 3

// SleepFunc is the artificial-delay hook. Tests substitute a recorder;
// production uses Sleep.
type SleepFunc func(ctx context.Context, d time.Duration)

// Sleep waits for d or until the context is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RetryPolicy retries transient faults with the backoff schedule each
// fault kind calls for: rate limits wait 2^attempt seconds, server
// faults wait attempt+1 seconds, everything else fails immediately.
type RetryPolicy struct {
	MaxAttempts int
	SleepFn     SleepFunc
}

// NewRetryPolicy returns the production policy with the given attempt cap.
func NewRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return RetryPolicy{MaxAttempts: maxAttempts, SleepFn: Sleep}
}

// Do runs fn up to MaxAttempts times. Non-retryable faults return on the
// first attempt with no delay; the last error is returned once attempts
// are exhausted.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.backoff(KindOf(err), attempt)
		slog.WarnContext(ctx, "retrying upstream call",
			"operation", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		p.SleepFn(ctx, delay)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (p RetryPolicy) backoff(kind FaultKind, attempt int) time.Duration {
	if kind == FaultRateLimit {
		return time.Duration(1<<attempt) * time.Second
	}
	return time.Duration(attempt+1) * time.Second
}
