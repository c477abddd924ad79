package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/fwojciec/docmirror"
)

// FetchFunc is the signature for a fetch function.
type FetchFunc func(ctx context.Context, url string) (string, error)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with ctx.Err() if ctx is canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Jitter returns a uniform factor in [0.5, 1.0).
func Jitter() float64 {
	return 0.5 + rand.Float64()*0.5
}

// Retrier runs a FetchFunc with bounded, jittered exponential backoff.
//
// Transport errors and non-2xx statuses consume an attempt. HTTP 429 waits
// for the server-provided delay and does not consume an attempt, but only
// Policy.MaxRateLimitWaits consecutive 429s are tolerated.
type Retrier struct {
	Policy  docmirror.RetryPolicy
	Sleep   SleepFunc
	Jitter  func() float64
	Logger  *slog.Logger
	Metrics docmirror.Metrics
}

// Backoff returns the un-jittered delay after the given zero-based attempt:
// min(BaseDelay * 2^attempt, MaxDelay).
func (r *Retrier) Backoff(attempt int) time.Duration {
	d := r.Policy.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if r.Policy.MaxDelay > 0 && d >= r.Policy.MaxDelay {
			return r.Policy.MaxDelay
		}
	}
	if r.Policy.MaxDelay > 0 && d > r.Policy.MaxDelay {
		return r.Policy.MaxDelay
	}
	return d
}

// Fetch calls fetch until it succeeds, the attempt budget is spent, or ctx
// is canceled. Terminal failures carry the EUNAVAILABLE code and wrap the
// last error.
func (r *Retrier) Fetch(ctx context.Context, url string, fetch FetchFunc) (string, error) {
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	jitter := r.Jitter
	if jitter == nil {
		jitter = Jitter
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := r.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	maxAttempts := max(r.Policy.MaxAttempts, 1)

	attempt, waits := 0, 0
	for {
		body, err := fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var rateErr *docmirror.RateLimitError
		if errors.As(err, &rateErr) {
			if waits >= r.Policy.MaxRateLimitWaits {
				return "", fmt.Errorf("%w: %w", docmirror.Errorf(docmirror.EUNAVAILABLE, "still rate limited after %d waits for %s", waits, url), err)
			}
			waits++
			logger.Warn("rate limited", "url", url, "wait", rateErr.RetryAfter)
			metrics.RateLimited(rateErr.RetryAfter)
			if err := sleep(ctx, rateErr.RetryAfter); err != nil {
				return "", err
			}
			continue
		}
		waits = 0

		attempt++
		logger.Warn("fetch attempt failed", "url", url, "attempt", attempt, "max_attempts", maxAttempts, "err", err)
		if attempt >= maxAttempts {
			return "", fmt.Errorf("%w: %w", docmirror.Errorf(docmirror.EUNAVAILABLE, "failed to fetch %s after %d attempts", url, maxAttempts), err)
		}

		delay := time.Duration(float64(r.Backoff(attempt-1)) * jitter())
		logger.Info("retrying", "url", url, "delay", delay)
		metrics.Retried()
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}
