package mirror

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests to the same host using token buckets with a
// burst of 1. Requests to different hosts do not delay each other.
// A Pacer is not safe for concurrent use.
type Pacer struct {
	interval time.Duration
	limiters map[string]*rate.Limiter
}

// NewPacer creates a Pacer allowing one request per interval per host.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL's host is allowed.
// Returns an error if the context is canceled before the wait completes.
func (p *Pacer) Wait(ctx context.Context, rawURL string) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	limiter, ok := p.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[host] = limiter
	}
	return limiter.Wait(ctx)
}
