// Package http provides HTTP-based implementations of docmirror.Fetcher and
// docmirror.SitemapService. A single Fetcher, and therefore a single
// connection pool, is shared by every request of a run.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/docmirror"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 30 * time.Second

// DefaultRetryAfter is used when a 429 response has no usable Retry-After.
const DefaultRetryAfter = 60 * time.Second

// MaxBodySize is the default limit on response body size. Larger bodies are
// rejected rather than truncated.
const MaxBodySize = 32 << 20

// Ensure Fetcher implements docmirror.Fetcher at compile time.
var _ docmirror.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves URL bodies using plain GET requests with fixed headers.
// Redirects are followed.
type Fetcher struct {
	client            *http.Client
	timeout           time.Duration
	headers           map[string]string
	defaultRetryAfter time.Duration
	maxBodySize       int64
	now               func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (30s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithDefaultRetryAfter sets the wait reported for 429 responses that carry
// no usable Retry-After header.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(f *Fetcher) {
		f.defaultRetryAfter = d
	}
}

// WithMaxBodySize sets the largest response body accepted.
// Defaults to MaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:           DefaultFetchTimeout,
		defaultRetryAfter: DefaultRetryAfter,
		maxBodySize:       MaxBodySize,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch retrieves the body of the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &docmirror.RateLimitError{
			URL:        url,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), f.defaultRetryAfter, f.now()),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &docmirror.StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return "", docmirror.Errorf(docmirror.EINVALID, "response body for %s exceeds %d bytes", url, f.maxBodySize)
	}

	return string(body), nil
}

// Close releases idle pooled connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// ParseRetryAfter interprets a Retry-After header value as delta-seconds or
// an HTTP date relative to now. Empty, malformed or negative values yield def.
func ParseRetryAfter(value string, def time.Duration, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}
