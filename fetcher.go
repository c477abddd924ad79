package docmirror

import "context"

// Fetcher retrieves the raw body of a URL.
type Fetcher interface {
	// Fetch performs a single GET and returns the body.
	// Returns *RateLimitError on HTTP 429 and *StatusError on any other
	// non-2xx status. Retries are the caller's concern.
	Fetch(ctx context.Context, url string) (body string, err error)

	// Close releases pooled connections.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}
