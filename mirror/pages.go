package mirror

import (
	"context"
	"log/slog"
	"slices"

	"github.com/fwojciec/docmirror"
)

// PageLister turns a sitemap into the sorted set of documentation page
// paths to mirror.
type PageLister struct {
	Sitemaps docmirror.SitemapService
	Filter   docmirror.PathFilter

	// Fallback is returned whenever the sitemap cannot be read.
	Fallback []string

	Logger  *slog.Logger
	Metrics docmirror.Metrics
}

// List returns the page paths listed in sitemapURL. Any failure to fetch or
// parse the sitemap yields a copy of Fallback instead of an error; the
// boolean result reports whether that happened.
func (l *PageLister) List(ctx context.Context, sitemapURL string) ([]string, bool) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	urls, err := l.Sitemaps.URLs(ctx, sitemapURL)
	if err != nil {
		logger.Error("failed to discover pages from sitemap", "sitemap", sitemapURL, "err", err)
		logger.Warn("falling back to static page list", "pages", len(l.Fallback))
		if l.Metrics != nil {
			l.Metrics.FallbackUsed("listing")
		}
		return slices.Clone(l.Fallback), true
	}
	logger.Info("found URLs in sitemap", "count", len(urls))

	pages := SelectPages(urls, l.Filter)
	logger.Info("discovered documentation pages", "count", len(pages))
	return pages, false
}

// SelectPages keeps URLs accepted by filter, normalizes them to paths, and
// returns them de-duplicated in lexicographic order.
func SelectPages(urls []string, filter docmirror.PathFilter) []string {
	seen := make(map[string]struct{})
	pages := []string{}
	for _, u := range urls {
		if !filter.Includes(u) {
			continue
		}
		path, err := docmirror.NormalizePath(u)
		if err != nil || filter.Excludes(path) {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		pages = append(pages, path)
	}
	slices.Sort(pages)
	return pages
}
