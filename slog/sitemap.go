// Package slog provides logging decorators for docmirror services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docmirror"
)

// Ensure LoggingSitemapService implements docmirror.SitemapService.
var _ docmirror.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService wraps a SitemapService with debug logging.
type LoggingSitemapService struct {
	next   docmirror.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next docmirror.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// Locate delegates to the wrapped service and logs the operation.
func (s *LoggingSitemapService) Locate(ctx context.Context, candidates []string) (sm *docmirror.Sitemap, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"candidates", len(candidates),
			"duration", time.Since(begin),
		}
		if sm != nil {
			attrs = append(attrs, "sitemap", sm.URL, "base_url", sm.BaseURL)
		}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		s.logger.Info("sitemap locate", attrs...)
	}(time.Now())
	return s.next.Locate(ctx, candidates)
}

// URLs delegates to the wrapped service and logs the operation.
func (s *LoggingSitemapService) URLs(ctx context.Context, sitemapURL string) (urls []string, err error) {
	defer func(begin time.Time) {
		s.logger.Info("sitemap urls",
			"url", sitemapURL,
			"count", len(urls),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.URLs(ctx, sitemapURL)
}
