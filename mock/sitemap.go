package mock

import (
	"context"

	"github.com/fwojciec/docmirror"
)

var _ docmirror.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of docmirror.SitemapService.
type SitemapService struct {
	LocateFn func(ctx context.Context, candidates []string) (*docmirror.Sitemap, error)
	URLsFn   func(ctx context.Context, sitemapURL string) ([]string, error)
}

func (s *SitemapService) Locate(ctx context.Context, candidates []string) (*docmirror.Sitemap, error) {
	return s.LocateFn(ctx, candidates)
}

func (s *SitemapService) URLs(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.URLsFn(ctx, sitemapURL)
}
