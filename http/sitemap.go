package http

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/docmirror"
)

// Ensure SitemapService implements docmirror.SitemapService.
var _ docmirror.SitemapService = (*SitemapService)(nil)

// SitemapService reads sitemaps through a docmirror.Fetcher.
//
// Documents that declare a DTD are rejected outright, so neither internal
// nor external entities are ever expanded.
type SitemapService struct {
	fetcher docmirror.Fetcher
}

// NewSitemapService creates a new SitemapService that fetches through f.
func NewSitemapService(f docmirror.Fetcher) *SitemapService {
	return &SitemapService{fetcher: f}
}

// Locate returns the first candidate that answers 200 and lists at least
// one location. The base URL is the scheme and host of that location.
func (s *SitemapService) Locate(ctx context.Context, candidates []string) (*docmirror.Sitemap, error) {
	var errs []error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		locs, err := s.URLs(ctx, candidate)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
			continue
		}
		if len(locs) == 0 {
			errs = append(errs, fmt.Errorf("%s: no locations", candidate))
			continue
		}

		base, err := docmirror.BaseURL(locs[0])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
			continue
		}
		return &docmirror.Sitemap{URL: candidate, BaseURL: base}, nil
	}

	return nil, docmirror.Errorf(docmirror.ENOTFOUND, "could not find a valid sitemap: %v", errors.Join(errs...))
}

// URLs fetches sitemapURL and returns every listed location.
func (s *SitemapService) URLs(ctx context.Context, sitemapURL string) ([]string, error) {
	body, err := s.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	doc, err := parseSitemap(body)
	if err != nil {
		return nil, err
	}

	return locations(doc), nil
}

// parseSitemap parses body as XML, refusing documents with a DTD.
func parseSitemap(body string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil {
		return nil, fmt.Errorf("parsing sitemap XML: %w", err)
	}

	for _, tok := range doc.Child {
		if d, ok := tok.(*etree.Directive); ok {
			data := strings.ToUpper(strings.TrimSpace(d.Data))
			if strings.HasPrefix(data, "DOCTYPE") || strings.HasPrefix(data, "ENTITY") {
				return nil, docmirror.Errorf(docmirror.EINVALID, "sitemap declares a DTD")
			}
		}
	}

	if doc.Root() == nil {
		return nil, fmt.Errorf("empty sitemap XML")
	}
	return doc, nil
}

// locations returns <loc> values of <url> entries in the sitemap namespace.
// When there are none, any un-namespaced <loc> element is used instead.
func locations(doc *etree.Document) []string {
	var locs []string
	for _, u := range doc.FindElements("//url") {
		if u.NamespaceURI() != docmirror.SitemapNamespace {
			continue
		}
		for _, loc := range u.SelectElements("loc") {
			if loc.NamespaceURI() != docmirror.SitemapNamespace {
				continue
			}
			if text := strings.TrimSpace(loc.Text()); text != "" {
				locs = append(locs, text)
			}
			break
		}
	}
	if len(locs) > 0 {
		return locs
	}

	for _, loc := range doc.FindElements("//loc") {
		if loc.NamespaceURI() != "" {
			continue
		}
		if text := strings.TrimSpace(loc.Text()); text != "" {
			locs = append(locs, text)
		}
	}
	return locs
}
