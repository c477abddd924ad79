package docmirror

import (
	"context"
	"net/url"
	"strings"
)

// SitemapNamespace is the XML namespace of the sitemaps.org protocol.
const SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Sitemap identifies a discovered sitemap and the site it describes.
type Sitemap struct {
	URL string

	// BaseURL is the scheme and host of the first location in the sitemap.
	BaseURL string
}

// SitemapService discovers and reads sitemaps.
type SitemapService interface {
	// Locate probes candidates in order and returns the first sitemap that
	// answers 200 and lists at least one location.
	// Returns ENOTFOUND if every candidate fails.
	Locate(ctx context.Context, candidates []string) (*Sitemap, error)

	// URLs returns every location listed in the sitemap, in document order.
	URLs(ctx context.Context, sitemapURL string) ([]string, error)
}

// PathFilter selects documentation pages from sitemap URLs using plain
// substring matching.
type PathFilter struct {
	// Include segments - a URL must contain at least one of them.
	Include []string `yaml:"include"`

	// Exclude segments - a normalized path containing any of them is dropped.
	// Exclude is applied after Include.
	Exclude []string `yaml:"exclude"`
}

// Includes reports whether rawURL contains one of the include segments.
// An empty include list accepts everything.
func (f *PathFilter) Includes(rawURL string) bool {
	if len(f.Include) == 0 {
		return true
	}
	for _, s := range f.Include {
		if strings.Contains(rawURL, s) {
			return true
		}
	}
	return false
}

// Excludes reports whether path contains one of the exclude segments.
func (f *PathFilter) Excludes(path string) bool {
	for _, s := range f.Exclude {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}

// NormalizePath returns the path of rawURL with a trailing ".html" or, failing
// that, a single trailing slash removed.
func NormalizePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	path := u.Path
	if strings.HasSuffix(path, ".html") {
		return strings.TrimSuffix(path, ".html"), nil
	}
	return strings.TrimSuffix(path, "/"), nil
}

// BaseURL returns the scheme and host of rawURL.
func BaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", Errorf(EINVALID, "url %q has no scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
