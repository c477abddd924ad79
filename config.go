package docmirror

import (
	"regexp"
	"time"
)

// ToolVersion is recorded in the manifest's fetch metadata.
const ToolVersion = "3.0"

// ManifestFilename is the manifest's name inside the output directory.
// It is never removed by cleanup.
const ManifestFilename = "docs_manifest.json"

// Defaults for the repository metadata recorded in the manifest.
const (
	DefaultRepository = "ericbuess/claude-code-docs"
	DefaultRef        = "main"
)

var (
	repositoryPattern = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)
	refPattern        = regexp.MustCompile(`^[\w.-]+$`)
)

// ValidRepository reports whether repo looks like "owner/name".
func ValidRepository(repo string) bool {
	return repositoryPattern.MatchString(repo)
}

// ValidRef reports whether ref is a plain branch or tag name.
func ValidRef(ref string) bool {
	return refPattern.MatchString(ref)
}

// RetryPolicy controls how transient fetch failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is doubled for each attempt and capped at MaxDelay.
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`

	// DefaultRetryAfter is used when a 429 response carries no usable
	// Retry-After header.
	DefaultRetryAfter time.Duration `yaml:"default_retry_after"`

	// MaxRateLimitWaits bounds consecutive 429 waits for a single URL.
	MaxRateLimitWaits int `yaml:"max_rate_limit_waits"`
}

// Config holds every constant used by a mirror run. It is built once at
// startup and passed by value into components.
type Config struct {
	// SitemapURLs are probed in order; the first usable one wins.
	SitemapURLs []string `yaml:"sitemap_urls"`

	// FallbackBaseURL is used when no sitemap can be discovered.
	FallbackBaseURL string `yaml:"fallback_base_url"`

	// Filter selects documentation pages from sitemap URLs.
	Filter PathFilter `yaml:"filter"`

	// FallbackPages is used when the sitemap cannot be listed.
	FallbackPages []string `yaml:"fallback_pages"`

	// FilenamePrefixes are stripped from page paths, checked in order.
	FilenamePrefixes []string `yaml:"filename_prefixes"`

	// FilenameMarker is the segment after which the filename starts when no
	// prefix matched.
	FilenameMarker string `yaml:"filename_marker"`

	Changelog ChangelogConfig `yaml:"changelog"`

	Headers map[string]string `yaml:"headers"`

	Timeout   time.Duration `yaml:"timeout"`
	PageDelay time.Duration `yaml:"page_delay"`

	Retry RetryPolicy `yaml:"retry"`
}

// ChangelogConfig describes the single changelog file mirrored alongside
// the documentation pages.
type ChangelogConfig struct {
	Filename string `yaml:"filename"`
	URL      string `yaml:"url"`
	RawURL   string `yaml:"raw_url"`
	Source   string `yaml:"source"`
}

// DefaultConfig returns the configuration used when no overrides are given.
func DefaultConfig() Config {
	return Config{
		SitemapURLs: []string{
			"https://docs.anthropic.com/sitemap.xml",
			"https://docs.anthropic.com/sitemap_index.xml",
			"https://anthropic.com/sitemap.xml",
		},
		FallbackBaseURL: "https://docs.anthropic.com",
		Filter: PathFilter{
			Include: []string{"/en/docs/claude-code/"},
			Exclude: []string{
				"/tool-use/",
				"/examples/",
				"/legacy/",
				"/api/",
				"/reference/",
			},
		},
		FallbackPages: []string{
			"/en/docs/claude-code/overview",
			"/en/docs/claude-code/setup",
			"/en/docs/claude-code/quickstart",
			"/en/docs/claude-code/memory",
			"/en/docs/claude-code/common-workflows",
			"/en/docs/claude-code/ide-integrations",
			"/en/docs/claude-code/mcp",
			"/en/docs/claude-code/github-actions",
			"/en/docs/claude-code/sdk",
			"/en/docs/claude-code/troubleshooting",
			"/en/docs/claude-code/security",
			"/en/docs/claude-code/settings",
			"/en/docs/claude-code/hooks",
			"/en/docs/claude-code/costs",
			"/en/docs/claude-code/monitoring-usage",
		},
		FilenamePrefixes: []string{
			"/en/docs/claude-code/",
			"/docs/claude-code/",
			"/claude-code/",
		},
		FilenameMarker: "claude-code/",
		Changelog: ChangelogConfig{
			Filename: "changelog.md",
			URL:      "https://github.com/anthropics/claude-code/blob/main/CHANGELOG.md",
			RawURL:   "https://raw.githubusercontent.com/anthropics/claude-code/main/CHANGELOG.md",
			Source:   "claude-code-repository",
		},
		Headers: map[string]string{
			"User-Agent":    "Claude-Code-Docs-Fetcher/3.0",
			"Cache-Control": "no-cache, no-store, must-revalidate",
			"Pragma":        "no-cache",
			"Expires":       "0",
		},
		Timeout:   30 * time.Second,
		PageDelay: 500 * time.Millisecond,
		Retry: RetryPolicy{
			MaxAttempts:       3,
			BaseDelay:         2 * time.Second,
			MaxDelay:          30 * time.Second,
			DefaultRetryAfter: 60 * time.Second,
			MaxRateLimitWaits: 5,
		},
	}
}

// Validate returns an error if the configuration cannot drive a run.
func (c *Config) Validate() error {
	if len(c.SitemapURLs) == 0 && len(c.FallbackPages) == 0 {
		return Errorf(EINVALID, "sitemap URLs or fallback pages required")
	}
	if c.FallbackBaseURL == "" {
		return Errorf(EINVALID, "fallback base URL required")
	}
	if c.Changelog.Filename == "" || c.Changelog.RawURL == "" {
		return Errorf(EINVALID, "changelog filename and raw URL required")
	}
	if c.Changelog.Filename == ManifestFilename {
		return Errorf(EINVALID, "changelog filename %q collides with the manifest", c.Changelog.Filename)
	}
	if c.Retry.MaxAttempts < 1 {
		return Errorf(EINVALID, "retry max attempts must be at least 1")
	}
	if c.Timeout <= 0 {
		return Errorf(EINVALID, "timeout must be positive")
	}
	return nil
}
