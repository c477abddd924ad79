package mirror_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/docmirror"
	"github.com/fwojciec/docmirror/fs"
	mirrorhttp "github.com/fwojciec/docmirror/http"
	"github.com/fwojciec/docmirror/mirror"
	"github.com/fwojciec/docmirror/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://docs.example.com"

var (
	firstRun  = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	secondRun = time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
)

var changelogBody = "## 1.0.1\n\n" + strings.Repeat("- Fixed a rendering bug in the terminal output\n", 4)

func markdownPage(title string) string {
	return "# " + title + "\n\n" +
		"Installation and usage notes for Claude Code.\n\n" +
		"## Usage\n\n" +
		"- first step\n" +
		"- second step\n"
}

func testConfig() docmirror.Config {
	cfg := docmirror.DefaultConfig()
	cfg.SitemapURLs = []string{testBase + "/sitemap.xml"}
	cfg.FallbackBaseURL = testBase
	cfg.FallbackPages = []string{
		"/en/docs/claude-code/overview",
		"/en/docs/claude-code/setup",
	}
	cfg.Changelog.RawURL = testBase + "/CHANGELOG.md"
	cfg.PageDelay = 0
	return cfg
}

// site serves fixed bodies by URL and answers 404 for everything else.
type site map[string]string

func (s site) fetcher(calls *[]string) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (string, error) {
			if calls != nil {
				*calls = append(*calls, url)
			}
			body, ok := s[url]
			if !ok {
				return "", &docmirror.StatusError{URL: url, StatusCode: http.StatusNotFound}
			}
			return body, nil
		},
		CloseFn: func() error { return nil },
	}
}

func defaultSite() site {
	return site{
		testBase + "/en/docs/claude-code/setup.md":          markdownPage("Setup"),
		testBase + "/en/docs/claude-code/hooks.md":          markdownPage("Hooks"),
		testBase + "/en/docs/claude-code/advanced/setup.md": markdownPage("Advanced setup"),
		testBase + "/en/docs/claude-code/overview.md":       markdownPage("Overview"),
		testBase + "/CHANGELOG.md":                          changelogBody,
	}
}

func sitemapOf(urls ...string) *mock.SitemapService {
	return &mock.SitemapService{
		LocateFn: func(_ context.Context, candidates []string) (*docmirror.Sitemap, error) {
			return &docmirror.Sitemap{URL: candidates[0], BaseURL: testBase}, nil
		},
		URLsFn: func(_ context.Context, _ string) ([]string, error) {
			return urls, nil
		},
	}
}

func defaultSitemap() *mock.SitemapService {
	return sitemapOf(
		testBase+"/en/docs/claude-code/setup",
		testBase+"/en/docs/claude-code/hooks",
		testBase+"/en/docs/claude-code/advanced/setup",
		testBase+"/en/docs/claude-code/examples/basic",
	)
}

func newMirror(dir string, sitemaps docmirror.SitemapService, fetcher docmirror.Fetcher, now time.Time) *mirror.Mirror {
	return &mirror.Mirror{
		Config:     testConfig(),
		Sitemaps:   sitemaps,
		Fetcher:    fetcher,
		Files:      fs.NewFileStore(dir),
		Manifests:  fs.NewManifestStore(dir),
		Repository: "owner/docs",
		Ref:        "main",
		Now:        func() time.Time { return now },
		Sleep:      func(context.Context, time.Duration) error { return nil },
		Jitter:     func() float64 { return 1 },
		NewRunID:   func() string { return "run-1" },
	}
}

// countingFiles wraps a real FileStore and records every write.
func countingFiles(dir string, writes *[]string) *mock.FileStore {
	files := fs.NewFileStore(dir)
	return &mock.FileStore{
		WriteFn: func(ctx context.Context, filename, content string) error {
			*writes = append(*writes, filename)
			return files.Write(ctx, filename, content)
		},
		RemoveFn: files.Remove,
	}
}

func loadManifest(t *testing.T, dir string) *docmirror.Manifest {
	t.Helper()
	m, err := fs.NewManifestStore(dir).Load(context.Background())
	require.NoError(t, err)
	return m
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func count(calls []string, url string) int {
	n := 0
	for _, c := range calls {
		if c == url {
			n++
		}
	}
	return n
}

func TestMirror_Run(t *testing.T) {
	t.Parallel()

	t.Run("writes pages changelog and manifest", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		m := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun)

		result, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "run-1", result.RunID)
		assert.Equal(t, []string{
			"/en/docs/claude-code/advanced/setup",
			"/en/docs/claude-code/hooks",
			"/en/docs/claude-code/setup",
		}, result.Pages)
		assert.Equal(t, 4, result.Succeeded)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, 4, result.Updated)
		assert.Empty(t, result.FailedPages)

		assert.Equal(t, markdownPage("Setup"), readFile(t, dir, "setup.md"))
		assert.Equal(t, markdownPage("Advanced setup"), readFile(t, dir, "advanced__setup.md"))
		changelog := readFile(t, dir, "changelog.md")
		assert.True(t, strings.HasPrefix(changelog, "# Claude Code Changelog\n"))
		assert.True(t, strings.HasSuffix(changelog, changelogBody))

		manifest := loadManifest(t, dir)
		require.Len(t, manifest.Files, 4)

		setup := manifest.Files["setup.md"]
		require.NotNil(t, setup)
		assert.Equal(t, testBase+"/en/docs/claude-code/setup", setup.OriginalURL)
		assert.Equal(t, testBase+"/en/docs/claude-code/setup.md", setup.OriginalMDURL)
		assert.Equal(t, docmirror.ContentHash(markdownPage("Setup")), setup.Hash)
		assert.Equal(t, "2025-03-01T10:00:00.000000", setup.LastUpdated)

		cl := manifest.Files["changelog.md"]
		require.NotNil(t, cl)
		assert.Equal(t, docmirror.ContentHash(changelog), cl.Hash)
		assert.Equal(t, testBase+"/CHANGELOG.md", cl.OriginalRawURL)
		assert.Equal(t, "https://github.com/anthropics/claude-code/blob/main/CHANGELOG.md", cl.OriginalURL)
		assert.Equal(t, "claude-code-repository", cl.Source)

		meta := manifest.FetchMetadata
		require.NotNil(t, meta)
		assert.Equal(t, "run-1", meta.RunID)
		assert.Equal(t, "2025-03-01T10:00:00.000000", meta.LastFetchCompleted)
		assert.Equal(t, 3, meta.TotalPagesDiscovered)
		assert.Equal(t, 4, meta.PagesFetchedSuccessfully)
		assert.Equal(t, 0, meta.PagesFailed)
		assert.Empty(t, meta.FailedPages)
		require.NotNil(t, meta.SitemapURL)
		assert.Equal(t, testBase+"/sitemap.xml", *meta.SitemapURL)
		assert.Equal(t, testBase, meta.BaseURL)
		assert.Equal(t, 4, meta.TotalFiles)
		assert.Equal(t, docmirror.ToolVersion, meta.FetchToolVersion)

		assert.Equal(t, "https://raw.githubusercontent.com/owner/docs/main/docs/", manifest.BaseURL)
		assert.Equal(t, "owner/docs", manifest.GitHubRepository)
		assert.Equal(t, "main", manifest.GitHubRef)
		assert.Equal(t, docmirror.ManifestDescription, manifest.Description)
	})

	t.Run("leaves unchanged files and timestamps alone on rerun", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		_, err := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun).Run(context.Background())
		require.NoError(t, err)
		before := loadManifest(t, dir)

		var writes []string
		m := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), secondRun)
		m.Files = countingFiles(dir, &writes)

		result, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Empty(t, writes)
		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 4, result.Unchanged)
		assert.Empty(t, result.Removed)

		after := loadManifest(t, dir)
		for name, rec := range before.Files {
			require.Contains(t, after.Files, name)
			assert.Equal(t, rec.Hash, after.Files[name].Hash, name)
			assert.Equal(t, rec.LastUpdated, after.Files[name].LastUpdated, name)
		}
		assert.Equal(t, "2025-03-02T10:00:00.000000", after.FetchMetadata.LastFetchCompleted)
	})

	t.Run("rewrites only changed pages", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		_, err := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun).Run(context.Background())
		require.NoError(t, err)

		changed := defaultSite()
		changed[testBase+"/en/docs/claude-code/hooks.md"] = markdownPage("Hooks reference")

		var writes []string
		m := newMirror(dir, defaultSitemap(), changed.fetcher(nil), secondRun)
		m.Files = countingFiles(dir, &writes)

		result, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"hooks.md"}, writes)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 3, result.Unchanged)

		manifest := loadManifest(t, dir)
		assert.Equal(t, "2025-03-02T10:00:00.000000", manifest.Files["hooks.md"].LastUpdated)
		assert.Equal(t, "2025-03-01T10:00:00.000000", manifest.Files["setup.md"].LastUpdated)
		assert.Equal(t, markdownPage("Hooks reference"), readFile(t, dir, "hooks.md"))
	})

	t.Run("removes tracked files that disappeared and keeps untracked ones", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		ctx := context.Background()
		files := fs.NewFileStore(dir)
		require.NoError(t, files.Write(ctx, "old.md", "# Old\n"))
		require.NoError(t, files.Write(ctx, "notes.md", "# Notes\n"))
		seed := docmirror.NewManifest()
		seed.Files["old.md"] = &docmirror.FileRecord{Hash: docmirror.ContentHash("# Old\n")}
		require.NoError(t, fs.NewManifestStore(dir).Save(ctx, seed))

		result, err := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun).Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{"old.md"}, result.Removed)
		assert.NoFileExists(t, filepath.Join(dir, "old.md"))
		assert.FileExists(t, filepath.Join(dir, "notes.md"))
		assert.FileExists(t, filepath.Join(dir, docmirror.ManifestFilename))

		manifest := loadManifest(t, dir)
		assert.NotContains(t, manifest.Files, "old.md")
		assert.NotContains(t, manifest.Files, "notes.md")
	})

	t.Run("never removes the manifest even when it is tracked", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		files := fs.NewFileStore(dir)
		var removed []string
		var saved *docmirror.Manifest
		m := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun)
		m.Files = &mock.FileStore{
			WriteFn: files.Write,
			RemoveFn: func(_ context.Context, filename string) (bool, error) {
				removed = append(removed, filename)
				if filename == docmirror.ManifestFilename {
					return false, errors.New("manifest must not be removed")
				}
				return true, nil
			},
		}
		m.Manifests = &mock.ManifestStore{
			LoadFn: func(_ context.Context) (*docmirror.Manifest, error) {
				prev := docmirror.NewManifest()
				prev.Files[docmirror.ManifestFilename] = &docmirror.FileRecord{Hash: "stale"}
				prev.Files["old.md"] = &docmirror.FileRecord{Hash: "stale"}
				return prev, nil
			},
			SaveFn: func(_ context.Context, manifest *docmirror.Manifest) error {
				saved = manifest
				return nil
			},
		}

		result, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"old.md"}, removed)
		assert.Equal(t, []string{"old.md"}, result.Removed)
		require.NotNil(t, saved)
		assert.NotContains(t, saved.Files, docmirror.ManifestFilename)
	})

	t.Run("records failed pages and drops their stale files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		ctx := context.Background()
		_, err := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun).Run(ctx)
		require.NoError(t, err)

		broken := defaultSite()
		hooksURL := testBase + "/en/docs/claude-code/hooks.md"
		delete(broken, hooksURL)
		var calls []string

		result, err := newMirror(dir, defaultSitemap(), broken.fetcher(&calls), secondRun).Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, []string{"/en/docs/claude-code/hooks"}, result.FailedPages)
		assert.Equal(t, 3, count(calls, hooksURL))
		assert.Equal(t, []string{"hooks.md"}, result.Removed)
		assert.NoFileExists(t, filepath.Join(dir, "hooks.md"))

		meta := loadManifest(t, dir).FetchMetadata
		assert.Equal(t, 1, meta.PagesFailed)
		assert.Equal(t, []string{"/en/docs/claude-code/hooks"}, meta.FailedPages)
		assert.Equal(t, 3, meta.TotalFiles)
	})

	t.Run("does not retry pages that fail validation", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s := defaultSite()
		setupURL := testBase + "/en/docs/claude-code/setup.md"
		s[setupURL] = "<!DOCTYPE html><html><body>Sign in</body></html>"
		var calls []string

		result, err := newMirror(dir, defaultSitemap(), s.fetcher(&calls), firstRun).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count(calls, setupURL))
		assert.Equal(t, []string{"/en/docs/claude-code/setup"}, result.FailedPages)
		assert.NoFileExists(t, filepath.Join(dir, "setup.md"))
	})

	t.Run("falls back to static configuration when no sitemap is found", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		var stages []string
		sitemaps := &mock.SitemapService{
			LocateFn: func(_ context.Context, _ []string) (*docmirror.Sitemap, error) {
				return nil, docmirror.Errorf(docmirror.ENOTFOUND, "could not find a valid sitemap")
			},
			URLsFn: func(_ context.Context, _ string) ([]string, error) {
				t.Fatal("URLs must not be called without a sitemap")
				return nil, nil
			},
		}
		m := newMirror(dir, sitemaps, defaultSite().fetcher(nil), firstRun)
		m.Metrics = &mock.Metrics{
			FallbackUsedFn: func(stage string) { stages = append(stages, stage) },
		}

		result, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"discovery"}, stages)
		assert.Equal(t, testBase, result.BaseURL)
		assert.Equal(t, []string{"/en/docs/claude-code/overview", "/en/docs/claude-code/setup"}, result.Pages)
		assert.Equal(t, 3, result.Succeeded)

		manifest := loadManifest(t, dir)
		assert.Nil(t, manifest.FetchMetadata.SitemapURL)
		assert.Equal(t, testBase, manifest.FetchMetadata.BaseURL)
		assert.Contains(t, readFile(t, dir, docmirror.ManifestFilename), `"sitemap_url": null`)
	})

	t.Run("falls back to static pages when the sitemap cannot be listed", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		var stages []string
		sitemaps := defaultSitemap()
		sitemaps.URLsFn = func(_ context.Context, _ string) ([]string, error) {
			return nil, errors.New("parsing sitemap XML: unexpected EOF")
		}
		m := newMirror(dir, sitemaps, defaultSite().fetcher(nil), firstRun)
		m.Metrics = &mock.Metrics{
			FallbackUsedFn: func(stage string) { stages = append(stages, stage) },
		}

		result, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"listing"}, stages)
		assert.Equal(t, []string{"/en/docs/claude-code/overview", "/en/docs/claude-code/setup"}, result.Pages)
		meta := loadManifest(t, dir).FetchMetadata
		require.NotNil(t, meta.SitemapURL)
		assert.Equal(t, testBase+"/sitemap.xml", *meta.SitemapURL)
	})

	t.Run("returns ErrNoPages without writing a manifest", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		var calls []string
		sitemaps := sitemapOf(testBase+"/blog/announcement", testBase+"/en/docs/claude-code/api/messages")

		result, err := newMirror(dir, sitemaps, defaultSite().fetcher(&calls), firstRun).Run(context.Background())

		require.ErrorIs(t, err, docmirror.ErrNoPages)
		require.NotNil(t, result)
		assert.Empty(t, result.Pages)
		assert.Empty(t, calls)
		assert.NoFileExists(t, filepath.Join(dir, docmirror.ManifestFilename))
	})

	t.Run("returns ErrNoSuccess but still writes the manifest", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()

		result, err := newMirror(dir, defaultSitemap(), site{}.fetcher(nil), firstRun).Run(context.Background())

		require.ErrorIs(t, err, docmirror.ErrNoSuccess)
		assert.Equal(t, 0, result.Succeeded)
		assert.Equal(t, 4, result.Failed)

		meta := loadManifest(t, dir).FetchMetadata
		require.NotNil(t, meta)
		assert.Equal(t, 0, meta.PagesFetchedSuccessfully)
		assert.Equal(t, 4, meta.PagesFailed)
		assert.Contains(t, meta.FailedPages, mirror.FailedChangelog)
		assert.Equal(t, 0, meta.TotalFiles)
	})

	t.Run("rejects a changelog that is too short", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s := defaultSite()
		s[testBase+"/CHANGELOG.md"] = "## 1.0.0\n\n- Initial release\n"

		result, err := newMirror(dir, defaultSitemap(), s.fetcher(nil), firstRun).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{mirror.FailedChangelog}, result.FailedPages)
		assert.NoFileExists(t, filepath.Join(dir, "changelog.md"))
	})

	t.Run("treats an unreadable manifest as empty", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, docmirror.ManifestFilename), []byte("{not json"), 0644))

		result, err := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun).Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 4, result.Updated)
		assert.Len(t, loadManifest(t, dir).Files, 4)
	})

	t.Run("records titles and reports metrics", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		outcomes := map[string]int{}
		var completedFiles int
		m := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun)
		m.Titles = &mock.TitleExtractor{
			TitleFn: func(content string) string {
				line, _, _ := strings.Cut(content, "\n")
				return strings.TrimPrefix(line, "# ")
			},
		}
		m.Metrics = &mock.Metrics{
			PageProcessedFn: func(outcome string) { outcomes[outcome]++ },
			RunCompletedFn:  func(_ time.Duration, files int) { completedFiles = files },
		}

		_, err := m.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, map[string]int{docmirror.OutcomeUpdated: 4}, outcomes)
		assert.Equal(t, 4, completedFiles)

		manifest := loadManifest(t, dir)
		assert.Equal(t, "Advanced setup", manifest.Files["advanced__setup.md"].Title)
		assert.Equal(t, "Claude Code Changelog", manifest.Files["changelog.md"].Title)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newMirror(dir, defaultSitemap(), defaultSite().fetcher(nil), firstRun).Run(ctx)

		require.ErrorIs(t, err, context.Canceled)
		assert.NoFileExists(t, filepath.Join(dir, docmirror.ManifestFilename))
	})
}

func TestMirror_Run_OverHTTP(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sitemap.xml":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>` + srv.URL + `/en/docs/claude-code/overview</loc></url>
  <url><loc>` + srv.URL + `/en/docs/claude-code/setup</loc></url>
  <url><loc>` + srv.URL + `/en/docs/claude-code/hooks</loc></url>
  <url><loc>` + srv.URL + `/en/docs/claude-code/mcp</loc></url>
  <url><loc>` + srv.URL + `/en/docs/claude-code/examples/basic</loc></url>
</urlset>`))
		case r.URL.Path == "/CHANGELOG.md":
			_, _ = w.Write([]byte(changelogBody))
		case strings.HasSuffix(r.URL.Path, ".md"):
			_, _ = w.Write([]byte(markdownPage(strings.TrimSuffix(filepath.Base(r.URL.Path), ".md"))))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	fetcher := mirrorhttp.NewFetcher()
	defer fetcher.Close()

	m := newMirror(dir, mirrorhttp.NewSitemapService(fetcher), fetcher, firstRun)
	m.Config.SitemapURLs = []string{srv.URL + "/sitemap.xml"}
	m.Config.Changelog.RawURL = srv.URL + "/CHANGELOG.md"

	result, err := m.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, srv.URL, result.BaseURL)
	assert.Len(t, result.Pages, 4)
	assert.Equal(t, 5, result.Succeeded)
	for _, name := range []string{"overview.md", "setup.md", "hooks.md", "mcp.md", "changelog.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "examples__basic.md"))

	raw := readFile(t, dir, docmirror.ManifestFilename)
	assert.Contains(t, raw, `"total_pages_discovered": 4`)
	assert.Equal(t, 4, loadManifest(t, dir).FetchMetadata.TotalPagesDiscovered)
}
