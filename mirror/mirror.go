// Package mirror provides documentation mirroring orchestration.
// It coordinates sitemap discovery, page listing, fetching with retry,
// change detection, cleanup and manifest bookkeeping for a single run.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/fwojciec/docmirror"
	"github.com/google/uuid"
)

// FailedChangelog is recorded in failed_pages when the changelog fails.
const FailedChangelog = "changelog"

// Mirror runs one incremental mirror of the configured documentation.
// Runs are strictly sequential; a Mirror must not be used concurrently.
type Mirror struct {
	Config    docmirror.Config
	Sitemaps  docmirror.SitemapService
	Fetcher   docmirror.Fetcher
	Files     docmirror.FileStore
	Manifests docmirror.ManifestStore

	// Titles is optional. When set, records carry the document title.
	Titles docmirror.TitleExtractor

	// Metrics is optional.
	Metrics docmirror.Metrics

	Logger *slog.Logger

	// Repository and Ref identify where the mirrored files are published.
	// They must already be validated.
	Repository string
	Ref        string

	// Test hooks. Zero values use the real implementations.
	Now      func() time.Time
	Sleep    SleepFunc
	Jitter   func() float64
	NewRunID func() string
}

// Result holds the outcome of a run.
type Result struct {
	RunID       string
	SitemapURL  string
	BaseURL     string
	Pages       []string
	Succeeded   int
	Failed      int
	FailedPages []string
	Updated     int
	Unchanged   int
	Removed     []string
	Manifest    *docmirror.Manifest
}

// run carries the state of a single Run call.
type run struct {
	*Mirror
	logger  *slog.Logger
	metrics docmirror.Metrics
	retrier *Retrier
	pacer   *Pacer
	prev    *docmirror.Manifest
	next    *docmirror.Manifest
	fetched map[string]struct{}
	result  *Result
}

// Run discovers pages, mirrors every page and the changelog, removes files
// that disappeared, and writes the new manifest.
//
// Per-page failures never abort the run. Run returns docmirror.ErrNoPages
// if no page could be listed and docmirror.ErrNoSuccess if nothing was
// fetched; the manifest is still written in the latter case.
func (m *Mirror) Run(ctx context.Context) (*Result, error) {
	r := m.newRun()
	start := r.now()
	r.logger.Info("starting documentation fetch", "repository", m.Repository)

	r.prev = r.loadManifest(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}
	r.result.Pages = pages
	if len(pages) == 0 {
		r.logger.Error("no documentation pages discovered")
		return r.result, docmirror.ErrNoPages
	}

	for i, page := range pages {
		r.logger.Info("processing page", "n", i+1, "total", len(pages), "path", page)
		if err := r.mirrorPage(ctx, page); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Error("failed to process page", "path", page, "err", err)
			r.fail(page)
		}
	}

	r.logger.Info("fetching changelog", "url", m.Config.Changelog.RawURL)
	if err := r.mirrorChangelog(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Error("failed to fetch changelog", "err", err)
		r.fail(FailedChangelog)
	}

	r.cleanup(ctx)

	duration := r.now().Sub(start)
	if err := r.saveManifest(ctx, duration); err != nil {
		return r.result, fmt.Errorf("saving manifest: %w", err)
	}
	r.metrics.RunCompleted(duration, len(r.fetched))

	r.logger.Info("fetch completed",
		"duration", duration,
		"discovered", len(pages),
		"succeeded", r.result.Succeeded,
		"failed", r.result.Failed,
		"updated", r.result.Updated,
		"unchanged", r.result.Unchanged,
		"removed", len(r.result.Removed),
	)
	if len(r.result.FailedPages) > 0 {
		r.logger.Warn("failed pages will be retried next run", "pages", r.result.FailedPages)
	}
	if r.result.Succeeded == 0 {
		r.logger.Error("no pages were fetched successfully")
		return r.result, docmirror.ErrNoSuccess
	}
	return r.result, nil
}

func (m *Mirror) newRun() *run {
	newRunID := m.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	runID := newRunID()

	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("run_id", runID)

	metrics := m.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &run{
		Mirror:  m,
		logger:  logger,
		metrics: metrics,
		retrier: &Retrier{
			Policy:  m.Config.Retry,
			Sleep:   m.Sleep,
			Jitter:  m.Jitter,
			Logger:  logger,
			Metrics: metrics,
		},
		pacer:   NewPacer(m.Config.PageDelay),
		next:    docmirror.NewManifest(),
		fetched: make(map[string]struct{}),
		result: &Result{
			RunID:       runID,
			FailedPages: []string{},
		},
	}
}

func (r *run) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// loadManifest returns the previous manifest, or an empty one if it cannot
// be read.
func (r *run) loadManifest(ctx context.Context) *docmirror.Manifest {
	prev, err := r.Manifests.Load(ctx)
	if err != nil {
		r.logger.Warn("failed to load manifest", "err", err)
		return docmirror.NewManifest()
	}
	return prev
}

// discover locates the sitemap and lists pages, falling back to static
// configuration when either step fails.
func (r *run) discover(ctx context.Context) ([]string, error) {
	lister := &PageLister{
		Sitemaps: r.Sitemaps,
		Filter:   r.Config.Filter,
		Fallback: r.Config.FallbackPages,
		Logger:   r.logger,
		Metrics:  r.metrics,
	}

	sm, err := r.Sitemaps.Locate(ctx, r.Config.SitemapURLs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Error("failed to discover sitemap", "err", err)
		r.logger.Warn("using fallback configuration", "base_url", r.Config.FallbackBaseURL, "pages", len(r.Config.FallbackPages))
		r.metrics.FallbackUsed("discovery")
		r.result.BaseURL = r.Config.FallbackBaseURL
		return slices.Clone(r.Config.FallbackPages), nil
	}
	r.logger.Info("found sitemap", "sitemap", sm.URL, "base_url", sm.BaseURL)
	r.result.SitemapURL = sm.URL
	r.result.BaseURL = sm.BaseURL

	pages, _ := lister.List(ctx, sm.URL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// fetch runs a paced, retried GET.
func (r *run) fetch(ctx context.Context, url string) (string, error) {
	return r.retrier.Fetch(ctx, url, func(ctx context.Context, url string) (string, error) {
		if err := r.pacer.Wait(ctx, url); err != nil {
			return "", err
		}
		return r.Fetcher.Fetch(ctx, url)
	})
}

func (r *run) mirrorPage(ctx context.Context, page string) error {
	base := r.result.BaseURL
	mdURL := base + page + ".md"
	filename := docmirror.Filename(page, r.Config.FilenamePrefixes, r.Config.FilenameMarker)
	r.logger.Info("fetching", "url", mdURL, "file", filename)

	content, err := r.fetch(ctx, mdURL)
	if err != nil {
		return err
	}
	if err := docmirror.ValidateMarkdown(content); err != nil {
		r.logger.Error("content validation failed", "file", filename, "err", err)
		return err
	}
	if !docmirror.HasDocKeywords(content) {
		r.logger.Warn("content doesn't contain expected documentation patterns", "file", filename)
	}
	r.logger.Info("fetched and validated", "file", filename, "bytes", len(content))

	return r.persist(ctx, filename, content, docmirror.FileRecord{
		OriginalURL:   base + page,
		OriginalMDURL: mdURL,
	})
}

func (r *run) mirrorChangelog(ctx context.Context) error {
	cl := r.Config.Changelog

	body, err := r.fetch(ctx, cl.RawURL)
	if err != nil {
		return err
	}
	if err := docmirror.ValidateChangelog(body); err != nil {
		r.logger.Error("changelog validation failed", "err", err)
		return err
	}
	content := docmirror.ChangelogHeader(cl.URL) + body
	r.logger.Info("fetched changelog", "bytes", len(content))

	return r.persist(ctx, cl.Filename, content, docmirror.FileRecord{
		OriginalURL:    cl.URL,
		OriginalRawURL: cl.RawURL,
		Source:         cl.Source,
	})
}

// persist writes content only when its hash differs from the previous
// manifest, and records the file in the new manifest either way.
func (r *run) persist(ctx context.Context, filename, content string, rec docmirror.FileRecord) error {
	hash := docmirror.ContentHash(content)
	old := r.prev.Record(filename)

	if old == nil || old.Hash != hash {
		if err := r.Files.Write(ctx, filename, content); err != nil {
			r.logger.Error("failed to save", "file", filename, "err", err)
			return fmt.Errorf("saving %s: %w", filename, err)
		}
		rec.LastUpdated = docmirror.FormatTimestamp(r.now())
		r.result.Updated++
		r.metrics.PageProcessed(docmirror.OutcomeUpdated)
		r.logger.Info("updated", "file", filename)
	} else {
		rec.LastUpdated = old.LastUpdated
		if rec.LastUpdated == "" {
			rec.LastUpdated = docmirror.FormatTimestamp(r.now())
		}
		r.result.Unchanged++
		r.metrics.PageProcessed(docmirror.OutcomeUnchanged)
		r.logger.Info("unchanged", "file", filename)
	}
	rec.Hash = hash
	if r.Titles != nil {
		rec.Title = r.Titles.Title(content)
	}

	r.next.Files[filename] = &rec
	r.fetched[filename] = struct{}{}
	r.result.Succeeded++
	return nil
}

func (r *run) fail(page string) {
	r.result.Failed++
	r.result.FailedPages = append(r.result.FailedPages, page)
	r.metrics.PageProcessed(docmirror.OutcomeFailed)
}

// cleanup removes files tracked by the previous manifest that were not
// fetched in this run. Untracked files and the manifest itself are kept.
func (r *run) cleanup(ctx context.Context) {
	names := r.prev.Filenames()
	slices.Sort(names)
	for _, name := range names {
		if name == docmirror.ManifestFilename {
			continue
		}
		if _, ok := r.fetched[name]; ok {
			continue
		}
		removed, err := r.Files.Remove(ctx, name)
		if err != nil {
			r.logger.Error("failed to remove obsolete file", "file", name, "err", err)
			continue
		}
		if removed {
			r.logger.Info("removed obsolete file", "file", name)
			r.result.Removed = append(r.result.Removed, name)
		}
	}
}

func (r *run) saveManifest(ctx context.Context, duration time.Duration) error {
	var sitemapURL *string
	if r.result.SitemapURL != "" {
		s := r.result.SitemapURL
		sitemapURL = &s
	}

	finished := docmirror.FormatTimestamp(r.now())
	r.next.FetchMetadata = &docmirror.FetchMetadata{
		RunID:                    r.result.RunID,
		LastFetchCompleted:       finished,
		FetchDurationSeconds:     duration.Seconds(),
		TotalPagesDiscovered:     len(r.result.Pages),
		PagesFetchedSuccessfully: r.result.Succeeded,
		PagesFailed:              r.result.Failed,
		FailedPages:              r.result.FailedPages,
		SitemapURL:               sitemapURL,
		BaseURL:                  r.result.BaseURL,
		TotalFiles:               len(r.fetched),
		FetchToolVersion:         docmirror.ToolVersion,
	}
	r.next.LastUpdated = finished
	r.next.SetRepository(r.Repository, r.Ref)
	r.result.Manifest = r.next

	return r.Manifests.Save(ctx, r.next)
}
