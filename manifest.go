package docmirror

import (
	"context"
	"time"
)

// TimestampLayout is the local, zone-less ISO-8601 layout used for every
// timestamp in the manifest.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// FormatTimestamp formats t with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ManifestDescription is written to every manifest.
const ManifestDescription = "Claude Code documentation manifest. Keys are filenames, append to base_url for full URL."

// FileRecord describes one mirrored file.
type FileRecord struct {
	OriginalURL    string `json:"original_url"`
	OriginalMDURL  string `json:"original_md_url,omitempty"`
	OriginalRawURL string `json:"original_raw_url,omitempty"`
	Hash           string `json:"hash"`
	LastUpdated    string `json:"last_updated"`
	Source         string `json:"source,omitempty"`
	Title          string `json:"title,omitempty"`
}

// FetchMetadata summarizes a single run.
type FetchMetadata struct {
	RunID                    string   `json:"run_id,omitempty"`
	LastFetchCompleted       string   `json:"last_fetch_completed"`
	FetchDurationSeconds     float64  `json:"fetch_duration_seconds"`
	TotalPagesDiscovered     int      `json:"total_pages_discovered"`
	PagesFetchedSuccessfully int      `json:"pages_fetched_successfully"`
	PagesFailed              int      `json:"pages_failed"`
	FailedPages              []string `json:"failed_pages"`
	SitemapURL               *string  `json:"sitemap_url"`
	BaseURL                  string   `json:"base_url"`
	TotalFiles               int      `json:"total_files"`
	FetchToolVersion         string   `json:"fetch_tool_version"`
}

// Manifest is the JSON snapshot written to the output directory after every
// run. It is replaced wholesale; the previous manifest only seeds change
// detection and cleanup.
type Manifest struct {
	Files            map[string]*FileRecord `json:"files"`
	FetchMetadata    *FetchMetadata         `json:"fetch_metadata,omitempty"`
	LastUpdated      string                 `json:"last_updated,omitempty"`
	BaseURL          string                 `json:"base_url,omitempty"`
	GitHubRepository string                 `json:"github_repository,omitempty"`
	GitHubRef        string                 `json:"github_ref,omitempty"`
	Description      string                 `json:"description,omitempty"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Files: make(map[string]*FileRecord)}
}

// Record returns the record stored for filename, or nil.
func (m *Manifest) Record(filename string) *FileRecord {
	if m == nil || m.Files == nil {
		return nil
	}
	return m.Files[filename]
}

// Filenames returns every tracked filename.
func (m *Manifest) Filenames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	return names
}

// SetRepository records where the mirrored files are published.
func (m *Manifest) SetRepository(repo, ref string) {
	m.GitHubRepository = repo
	m.GitHubRef = ref
	m.BaseURL = "https://raw.githubusercontent.com/" + repo + "/" + ref + "/docs/"
	m.Description = ManifestDescription
}

// ManifestStore persists the manifest.
type ManifestStore interface {
	// Load returns the stored manifest, or an empty one if none exists.
	Load(ctx context.Context) (*Manifest, error)

	// Save replaces the stored manifest.
	Save(ctx context.Context, m *Manifest) error
}

// FileStore persists mirrored files in the output directory.
type FileStore interface {
	// Write replaces the named file with content.
	Write(ctx context.Context, filename, content string) error

	// Remove deletes the named file. Missing files are not an error.
	// Returns true if a file was removed.
	Remove(ctx context.Context, filename string) (bool, error)
}

// TitleExtractor finds a human-readable title in markdown content.
type TitleExtractor interface {
	// Title returns the text of the first heading, or "" if there is none.
	Title(content string) string
}

// Page outcomes reported to Metrics.
const (
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Metrics records run statistics.
type Metrics interface {
	// PageProcessed counts a page or changelog by outcome.
	PageProcessed(outcome string)

	// Retried counts a retry after a transient failure.
	Retried()

	// RateLimited counts a wait caused by HTTP 429.
	RateLimited(wait time.Duration)

	// FallbackUsed counts a use of static configuration at the given stage
	// ("discovery" or "listing").
	FallbackUsed(stage string)

	// RunCompleted records the run's duration and file count.
	RunCompleted(duration time.Duration, files int)
}
