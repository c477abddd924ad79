package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docmirror"
	"github.com/fwojciec/docmirror/fs"
	"github.com/fwojciec/docmirror/goldmark"
	mirrorhttp "github.com/fwojciec/docmirror/http"
	"github.com/fwojciec/docmirror/mirror"
	mirrorprom "github.com/fwojciec/docmirror/prometheus"
	mirrorslog "github.com/fwojciec/docmirror/slog"
	mirroryaml "github.com/fwojciec/docmirror/yaml"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Getenv looks up process environment variables.
	Getenv func(string) string
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		Getenv: os.Getenv,
	}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docmirror"),
		kong.Description("Mirror Claude Code documentation into a local directory, rewriting only changed files"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	// Handle help flags
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h" || args[0] == "help") {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	if _, err := parser.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	cfg := docmirror.DefaultConfig()
	if cli.Config != "" {
		if cfg, err = mirroryaml.LoadConfig(cli.Config, cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	env := m.readEnvFile(cli.EnvFile, logger)
	repo := m.resolve(cli.Repository, "GITHUB_REPOSITORY", env, docmirror.DefaultRepository)
	if !docmirror.ValidRepository(repo) {
		logger.Warn("invalid repository format, using default", "repository", repo, "default", docmirror.DefaultRepository)
		repo = docmirror.DefaultRepository
	}
	ref := m.resolve(cli.Ref, "GITHUB_REF_NAME", env, docmirror.DefaultRef)
	if !docmirror.ValidRef(ref) {
		logger.Warn("invalid ref format, using default", "ref", ref, "default", docmirror.DefaultRef)
		ref = docmirror.DefaultRef
	}

	// Wire dependencies
	httpFetcher := mirrorhttp.NewFetcher(
		mirrorhttp.WithTimeout(cfg.Timeout),
		mirrorhttp.WithHeaders(cfg.Headers),
		mirrorhttp.WithDefaultRetryAfter(cfg.Retry.DefaultRetryAfter),
	)
	defer httpFetcher.Close()

	var fetcher docmirror.Fetcher = httpFetcher
	var sitemaps docmirror.SitemapService
	if cli.Verbose {
		fetcher = mirrorslog.NewLoggingFetcher(fetcher, logger)
		sitemaps = mirrorslog.NewLoggingSitemapService(mirrorhttp.NewSitemapService(fetcher), logger)
	} else {
		sitemaps = mirrorhttp.NewSitemapService(fetcher)
	}

	metrics := mirrorprom.NewMetrics(nil)

	mr := &mirror.Mirror{
		Config:     cfg,
		Sitemaps:   sitemaps,
		Fetcher:    fetcher,
		Files:      fs.NewFileStore(cli.OutputDir),
		Manifests:  fs.NewManifestStore(cli.OutputDir),
		Titles:     goldmark.NewTitleExtractor(),
		Metrics:    metrics,
		Logger:     logger,
		Repository: repo,
		Ref:        ref,
	}

	result, runErr := mr.Run(ctx)

	if cli.MetricsFile != "" {
		if err := metrics.WriteTextfile(cli.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cli.MetricsFile, "err", err)
		}
	}
	if result != nil && result.Manifest != nil {
		printSummary(stdout, result)
	}
	return runErr
}

// readEnvFile returns the variables in path. A missing file yields nil.
func (m *Main) readEnvFile(path string, logger *slog.Logger) map[string]string {
	if path == "" {
		return nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		logger.Warn("failed to read env file", "path", path, "err", err)
		return nil
	}
	return env
}

// resolve picks the flag value, then the process environment, then the env
// file, then def.
func (m *Main) resolve(flag, key string, env map[string]string, def string) string {
	if flag != "" {
		return flag
	}
	if v := m.Getenv(key); v != "" {
		return v
	}
	if v := env[key]; v != "" {
		return v
	}
	return def
}

func printSummary(w io.Writer, r *mirror.Result) {
	fmt.Fprintf(w, "Fetched %d/%d files: %d updated, %d unchanged, %d removed\n",
		r.Succeeded, r.Succeeded+r.Failed, r.Updated, r.Unchanged, len(r.Removed))
	for _, page := range r.FailedPages {
		fmt.Fprintf(w, "  failed: %s\n", page)
	}
}
