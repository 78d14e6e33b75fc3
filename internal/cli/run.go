package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/imglocal/internal/assets"
	"github.com/dgallion1/imglocal/internal/config"
	"github.com/dgallion1/imglocal/internal/fetch"
	"github.com/dgallion1/imglocal/internal/localize"
	"github.com/dgallion1/imglocal/internal/logging"
	"github.com/dgallion1/imglocal/internal/markdown"
	"github.com/dgallion1/imglocal/internal/metrics"
	"github.com/dgallion1/imglocal/internal/vcs"
)

// App wires configuration to the localizer. Zero fields fall back to the
// process defaults.
type App struct {
	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient *http.Client
	Runner     vcs.Runner
}

// Run parses args, processes the document and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := &App{Stdout: stdout, Stderr: stderr}
	return app.Run(ctx, args)
}

func (a *App) Run(ctx context.Context, args []string) int {
	stdout, stderr := a.Stdout, a.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		fmt.Fprint(stdout, config.Usage())
		return ExitLocalized
	}
	if err != nil {
		fmt.Fprintf(stderr, "imglocal: %v\n\n%s", err, config.Usage())
		return ExitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "imglocal: invalid configuration: %v\n", err)
		return ExitFailure
	}

	log := logging.New(stderr, cfg.LogLevel)
	report, err := a.Execute(ctx, cfg, log)
	changed := report != nil && report.Changed()
	if err != nil {
		log.Error("run failed", "document", cfg.Document, "error", err)
	}
	if report != nil {
		counts := report.Counts()
		fmt.Fprintf(stdout, "%s: %d localized (%d downloaded), %d fetch failed, %d write failed\n",
			cfg.Document,
			counts[localize.StatusLocalized],
			report.Downloaded(),
			counts[localize.StatusFetchFailed],
			counts[localize.StatusWriteFailed],
		)
	}
	return ExitCode(err, changed)
}

// Execute performs one run for cfg. The report is nil when the run stopped
// before localization.
func (a *App) Execute(ctx context.Context, cfg config.Config, log *slog.Logger) (*localize.Report, error) {
	doc := cfg.Document
	info, err := os.Stat(doc)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document %s is a directory", doc)
	}

	data, err := os.ReadFile(doc)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	docDir := filepath.Dir(doc)
	imageDir := filepath.Join(docDir, cfg.ImagesDir)
	log = log.With("document", doc)

	m := metrics.New()
	client := fetch.NewClient(fetch.Options{
		MaxAttempts: cfg.Attempts,
		Timeout:     cfg.Timeout,
		Backoff:     disableIfZero(cfg.Backoff),
		MaxBytes:    cfg.MaxBytes,
		UserAgent:   cfg.UserAgent,
		Referer:     cfg.Referer,
		Accept:      cfg.Accept,
		OnAttempt:   m.ObserveAttempt,
		Logger:      log,
		HTTPClient:  a.HTTPClient,
	})
	defer client.Close()

	loc := localize.New(client, localize.Options{
		Extract: markdown.ExtractOptions{
			Schemes:    cfg.Schemes,
			HostPrefix: cfg.HostPrefix,
			SkipCode:   cfg.SkipCode,
		},
		ContentHash: cfg.ContentHash,
		Delay:       disableIfZero(cfg.Delay),
		LinkDir:     cfg.ImagesDir,
		Logger:      log,
		Metrics:     m,
	})

	original := string(data)
	out, report, err := loc.Localize(ctx, original, imageDir)
	if err != nil {
		return nil, fmt.Errorf("localize: %w", err)
	}

	if out != original {
		if err := assets.WriteFile(doc, []byte(out), info.Mode().Perm()); err != nil {
			return report, &PersistError{Path: doc, Err: err}
		}
		log.Info("document updated", "localized", report.Localized())
	}

	a.writeOutputs(cfg, report, m, log)

	if !report.Changed() || !cfg.Commit {
		return report, nil
	}

	committer := vcs.NewCommitter(docDir, a.Runner, log)
	if err := committer.Commit(ctx, cfg.CommitMessage, filepath.Base(doc), filepath.ToSlash(cfg.ImagesDir)); err != nil {
		return report, &CommitError{Err: err}
	}
	if cfg.Push {
		if err := committer.Push(ctx); err != nil {
			return report, &CommitError{Err: err}
		}
	}
	return report, nil
}

// writeOutputs saves the optional report and metrics files. Failures are
// logged but do not fail the run.
func (a *App) writeOutputs(cfg config.Config, report *localize.Report, m *metrics.Metrics, log *slog.Logger) {
	if cfg.ReportPath != "" {
		f, err := os.Create(cfg.ReportPath)
		if err == nil {
			err = report.WriteJSON(f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
		if err != nil {
			log.Error("write report failed", "path", cfg.ReportPath, "error", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("write metrics failed", "path", cfg.MetricsFile, "error", err)
		}
	}
}

// disableIfZero maps an explicit zero from the command line to the
// negative value the fetch and localize packages treat as "no wait".
func disableIfZero(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}
