package localize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dgallion1/imglocal/internal/assets"
	"github.com/dgallion1/imglocal/internal/fetch"
	"github.com/dgallion1/imglocal/internal/markdown"
	"github.com/dgallion1/imglocal/internal/metrics"
	"github.com/dgallion1/imglocal/internal/rewrite"
)

// DefaultDelay is the pause between two network fetches.
const DefaultDelay = 500 * time.Millisecond

// Fetcher downloads a single URL. *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Asset, error)
}

// Options configures a Localizer.
type Options struct {
	Extract markdown.ExtractOptions

	// ContentHash adds a digest of the bytes to each filename.
	ContentHash bool

	// Delay between fetches. Zero means DefaultDelay; negative disables it.
	Delay time.Duration

	// LinkDir is the directory written into rewritten links. Defaults to the
	// base name of the image directory passed to Localize.
	LinkDir string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Localizer downloads remote images of a document and rewrites their links.
type Localizer struct {
	fetcher     Fetcher
	extractor   *markdown.Extractor
	contentHash bool
	delay       time.Duration
	linkDir     string
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func New(fetcher Fetcher, opts Options) *Localizer {
	l := &Localizer{
		fetcher:     fetcher,
		extractor:   markdown.NewExtractor(opts.Extract),
		contentHash: opts.ContentHash,
		delay:       opts.Delay,
		linkDir:     opts.LinkDir,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}
	if l.delay == 0 {
		l.delay = DefaultDelay
	}
	if l.log == nil {
		l.log = slog.New(slog.DiscardHandler)
	}
	return l
}

type outcome struct {
	status   Status
	local    string
	file     string
	bytes    int
	attempts int
	err      error
}

// Localize fetches every accepted remote image of doc into imageDir and returns
// the rewritten text with a per-reference report. Per-reference failures are
// recorded in the report; an error is returned only if imageDir cannot be
// created or ctx ends, in which case the returned text is doc unchanged.
func (l *Localizer) Localize(ctx context.Context, doc, imageDir string) (string, *Report, error) {
	report := &Report{ImageDir: imageDir}

	store := assets.NewStore(imageDir)
	if err := store.EnsureDir(); err != nil {
		return doc, report, err
	}

	linkDir := l.linkDir
	if linkDir == "" {
		linkDir = filepath.Base(imageDir)
	}

	refs := l.extractor.Collect(doc)
	l.log.Info("found image references", "count", len(refs))

	m := rewrite.Map{}
	seen := make(map[string]outcome)
	fetched := 0

	for i, ref := range refs {
		log := l.log.With("index", i, "url", ref.URL)

		o, reused := seen[ref.URL]
		if !reused {
			if fetched > 0 {
				if err := fetch.Sleep(ctx, l.delay); err != nil {
					return doc, report, err
				}
			}
			fetched++

			var err error
			o, err = l.process(ctx, store, linkDir, ref.URL)
			if err != nil {
				return doc, report, err
			}
			seen[ref.URL] = o
		}

		entry := Entry{
			Alt:      ref.Alt,
			URL:      ref.URL,
			Offset:   ref.Start,
			Status:   o.status,
			Bytes:    o.bytes,
			Attempts: o.attempts,
			Reused:   reused,
		}
		switch o.status {
		case StatusLocalized:
			m.Set(ref, o.local)
			entry.LocalPath = o.local
			entry.File = o.file
			log.Info("image localized", "path", o.local, "reused", reused)
		case StatusFetchFailed:
			entry.Error = o.err.Error()
			log.Warn("download failed, keeping original url", "error", o.err)
		case StatusWriteFailed:
			entry.Error = o.err.Error()
			log.Error("could not write image, keeping original url", "error", o.err)
		}
		report.add(entry)
		if l.metrics != nil {
			l.metrics.IncImages(string(o.status))
		}
	}

	counts := report.Counts()
	l.log.Info("localization complete",
		"localized", counts[StatusLocalized],
		"fetch_failed", counts[StatusFetchFailed],
		"write_failed", counts[StatusWriteFailed],
	)

	return rewrite.Apply(doc, refs, m), report, nil
}

// process downloads and stores one URL. Only context errors are returned;
// everything else becomes part of the outcome.
func (l *Localizer) process(ctx context.Context, store *assets.Store, linkDir, url string) (outcome, error) {
	asset, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return outcome{}, err
		}
		return outcome{status: StatusFetchFailed, err: err}, nil
	}
	if asset == nil {
		return outcome{status: StatusFetchFailed, err: fmt.Errorf("fetch %s: no content", url)}, nil
	}

	name := assets.Filename(url, asset.Data, l.contentHash)
	file, err := store.Write(name, asset.Data)
	if err != nil {
		return outcome{status: StatusWriteFailed, err: err, attempts: asset.Attempts}, nil
	}
	return outcome{
		status:   StatusLocalized,
		local:    rewrite.LocalPath(linkDir, name),
		file:     file,
		bytes:    len(asset.Data),
		attempts: asset.Attempts,
	}, nil
}
