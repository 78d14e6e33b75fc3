package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelp is returned by Load when -h/--help was requested.
var ErrHelp = pflag.ErrHelp

type Config struct {
	// Input document; the first positional argument.
	Document string

	// Asset directory, relative to the document's directory.
	ImagesDir string

	// Which links count as remote images.
	Schemes    []string
	HostPrefix string
	SkipCode   bool

	// Filename scheme
	ContentHash bool

	// Fetching
	Attempts  int
	Timeout   time.Duration
	Backoff   time.Duration
	Delay     time.Duration
	UserAgent string
	Referer   string
	Accept    string
	MaxBytes  int64

	// Version control
	Commit        bool
	Push          bool
	CommitMessage string

	// Outputs
	ReportPath  string
	MetricsFile string
	LogLevel    string
}

const DefaultCommitMessage = "Localize remote images"

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("imglocal", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", "", "optional config file (yaml, toml, json, env)")
	fs.String("document", "", "markdown document to process (or first argument)")
	fs.String("images-dir", "images", "asset directory, relative to the document")
	fs.StringSlice("schemes", []string{"http", "https"}, "accepted URL schemes")
	fs.String("host-prefix", "", "only localize URLs starting with this prefix")
	fs.Bool("skip-code", true, "ignore image syntax inside code blocks and spans")
	fs.Bool("content-hash", true, "include a digest of the image bytes in filenames")
	fs.Int("attempts", 3, "download attempts per image")
	fs.Duration("timeout", 30*time.Second, "timeout per download attempt")
	fs.Duration("backoff", 2*time.Second, "wait between attempts")
	fs.Duration("delay", 500*time.Millisecond, "wait between downloads")
	fs.String("user-agent", "", "User-Agent header (browser string by default)")
	fs.String("referer", "", "Referer header")
	fs.String("accept", "", "Accept header")
	fs.Int64("max-bytes", 52428800, "maximum image size in bytes")
	fs.Bool("commit", false, "git add and commit the document and asset directory")
	fs.Bool("push", false, "git push after committing")
	fs.String("commit-message", DefaultCommitMessage, "commit message")
	fs.String("report", "", "write a JSON report to this path")
	fs.String("metrics-file", "", "write Prometheus metrics in textfile format to this path")
	fs.String("log-level", "info", "debug, info, warn or error")
	return fs
}

// Usage returns the command line help text.
func Usage() string {
	return "usage: imglocal [flags] <document.md>\n\nflags:\n" + newFlagSet().FlagUsages()
}

// Load builds a Config from args, IMGLOCAL_* environment variables and an
// optional config file. Flags set on the command line win over the
// environment, which wins over the file.
func Load(args []string) (Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("IMGLOCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	doc := fs.Arg(0)
	if doc == "" {
		doc = v.GetString("document")
	}

	cfg := Config{
		Document:      doc,
		ImagesDir:     v.GetString("images-dir"),
		Schemes:       splitList(v.GetStringSlice("schemes")),
		HostPrefix:    v.GetString("host-prefix"),
		SkipCode:      v.GetBool("skip-code"),
		ContentHash:   v.GetBool("content-hash"),
		Attempts:      v.GetInt("attempts"),
		Timeout:       v.GetDuration("timeout"),
		Backoff:       v.GetDuration("backoff"),
		Delay:         v.GetDuration("delay"),
		UserAgent:     v.GetString("user-agent"),
		Referer:       v.GetString("referer"),
		Accept:        v.GetString("accept"),
		MaxBytes:      v.GetInt64("max-bytes"),
		Commit:        v.GetBool("commit"),
		Push:          v.GetBool("push"),
		CommitMessage: v.GetString("commit-message"),
		ReportPath:    v.GetString("report"),
		MetricsFile:   v.GetString("metrics-file"),
		LogLevel:      strings.ToLower(v.GetString("log-level")),
	}

	if cfg.ImagesDir == "" {
		cfg.ImagesDir = "images"
	}
	if len(cfg.Schemes) == 0 {
		cfg.Schemes = []string{"http", "https"}
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 52428800
	}
	if cfg.CommitMessage == "" {
		cfg.CommitMessage = DefaultCommitMessage
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Document == "" {
		return errors.New("a markdown document is required")
	}
	if filepath.IsAbs(c.ImagesDir) {
		return fmt.Errorf("images-dir must be relative to the document, got %q", c.ImagesDir)
	}
	if clean := filepath.Clean(c.ImagesDir); clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("images-dir must be a subdirectory of the document's directory, got %q", c.ImagesDir)
	}
	for _, s := range c.Schemes {
		if s != "http" && s != "https" {
			return fmt.Errorf("unsupported scheme %q", s)
		}
	}
	if c.Push && !c.Commit {
		return errors.New("--push requires --commit")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// splitList flattens comma separated entries, as env values arrive as one string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
