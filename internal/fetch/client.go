package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultAccept    = "image/webp,image/apng,image/*,*/*;q=0.8"
)

// Options configures a Client. Zero values fall back to the defaults below.
type Options struct {
	MaxAttempts int           // default 3
	Timeout     time.Duration // per attempt, default 30s
	Backoff     time.Duration // fixed wait between attempts, default 2s; negative disables
	MaxBytes    int64         // response cap, default 50MB

	UserAgent string
	Referer   string
	Accept    string

	// OnAttempt is called after every attempt.
	OnAttempt func(Attempt)

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Attempt describes the outcome of one GET.
type Attempt struct {
	URL        string
	Number     int
	StatusCode int
	Bytes      int
	Duration   time.Duration
	Err        error
}

// Asset is the body of a successful download.
type Asset struct {
	URL         string
	Data        []byte
	ContentType string
	Extension   string
	Attempts    int
}

// Client downloads remote images with bounded retries.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
	timeout    time.Duration
	maxBytes   int64
	userAgent  string
	referer    string
	accept     string
	onAttempt  func(Attempt)
	log        *slog.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
		if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
			hc.Jar = jar
		}
	}
	c := &Client{
		httpClient: hc,
		retry:      RetryPolicy{MaxAttempts: opts.MaxAttempts, Wait: opts.Backoff},
		timeout:    opts.Timeout,
		maxBytes:   opts.MaxBytes,
		userAgent:  opts.UserAgent,
		referer:    opts.Referer,
		accept:     opts.Accept,
		onAttempt:  opts.OnAttempt,
		log:        opts.Logger,
	}
	if c.retry.MaxAttempts <= 0 {
		c.retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.retry.Wait == 0 {
		c.retry.Wait = DefaultBackoff
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.maxBytes <= 0 {
		c.maxBytes = 52428800 // 50MB
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.accept == "" {
		c.accept = DefaultAccept
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c
}

// Fetch downloads url, retrying transport errors and non-2xx responses. After
// the last attempt it returns a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) (*Asset, error) {
	log := c.log.With("url", url)

	var last Attempt
	for attempt := range c.retry.MaxAttempts {
		if attempt > 0 {
			if err := c.retry.Sleep(ctx); err != nil {
				return nil, err
			}
		}

		data, ct, a := c.get(ctx, url, attempt+1)
		if c.onAttempt != nil {
			c.onAttempt(a)
		}
		if a.Err == nil {
			log.Debug("downloaded image", "attempt", a.Number, "bytes", a.Bytes, "duration_ms", a.Duration.Milliseconds())
			return &Asset{
				URL:         url,
				Data:        data,
				ContentType: ct,
				Extension:   ExtensionFromURL(url),
				Attempts:    a.Number,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last = a
		log.Warn("download attempt failed", "attempt", a.Number, "max_attempts", c.retry.MaxAttempts, "error", a.Err)
	}

	return nil, &FetchError{
		URL:        url,
		Attempts:   c.retry.MaxAttempts,
		StatusCode: last.StatusCode,
		Err:        last.Err,
	}
}

func (c *Client) get(ctx context.Context, url string, n int) ([]byte, string, Attempt) {
	a := Attempt{URL: url, Number: n}
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		a.Err = fmt.Errorf("create request: %w", err)
		a.Duration = time.Since(start)
		return nil, "", a
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", c.accept)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		a.Err = fmt.Errorf("get: %w", err)
		a.Duration = time.Since(start)
		return nil, "", a
	}
	defer resp.Body.Close()
	a.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		a.Err = &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
		a.Duration = time.Since(start)
		return nil, "", a
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		a.Err = fmt.Errorf("read body: %w", err)
		a.Duration = time.Since(start)
		return nil, "", a
	}
	if int64(len(data)) > c.maxBytes {
		a.Err = fmt.Errorf("image exceeds max size (%d bytes)", c.maxBytes)
		a.Duration = time.Since(start)
		return nil, "", a
	}

	a.Bytes = len(data)
	a.Duration = time.Since(start)
	return data, resp.Header.Get("Content-Type"), a
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
