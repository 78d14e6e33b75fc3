package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newTestServer(t *testing.T, setup func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func fastOptions() Options {
	return Options{MaxAttempts: 3, Backoff: time.Millisecond, Timeout: 5 * time.Second}
}

func TestClient_FetchSuccess(t *testing.T) {
	var gotUA, gotAccept, gotReferer string
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/img/a.png", func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotAccept = r.Header.Get("Accept")
			gotReferer = r.Header.Get("Referer")
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("PNGDATA"))
		})
	})

	opts := fastOptions()
	opts.Referer = "https://docs.example.com/"
	c := NewClient(opts)
	defer c.Close()

	asset, err := c.Fetch(context.Background(), srv.URL+"/img/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(asset.Data) != "PNGDATA" {
		t.Errorf("expected body %q, got %q", "PNGDATA", asset.Data)
	}
	if asset.ContentType != "image/png" {
		t.Errorf("expected content type image/png, got %q", asset.ContentType)
	}
	if asset.Extension != ".png" {
		t.Errorf("expected .png extension, got %q", asset.Extension)
	}
	if asset.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", asset.Attempts)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
	if gotAccept != DefaultAccept {
		t.Errorf("expected accept %q, got %q", DefaultAccept, gotAccept)
	}
	if gotReferer != "https://docs.example.com/" {
		t.Errorf("expected referer to be sent, got %q", gotReferer)
	}
}

func TestClient_NotFoundExhaustsAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/missing.png", func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		})
	})

	var attempts []Attempt
	opts := fastOptions()
	opts.OnAttempt = func(a Attempt) { attempts = append(attempts, a) }
	c := NewClient(opts)

	asset, err := c.Fetch(context.Background(), srv.URL+"/missing.png")
	if asset != nil {
		t.Fatalf("expected no asset, got %+v", asset)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.Attempts != 3 || fe.StatusCode != http.StatusNotFound {
		t.Errorf("expected 3 attempts with status 404, got %d / %d", fe.Attempts, fe.StatusCode)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Errorf("expected wrapped *StatusError, got %v", fe.Err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempt callbacks, got %d", len(attempts))
	}
	for i, a := range attempts {
		if a.Number != i+1 || a.Err == nil {
			t.Errorf("attempt %d: unexpected %+v", i, a)
		}
	}
	if !IsFetchError(err) {
		t.Error("expected IsFetchError to match")
	}
}

func TestClient_RecoversAfterTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/flaky.gif", func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("GIF89a"))
		})
	})

	asset, err := NewClient(fastOptions()).Fetch(context.Background(), srv.URL+"/flaky.gif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Attempts != 3 {
		t.Errorf("expected success on attempt 3, got %d", asset.Attempts)
	}
	if asset.Extension != ".gif" {
		t.Errorf("expected .gif, got %q", asset.Extension)
	}
}

func TestClient_CookiesKeptAcrossAttempts(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/guarded.jpg", func(w http.ResponseWriter, r *http.Request) {
			if _, err := r.Cookie("session"); err != nil {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte("JPEG"))
		})
	})

	asset, err := NewClient(fastOptions()).Fetch(context.Background(), srv.URL+"/guarded.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Attempts != 2 {
		t.Errorf("expected success on attempt 2, got %d", asset.Attempts)
	}
}

func TestClient_MaxBytes(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/big.png", func(w http.ResponseWriter, r *http.Request) {
			w.Write(make([]byte, 64))
		})
	})

	opts := fastOptions()
	opts.MaxAttempts = 1
	opts.MaxBytes = 16
	_, err := NewClient(opts).Fetch(context.Background(), srv.URL+"/big.png")
	if !IsFetchError(err) {
		t.Fatalf("expected fetch error for oversized body, got %v", err)
	}
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/down.png", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
	})

	opts := fastOptions()
	opts.Backoff = time.Minute
	opts.OnAttempt = nil
	c := NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())
	c.onAttempt = func(Attempt) { cancel() }

	start := time.Now()
	_, err := c.Fetch(ctx, srv.URL+"/down.png")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("expected cancellation to interrupt the backoff wait")
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.png"
	srv.Close()

	opts := fastOptions()
	opts.MaxAttempts = 2
	_, err := NewClient(opts).Fetch(context.Background(), url)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != 0 || fe.Attempts != 2 {
		t.Errorf("expected transport failure after 2 attempts, got status %d attempts %d", fe.StatusCode, fe.Attempts)
	}
}

func TestExtensionFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://host/a.png", ".png"},
		{"https://host/a.JPG", ".jpg"},
		{"https://host/a.jpeg?x=1", ".jpeg"},
		{"https://host/anim.gif#frag", ".gif"},
		{"https://host/p.webp", ".webp"},
		{"https://host/logo.svg", ".svg"},
		{"https://host/old.bmp", ".bmp"},
		{"https://host/image", ".png"},
		{"https://host/file.tiff", ".png"},
		{"https://host/dir.jpg/raw", ".png"},
	}
	for _, tt := range tests {
		if got := ExtensionFromURL(tt.url); got != tt.want {
			t.Errorf("ExtensionFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSleep_NonPositive(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, -1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
