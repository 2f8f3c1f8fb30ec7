package jma

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lox/jmaetrn/internal/httputil"
)

// fakeSite serves canned pages keyed by path+query and records every request.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	fallback func(r *http.Request) (string, int)
	requests []string
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}

	f.mu.Lock()
	f.requests = append(f.requests, key)
	body, ok := f.pages[key]
	f.mu.Unlock()

	if ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
		return
	}
	if f.fallback != nil {
		body, status := f.fallback(r)
		w.WriteHeader(status)
		io.WriteString(w, body)
		return
	}
	http.NotFound(w, r)
}

func (f *fakeSite) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestClient(t *testing.T, site *fakeSite) *Client {
	t.Helper()
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:  srv.URL,
		Throttle: httputil.NewThrottle(0),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}
