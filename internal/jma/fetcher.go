package jma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/lox/jmaetrn/internal/httputil"
	"github.com/lox/jmaetrn/internal/metrics"
)

// Page is one fetched document, handed to a PageRecorder.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Elapsed    time.Duration
	Err        error
}

// PageRecorder receives every fetch attempt, successful or not.
type PageRecorder interface {
	RecordPage(ctx context.Context, p Page)
}

// Fetcher issues one GET per page. It does not cache, retry or throttle.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	recorder   PageRecorder
}

// NewFetcher creates a fetcher. A nil client gets the default timeout.
func NewFetcher(client *http.Client, userAgent string, recorder PageRecorder) *Fetcher {
	if client == nil {
		client = httputil.NewClient(0)
	}
	if userAgent == "" {
		userAgent = httputil.DefaultUserAgent
	}
	return &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		recorder:   recorder,
	}
}

// Get returns the raw body of rawURL. Failures are *TransportError.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	body, status, err := f.get(ctx, rawURL)
	elapsed := time.Since(start)

	page := PageLabel(rawURL)
	metrics.PageFetchLatency.WithLabelValues(page).Observe(elapsed.Seconds())
	statusLabel := "error"
	if status != 0 {
		statusLabel = strconv.Itoa(status)
	}
	metrics.PageFetchesTotal.WithLabelValues(page, statusLabel).Inc()

	if f.recorder != nil {
		f.recorder.RecordPage(ctx, Page{
			URL:        rawURL,
			StatusCode: status,
			Body:       body,
			FetchedAt:  start.UTC(),
			Elapsed:    elapsed,
			Err:        err,
		})
	}
	return body, err
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, &TransportError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &TransportError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{URL: rawURL, StatusCode: 0, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, resp.StatusCode, nil
}

// PageLabel names a page by its script, not its query, keeping metric and
// archive labels bounded.
func PageLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return path.Base(u.Path)
}
