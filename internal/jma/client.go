package jma

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lox/jmaetrn/internal/httputil"
)

// Config configures a Client. Zero values fall back to the defaults.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Recorder   PageRecorder
	Logger     *slog.Logger

	// Throttle is shared by every fetch the client makes. Nil means a
	// throttle with httputil.DefaultDelay.
	Throttle *httputil.Throttle
}

// Client walks the JMA historical-data pages. It is sequential and not safe
// for concurrent use.
type Client struct {
	baseURL  string
	fetcher  *Fetcher
	throttle *httputil.Throttle
	log      *slog.Logger
}

// NewClient creates a new JMA client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.NewClient(cfg.Timeout)
	}
	if cfg.Throttle == nil {
		cfg.Throttle = httputil.NewThrottle(httputil.DefaultDelay)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		fetcher:  NewFetcher(cfg.HTTPClient, cfg.UserAgent, cfg.Recorder),
		throttle: cfg.Throttle,
		log:      cfg.Logger,
	}
}

// Delay returns the pause applied between page fetches.
func (c *Client) Delay() time.Duration {
	return c.throttle.Delay()
}

// fetchDocument waits for the throttle, fetches rawURL and parses it as HTML.
func (c *Client) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.fetcher.Get(ctx, rawURL)
	c.throttle.Done()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}
