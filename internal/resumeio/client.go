// Package resumeio talks to the resume rendering service: page metadata and
// per-page raster images.
package resumeio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/toricodesthings/resumeio-pdf/internal/format"
)

const (
	DefaultMetadataBaseURL = "https://ssr.resume.tools/meta"
	DefaultImageBaseURL    = "https://ssr.resume.tools/to-image"

	// StampLayout matches the millisecond ISO-8601 stamp the web app sends.
	StampLayout = "2006-01-02T15:04:05.000Z"
)

// Snapshot pins every request of one run to the same rendering of a resume.
// A new run must take a new snapshot.
type Snapshot struct {
	Token string
	Stamp string
}

func NewSnapshot(token string, now time.Time) Snapshot {
	return Snapshot{Token: token, Stamp: now.UTC().Format(StampLayout)}
}

type ImageOptions struct {
	Format format.Format
	Size   int
}

type Config struct {
	MetadataBaseURL  string
	ImageBaseURL     string
	Timeout          time.Duration // per request. Default: 25s.
	MaxMetadataBytes int64         // Default: 2MB.
	MaxImageBytes    int64         // Default: 40MB.
	UserAgent        string
	// RateEvery and RateBurst throttle outbound requests across all runs.
	// Zero RateEvery disables throttling.
	RateEvery time.Duration
	RateBurst int
	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.MetadataBaseURL == "" {
		c.MetadataBaseURL = DefaultMetadataBaseURL
	}
	if c.ImageBaseURL == "" {
		c.ImageBaseURL = DefaultImageBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 25 * time.Second
	}
	if c.MaxMetadataBytes <= 0 {
		c.MaxMetadataBytes = 2 << 20
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 40 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "resumeio-pdf/1.0"
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
}

type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	cfg.defaults()
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	limiter := rate.NewLimiter(rate.Inf, cfg.RateBurst)
	if cfg.RateEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RateEvery), cfg.RateBurst)
	}
	return &Client{http: hc, cfg: cfg, limiter: limiter}
}

func (c *Client) MetadataURL(s Snapshot) string {
	q := url.Values{"cache": {s.Stamp}}
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.cfg.MetadataBaseURL, "/"), url.PathEscape(s.Token), q.Encode())
}

// ImageURL builds the URL of a 1-based page.
func (c *Client) ImageURL(s Snapshot, page int, opts ImageOptions) string {
	q := url.Values{}
	q.Set("cache", s.Stamp)
	q.Set("size", fmt.Sprint(opts.Size))
	name := fmt.Sprintf("%s-%d.%s", s.Token, page, opts.Format)
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.cfg.ImageBaseURL, "/"), url.PathEscape(name), q.Encode())
}

// errStatus carries a non-200 status out of get.
type errStatus struct{ code int }

func (e *errStatus) Error() string { return fmt.Sprintf("unexpected HTTP status %d", e.code) }

var errTooLarge = errors.New("response body exceeds limit")

// get performs one GET and returns the body when the status is 200.
func (c *Client) get(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &errStatus{code: resp.StatusCode}
	}

	lr := &io.LimitedReader{R: resp.Body, N: maxBytes + 1}
	body, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, maxBytes)
	}
	return body, nil
}

func statusOf(err error) int {
	var se *errStatus
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
