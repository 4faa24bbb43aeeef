// Package fetch retrieves externally referenced dialog content over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	neturl "net/url"
	"path"
	"time"

	"vcon/pkg/vcon"
)

const (
	defaultMaxBytes = 64 << 20
	defaultTimeout  = 30 * time.Second
)

// ErrTooLarge is wrapped by Error when the response exceeds the size limit.
var ErrTooLarge = errors.New("response body too large")

// Error reports a failed retrieval. StatusCode is zero when no response was
// received.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch external data: %d", e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch external data: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPFetcher implements vcon.Fetcher with a plain GET. No retries.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithMaxBytes bounds the accepted response size.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// New constructs an HTTPFetcher.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves url. An empty filename falls back to the last path segment
// of the URL and an empty mimetype to the response Content-Type.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, filename, mimetype string) (vcon.Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return vcon.Fetched{}, &Error{URL: url, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return vcon.Fetched{}, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return vcon.Fetched{}, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return vcon.Fetched{}, &Error{URL: url, Err: err}
	}
	if int64(len(content)) > f.maxBytes {
		return vcon.Fetched{}, &Error{URL: url, Err: ErrTooLarge}
	}

	if mimetype == "" {
		mimetype = contentType(resp.Header.Get("Content-Type"))
	}
	if filename == "" {
		filename = basename(url)
	}
	return vcon.Fetched{Content: content, Mimetype: mimetype, Filename: filename}, nil
}

func contentType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return header
	}
	return mt
}

func basename(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
