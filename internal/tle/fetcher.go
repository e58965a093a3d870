package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle"
	maxBodyBytes     = 50 << 20
	fetchTimeout     = 30 * time.Second
)

// ErrNotModified is returned by Fetch when no source has changed since the
// previous successful fetch.
var ErrNotModified = errors.New("catalog not modified")

// source is one element feed and the validators from its last 200 response.
type source struct {
	url          string
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads raw TLE text from a primary feed plus optional extra feeds
// (supplemental groups, operator ephemerides). Requests are conditional, so an
// unchanged upstream costs a 304 instead of the whole catalog.
type Fetcher struct {
	mu      sync.Mutex
	sources []*source
	client  *http.Client
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher for sourceURL (the public active catalog when
// empty) followed by extraURLs. An extra feed that fails is skipped.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultSourceURL
	}
	f := &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
	for _, u := range append([]string{sourceURL}, extraURLs...) {
		f.sources = append(f.sources, &source{url: u})
	}
	return f
}

// SourceURL returns the primary feed.
func (f *Fetcher) SourceURL() string {
	return f.sources[0].url
}

// Fetch returns the concatenated text of every feed. Feeds answering 304 reuse
// their previous body; when all of them do, Fetch returns ErrNotModified.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := false
	for i, s := range f.sources {
		modified, err := f.get(ctx, s)
		switch {
		case err != nil && i == 0:
			return nil, err
		case err != nil:
			f.logger.Warn("skipping extra TLE source", "url", s.url, "error", err)
			s.body = nil
		case modified:
			changed = true
		}
	}
	if !changed {
		return nil, ErrNotModified
	}

	var out []byte
	for _, s := range f.sources {
		if len(s.body) == 0 {
			continue
		}
		if len(out) > 0 && out[len(out)-1] != '\n' {
			out = append(out, '\n')
		}
		out = append(out, s.body...)
	}
	return out, nil
}

// get refreshes s and reports whether its body changed.
func (f *Fetcher) get(ctx context.Context, s *source) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	if s.body != nil {
		if s.etag != "" {
			req.Header.Set("If-None-Match", s.etag)
		}
		if s.lastModified != "" {
			req.Header.Set("If-Modified-Since", s.lastModified)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		if s.body != nil {
			f.logger.Debug("TLE source not modified", "url", s.url)
			return false, nil
		}
		return false, fmt.Errorf("unsolicited 304 from %s", s.url)
	default:
		return false, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, s.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return false, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return false, fmt.Errorf("response from %s exceeds %d byte limit", s.url, maxBodyBytes)
	}

	s.body = body
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	f.logger.Debug("fetched TLE data", "url", s.url, "bytes", len(body), "duration", time.Since(start))
	return true, nil
}
