package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrEmptyCatalog is returned when a source parses to no entries.
var ErrEmptyCatalog = errors.New("catalog has no valid entries")

// Loader fills a Store from a local file, the disk cache or a Fetcher.
type Loader struct {
	store   *Store
	cache   *Cache   // may be nil
	fetcher *Fetcher // may be nil
	maxAge  time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	checkedAt time.Time // last time the fetcher confirmed the catalog current
}

// NewLoader creates a Loader. The catalog is refetched once it is older than maxAge.
func NewLoader(store *Store, cache *Cache, fetcher *Fetcher, maxAge time.Duration, logger *slog.Logger) *Loader {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Loader{
		store:   store,
		cache:   cache,
		fetcher: fetcher,
		maxAge:  maxAge,
		logger:  logger.With("component", "tle"),
	}
}

func (l *Loader) set(name, source string, fetchedAt time.Time, data []byte) (int, error) {
	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, ErrEmptyCatalog
	}
	version := l.store.Set(NewCatalog(name, source, fetchedAt, entries))
	l.logger.Info("catalog loaded",
		"source", source,
		"count", len(entries),
		"version", version,
		"fetched_at", fetchedAt.Format(time.RFC3339),
	)
	return len(entries), nil
}

// LoadFile parses a TLE file into the store. The catalog is named after the file.
func (l *Loader) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading catalog file: %w", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("reading catalog file: %w", err)
	}
	return l.set(filepath.Base(path), "file:"+path, st.ModTime(), data)
}

// LoadCached loads the newest disk cache file, if any.
func (l *Loader) LoadCached() (int, error) {
	if l.cache == nil {
		return 0, errors.New("no cache configured")
	}
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return 0, err
	}
	return l.set("catalog", "cache", ts, data)
}

// Refresh fetches the remote catalog, writes it to the disk cache and stores it.
// Concurrent refreshes are serialized.
func (l *Loader) Refresh(ctx context.Context) (int, error) {
	if l.fetcher == nil {
		return 0, errors.New("no fetcher configured")
	}
	l.store.Lock()
	defer l.store.Unlock()

	data, err := l.fetcher.Fetch(ctx)
	now := time.Now()
	if errors.Is(err, ErrNotModified) && l.store.Get() != nil {
		l.markChecked(now)
		l.logger.Debug("catalog unchanged upstream")
		return l.store.Get().Len(), nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetching catalog: %w", err)
	}
	n, err := l.set("catalog", l.fetcher.SourceURL(), now, data)
	if err != nil {
		return 0, err
	}
	l.markChecked(now)
	if l.cache != nil {
		if err := l.cache.Write(data, now); err != nil {
			l.logger.Warn("failed to write TLE cache", "error", err)
		}
	}
	return n, nil
}

func (l *Loader) markChecked(t time.Time) {
	l.mu.Lock()
	l.checkedAt = t
	l.mu.Unlock()
}

// Stale reports whether the store is empty, or neither loaded nor confirmed
// unchanged within maxAge.
func (l *Loader) Stale() bool {
	c := l.store.Get()
	if c == nil {
		return true
	}
	l.mu.Lock()
	last := l.checkedAt
	l.mu.Unlock()
	if c.FetchedAt.After(last) {
		last = c.FetchedAt
	}
	return time.Since(last) > l.maxAge
}

// Run refreshes whenever the catalog is stale, checking every interval.
// Blocks until ctx is cancelled.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	check := func() {
		if !l.Stale() {
			return
		}
		if _, err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("catalog refresh failed", "error", err)
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
