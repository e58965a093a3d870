package tle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoaderRefresh(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(starlinkTLE + issTLE))
	}))
	defer server.Close()

	store := NewStore()
	dir := t.TempDir()
	l := NewLoader(store, NewCache(dir, 2), NewFetcher(server.URL, testLogger), time.Hour, testLogger)

	if !l.Stale() {
		t.Error("empty store should be stale")
	}
	n, err := l.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || store.Get().Len() != 2 || store.Version() != 1 {
		t.Errorf("n = %d, version = %d", n, store.Version())
	}
	if l.Stale() {
		t.Error("fresh catalog reported stale")
	}

	// A second loader over the same cache starts from disk.
	other := NewStore()
	n, err = NewLoader(other, NewCache(dir, 2), nil, time.Hour, testLogger).LoadCached()
	if err != nil || n != 2 {
		t.Fatalf("LoadCached = %d, %v", n, err)
	}
	if other.Get().Source != "cache" {
		t.Errorf("source = %q", other.Get().Source)
	}
}

func TestLoaderRun(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	store := NewStore()
	l := NewLoader(store, nil, NewFetcher(server.URL, testLogger), time.Hour, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for store.Get() == nil {
		select {
		case <-deadline:
			t.Fatal("catalog not loaded within 5s")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// The catalog stays fresh, so only the first check fetches.
	if hits.Load() != 1 {
		t.Errorf("fetched %d times, want 1", hits.Load())
	}
}

func TestLoaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.tle")
	if err := os.WriteFile(path, []byte("GEO\n"+geoLine1+"\n"+geoLine2+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	l := NewLoader(store, nil, nil, 0, testLogger)
	n, err := l.LoadFile(path)
	if err != nil || n != 1 {
		t.Fatalf("LoadFile = %d, %v", n, err)
	}
	if c := store.Get(); c.Name != "geo.tle" || !strings.HasPrefix(c.Source, "file:") {
		t.Errorf("catalog = %s from %s", c.Name, c.Source)
	}

	empty := filepath.Join(t.TempDir(), "empty.tle")
	os.WriteFile(empty, []byte("nothing here\n"), 0o644)
	if _, err := l.LoadFile(empty); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("empty file: err = %v", err)
	}
	if _, err := l.LoadFile(filepath.Join(t.TempDir(), "missing.tle")); err == nil {
		t.Error("missing file: expected error")
	}
	if _, err := l.Refresh(context.Background()); err == nil {
		t.Error("Refresh without fetcher: expected error")
	}
}

func TestLoaderNotModified(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-Modified-Since") != "" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", "Wed, 10 Apr 2024 12:00:00 GMT")
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	store := NewStore()
	l := NewLoader(store, nil, NewFetcher(server.URL, testLogger), time.Hour, testLogger)
	if _, err := l.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	n, err := l.Refresh(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("Refresh after 304 = %d, %v", n, err)
	}
	if store.Version() != 1 {
		t.Errorf("version = %d, an unchanged catalog must not cut over", store.Version())
	}
	if hits.Load() != 2 || l.Stale() {
		t.Errorf("hits = %d, stale = %v", hits.Load(), l.Stale())
	}
}
