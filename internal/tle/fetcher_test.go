package tle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	starlinkTLE = "STARLINK-1007\n1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9998\n2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    07\n"
	issTLE      = "ISS (ZARYA)\n1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9009\n2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01\n"
)

func serveText(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
}

func serveStatus(code int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
}

func TestFetcherSources(t *testing.T) {
	starlink := serveText(starlinkTLE)
	defer starlink.Close()
	iss := serveText(issTLE)
	defer iss.Close()
	broken := serveStatus(http.StatusInternalServerError)
	defer broken.Close()

	tests := []struct {
		name    string
		primary string
		extras  []string
		wantIDs []int
		wantErr bool
	}{
		{"primary only", starlink.URL, nil, []int{44713}, false},
		{"primary and extra", starlink.URL, []string{iss.URL}, []int{44713, 25544}, false},
		{"failing extra skipped", starlink.URL, []string{broken.URL}, []int{44713}, false},
		{"failing primary", broken.URL, []string{iss.URL}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := NewFetcher(tt.primary, testLogger, tt.extras...).Fetch(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			entries, err := Parse(strings.NewReader(string(data)), testLogger)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(entries) != len(tt.wantIDs) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if entries[i].SatelliteID != id {
					t.Errorf("entry %d = %d, want %d", i, entries[i].SatelliteID, id)
				}
			}
		})
	}
}

func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("A", 1<<20)
		for i := 0; i < 52; i++ {
			if _, err := io.WriteString(w, chunk); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("err = %v, want body limit error", err)
	}
}

func TestFetcherConditional(t *testing.T) {
	var full, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		io.WriteString(w, issTLE)
	}))
	defer server.Close()

	f := NewFetcher(server.URL, testLogger)
	if data, err := f.Fetch(context.Background()); err != nil || string(data) != issTLE {
		t.Fatalf("first Fetch = %q, %v", data, err)
	}
	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrNotModified) {
		t.Fatalf("second Fetch err = %v, want ErrNotModified", err)
	}
	if full.Load() != 1 || conditional.Load() != 1 {
		t.Errorf("full = %d, conditional = %d", full.Load(), conditional.Load())
	}
}

func TestFetcherUnsolicitedNotModified(t *testing.T) {
	server := serveStatus(http.StatusNotModified)
	defer server.Close()

	_, err := NewFetcher(server.URL, testLogger).Fetch(context.Background())
	if err == nil || errors.Is(err, ErrNotModified) {
		t.Errorf("err = %v, want a fetch error", err)
	}
}
