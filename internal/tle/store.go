package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current catalog. Every Set bumps a
// version so dependants can detect a cutover.
type Store struct {
	catalog atomic.Pointer[Catalog]
	version atomic.Uint64
	mu      sync.Mutex // serializes refreshes
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog and returns the new version.
func (s *Store) Set(c *Catalog) uint64 {
	s.catalog.Store(c)
	return s.version.Add(1)
}

// Version returns the number of catalogs stored so far; 0 means none.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// AgeSeconds returns the age of the current catalog in seconds.
// Returns -1 if no catalog is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.FetchedAt).Seconds()
}

// Lock acquires the refresh mutex.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the refresh mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
