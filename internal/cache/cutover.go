package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/star/orbitscreen/internal/bodies"
)

// catalogChanged reports whether the store has been refreshed since the
// constellation was last built.
func (s *Screener) catalogChanged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constellation == nil || s.store.Version() != s.version
}

// refresh rebuilds the constellation if the catalog changed.
func (s *Screener) refresh(ctx context.Context) error {
	if !s.catalogChanged() {
		return nil
	}
	return s.performCutover(ctx)
}

// performCutover rebuilds the constellation from the current catalog.
//
// Strategy:
//  1. Set the cutover flag (reads of the latest report continue)
//  2. Bind the new catalog outside the lock
//  3. Swap constellation and version under the write lock
//  4. Close the old constellation and drop reports for older versions
func (s *Screener) performCutover(ctx context.Context) error {
	s.cutoverMu.Lock()
	defer s.cutoverMu.Unlock()

	// Another caller may have rebuilt while we waited.
	if !s.catalogChanged() {
		return nil
	}

	catalog := s.store.Get()
	if catalog == nil {
		return ErrNoCatalog
	}
	version := s.store.Version()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	oldVersion := s.version
	s.mu.RUnlock()
	s.logger.Info("catalog cutover starting",
		"old_version", oldVersion,
		"new_version", version,
		"catalog", catalog.Name,
		"fetched_at", catalog.FetchedAt.UTC().Format(time.RFC3339),
	)

	s.inCutover.Store(true)
	defer s.inCutover.Store(false)

	start := time.Now()
	next, skipped := bodies.FromTLECatalog(catalog, s.pool, s.logger)
	if next.Count() == 0 && catalog.Len() > 0 {
		next.Close()
		return fmt.Errorf("catalog %q: none of %d entries could be bound", catalog.Name, catalog.Len())
	}

	s.mu.Lock()
	old := s.constellation
	s.constellation = next
	s.version = version
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	invalidated := s.cache.InvalidateBefore(version)

	s.logger.Info("catalog cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"satellites", next.Count(),
		"skipped", skipped,
		"reports_invalidated", invalidated,
	)
	return nil
}
