package propagation

import (
	"fmt"
	"sync"
)

// Key identifies a loaded resource. Keys are never reused within a process.
type Key uint64

// Registry holds resources under process-unique keys. Each key is released
// exactly once; lookups and releases of unknown keys fail with ErrResourceBinding.
type Registry[T any] struct {
	mu    sync.RWMutex
	next  Key
	items map[Key]T
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[Key]T)}
}

// Load stores v under a fresh key.
func (r *Registry[T]) Load(v T) Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.items[r.next] = v
	return r.next
}

// Get returns the resource under k.
func (r *Registry[T]) Get(k Key) (T, error) {
	r.mu.RLock()
	v, ok := r.items[k]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("key %d: %w", k, ErrResourceBinding)
	}
	return v, nil
}

// Update replaces the resource under an existing key.
func (r *Registry[T]) Update(k Key, fn func(T) (T, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[k]
	if !ok {
		return fmt.Errorf("key %d: %w", k, ErrResourceBinding)
	}
	v, err := fn(v)
	if err != nil {
		return err
	}
	r.items[k] = v
	return nil
}

// Release removes k.
func (r *Registry[T]) Release(k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[k]; !ok {
		return fmt.Errorf("release key %d: %w", k, ErrResourceBinding)
	}
	delete(r.items, k)
	return nil
}

// Len returns the number of live keys.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
