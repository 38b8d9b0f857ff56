package plugin

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vincentyang1210/pion/errors"
)

// Registry is a thread-safe keyed container of plugin instances. It holds
// the owning reference for each instance; callers that fetched an instance
// keep using it safely after removal, and the instance is collected once the
// last holder releases it.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Add stores an instance under the given id, assigning a fresh UUID when the
// id is empty. Adding an id that already exists fails.
func (r *Registry[T]) Add(id string, item T) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		return "", errors.WrapInvalid(
			fmt.Errorf("id %q: %w", id, errors.ErrDuplicateID),
			"Registry", "Add", "duplicate id check")
	}
	r.items[id] = item
	return id, nil
}

// Remove drops the registry's reference to an instance.
func (r *Registry[T]) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("id %q: %w", id, errors.ErrPluginNotFound),
			"Registry", "Remove", "id lookup")
	}
	delete(r.items, id)
	return nil
}

// Get returns the instance stored under id.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists {
		var zero T
		return zero, errors.WrapKind(errors.KindNotFound,
			fmt.Errorf("id %q: %w", id, errors.ErrPluginNotFound),
			"Registry", "Get", "id lookup")
	}
	return item, nil
}

// Has reports whether an instance is stored under id.
func (r *Registry[T]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.items[id]
	return exists
}

// Len returns the number of stored instances.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// IDs returns the ids of all stored instances in unspecified order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	return ids
}

// Each calls fn for every stored instance; returning false stops iteration.
// The read lock is held for the duration, so fn must not mutate the registry.
func (r *Registry[T]) Each(fn func(id string, item T) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, item := range r.items {
		if !fn(id, item) {
			return
		}
	}
}

// Aggregate applies fn to every stored instance and sums the results. Used
// for statistics rollups.
func (r *Registry[T]) Aggregate(fn func(item T) uint64) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total uint64
	for _, item := range r.items {
		total += fn(item)
	}
	return total
}

// Clear removes every instance, returning how many were dropped.
func (r *Registry[T]) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.items)
	r.items = make(map[string]T)
	return n
}
