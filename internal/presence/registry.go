// Package presence tracks which identities currently hold a live connection.
package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps an identity to the connection handle that currently represents it.
// A newer connection silently replaces an older one; only the owning handle can
// remove the entry. Lookups return copies so callers deliver outside the lock.
type Registry[H comparable] struct {
	mu      sync.RWMutex
	entries map[string]H
}

func NewRegistry[H comparable]() *Registry[H] {
	return &Registry[H]{entries: make(map[string]H)}
}

// Register binds id to handle and returns the handle it displaced, if any.
func (r *Registry[H]) Register(id string, handle H) (prev H, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, replaced = r.entries[id]
	r.entries[id] = handle
	return prev, replaced
}

// Unregister removes id's entry only if handle still owns it. It reports whether
// the entry was removed, i.e. whether id actually went offline.
func (r *Registry[H]) Unregister(id string, handle H) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[id]
	if !ok || current != handle {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *Registry[H]) IsOnline(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Registry[H]) Lookup(id string) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[id]
	return h, ok
}

// Snapshot returns the online ids, sorted.
func (r *Registry[H]) Snapshot() []string {
	r.mu.RLock()
	ids := lo.Keys(r.entries)
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry[H]) Handles() []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.entries)
}

func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
