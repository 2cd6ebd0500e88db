// Package optimistic implements the client-side mutation discipline used by
// the console: a cached view is updated tentatively before the authoritative
// call returns, reconciled on success, and restored exactly from a snapshot
// on failure. One mutation per key may be in flight at a time; a concurrent
// attempt is rejected rather than interleaved, which prevents lost updates
// when two actions race over the same entity.
package optimistic

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInFlight signals another mutation for the same key has not settled.
	ErrInFlight = errors.New("optimistic: mutation already in flight")
	// ErrNotCached signals the key has no cached view to mutate.
	ErrNotCached = errors.New("optimistic: no cached view for key")
)

// Coordinator keeps the cached views of type T keyed by string and runs
// optimistic transactions against them. Clone must produce a deep copy: the
// snapshot taken before a mutation is the exact state restored on rollback.
type Coordinator[T any] struct {
	mu       sync.Mutex
	views    map[string]T
	inFlight map[string]struct{}
	clone    func(T) T
}

func NewCoordinator[T any](clone func(T) T) *Coordinator[T] {
	return &Coordinator[T]{
		views:    make(map[string]T),
		inFlight: make(map[string]struct{}),
		clone:    clone,
	}
}

// Put stores an authoritative view for the key, replacing any cached one.
func (c *Coordinator[T]) Put(key string, view T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[key] = c.clone(view)
}

// Get returns a copy of the cached view.
func (c *Coordinator[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(view), true
}

// Invalidate drops the cached view for the key, forcing the next reader to
// refresh from the authoritative source.
func (c *Coordinator[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, key)
}

// Keys lists the cached keys.
func (c *Coordinator[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.views))
	for k := range c.views {
		keys = append(keys, k)
	}
	return keys
}

// Mutate runs one optimistic transaction against the view under viewKey:
//
//  1. snapshot the cached view,
//  2. apply the tentative projection,
//  3. run the authoritative call,
//  4. on failure restore the snapshot exactly and return the error.
//
// entityKey identifies the entity being mutated (typically a claim id); it
// scopes the single-in-flight rule independently of which cached view the
// mutation projects onto. A second Mutate for the same entity while one is
// outstanding fails with ErrInFlight and touches nothing.
//
// The tentative projection stays in place on success; callers that prefer
// fresh server state can Invalidate or Put afterwards.
func (c *Coordinator[T]) Mutate(ctx context.Context, viewKey, entityKey string, project func(T) T, call func(context.Context) error) error {
	if entityKey == "" {
		entityKey = viewKey
	}

	c.mu.Lock()
	if _, busy := c.inFlight[entityKey]; busy {
		c.mu.Unlock()
		return ErrInFlight
	}
	view, ok := c.views[viewKey]
	if !ok {
		c.mu.Unlock()
		return ErrNotCached
	}

	snapshot := c.clone(view)
	c.views[viewKey] = project(c.clone(view))
	c.inFlight[entityKey] = struct{}{}
	c.mu.Unlock()

	err := call(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, entityKey)
	if err != nil {
		// The authoritative store is never assumed mutated on failure.
		c.views[viewKey] = snapshot
		return err
	}
	return nil
}
