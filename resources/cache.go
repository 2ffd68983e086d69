// Package resources holds the per-session lists fetched from the backend. Session state clears
// every cache on logout so nothing of one account is visible to the next.
package resources

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-medassist-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Fetcher loads the full list for a user.
type Fetcher[T any] func(ctx context.Context, userID string) ([]T, error)

type Cache[T any] struct {
	name   string
	userID func() string
	fetch  Fetcher[T]

	mu        sync.RWMutex
	items     []T
	loaded    bool
	fetchedAt time.Time
	lastErr   error
	// gen changes on every Clear; a fetch that started under an older gen is discarded.
	gen uint64
}

// NewCache binds fetch to the user returned by userID at load time.
func NewCache[T any](name string, userID func() string, fetch Fetcher[T]) *Cache[T] {
	return &Cache[T]{name: name, userID: userID, fetch: fetch}
}

func (c *Cache[T]) Name() string {
	return c.name
}

// Load fetches the list and replaces the cached copy. On failure the previous copy is kept.
// A result that arrives after Clear belongs to an ended session and is dropped.
func (c *Cache[T]) Load(ctx context.Context) ([]T, error) {
	userID := c.userID()
	if userID == "" {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "[Cache.Load] %s", c.name)
	}
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	items, err := c.fetch(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "[Cache.Load] %s: session ended during fetch", c.name)
	}
	if err != nil {
		c.lastErr = err
		return nil, errors.Wrapf(err, "[Cache.Load] %s", c.name)
	}
	c.items = items
	c.loaded = true
	c.fetchedAt = NowTimeFunc()
	c.lastErr = nil
	return append([]T(nil), items...), nil
}

// RefreshIfStale reloads only when nothing was loaded yet or the copy is older than threshold.
func (c *Cache[T]) RefreshIfStale(ctx context.Context, threshold time.Duration) (bool, error) {
	c.mu.RLock()
	fresh := c.loaded && NowTimeFunc().Sub(c.fetchedAt) < threshold
	c.mu.RUnlock()
	if fresh {
		return false, nil
	}
	_, err := c.Load(ctx)
	return err == nil, err
}

func (c *Cache[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

func (c *Cache[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Upsert replaces the element for which same returns true, or appends item.
func (c *Cache[T]) Upsert(item T, same func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if same(c.items[i]) {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

// Remove drops every element for which match returns true.
func (c *Cache[T]) Remove(match func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	for _, it := range c.items {
		if !match(it) {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

// Clear forgets everything.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.loaded = false
	c.fetchedAt = time.Time{}
	c.lastErr = nil
	c.gen++
}
