// Package state provides the reactive playback state shared by the engine,
// the host sync bridge and the UI.
package state

import "sync"

// subscriber wraps a callback so unsubscribe can find it by identity.
type subscriber[T any] struct {
	fn func(T)
}

// Cell is an observable value.
//
// Set notifies subscribers synchronously, in subscription order, on the
// caller's goroutine. Subscribers may set other cells but must not set the
// cell that is notifying them.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	subs  []*subscriber[T]
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies every subscriber.
// Identical values are not deduplicated.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	// Copy subscribers to avoid holding the lock during callbacks
	subs := make([]*subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Update sets the cell to fn(current).
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.Get()))
}

// Subscribe registers fn and calls it once with the current value.
// The returned function removes the subscription; calling it twice is safe.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	s := &subscriber[T]{fn: fn}

	c.mu.Lock()
	c.subs = append(c.subs, s)
	current := c.value
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, sub := range c.subs {
				if sub == s {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					break
				}
			}
		})
	}
}

