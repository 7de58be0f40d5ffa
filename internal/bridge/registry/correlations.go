package registry

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// CallbackPrefix starts every correlation id issued on this side. The remote
// script uses "cb_", so the two id spaces never overlap.
const CallbackPrefix = "native_cb_"

// Resolver is the one-shot completion action stored per pending call.
type Resolver interface {
	OnResult(v any)
}

// Correlations tracks calls waiting for a reply
type Correlations[C Resolver] struct {
	counter atomic.Uint64
	mu      sync.Mutex
	pending map[string]C
}

// NewCorrelations creates an empty correlation registry
func NewCorrelations[C Resolver]() *Correlations[C] {
	return &Correlations[C]{pending: make(map[string]C)}
}

// Allocate stores cb under a fresh id and returns the id. Ids increase
// monotonically for the lifetime of the registry, Clear does not rewind them.
func (c *Correlations[C]) Allocate(cb C) string {
	id := CallbackPrefix + strconv.FormatUint(c.counter.Add(1), 10)

	c.mu.Lock()
	c.pending[id] = cb
	c.mu.Unlock()

	return id
}

// Take removes and returns the callback for id. Only the first Take of an id
// finds it.
func (c *Correlations[C]) Take(id string) (C, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return cb, ok
}

// Resolve takes the callback for id and invokes it with v outside the lock.
// It reports whether a callback was pending.
func (c *Correlations[C]) Resolve(id string, v any) bool {
	cb, ok := c.Take(id)
	if !ok {
		return false
	}
	cb.OnResult(v)
	return true
}

// Len returns the number of pending calls
func (c *Correlations[C]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Clear drops every pending call without invoking it and returns how many
// were dropped.
func (c *Correlations[C]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.pending)
	c.pending = make(map[string]C)
	return n
}
