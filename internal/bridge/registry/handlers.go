package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrEmptyName is returned when registering a handler without a name.
var ErrEmptyName = errors.New("handler name cannot be empty")

// Handlers maps handler names to handlers
type Handlers[H any] struct {
	entries sync.Map
}

// NewHandlers creates an empty handler registry
func NewHandlers[H any]() *Handlers[H] {
	return &Handlers[H]{}
}

// Register stores h under name, replacing any previous handler. It reports
// whether one was replaced.
func (r *Handlers[H]) Register(name string, h H) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}
	_, replaced := r.entries.Swap(name, h)
	return replaced, nil
}

// Unregister removes a handler and reports whether it existed
func (r *Handlers[H]) Unregister(name string) bool {
	_, ok := r.entries.LoadAndDelete(name)
	return ok
}

// Lookup retrieves a handler by name
func (r *Handlers[H]) Lookup(name string) (H, bool) {
	val, ok := r.entries.Load(name)
	if !ok {
		var zero H
		return zero, false
	}
	return val.(H), true
}

// Names returns the registered names in sorted order
func (r *Handlers[H]) Names() []string {
	var names []string
	r.entries.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers
func (r *Handlers[H]) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear removes every handler
func (r *Handlers[H]) Clear() {
	r.entries.Range(func(key, _ any) bool {
		r.entries.Delete(key)
		return true
	})
}
