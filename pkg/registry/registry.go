// Package registry resolves plugins by category and name.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a fresh instance of a registered plugin.
type Factory[T any] func() (T, error)

type key struct {
	category string
	name     string
}

// Registry maps (category, name) pairs to plugin factories.
// Names can also be declared as known but not linked into the binary, in which
// case resolving them fails with a *MissingPluginError naming the extra to install.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[key]Factory[T]
	missing   map[key]string
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[key]Factory[T]),
		missing:   make(map[key]string),
	}
}

// Register adds a factory. Registering the same name twice is an error.
func (r *Registry[T]) Register(category, name string, f Factory[T]) error {
	if category == "" || name == "" || f == nil {
		return fmt.Errorf("plugin registration requires a category, a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{category, name}
	if _, exists := r.factories[k]; exists {
		return fmt.Errorf("plugin `%s` is already registered in category `%s`", name, category)
	}
	delete(r.missing, k)
	r.factories[k] = f
	return nil
}

// Declare records a known plugin that is not available, with the extra that provides it.
// It has no effect if the plugin is registered.
func (r *Registry[T]) Declare(category, name, extra string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{category, name}
	if _, exists := r.factories[k]; exists {
		return
	}
	r.missing[k] = extra
}

// Resolve creates the plugin registered under (category, name).
func (r *Registry[T]) Resolve(category, name string) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[key{category, name}]
	extra, declared := r.missing[key{category, name}]
	r.mu.RUnlock()

	var zero T
	if !ok {
		if declared {
			return zero, &MissingPluginError{Category: category, Name: name, Extra: extra}
		}
		return zero, fmt.Errorf("%w: `%s` in category `%s`", ErrPluginNotFound, name, category)
	}
	v, err := f()
	if err != nil {
		return zero, fmt.Errorf("failed to load plugin `%s`: %w", name, err)
	}
	return v, nil
}

// Names returns the registered names of a category with the given prefix, sorted.
// Declared but missing plugins are not included.
func (r *Registry[T]) Names(category, prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for k := range r.factories {
		if k.category == category && strings.HasPrefix(k.name, prefix) {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// Missing returns the declared but unavailable names of a category, sorted.
func (r *Registry[T]) Missing(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for k := range r.missing {
		if k.category == category {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}
