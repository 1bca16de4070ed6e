// Package samples provides the sample library: an ordered registry that
// maps the index used by PlaySample to a sample file.
package samples

import (
	"path/filepath"
	"strings"
	"sync"
)

// Sample is one registered sample.
type Sample struct {
	Index int
	Name  string
	Path  string
}

// Registry holds registered samples. Indices are assigned in registration
// order starting at zero and never change.
type Registry struct {
	mu      sync.RWMutex
	samples []Sample
	byName  map[string]int
}

// NewRegistry creates a new empty sample registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// FromPaths creates a registry holding paths in order.
func FromPaths(paths []string) *Registry {
	r := NewRegistry()
	for _, p := range paths {
		r.Register(p)
	}
	return r
}

// Register adds the sample at path and returns its index. The sample's
// name is the file name without extension.
func (r *Registry) Register(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.samples)
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	r.samples = append(r.samples, Sample{Index: idx, Name: name, Path: path})
	if _, dup := r.byName[name]; !dup {
		r.byName[name] = idx
	}
	return idx
}

// Get retrieves a sample by index.
func (r *Registry) Get(index int) (Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.samples) {
		return Sample{}, false
	}
	return r.samples[index], true
}

// Path returns the file of the sample at index.
func (r *Registry) Path(index int) (string, bool) {
	s, ok := r.Get(index)
	return s.Path, ok
}

// Lookup returns the index of the first sample registered under name.
func (r *Registry) Lookup(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	return idx, ok
}

// Len returns the number of registered samples.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.samples)
}

// All returns all registered samples in index order.
func (r *Registry) All() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}
