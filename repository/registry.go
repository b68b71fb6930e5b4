package repository

import (
	"sync"

	"github.com/lostatc/reversion/reversionerrors"
)

// Registry is a process-wide set of storage providers
// (C11, spec.md §4.11). OpenRepository delegates to the first registered
// provider whose Check reports true.
type Registry struct {
	mu        sync.Mutex
	providers []Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider, first-registered taking priority in
// OpenRepository/FindByCheck ties.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// ByName returns the registered provider with the given name.
func (r *Registry) ByName(name string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// FindByCheck returns the first registered provider whose Check(path)
// reports true.
func (r *Registry) FindByCheck(path string) (Provider, bool) {
	r.mu.Lock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.Unlock()
	for _, p := range providers {
		if p.Check(path) {
			return p, true
		}
	}
	return nil, false
}

// OpenRepository implements spec.md §4.11
// "StorageProvider.open_repository(path)": delegates to the first
// provider whose check returns true, or fails with
// ErrIncompatibleRepository.
func (r *Registry) OpenRepository(path string) (*Repository, error) {
	p, ok := r.FindByCheck(path)
	if !ok {
		return nil, reversionerrors.ErrIncompatibleRepository
	}
	return p.Open(path)
}

// DefaultRegistry is pre-populated with the db-v1 provider, reversion's
// only built-in storage backend.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(NewDBProvider())
}

// Open opens the repository at path using DefaultRegistry.
func Open(path string) (*Repository, error) {
	return DefaultRegistry.OpenRepository(path)
}

// Create creates a fresh db-v1 repository at path.
func Create(path string, rawConfig map[string]string) (*Repository, error) {
	return NewDBProvider().Create(path, rawConfig)
}
