package deployment

import (
	"slices"
	"sync"
)

// Factory constructs the adapter registered under a deployment name.
// It runs until it first succeeds; the adapter it returns is then shared
// for the lifetime of the process. A failed build is retried on the next
// Resolve, so credentials that appear later make the deployment available.
type Factory func() (Adapter, error)

// registration holds a factory and its lazily constructed adapter.
type registration struct {
	factory Factory

	mu      sync.Mutex
	adapter Adapter
}

func newRegistration(factory Factory) *registration {
	return &registration{factory: factory}
}

// build returns the cached adapter or runs the factory. Only successful
// builds are cached.
func (e *registration) build() (Adapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.adapter != nil {
		return e.adapter, nil
	}
	adapter, err := e.factory()
	if err != nil {
		return nil, err
	}
	e.adapter = adapter
	return adapter, nil
}

// Registry maps deployment names to adapters.
//
// It is populated at startup and read afterwards; reads may happen from any
// number of goroutines.
type Registry struct {
	entries map[string]*registration
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registration),
	}
}

// Register associates name with factory. The last registration for a name wins.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = newRegistration(factory)
}

// RegisterAdapter registers an already constructed adapter under its
// descriptor name.
func (r *Registry) RegisterAdapter(adapter Adapter) {
	r.Register(adapter.Descriptor().Name, func() (Adapter, error) {
		return adapter, nil
	})
}

// Resolve returns the adapter registered under name.
//
// Fails with ErrUnknownDeployment if name was never registered, and with
// ErrDeploymentUnavailable if the adapter cannot be built or reports that
// it is not available.
func (r *Registry) Resolve(name string) (Adapter, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &DeploymentError{Name: name, Err: ErrUnknownDeployment}
	}

	adapter, err := entry.build()
	if err != nil {
		return nil, &DeploymentError{Name: name, Reason: err.Error(), Err: ErrDeploymentUnavailable}
	}
	if adapter == nil {
		return nil, &DeploymentError{Name: name, Reason: "factory returned no adapter", Err: ErrDeploymentUnavailable}
	}
	if !adapter.IsAvailable() {
		return nil, &DeploymentError{Name: name, Reason: "missing configuration or credentials", Err: ErrDeploymentUnavailable}
	}

	return adapter, nil
}

// Names returns every registered deployment name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListAvailable returns the sorted names of deployments whose adapters
// report that they are available.
func (r *Registry) ListAvailable() []string {
	var available []string
	for _, name := range r.Names() {
		if _, err := r.Resolve(name); err == nil {
			available = append(available, name)
		}
	}
	return available
}

// Descriptors returns the descriptors of every available deployment, sorted by name.
// The descriptor name is the registry name, which may differ from the
// adapter's own default name.
func (r *Registry) Descriptors() []Descriptor {
	var out []Descriptor
	for _, name := range r.Names() {
		adapter, err := r.Resolve(name)
		if err != nil {
			continue
		}
		d := adapter.Descriptor()
		d.Name = name
		d.Models = adapter.ListModels()
		out = append(out, d)
	}
	return out
}
