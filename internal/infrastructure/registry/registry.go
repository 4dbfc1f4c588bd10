// Package registry maps store types to provider implementations.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// Registry is a concurrency-safe ports.ProviderRegistry. Providers register
// at startup; lookups dominate after that.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.StoreType]ports.Provider
}

var _ ports.ProviderRegistry = (*Registry)(nil)

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		providers: make(map[domain.StoreType]ports.Provider),
	}
}

// Register adds a provider under its declared type, replacing any previous
// registration for that type.
func (r *Registry) Register(p ports.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Type()] = p
}

// Resolve returns the provider for a store type.
func (r *Registry) Resolve(storeType domain.StoreType) (ports.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[storeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotFound, storeType)
	}
	return p, nil
}

// CreateProvider resolves a provider and, when credentials are supplied,
// rejects any payload whose shape does not match the requested type. Nil
// credentials are allowed for the pre-authorization phase.
func (r *Registry) CreateProvider(storeType domain.StoreType, creds *domain.ProviderCredentials) (ports.Provider, error) {
	p, err := r.Resolve(storeType)
	if err != nil {
		return nil, err
	}

	if creds != nil {
		if creds.Provider != storeType {
			return nil, fmt.Errorf("%w: credentials are for %q, provider is %q",
				domain.ErrCredentialMismatch, creds.Provider, storeType)
		}
		if err := creds.Validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Types returns the registered store types in stable order.
func (r *Registry) Types() []domain.StoreType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.StoreType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
