// Package providers implements the ProviderAdapter contract (C4): a narrow
// interface satisfied by OAuth brokerage clients, API-key aggregator
// clients, and file-import parsers, resolved at runtime by slug through a
// Registry. Adapters translate provider-specific wire formats into the
// normalized ProviderAccountData/ProviderTransactionData/ProviderHoldingData
// shapes; the enum-level normalization (account type, transaction
// type/subtype/status) happens in the command handlers, not here.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dashtam/provider-sync/internal/ports"
)

// Registry is a read-mostly, runtime-registered ProviderFactory. Adapters
// are registered once at startup (see internal/wiring) and looked up by
// slug on every command/query invocation.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ports.ProviderAdapter
}

// NewRegistry returns an empty Registry. Register adapters before serving
// traffic; GetProvider on an unregistered slug always fails.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ports.ProviderAdapter)}
}

// Register binds slug to adapter, overwriting any previous binding. It
// takes the write lock, so it is safe to call concurrently with lookups;
// internal/wiring registers every adapter once at startup.
func (r *Registry) Register(slug string, adapter ports.ProviderAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[slug] = adapter
}

// GetProvider implements ports.ProviderFactory.
func (r *Registry) GetProvider(slug string) (ports.ProviderAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[slug]
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", slug)
	}
	return adapter, nil
}

// Supports implements ports.ProviderFactory.
func (r *Registry) Supports(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[slug]
	return ok
}

// ListSupported implements ports.ProviderFactory.
func (r *Registry) ListSupported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.adapters))
	for slug := range r.adapters {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
