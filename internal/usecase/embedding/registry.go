// Package embedding manages embedding provider construction and decoration.
package embedding

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/domain"
)

// ProviderConfig holds the settings a provider factory needs.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// Factory builds an embedder from provider settings.
type Factory func(cfg ProviderConfig, logger *zap.Logger) (domain.Embedder, error)

// Registry maps provider names to factories. Providers are enabled purely by
// configuration key, never by build flags.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named provider factory. Re-registering a name replaces it.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds an embedder for the named provider.
func (r *Registry) New(name string, cfg ProviderConfig, logger *zap.Logger) (domain.Embedder, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q (registered: %v)", name, r.Names())
	}
	return f(cfg, logger)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
