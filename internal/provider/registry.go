package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"inference-gateway/internal/models"
)

// ErrUnknownProvider indicates the requested provider is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrUnknownModel indicates the requested model is not in a provider's catalog.
var ErrUnknownModel = errors.New("unknown model")

// ErrDuplicateProvider indicates an attempt to register the same provider twice.
var ErrDuplicateProvider = errors.New("provider already registered")

// ErrProviderUnavailable indicates a provider is registered but not usable,
// typically because no API key is configured.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrIncompatibleRequest indicates a request needs a capability the resolved
// model does not have.
var ErrIncompatibleRequest = errors.New("request not compatible with model")

// Provider is the capability interface every vendor adapter implements. The
// name is an explicit field of the adapter, never derived from its type.
type Provider interface {
	// Name returns the registry name of the provider ("openai", "google").
	Name() string

	// Models returns the provider's catalog in declaration order.
	Models() []models.ModelConfig

	// Model looks up a single catalog entry by bare model name.
	Model(name string) (models.ModelConfig, bool)

	// ProcessRequest dispatches one unified request against the named model
	// and normalizes the vendor response.
	ProcessRequest(ctx context.Context, modelName string, req *models.UnifiedRequest) (*models.UnifiedResponse, error)

	// MapParameters translates generic generation parameters into the wire
	// fields of the given model. Pure: no I/O, deterministic output.
	MapParameters(req *models.UnifiedRequest, cfg models.ModelConfig) map[string]any

	// Available reports whether the provider is configured for use.
	Available() bool
}

// Registry holds provider adapters in registration order. It is populated at
// startup and read-only afterwards; concurrent reads need no coordination,
// but the lock keeps registration safe if wiring ever becomes lazy.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Provider
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Provider),
	}
}

// Register adds a provider. Registration order is preserved and drives
// auto-selection preference.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Name())
	}

	r.byName[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Provider returns the adapter registered under name.
func (r *Registry) Provider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	return p, ok
}

// Providers returns all adapters in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Status reports availability per registered provider.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]bool, len(r.order))
	for name, p := range r.byName {
		status[name] = p.Available()
	}
	return status
}
