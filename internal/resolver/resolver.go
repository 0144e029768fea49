package resolver

import (
	"fmt"
	"strings"

	"inference-gateway/internal/models"
	"inference-gateway/internal/provider"
)

// ParseModelName splits a "provider/model" registry name. Model names may
// themselves contain slashes, so only the first separator is significant.
func ParseModelName(name string) (providerName, modelName string, err error) {
	providerName, modelName, found := strings.Cut(name, "/")
	if !found {
		return "", "", fmt.Errorf("model name %q must use the provider/model form", name)
	}
	if providerName == "" || modelName == "" {
		return "", "", fmt.Errorf("model name %q has an empty provider or model part", name)
	}
	return providerName, modelName, nil
}

// Resolve maps a "provider/model" name to a registered adapter and its catalog
// entry. Error messages enumerate what is registered so a caller can correct
// the request without a second round trip.
func Resolve(registry *provider.Registry, name string) (provider.Provider, models.ModelConfig, error) {
	providerName, modelName, err := ParseModelName(name)
	if err != nil {
		return nil, models.ModelConfig{}, err
	}

	p, ok := registry.Provider(providerName)
	if !ok {
		return nil, models.ModelConfig{}, fmt.Errorf("%w: %q (registered: %s)",
			provider.ErrUnknownProvider, providerName, strings.Join(registry.Names(), ", "))
	}

	cfg, ok := p.Model(modelName)
	if !ok {
		available := make([]string, 0, len(p.Models()))
		for _, m := range p.Models() {
			available = append(available, m.Name)
		}
		return nil, models.ModelConfig{}, fmt.Errorf("%w: %q for provider %s (available: %s)",
			provider.ErrUnknownModel, modelName, providerName, strings.Join(available, ", "))
	}

	return p, cfg, nil
}

// ModelInfo is a catalog entry annotated with its registry name.
type ModelInfo struct {
	Name         string                   `json:"name"`
	DisplayName  string                   `json:"display_name"`
	Provider     string                   `json:"provider"`
	Available    bool                     `json:"available"`
	Capabilities models.ModelCapabilities `json:"capabilities"`
}

// ListModels enumerates every registered model in provider registration
// order, under its "provider/model" registry name.
func ListModels(registry *provider.Registry) []ModelInfo {
	var result []ModelInfo
	for _, p := range registry.Providers() {
		for _, m := range p.Models() {
			result = append(result, ModelInfo{
				Name:         p.Name() + "/" + m.Name,
				DisplayName:  m.DisplayName,
				Provider:     p.Name(),
				Available:    p.Available(),
				Capabilities: m.Capabilities,
			})
		}
	}
	return result
}
