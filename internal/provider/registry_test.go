package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inference-gateway/internal/models"
)

type stubProvider struct {
	name      string
	available bool
	models    []models.ModelConfig
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Models() []models.ModelConfig { return s.models }

func (s *stubProvider) Model(name string) (models.ModelConfig, bool) {
	for _, m := range s.models {
		if m.Name == name {
			return m, true
		}
	}
	return models.ModelConfig{}, false
}
func (s *stubProvider) ProcessRequest(context.Context, string, *models.UnifiedRequest) (*models.UnifiedResponse, error) {
	return nil, nil
}
func (s *stubProvider) MapParameters(*models.UnifiedRequest, models.ModelConfig) map[string]any {
	return nil
}

func TestRegistryPreservesOrder(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{name: "openai", available: true}))
	require.NoError(t, registry.Register(&stubProvider{name: "google"}))

	assert.Equal(t, []string{"openai", "google"}, registry.Names())

	providers := registry.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "openai", providers[0].Name())
	assert.Equal(t, "google", providers[1].Name())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{name: "openai"}))

	err := registry.Register(&stubProvider{name: "openai"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateProvider)
}

func TestRegistryRejectsNil(t *testing.T) {
	registry := NewRegistry()
	require.Error(t, registry.Register(nil))
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{name: "openai"}))

	p, ok := registry.Provider("openai")
	assert.True(t, ok)
	assert.Equal(t, "openai", p.Name())

	_, ok = registry.Provider("google")
	assert.False(t, ok)
}

func TestRegistryStatus(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{name: "openai", available: true}))
	require.NoError(t, registry.Register(&stubProvider{name: "google"}))

	assert.Equal(t, map[string]bool{"openai": true, "google": false}, registry.Status())
}
