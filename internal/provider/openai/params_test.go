package openai

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inference-gateway/internal/config"
	"inference-gateway/internal/models"
)

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func testProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(config.ProviderConfig{Name: "openai", APIKey: "test-key"}, &http.Client{})
	require.NoError(t, err)
	return p
}

func TestMapParametersGPT4o(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-4o")
	require.True(t, ok)

	req := &models.UnifiedRequest{
		Prompt:           "x",
		MaxTokens:        intPtr(500),
		Temperature:      float64Ptr(0.7),
		TopP:             float64Ptr(0.9),
		FrequencyPenalty: float64Ptr(0.5),
		PresencePenalty:  float64Ptr(0.1),
		StopSequences:    []string{"END"},
	}

	params := mapParameters(req, cfg)
	assert.Equal(t, map[string]any{
		"max_tokens":        500,
		"temperature":       0.7,
		"top_p":             0.9,
		"frequency_penalty": 0.5,
		"presence_penalty":  0.1,
		"stop":              []string{"END"},
	}, params)
}

func TestMapParametersPreservesExplicitZero(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-4o")
	require.True(t, ok)

	req := &models.UnifiedRequest{
		Prompt:           "x",
		Temperature:      float64Ptr(0),
		FrequencyPenalty: float64Ptr(0),
	}

	params := mapParameters(req, cfg)
	assert.Equal(t, 0.0, params["temperature"])
	assert.Equal(t, 0.0, params["frequency_penalty"])
}

func TestMapParametersUnsetParametersAreOmitted(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-4o")
	require.True(t, ok)

	params := mapParameters(&models.UnifiedRequest{Prompt: "x"}, cfg)
	assert.Empty(t, params)
}

func TestMapParametersGPT5(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-5")
	require.True(t, ok)

	req := &models.UnifiedRequest{
		Prompt:      "x",
		MaxTokens:   intPtr(200),
		Temperature: float64Ptr(0.7),
		TopP:        float64Ptr(0.9),
	}

	params := mapParameters(req, cfg)

	// Renamed token limit, dropped sampling knobs, injected default effort.
	assert.Equal(t, map[string]any{
		"max_completion_tokens": 200,
		"reasoning_effort":      "medium",
	}, params)
}

func TestMapParametersExplicitEffortOverridesDefault(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-5")
	require.True(t, ok)

	req := &models.UnifiedRequest{Prompt: "x", ReasoningEffort: "high"}
	params := mapParameters(req, cfg)
	assert.Equal(t, "high", params["reasoning_effort"])
}

func TestMapParametersEffortDroppedForNonReasoningModel(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-4o")
	require.True(t, ok)

	req := &models.UnifiedRequest{Prompt: "x", ReasoningEffort: "high"}
	params := mapParameters(req, cfg)
	_, present := params["reasoning_effort"]
	assert.False(t, present)
}

func TestMapParametersIsIdempotent(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("gpt-5")
	require.True(t, ok)

	req := &models.UnifiedRequest{Prompt: "x", MaxTokens: intPtr(100)}
	first := mapParameters(req, cfg)
	second := mapParameters(req, cfg)
	assert.Equal(t, first, second)
}

func TestMapParametersStream(t *testing.T) {
	p := testProvider(t)

	gpt4o, ok := p.Model("gpt-4o")
	require.True(t, ok)
	dalle, ok := p.Model("dall-e-3")
	require.True(t, ok)

	params := mapParameters(&models.UnifiedRequest{Prompt: "x", Stream: true}, gpt4o)
	assert.Equal(t, true, params["stream"])

	params = mapParameters(&models.UnifiedRequest{Prompt: "x"}, gpt4o)
	_, present := params["stream"]
	assert.False(t, present)

	params = mapParameters(&models.UnifiedRequest{Prompt: "x", Stream: true}, dalle)
	_, present = params["stream"]
	assert.False(t, present)
}

func TestMapParametersDallE3DropsTokenLimit(t *testing.T) {
	p := testProvider(t)
	cfg, ok := p.Model("dall-e-3")
	require.True(t, ok)

	req := &models.UnifiedRequest{Prompt: "x", MaxTokens: intPtr(100)}
	params := mapParameters(req, cfg)
	assert.Empty(t, params)
}
