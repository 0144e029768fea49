package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalogYAML = `
provider: openai
models:
  - name: gpt-4o
    display_name: GPT-4o
    provider: openai
    capabilities:
      text_generation: true
      vision: true
    parameter_mapping:
      max_tokens_param: max_tokens
      temperature_param: temperature
      top_p_param: top_p
    supported_parameters:
      - max_tokens
      - temperature
  - name: gpt-5
    display_name: GPT-5
    provider: openai
    capabilities:
      text_generation: true
      reasoning: true
    parameter_mapping:
      max_tokens_param: max_completion_tokens
      temperature_param: null
      top_p_param: null
      custom_params:
        reasoning_effort: medium
    supported_parameters:
      - max_completion_tokens
      - reasoning_effort
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(validCatalogYAML))
	require.NoError(t, err)

	assert.Equal(t, "openai", catalog.Provider)
	require.Len(t, catalog.Models, 2)

	gpt4o := catalog.Models[0]
	require.NotNil(t, gpt4o.ParameterMapping.TemperatureParam)
	assert.Equal(t, "temperature", *gpt4o.ParameterMapping.TemperatureParam)
	assert.True(t, gpt4o.SupportsParameter("max_tokens"))
	assert.False(t, gpt4o.SupportsParameter("reasoning_effort"))

	gpt5 := catalog.Models[1]
	assert.Nil(t, gpt5.ParameterMapping.TemperatureParam)
	assert.Nil(t, gpt5.ParameterMapping.TopPParam)
	assert.Equal(t, "max_completion_tokens", gpt5.ParameterMapping.MaxTokensParam)
	assert.Equal(t, "medium", gpt5.ParameterMapping.CustomParams["reasoning_effort"])
}

func TestParseCatalogRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing provider",
			yaml:    "models:\n  - name: m\n    provider: x\n",
			wantErr: "missing a provider",
		},
		{
			name:    "no models",
			yaml:    "provider: openai\n",
			wantErr: "declares no models",
		},
		{
			name:    "provider mismatch",
			yaml:    "provider: openai\nmodels:\n  - name: m\n    provider: google\n",
			wantErr: "declares provider",
		},
		{
			name:    "duplicate model",
			yaml:    "provider: openai\nmodels:\n  - name: m\n    provider: openai\n  - name: m\n    provider: openai\n",
			wantErr: "declared twice",
		},
		{
			name:    "unnamed model",
			yaml:    "provider: openai\nmodels:\n  - provider: openai\n",
			wantErr: "unnamed model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCapabilities(t *testing.T) {
	textOnly := ModelConfig{Name: "text-model", Capabilities: ModelCapabilities{TextGeneration: true}}
	visionModel := ModelConfig{Name: "vision-model", Capabilities: ModelCapabilities{TextGeneration: true, Vision: true}}
	imageGen := ModelConfig{Name: "gen-model", Capabilities: ModelCapabilities{ImageGeneration: true}}
	imageEditor := ModelConfig{Name: "edit-model", Capabilities: ModelCapabilities{ImageGeneration: true, ImageEditing: true}}

	tests := []struct {
		name        string
		requestType RequestType
		cfg         ModelConfig
		wantErr     bool
	}{
		{"text on text model", RequestTextGeneration, textOnly, false},
		{"document on text model", RequestDocumentAnalysis, textOnly, false},
		{"vision on text model", RequestVisionAnalysis, textOnly, true},
		{"vision on vision model", RequestVisionAnalysis, visionModel, false},
		{"generation on text model", RequestImageGeneration, textOnly, true},
		{"generation on gen model", RequestImageGeneration, imageGen, false},
		{"edit on gen model", RequestImageEdit, imageGen, true},
		{"edit on editor model", RequestImageEdit, imageEditor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapabilities(tt.requestType, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSupportsRequestType(t *testing.T) {
	caps := ModelCapabilities{TextGeneration: true, Vision: true}

	assert.True(t, SupportsRequestType(caps, RequestTextGeneration))
	assert.True(t, SupportsRequestType(caps, RequestDocumentAnalysis))
	assert.True(t, SupportsRequestType(caps, RequestVisionAnalysis))
	assert.False(t, SupportsRequestType(caps, RequestImageGeneration))
	assert.False(t, SupportsRequestType(caps, RequestImageEdit))
	assert.False(t, SupportsRequestType(caps, RequestType("bogus")))

	editor := ModelCapabilities{ImageGeneration: true, ImageEditing: true}
	assert.True(t, SupportsRequestType(editor, RequestImageGeneration))
	assert.True(t, SupportsRequestType(editor, RequestImageEdit))
}
