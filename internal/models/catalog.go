package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelCapabilities flags the features a model supports. Drives request-type
// validation and auto-selection.
type ModelCapabilities struct {
	TextGeneration   bool `yaml:"text_generation" json:"text_generation"`
	Vision           bool `yaml:"vision" json:"vision"`
	ImageGeneration  bool `yaml:"image_generation" json:"image_generation"`
	ImageEditing     bool `yaml:"image_editing" json:"image_editing"`
	FunctionCalling  bool `yaml:"function_calling" json:"function_calling"`
	Streaming        bool `yaml:"streaming" json:"streaming"`
	JSONMode         bool `yaml:"json_mode" json:"json_mode"`
	Reasoning        bool `yaml:"reasoning" json:"reasoning"`
	MaxContextLength int  `yaml:"max_context_length" json:"max_context_length,omitempty"`
}

// ParameterMapping translates generic parameter names into the field names a
// model's wire format expects. A nil pointer means the model has no notion of
// the parameter and the value must be dropped (with a warning).
type ParameterMapping struct {
	MaxTokensParam   string         `yaml:"max_tokens_param"`
	TemperatureParam *string        `yaml:"temperature_param"`
	TopPParam        *string        `yaml:"top_p_param"`
	CustomParams     map[string]any `yaml:"custom_params"`
}

// ModelConfig is the static descriptor for one model. Built once at provider
// registration and treated as immutable afterwards.
type ModelConfig struct {
	Name                string            `yaml:"name"`
	DisplayName         string            `yaml:"display_name"`
	Provider            string            `yaml:"provider"`
	Capabilities        ModelCapabilities `yaml:"capabilities"`
	ParameterMapping    ParameterMapping  `yaml:"parameter_mapping"`
	SupportedParameters []string          `yaml:"supported_parameters"`
	CostPer1KTokens     float64           `yaml:"cost_per_1k_tokens"`
	ContextWindow       int               `yaml:"context_window"`
}

// SupportsParameter reports whether the model accepts the named wire parameter.
func (m ModelConfig) SupportsParameter(name string) bool {
	for _, p := range m.SupportedParameters {
		if p == name {
			return true
		}
	}
	return false
}

// Catalog is an ordered set of model descriptors for one provider. Order
// matters: auto-selection picks the first capability-matching entry.
type Catalog struct {
	Provider string        `yaml:"provider"`
	Models   []ModelConfig `yaml:"models"`
}

// ParseCatalog decodes an embedded YAML catalog and sanity-checks it.
func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse model catalog: %w", err)
	}

	if catalog.Provider == "" {
		return Catalog{}, fmt.Errorf("model catalog is missing a provider name")
	}
	if len(catalog.Models) == 0 {
		return Catalog{}, fmt.Errorf("model catalog for %q declares no models", catalog.Provider)
	}

	seen := make(map[string]bool, len(catalog.Models))
	for _, m := range catalog.Models {
		if m.Name == "" {
			return Catalog{}, fmt.Errorf("model catalog for %q contains an unnamed model", catalog.Provider)
		}
		if m.Provider != catalog.Provider {
			return Catalog{}, fmt.Errorf("model %q declares provider %q, expected %q", m.Name, m.Provider, catalog.Provider)
		}
		if seen[m.Name] {
			return Catalog{}, fmt.Errorf("model %q is declared twice in the %q catalog", m.Name, catalog.Provider)
		}
		seen[m.Name] = true
	}

	return catalog, nil
}

// ValidateCapabilities rejects a request whose classified type needs a
// capability the model does not have. Called before any network dispatch.
func ValidateCapabilities(requestType RequestType, cfg ModelConfig) error {
	caps := cfg.Capabilities
	switch requestType {
	case RequestVisionAnalysis:
		if !caps.Vision {
			return fmt.Errorf("model %s does not support vision analysis", cfg.Name)
		}
	case RequestImageGeneration:
		if !caps.ImageGeneration {
			return fmt.Errorf("model %s does not support image generation", cfg.Name)
		}
	case RequestImageEdit:
		if !caps.ImageGeneration {
			return fmt.Errorf("model %s does not support image generation (required for image editing)", cfg.Name)
		}
		if !caps.ImageEditing {
			return fmt.Errorf("model %s does not support image editing", cfg.Name)
		}
	}
	return nil
}

// SupportsRequestType reports whether a model can serve the given request
// type. Used when selecting models for auto mode and fallback retries.
func SupportsRequestType(caps ModelCapabilities, requestType RequestType) bool {
	switch requestType {
	case RequestTextGeneration, RequestDocumentAnalysis:
		return caps.TextGeneration
	case RequestVisionAnalysis:
		return caps.Vision
	case RequestImageGeneration:
		return caps.ImageGeneration
	case RequestImageEdit:
		return caps.ImageGeneration && caps.ImageEditing
	default:
		return false
	}
}
