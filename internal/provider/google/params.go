package google

import (
	"log/slog"

	"inference-gateway/internal/models"
)

// mapParameters translates generic generation parameters into generationConfig
// fields. Gemini has no penalty or reasoning effort knobs, so those are
// dropped with a warning; an explicit zero is forwarded like any other value.
func mapParameters(req *models.UnifiedRequest, cfg models.ModelConfig) map[string]any {
	mapping := cfg.ParameterMapping
	params := make(map[string]any)

	if req.MaxTokens != nil {
		if mapping.MaxTokensParam != "" {
			params[mapping.MaxTokensParam] = *req.MaxTokens
		} else {
			slog.Warn("dropping max tokens, model has no token limit parameter", "model", cfg.Name)
		}
	}

	if req.Temperature != nil {
		if mapping.TemperatureParam != nil {
			params[*mapping.TemperatureParam] = *req.Temperature
		} else {
			slog.Warn("dropping temperature, model does not accept it", "model", cfg.Name)
		}
	}

	if req.TopP != nil {
		if mapping.TopPParam != nil {
			params[*mapping.TopPParam] = *req.TopP
		} else {
			slog.Warn("dropping top_p, model does not accept it", "model", cfg.Name)
		}
	}

	if len(req.StopSequences) > 0 {
		if cfg.SupportsParameter("stopSequences") {
			params["stopSequences"] = req.StopSequences
		} else {
			slog.Warn("dropping stop sequences, model does not accept them", "model", cfg.Name)
		}
	}

	if req.Stream {
		if cfg.SupportsParameter("stream") {
			params["stream"] = true
		} else {
			slog.Warn("dropping stream, model does not support it", "model", cfg.Name)
		}
	}

	if req.FrequencyPenalty != nil {
		slog.Warn("dropping frequency_penalty, gemini does not accept it", "model", cfg.Name)
	}
	if req.PresencePenalty != nil {
		slog.Warn("dropping presence_penalty, gemini does not accept it", "model", cfg.Name)
	}
	if req.ReasoningEffort != "" {
		slog.Warn("dropping reasoning_effort, gemini does not accept it", "model", cfg.Name)
	}

	for key, value := range mapping.CustomParams {
		if _, exists := params[key]; !exists {
			params[key] = value
		}
	}

	return params
}
