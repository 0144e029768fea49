package openai

import (
	"log/slog"

	"inference-gateway/internal/models"
)

// mapParameters translates generic generation parameters into the wire fields
// of one OpenAI model. Values the model has no notion of are dropped with a
// warning rather than rejected; an explicit zero is forwarded like any other
// value.
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

	if req.FrequencyPenalty != nil {
		if cfg.SupportsParameter("frequency_penalty") {
			params["frequency_penalty"] = *req.FrequencyPenalty
		} else {
			slog.Warn("dropping frequency_penalty, model does not accept it", "model", cfg.Name)
		}
	}

	if req.PresencePenalty != nil {
		if cfg.SupportsParameter("presence_penalty") {
			params["presence_penalty"] = *req.PresencePenalty
		} else {
			slog.Warn("dropping presence_penalty, model does not accept it", "model", cfg.Name)
		}
	}

	if len(req.StopSequences) > 0 {
		if cfg.SupportsParameter("stop") {
			params["stop"] = req.StopSequences
		} else {
			slog.Warn("dropping stop sequences, model does not accept them", "model", cfg.Name)
		}
	}

	if req.ReasoningEffort != "" {
		if cfg.SupportsParameter("reasoning_effort") {
			params["reasoning_effort"] = req.ReasoningEffort
		} else {
			slog.Warn("dropping reasoning_effort, model is not a reasoning model", "model", cfg.Name)
		}
	}

	if req.Stream {
		if cfg.SupportsParameter("stream") {
			params["stream"] = true
		} else {
			slog.Warn("dropping stream, model does not support it", "model", cfg.Name)
		}
	}

	// Catalog defaults apply only where the caller supplied nothing.
	for key, value := range mapping.CustomParams {
		if _, exists := params[key]; !exists {
			params[key] = value
		}
	}

	return params
}
