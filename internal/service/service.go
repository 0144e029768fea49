package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"inference-gateway/internal/config"
	"inference-gateway/internal/models"
	"inference-gateway/internal/provider"
	"inference-gateway/internal/resolver"
)

// Service orchestrates unified requests: classification, model selection,
// capability validation, provider dispatch and fallback recovery.
type Service struct {
	cfg      config.Config
	registry *provider.Registry
}

// New constructs a service over a populated registry.
func New(cfg config.Config, registry *provider.Registry) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
	}
}

// Registry exposes the underlying provider registry.
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

// ProcessRequest runs one unified request end to end. When the primary
// provider fails, each configured fallback provider is tried once; if every
// fallback fails too, the primary error is returned.
func (s *Service) ProcessRequest(ctx context.Context, req *models.UnifiedRequest) (*models.UnifiedResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestType := models.DetermineRequestType(req.Attachments, req.Format())

	p, cfg, err := s.selectModel(req, requestType)
	if err != nil {
		return nil, err
	}

	if !p.Available() {
		err := fmt.Errorf("%w: %s has no API key configured", provider.ErrProviderUnavailable, p.Name())
		return s.recoverWithFallbacks(ctx, req, requestType, p.Name(), err)
	}

	if err := models.ValidateCapabilities(requestType, cfg); err != nil {
		wrapped := fmt.Errorf("%w: %v", provider.ErrIncompatibleRequest, err)
		return s.recoverWithFallbacks(ctx, req, requestType, p.Name(), wrapped)
	}

	resp, err := p.ProcessRequest(ctx, cfg.Name, req)
	if err != nil {
		slog.Warn("provider request failed",
			"provider", p.Name(), "model", cfg.Name, "error", err)
		return s.recoverWithFallbacks(ctx, req, requestType, p.Name(), err)
	}

	stampMetadata(resp, requestType)
	return resp, nil
}

// Chat is a convenience wrapper for text generation, optionally with
// attachments for vision or document analysis.
func (s *Service) Chat(ctx context.Context, prompt, model string, attachments ...models.Attachment) (*models.UnifiedResponse, error) {
	return s.ProcessRequest(ctx, &models.UnifiedRequest{
		Prompt:      prompt,
		Model:       model,
		Attachments: attachments,
	})
}

// GenerateImage is a convenience wrapper for image generation. Reference
// images turn the request into an edit.
func (s *Service) GenerateImage(ctx context.Context, prompt, model string, references ...models.Attachment) (*models.UnifiedResponse, error) {
	return s.ProcessRequest(ctx, &models.UnifiedRequest{
		Prompt:         prompt,
		Model:          model,
		Attachments:    references,
		ResponseFormat: models.FormatImage,
	})
}

// AvailableModels enumerates registered models under their registry names.
func (s *Service) AvailableModels() []resolver.ModelInfo {
	return resolver.ListModels(s.registry)
}

// ProviderStatus reports availability per registered provider.
func (s *Service) ProviderStatus() map[string]bool {
	return s.registry.Status()
}

// selectModel resolves a pinned "provider/model" name, or walks the provider
// preference order to find the first model able to serve the request type.
func (s *Service) selectModel(req *models.UnifiedRequest, requestType models.RequestType) (provider.Provider, models.ModelConfig, error) {
	if req.Model != "" && req.Model != models.AutoModel {
		return resolver.Resolve(s.registry, req.Model)
	}

	for _, p := range s.preferredProviders() {
		if !p.Available() {
			continue
		}
		for _, cfg := range p.Models() {
			if models.SupportsRequestType(cfg.Capabilities, requestType) {
				return p, cfg, nil
			}
		}
	}

	return nil, models.ModelConfig{}, fmt.Errorf("no available model supports %s requests", requestType)
}

// preferredProviders returns the registry in registration order, with the
// configured default provider moved to the front.
func (s *Service) preferredProviders() []provider.Provider {
	providers := s.registry.Providers()
	defaultName := s.cfg.DefaultProvider
	if defaultName == "" || defaultName == "auto" {
		return providers
	}

	ordered := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Name() == defaultName {
			ordered = append(ordered, p)
		}
	}
	for _, p := range providers {
		if p.Name() != defaultName {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// recoverWithFallbacks tries each configured fallback provider once, in
// order, skipping the provider that already failed. The original error is
// preserved when every fallback is exhausted.
func (s *Service) recoverWithFallbacks(ctx context.Context, req *models.UnifiedRequest, requestType models.RequestType, failedProvider string, original error) (*models.UnifiedResponse, error) {
	for _, name := range s.cfg.FallbackProviders {
		if name == failedProvider {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		p, ok := s.registry.Provider(name)
		if !ok || !p.Available() {
			continue
		}

		cfg, ok := fallbackModel(p, requestType)
		if !ok {
			continue
		}

		slog.Info("retrying with fallback provider",
			"provider", name, "model", cfg.Name, "request_type", requestType)

		resp, err := p.ProcessRequest(ctx, cfg.Name, req)
		if err != nil {
			slog.Warn("fallback provider failed", "provider", name, "error", err)
			continue
		}

		stampMetadata(resp, requestType)
		resp.Metadata["fallback_used"] = true
		return resp, nil
	}

	return nil, original
}

func fallbackModel(p provider.Provider, requestType models.RequestType) (models.ModelConfig, bool) {
	for _, cfg := range p.Models() {
		if models.SupportsRequestType(cfg.Capabilities, requestType) {
			return cfg, true
		}
	}
	return models.ModelConfig{}, false
}

func stampMetadata(resp *models.UnifiedResponse, requestType models.RequestType) {
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata["request_id"] = uuid.NewString()
	resp.Metadata["request_type"] = string(requestType)
}

// IsCallerError reports whether err stems from a caller mistake rather than
// an upstream failure. The HTTP layer maps these to 4xx responses.
func IsCallerError(err error) bool {
	return errors.Is(err, provider.ErrUnknownProvider) ||
		errors.Is(err, provider.ErrUnknownModel) ||
		errors.Is(err, provider.ErrIncompatibleRequest)
}
