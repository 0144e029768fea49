package factory

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"inference-gateway/internal/config"
	"inference-gateway/internal/provider"
	googleProvider "inference-gateway/internal/provider/google"
	openaiProvider "inference-gateway/internal/provider/openai"
)

const (
	defaultHTTPTimeout     = 120 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// RegisterConfiguredProviders constructs adapters for every configured
// provider and stores them in the registry. Configuration order is preserved
// and drives auto-selection preference.
func RegisterConfiguredProviders(cfg config.Config, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	for _, providerCfg := range cfg.Providers {
		adapter, err := newProvider(providerCfg)
		if err != nil {
			return fmt.Errorf("initialise %s provider: %w", providerCfg.Name, err)
		}
		if err := registry.Register(adapter); err != nil {
			return fmt.Errorf("register %s provider: %w", providerCfg.Name, err)
		}
	}

	return nil
}

func newProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	client := newHTTPClient(defaultHTTPTimeout)

	switch cfg.Name {
	case "openai":
		return openaiProvider.New(cfg, client)
	case "google":
		return googleProvider.New(cfg, client)
	default:
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, cfg.Name)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
