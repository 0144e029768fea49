package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownProviders lists the provider adapters this build ships.
var KnownProviders = []string{"openai", "google"}

// Config represents the application configuration parsed from YAML.
// Providers is an ordered list: auto-selection walks it front to back, so the
// declaration order in the file is the selection preference.
type Config struct {
	Server            ServerConfig     `yaml:"server"`
	Providers         []ProviderConfig `yaml:"providers"`
	DefaultProvider   string           `yaml:"default_provider"`
	FallbackProviders []string         `yaml:"fallback_providers"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ProviderConfig captures authentication and routing info for one provider.
// API keys may reference environment variables as ${VAR}.
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
}

// Load reads YAML configuration from disk, expands ${VAR} references and
// validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration. A missing API
// key is deliberately not an error here: the provider is still registered but
// reports itself unavailable, so requests against it fail softly.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, provider := range c.Providers {
		if err := validateProvider(provider); err != nil {
			return err
		}
		if seen[provider.Name] {
			return fmt.Errorf("provider %q configured twice", provider.Name)
		}
		seen[provider.Name] = true
	}

	if c.DefaultProvider != "" && c.DefaultProvider != "auto" && !seen[c.DefaultProvider] {
		return fmt.Errorf("default_provider %q is not a configured provider", c.DefaultProvider)
	}

	for _, name := range c.FallbackProviders {
		if !seen[name] {
			return fmt.Errorf("fallback provider %q is not a configured provider", name)
		}
	}

	return nil
}

// Provider returns the configuration for the named provider, if declared.
func (c Config) Provider(name string) (ProviderConfig, bool) {
	for _, provider := range c.Providers {
		if provider.Name == name {
			return provider, true
		}
	}
	return ProviderConfig{}, false
}

func validateProvider(provider ProviderConfig) error {
	if strings.TrimSpace(provider.Name) == "" {
		return fmt.Errorf("provider name must not be empty")
	}

	known := false
	for _, name := range KnownProviders {
		if provider.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("provider %q is not supported, expected one of %v", provider.Name, KnownProviders)
	}

	for headerKey := range provider.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("provider %s: header %q is not a valid canonical HTTP header", provider.Name, headerKey)
		}
	}

	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
