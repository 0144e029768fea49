package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"inference-gateway/internal/config"
	"inference-gateway/internal/provider"
	providerfactory "inference-gateway/internal/provider/factory"
	"inference-gateway/internal/resolver"
)

const modelsUsage = `Usage:
  inference-gateway models --config <path>

Flags:
  --config string   Path to YAML configuration file (required)`

func listModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, modelsUsage)
	}

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse models flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("models command requires --config <path>")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry()
	if err := providerfactory.RegisterConfiguredProviders(cfg, registry); err != nil {
		return err
	}

	for _, info := range resolver.ListModels(registry) {
		availability := "available"
		if !info.Available {
			availability = "no API key"
		}
		fmt.Printf("%-40s %-24s %s\n", info.Name, info.DisplayName, availability)
	}

	return nil
}
