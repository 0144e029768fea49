package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"inference-gateway/internal/config"
	"inference-gateway/internal/provider"
	providerfactory "inference-gateway/internal/provider/factory"
	"inference-gateway/internal/server"
	"inference-gateway/internal/service"
)

const serveUsage = `Usage:
  inference-gateway serve --config <path> [--port <port>] [--env-file <path>]

Flags:
  --config   string   Path to YAML configuration file (required)
  --port     int      Override server port from configuration
  --env-file string   Load environment variables from file before reading config`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	var envFile string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")
	fs.StringVar(&envFile, "env-file", "", "path to env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("serve command requires --config <path>")
	}

	if overridePort != 0 && (overridePort <= 0 || overridePort > 65535) {
		return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
	}

	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if overridePort != 0 {
		cfg.Server.Port = overridePort
	}

	// The builder reloads configuration from disk so POST /api/ai/refresh
	// picks up catalog and credential changes without a restart.
	build := func() (*service.Service, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		if overridePort != 0 {
			cfg.Server.Port = overridePort
		}

		registry := provider.NewRegistry()
		if err := providerfactory.RegisterConfiguredProviders(cfg, registry); err != nil {
			return nil, err
		}
		return service.New(cfg, registry), nil
	}

	holder, err := service.NewHolder(build)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, holder)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

// loadEnvFile loads variables from an env file so ${VAR} references in the
// configuration resolve. A missing default .env is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %q: %w", path, err)
		}
		return nil
	}

	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}
	return nil
}
