package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/scalelink/internal/devicefactory"
	"github.com/srg/scalelink/pkg/config"
)

// newBackend creates the device backend (can be overridden in tests)
var newBackend = devicefactory.New

// cmdEnv is what every device command needs
type cmdEnv struct {
	cfg     *config.Config
	logger  *logrus.Logger
	backend *devicefactory.Backend
}

// loadConfig reads the config file and applies global flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
	return cfg, nil
}

// setupEnv loads configuration, applies mutate and opens the backend.
// Callers must Close the returned env.
func setupEnv(cmd *cobra.Command, mutate func(*config.Config) error) (*cmdEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		if err := mutate(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg.Level())
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &cmdEnv{cfg: cfg, logger: logger, backend: backend}, nil
}

func (e *cmdEnv) Close() {
	if err := e.backend.Close(); err != nil {
		e.logger.WithError(err).Debug("Backend close failed")
	}
}
