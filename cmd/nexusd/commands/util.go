package commands

import (
	"fmt"
	"time"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/config"
	"github.com/marmos91/nexusd/pkg/controlplane/runtime"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// RuntimeOptions maps the node and nexus sections of the configuration to
// runtime options.
func RuntimeOptions(cfg *config.Config) runtime.Options {
	return runtime.Options{
		Cores:               cfg.Node.Cores,
		QueueDepth:          cfg.Node.QueueDepth,
		HostNQN:             cfg.Node.HostNQN,
		NvmfAddress:         cfg.Node.NvmfListen,
		ReservationKey:      uint64(cfg.Nexus.ReservationKey),
		ReservationsEnabled: cfg.Nexus.ReservationsEnabled,
		ANAEnabled:          cfg.Nexus.ANAEnabled,
		KeepAliveInterval:   cfg.Nexus.KeepAliveInterval,
		ShutdownTimeout:     cfg.ShutdownTimeout,
		StatsInterval:       15 * time.Second,
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
