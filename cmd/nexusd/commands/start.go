package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/internal/telemetry"
	"github.com/marmos91/nexusd/pkg/config"
	"github.com/marmos91/nexusd/pkg/controlplane/api"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
	"github.com/marmos91/nexusd/pkg/controlplane/runtime"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
	"github.com/spf13/cobra"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the storage node",
	Long: `Start the storage node in the foreground.

The node restores the pools, replicas and nexuses recorded in its control
plane database, then serves the admin API until interrupted.

Examples:
  # Start with the default config file
  nexusd start

  # Start with a custom config file
  nexusd start --config /etc/nexusd/config.yaml

  # Turn on reservations without editing the config
  NEXUS_NVMF_RESV_ENABLE=1 nexusd start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process ID to this file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nexusd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "nexusd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags:           map[string]string{"node": cfg.Node.Name},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()), "node", cfg.Node.Name)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Metrics come first: the runtime picks its collectors up when it is
	// created.
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsResult.Server.Shutdown(shutdownCtx)
		}()
	}

	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize control plane store: %w", err)
	}
	defer func() { _ = cpStore.Close() }()

	adminPassword, err := cpStore.EnsureAdminUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if adminPassword != "" {
		logger.Info("Admin user created", "username", models.AdminUsername)
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	rt, err := runtime.New(RuntimeOptions(cfg), cpStore)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	rt.Start(ctx)

	if err := rt.LoadFromStore(ctx); err != nil {
		rt.Close()
		return fmt.Errorf("failed to restore node configuration: %w", err)
	}

	apiServer, err := api.NewServer(cfg.ControlPlane, rt, cpStore)
	if err != nil {
		rt.Close()
		return fmt.Errorf("failed to create API server: %w", err)
	}
	rt.SetAPIServer(apiServer)

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			rt.Close()
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- rt.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Node is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("Node stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Node error", logger.Err(err))
			return err
		}
		logger.Info("Node stopped")
	}

	return nil
}
