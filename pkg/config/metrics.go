package config

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/metrics"

	// Installs the Prometheus metric constructors.
	_ "github.com/marmos91/nexusd/pkg/metrics/prometheus"
)

// MetricsResult holds what InitializeMetrics set up.
type MetricsResult struct {
	// Server serves /metrics; nil when metrics are disabled.
	Server *http.Server
}

// InitializeMetrics creates the metrics registry and starts the metrics
// HTTP server when metrics are enabled.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		logger.Info("Metrics disabled")
		return MetricsResult{}
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", "port", cfg.Metrics.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logger.KeyError, err)
		}
	}()

	return MetricsResult{Server: srv}
}
