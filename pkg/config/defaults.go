package config

import (
	"os"
	"strings"
	"time"

	"github.com/marmos91/nexusd/pkg/controlplane/store"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/reservation"
)

// Node defaults.
const (
	DefaultQueueDepth = 1024
	DefaultNvmfListen = ":8420"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultMetricsPort     = 9090
	defaultOTLPEndpoint    = "localhost:4317"
	defaultPyroscopeURL    = "http://localhost:4040"
)

var defaultProfileTypes = []string{
	"cpu",
	"alloc_objects",
	"alloc_space",
	"inuse_objects",
	"inuse_space",
	"goroutines",
}

// orDefault stores def in *v when *v is the zero value.
func orDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// ApplyDefaults replaces zero values with defaults. Explicit values are
// kept; the log level is normalized to upper case.
func ApplyDefaults(cfg *Config) {
	lg := &cfg.Logging
	orDefault(&lg.Level, "INFO")
	lg.Level = strings.ToUpper(lg.Level)
	orDefault(&lg.Format, "text")
	orDefault(&lg.Output, "stdout")

	tel := &cfg.Telemetry
	orDefault(&tel.Endpoint, defaultOTLPEndpoint)
	orDefault(&tel.SampleRate, 1.0)
	orDefault(&tel.Profiling.Endpoint, defaultPyroscopeURL)
	if len(tel.Profiling.ProfileTypes) == 0 {
		tel.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}

	orDefault(&cfg.ShutdownTimeout, defaultShutdownTimeout)

	cfg.Database.ApplyDefaults()
	cfg.ControlPlane.ApplyDefaults()

	// The port is only meaningful while metrics are on.
	if cfg.Metrics.Enabled {
		orDefault(&cfg.Metrics.Port, defaultMetricsPort)
	}

	applyNodeDefaults(&cfg.Node)

	orDefault(&cfg.Nexus.ReservationKey, ReservationKey(reservation.DefaultKey))
	orDefault(&cfg.Nexus.KeepAliveInterval, nexus.DefaultKeepAliveInterval)
}

// applyNodeDefaults names the node after the host and runs one reactor
// unless told otherwise.
func applyNodeDefaults(n *NodeConfig) {
	if n.Name == "" {
		n.Name = "nexusd"
		if host, err := os.Hostname(); err == nil && host != "" {
			n.Name = host
		}
	}
	orDefault(&n.HostNQN, nvmf.DefaultHostNQN)
	orDefault(&n.Cores, 1)
	orDefault(&n.QueueDepth, DefaultQueueDepth)
	orDefault(&n.NvmfListen, DefaultNvmfListen)
}

// GetDefaultConfig returns a Config with every default applied and a
// SQLite control plane database.
func GetDefaultConfig() *Config {
	cfg := &Config{Database: store.Config{Type: store.DatabaseTypeSQLite}}
	ApplyDefaults(cfg)
	return cfg
}
