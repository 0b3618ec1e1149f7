package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/nexusd/pkg/controlplane/api"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
)

// Compatibility toggles read by older deployments. When set they override
// the nexus section of the config file.
const (
	EnvReservationsEnable = "NEXUS_NVMF_RESV_ENABLE"
	EnvANAEnable          = "NEXUS_NVMF_ANA_ENABLE"
)

// Config is the static configuration of a storage node. Pools, replicas
// and nexuses are not part of it: they are created through the admin API
// and exported to the control plane database.
//
// Sources, strongest first: CLI flags, NEXUSD_* environment variables, the
// config file, defaults.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database holds API users and the exported node configuration.
	Database store.Config `mapstructure:"database" yaml:"database"`

	Metrics      MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	ControlPlane api.APIConfig `mapstructure:"controlplane" yaml:"controlplane"`

	Node NodeConfig `mapstructure:"node" yaml:"node"`

	// Nexus holds the options every nexus on the node is created with.
	Nexus NexusConfig `mapstructure:"nexus" yaml:"nexus"`
}

// LoggingConfig selects level, format and destination of the logger.
// Level is case-insensitive and normalized to upper case.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig enables OTLP trace export and continuous profiling.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the OTLP gRPC collector, localhost:4317 by default.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
	// SampleRate is the fraction of root traces kept.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig points the Pyroscope agent at a server.
type ProfilingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// ProfileTypes names the profiles to collect. Empty selects cpu,
	// goroutines and the four heap profiles.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus endpoint. Nothing is collected
// while it is disabled.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// NodeConfig describes the node itself.
type NodeConfig struct {
	// Name identifies the node in logs. Default: the hostname.
	Name string `mapstructure:"name" yaml:"name"`

	// HostNQN is the NQN this node connects to targets with and the prefix
	// of the subsystems it publishes.
	// Default: nqn.2019-05.io.openebs
	HostNQN string `mapstructure:"host_nqn" validate:"required,startswith=nqn." yaml:"host_nqn"`

	// Cores is the number of reactors. Reactor 0 is the init reactor.
	// Default: 1
	Cores int `mapstructure:"cores" validate:"required,min=1,max=256" yaml:"cores"`

	// QueueDepth bounds each reactor's submission queue.
	// Default: 1024
	QueueDepth int `mapstructure:"queue_depth" validate:"required,min=1" yaml:"queue_depth"`

	// NvmfListen is the address the nvmf target accepts connections on.
	// Default: ":8420"
	NvmfListen string `mapstructure:"nvmf_listen" validate:"required" yaml:"nvmf_listen"`
}

// NexusConfig holds the options nexuses are created with.
type NexusConfig struct {
	// ReservationKey is the registration key this node uses on every
	// reservation-capable child. Accepts decimal or 0x-prefixed hex.
	// Default: 0x12345678
	ReservationKey ReservationKey `mapstructure:"reservation_key" yaml:"reservation_key"`

	// ReservationsEnabled turns on the reservation handshake when children
	// open. Overridden by NEXUS_NVMF_RESV_ENABLE.
	ReservationsEnabled bool `mapstructure:"reservations_enabled" yaml:"reservations_enabled"`

	// ANAEnabled attaches an ANA controller to published nexuses.
	// Overridden by NEXUS_NVMF_ANA_ENABLE.
	ANAEnabled bool `mapstructure:"ana_enabled" yaml:"ana_enabled"`

	// KeepAliveInterval is how often remote children send keep-alives.
	// Default: 1s
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" validate:"omitempty,gt=0" yaml:"keep_alive_interval"`
}

// ReservationKey is a 64-bit registration key. It is written to YAML in hex.
type ReservationKey uint64

// String renders the key as 0x-prefixed hex.
func (k ReservationKey) String() string {
	return fmt.Sprintf("0x%x", uint64(k))
}

// MarshalYAML implements yaml.Marshaler.
func (k ReservationKey) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *ReservationKey) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseReservationKey(node.Value)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseReservationKey parses a decimal or 0x-prefixed hex key. Zero is
// rejected since it is not a valid registration key.
func ParseReservationKey(s string) (ReservationKey, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid reservation key %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid reservation key %q: must be non-zero", s)
	}
	return ReservationKey(v), nil
}

// Load reads the config file at configPath (or the default location when
// empty), applies defaults and environment overrides, and validates the
// result. NEXUSD_* variables beat the file; the NEXUS_NVMF_* toggles beat
// both. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if found {
		cfg = &Config{}
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		ApplyDefaults(cfg)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for commands: a missing file is reported together with
// the command that creates one.
func MustLoad(configPath string) (*Config, error) {
	switch {
	case configPath == "" && !DefaultConfigExists():
		return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
			"Create one with:\n  nexusd init\n\n"+
			"or pass an explicit file:\n  nexusd <command> --config /path/to/config.yaml",
			GetDefaultConfigPath())
	case configPath == "":
		configPath = GetDefaultConfigPath()
	default:
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Create it with:\n  nexusd init --config %s", configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML. The file is private to the owner since it
// may carry the JWT secret and the database password.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// newViper binds NEXUSD_* variables (NEXUSD_LOGGING_LEVEL=DEBUG) and points
// viper at the config file.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("NEXUSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return v
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	return v
}

// readConfigFile reports whether a config file was found and read.
func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
}

// applyEnvOverrides applies the NEXUS_NVMF_* toggles. Any value
// strconv.ParseBool accepts is allowed.
func applyEnvOverrides(cfg *Config) error {
	for env, dst := range map[string]*bool{
		EnvReservationsEnable: &cfg.Nexus.ReservationsEnabled,
		EnvANAEnable:          &cfg.Nexus.ANAEnabled,
	} {
		raw, ok := os.LookupEnv(env)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, raw, err)
		}
		*dst = v
	}
	return nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		reservationKeyDecodeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var reservationKeyType = reflect.TypeOf(ReservationKey(0))

// reservationKeyDecodeHook accepts "0x1234abcd" strings and plain numbers.
func reservationKeyDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reservationKeyType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return ParseReservationKey(v)
	case int:
		return ReservationKey(v), nil
	case int64:
		return ReservationKey(v), nil
	case uint64:
		return ReservationKey(v), nil
	case float64:
		return ReservationKey(v), nil
	}
	return data, nil
}

// getConfigDir returns $XDG_CONFIG_HOME/nexusd, ~/.config/nexusd, or "."
// when no home directory can be determined.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nexusd")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "nexusd")
	}
	return "."
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a file exists at the default path.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the directory the default config file lives in.
func GetConfigDir() string {
	return getConfigDir()
}
