package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-testing-minimum-32-chars"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

database:
  type: sqlite

controlplane:
  endpoint: "127.0.0.1:10124"
  jwt:
    secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.ControlPlane.Endpoint != "127.0.0.1:10124" {
		t.Errorf("Expected control plane endpoint 127.0.0.1:10124, got %q", cfg.ControlPlane.Endpoint)
	}
	if cfg.Node.NvmfListen != ":8420" {
		t.Errorf("Expected default nvmf listen ':8420', got %q", cfg.Node.NvmfListen)
	}
	if uint64(cfg.Nexus.ReservationKey) != 0x12345678 {
		t.Errorf("Expected default reservation key 0x12345678, got %s", cfg.Nexus.ReservationKey)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing file yields the defaults so the node can start without one.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.ControlPlane.Endpoint != "0.0.0.0:10124" {
		t.Errorf("Expected default API endpoint 0.0.0.0:10124, got %q", cfg.ControlPlane.Endpoint)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[database]
type = "sqlite"

[node]
cores = 4

[nexus]
reservation_key = "0xabcdef01"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Node.Cores != 4 {
		t.Errorf("Expected 4 cores, got %d", cfg.Node.Cores)
	}
	if uint64(cfg.Nexus.ReservationKey) != 0xabcdef01 {
		t.Errorf("Expected reservation key 0xabcdef01, got %s", cfg.Nexus.ReservationKey)
	}
}

func TestLoad_NexusSection(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
nexus:
  reservation_key: 305419897
  reservations_enabled: true
  ana_enabled: true
  keep_alive_interval: 250ms
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if uint64(cfg.Nexus.ReservationKey) != 0x12345679 {
		t.Errorf("Expected reservation key 0x12345679, got %s", cfg.Nexus.ReservationKey)
	}
	if !cfg.Nexus.ReservationsEnabled || !cfg.Nexus.ANAEnabled {
		t.Errorf("Expected reservations and ANA enabled, got %+v", cfg.Nexus)
	}
	if cfg.Nexus.KeepAliveInterval != 250*time.Millisecond {
		t.Errorf("Expected keep-alive 250ms, got %v", cfg.Nexus.KeepAliveInterval)
	}
}

func TestLoad_InvalidReservationKey(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
nexus:
  reservation_key: "0x0"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for a zero reservation key")
	}
}

func TestLoad_CompatibilityToggles(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
nexus:
  reservations_enabled: true
  ana_enabled: false
`)

	t.Setenv(EnvReservationsEnable, "false")
	t.Setenv(EnvANAEnable, "1")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Nexus.ReservationsEnabled {
		t.Error("Expected NEXUS_NVMF_RESV_ENABLE=false to disable reservations")
	}
	if !cfg.Nexus.ANAEnabled {
		t.Error("Expected NEXUS_NVMF_ANA_ENABLE=1 to enable ANA")
	}

	t.Setenv(EnvANAEnable, "sometimes")
	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for an unparseable toggle")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Node.Cores != 1 {
		t.Errorf("Expected a single reactor by default, got %d", cfg.Node.Cores)
	}
	if cfg.Node.HostNQN != "nqn.2019-05.io.openebs" {
		t.Errorf("Expected default host NQN, got %q", cfg.Node.HostNQN)
	}
	if cfg.Nexus.KeepAliveInterval != time.Second {
		t.Errorf("Expected default keep-alive 1s, got %v", cfg.Nexus.KeepAliveInterval)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "nexusd" {
		t.Errorf("Expected directory name 'nexusd', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("NEXUSD_LOGGING_LEVEL", "ERROR")
	t.Setenv("NEXUSD_CONTROLPLANE_ENDPOINT", "127.0.0.1:9999")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

controlplane:
  endpoint: "0.0.0.0:10124"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.ControlPlane.Endpoint != "127.0.0.1:9999" {
		t.Errorf("Expected endpoint from env var, got %q", cfg.ControlPlane.Endpoint)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Nexus.ReservationKey = 0xdeadbeef
	cfg.Node.Cores = 2

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Nexus.ReservationKey != 0xdeadbeef {
		t.Errorf("Expected reservation key 0xdeadbeef, got %s", loaded.Nexus.ReservationKey)
	}
	if loaded.Node.Cores != 2 {
		t.Errorf("Expected 2 cores, got %d", loaded.Node.Cores)
	}
}

func TestParseReservationKey(t *testing.T) {
	tests := []struct {
		in      string
		want    ReservationKey
		wantErr bool
	}{
		{in: "0x12345678", want: 0x12345678},
		{in: "4660", want: 0x1234},
		{in: " 0xff ", want: 0xff},
		{in: "0", wantErr: true},
		{in: "key", wantErr: true},
		{in: "0x1ffffffffffffffff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReservationKey(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
