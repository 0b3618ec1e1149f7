package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const sampleConfig = `# nexusd Configuration File
#
# Values can be overridden with NEXUSD_* environment variables, e.g.
#   NEXUSD_LOGGING_LEVEL=DEBUG
# NEXUS_NVMF_RESV_ENABLE and NEXUS_NVMF_ANA_ENABLE override the nexus section.

logging:
  level: "INFO"        # DEBUG, INFO, WARN, ERROR
  format: "text"       # text, json
  output: "stdout"     # stdout, stderr, or a file path

telemetry:
  enabled: false
  endpoint: "localhost:4317"
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: "http://localhost:4040"

shutdown_timeout: 30s

database:
  type: sqlite         # sqlite or postgres
  # sqlite:
  #   path: /var/lib/nexusd/controlplane.db

metrics:
  enabled: false
  port: 9090

controlplane:
  endpoint: "0.0.0.0:10124"
  read_timeout: 10s
  write_timeout: 30s
  idle_timeout: 60s
  jwt:
    secret: "%s"
    access_token_duration: 15m
    refresh_token_duration: 168h

node:
  host_nqn: "nqn.2019-05.io.openebs"
  cores: 1
  queue_depth: 1024
  nvmf_listen: ":8420"

nexus:
  reservation_key: "0x12345678"
  reservations_enabled: false
  ana_enabled: false
  keep_alive_interval: 1s
`

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration with a freshly generated
// JWT secret to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf(sampleConfig, secret)), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateSecret returns 32 random bytes, hex encoded.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
