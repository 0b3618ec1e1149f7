package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the cross-field rules tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if _, err := cfg.ControlPlane.ListenAddr(); err != nil {
		return fmt.Errorf("controlplane.endpoint: %w", err)
	}

	if secret := cfg.ControlPlane.GetJWTSecret(); secret != "" && len(secret) < 32 {
		return fmt.Errorf("controlplane.jwt.secret: must be at least 32 characters")
	}

	if err := validateListen(cfg.Node.NvmfListen); err != nil {
		return fmt.Errorf("node.nvmf_listen: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry.profiling.endpoint is required when profiling is enabled")
	}

	return nil
}

// validateListen accepts "host:port" and ":port".
func validateListen(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
