package api

import (
	"net/netip"
	"os"
	"time"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/bridge"
)

// EnvControlPlaneSecret overrides the JWT signing secret of the config file.
const EnvControlPlaneSecret = "NEXUSD_CONTROLPLANE_SECRET"

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = time.Minute
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
)

// APIConfig configures the admin HTTP server, the node's management
// surface. It is always enabled.
type APIConfig struct {
	// Endpoint is the listen address, 0.0.0.0:10124 by default. A bare IP
	// gets the default port; IPv6 addresses need brackets.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Timeouts map onto http.Server. Zero picks 10s, 30s and 60s.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig configures the tokens the API issues.
type JWTConfig struct {
	// Secret is the HMAC key, at least 32 characters.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// Token lifetimes. Zero picks 15m and 7 days.
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" yaml:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" yaml:"refresh_token_duration"`
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// ApplyDefaults fills in zero values.
func (c *APIConfig) ApplyDefaults() {
	setDefault(&c.Endpoint, bridge.DefaultEndpoint().String())
	setDefault(&c.ReadTimeout, defaultReadTimeout)
	setDefault(&c.WriteTimeout, defaultWriteTimeout)
	setDefault(&c.IdleTimeout, defaultIdleTimeout)
	setDefault(&c.JWT.AccessTokenDuration, defaultAccessTTL)
	setDefault(&c.JWT.RefreshTokenDuration, defaultRefreshTTL)
}

// ListenAddr resolves Endpoint, defaulting the port.
func (c *APIConfig) ListenAddr() (netip.AddrPort, error) {
	if c.Endpoint == "" {
		return bridge.DefaultEndpoint(), nil
	}
	return bridge.Endpoint(c.Endpoint)
}

// GetJWTSecret returns the signing secret. NEXUSD_CONTROLPLANE_SECRET wins
// over the file; the result is empty when neither is set.
func (c *APIConfig) GetJWTSecret() string {
	fromEnv, ok := os.LookupEnv(EnvControlPlaneSecret)
	if !ok || fromEnv == "" {
		return c.JWT.Secret
	}
	if c.JWT.Secret != "" && c.JWT.Secret != fromEnv {
		logger.Warn("Environment JWT secret overrides the configured one", "env_var", EnvControlPlaneSecret)
	}
	return fromEnv
}

// HasJWTSecret reports whether a signing secret is configured.
func (c *APIConfig) HasJWTSecret() bool {
	return c.GetJWTSecret() != ""
}
