package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DatabaseType selects the control plane database backend.
type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypePostgres DatabaseType = "postgres"
)

const (
	defaultPostgresPort = 5432
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
)

// SQLiteConfig configures the embedded database. It is the default and
// suits a node that keeps its own configuration.
type SQLiteConfig struct {
	// Path defaults to $XDG_CONFIG_HOME/nexusd/controlplane.db.
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig configures a shared PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// SSLMode is one of disable, require, verify-ca, verify-full.
	SSLMode     string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
	SSLRootCert string `mapstructure:"sslrootcert" yaml:"sslrootcert,omitempty"`

	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty"`
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty"`
}

// DSN returns the libpq keyword/value connection string.
func (c *PostgresConfig) DSN() string {
	parts := []string{
		"host=" + c.Host,
		fmt.Sprintf("port=%d", c.Port),
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + c.Database,
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+c.SSLMode)
	}
	if c.SSLRootCert != "" {
		parts = append(parts, "sslrootcert="+c.SSLRootCert)
	}
	return strings.Join(parts, " ")
}

// Config is the database section of the node configuration.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`
}

// ApplyDefaults fills in the backend and its unset fields.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = filepath.Join(configHome(), "nexusd", "controlplane.db")
		}
	case DatabaseTypePostgres:
		p := &c.Postgres
		if p.Port == 0 {
			p.Port = defaultPostgresPort
		}
		if p.SSLMode == "" {
			p.SSLMode = "disable"
		}
		if p.MaxOpenConns == 0 {
			p.MaxOpenConns = defaultMaxOpenConns
		}
		if p.MaxIdleConns == 0 {
			p.MaxIdleConns = defaultMaxIdleConns
		}
	}
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// Validate reports the first missing required field of the selected
// backend.
func (c *Config) Validate() error {
	var missing string
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			missing = "sqlite path"
		}
	case DatabaseTypePostgres:
		switch {
		case c.Postgres.Host == "":
			missing = "postgres host"
		case c.Postgres.Database == "":
			missing = "postgres database"
		case c.Postgres.User == "":
			missing = "postgres user"
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	if missing != "" {
		return fmt.Errorf("%s is required", missing)
	}
	return nil
}
