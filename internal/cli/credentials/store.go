// Package credentials stores nexusctl's node contexts: which nodes it knows
// about and the tokens it holds for each.
package credentials

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory under the user config home.
	DefaultConfigDir = "nexusctl"
	// ConfigFileName is the name of the contexts file.
	ConfigFileName = "contexts.yaml"

	filePermissions = 0600
	dirPermissions  = 0700

	// expirySkew treats tokens this close to expiry as expired.
	expirySkew = 60 * time.Second
)

var (
	// ErrNoCurrentContext indicates no context is currently set.
	ErrNoCurrentContext = errors.New("no current context set")
	// ErrContextNotFound indicates the requested context doesn't exist.
	ErrContextNotFound = errors.New("context not found")
	// ErrNotLoggedIn indicates no valid credentials exist.
	ErrNotLoggedIn = errors.New("not logged in: run 'nexusctl login' first")
)

// Context is one node nexusctl can talk to.
type Context struct {
	ServerURL    string    `yaml:"server_url"`
	Username     string    `yaml:"username,omitempty"`
	AccessToken  string    `yaml:"access_token,omitempty"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `yaml:"expires_at,omitempty"`
}

// IsExpired returns true if the access token has expired or is about to.
func (c *Context) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(expirySkew).After(c.ExpiresAt)
}

// LoggedIn reports whether the context holds any token.
func (c *Context) LoggedIn() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

type file struct {
	Current  string              `yaml:"current_context"`
	Contexts map[string]*Context `yaml:"contexts"`
}

// Store is the on-disk contexts file. It is not safe for concurrent use.
type Store struct {
	path string
	data file
}

// DefaultPath returns $XDG_CONFIG_HOME/nexusctl/contexts.yaml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, DefaultConfigDir, ConfigFileName), nil
}

// Open loads the contexts file at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &s.data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if s.data.Contexts == nil {
		s.data.Contexts = make(map[string]*Context)
	}
	return s, nil
}

// Path returns the path of the contexts file.
func (s *Store) Path() string { return s.path }

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, filePermissions)
}

// Current returns the name and the current context.
func (s *Store) Current() (string, *Context, error) {
	if s.data.Current == "" {
		return "", nil, ErrNoCurrentContext
	}
	ctx, ok := s.data.Contexts[s.data.Current]
	if !ok {
		return "", nil, ErrContextNotFound
	}
	return s.data.Current, ctx, nil
}

// Get returns a context by name.
func (s *Store) Get(name string) (*Context, error) {
	ctx, ok := s.data.Contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// Names returns every context name, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.data.Contexts))
	for name := range s.data.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Set creates or replaces a context and makes it current.
func (s *Store) Set(name string, ctx *Context) error {
	s.data.Contexts[name] = ctx
	s.data.Current = name
	return s.save()
}

// Use switches the current context.
func (s *Store) Use(name string) error {
	if _, ok := s.data.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.data.Current = name
	return s.save()
}

// Delete removes a context. Deleting the current context leaves none
// current.
func (s *Store) Delete(name string) error {
	if _, ok := s.data.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	delete(s.data.Contexts, name)
	if s.data.Current == name {
		s.data.Current = ""
	}
	return s.save()
}

// UpdateTokens stores a new token pair on the current context.
func (s *Store) UpdateTokens(accessToken, refreshToken string, expiresAt time.Time) error {
	_, ctx, err := s.Current()
	if err != nil {
		return err
	}
	ctx.AccessToken = accessToken
	ctx.RefreshToken = refreshToken
	ctx.ExpiresAt = expiresAt
	return s.save()
}

// Logout clears the tokens of the current context and keeps the server.
func (s *Store) Logout() error {
	return s.UpdateTokens("", "", time.Time{})
}

// ContextName derives a context name from a server URL: its host, without
// the port.
func ContextName(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Hostname() == "" {
		return "default"
	}
	return u.Hostname()
}
