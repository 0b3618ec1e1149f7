package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/nexusd/internal/controlplane/api/auth"
	"github.com/marmos91/nexusd/internal/controlplane/api/handlers"
	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
)

// Server is the admin HTTP server.
//
// Endpoints:
//   - GET /health, GET /health/ready: probes
//   - /api/v1/auth/*: login, token refresh, current user
//   - /api/v1/users/*: user management
//   - /api/v1/pools, /api/v1/replicas, /api/v1/nexuses: node objects
type Server struct {
	server     *http.Server
	config     APIConfig
	listenAddr string

	mu       sync.Mutex
	listener net.Listener

	shutdownOnce sync.Once
}

// NewServer creates the admin API server in a stopped state. node may be
// nil, in which case node routes answer 503.
func NewServer(config APIConfig, node handlers.Node, cpStore store.Store) (*Server, error) {
	config.ApplyDefaults()

	addr, err := config.ListenAddr()
	if err != nil {
		return nil, fmt.Errorf("invalid controlplane endpoint: %w", err)
	}

	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvControlPlaneSecret)
	}
	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:               jwtSecret,
		AccessTokenDuration:  config.JWT.AccessTokenDuration,
		RefreshTokenDuration: config.JWT.RefreshTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	return &Server{
		server: &http.Server{
			Handler:      NewRouter(node, jwtService, cpStore),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config:     config,
		listenAddr: addr.String(),
	}, nil
}

// Start listens on the configured endpoint and serves until ctx is
// cancelled or the server fails. Cancellation shuts the server down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("API server failed to listen on %s: %w", s.listenAddr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", logger.KeyAddress, ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// ctx is already cancelled; shutting down with it would not wait.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. It is safe to call more than once
// and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
			return
		}
		logger.Info("API server stopped gracefully")
	})
	return shutdownErr
}

// Addr returns the address the server listens on: the bound address once
// started, the configured endpoint before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.listenAddr
}
