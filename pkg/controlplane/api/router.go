package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/nexusd/internal/controlplane/api/auth"
	"github.com/marmos91/nexusd/internal/controlplane/api/handlers"
	apiMiddleware "github.com/marmos91/nexusd/internal/controlplane/api/middleware"
	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
)

// NewRouter builds the admin API router.
//
// Reads need an authenticated user; anything that changes the node needs
// the admin role. Health probes are unauthenticated.
func NewRouter(node handlers.Node, jwtService *auth.JWTService, cpStore store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Tracing)
	r.Use(apiMiddleware.LogContext)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	var pinger handlers.Pinger
	if cpStore != nil {
		pinger = cpStore
	}
	healthHandler := handlers.NewHealthHandler(node, pinger)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(cpStore, jwtService)
	userHandler := handlers.NewUserHandler(cpStore)
	requireAdmin := apiMiddleware.RequireAdmin()

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.With(apiMiddleware.JWTAuth(jwtService)).Get("/me", authHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			r.Route("/users", func(r chi.Router) {
				r.Post("/me/password", userHandler.ChangeOwnPassword)
				// Users may read themselves; the handler checks.
				r.Get("/{username}", userHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Delete("/{username}", userHandler.Delete)
					r.Post("/{username}/password", userHandler.ResetPassword)
				})
			})

			if node == nil {
				for _, prefix := range []string{"/pools", "/replicas", "/nexuses"} {
					r.HandleFunc(prefix, runtimeUnavailable)
					r.HandleFunc(prefix+"/*", runtimeUnavailable)
				}
				return
			}

			poolHandler := handlers.NewPoolHandler(node)
			r.Route("/pools", func(r chi.Router) {
				r.Get("/", poolHandler.List)
				r.Get("/{name}", poolHandler.Get)
				r.With(requireAdmin).Post("/", poolHandler.Create)
				r.With(requireAdmin).Delete("/{name}", poolHandler.Delete)
			})

			replicaHandler := handlers.NewReplicaHandler(node)
			r.Route("/replicas", func(r chi.Router) {
				r.Get("/", replicaHandler.List)
				r.Get("/{uuid}", replicaHandler.Get)
				r.With(requireAdmin).Post("/", replicaHandler.Create)
				r.With(requireAdmin).Delete("/{uuid}", replicaHandler.Delete)
				r.With(requireAdmin).Put("/{uuid}/share", replicaHandler.Share)
			})

			nexusHandler := handlers.NewNexusHandler(node)
			r.Route("/nexuses", func(r chi.Router) {
				r.Get("/", nexusHandler.List)
				r.Get("/{id}", nexusHandler.Get)
				r.Get("/{id}/ana", nexusHandler.GetANA)

				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)
					r.Post("/", nexusHandler.Create)
					r.Delete("/{id}", nexusHandler.Delete)
					r.Post("/{id}/publish", nexusHandler.Publish)
					r.Delete("/{id}/publish", nexusHandler.Unpublish)
					r.Delete("/{id}/children", nexusHandler.RemoveChild)
					r.Put("/{id}/ana", nexusHandler.SetANA)
				})
			})
		})
	})

	return r
}

func runtimeUnavailable(w http.ResponseWriter, r *http.Request) {
	handlers.WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "Node runtime is not running")
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs every request at completion, under the route pattern
// it matched. Health probes are logged at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ctx := r.Context()
		lc := logger.FromContext(ctx)
		if rctx := chi.RouteContext(ctx); lc != nil && rctx != nil && rctx.RoutePattern() != "" {
			lc.Operation = r.Method + " " + rctx.RoutePattern()
		}

		log := logger.InfoCtx
		if isHealthPath(r.URL.Path) {
			log = logger.DebugCtx
		}
		log(ctx, "API request completed",
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, lc.DurationMs(),
		)
	})
}
