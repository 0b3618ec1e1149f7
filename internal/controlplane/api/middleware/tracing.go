package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/nexusd/internal/telemetry"
)

// Tracing starts a server span per request, named after the matched route.
// The trace id is echoed in X-Trace-Id. It is a no-op when telemetry is
// disabled.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !telemetry.IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := telemetry.StartRequestSpan(r.Context(), r.Method+" "+r.URL.Path, r.RemoteAddr)
		defer span.End()

		if id := telemetry.TraceID(ctx); id != "" {
			w.Header().Set("X-Trace-Id", id)
		}
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(ctx); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				span.SetName(r.Method + " " + pattern)
			}
		}
		span.SetAttributes(telemetry.Status(strconv.Itoa(ww.Status())))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}
