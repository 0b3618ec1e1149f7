package middleware

import (
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/nexusd/internal/logger"
)

// LogContext attaches a logger.LogContext to every request so that
// logger.*Ctx calls made while serving it carry the request id, client
// address and trace ids. It must run after RequestID, RealIP and Tracing.
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		client := r.RemoteAddr
		if host, _, err := net.SplitHostPort(client); err == nil {
			client = host
		}

		lc := logger.NewLogContext(client).WithOperation(r.Method + " " + r.URL.Path)
		lc.RequestID = chimiddleware.GetReqID(ctx)
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			lc = lc.WithTrace(sc.TraceID().String(), sc.SpanID().String())
		}

		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, lc)))
	})
}
