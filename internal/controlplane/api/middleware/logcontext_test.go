package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/nexusd/internal/logger"
)

func TestLogContext(t *testing.T) {
	var got *logger.LogContext
	h := chimiddleware.RequestID(LogContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logger.FromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/nexuses/vol-1", nil)
	req.RemoteAddr = "10.0.0.7:53122"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected a log context on the request")
	}
	if got.ClientIP != "10.0.0.7" {
		t.Errorf("ClientIP = %q, want 10.0.0.7", got.ClientIP)
	}
	if got.Operation != "DELETE /api/v1/nexuses/vol-1" {
		t.Errorf("Operation = %q", got.Operation)
	}
	if got.RequestID == "" {
		t.Error("expected the request id to be copied")
	}
	if got.TraceID != "" {
		t.Errorf("TraceID = %q without an active span", got.TraceID)
	}
}
