package logger

import (
	"context"
	"time"
)

type logContextKey struct{}

// LogContext carries the request-scoped fields the *Ctx functions prepend
// to every record. The admin API creates one per request; handlers may
// fill in fields such as Nexus once they know them.
type LogContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	// Operation is the admin operation, "METHOD /route/{pattern}".
	Operation string
	// Nexus is the nexus name or UUID the request targets.
	Nexus string
	// ClientIP is the caller's address without port.
	ClientIP  string
	StartTime time.Time
}

// WithContext returns a copy of ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext returns the LogContext in ctx, or nil. A nil ctx is allowed.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for a request from clientIP.
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{ClientIP: clientIP, StartTime: time.Now()}
}

// Clone returns a shallow copy, or nil for a nil receiver.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithOperation returns a copy with Operation set.
func (lc *LogContext) WithOperation(op string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Operation = op
	}
	return c
}

// WithTrace returns a copy with the trace and span ids set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID, c.SpanID = traceID, spanID
	}
	return c
}

// DurationMs is the time since StartTime in milliseconds, or 0.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}
