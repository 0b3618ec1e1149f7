package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Admin requests
	// ========================================================================
	KeyRequestID = "request_id" // Admin API request ID
	KeyOperation = "operation"  // Admin operation name
	KeyClientIP  = "client_ip"  // Client IP address
	KeyStatus    = "status"     // Status code returned to the caller

	// ========================================================================
	// Reactor
	// ========================================================================
	KeyCore   = "core"   // Logical core the reactor is bound to
	KeyThread = "thread" // Named execution context
	KeyPoller = "poller" // Poller name
	KeyQueued = "queued" // Tasks waiting in the submission queue

	// ========================================================================
	// Devices
	// ========================================================================
	KeyNexus   = "nexus"   // Nexus name
	KeyUUID    = "uuid"    // Nexus or replica UUID
	KeyChild   = "child"   // Child URI
	KeyURI     = "uri"     // Device URI
	KeyDevice  = "device"  // Block device name
	KeyPool    = "pool"    // Pool name
	KeyReplica = "replica" // Replica UUID
	KeyState   = "state"   // Device state
	KeyReason  = "reason"  // Why a state changed
	KeySize    = "size"    // Size in bytes
	KeyOffset  = "offset"  // I/O offset in bytes
	KeyLength  = "length"  // I/O length in bytes

	// ========================================================================
	// NVMe over Fabrics
	// ========================================================================
	KeyNQN      = "nqn"       // Subsystem NQN
	KeyHostNQN  = "host_nqn"  // Host NQN
	KeyHostID   = "host_id"   // Host identifier
	KeyCntlID   = "cntlid"    // Controller ID
	KeyAddress  = "address"   // Transport address
	KeyANAState = "ana_state" // ANA path state
	KeyShareURI = "share_uri" // URI a nexus is published under

	// ========================================================================
	// Reservations
	// ========================================================================
	KeyResvKey    = "rkey"     // Registration key
	KeyResvType   = "rtype"    // Reservation type
	KeyResvHolder = "holder"   // Current reservation holder host ID
	KeyResvAction = "action"   // Controller action taken
	KeyRegCount   = "regctl"   // Number of registrants
	KeyGeneration = "resv_gen" // Reservation generation

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Error category
	KeyCount      = "count"       // Generic count
	KeyPath       = "path"        // Filesystem path
	KeyComponent  = "component"   // Subsystem emitting the record
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Core returns a slog.Attr for a reactor core
func Core(core int) slog.Attr {
	return slog.Int(KeyCore, core)
}

// Nexus returns a slog.Attr for a nexus name
func Nexus(name string) slog.Attr {
	return slog.String(KeyNexus, name)
}

// Child returns a slog.Attr for a child URI
func Child(uri string) slog.Attr {
	return slog.String(KeyChild, uri)
}

// State returns a slog.Attr for a device state
func State(s fmt.Stringer) slog.Attr {
	return slog.String(KeyState, s.String())
}

// NQN returns a slog.Attr for a subsystem NQN
func NQN(nqn string) slog.Attr {
	return slog.String(KeyNQN, nqn)
}

// HostID returns a slog.Attr for a host identifier
func HostID(id string) slog.Attr {
	return slog.String(KeyHostID, id)
}

// ResvKey returns a slog.Attr for a reservation key, rendered in hex
func ResvKey(key uint64) slog.Attr {
	return slog.String(KeyResvKey, fmt.Sprintf("%#x", key))
}

// Size returns a slog.Attr for a size in bytes
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// Offset returns a slog.Attr for an I/O offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
