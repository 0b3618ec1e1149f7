package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheckTimeout bounds the database check of the readiness probe.
const HealthCheckTimeout = 5 * time.Second

// Pinger is anything whose reachability readiness depends on.
type Pinger interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler handles the unauthenticated health endpoints.
type HealthHandler struct {
	node      Node
	store     Pinger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. Either argument may be
// nil, in which case readiness reports unhealthy.
func NewHealthHandler(node Node, store Pinger) *HealthHandler {
	return &HealthHandler{
		node:      node,
		store:     store,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "nexusd",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. The node is ready when its reactors
// answer and the control plane database is reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.node == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("runtime not initialized"))
		return
	}

	pools, err := h.node.ListPools()
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("reactors not responding: "+err.Error()))
		return
	}
	replicas, err := h.node.ListReplicas()
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("reactors not responding: "+err.Error()))
		return
	}
	nexuses, err := h.node.ListNexuses()
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("reactors not responding: "+err.Error()))
		return
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
		defer cancel()
		if err := h.store.Healthcheck(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database unreachable: "+err.Error()))
			return
		}
	}

	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"pools":    len(pools),
		"replicas": len(replicas),
		"nexuses":  len(nexuses),
	}))
}
