package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/nexusd/pkg/pool"
)

// ReplicaHandler handles replica management endpoints.
type ReplicaHandler struct {
	node ReplicaService
}

// NewReplicaHandler creates a new ReplicaHandler.
func NewReplicaHandler(node ReplicaService) *ReplicaHandler {
	return &ReplicaHandler{node: node}
}

// Create handles POST /api/v1/replicas.
func (h *ReplicaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReplicaRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	info, err := h.node.CreateReplica(r.Context(), pool.ReplicaSpec{
		UUID:  req.UUID,
		Pool:  req.Pool,
		Size:  req.Size,
		Thin:  req.Thin,
		Share: req.Share,
	})
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONCreated(w, info)
}

// List handles GET /api/v1/replicas.
func (h *ReplicaHandler) List(w http.ResponseWriter, r *http.Request) {
	replicas, err := h.node.ListReplicas()
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, replicas)
}

// Get handles GET /api/v1/replicas/{uuid}.
func (h *ReplicaHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.node.GetReplica(chi.URLParam(r, "uuid"))
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, info)
}

// Share handles PUT /api/v1/replicas/{uuid}/share.
func (h *ReplicaHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	proto, err := pool.ParseShareProtocol(req.Protocol)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	uri, err := h.node.ShareReplica(r.Context(), chi.URLParam(r, "uuid"), proto)
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, ShareResponse{URI: uri})
}

// Delete handles DELETE /api/v1/replicas/{uuid}.
func (h *ReplicaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.node.DestroyReplica(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteNoContent(w)
}
