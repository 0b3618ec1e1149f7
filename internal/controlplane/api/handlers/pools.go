package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PoolHandler handles pool management endpoints.
type PoolHandler struct {
	node PoolService
}

// NewPoolHandler creates a new PoolHandler.
func NewPoolHandler(node PoolService) *PoolHandler {
	return &PoolHandler{node: node}
}

// Create handles POST /api/v1/pools.
func (h *PoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	info, err := h.node.CreatePool(r.Context(), req.Name, req.Disks)
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONCreated(w, info)
}

// List handles GET /api/v1/pools.
func (h *PoolHandler) List(w http.ResponseWriter, r *http.Request) {
	pools, err := h.node.ListPools()
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, pools)
}

// Get handles GET /api/v1/pools/{name}.
func (h *PoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.node.GetPool(chi.URLParam(r, "name"))
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, info)
}

// Delete handles DELETE /api/v1/pools/{name}.
func (h *PoolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.node.DestroyPool(r.Context(), chi.URLParam(r, "name")); err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteNoContent(w)
}
