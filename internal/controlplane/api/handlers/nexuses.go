package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/pool"
)

// nexusID returns the {id} route parameter and tags the request's log
// context with it.
func nexusID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if lc := logger.FromContext(r.Context()); lc != nil {
		lc.Nexus = id
	}
	return id
}

// NexusHandler handles nexus management endpoints. Nexuses are addressed
// by UUID or name.
type NexusHandler struct {
	node NexusService
}

// NewNexusHandler creates a new NexusHandler.
func NewNexusHandler(node NexusService) *NexusHandler {
	return &NexusHandler{node: node}
}

// Create handles POST /api/v1/nexuses.
func (h *NexusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNexusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	info, err := h.node.CreateNexus(r.Context(), nexus.Spec{
		UUID:     req.UUID,
		Name:     req.Name,
		Size:     req.Size,
		Children: req.Children,
	})
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONCreated(w, info)
}

// List handles GET /api/v1/nexuses.
func (h *NexusHandler) List(w http.ResponseWriter, r *http.Request) {
	nexuses, err := h.node.ListNexuses()
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, nexuses)
}

// Get handles GET /api/v1/nexuses/{id}.
func (h *NexusHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.node.GetNexus(nexusID(r))
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, info)
}

// Delete handles DELETE /api/v1/nexuses/{id}. Deleting a nexus that does
// not exist succeeds.
func (h *NexusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.node.DestroyNexus(r.Context(), nexusID(r)); err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Publish handles POST /api/v1/nexuses/{id}/publish.
func (h *NexusHandler) Publish(w http.ResponseWriter, r *http.Request) {
	req := ShareRequest{Protocol: pool.ShareNvmf.String()}
	if r.ContentLength != 0 && !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Protocol == "" {
		req.Protocol = pool.ShareNvmf.String()
	}
	proto, err := pool.ParseShareProtocol(req.Protocol)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	uri, err := h.node.PublishNexus(r.Context(), nexusID(r), proto)
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, ShareResponse{URI: uri})
}

// Unpublish handles DELETE /api/v1/nexuses/{id}/publish.
func (h *NexusHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	if err := h.node.UnpublishNexus(r.Context(), nexusID(r)); err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// RemoveChild handles DELETE /api/v1/nexuses/{id}/children?uri=<child-uri>.
func (h *NexusHandler) RemoveChild(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		BadRequest(w, "Child uri is required")
		return
	}

	info, err := h.node.RemoveChild(r.Context(), nexusID(r), uri)
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, info)
}

// GetANA handles GET /api/v1/nexuses/{id}/ana.
func (h *NexusHandler) GetANA(w http.ResponseWriter, r *http.Request) {
	state, err := h.node.GetANAState(nexusID(r))
	if err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, ANAStateBody{State: state})
}

// SetANA handles PUT /api/v1/nexuses/{id}/ana.
func (h *NexusHandler) SetANA(w http.ResponseWriter, r *http.Request) {
	var req ANAStateBody
	if !decodeJSONBody(w, r, &req) {
		return
	}

	id := nexusID(r)
	if err := h.node.SetANAState(r.Context(), id, req.State); err != nil {
		HandleStatusError(w, r, err)
		return
	}
	WriteJSONOK(w, req)
}
