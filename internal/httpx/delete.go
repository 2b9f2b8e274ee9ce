package httpx

import (
	"net/http"

	"github.com/haukened/objvault/internal/domain"
)

// handleDelete implements DELETE /v1/objects/{id}.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseObjectID(r.PathValue("id"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid id")
		return
	}
	tenantID, err := domain.ParseTenantID(r.Header.Get(TenantHeader))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "missing or invalid "+TenantHeader)
		return
	}
	if err := h.Service.Delete(ctx, id, tenantID); err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
