package httpx

import (
	"net/http"
	"strconv"

	"github.com/haukened/objvault/internal/domain"
)

// listResponse wraps the page of objects with the total count so a caller
// can paginate without a second request.
type listResponse struct {
	Objects []objectView `json:"objects"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// handleList implements GET /v1/{namespace}/objects.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns, err := domain.ParseNamespace(r.PathValue("namespace"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid namespace")
		return
	}
	tenantID, err := domain.ParseTenantID(r.Header.Get(TenantHeader))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "missing or invalid "+TenantHeader)
		return
	}

	limit, err := intQueryParam(r, "limit", 0)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := intQueryParam(r, "offset", 0)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid offset")
		return
	}

	objs, total, err := h.Service.List(ctx, ns, tenantID, limit, offset)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}

	views := make([]objectView, len(objs))
	for i, o := range objs {
		views[i] = newObjectView(o)
	}
	writeJSON(w, http.StatusOK, listResponse{Objects: views, Total: total, Limit: limit, Offset: offset})
}

func intQueryParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
