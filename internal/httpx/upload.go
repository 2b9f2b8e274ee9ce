package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/haukened/objvault/internal/domain"
)

// handleUpload implements PUT /v1/{namespace}/objects.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
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

	var key *domain.ObjectKey
	if raw := r.URL.Query().Get("key"); raw != "" {
		k, err := domain.ParseObjectKey(raw)
		if err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid key")
			return
		}
		key = &k
	}

	class := domain.Hot
	if raw := r.URL.Query().Get("storage_class"); raw != "" {
		class, err = domain.ParseStorageClass(raw)
		if err != nil {
			h.writeError(ctx, w, http.StatusBadRequest, "invalid storage_class")
			return
		}
	}

	size, err := h.parseContentLength(r)
	if err != nil {
		h.writeError(ctx, w, contentLengthErrorStatus(err), err.Error())
		return
	}

	body := http.MaxBytesReader(w, r.Body, size)
	defer body.Close()

	obj, err := h.Service.Upload(ctx, ns, tenantID, key, class, r.Header.Get("Content-Type"), metadataFromHeaders(r.Header), size, body)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newObjectView(obj))
}

// parseContentLength requires a positive Content-Length header, optionally
// bounded by h.MaxBody as a defense-in-depth check ahead of app.Service's
// own limit.
func (h *Handler) parseContentLength(r *http.Request) (int64, error) {
	raw := r.Header.Get("Content-Length")
	if raw == "" {
		return 0, errContentLengthRequired
	}
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size <= 0 {
		return 0, errInvalidContentLength
	}
	if h.MaxBody > 0 && size > h.MaxBody {
		return 0, errSizeExceeded
	}
	return size, nil
}

func contentLengthErrorStatus(err error) int {
	switch {
	case errors.Is(err, errContentLengthRequired):
		return http.StatusLengthRequired
	case errors.Is(err, errSizeExceeded):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}
