package httpx

import (
	"io"
	"net/http"
	"strconv"

	"github.com/haukened/objvault/internal/domain"
)

// handleDownload implements GET /v1/objects/{id}.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
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
	rc, obj, err := h.Service.Download(ctx, id, tenantID)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.streamObject(w, rc, obj)
}

// handleDownloadByKey implements GET /v1/{namespace}/objects/by-key/{key}.
func (h *Handler) handleDownloadByKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns, err := domain.ParseNamespace(r.PathValue("namespace"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid namespace")
		return
	}
	key, err := domain.ParseObjectKey(r.PathValue("key"))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid key")
		return
	}
	tenantID, err := domain.ParseTenantID(r.Header.Get(TenantHeader))
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "missing or invalid "+TenantHeader)
		return
	}
	rc, obj, err := h.Service.DownloadByKey(ctx, ns, tenantID, key)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.streamObject(w, rc, obj)
}

// streamObject writes object metadata headers and copies the blob body.
func (h *Handler) streamObject(w http.ResponseWriter, rc io.ReadCloser, obj *domain.Object) {
	defer rc.Close()
	w.Header().Set("X-Object-Id", obj.ID.String())
	if obj.ContentHash != nil {
		w.Header().Set("X-Content-Hash", obj.ContentHash.String())
	}
	for k, v := range obj.Metadata {
		w.Header().Set(MetadataHeaderPrefix+k, v)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.SizeBytes != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*obj.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
