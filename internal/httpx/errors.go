package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/haukened/objvault/internal/domain"
)

// Request-parsing errors surfaced directly by the HTTP layer, ahead of any
// call into app.Service.
var (
	errContentLengthRequired = errors.New("content-length header required")
	errInvalidContentLength  = errors.New("invalid content-length header")
	errSizeExceeded          = errors.New("upload size exceeded")
)

// writeError writes a JSON error body with the given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	cid, _ := GetCorrelationID(ctx)
	slog.Debug("wrote error response", "domain", "httpx", "cid", cid, "status", code, "msg", msg)
}

// mapServiceError maps a domain.Error's Kind to an HTTP response. Unlike
// the teacher's errors.Is chain over individual sentinels, the typed Kind
// lets this be a single switch.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInvalidRequest:
		slog.Warn("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request")
	case domain.KindConflict:
		slog.Info("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusConflict, "conflict")
	case domain.KindNotFound:
		slog.Info("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case domain.KindCanceled:
		slog.Info("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusRequestTimeout, "request canceled")
	case domain.KindTimeout:
		slog.Warn("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusGatewayTimeout, "timeout")
	case domain.KindCorrupted:
		// Do not leak filesystem details; log loudly, tell the caller little.
		slog.Error("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusInternalServerError, "stored object is corrupted")
	case domain.KindIO, domain.KindRepository:
		slog.Error("service error", "domain", "httpx", "cid", cid, "kind", kind.String())
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	default:
		slog.Error("unhandled service error", "domain", "httpx", "cid", cid)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
