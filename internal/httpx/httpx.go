// Package httpx contains the HTTP delivery layer (net/http handlers) for
// the object storage service. It maps requests to internal/app.Service
// while enforcing tenant headers, size limits, security headers, and error
// translation. Handlers are split across files (upload.go, download.go,
// delete.go, list.go, health.go, errors.go) the way the teacher splits its
// create.go/consume.go/health.go.
package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/haukened/objvault/internal/domain"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and faked in tests.
type ServicePort interface {
	Upload(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key *domain.ObjectKey, class domain.StorageClass, contentType string, metadata map[string]string, size int64, r io.Reader) (*domain.Object, error)
	Download(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) (io.ReadCloser, *domain.Object, error)
	DownloadByKey(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (io.ReadCloser, *domain.Object, error)
	Delete(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) error
	List(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error)
}

// TenantHeader carries the caller's tenant id on every request. There is no
// authentication layer in the core; a gateway in front of this service is
// expected to set it from a verified identity.
const TenantHeader = "X-Tenant-ID"

// MetadataHeaderPrefix marks request headers that should be folded into an
// object's metadata map, analogous to S3's x-amz-meta-* convention.
const MetadataHeaderPrefix = "X-Object-Meta-"

// Handler wires HTTP endpoints to the application service. Safe for
// concurrent use; zero-value is not valid, construct via New.
type Handler struct {
	Service   ServicePort
	MaxBody   int64                       // mirrors app.Service.MaxUploadBytes (defense-in-depth)
	Readiness func(context.Context) error // optional readiness probe
}

// New returns a configured Handler.
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs an http.Handler with all routes mounted, correlation-id
// and security-header middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/{namespace}/objects", h.handleUpload)
	// GET /v1/objects/{id} (Download) and GET /v1/{namespace}/objects (List)
	// both match "/v1/objects/objects", and ServeMux refuses to register two
	// patterns of which neither is more specific. One pattern serves both;
	// a first segment of "objects" selects Download.
	mux.HandleFunc("GET /v1/{first}/{second}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("first") == "objects" {
			r.SetPathValue("id", r.PathValue("second"))
			h.handleDownload(w, r)
			return
		}
		if r.PathValue("second") == "objects" {
			r.SetPathValue("namespace", r.PathValue("first"))
			h.handleList(w, r)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /v1/{namespace}/objects/by-key/{key}", h.handleDownloadByKey)
	mux.HandleFunc("DELETE /v1/objects/{id}", h.handleDelete)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /readyz", h.handleReady)
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders adds standard security and cache-control headers, matching
// the teacher's middleware of the same name.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// metadataFromHeaders extracts X-Object-Meta-* headers into a plain map.
// Keys keep the canonical header case of the suffix (X-Object-Meta-owner
// yields "Owner").
func metadataFromHeaders(h http.Header) map[string]string {
	var meta map[string]string
	for k := range h {
		if len(k) <= len(MetadataHeaderPrefix) {
			continue
		}
		if !hasPrefixFold(k, MetadataHeaderPrefix) {
			continue
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		name := k[len(MetadataHeaderPrefix):]
		meta[name] = h.Get(k)
	}
	return meta
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return http.CanonicalHeaderKey(s[:len(prefix)]) == http.CanonicalHeaderKey(prefix)
}
