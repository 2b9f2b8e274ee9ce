package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haukened/objvault/internal/domain"
)

func TestHandleListSuccess(t *testing.T) {
	obj := sampleObject("tenant-a")
	var gotLimit, gotOffset int
	svc := &fakeService{
		listFn: func(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error) {
			gotLimit, gotOffset = limit, offset
			return []*domain.Object{obj}, 1, nil
		},
	}
	h := New(svc, 0, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/models/objects?limit=10&offset=5", nil)
	req.Header.Set(TenantHeader, "tenant-a")
	req.SetPathValue("namespace", "models")
	rr := httptest.NewRecorder()

	h.handleList(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotLimit != 10 || gotOffset != 5 {
		t.Fatalf("expected limit=10 offset=5, got limit=%d offset=%d", gotLimit, gotOffset)
	}
}

func TestHandleListInvalidOffset(t *testing.T) {
	h := New(&fakeService{}, 0, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/models/objects?offset=not-a-number", nil)
	req.Header.Set(TenantHeader, "tenant-a")
	req.SetPathValue("namespace", "models")
	rr := httptest.NewRecorder()

	h.handleList(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleListMissingTenant(t *testing.T) {
	h := New(&fakeService{}, 0, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/models/objects", nil)
	req.SetPathValue("namespace", "models")
	rr := httptest.NewRecorder()

	h.handleList(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
