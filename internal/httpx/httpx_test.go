package httpx

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/haukened/objvault/internal/domain"
)

// fakeService is a minimal in-memory ServicePort used by the handler tests
// in this package; it does not exercise internal/app at all.
type fakeService struct {
	uploadFn        func(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key *domain.ObjectKey, class domain.StorageClass, contentType string, metadata map[string]string, size int64, r io.Reader) (*domain.Object, error)
	downloadFn      func(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) (io.ReadCloser, *domain.Object, error)
	downloadByKeyFn func(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (io.ReadCloser, *domain.Object, error)
	deleteFn        func(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) error
	listFn          func(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error)
}

func (f *fakeService) Upload(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key *domain.ObjectKey, class domain.StorageClass, contentType string, metadata map[string]string, size int64, r io.Reader) (*domain.Object, error) {
	return f.uploadFn(ctx, ns, tenantID, key, class, contentType, metadata, size, r)
}

func (f *fakeService) Download(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) (io.ReadCloser, *domain.Object, error) {
	return f.downloadFn(ctx, id, tenantID)
}

func (f *fakeService) DownloadByKey(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (io.ReadCloser, *domain.Object, error) {
	return f.downloadByKeyFn(ctx, ns, tenantID, key)
}

func (f *fakeService) Delete(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) error {
	return f.deleteFn(ctx, id, tenantID)
}

func (f *fakeService) List(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error) {
	return f.listFn(ctx, ns, tenantID, limit, offset)
}

func mustObjectID() domain.ObjectID {
	id, err := domain.NewObjectID()
	if err != nil {
		panic(err)
	}
	return id
}

func mustHash() domain.ContentHash {
	h, err := domain.ParseContentHash(strings.Repeat("ab", 32))
	if err != nil {
		panic(err)
	}
	return h
}

func sampleObject(tenantID domain.TenantID) *domain.Object {
	id := mustObjectID()
	hash := mustHash()
	size := int64(11)
	now := time.Unix(1700000000, 0).UTC()
	return &domain.Object{
		ID:           id,
		Namespace:    "models",
		TenantID:     tenantID,
		Status:       domain.StatusCommitted,
		StorageClass: domain.Hot,
		ContentHash:  &hash,
		SizeBytes:    &size,
		ContentType:  "text/plain",
		Metadata:     map[string]string{"owner": "alice"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }
