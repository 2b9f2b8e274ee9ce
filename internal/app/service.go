package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/semaphore"

	"github.com/haukened/objvault/internal/domain"
	"github.com/haukened/objvault/internal/store"
)

// ErrSizeExceeded indicates the upload body exceeded the configured maximum.
var ErrSizeExceeded = errors.New("upload size exceeded")

// Service orchestrates the object storage use cases described in spec §4.5
// through §4.8: Upload, Download, Delete, and List. It validates inputs and
// sequences calls to the injected ports; it performs no I/O of its own.
type Service struct {
	Objects store.ObjectRepository
	Blobs   store.BlobRepository
	Files   BlobStore
	Clock   Clock
	Metrics Metrics // optional; may be nil

	HotRoot  string
	ColdRoot string

	MaxUploadBytes int64
	MaxListLimit   int

	// uploadSem bounds the number of concurrently in-flight blob writes,
	// per spec §5's "max concurrent uploads" resource cap. Acquired only
	// for the duration of Files.Write, released before the commit
	// transaction, so it never gates repository I/O.
	uploadSem *semaphore.Weighted
}

// NewService constructs a Service with an upload concurrency cap of
// maxConcurrentUploads (must be >= 1).
func NewService(objects store.ObjectRepository, blobs store.BlobRepository, files BlobStore, clock Clock, metrics Metrics, hotRoot, coldRoot string, maxUploadBytes int64, maxListLimit, maxConcurrentUploads int) *Service {
	return &Service{
		Objects:        objects,
		Blobs:          blobs,
		Files:          files,
		Clock:          clock,
		Metrics:        metrics,
		HotRoot:        hotRoot,
		ColdRoot:       coldRoot,
		MaxUploadBytes: maxUploadBytes,
		MaxListLimit:   maxListLimit,
		uploadSem:      semaphore.NewWeighted(int64(maxConcurrentUploads)),
	}
}

func (s *Service) inc(name string) {
	if s.Metrics != nil {
		s.Metrics.Inc(name, 1)
	}
}

// Upload implements the two-phase write protocol of spec §4.5.
func (s *Service) Upload(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key *domain.ObjectKey, class domain.StorageClass, contentType string, metadata map[string]string, size int64, r io.Reader) (*domain.Object, error) {
	if !class.Valid() {
		return nil, domain.NewError(domain.KindInvalidRequest, domain.ErrInvalidStorageClass)
	}
	if s.MaxUploadBytes > 0 && size > s.MaxUploadBytes {
		return nil, domain.NewError(domain.KindInvalidRequest, ErrSizeExceeded)
	}

	id, err := domain.NewObjectID()
	if err != nil {
		return nil, domain.NewError(domain.KindIO, err)
	}
	now := s.Clock.Now()
	obj := domain.NewWritingObject(id, ns, tenantID, key, class, contentType, metadata, now)

	// Phase 1: reservation. A key collision here fails cleanly with no
	// bytes written and nothing to sweep.
	if err := s.Objects.Save(ctx, obj); err != nil {
		return nil, err
	}

	if err := s.uploadSem.Acquire(ctx, 1); err != nil {
		return nil, domain.NewError(domain.KindCanceled, err)
	}
	root := class.Root(s.HotRoot, s.ColdRoot)
	hash, actualSize, err := s.Files.Write(root, id, r)
	s.uploadSem.Release(1)
	if err != nil {
		// The WRITING row is left in place for the gc.Collector's
		// stuck-upload sweep; see spec §4.5's crash-recovery contract.
		return nil, domain.NewError(domain.KindIO, err)
	}

	commitAt := s.Clock.Now()
	if err := s.Blobs.GetOrCreateAndIncrement(ctx, hash, class, actualSize, commitAt); err != nil {
		return nil, err
	}
	if err := obj.Commit(hash, actualSize, commitAt); err != nil {
		return nil, domain.NewError(domain.KindRepository, err)
	}
	if err := s.Objects.Save(ctx, obj); err != nil {
		return nil, err
	}

	s.inc("objects_uploaded_total")
	return obj, nil
}

// Download implements spec §4.6 for lookup by object id.
func (s *Service) Download(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) (io.ReadCloser, *domain.Object, error) {
	obj, err := s.Objects.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.openForRead(obj, tenantID)
}

// DownloadByKey implements spec §4.6 for lookup by (namespace, tenant, key).
func (s *Service) DownloadByKey(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (io.ReadCloser, *domain.Object, error) {
	obj, err := s.Objects.FindByKey(ctx, ns, tenantID, key)
	if err != nil {
		return nil, nil, err
	}
	return s.openForRead(obj, tenantID)
}

func (s *Service) openForRead(obj *domain.Object, tenantID domain.TenantID) (io.ReadCloser, *domain.Object, error) {
	if obj.TenantID != tenantID || !obj.Visible() {
		return nil, nil, domain.ErrNotFound
	}
	if obj.ContentHash == nil {
		return nil, nil, domain.NewError(domain.KindCorrupted, fmt.Errorf("committed object %s has no content hash", obj.ID))
	}
	root := obj.StorageClass.Root(s.HotRoot, s.ColdRoot)
	rc, err := s.Files.Read(root, *obj.ContentHash)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, nil, domain.NewError(domain.KindCorrupted, err)
		}
		return nil, nil, err
	}
	s.inc("objects_downloaded_total")
	return rc, obj, nil
}

// Delete implements spec §4.7. The physical file is never touched here;
// reclamation is deferred to internal/gc.
func (s *Service) Delete(ctx context.Context, id domain.ObjectID, tenantID domain.TenantID) error {
	obj, err := s.Objects.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if obj.TenantID != tenantID {
		return domain.ErrNotFound
	}

	hash, err := s.Objects.MarkDeleting(ctx, id, s.Clock.Now())
	if err != nil {
		return err
	}
	if err := s.Blobs.Decrement(ctx, hash); err != nil {
		return err
	}
	s.inc("objects_deleted_total")
	return nil
}

// List implements spec §4.8, clamping limit to MaxListLimit when configured.
func (s *Service) List(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error) {
	if limit <= 0 {
		limit = s.MaxListLimit
	}
	if s.MaxListLimit > 0 && limit > s.MaxListLimit {
		limit = s.MaxListLimit
	}
	if offset < 0 {
		return nil, 0, domain.NewError(domain.KindInvalidRequest, errors.New("offset must be non-negative"))
	}
	return s.Objects.List(ctx, ns, tenantID, limit, offset)
}
