// Package store defines the MetadataRepository ports — ObjectRepository and
// BlobRepository — over a transactional indexed store, plus the concrete
// SQLite adapter in the store/sqlite subpackage. Use cases in internal/app
// depend only on these interfaces.
package store

import (
	"context"
	"time"

	"github.com/haukened/objvault/internal/domain"
)

// ObjectRepository persists Object rows and enforces the uniqueness rule
// from spec §4.4.
type ObjectRepository interface {
	// Save upserts o by its ID. On insert, it enforces uniqueness of
	// (namespace, tenant_id, key) among non-DELETED rows, returning
	// domain.ErrConflict on collision. Save does not check the status
	// transition against the stored row; it writes the status o carries.
	Save(ctx context.Context, o *domain.Object) error

	// FindByID returns the COMMITTED object with id, or domain.ErrNotFound.
	FindByID(ctx context.Context, id domain.ObjectID) (*domain.Object, error)

	// FindByKey returns the COMMITTED object matching
	// (namespace, tenantID, key), or domain.ErrNotFound.
	FindByKey(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (*domain.Object, error)

	// List returns up to limit COMMITTED objects for (namespace, tenantID)
	// ordered by created_at descending, ties broken by id, starting at
	// offset. total is the count of all matching rows, when cheaply
	// available.
	List(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) (objects []*domain.Object, total int, err error)

	// MarkDeleting atomically transitions the COMMITTED object with id to
	// DELETING and returns its content hash. Returns domain.ErrNotFound if
	// the object is not currently COMMITTED.
	MarkDeleting(ctx context.Context, id domain.ObjectID, now time.Time) (domain.ContentHash, error)

	// FinalizeDeleted transitions all DELETING rows referencing hash to
	// DELETED.
	FinalizeDeleted(ctx context.Context, hash domain.ContentHash, now time.Time) error

	// SweepStuckWriting removes WRITING rows created before olderThan and
	// returns the number removed.
	SweepStuckWriting(ctx context.Context, olderThan time.Time) (int, error)
}

// BlobRepository persists Blob rows and their reference counts.
type BlobRepository interface {
	// GetOrCreateAndIncrement inserts a new Blob row with RefCount 1, or
	// increments an existing row's RefCount and refreshes LastUsedAt, in a
	// single transaction.
	GetOrCreateAndIncrement(ctx context.Context, hash domain.ContentHash, class domain.StorageClass, size int64, now time.Time) error

	// Decrement lowers the RefCount for hash by one. Returns
	// domain.ErrRepository wrapping domain.ErrRefCountUnderflow if the
	// result would go negative.
	Decrement(ctx context.Context, hash domain.ContentHash) error

	// FindOrphaned returns up to batchSize blobs with RefCount == 0.
	FindOrphaned(ctx context.Context, batchSize int) ([]*domain.Blob, error)

	// Find returns the blob row for hash, or domain.ErrNotFound.
	Find(ctx context.Context, hash domain.ContentHash) (*domain.Blob, error)

	// Delete removes the Blob row for hash. The caller must have verified
	// RefCount == 0 inside the same transactional context; implementations
	// re-check this precondition before deleting.
	Delete(ctx context.Context, hash domain.ContentHash) error
}
