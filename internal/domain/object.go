package domain

import "time"

// Object is a tenant-visible logical entity that names and references a
// blob. See spec §3 for the full invariant set.
type Object struct {
	ID           ObjectID
	Namespace    Namespace
	TenantID     TenantID
	Key          *ObjectKey // optional; nil when the caller supplied none
	Status       ObjectStatus
	StorageClass StorageClass
	ContentHash  *ContentHash // absent while WRITING
	SizeBytes    *int64       // absent while WRITING
	ContentType  string       // optional, free-form
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewWritingObject constructs a fresh Object in the WRITING state. Its
// content hash and size are unset until Commit is called.
func NewWritingObject(id ObjectID, ns Namespace, tenant TenantID, key *ObjectKey, class StorageClass, contentType string, metadata map[string]string, now time.Time) *Object {
	return &Object{
		ID:           id,
		Namespace:    ns,
		TenantID:     tenant,
		Key:          key,
		Status:       StatusWriting,
		StorageClass: class,
		ContentType:  contentType,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Commit transitions o from WRITING to COMMITTED, setting its content hash
// and size. Returns ErrInvalidTransition if o is not currently WRITING.
func (o *Object) Commit(hash ContentHash, size int64, now time.Time) error {
	if !o.Status.CanTransitionTo(StatusCommitted) {
		return ErrInvalidTransition
	}
	o.Status = StatusCommitted
	o.ContentHash = &hash
	o.SizeBytes = &size
	o.UpdatedAt = now
	return nil
}

// MarkDeleting transitions o from COMMITTED to DELETING. Returns
// ErrInvalidTransition if o is not currently COMMITTED.
func (o *Object) MarkDeleting(now time.Time) error {
	if !o.Status.CanTransitionTo(StatusDeleting) {
		return ErrInvalidTransition
	}
	o.Status = StatusDeleting
	o.UpdatedAt = now
	return nil
}

// MarkDeleted transitions o from DELETING to the terminal DELETED state.
// Returns ErrInvalidTransition if o is not currently DELETING.
func (o *Object) MarkDeleted(now time.Time) error {
	if !o.Status.CanTransitionTo(StatusDeleted) {
		return ErrInvalidTransition
	}
	o.Status = StatusDeleted
	o.UpdatedAt = now
	return nil
}

// Visible reports whether o should ever be returned to an external caller.
// Only COMMITTED objects are externally visible.
func (o *Object) Visible() bool { return o.Status == StatusCommitted }
