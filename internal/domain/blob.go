package domain

import "time"

// Blob is a physical, content-addressed file. The BlobStore owns the file
// bytes; the BlobRepository owns this row; Object rows hold a logical
// reference captured by RefCount.
type Blob struct {
	ContentHash  ContentHash
	StorageClass StorageClass
	RefCount     int64
	SizeBytes    int64
	FirstSeenAt  time.Time
	LastUsedAt   time.Time
}

// NewBlob constructs a fresh Blob row with RefCount 1, as created by the
// first object to reference a given content hash.
func NewBlob(hash ContentHash, class StorageClass, size int64, now time.Time) *Blob {
	return &Blob{
		ContentHash:  hash,
		StorageClass: class,
		RefCount:     1,
		SizeBytes:    size,
		FirstSeenAt:  now,
		LastUsedAt:   now,
	}
}

// Increment bumps RefCount by one and refreshes LastUsedAt.
func (b *Blob) Increment(now time.Time) {
	b.RefCount++
	b.LastUsedAt = now
}

// Decrement lowers RefCount by one. Returns ErrRefCountUnderflow if the
// result would go negative; RefCount must never be mutated below zero.
func (b *Blob) Decrement() error {
	if b.RefCount <= 0 {
		return ErrRefCountUnderflow
	}
	b.RefCount--
	return nil
}

// Orphaned reports whether b has no remaining references and is eligible
// for garbage collection.
func (b *Blob) Orphaned() bool { return b.RefCount == 0 }
