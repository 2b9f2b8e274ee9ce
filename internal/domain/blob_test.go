package domain

import (
	"testing"
	"time"
)

func TestBlobRefCounting(t *testing.T) {
	now := time.Unix(2000, 0).UTC()
	hash := ContentHash("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	b := NewBlob(hash, Hot, 5, now)
	if b.RefCount != 1 {
		t.Fatalf("expected RefCount 1, got %d", b.RefCount)
	}
	if b.Orphaned() {
		t.Fatalf("fresh blob must not be orphaned")
	}

	b.Increment(now.Add(time.Second))
	if b.RefCount != 2 {
		t.Fatalf("expected RefCount 2, got %d", b.RefCount)
	}

	if err := b.Decrement(); err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if err := b.Decrement(); err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if !b.Orphaned() {
		t.Fatalf("expected orphaned blob at RefCount 0")
	}
	if err := b.Decrement(); err == nil {
		t.Fatalf("expected ErrRefCountUnderflow")
	}
}
