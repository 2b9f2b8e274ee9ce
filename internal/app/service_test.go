package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haukened/objvault/internal/domain"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// fixedClock implements Clock returning a fixed instant.
type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

// fakeObjects implements store.ObjectRepository entirely in memory.
type fakeObjects struct {
	mu      sync.Mutex
	byID    map[domain.ObjectID]*domain.Object
	saveErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{byID: map[domain.ObjectID]*domain.Object{}}
}

func (f *fakeObjects) Save(ctx context.Context, o *domain.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if o.Key != nil {
		for id, existing := range f.byID {
			if id == o.ID || existing.Status == domain.StatusDeleted {
				continue
			}
			if existing.Namespace == o.Namespace && existing.TenantID == o.TenantID && existing.Key != nil && *existing.Key == *o.Key {
				return domain.ErrConflict
			}
		}
	}
	cp := *o
	f.byID[o.ID] = &cp
	return nil
}

func (f *fakeObjects) FindByID(ctx context.Context, id domain.ObjectID) (*domain.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok || o.Status != domain.StatusCommitted {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeObjects) FindByKey(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (*domain.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.Status == domain.StatusCommitted && o.Namespace == ns && o.TenantID == tenantID && o.Key != nil && *o.Key == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeObjects) List(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*domain.Object
	for _, o := range f.byID {
		if o.Status == domain.StatusCommitted && o.Namespace == ns && o.TenantID == tenantID {
			cp := *o
			all = append(all, &cp)
		}
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeObjects) MarkDeleting(ctx context.Context, id domain.ObjectID, now time.Time) (domain.ContentHash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok || o.Status != domain.StatusCommitted {
		return "", domain.ErrNotFound
	}
	o.Status = domain.StatusDeleting
	return *o.ContentHash, nil
}

func (f *fakeObjects) FinalizeDeleted(ctx context.Context, hash domain.ContentHash, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.ContentHash != nil && *o.ContentHash == hash && o.Status == domain.StatusDeleting {
			o.Status = domain.StatusDeleted
		}
	}
	return nil
}

func (f *fakeObjects) SweepStuckWriting(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// fakeBlobs implements store.BlobRepository entirely in memory.
type fakeBlobs struct {
	mu   sync.Mutex
	rows map[domain.ContentHash]*domain.Blob
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{rows: map[domain.ContentHash]*domain.Blob{}}
}

func (f *fakeBlobs) GetOrCreateAndIncrement(ctx context.Context, hash domain.ContentHash, class domain.StorageClass, size int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[hash]; ok {
		b.Increment(now)
		return nil
	}
	f.rows[hash] = domain.NewBlob(hash, class, size, now)
	return nil
}

func (f *fakeBlobs) Decrement(ctx context.Context, hash domain.ContentHash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[hash]
	if !ok {
		return domain.ErrNotFound
	}
	return b.Decrement()
}

func (f *fakeBlobs) FindOrphaned(ctx context.Context, batchSize int) ([]*domain.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Blob
	for _, b := range f.rows {
		if b.Orphaned() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBlobs) Find(ctx context.Context, hash domain.ContentHash) (*domain.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, hash domain.ContentHash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, hash)
	return nil
}

// fakeFiles implements BlobStore over an in-memory map keyed by hash,
// standing in for internal/blobstore in tests that should not touch disk.
type fakeFiles struct {
	mu   sync.Mutex
	data map[domain.ContentHash][]byte
}

func newFakeFiles() *fakeFiles { return &fakeFiles{data: map[domain.ContentHash][]byte{}} }

func (f *fakeFiles) Write(root string, id domain.ObjectID, r io.Reader) (domain.ContentHash, int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	sum := sha256Hex(b)
	hash := domain.ContentHash(sum)
	f.mu.Lock()
	f.data[hash] = b
	f.mu.Unlock()
	return hash, int64(len(b)), nil
}

func (f *fakeFiles) Read(root string, hash domain.ContentHash) (io.ReadCloser, error) {
	f.mu.Lock()
	b, ok := f.data[hash]
	f.mu.Unlock()
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, errors.New("no such blob"))
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (f *fakeFiles) Delete(root string, hash domain.ContentHash) error {
	f.mu.Lock()
	delete(f.data, hash)
	f.mu.Unlock()
	return nil
}

func (f *fakeFiles) Exists(root string, hash domain.ContentHash) (bool, error) {
	f.mu.Lock()
	_, ok := f.data[hash]
	f.mu.Unlock()
	return ok, nil
}

func newTestService() (*Service, *fakeObjects, *fakeBlobs, *fakeFiles) {
	objs := newFakeObjects()
	blobs := newFakeBlobs()
	files := newFakeFiles()
	svc := NewService(objs, blobs, files, fixedClock{now: time.Unix(1700000000, 0)}, nil, "/hot", "/cold", 0, 100, 4)
	return svc, objs, blobs, files
}

func mustKey(t *testing.T, s string) *domain.ObjectKey {
	t.Helper()
	k, err := domain.ParseObjectKey(s)
	if err != nil {
		t.Fatalf("ParseObjectKey: %v", err)
	}
	return &k
}

func TestServiceUploadThenDownload(t *testing.T) {
	svc, _, blobs, _ := newTestService()
	ns := domain.Namespace("models")
	tenant := domain.TenantID("t1")
	key := mustKey(t, "m1")

	obj, err := svc.Upload(context.Background(), ns, tenant, key, domain.Hot, "application/octet-stream", nil, 5, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if obj.Status != domain.StatusCommitted {
		t.Fatalf("expected COMMITTED, got %s", obj.Status)
	}
	if obj.SizeBytes == nil || *obj.SizeBytes != 5 {
		t.Fatalf("size mismatch: %+v", obj.SizeBytes)
	}

	b, err := blobs.Find(context.Background(), *obj.ContentHash)
	if err != nil {
		t.Fatalf("Find blob: %v", err)
	}
	if b.RefCount != 1 {
		t.Fatalf("expected RefCount 1, got %d", b.RefCount)
	}

	rc, dto, err := svc.Download(context.Background(), obj.ID, tenant)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q want %q", data, "hello")
	}
	if dto.ID != obj.ID {
		t.Fatalf("dto id mismatch")
	}
}

func TestServiceUploadDeduplicatesRefCount(t *testing.T) {
	svc, _, blobs, _ := newTestService()
	ns := domain.Namespace("models")
	tenant := domain.TenantID("t1")

	o1, err := svc.Upload(context.Background(), ns, tenant, mustKey(t, "m1"), domain.Hot, "", nil, 5, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	o2, err := svc.Upload(context.Background(), ns, tenant, mustKey(t, "m2"), domain.Hot, "", nil, 5, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if *o1.ContentHash != *o2.ContentHash {
		t.Fatalf("expected identical content hash")
	}
	b, err := blobs.Find(context.Background(), *o1.ContentHash)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if b.RefCount != 2 {
		t.Fatalf("expected RefCount 2, got %d", b.RefCount)
	}
}

func TestServiceDownloadTenantIsolation(t *testing.T) {
	svc, _, _, _ := newTestService()
	obj, err := svc.Upload(context.Background(), domain.Namespace("ns"), domain.TenantID("t1"), nil, domain.Hot, "", nil, 1, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, _, err := svc.Download(context.Background(), obj.ID, domain.TenantID("t2")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestServiceUploadConflictOnDuplicateKey(t *testing.T) {
	svc, _, _, _ := newTestService()
	ns := domain.Namespace("kb")
	tenant := domain.TenantID("t1")
	key := mustKey(t, "doc")

	if _, err := svc.Upload(context.Background(), ns, tenant, key, domain.Hot, "", nil, 1, strings.NewReader("A")); err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	_, err := svc.Upload(context.Background(), ns, tenant, key, domain.Hot, "", nil, 1, strings.NewReader("B"))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestServiceDeleteThenDownloadNotFound(t *testing.T) {
	svc, _, blobs, _ := newTestService()
	obj, err := svc.Upload(context.Background(), domain.Namespace("ns"), domain.TenantID("t1"), nil, domain.Hot, "", nil, 1, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := svc.Delete(context.Background(), obj.ID, domain.TenantID("t1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := svc.Download(context.Background(), obj.ID, domain.TenantID("t1")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound post-delete, got %v", err)
	}
	b, err := blobs.Find(context.Background(), *obj.ContentHash)
	if err != nil {
		t.Fatalf("Find blob: %v", err)
	}
	if b.RefCount != 0 {
		t.Fatalf("expected RefCount 0 after delete, got %d", b.RefCount)
	}

	if err := svc.Delete(context.Background(), obj.ID, domain.TenantID("t1")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second Delete, got %v", err)
	}
}

func TestServiceListTotalAndClamp(t *testing.T) {
	svc, _, _, _ := newTestService()
	ns := domain.Namespace("ns")
	tenant := domain.TenantID("t1")
	for i := 0; i < 3; i++ {
		if _, err := svc.Upload(context.Background(), ns, tenant, nil, domain.Hot, "", nil, 1, strings.NewReader("x")); err != nil {
			t.Fatalf("Upload %d: %v", i, err)
		}
	}
	got, total, err := svc.List(context.Background(), ns, tenant, 1000, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(got) != svc.MaxListLimit && len(got) != 3 {
		t.Fatalf("expected clamp at most MaxListLimit, got %d", len(got))
	}
}

func TestServiceUploadSizeExceeded(t *testing.T) {
	svc, _, _, _ := newTestService()
	svc.MaxUploadBytes = 2
	_, err := svc.Upload(context.Background(), domain.Namespace("ns"), domain.TenantID("t1"), nil, domain.Hot, "", nil, 5, strings.NewReader("hello"))
	if !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
}
