// Package blobstore provides a filesystem-backed implementation of the
// content-addressed blob store: atomic write (temp+fsync+rename+dir-fsync),
// streaming read, and unlink, keyed by content hash.
package blobstore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/haukened/objvault/internal/domain"
	"github.com/haukened/objvault/internal/hasher"
	"github.com/haukened/objvault/internal/pathbuilder"
)

// Store implements blob persistence over the local filesystem. One Store
// serves both storage-class roots; callers pass the resolved root path per
// call (domain.StorageClass.Root) rather than the Store holding a single
// fixed root, since a single process must serve both hot and cold classes.
type Store struct{}

// New returns a filesystem-backed blob Store.
func New() *Store { return &Store{} }

// Write streams all of r into the blob keyed by its content hash under
// root, and returns the computed hash and actual byte count. The write is atomic: on success the final path holds
// the complete file, durably; on failure no partial file is ever observed
// at the final path.
func (s *Store) Write(root string, id domain.ObjectID, r io.Reader) (domain.ContentHash, int64, error) {
	tmpPath := pathbuilder.TempPath(root, id)
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0o700); err != nil {
		return "", 0, domain.NewError(domain.KindIO, err)
	}

	// #nosec G304 -- tmpPath is built from a fixed root and a validated ObjectID.
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, domain.NewError(domain.KindIO, err)
	}

	hash, size, hashErr := hasher.Hash(f, r)
	if hashErr != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", 0, domain.NewError(domain.KindIO, hashErr)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", 0, domain.NewError(domain.KindIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, domain.NewError(domain.KindIO, err)
	}

	finalPath, err := pathbuilder.FinalPath(root, hash)
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}

	if _, statErr := os.Stat(finalPath); statErr == nil {
		// Deduplication hit: identical content already durable on disk.
		os.Remove(tmpPath)
		return hash, size, nil
	}

	finalDir := filepath.Dir(finalPath)
	if err := os.MkdirAll(finalDir, 0o700); err != nil {
		os.Remove(tmpPath)
		return "", 0, domain.NewError(domain.KindIO, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, domain.NewError(domain.KindIO, err)
	}
	if err := fsyncDir(finalDir); err != nil {
		return "", 0, domain.NewError(domain.KindIO, err)
	}
	return hash, size, nil
}

// Read opens the durable blob file for hash under root and returns a
// streaming reader. Deletion is never performed as a side effect of Read;
// only internal/gc removes files, which is what lets a Download that opened
// its stream before a concurrent Delete keep observing the full bytes.
func (s *Store) Read(root string, hash domain.ContentHash) (io.ReadCloser, error) {
	p, err := finalPath(root, hash)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- p is constructed from a fixed root and a validated ContentHash.
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewError(domain.KindNotFound, err)
		}
		return nil, domain.NewError(domain.KindIO, err)
	}
	return f, nil
}

// Delete removes the blob file for hash under root. Absence is not an
// error.
func (s *Store) Delete(root string, hash domain.ContentHash) error {
	p, err := finalPath(root, hash)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return domain.NewError(domain.KindIO, err)
	}
	return nil
}

// Exists reports whether a blob file for hash is present under root. GC's
// re-check path and Upload's restore-on-resurrection path both use this to
// decide whether a write is a genuine new file or a dedup no-op.
func (s *Store) Exists(root string, hash domain.ContentHash) (bool, error) {
	p, err := finalPath(root, hash)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, domain.NewError(domain.KindIO, err)
	}
	return true, nil
}

func finalPath(root string, hash domain.ContentHash) (string, error) {
	p, err := pathbuilder.FinalPath(root, hash)
	if err != nil {
		return "", domain.NewError(domain.KindInvalidRequest, err)
	}
	return p, nil
}

// fsyncDir fsyncs the directory at dir so that a prior rename into it
// survives a crash. Fsync on a directory file descriptor is POSIX-portable
// on the Linux/macOS targets this service runs on.
func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
