// Package app contains the application orchestration layer: the object
// storage use cases, composed from the ports below without performing any
// I/O itself. It follows the hexagonal (ports & adapters) shape of the
// store and blobstore packages it depends on.
package app

import (
	"context"
	"io"

	"github.com/haukened/objvault/internal/domain"
)

// BlobStore is the filesystem-backed content-addressable blob port. The
// concrete implementation lives in internal/blobstore; Service depends only
// on this narrow view of it.
type BlobStore interface {
	Write(root string, id domain.ObjectID, r io.Reader) (domain.ContentHash, int64, error)
	Read(root string, hash domain.ContentHash) (io.ReadCloser, error)
	Delete(root string, hash domain.ContentHash) error
	Exists(root string, hash domain.ContentHash) (bool, error)
}

// Clock abstracts time to enable deterministic testing of stuck-upload
// sweeps and timestamps.
type Clock = domain.Clock

// Metrics defines the minimal counter interface Service depends on.
// Implemented by metrics.Manager (Inc only), kept separate to avoid a
// dependency cycle.
type Metrics interface {
	Inc(name string, delta int64)
}
