// Package pathbuilder maps a storage class and content hash to an on-disk
// path, with a two-level fan-out that keeps any single directory from
// growing unbounded. It is pure and deterministic: no I/O, no state.
package pathbuilder

import (
	"path/filepath"

	"github.com/haukened/objvault/internal/domain"
)

// FinalPath returns the durable path for a blob with the given content
// hash under the given root: <root>/sha256/<hash[0:2]>/<hash[2:4]>/<hash>.
// Returns domain.ErrInvalidHash if hash is malformed.
func FinalPath(root string, hash domain.ContentHash) (string, error) {
	if !hash.Valid() {
		return "", domain.ErrInvalidHash
	}
	h := hash.String()
	return filepath.Join(root, "sha256", h[0:2], h[2:4], h), nil
}

// TempPath returns a fresh temporary path for an in-flight upload identified
// by id, under the given root: <root>/tmp/upload-<id>.
func TempPath(root string, id domain.ObjectID) string {
	return filepath.Join(root, "tmp", "upload-"+id.String())
}
