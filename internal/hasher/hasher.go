// Package hasher streams a byte source into an already-open temp file while
// computing its SHA-256 digest, without ever buffering the full payload in
// memory.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/haukened/objvault/internal/domain"
)

// chunkSize is the buffer size used to copy from the source into the temp
// file. It sits within the 64 KiB - 256 KiB band spec §4.2 calls for.
const chunkSize = 128 * 1024

// Hash copies all of r into w in bounded chunks, updating a running SHA-256
// digest as it goes, and returns the resulting content hash and the total
// number of bytes copied. On error, the caller is responsible for removing
// any partial temp file; Hash itself does no file-lifecycle management.
func Hash(w io.Writer, r io.Reader) (domain.ContentHash, int64, error) {
	h := sha256.New()
	mw := io.MultiWriter(w, h)
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(mw, r, buf)
	if err != nil {
		return "", n, err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	hash, parseErr := domain.ParseContentHash(sum)
	if parseErr != nil {
		// Unreachable in practice: hex.EncodeToString(sha256 sum) is always
		// 64 lowercase hex chars. Surfaced rather than panicking.
		return "", n, parseErr
	}
	return hash, n, nil
}
