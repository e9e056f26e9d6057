// Package sha256 provides SHA-256 hashing for screenshot content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// Hasher implements capture.Hasher using SHA-256.
type Hasher struct{}

var _ capture.Hasher = (*Hasher)(nil)

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data, prefixed with the algorithm so stored
// digests stay self-describing.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
