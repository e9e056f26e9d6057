// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/webcapture/internal/capture"
)

// Generator creates UUID v7 strings. V7 IDs sort by creation time, which
// keeps primary-key inserts append-only.
type Generator struct{}

var _ capture.IDGenerator = Generator{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewRequestID returns a random UUIDv4 for correlating HTTP requests.
func NewRequestID() string {
	return uuid.NewString()
}
