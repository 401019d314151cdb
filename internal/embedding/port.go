// Package embedding wraps the embedding port of spec.md §6: an opaque
// text-to-vector function whose one relied-upon property is that cosine
// similarity between its outputs is meaningful.
package embedding

import (
	"crypto/sha256"
	"fmt"

	"github.com/hmemcore/hmem/internal/models"
)

// Embedder is the port the rest of the engine depends on. The embedding
// service itself (a black-box HTTP call) is an external collaborator; the
// core only ever calls through this interface.
type Embedder interface {
	Embed(text string, task models.EmbeddingTask) ([]float32, error)
	EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error)
}

// ContentHash computes a SHA-256 hash of text content, used both for the
// embedding cache key and for exact-duplicate detection upstream.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
