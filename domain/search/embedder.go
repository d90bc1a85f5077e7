// Package search provides the embedding capability and vector ranking used by semantic search.
package search

import (
	"context"
	"errors"
)

// ErrEmbedding means the embedding provider could not produce a usable vector.
var ErrEmbedding = errors.New("embedding failure")

// Embedder converts one non-empty text into a fixed-dimension vector.
// Implementations wrap every failure with ErrEmbedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}
