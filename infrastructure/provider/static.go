package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/furon-kuina/semleaf/domain/search"
)

// StaticEmbedder returns the same vector for every text. It lets storage and
// search run without network access.
type StaticEmbedder struct {
	vector []float64
}

// NewStaticEmbedder returns a StaticEmbedder producing the zero vector of the given dimension.
func NewStaticEmbedder(dimension int) StaticEmbedder {
	return StaticEmbedder{vector: make([]float64, dimension)}
}

// NewStaticEmbedderWithVector returns a StaticEmbedder producing a copy of v.
func NewStaticEmbedderWithVector(v []float64) StaticEmbedder {
	return StaticEmbedder{vector: append([]float64{}, v...)}
}

// Embed implements search.Embedder.
func (e StaticEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", search.ErrEmbedding)
	}
	if len(e.vector) == 0 {
		return nil, fmt.Errorf("%w: static embedder has no dimension", search.ErrEmbedding)
	}
	return append([]float64{}, e.vector...), nil
}

var _ search.Embedder = StaticEmbedder{}
