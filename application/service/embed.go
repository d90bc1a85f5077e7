package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
)

// embedding computes vectors for meaning texts and checks their dimension.
type embedding struct {
	embedder    search.Embedder
	dimension   int
	parallelism int
}

// drafts embeds every text, keeping input order. The first failure cancels
// the outstanding calls and is returned; no partial result escapes.
func (e embedding) drafts(ctx context.Context, texts []string) ([]phrase.Draft, error) {
	drafts := make([]phrase.Draft, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.parallelism, 1))
	for i, text := range texts {
		g.Go(func() error {
			vector, err := e.one(gctx, text)
			if err != nil {
				return fmt.Errorf("meaning %d: %w", i+1, err)
			}
			drafts[i] = phrase.Draft{Text: text, Embedding: vector}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, d := range drafts {
		if len(d.Embedding) != len(drafts[0].Embedding) {
			return nil, fmt.Errorf("%w: meaning %d has dimension %d, meaning 1 has %d",
				search.ErrEmbedding, i+1, len(d.Embedding), len(drafts[0].Embedding))
		}
	}
	return drafts, nil
}

// one embeds a single text.
func (e embedding) one(ctx context.Context, text string) ([]float64, error) {
	vector, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, wrapEmbedding(err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", search.ErrEmbedding)
	}
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: vector has dimension %d, want %d", search.ErrEmbedding, len(vector), e.dimension)
	}
	return vector, nil
}

// wrapEmbedding makes sure an embedder failure carries search.ErrEmbedding.
func wrapEmbedding(err error) error {
	if errors.Is(err, search.ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %w", search.ErrEmbedding, err)
}
