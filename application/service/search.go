package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
)

// Search composes the embedder and the store into semantic and lexical search.
type Search struct {
	store     phrase.Store
	index     search.Index
	embedding embedding
	limits    Limits
	logger    *slog.Logger
}

// NewSearch creates a new Search service.
func NewSearch(store phrase.Store, index search.Index, embedder search.Embedder, opts ...Option) *Search {
	o := newOptions(opts)
	return &Search{
		store: store,
		index: index,
		embedding: embedding{
			embedder:    embedder,
			dimension:   o.dimension,
			parallelism: 1,
		},
		limits: o.limits,
		logger: o.logger,
	}
}

// Semantic returns up to limit phrases whose closest meaning is nearest to
// query by cosine distance, nearest first. Each phrase appears once.
func (s *Search) Semantic(ctx context.Context, query string, limit int) ([]phrase.Phrase, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", phrase.ErrValidation)
	}

	vector, err := s.embedding.one(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Nearest(ctx, vector, s.limits.Clamp(limit))
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.PhraseID()
	}
	// A phrase deleted between ranking and loading is skipped.
	phrases, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "semantic search",
		slog.Int("matches", len(matches)),
		slog.Int("results", len(phrases)),
	)
	return phrases, nil
}

// Text returns up to limit phrases whose text, source, tags or meanings
// contain pattern, ignoring case, most recently updated first.
func (s *Search) Text(ctx context.Context, pattern string, limit int) ([]phrase.Phrase, error) {
	return s.store.Search(ctx, strings.TrimSpace(pattern), s.limits.Clamp(limit))
}
