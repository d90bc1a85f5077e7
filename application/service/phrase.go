package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
)

// CreateParams describes a new phrase. Empty Source and Memo mean absent.
type CreateParams struct {
	Phrase   string
	Meanings []string
	Source   string
	Tags     []string
	Memo     string
}

// UpdateParams describes a partial update. Nil fields are left unchanged;
// non-nil Meanings replaces every meaning of the phrase.
type UpdateParams struct {
	Phrase   *string
	Meanings []string
	Source   *string
	Tags     []string
	Memo     *string
}

// Option configures the services.
type Option func(*options)

type options struct {
	dimension   int
	parallelism int
	limits      Limits
	clock       func() time.Time
	logger      *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		parallelism: 1,
		limits:      DefaultLimits(),
		clock:       time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDimension rejects embeddings whose length differs from d. Zero disables the check.
func WithDimension(d int) Option {
	return func(o *options) {
		if d >= 0 {
			o.dimension = d
		}
	}
}

// WithParallelism sets how many meanings of one write are embedded at once.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithLimits sets result size bounds.
func WithLimits(l Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Phrase runs the phrase write path: validate, embed, then store in one transaction.
type Phrase struct {
	store     phrase.Store
	embedding embedding
	limits    Limits
	clock     func() time.Time
	logger    *slog.Logger
}

// NewPhrase creates a new Phrase service.
func NewPhrase(store phrase.Store, embedder search.Embedder, opts ...Option) *Phrase {
	o := newOptions(opts)
	return &Phrase{
		store: store,
		embedding: embedding{
			embedder:    embedder,
			dimension:   o.dimension,
			parallelism: o.parallelism,
		},
		limits: o.limits,
		clock:  o.clock,
		logger: o.logger,
	}
}

// Create stores a phrase with its meanings. Validation happens before any
// embedding call, and every embedding is computed before the transaction opens.
func (s *Phrase) Create(ctx context.Context, p CreateParams) (phrase.Phrase, error) {
	if strings.TrimSpace(p.Phrase) == "" {
		return phrase.Phrase{}, fmt.Errorf("%w: phrase text is required", phrase.ErrValidation)
	}
	if err := phrase.ValidateMeanings(p.Meanings); err != nil {
		return phrase.Phrase{}, err
	}

	drafts, err := s.embedding.drafts(ctx, p.Meanings)
	if err != nil {
		return phrase.Phrase{}, err
	}

	created, err := phrase.New(phrase.Params{
		Text:   p.Phrase,
		Source: p.Source,
		Tags:   p.Tags,
		Memo:   p.Memo,
	}, drafts, s.clock())
	if err != nil {
		return phrase.Phrase{}, err
	}

	if err := s.store.Create(ctx, created); err != nil {
		return phrase.Phrase{}, err
	}

	s.logger.InfoContext(ctx, "phrase created",
		slog.String("phrase_id", created.ID()),
		slog.Int("meanings", len(drafts)),
	)
	return created, nil
}

// Get returns the phrase with its meanings in creation order.
func (s *Phrase) Get(ctx context.Context, id string) (phrase.Phrase, error) {
	return s.store.Get(ctx, id)
}

// Update merges p into the stored phrase. When p carries meanings they are
// validated and embedded before any write, then replace the stored set.
// A concurrent update that lands first makes this call fail with phrase.ErrConflict.
func (s *Phrase) Update(ctx context.Context, id string, p UpdateParams) (phrase.Phrase, error) {
	changes := phrase.Changes{
		Text:     p.Phrase,
		Source:   p.Source,
		Tags:     p.Tags,
		Memo:     p.Memo,
		Meanings: p.Meanings,
	}
	if err := changes.Validate(); err != nil {
		return phrase.Phrase{}, err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return phrase.Phrase{}, err
	}

	var drafts []phrase.Draft
	if changes.ReplacesMeanings() {
		drafts, err = s.embedding.drafts(ctx, changes.Meanings)
		if err != nil {
			return phrase.Phrase{}, err
		}
	}

	next, err := current.Apply(changes, drafts, s.clock())
	if err != nil {
		return phrase.Phrase{}, err
	}

	if err := s.store.Update(ctx, next, current.Version(), changes.ReplacesMeanings()); err != nil {
		return phrase.Phrase{}, err
	}

	s.logger.InfoContext(ctx, "phrase updated",
		slog.String("phrase_id", id),
		slog.Int64("version", next.Version()),
		slog.Bool("meanings_replaced", changes.ReplacesMeanings()),
	)
	return next, nil
}

// Delete removes the phrase and its meanings. Deleting twice fails with phrase.ErrNotFound.
func (s *Phrase) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "phrase deleted", slog.String("phrase_id", id))
	return nil
}

// ListRandom returns up to limit phrases in random order.
func (s *Phrase) ListRandom(ctx context.Context, limit int) ([]phrase.Phrase, error) {
	return s.store.Random(ctx, s.limits.Clamp(limit))
}

// ListAll returns every phrase, newest first.
func (s *Phrase) ListAll(ctx context.Context) ([]phrase.Phrase, error) {
	return s.store.All(ctx)
}
