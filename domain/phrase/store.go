package phrase

import "context"

// Store persists Phrase aggregates. Every write is atomic: a phrase and its
// meanings are visible together or not at all.
type Store interface {
	// Create inserts the phrase row followed by its meaning rows.
	Create(ctx context.Context, p Phrase) error

	// Get returns the aggregate with meanings in creation order.
	Get(ctx context.Context, id string) (Phrase, error)

	// Update writes p if the stored version still equals expectedVersion.
	// When replaceMeanings is set the stored meanings are deleted and
	// p's meanings inserted in the same transaction.
	Update(ctx context.Context, p Phrase, expectedVersion int64, replaceMeanings bool) error

	// Delete removes the phrase and every meaning it owns.
	Delete(ctx context.Context, id string) error

	// Random returns up to limit phrases in random order.
	Random(ctx context.Context, limit int) ([]Phrase, error)

	// All returns every phrase, newest first.
	All(ctx context.Context) ([]Phrase, error)

	// FindByIDs returns the phrases with the given ids in the order requested.
	// Unknown ids are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]Phrase, error)

	// Search returns phrases whose text, source, any tag or any meaning
	// contains pattern, case-insensitively, most recently updated first.
	Search(ctx context.Context, pattern string, limit int) ([]Phrase, error)
}
