// Package phrase provides the Phrase aggregate and its owned Meanings.
package phrase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Precision is the timestamp resolution kept by every store.
const Precision = time.Microsecond

// Phrase is the aggregate root: a recorded phrase together with its ordered
// meanings. Values are immutable; updates produce a new Phrase.
type Phrase struct {
	id        string
	text      string
	source    string
	tags      []string
	memo      string
	meanings  []Meaning
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// Params holds the scalar fields of a new phrase. Empty Source and Memo mean absent.
type Params struct {
	Text   string
	Source string
	Tags   []string
	Memo   string
}

// Draft is a meaning text paired with its computed embedding.
type Draft struct {
	Text      string
	Embedding []float64
}

// New creates a phrase that has not been persisted yet.
func New(p Params, drafts []Draft, now time.Time) (Phrase, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return Phrase{}, fmt.Errorf("%w: phrase text is required", ErrValidation)
	}
	if err := validateDrafts(drafts); err != nil {
		return Phrase{}, err
	}

	now = normalize(now)
	id := uuid.NewString()
	return Phrase{
		id:        id,
		text:      text,
		source:    strings.TrimSpace(p.Source),
		tags:      NormalizeTags(p.Tags),
		memo:      p.Memo,
		meanings:  newMeanings(id, drafts, now),
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct recreates a phrase from persistence.
func Reconstruct(
	id string,
	text string,
	source string,
	tags []string,
	memo string,
	meanings []Meaning,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) Phrase {
	return Phrase{
		id:        id,
		text:      text,
		source:    source,
		tags:      append([]string{}, tags...),
		memo:      memo,
		meanings:  append([]Meaning{}, meanings...),
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the phrase identifier.
func (p Phrase) ID() string { return p.id }

// Text returns the phrase itself.
func (p Phrase) Text() string { return p.text }

// Source returns where the phrase was found, or "" when absent.
func (p Phrase) Source() string { return p.source }

// Tags returns a copy of the tags in display order.
func (p Phrase) Tags() []string { return append([]string{}, p.tags...) }

// Memo returns the free-form note, or "" when absent.
func (p Phrase) Memo() string { return p.memo }

// Meanings returns a copy of the meanings, first meaning first.
func (p Phrase) Meanings() []Meaning { return append([]Meaning{}, p.meanings...) }

// MeaningTexts returns the meaning texts in order.
func (p Phrase) MeaningTexts() []string {
	texts := make([]string, len(p.meanings))
	for i, m := range p.meanings {
		texts[i] = m.text
	}
	return texts
}

// Version returns the optimistic concurrency counter.
func (p Phrase) Version() int64 { return p.version }

// CreatedAt returns when the phrase was first stored.
func (p Phrase) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns when the phrase last changed.
func (p Phrase) UpdatedAt() time.Time { return p.updatedAt }

// Changes describes a partial update. Nil fields keep their current value;
// a non-nil empty Tags slice clears the tags. Meanings, when non-nil,
// replaces the whole meaning collection.
type Changes struct {
	Text     *string
	Source   *string
	Tags     []string
	Memo     *string
	Meanings []string
}

// ReplacesMeanings reports whether the change rewrites the meaning collection.
func (c Changes) ReplacesMeanings() bool {
	return c.Meanings != nil
}

// Validate checks the change before any embedding call is made.
func (c Changes) Validate() error {
	if c.Text != nil && strings.TrimSpace(*c.Text) == "" {
		return fmt.Errorf("%w: phrase text cannot be blank", ErrValidation)
	}
	if c.ReplacesMeanings() {
		return ValidateMeanings(c.Meanings)
	}
	return nil
}

// Apply merges c into p. drafts must be given exactly when c replaces the
// meanings. The version is advanced and updatedAt moves strictly forward.
func (p Phrase) Apply(c Changes, drafts []Draft, now time.Time) (Phrase, error) {
	if err := c.Validate(); err != nil {
		return Phrase{}, err
	}
	if c.ReplacesMeanings() != (drafts != nil) {
		return Phrase{}, fmt.Errorf("%w: meanings and embeddings must be supplied together", ErrValidation)
	}

	next := p
	next.tags = p.Tags()
	next.meanings = p.Meanings()
	if c.Text != nil {
		next.text = strings.TrimSpace(*c.Text)
	}
	if c.Source != nil {
		next.source = strings.TrimSpace(*c.Source)
	}
	if c.Tags != nil {
		next.tags = NormalizeTags(c.Tags)
	}
	if c.Memo != nil {
		next.memo = *c.Memo
	}

	now = normalize(now)
	if !now.After(p.updatedAt) {
		now = p.updatedAt.Add(Precision)
	}
	if drafts != nil {
		if err := validateDrafts(drafts); err != nil {
			return Phrase{}, err
		}
		next.meanings = newMeanings(p.id, drafts, now)
	}

	next.version = p.version + 1
	next.updatedAt = now
	return next, nil
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}
