package phrase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Meaning is one interpretation of a phrase together with its embedding.
// A meaning never outlives the phrase that owns it.
type Meaning struct {
	id        string
	phraseID  string
	text      string
	embedding []float64
	position  int
	createdAt time.Time
}

// ReconstructMeaning recreates a meaning from persistence.
func ReconstructMeaning(id, phraseID, text string, embedding []float64, position int, createdAt time.Time) Meaning {
	return Meaning{
		id:        id,
		phraseID:  phraseID,
		text:      text,
		embedding: append([]float64{}, embedding...),
		position:  position,
		createdAt: createdAt,
	}
}

// ID returns the meaning identifier.
func (m Meaning) ID() string { return m.id }

// PhraseID returns the owning phrase's identifier.
func (m Meaning) PhraseID() string { return m.phraseID }

// Text returns the meaning text.
func (m Meaning) Text() string { return m.text }

// Embedding returns a copy of the embedding vector.
func (m Meaning) Embedding() []float64 { return append([]float64{}, m.embedding...) }

// Dimension returns the embedding length.
func (m Meaning) Dimension() int { return len(m.embedding) }

// Position returns the zero-based index among the phrase's meanings.
func (m Meaning) Position() int { return m.position }

// CreatedAt returns when the meaning was stored.
func (m Meaning) CreatedAt() time.Time { return m.createdAt }

// ValidateMeanings rejects an empty list or any entry that is blank after trimming.
func ValidateMeanings(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: at least one non-empty meaning is required", ErrValidation)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: meaning %d is blank", ErrValidation, i+1)
		}
	}
	return nil
}

func validateDrafts(drafts []Draft) error {
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}
	if err := ValidateMeanings(texts); err != nil {
		return err
	}
	dim := len(drafts[0].Embedding)
	if dim == 0 {
		return fmt.Errorf("%w: meaning 1 has no embedding", ErrValidation)
	}
	for i, d := range drafts {
		if len(d.Embedding) != dim {
			return fmt.Errorf("%w: meaning %d has dimension %d, want %d", ErrValidation, i+1, len(d.Embedding), dim)
		}
	}
	return nil
}

func newMeanings(phraseID string, drafts []Draft, now time.Time) []Meaning {
	meanings := make([]Meaning, len(drafts))
	for i, d := range drafts {
		meanings[i] = Meaning{
			id:        uuid.NewString(),
			phraseID:  phraseID,
			text:      strings.TrimSpace(d.Text),
			embedding: append([]float64{}, d.Embedding...),
			position:  i,
			createdAt: now,
		}
	}
	return meanings
}
