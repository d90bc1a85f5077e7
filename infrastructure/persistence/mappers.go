package persistence

import (
	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/internal/database"
)

// PhraseMapper maps between the Phrase aggregate and its three row types.
type PhraseMapper struct{}

// ToDomain assembles a phrase from its row and its child rows, which must
// already be in display order.
func (PhraseMapper) ToDomain(m PhraseModel, meanings []MeaningModel, tags []TagModel) phrase.Phrase {
	domainMeanings := make([]phrase.Meaning, len(meanings))
	for i, mm := range meanings {
		domainMeanings[i] = phrase.ReconstructMeaning(
			mm.ID,
			mm.PhraseID,
			mm.Text,
			mm.Embedding.Floats(),
			mm.Position,
			mm.CreatedAt.UTC(),
		)
	}

	tagValues := make([]string, len(tags))
	for i, t := range tags {
		tagValues[i] = t.Tag
	}

	return phrase.Reconstruct(
		m.ID,
		m.Text,
		deref(m.Source),
		tagValues,
		deref(m.Memo),
		domainMeanings,
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}

// ToModel converts the phrase's scalar fields to a row.
func (PhraseMapper) ToModel(p phrase.Phrase) PhraseModel {
	return PhraseModel{
		ID:        p.ID(),
		Text:      p.Text(),
		Source:    optional(p.Source()),
		Memo:      optional(p.Memo()),
		Version:   p.Version(),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

// MeaningModels converts the phrase's meanings to rows.
func (PhraseMapper) MeaningModels(p phrase.Phrase) []MeaningModel {
	meanings := p.Meanings()
	models := make([]MeaningModel, len(meanings))
	for i, m := range meanings {
		models[i] = MeaningModel{
			ID:        m.ID(),
			PhraseID:  p.ID(),
			Position:  m.Position(),
			Text:      m.Text(),
			Embedding: database.NewVector(m.Embedding()),
			CreatedAt: m.CreatedAt(),
		}
	}
	return models
}

// TagModels converts the phrase's tags to rows.
func (PhraseMapper) TagModels(p phrase.Phrase) []TagModel {
	tags := p.Tags()
	models := make([]TagModel, len(tags))
	for i, t := range tags {
		models[i] = TagModel{PhraseID: p.ID(), Position: i, Tag: t}
	}
	return models
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
