// Package dto holds the JSON shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/furon-kuina/semleaf/application/service"
	"github.com/furon-kuina/semleaf/domain/phrase"
)

// Phrase is the API representation of a phrase. Embeddings are never exposed.
type Phrase struct {
	ID        string    `json:"id"`
	Phrase    string    `json:"phrase"`
	Meanings  []string  `json:"meanings"`
	Source    *string   `json:"source"`
	Tags      []string  `json:"tags"`
	Memo      *string   `json:"memo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatePhraseRequest is the body of POST /api/phrases.
type CreatePhraseRequest struct {
	Phrase   string   `json:"phrase"`
	Meanings []string `json:"meanings"`
	Source   *string  `json:"source,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Memo     *string  `json:"memo,omitempty"`
}

// Params converts the request to service parameters.
func (r CreatePhraseRequest) Params() service.CreateParams {
	return service.CreateParams{
		Phrase:   r.Phrase,
		Meanings: r.Meanings,
		Source:   deref(r.Source),
		Tags:     r.Tags,
		Memo:     deref(r.Memo),
	}
}

// UpdatePhraseRequest is the body of PUT /api/phrases/{id}. Omitted fields
// are left unchanged; "meanings" replaces the whole list when present.
type UpdatePhraseRequest struct {
	Phrase   *string  `json:"phrase,omitempty"`
	Meanings []string `json:"meanings,omitempty"`
	Source   *string  `json:"source,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Memo     *string  `json:"memo,omitempty"`
}

// Params converts the request to service parameters.
func (r UpdatePhraseRequest) Params() service.UpdateParams {
	return service.UpdateParams{
		Phrase:   r.Phrase,
		Meanings: r.Meanings,
		Source:   r.Source,
		Tags:     r.Tags,
		Memo:     r.Memo,
	}
}

// SemanticSearchRequest is the body of POST /api/search/semantic.
type SemanticSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// OKResponse acknowledges a delete.
type OKResponse struct {
	OK bool `json:"ok"`
}

// FromDomain converts a domain phrase.
func FromDomain(p phrase.Phrase) Phrase {
	return Phrase{
		ID:        p.ID(),
		Phrase:    p.Text(),
		Meanings:  p.MeaningTexts(),
		Source:    optional(p.Source()),
		Tags:      p.Tags(),
		Memo:      optional(p.Memo()),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

// FromDomainList converts a slice of domain phrases, never returning nil.
func FromDomainList(phrases []phrase.Phrase) []Phrase {
	out := make([]Phrase, len(phrases))
	for i, p := range phrases {
		out[i] = FromDomain(p)
	}
	return out
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
