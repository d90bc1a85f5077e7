package search

import (
	"context"
	"math"
	"sort"
)

// Match is a phrase ranked by the distance of its closest meaning.
type Match struct {
	phraseID string
	distance float64
}

// NewMatch creates a Match.
func NewMatch(phraseID string, distance float64) Match {
	return Match{phraseID: phraseID, distance: distance}
}

// PhraseID returns the matched phrase identifier.
func (m Match) PhraseID() string { return m.phraseID }

// Distance returns the cosine distance of the best meaning (0 is identical).
func (m Match) Distance() float64 { return m.distance }

// MeaningVector is a stored meaning embedding keyed by its owning phrase.
type MeaningVector struct {
	phraseID  string
	embedding []float64
}

// NewMeaningVector creates a MeaningVector.
func NewMeaningVector(phraseID string, embedding []float64) MeaningVector {
	return MeaningVector{phraseID: phraseID, embedding: append([]float64{}, embedding...)}
}

// PhraseID returns the owning phrase identifier.
func (v MeaningVector) PhraseID() string { return v.phraseID }

// Index finds the phrases whose best meaning is closest to a query vector.
type Index interface {
	Nearest(ctx context.Context, query []float64, limit int) ([]Match, error)
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if the lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2].
func CosineDistance(a, b []float64) float64 {
	return 1 - CosineSimilarity(a, b)
}

// RankByBestMeaning scores each phrase by its closest meaning and returns at
// most limit phrases ordered by distance, then phrase id. A phrase appears at
// most once however many of its meanings match.
func RankByBestMeaning(query []float64, vectors []MeaningVector, limit int) []Match {
	if len(vectors) == 0 || limit <= 0 {
		return []Match{}
	}

	best := make(map[string]float64, len(vectors))
	for _, v := range vectors {
		d := CosineDistance(query, v.embedding)
		if current, ok := best[v.phraseID]; !ok || d < current {
			best[v.phraseID] = d
		}
	}

	matches := make([]Match, 0, len(best))
	for id, d := range best {
		matches = append(matches, NewMatch(id, d))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].phraseID < matches[j].phraseID
	})

	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}
