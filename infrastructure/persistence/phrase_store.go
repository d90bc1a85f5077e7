package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/internal/database"
)

// idBatchSize keeps IN lists under SQLite's bound-parameter limit.
const idBatchSize = 500

// PhraseStore implements phrase.Store and search.Index with GORM.
// Vector ranking runs in PostgreSQL through pgvector's <=> operator, or as
// a linear scan in Go on SQLite.
type PhraseStore struct {
	db     database.Database
	mapper PhraseMapper
	logger *slog.Logger
}

// NewPhraseStore creates a new PhraseStore.
func NewPhraseStore(db database.Database, logger *slog.Logger) *PhraseStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhraseStore{db: db, logger: logger}
}

// Create inserts the phrase row, its tags and its meanings in one transaction.
func (s *PhraseStore) Create(ctx context.Context, p phrase.Phrase) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		model := s.mapper.ToModel(p)
		if err := tx.Omit("Meanings", "Tags").Create(&model).Error; err != nil {
			return fmt.Errorf("insert phrase: %w", err)
		}
		if err := insertTags(tx, s.mapper.TagModels(p)); err != nil {
			return err
		}
		return insertMeanings(tx, s.mapper.MeaningModels(p))
	})
	if err != nil {
		return storageError("create phrase", err)
	}
	return nil
}

// Get returns one aggregate.
func (s *PhraseStore) Get(ctx context.Context, id string) (phrase.Phrase, error) {
	found, err := s.FindByIDs(ctx, []string{id})
	if err != nil {
		return phrase.Phrase{}, err
	}
	if len(found) == 0 {
		return phrase.Phrase{}, fmt.Errorf("%w: %s", phrase.ErrNotFound, id)
	}
	return found[0], nil
}

// Update writes p when the stored version still matches expectedVersion.
func (s *PhraseStore) Update(ctx context.Context, p phrase.Phrase, expectedVersion int64, replaceMeanings bool) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		model := s.mapper.ToModel(p)
		result := tx.Model(&PhraseModel{}).
			Where("id = ? AND version = ?", p.ID(), expectedVersion).
			Updates(map[string]any{
				"phrase_text": model.Text,
				"source":      model.Source,
				"memo":        model.Memo,
				"version":     model.Version,
				"updated_at":  model.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("update phrase: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return missingOrStale(tx, p.ID())
		}

		if err := tx.Where("phrase_id = ?", p.ID()).Delete(&TagModel{}).Error; err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		if err := insertTags(tx, s.mapper.TagModels(p)); err != nil {
			return err
		}

		if !replaceMeanings {
			return nil
		}
		if err := tx.Where("phrase_id = ?", p.ID()).Delete(&MeaningModel{}).Error; err != nil {
			return fmt.Errorf("delete meanings: %w", err)
		}
		return insertMeanings(tx, s.mapper.MeaningModels(p))
	})
	if err != nil {
		return storageError("update phrase", err)
	}
	return nil
}

// Delete removes the phrase with its meanings and tags.
func (s *PhraseStore) Delete(ctx context.Context, id string) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Where("phrase_id = ?", id).Delete(&MeaningModel{}).Error; err != nil {
			return fmt.Errorf("delete meanings: %w", err)
		}
		if err := tx.Where("phrase_id = ?", id).Delete(&TagModel{}).Error; err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&PhraseModel{})
		if result.Error != nil {
			return fmt.Errorf("delete phrase: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", phrase.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return storageError("delete phrase", err)
	}
	return nil
}

// Random returns up to limit phrases in random order.
func (s *PhraseStore) Random(ctx context.Context, limit int) ([]phrase.Phrase, error) {
	var models []PhraseModel
	err := s.db.Session(ctx).Order("RANDOM()").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, storageError("random phrases", err)
	}
	return s.hydrate(ctx, models)
}

// All returns every phrase, newest first.
func (s *PhraseStore) All(ctx context.Context) ([]phrase.Phrase, error) {
	var models []PhraseModel
	err := s.db.Session(ctx).Order("created_at DESC").Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, storageError("list phrases", err)
	}
	return s.hydrate(ctx, models)
}

// FindByIDs returns the phrases with the given ids in request order.
func (s *PhraseStore) FindByIDs(ctx context.Context, ids []string) ([]phrase.Phrase, error) {
	if len(ids) == 0 {
		return []phrase.Phrase{}, nil
	}

	models := make([]PhraseModel, 0, len(ids))
	for _, batch := range batches(ids) {
		var found []PhraseModel
		if err := s.db.Session(ctx).Where("id IN ?", batch).Find(&found).Error; err != nil {
			return nil, storageError("find phrases", err)
		}
		models = append(models, found...)
	}

	byID := make(map[string]PhraseModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	ordered := make([]PhraseModel, 0, len(models))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
			delete(byID, id)
		}
	}
	return s.hydrate(ctx, ordered)
}

// Search matches pattern as a literal, case-insensitive substring of the
// phrase text, source, any tag or any meaning. Each phrase appears once.
// PostgreSQL matches with ILIKE. SQLite's LOWER and LIKE fold ASCII only, so
// there the texts are scanned in Go with full Unicode case folding.
func (s *PhraseStore) Search(ctx context.Context, pattern string, limit int) ([]phrase.Phrase, error) {
	if s.db.IsPostgres() {
		return s.searchPostgres(ctx, pattern, limit)
	}
	return s.searchScan(ctx, pattern, limit)
}

func (s *PhraseStore) searchPostgres(ctx context.Context, pattern string, limit int) ([]phrase.Phrase, error) {
	like := "%" + escapeLike(pattern) + "%"
	match := func(column string) string { return column + ` ILIKE ? ESCAPE '\'` }

	var models []PhraseModel
	err := s.db.Session(ctx).
		Where(
			match("phrases.phrase_text")+
				" OR "+match("phrases.source")+
				" OR EXISTS (SELECT 1 FROM phrase_tags t WHERE t.phrase_id = phrases.id AND "+match("t.tag")+")"+
				" OR EXISTS (SELECT 1 FROM meanings m WHERE m.phrase_id = phrases.id AND "+match("m.meaning_text")+")",
			like, like, like, like,
		).
		Order("updated_at DESC").
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, storageError("text search", err)
	}
	return s.hydrate(ctx, models)
}

func (s *PhraseStore) searchScan(ctx context.Context, pattern string, limit int) ([]phrase.Phrase, error) {
	session := s.db.Session(ctx)

	var models []PhraseModel
	err := session.Select("id", "phrase_text", "source").
		Order("updated_at DESC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, storageError("text search", err)
	}

	var tags []textRow
	if err := session.Model(&TagModel{}).Select("phrase_id, tag AS text").Find(&tags).Error; err != nil {
		return nil, storageError("text search tags", err)
	}
	var meanings []textRow
	if err := session.Model(&MeaningModel{}).Select("phrase_id, meaning_text AS text").Find(&meanings).Error; err != nil {
		return nil, storageError("text search meanings", err)
	}

	children := make(map[string][]string, len(models))
	for _, r := range append(tags, meanings...) {
		children[r.PhraseID] = append(children[r.PhraseID], r.Text)
	}

	needle := strings.ToLower(pattern)
	var ids []string
	for _, m := range models {
		if len(ids) == limit {
			break
		}
		texts := append([]string{m.Text}, children[m.ID]...)
		if m.Source != nil {
			texts = append(texts, *m.Source)
		}
		if containsFold(texts, needle) {
			ids = append(ids, m.ID)
		}
	}
	s.logger.DebugContext(ctx, "matched phrases in process",
		slog.Int("phrases", len(models)), slog.Int("matches", len(ids)))
	return s.FindByIDs(ctx, ids)
}

// containsFold reports whether any text contains the lowercased needle.
func containsFold(texts []string, needle string) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Nearest ranks phrases by the cosine distance of their closest meaning.
func (s *PhraseStore) Nearest(ctx context.Context, query []float64, limit int) ([]search.Match, error) {
	if s.db.IsPostgres() {
		return s.nearestPostgres(ctx, query, limit)
	}
	return s.nearestScan(ctx, query, limit)
}

func (s *PhraseStore) nearestPostgres(ctx context.Context, query []float64, limit int) ([]search.Match, error) {
	var rows []nearestRow
	err := s.db.Session(ctx).Raw(`
SELECT phrase_id, MIN(embedding <=> CAST(? AS vector)) AS distance
FROM meanings
GROUP BY phrase_id
ORDER BY distance ASC, phrase_id ASC
LIMIT ?`, database.NewVector(query), limit).Scan(&rows).Error
	if err != nil {
		return nil, storageError("vector search", err)
	}

	matches := make([]search.Match, len(rows))
	for i, r := range rows {
		matches[i] = search.NewMatch(r.PhraseID, r.Distance)
	}
	return matches, nil
}

func (s *PhraseStore) nearestScan(ctx context.Context, query []float64, limit int) ([]search.Match, error) {
	var rows []meaningVectorRow
	err := s.db.Session(ctx).Model(&MeaningModel{}).Select("phrase_id", "embedding").Find(&rows).Error
	if err != nil {
		return nil, storageError("load embeddings", err)
	}

	vectors := make([]search.MeaningVector, len(rows))
	for i, r := range rows {
		vectors[i] = search.NewMeaningVector(r.PhraseID, r.Embedding.Floats())
	}
	s.logger.DebugContext(ctx, "ranked meanings in process", slog.Int("meanings", len(vectors)))
	return search.RankByBestMeaning(query, vectors, limit), nil
}

// hydrate loads tags and meanings for models and assembles aggregates in the same order.
func (s *PhraseStore) hydrate(ctx context.Context, models []PhraseModel) ([]phrase.Phrase, error) {
	if len(models) == 0 {
		return []phrase.Phrase{}, nil
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	meanings := make(map[string][]MeaningModel, len(models))
	tags := make(map[string][]TagModel, len(models))
	session := s.db.Session(ctx)
	for _, batch := range batches(ids) {
		var mm []MeaningModel
		err := session.Where("phrase_id IN ?", batch).
			Order("phrase_id").Order("created_at ASC").Order("position ASC").
			Find(&mm).Error
		if err != nil {
			return nil, storageError("load meanings", err)
		}
		for _, m := range mm {
			meanings[m.PhraseID] = append(meanings[m.PhraseID], m)
		}

		var tm []TagModel
		err = session.Where("phrase_id IN ?", batch).
			Order("phrase_id").Order("position ASC").
			Find(&tm).Error
		if err != nil {
			return nil, storageError("load tags", err)
		}
		for _, t := range tm {
			tags[t.PhraseID] = append(tags[t.PhraseID], t)
		}
	}

	phrases := make([]phrase.Phrase, len(models))
	for i, m := range models {
		phrases[i] = s.mapper.ToDomain(m, meanings[m.ID], tags[m.ID])
	}
	return phrases, nil
}

func insertTags(tx *gorm.DB, tags []TagModel) error {
	if len(tags) == 0 {
		return nil
	}
	if err := tx.Create(&tags).Error; err != nil {
		return fmt.Errorf("insert tags: %w", err)
	}
	return nil
}

func insertMeanings(tx *gorm.DB, meanings []MeaningModel) error {
	if len(meanings) == 0 {
		return nil
	}
	if err := tx.Create(&meanings).Error; err != nil {
		return fmt.Errorf("insert meanings: %w", err)
	}
	return nil
}

// missingOrStale explains why a versioned update touched no rows.
func missingOrStale(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&PhraseModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check phrase: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", phrase.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s", phrase.ErrConflict, id)
}

// storageError tags err as a storage failure unless it already carries a domain kind.
func storageError(op string, err error) error {
	if errors.Is(err, phrase.ErrNotFound) || errors.Is(err, phrase.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", phrase.ErrStorage, op, err)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func batches(ids []string) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += idBatchSize {
		end := min(start+idBatchSize, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
