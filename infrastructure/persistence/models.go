package persistence

import (
	"time"

	"github.com/furon-kuina/semleaf/internal/database"
)

// PhraseModel is a row of the phrases table.
type PhraseModel struct {
	ID        string         `gorm:"column:id;primaryKey;size:36"`
	Text      string         `gorm:"column:phrase_text;type:text;not null"`
	Source    *string        `gorm:"column:source;type:text"`
	Memo      *string        `gorm:"column:memo;type:text"`
	Version   int64          `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index;autoCreateTime:false"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;index;autoUpdateTime:false"`
	Meanings  []MeaningModel `gorm:"foreignKey:PhraseID;constraint:OnDelete:CASCADE"`
	Tags      []TagModel     `gorm:"foreignKey:PhraseID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name.
func (PhraseModel) TableName() string {
	return "phrases"
}

// MeaningModel is a row of the meanings table.
type MeaningModel struct {
	ID        string          `gorm:"column:id;primaryKey;size:36"`
	PhraseID  string          `gorm:"column:phrase_id;size:36;not null;index"`
	Position  int             `gorm:"column:position;not null"`
	Text      string          `gorm:"column:meaning_text;type:text;not null"`
	Embedding database.Vector `gorm:"column:embedding;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;autoCreateTime:false"`
}

// TableName returns the table name.
func (MeaningModel) TableName() string {
	return "meanings"
}

// TagModel is a row of the phrase_tags table.
type TagModel struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	PhraseID string `gorm:"column:phrase_id;size:36;not null;index"`
	Position int    `gorm:"column:position;not null"`
	Tag      string `gorm:"column:tag;type:text;not null"`
}

// TableName returns the table name.
func (TagModel) TableName() string {
	return "phrase_tags"
}

// meaningVectorRow is the projection scanned for in-process ranking.
type meaningVectorRow struct {
	PhraseID  string          `gorm:"column:phrase_id"`
	Embedding database.Vector `gorm:"column:embedding"`
}

// textRow is a searchable child text of a phrase.
type textRow struct {
	PhraseID string `gorm:"column:phrase_id"`
	Text     string `gorm:"column:text"`
}

// nearestRow is the projection returned by the pgvector ranking query.
type nearestRow struct {
	PhraseID string  `gorm:"column:phrase_id"`
	Distance float64 `gorm:"column:distance"`
}
