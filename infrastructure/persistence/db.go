// Package persistence provides the GORM-backed phrase store.
package persistence

import (
	"context"
	"fmt"

	"github.com/furon-kuina/semleaf/internal/database"
)

// AutoMigrate creates or updates the schema. On PostgreSQL the pgvector
// extension is enabled first so the embedding column can use the vector type.
func AutoMigrate(ctx context.Context, db database.Database) error {
	session := db.Session(ctx)
	if db.IsPostgres() {
		if err := session.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}
	if err := session.AutoMigrate(&PhraseModel{}, &MeaningModel{}, &TagModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
