package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/gestdj/gestdj/internal/database/repository"
	"github.com/gestdj/gestdj/internal/mixer"
)

// SeedDefaults ensures a baseline preset exists for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	repo := repository.NewPresetRepo(db)
	existing, err := repo.List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	flat := mixer.New().Snapshot().Decks[0].DeckValues
	preset := repository.Preset{
		ID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte("preset:Flat")).String(),
		Name:  "Flat",
		Decks: [2]mixer.DeckValues{flat, flat},
	}
	return repo.Save(ctx, preset)
}
