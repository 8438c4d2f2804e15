package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gestdj/gestdj/internal/database"
)

// MaintenanceService houses destructive/ops actions surfaced through
// the command set.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes session history and saved presets, then reseeds the
// baseline preset. The schema stays intact so the app keeps running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"sessions",
			"preset_decks",
			"presets",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return database.SeedDefaults(ctx, s.DB)
}
