package repository

import (
	"context"
	"database/sql"

	"github.com/gestdj/gestdj/internal/mixer"
)

// PresetRepo handles presets and their per-deck values.
type PresetRepo struct {
	db *sql.DB
}

func NewPresetRepo(db *sql.DB) *PresetRepo {
	return &PresetRepo{db: db}
}

// Save upserts a preset by name. The row id of an existing preset is
// kept so saved names stay stable.
func (r *PresetRepo) Save(ctx context.Context, p Preset) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO presets(id, name, created_at, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
	 updated_at=CURRENT_TIMESTAMP;
	`, p.ID, p.Name)
	if err != nil {
		return err
	}

	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM presets WHERE name = ?`, p.Name).Scan(&id); err != nil {
		return err
	}
	for deck, v := range p.Decks {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO preset_decks(preset_id, deck, filter, low, mid, high, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(preset_id, deck) DO UPDATE SET
		 filter=excluded.filter,
		 low=excluded.low,
		 mid=excluded.mid,
		 high=excluded.high,
		 volume=excluded.volume;
		`, id, deck, v.Filter, v.Low, v.Mid, v.High, v.Volume)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns the named preset, or nil if it does not exist.
func (r *PresetRepo) Get(ctx context.Context, name string) (*Preset, error) {
	var p Preset
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM presets WHERE name = ?`, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadDecks(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all presets ordered by name, deck values included.
func (r *PresetRepo) List(ctx context.Context) ([]Preset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Preset
	for rows.Next() {
		var p Preset
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadDecks(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes a preset by name. Deck rows go with it via cascade.
func (r *PresetRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name)
	return err
}

func (r *PresetRepo) loadDecks(ctx context.Context, p *Preset) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT deck, filter, low, mid, high, volume FROM preset_decks WHERE preset_id = ? ORDER BY deck`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var deck int
		var v mixer.DeckValues
		if err := rows.Scan(&deck, &v.Filter, &v.Low, &v.Mid, &v.High, &v.Volume); err != nil {
			return err
		}
		if deck >= 0 && deck < len(p.Decks) {
			p.Decks[deck] = v
		}
	}
	return rows.Err()
}
