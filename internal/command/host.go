package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gestdj/gestdj/internal/backend"
	"github.com/gestdj/gestdj/internal/database/repository"
	"github.com/gestdj/gestdj/internal/mixer"
)

// Backend is the slice of the supervised backend the command set needs.
type Backend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) (time.Duration, error)
	Status() backend.Status
}

// PresetStore persists named mixer snapshots.
type PresetStore interface {
	Save(ctx context.Context, p repository.Preset) error
	Get(ctx context.Context, name string) (*repository.Preset, error)
	List(ctx context.Context) ([]repository.Preset, error)
}

// Maintenance is the slice of the ops service the command set needs.
type Maintenance interface {
	Reset(ctx context.Context) error
}

// Host bundles the services the supplemental commands close over.
// Maint is optional.
type Host struct {
	Backend Backend
	Mixer   *mixer.Mixer
	Presets PresetStore
	Maint   Maintenance
}

// HostCommands returns the commands that drive the backend, the mixer,
// and the preset store. Structured results are returned as JSON text.
func HostCommands(h Host) []Command {
	cmds := []Command{
		{
			Name:        "backend_status",
			Title:       "Backend Status",
			Description: "Process and socket state of the gesture backend",
			Category:    "backend",
			Handler: func(context.Context, Args) (string, error) {
				return toJSON(h.Backend.Status())
			},
		},
		{
			Name:        "backend_start",
			Title:       "Start Backend",
			Description: "Launch the gesture backend process",
			Category:    "backend",
			Handler: func(ctx context.Context, _ Args) (string, error) {
				if err := h.Backend.Start(ctx); err != nil {
					return "", err
				}
				return "backend started", nil
			},
		},
		{
			Name:        "backend_stop",
			Title:       "Stop Backend",
			Description: "Stop the gesture backend process",
			Category:    "backend",
			Handler: func(ctx context.Context, _ Args) (string, error) {
				if err := h.Backend.Stop(ctx); err != nil {
					return "", err
				}
				return "backend stopped", nil
			},
		},
		{
			Name:        "backend_ping",
			Title:       "Ping Backend",
			Description: "Measure round-trip latency over the backend socket",
			Category:    "backend",
			Handler: func(ctx context.Context, _ Args) (string, error) {
				rtt, err := h.Backend.Ping(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("backend round trip %.1fms", float64(rtt.Microseconds())/1000.0), nil
			},
		},
		{
			Name:        "mixer_state",
			Title:       "Mixer State",
			Description: "Current control values for both decks",
			Category:    "mixer",
			Handler: func(context.Context, Args) (string, error) {
				return toJSON(h.Mixer.Snapshot())
			},
		},
		{
			Name:        "mixer_reset",
			Title:       "Reset Mixer",
			Description: "Reset one deck (deck=1|2) or both to defaults",
			Category:    "mixer",
			ArgHint:     "deck",
			Handler: func(_ context.Context, args Args) (string, error) {
				deck := args.IntOr("deck", 0)
				switch deck {
				case 0:
					h.Mixer.ResetAll()
					return "mixer reset", nil
				case 1, 2:
					h.Mixer.Reset(deck - 1)
					return fmt.Sprintf("deck %d reset", deck), nil
				default:
					return "", fmt.Errorf("deck must be 1 or 2, got %d", deck)
				}
			},
		},
		{
			Name:        "preset_save",
			Title:       "Save Preset",
			Description: "Save the current deck values under a name",
			Category:    "preset",
			ArgHint:     "name",
			Handler: func(ctx context.Context, args Args) (string, error) {
				name, err := args.String("name")
				if err != nil {
					return "", err
				}
				if name == "" {
					return "", fmt.Errorf("preset name is required")
				}
				snap := h.Mixer.Snapshot()
				p := repository.Preset{
					ID:    uuid.NewString(),
					Name:  name,
					Decks: [2]mixer.DeckValues{snap.Decks[0].DeckValues, snap.Decks[1].DeckValues},
				}
				if err := h.Presets.Save(ctx, p); err != nil {
					return "", err
				}
				return fmt.Sprintf("preset %q saved", name), nil
			},
		},
		{
			Name:        "preset_load",
			Title:       "Load Preset",
			Description: "Apply a saved preset to both decks",
			Category:    "preset",
			ArgHint:     "name",
			Handler: func(ctx context.Context, args Args) (string, error) {
				name, err := args.String("name")
				if err != nil {
					return "", err
				}
				p, err := h.Presets.Get(ctx, name)
				if err != nil {
					return "", err
				}
				if p == nil {
					return "", fmt.Errorf("preset %q not found", name)
				}
				for deck, values := range p.Decks {
					h.Mixer.ApplyPreset(deck, values)
				}
				return fmt.Sprintf("preset %q loaded", name), nil
			},
		},
		{
			Name:        "preset_list",
			Title:       "List Presets",
			Description: "Names of all saved presets",
			Category:    "preset",
			Handler: func(ctx context.Context, _ Args) (string, error) {
				presets, err := h.Presets.List(ctx)
				if err != nil {
					return "", err
				}
				names := make([]string, 0, len(presets))
				for _, p := range presets {
					names = append(names, p.Name)
				}
				return toJSON(names)
			},
		},
		{
			Name:        "session_stats",
			Title:       "Session Stats",
			Description: "Live frame and gesture counters from the backend",
			Category:    "session",
			Handler: func(context.Context, Args) (string, error) {
				st := h.Backend.Status()
				out := struct {
					backend.SessionStats
					ConnectedSeconds float64 `json:"connected_seconds"`
				}{SessionStats: st.Stats}
				if !st.ConnectedAt.IsZero() {
					out.ConnectedSeconds = time.Since(st.ConnectedAt).Seconds()
				}
				return toJSON(out)
			},
		},
	}
	if h.Maint != nil {
		cmds = append(cmds, Command{
			Name:        "db_reset",
			Title:       "Reset Database",
			Description: "Wipe session history and presets, reseed defaults",
			Category:    "maintenance",
			Handler: func(ctx context.Context, _ Args) (string, error) {
				if err := h.Maint.Reset(ctx); err != nil {
					return "", err
				}
				return "database reset", nil
			},
		})
	}
	return cmds
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
