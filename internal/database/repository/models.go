package repository

import (
	"time"

	"github.com/gestdj/gestdj/internal/mixer"
)

// Preset represents a saved mixer preset row with its per-deck values.
type Preset struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Decks     [2]mixer.DeckValues
}

// Session represents one backend session row. EndedAt stays nil while
// the session is live.
type Session struct {
	ID               string
	StartedAt        time.Time
	EndedAt          *time.Time
	FramesProcessed  int64
	GesturesDetected int64
	DetectionRate    float64
}
