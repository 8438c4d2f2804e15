package repository

import (
	"context"
	"database/sql"
	"time"
)

// SessionRepo handles backend session rows.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Begin inserts a new live session.
func (r *SessionRepo) Begin(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO sessions(id, started_at, frames_processed, gestures_detected, detection_rate)
	VALUES (?, ?, ?, ?, ?);
	`, s.ID, s.StartedAt, s.FramesProcessed, s.GesturesDetected, s.DetectionRate)
	return err
}

// UpdateStats refreshes the live counters for a session.
func (r *SessionRepo) UpdateStats(ctx context.Context, id string, frames, gestures int64, rate float64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE sessions SET
	 frames_processed=?,
	 gestures_detected=?,
	 detection_rate=?
	WHERE id=?;
	`, frames, gestures, rate, id)
	return err
}

// Finish marks a session as ended with its final counters.
func (r *SessionRepo) Finish(ctx context.Context, id string, endedAt time.Time, frames, gestures int64, rate float64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE sessions SET
	 ended_at=?,
	 frames_processed=?,
	 gestures_detected=?,
	 detection_rate=?
	WHERE id=?;
	`, endedAt, frames, gestures, rate, id)
	return err
}

// Recent returns the newest sessions first.
func (r *SessionRepo) Recent(ctx context.Context, limit int) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, started_at, ended_at, frames_processed, gestures_detected, detection_rate
	FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartedAt, &ended, &s.FramesProcessed, &s.GesturesDetected, &s.DetectionRate); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
