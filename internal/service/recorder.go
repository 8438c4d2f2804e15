package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gestdj/gestdj/internal/backend"
	"github.com/gestdj/gestdj/internal/database"
	"github.com/gestdj/gestdj/internal/database/repository"
)

const statsFlushInterval = 5 * time.Second

// StatusSource is the slice of the bridge the recorder needs.
type StatusSource interface {
	Subscribe() <-chan backend.Update
}

// SessionRecorder writes one session row per backend connection and
// keeps its counters fresh while frames flow.
type SessionRecorder struct {
	Bridge   StatusSource
	Sessions *repository.SessionRepo
	Log      *zap.Logger

	current string
	stats   backend.SessionStats
}

// Run records sessions until ctx is cancelled. A live session is
// closed out on shutdown.
func (r *SessionRecorder) Run(ctx context.Context) {
	updates := r.Bridge.Subscribe()
	flush := time.NewTicker(statsFlushInterval)
	defer flush.Stop()
	for {
		select {
		case <-ctx.Done():
			// shutdown writes get a short deadline of their own
			closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			r.finish(closeCtx)
			cancel()
			return
		case u := <-updates:
			r.observe(ctx, u)
		case <-flush.C:
			r.flush(ctx)
		}
	}
}

func (r *SessionRecorder) observe(ctx context.Context, u backend.Update) {
	r.stats = u.Status.Stats
	switch {
	case u.Status.State == backend.StateConnected && r.current == "":
		id := uuid.NewString()
		s := repository.Session{ID: id, StartedAt: database.Now()}
		if err := r.Sessions.Begin(ctx, s); err != nil {
			r.Log.Warn("session row not created", zap.Error(err))
			return
		}
		r.current = id
		r.Log.Info("session started", zap.String("session", id))
	case u.Status.State != backend.StateConnected && r.current != "":
		r.finish(ctx)
	}
}

func (r *SessionRecorder) flush(ctx context.Context) {
	if r.current == "" {
		return
	}
	err := r.Sessions.UpdateStats(ctx, r.current,
		r.stats.FramesProcessed, r.stats.GesturesDetected, r.stats.DetectionRate)
	if err != nil {
		r.Log.Warn("session stats not flushed", zap.Error(err))
	}
}

func (r *SessionRecorder) finish(ctx context.Context) {
	if r.current == "" {
		return
	}
	err := r.Sessions.Finish(ctx, r.current, database.Now(),
		r.stats.FramesProcessed, r.stats.GesturesDetected, r.stats.DetectionRate)
	if err != nil {
		r.Log.Warn("session row not closed", zap.Error(err))
	} else {
		r.Log.Info("session finished",
			zap.String("session", r.current),
			zap.Int64("frames", r.stats.FramesProcessed),
			zap.Int64("gestures", r.stats.GesturesDetected))
	}
	r.current = ""
}
