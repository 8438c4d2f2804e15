package backend

import (
	"context"
	"errors"
	"time"
)

// Service couples the supervised process with the socket bridge. Proc
// is optional; without it start and stop report that process control
// is unavailable while the bridge keeps working against an externally
// launched backend.
type Service struct {
	Bridge *Bridge
	Proc   *Supervisor
}

func (s *Service) Start(ctx context.Context) error {
	if s.Proc == nil {
		return errors.New("backend process control disabled")
	}
	return s.Proc.Start(ctx)
}

func (s *Service) Stop(ctx context.Context) error {
	if s.Proc == nil {
		return errors.New("backend process control disabled")
	}
	return s.Proc.Stop(ctx)
}

func (s *Service) Ping(ctx context.Context) (time.Duration, error) {
	return s.Bridge.Ping(ctx)
}

func (s *Service) Status() Status {
	st := s.Bridge.Status()
	if s.Proc != nil {
		st.PID = s.Proc.PID()
	}
	return st
}
