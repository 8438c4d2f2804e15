package backend

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gestdj/gestdj/internal/config"
)

func TestSupervisorStartWithoutScript(t *testing.T) {
	s := NewSupervisor(config.BackendConfig{Command: "python3"}, zap.NewNop())
	err := s.Start(context.Background())
	if err == nil {
		t.Fatal("expected error for missing script")
	}
	if !strings.Contains(err.Error(), "script not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSupervisorStartBogusCommand(t *testing.T) {
	s := NewSupervisor(config.BackendConfig{
		Command: "/nonexistent/gestdj-python",
		Script:  "backend.py",
	}, zap.NewNop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for bogus command")
	}
	if s.Running() {
		t.Fatal("supervisor should not report a running process")
	}
}

func TestSupervisorStopWhenNotRunning(t *testing.T) {
	s := NewSupervisor(config.BackendConfig{Command: "python3", Script: "backend.py"}, zap.NewNop())
	err := s.Stop(context.Background())
	if err == nil {
		t.Fatal("expected error stopping idle supervisor")
	}
	if !strings.Contains(err.Error(), "not running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceWithoutProcessControl(t *testing.T) {
	svc := &Service{Bridge: NewBridge(config.BackendConfig{Host: "127.0.0.1", Port: 8765, ReconnectSeconds: 1}, zap.NewNop())}
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("expected error without supervisor")
	}
	if err := svc.Stop(context.Background()); err == nil {
		t.Fatal("expected error without supervisor")
	}
	st := svc.Status()
	if st.State != StateDisconnected {
		t.Fatalf("state = %q, want disconnected", st.State)
	}
	if st.PID != 0 {
		t.Fatalf("pid = %d, want 0", st.PID)
	}
}
