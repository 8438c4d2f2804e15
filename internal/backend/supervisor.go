package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gestdj/gestdj/internal/config"
)

const stopGrace = 3 * time.Second

// Supervisor runs the Python gesture backend as a child process and
// restarts it after unexpected exits. The camera and MediaPipe live in
// that process; this side only keeps it alive.
type Supervisor struct {
	command string
	script  string
	env     []string
	restart time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
}

func NewSupervisor(cfg config.BackendConfig, log *zap.Logger) *Supervisor {
	// The backend reads its own settings from GESTDJ_* variables, so
	// both sides agree on the socket and detection parameters.
	env := []string{
		fmt.Sprintf("GESTDJ_HOST=%s", cfg.Host),
		fmt.Sprintf("GESTDJ_PORT=%d", cfg.Port),
		fmt.Sprintf("GESTDJ_MAX_HANDS=%d", cfg.MaxHands),
		fmt.Sprintf("GESTDJ_DETECTION_CONFIDENCE=%g", cfg.DetectionConfidence),
		fmt.Sprintf("GESTDJ_TRACKING_CONFIDENCE=%g", cfg.TrackingConfidence),
		fmt.Sprintf("GESTDJ_JPEG_QUALITY=%d", cfg.JPEGQuality),
	}
	return &Supervisor{
		command: cfg.Command,
		script:  cfg.Script,
		env:     env,
		restart: time.Duration(cfg.RestartSeconds) * time.Second,
		log:     log,
	}
}

// Start launches the backend process. Starting an already running
// backend is an error.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		return fmt.Errorf("backend already running (pid %d)", s.cmd.Process.Pid)
	}
	if s.script == "" {
		return errors.New("backend script not configured")
	}
	cmd := exec.Command(s.command, s.script)
	cmd.Env = append(os.Environ(), s.env...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.command, err)
	}
	s.cmd = cmd
	s.stopping = false
	go s.pipeLines("stdout", stdout)
	go s.pipeLines("stderr", stderr)
	go s.wait(ctx, cmd)
	s.log.Info("backend process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("script", s.script))
	return nil
}

// Stop signals the backend to exit and kills it after a grace period.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	if cmd == nil || cmd.Process == nil {
		s.mu.Unlock()
		return errors.New("backend not running")
	}
	s.stopping = true
	proc := cmd.Process
	s.mu.Unlock()

	if err := proc.Signal(os.Interrupt); err != nil {
		_ = proc.Kill()
		return nil
	}
	deadline := time.After(stopGrace)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = proc.Kill()
			return ctx.Err()
		case <-deadline:
			s.log.Warn("backend ignored interrupt, killing", zap.Int("pid", proc.Pid))
			_ = proc.Kill()
			return nil
		case <-tick.C:
			s.mu.Lock()
			running := s.cmd != nil
			s.mu.Unlock()
			if !running {
				return nil
			}
		}
	}
}

func (s *Supervisor) pipeLines(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		s.log.Info("backend", zap.String(stream, sc.Text()))
	}
}

func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd) {
	err := cmd.Wait()
	s.mu.Lock()
	restart := !s.stopping && s.restart > 0 && ctx.Err() == nil
	s.cmd = nil
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("backend process exited", zap.Error(err))
	} else {
		s.log.Info("backend process exited")
	}
	if !restart {
		return
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.restart):
	}
	if err := s.Start(ctx); err != nil {
		s.log.Error("backend restart failed", zap.Error(err))
	}
}

// PID returns the running backend's process id, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Supervisor) Running() bool {
	return s.PID() != 0
}
