package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/gestdj/gestdj/internal/backend"
	"github.com/gestdj/gestdj/internal/command"
	"github.com/gestdj/gestdj/internal/config"
	"github.com/gestdj/gestdj/internal/database"
	"github.com/gestdj/gestdj/internal/database/repository"
	"github.com/gestdj/gestdj/internal/logging"
	"github.com/gestdj/gestdj/internal/midi"
	"github.com/gestdj/gestdj/internal/mixer"
	"github.com/gestdj/gestdj/internal/server"
	"github.com/gestdj/gestdj/internal/service"
	"github.com/gestdj/gestdj/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := database.SeedDefaults(ctx, db); err != nil {
		log.Fatalf("seed defaults: %v", err)
	}

	// repositories
	presetRepo := repository.NewPresetRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	mapping, err := midi.Load(cfg.MIDI.MappingsPath)
	if err != nil {
		log.Fatalf("midi mappings: %v", err)
	}

	mix := mixer.New()
	bridge := backend.NewBridge(cfg.Backend, logger)
	proc := backend.NewSupervisor(cfg.Backend, logger)
	svc := &backend.Service{Bridge: bridge, Proc: proc}

	// services
	control := &service.ControlService{Bridge: bridge, Mixer: mix, Mapping: mapping, Log: logger}
	recorder := &service.SessionRecorder{Bridge: bridge, Sessions: sessionRepo, Log: logger}
	maintenance := &service.MaintenanceService{DB: db}

	reg := command.NewRegistry()
	if err := reg.RegisterAll(command.Builtins()...); err != nil {
		log.Fatalf("register commands: %v", err)
	}
	host := command.Host{Backend: svc, Mixer: mix, Presets: presetRepo, Maint: maintenance}
	if err := reg.RegisterAll(command.HostCommands(host)...); err != nil {
		log.Fatalf("register commands: %v", err)
	}

	keys := tui.NewKeyRegistry()
	if err := keys.ApplyShortcuts(cfg.Shortcuts); err != nil {
		log.Fatalf("shortcuts: %v", err)
	}

	go bridge.Run(ctx)
	go control.Run(ctx)
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(ctx)
		close(recorderDone)
	}()

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, reg, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("control server", zap.Error(err))
			}
		}()
	}

	if cfg.Backend.Autostart {
		if err := svc.Start(ctx); err != nil {
			logger.Warn("backend autostart failed", zap.Error(err))
		}
	}

	p := tea.NewProgram(tui.New(ctx, cfg, tui.Deps{
		Registry: reg,
		Keys:     keys,
		Mixer:    mix,
		Sessions: sessionRepo,
		Updates:  bridge.Subscribe(),
		Status:   svc.Status,
	}), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}

	// Cancel the workers, stop the supervised process, and let the
	// recorder close out the live session row before exiting.
	stop()
	if proc.Running() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := svc.Stop(stopCtx); err != nil {
			logger.Warn("backend stop on exit", zap.Error(err))
		}
		cancel()
	}
	<-recorderDone
}
