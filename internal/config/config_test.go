package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		Backend: BackendConfig{
			Host:                "localhost",
			Port:                8765,
			Command:             "python3",
			ReconnectSeconds:    2,
			RestartSeconds:      3,
			MaxHands:            2,
			DetectionConfidence: 0.7,
			TrackingConfidence:  0.5,
			JPEGQuality:         80,
		},
		Database: DatabaseConfig{Path: "/tmp/gestdj.db"},
		MIDI:     MIDIConfig{Device: "AI_DJ_Gestures"},
		Server:   ServerConfig{Host: "localhost", Port: 8766},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GESTDJ_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Host != "localhost" {
		t.Errorf("backend.host = %q, want localhost", cfg.Backend.Host)
	}
	if cfg.Backend.Port != 8765 {
		t.Errorf("backend.port = %d, want 8765", cfg.Backend.Port)
	}
	if cfg.Backend.MaxHands != 2 {
		t.Errorf("backend.max_hands = %d, want 2", cfg.Backend.MaxHands)
	}
	if cfg.Backend.DetectionConfidence != 0.7 {
		t.Errorf("backend.detection_confidence = %v, want 0.7", cfg.Backend.DetectionConfidence)
	}
	if cfg.Backend.JPEGQuality != 80 {
		t.Errorf("backend.jpeg_quality = %d, want 80", cfg.Backend.JPEGQuality)
	}
	if cfg.Backend.Autostart {
		t.Error("backend.autostart should default off")
	}
	wantDB := filepath.Join(home, ".local", "share", "gestdj", "gestdj.db")
	if cfg.Database.Path != wantDB {
		t.Errorf("database.path = %q, want %q", cfg.Database.Path, wantDB)
	}
	if cfg.MIDI.Device != "AI_DJ_Gestures" {
		t.Errorf("midi.device = %q, want AI_DJ_Gestures", cfg.MIDI.Device)
	}
	if cfg.Server.Enabled {
		t.Error("server should default off")
	}
	if cfg.Server.Port != 8766 {
		t.Errorf("server.port = %d, want 8766", cfg.Server.Port)
	}
	if !cfg.Logging.ToFile {
		t.Error("logging.to_file should default on")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	data := []byte(`
[backend]
host = "192.168.1.20"
port = 9000
autostart = true
script = "/opt/gestdj/backend.py"
max_hands = 1

[midi]
device = "GesteDJ_Test"

[[shortcuts]]
scope = "global"
action = "quit"
keys = ["ctrl+q"]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GESTDJ_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Host != "192.168.1.20" {
		t.Errorf("backend.host = %q", cfg.Backend.Host)
	}
	if cfg.Backend.Port != 9000 {
		t.Errorf("backend.port = %d, want 9000", cfg.Backend.Port)
	}
	if !cfg.Backend.Autostart {
		t.Error("backend.autostart should be on")
	}
	if cfg.Backend.Script != "/opt/gestdj/backend.py" {
		t.Errorf("backend.script = %q", cfg.Backend.Script)
	}
	if cfg.Backend.MaxHands != 1 {
		t.Errorf("backend.max_hands = %d, want 1", cfg.Backend.MaxHands)
	}
	// untouched keys keep their defaults
	if cfg.Backend.JPEGQuality != 80 {
		t.Errorf("backend.jpeg_quality = %d, want default 80", cfg.Backend.JPEGQuality)
	}
	if cfg.MIDI.Device != "GesteDJ_Test" {
		t.Errorf("midi.device = %q", cfg.MIDI.Device)
	}
	if len(cfg.Shortcuts) != 1 {
		t.Fatalf("shortcuts = %d, want 1", len(cfg.Shortcuts))
	}
	sc := cfg.Shortcuts[0]
	if sc.Scope != "global" || sc.Action != "quit" || len(sc.Keys) != 1 || sc.Keys[0] != "ctrl+q" {
		t.Errorf("shortcut = %+v", sc)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\nport = 9000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GESTDJ_CONFIG", path)
	t.Setenv("GESTDJ_BACKEND_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Port != 9100 {
		t.Errorf("backend.port = %d, want env override 9100", cfg.Backend.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty host", func(c *Config) { c.Backend.Host = "" }, true},
		{"port zero", func(c *Config) { c.Backend.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Backend.Port = 70000 }, true},
		{"reconnect zero", func(c *Config) { c.Backend.ReconnectSeconds = 0 }, true},
		{"negative restart", func(c *Config) { c.Backend.RestartSeconds = -1 }, true},
		{"restart zero disables", func(c *Config) { c.Backend.RestartSeconds = 0 }, false},
		{"no hands", func(c *Config) { c.Backend.MaxHands = 0 }, true},
		{"too many hands", func(c *Config) { c.Backend.MaxHands = 5 }, true},
		{"detection zero", func(c *Config) { c.Backend.DetectionConfidence = 0 }, true},
		{"detection above one", func(c *Config) { c.Backend.DetectionConfidence = 1.5 }, true},
		{"tracking above one", func(c *Config) { c.Backend.TrackingConfidence = 1.5 }, true},
		{"jpeg zero", func(c *Config) { c.Backend.JPEGQuality = 0 }, true},
		{"jpeg above 100", func(c *Config) { c.Backend.JPEGQuality = 101 }, true},
		{"autostart without script", func(c *Config) { c.Backend.Autostart = true }, true},
		{"autostart with script", func(c *Config) { c.Backend.Autostart = true; c.Backend.Script = "b.py" }, false},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, true},
		{"server enabled bad port", func(c *Config) { c.Server.Enabled = true; c.Server.Port = 0 }, true},
		{"server disabled bad port ok", func(c *Config) { c.Server.Port = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "saved", "config.toml")
	t.Setenv("GESTDJ_CONFIG", path)

	cfg := validConfig()
	cfg.Backend.Port = 9500
	cfg.MIDI.Device = "GesteDJ_Saved"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.Port != 9500 {
		t.Errorf("backend.port = %d, want 9500", got.Backend.Port)
	}
	if got.MIDI.Device != "GesteDJ_Saved" {
		t.Errorf("midi.device = %q, want GesteDJ_Saved", got.MIDI.Device)
	}
}
