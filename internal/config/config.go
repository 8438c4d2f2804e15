package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Backend   BackendConfig
	Database  DatabaseConfig
	MIDI      MIDIConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Shortcuts []ShortcutConfig
}

// BackendConfig holds gesture backend settings, both for the socket
// bridge and for the supervised Python process.
type BackendConfig struct {
	Host                string
	Port                int
	Autostart           bool
	Command             string
	Script              string
	ReconnectSeconds    int     `mapstructure:"reconnect_seconds"`
	RestartSeconds      int     `mapstructure:"restart_seconds"`
	MaxHands            int     `mapstructure:"max_hands"`
	DetectionConfidence float64 `mapstructure:"detection_confidence"`
	TrackingConfidence  float64 `mapstructure:"tracking_confidence"`
	JPEGQuality         int     `mapstructure:"jpeg_quality"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path       string
	Migrations string
}

// MIDIConfig holds the virtual device name and the mapping file path.
type MIDIConfig struct {
	Device       string
	MappingsPath string `mapstructure:"mappings_path"`
}

// ServerConfig holds the optional control socket settings.
type ServerConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// LoggingConfig holds log output settings. Logs go to a file rather
// than stdout because the terminal belongs to the UI.
type LoggingConfig struct {
	Level  string
	ToFile bool `mapstructure:"to_file"`
	Path   string
}

// ShortcutConfig is one keybinding override from the config file.
type ShortcutConfig struct {
	Scope  string
	Action string
	Keys   []string
}

// Load reads configuration from file and env. Env var overrides use prefix GESTDJ_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("backend.host", "localhost")
	v.SetDefault("backend.port", 8765)
	v.SetDefault("backend.autostart", false)
	v.SetDefault("backend.command", "python3")
	v.SetDefault("backend.script", "")
	v.SetDefault("backend.reconnect_seconds", 2)
	v.SetDefault("backend.restart_seconds", 3)
	v.SetDefault("backend.max_hands", 2)
	v.SetDefault("backend.detection_confidence", 0.7)
	v.SetDefault("backend.tracking_confidence", 0.5)
	v.SetDefault("backend.jpeg_quality", 80)
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "gestdj", "gestdj.db"))
	v.SetDefault("database.migrations", "internal/database/migrations")
	v.SetDefault("midi.device", "AI_DJ_Gestures")
	v.SetDefault("midi.mappings_path", filepath.Join(os.Getenv("HOME"), ".config", "gestdj", "mappings.toml"))
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8766)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.to_file", true)
	v.SetDefault("logging.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "gestdj", "gestdj.log"))

	v.SetConfigType("toml")

	cfgPath := os.Getenv("GESTDJ_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "gestdj"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GESTDJ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate rejects settings the backend or the bridge cannot work with.
func (c Config) Validate() error {
	if c.Backend.Host == "" {
		return fmt.Errorf("backend.host is required")
	}
	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port %d out of range 1-65535", c.Backend.Port)
	}
	if c.Backend.ReconnectSeconds < 1 {
		return fmt.Errorf("backend.reconnect_seconds must be at least 1")
	}
	if c.Backend.RestartSeconds < 0 {
		return fmt.Errorf("backend.restart_seconds must not be negative")
	}
	if c.Backend.MaxHands < 1 || c.Backend.MaxHands > 4 {
		return fmt.Errorf("backend.max_hands %d out of range 1-4", c.Backend.MaxHands)
	}
	if c.Backend.DetectionConfidence <= 0 || c.Backend.DetectionConfidence > 1 {
		return fmt.Errorf("backend.detection_confidence %g out of range (0, 1]", c.Backend.DetectionConfidence)
	}
	if c.Backend.TrackingConfidence <= 0 || c.Backend.TrackingConfidence > 1 {
		return fmt.Errorf("backend.tracking_confidence %g out of range (0, 1]", c.Backend.TrackingConfidence)
	}
	if c.Backend.JPEGQuality < 1 || c.Backend.JPEGQuality > 100 {
		return fmt.Errorf("backend.jpeg_quality %d out of range 1-100", c.Backend.JPEGQuality)
	}
	if c.Backend.Autostart && c.Backend.Script == "" {
		return fmt.Errorf("backend.script is required when backend.autostart is set")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Enabled {
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required when server.enabled is set")
		}
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
		}
	}
	return nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// Shortcut overrides are hand-edited and not round-tripped here.
func Save(cfg Config) error {
	path := os.Getenv("GESTDJ_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "gestdj", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("backend.host", cfg.Backend.Host)
	v.Set("backend.port", cfg.Backend.Port)
	v.Set("backend.autostart", cfg.Backend.Autostart)
	v.Set("backend.command", cfg.Backend.Command)
	v.Set("backend.script", cfg.Backend.Script)
	v.Set("backend.reconnect_seconds", cfg.Backend.ReconnectSeconds)
	v.Set("backend.restart_seconds", cfg.Backend.RestartSeconds)
	v.Set("backend.max_hands", cfg.Backend.MaxHands)
	v.Set("backend.detection_confidence", cfg.Backend.DetectionConfidence)
	v.Set("backend.tracking_confidence", cfg.Backend.TrackingConfidence)
	v.Set("backend.jpeg_quality", cfg.Backend.JPEGQuality)
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("midi.device", cfg.MIDI.Device)
	v.Set("midi.mappings_path", cfg.MIDI.MappingsPath)
	v.Set("server.enabled", cfg.Server.Enabled)
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.to_file", cfg.Logging.ToFile)
	v.Set("logging.path", cfg.Logging.Path)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
