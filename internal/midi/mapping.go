package midi

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// MIDI mapping configuration (TOML-based)
// ---------------------------------------------------------------------------

// Control maps one continuous mixer parameter onto a CC number.
type Control struct {
	Name    string  `toml:"name"`
	CC      int     `toml:"cc"`
	Min     float64 `toml:"min"`
	Max     float64 `toml:"max"`
	Default float64 `toml:"default"`
}

// Toggle maps one on/off action onto a CC number.
type Toggle struct {
	Name string `toml:"name"`
	CC   int    `toml:"cc"`
}

// Mapping is the full mapping file content. Deck channels are indexed
// by deck; Mixxx feedback arrives on the feedback channel.
type Mapping struct {
	Device          string    `toml:"device"`
	Smoothing       float64   `toml:"smoothing"`
	DeckChannels    []int     `toml:"deck_channels"`
	FeedbackChannel int       `toml:"feedback_channel"`
	Controls        []Control `toml:"control"`
	Toggles         []Toggle  `toml:"toggle"`
}

const defaultMappingsTOML = `# GesteDJ MIDI mappings.
# Mixxx reads these CC numbers from the virtual device; edit the blocks
# to match your controller preset.

device = "AI_DJ_Gestures"
smoothing = 0.8
deck_channels = [0, 1]
feedback_channel = 1

[[control]]
name = "filter"
cc = 1
min = 0.0
max = 1.0
default = 0.5

[[control]]
name = "low"
cc = 2
min = 0.0
max = 4.0
default = 1.0

[[control]]
name = "mid"
cc = 3
min = 0.0
max = 4.0
default = 1.0

[[control]]
name = "high"
cc = 4
min = 0.0
max = 4.0
default = 1.0

[[control]]
name = "volume"
cc = 7
min = 0.0
max = 1.0
default = 1.0

[[toggle]]
name = "play"
cc = 18

[[toggle]]
name = "effect"
cc = 20
`

// Load reads the mapping file, creating it with defaults if missing.
func Load(path string) (Mapping, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return Mapping{}, fmt.Errorf("create mappings dir: %w", mkErr)
		}
		if wErr := os.WriteFile(path, []byte(defaultMappingsTOML), 0644); wErr != nil {
			return Mapping{}, fmt.Errorf("write default mappings: %w", wErr)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, fmt.Errorf("read mappings: %w", err)
	}
	return parseMapping(data)
}

// parseMapping parses TOML bytes into a validated mapping.
func parseMapping(data []byte) (Mapping, error) {
	var m Mapping
	if err := toml.Unmarshal(data, &m); err != nil {
		return Mapping{}, fmt.Errorf("parse mappings.toml: %w", err)
	}
	if err := m.validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

func (m Mapping) validate() error {
	if m.Device == "" {
		return fmt.Errorf("device is required")
	}
	if m.Smoothing < 0 || m.Smoothing >= 1 {
		return fmt.Errorf("smoothing %g out of range [0, 1)", m.Smoothing)
	}
	if len(m.DeckChannels) == 0 {
		return fmt.Errorf("deck_channels is required")
	}
	for i, ch := range m.DeckChannels {
		if ch < 0 || ch > 15 {
			return fmt.Errorf("deck_channels[%d] = %d out of range 0-15", i, ch)
		}
	}
	if m.FeedbackChannel < 0 || m.FeedbackChannel > 15 {
		return fmt.Errorf("feedback_channel %d out of range 0-15", m.FeedbackChannel)
	}
	if len(m.Controls) == 0 {
		return fmt.Errorf("no controls defined in mapping")
	}
	names := make(map[string]bool)
	for i, c := range m.Controls {
		if c.Name == "" {
			return fmt.Errorf("control[%d]: name is required", i)
		}
		if names[strings.ToLower(c.Name)] {
			return fmt.Errorf("control[%d] %q: duplicate name", i, c.Name)
		}
		names[strings.ToLower(c.Name)] = true
		if c.CC < 0 || c.CC > 127 {
			return fmt.Errorf("control[%d] %q: cc %d out of range 0-127", i, c.Name, c.CC)
		}
		if c.Max <= c.Min {
			return fmt.Errorf("control[%d] %q: max must exceed min", i, c.Name)
		}
		if c.Default < c.Min || c.Default > c.Max {
			return fmt.Errorf("control[%d] %q: default %g outside [%g, %g]", i, c.Name, c.Default, c.Min, c.Max)
		}
	}
	for i, tg := range m.Toggles {
		if tg.Name == "" {
			return fmt.Errorf("toggle[%d]: name is required", i)
		}
		if names[strings.ToLower(tg.Name)] {
			return fmt.Errorf("toggle[%d] %q: duplicate name", i, tg.Name)
		}
		names[strings.ToLower(tg.Name)] = true
		if tg.CC < 0 || tg.CC > 127 {
			return fmt.Errorf("toggle[%d] %q: cc %d out of range 0-127", i, tg.Name, tg.CC)
		}
	}
	return nil
}

// Default returns the built-in mapping.
func Default() Mapping {
	m, err := parseMapping([]byte(defaultMappingsTOML))
	if err != nil {
		panic(fmt.Sprintf("default mapping invalid: %v", err))
	}
	return m
}

// FindControl looks up a control by name (case-insensitive).
func (m Mapping) FindControl(name string) *Control {
	for i := range m.Controls {
		if strings.EqualFold(m.Controls[i].Name, name) {
			return &m.Controls[i]
		}
	}
	return nil
}

// FindControlByCC looks up a control by its CC number.
func (m Mapping) FindControlByCC(cc int) *Control {
	for i := range m.Controls {
		if m.Controls[i].CC == cc {
			return &m.Controls[i]
		}
	}
	return nil
}

// FindToggle looks up a toggle by name (case-insensitive).
func (m Mapping) FindToggle(name string) *Toggle {
	for i := range m.Toggles {
		if strings.EqualFold(m.Toggles[i].Name, name) {
			return &m.Toggles[i]
		}
	}
	return nil
}

// DeckChannel returns the MIDI channel for a 0-based deck index.
func (m Mapping) DeckChannel(deck int) (int, error) {
	if deck < 0 || deck >= len(m.DeckChannels) {
		return 0, fmt.Errorf("no channel mapped for deck %d", deck)
	}
	return m.DeckChannels[deck], nil
}

// Smooth blends a new value into the previous one. The heavy weight on
// the previous value removes camera jitter before it reaches Mixxx.
func (m Mapping) Smooth(prev, next float64) float64 {
	return m.Smoothing*prev + (1-m.Smoothing)*next
}

// ToCC scales a parameter value to the 0-127 CC range.
func (c Control) ToCC(v float64) int {
	if v < c.Min {
		v = c.Min
	}
	if v > c.Max {
		v = c.Max
	}
	return int(math.Round((v - c.Min) / (c.Max - c.Min) * 127))
}

// FromCC converts a 0-127 CC value back to the parameter range.
func (c Control) FromCC(cc int) float64 {
	if cc < 0 {
		cc = 0
	}
	if cc > 127 {
		cc = 127
	}
	return c.Min + float64(cc)/127*(c.Max-c.Min)
}

// CCCache drops repeat sends of an unchanged CC value per channel.
type CCCache struct {
	mu   sync.Mutex
	last map[[2]int]int
}

func NewCCCache() *CCCache {
	return &CCCache{last: make(map[[2]int]int)}
}

// Changed records the value and reports whether it differs from the
// last one seen for this channel and CC.
func (c *CCCache) Changed(channel, cc, value int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := [2]int{channel, cc}
	prev, seen := c.last[key]
	c.last[key] = value
	return !seen || prev != value
}

// Reset forgets all cached values, forcing the next sends through.
func (c *CCCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = make(map[[2]int]int)
}
