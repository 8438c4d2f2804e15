package mixer

import (
	"sync"
	"time"
)

// Knob identifies one rotary control on a deck.
type Knob string

const (
	KnobFilter Knob = "filter"
	KnobLow    Knob = "low"
	KnobMid    Knob = "mid"
	KnobHigh   Knob = "high"
)

// Knobs lists the controls in display order.
func Knobs() []Knob {
	return []Knob{KnobFilter, KnobLow, KnobMid, KnobHigh}
}

type knobParam struct {
	min, max, def float64
}

// Control ranges match what the MIDI layer and the DJ software expect.
var knobParams = map[Knob]knobParam{
	KnobFilter: {min: 0, max: 1, def: 0.5},
	KnobLow:    {min: 0, max: 4, def: 1},
	KnobMid:    {min: 0, max: 4, def: 1},
	KnobHigh:   {min: 0, max: 4, def: 1},
}

const (
	// fullRangeDegrees of pointer rotation sweep a knob end to end.
	fullRangeDegrees = 150.0
	// volumeSensitivity is the volume change per pixel of vertical
	// pinch travel; negative so upward movement raises volume.
	volumeSensitivity = -0.0035
	defaultVolume     = 1.0
	// playToggleHoldOff debounces repeated play toggles.
	playToggleHoldOff = 300 * time.Millisecond
)

// Gesture classes as the backend reports them.
const (
	GestureFist    = "fist"
	GestureFilter  = "filter_control"
	GestureLowEQ   = "low_eq"
	GestureMidEQ   = "mid_eq"
	GestureHighEQ  = "high_eq"
	GestureOpen    = "open_hand"
	GestureRock    = "rockstar"
	GestureThumbs  = "thumbs_up"
	GestureVolume  = "volume_pinch"
	GestureUnknown = "unknown"
)

var knobForGesture = map[string]Knob{
	GestureFilter: KnobFilter,
	GestureLowEQ:  KnobLow,
	GestureMidEQ:  KnobMid,
	GestureHighEQ: KnobHigh,
}

// GestureInput is one classified observation of a single hand.
type GestureInput struct {
	Deck    int
	Class   string
	Fingers int
	// Angle is the pointer angle in degrees when the backend reports
	// one. Knob control is relative: the first angle of a gesture only
	// sets the baseline, so re-engaging never jumps the value.
	Angle *float64
	// TipYPx is the index tip height in pixels, used for volume.
	TipYPx *float64
}

// DeckValues are the persistable control values of one deck.
type DeckValues struct {
	Filter float64 `json:"filter"`
	Low    float64 `json:"low"`
	Mid    float64 `json:"mid"`
	High   float64 `json:"high"`
	Volume float64 `json:"volume"`
}

// DeckSnapshot is DeckValues plus the transient performance state.
type DeckSnapshot struct {
	DeckValues
	Playing    bool   `json:"playing"`
	EffectOn   bool   `json:"effect_on"`
	ActiveKnob string `json:"active_knob,omitempty"`
}

// Snapshot is a point-in-time copy of both decks.
type Snapshot struct {
	Decks [2]DeckSnapshot `json:"decks"`
}

type deckState struct {
	values  map[Knob]float64
	volume  float64
	playing bool
	effect  bool

	engaged    bool
	activeKnob Knob
	prevAngle  *float64
	volPrevY   *float64
	lastClass  string
	lastPlay   time.Time
}

// Mixer holds the control state of both decks. Deck 0 is the left
// hand, deck 1 the right. All methods are safe for concurrent use.
type Mixer struct {
	mu    sync.Mutex
	decks [2]deckState
}

func New() *Mixer {
	m := &Mixer{}
	for i := range m.decks {
		m.decks[i] = newDeckState()
	}
	return m
}

func newDeckState() deckState {
	values := make(map[Knob]float64, len(knobParams))
	for knob, p := range knobParams {
		values[knob] = p.def
	}
	return deckState{values: values, volume: defaultVolume}
}

// Apply folds one gesture observation into the deck state.
func (m *Mixer) Apply(in GestureInput) {
	if in.Deck < 0 || in.Deck >= len(m.decks) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d := &m.decks[in.Deck]
	defer func() { d.lastClass = in.Class }()

	switch in.Class {
	case GestureFilter, GestureLowEQ, GestureMidEQ, GestureHighEQ:
		d.volPrevY = nil
		knob := knobForGesture[in.Class]
		if in.Angle == nil {
			return
		}
		angle := *in.Angle
		if !d.engaged || d.activeKnob != knob || d.prevAngle == nil {
			d.engaged = true
			d.activeKnob = knob
			d.prevAngle = &angle
			return
		}
		delta := wrapDegrees(angle - *d.prevAngle)
		d.prevAngle = &angle
		p := knobParams[knob]
		d.values[knob] = clamp(d.values[knob]+delta*((p.max-p.min)/fullRangeDegrees), p.min, p.max)

	case GestureVolume:
		d.endKnob()
		if in.TipYPx == nil {
			return
		}
		y := *in.TipYPx
		if d.volPrevY != nil {
			d.volume = clamp(d.volume+(y-*d.volPrevY)*volumeSensitivity, 0, 1)
		}
		d.volPrevY = &y

	case GestureRock:
		d.endKnob()
		d.volPrevY = nil
		if d.lastClass != GestureRock {
			d.effect = !d.effect
		}

	case GestureThumbs:
		d.endKnob()
		d.volPrevY = nil
		if d.lastClass != GestureThumbs && time.Since(d.lastPlay) >= playToggleHoldOff {
			d.playing = !d.playing
			d.lastPlay = time.Now()
		}

	default:
		// fist, open_hand, unknown: hand relaxed, end any engagement
		d.endKnob()
		d.volPrevY = nil
	}
}

// DetectionLost clears the transient gesture state of a deck after the
// backend stops seeing the hand. Control values are kept.
func (m *Mixer) DetectionLost(deck int) {
	if deck < 0 || deck >= len(m.decks) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &m.decks[deck]
	d.endKnob()
	d.volPrevY = nil
	d.lastClass = ""
}

// Reset restores one deck's values and volume to defaults. Play and
// effect state is left alone so a reset never stops the music.
func (m *Mixer) Reset(deck int) {
	if deck < 0 || deck >= len(m.decks) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(deck)
}

// ResetAll restores both decks.
func (m *Mixer) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.decks {
		m.resetLocked(i)
	}
}

func (m *Mixer) resetLocked(deck int) {
	d := &m.decks[deck]
	for knob, p := range knobParams {
		d.values[knob] = p.def
	}
	d.volume = defaultVolume
	d.endKnob()
	d.volPrevY = nil
}

// ApplyPreset sets a deck's values from a stored preset, clamped to
// the control ranges.
func (m *Mixer) ApplyPreset(deck int, v DeckValues) {
	if deck < 0 || deck >= len(m.decks) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &m.decks[deck]
	d.values[KnobFilter] = clampKnob(KnobFilter, v.Filter)
	d.values[KnobLow] = clampKnob(KnobLow, v.Low)
	d.values[KnobMid] = clampKnob(KnobMid, v.Mid)
	d.values[KnobHigh] = clampKnob(KnobHigh, v.High)
	d.volume = clamp(v.Volume, 0, 1)
	d.endKnob()
}

// Set overrides one control by name, clamped to its range. Used when
// the DJ moves the control in Mixxx directly so the next gesture picks
// up from there.
func (m *Mixer) Set(deck int, control string, value float64) {
	if deck < 0 || deck >= len(m.decks) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &m.decks[deck]
	if control == "volume" {
		d.volume = clamp(value, 0, 1)
		return
	}
	knob := Knob(control)
	if _, ok := knobParams[knob]; !ok {
		return
	}
	d.values[knob] = clampKnob(knob, value)
	if d.activeKnob == knob {
		d.prevAngle = nil
	}
}

// Snapshot returns a copy of both decks.
func (m *Mixer) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out Snapshot
	for i := range m.decks {
		out.Decks[i] = m.decks[i].snapshot()
	}
	return out
}

// Value returns one knob's current value.
func (m *Mixer) Value(deck int, knob Knob) float64 {
	if deck < 0 || deck >= len(m.decks) {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decks[deck].values[knob]
}

// Default returns a knob's default value.
func Default(knob Knob) float64 {
	return knobParams[knob].def
}

// Range returns a knob's min and max.
func Range(knob Knob) (min, max float64) {
	p := knobParams[knob]
	return p.min, p.max
}

func (d *deckState) snapshot() DeckSnapshot {
	snap := DeckSnapshot{
		DeckValues: DeckValues{
			Filter: d.values[KnobFilter],
			Low:    d.values[KnobLow],
			Mid:    d.values[KnobMid],
			High:   d.values[KnobHigh],
			Volume: d.volume,
		},
		Playing:  d.playing,
		EffectOn: d.effect,
	}
	if d.engaged {
		snap.ActiveKnob = string(d.activeKnob)
	}
	return snap
}

func (d *deckState) endKnob() {
	d.engaged = false
	d.activeKnob = ""
	d.prevAngle = nil
}

func clampKnob(knob Knob, v float64) float64 {
	p := knobParams[knob]
	return clamp(v, p.min, p.max)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func wrapDegrees(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	return d
}
