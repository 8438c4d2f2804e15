package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gestdj/gestdj/internal/backend"
	"github.com/gestdj/gestdj/internal/midi"
	"github.com/gestdj/gestdj/internal/mixer"
)

// midiSendRate caps outbound control pushes. Camera frames arrive
// faster than Mixxx needs updates.
const midiSendRate = 30

// ControlBus is the slice of the bridge the control pump needs.
type ControlBus interface {
	Subscribe() <-chan backend.Update
	SendControls(deck int, controls map[string]int) error
}

// ControlService turns backend gesture frames into mixer changes and
// pushes the resulting CC values back out at a fixed rate. Mixxx
// feedback folds external control moves into the mixer so gestures
// continue from wherever the DJ left the knob.
type ControlService struct {
	Bridge  ControlBus
	Mixer   *mixer.Mixer
	Mapping midi.Mapping
	Log     *zap.Logger

	cache    *midi.CCCache
	smoothed map[smoothKey]float64
}

type smoothKey struct {
	deck    int
	control string
}

// Run pumps updates until ctx is cancelled.
func (s *ControlService) Run(ctx context.Context) {
	updates := s.Bridge.Subscribe()
	ticker := time.NewTicker(time.Second / midiSendRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			switch {
			case u.Frame != nil:
				s.applyFrame(u.Frame)
			case u.Feedback != nil:
				s.applyFeedback(*u.Feedback)
			case u.Status.State != backend.StateConnected:
				// resend everything once the backend returns
				s.ensure()
				s.cache.Reset()
			}
		case <-ticker.C:
			s.push()
		}
	}
}

func (s *ControlService) ensure() {
	if s.cache == nil {
		s.cache = midi.NewCCCache()
	}
	if s.smoothed == nil {
		s.smoothed = make(map[smoothKey]float64)
	}
}

// applyFrame routes each detected hand to its deck and marks decks
// without a hand as lost so held gestures release cleanly.
func (s *ControlService) applyFrame(f *backend.FrameResult) {
	s.ensure()
	var seen [2]bool
	for key, hg := range f.Gestures.Gestures {
		deck, ok := deckForHand(key, hg.Handedness)
		if !ok {
			continue
		}
		seen[deck] = true
		s.Mixer.Apply(mixer.GestureInput{
			Deck:    deck,
			Class:   hg.Gesture,
			Fingers: hg.FingersUp,
			Angle:   hg.PointerAngle,
			TipYPx:  hg.TipYPx,
		})
	}
	for deck, ok := range seen {
		if !ok {
			s.Mixer.DetectionLost(deck)
		}
	}
}

// applyFeedback folds a CC moved in Mixxx back into the mixer and
// absorbs it so the next push does not echo it straight back.
func (s *ControlService) applyFeedback(fb backend.CCFeedback) {
	s.ensure()
	deck, ok := s.deckForChannel(fb.Channel)
	if !ok {
		if fb.Channel != s.Mapping.FeedbackChannel {
			return
		}
		deck = 0
	}
	ctl := s.Mapping.FindControlByCC(fb.CC)
	if ctl == nil {
		return
	}
	value := ctl.FromCC(fb.Value)
	s.Mixer.Set(deck, ctl.Name, value)
	s.smoothed[smoothKey{deck: deck, control: strings.ToLower(ctl.Name)}] = value
	s.cache.Changed(fb.Channel, fb.CC, fb.Value)
}

// push sends changed CC values for both decks.
func (s *ControlService) push() {
	s.ensure()
	snap := s.Mixer.Snapshot()
	for deck := range snap.Decks {
		channel, err := s.Mapping.DeckChannel(deck)
		if err != nil {
			continue
		}
		values := controlValues(snap.Decks[deck])
		controls := make(map[string]int)
		for _, c := range s.Mapping.Controls {
			v, ok := values[strings.ToLower(c.Name)]
			if !ok {
				continue
			}
			key := smoothKey{deck: deck, control: strings.ToLower(c.Name)}
			prev, found := s.smoothed[key]
			if !found {
				prev = v
			}
			sm := s.Mapping.Smooth(prev, v)
			s.smoothed[key] = sm
			cc := c.ToCC(sm)
			if s.cache.Changed(channel, c.CC, cc) {
				controls[c.Name] = cc
			}
		}
		for _, tg := range s.Mapping.Toggles {
			on, ok := toggleState(snap.Decks[deck], tg.Name)
			if !ok {
				continue
			}
			v := 0
			if on {
				v = 127
			}
			if s.cache.Changed(channel, tg.CC, v) {
				controls[tg.Name] = v
			}
		}
		if len(controls) == 0 {
			continue
		}
		if err := s.Bridge.SendControls(deck+1, controls); err != nil {
			s.Log.Debug("control push skipped", zap.Int("deck", deck+1), zap.Error(err))
		}
	}
}

func (s *ControlService) deckForChannel(channel int) (int, bool) {
	for deck, ch := range s.Mapping.DeckChannels {
		if ch == channel && deck < 2 {
			return deck, true
		}
	}
	return 0, false
}

func controlValues(d mixer.DeckSnapshot) map[string]float64 {
	return map[string]float64{
		string(mixer.KnobFilter): d.Filter,
		string(mixer.KnobLow):    d.Low,
		string(mixer.KnobMid):    d.Mid,
		string(mixer.KnobHigh):   d.High,
		"volume":                 d.Volume,
	}
}

func toggleState(d mixer.DeckSnapshot, name string) (bool, bool) {
	switch strings.ToLower(name) {
	case "play":
		return d.Playing, true
	case "effect":
		return d.EffectOn, true
	default:
		return false, false
	}
}

// deckForHand picks the deck for a detected hand. Handedness wins when
// the backend reports it; otherwise detection order decides.
func deckForHand(key, handedness string) (int, bool) {
	switch strings.ToLower(handedness) {
	case "left":
		return 0, true
	case "right":
		return 1, true
	}
	idx := strings.TrimPrefix(key, "hand_")
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 || n > 1 {
		return 0, false
	}
	return n, true
}
