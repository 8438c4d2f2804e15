package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gestdj/gestdj/internal/backend"
	"github.com/gestdj/gestdj/internal/midi"
	"github.com/gestdj/gestdj/internal/mixer"
)

type sentControls struct {
	deck     int
	controls map[string]int
}

type fakeBus struct {
	mu    sync.Mutex
	ch    chan backend.Update
	sends []sentControls
}

func newFakeBus() *fakeBus {
	return &fakeBus{ch: make(chan backend.Update, 16)}
}

func (f *fakeBus) Subscribe() <-chan backend.Update { return f.ch }

func (f *fakeBus) SendControls(deck int, controls map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]int, len(controls))
	for k, v := range controls {
		cp[k] = v
	}
	f.sends = append(f.sends, sentControls{deck: deck, controls: cp})
	return nil
}

func (f *fakeBus) all() []sentControls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentControls(nil), f.sends...)
}

func newControlService(bus *fakeBus) *ControlService {
	return &ControlService{
		Bridge:  bus,
		Mixer:   mixer.New(),
		Mapping: midi.Default(),
		Log:     zap.NewNop(),
	}
}

func angleFrame(hand string, class string, angle float64) *backend.FrameResult {
	return &backend.FrameResult{
		Gestures: backend.GestureData{
			HandsDetected: 1,
			Gestures: map[string]backend.HandGesture{
				hand: {FingersUp: 1, Gesture: class, PointerAngle: &angle},
			},
		},
	}
}

func TestPushSendsFullStateOnce(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	s.push()
	sends := bus.all()
	if len(sends) != 2 {
		t.Fatalf("sends = %d, want one per deck", len(sends))
	}
	if sends[0].deck != 1 || sends[1].deck != 2 {
		t.Errorf("deck numbers = %d, %d; want 1, 2", sends[0].deck, sends[1].deck)
	}
	first := sends[0].controls
	if first["filter"] != 64 {
		t.Errorf("filter cc = %d, want 64", first["filter"])
	}
	if first["volume"] != 127 {
		t.Errorf("volume cc = %d, want 127", first["volume"])
	}
	if v, ok := first["play"]; !ok || v != 0 {
		t.Errorf("play = %d (present %v), want 0", v, ok)
	}

	// unchanged state stays quiet
	s.push()
	if got := len(bus.all()); got != 2 {
		t.Errorf("sends after idle push = %d, want still 2", got)
	}
}

func TestFrameMovesKnobThroughSmoothing(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	s.push() // seed smoothing at defaults
	s.applyFrame(angleFrame("hand_0", mixer.GestureFilter, 0))
	s.applyFrame(angleFrame("hand_0", mixer.GestureFilter, 75))

	if got := s.Mixer.Value(0, mixer.KnobFilter); got != 1.0 {
		t.Fatalf("filter value = %v, want 1.0", got)
	}

	s.push()
	sends := bus.all()
	last := sends[len(sends)-1]
	if last.deck != 1 {
		t.Fatalf("last send deck = %d, want 1", last.deck)
	}
	// smoothing pulls 0.5 toward 1.0 by one step: 0.8*0.5 + 0.2*1.0
	if got := last.controls["filter"]; got != 76 {
		t.Errorf("filter cc = %d, want 76", got)
	}
}

func TestHandednessRoutesDecks(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	angle0, angle1 := 0.0, 30.0
	frame := &backend.FrameResult{
		Gestures: backend.GestureData{
			HandsDetected: 1,
			Gestures: map[string]backend.HandGesture{
				"hand_0": {FingersUp: 2, Gesture: mixer.GestureLowEQ, Handedness: "Right", PointerAngle: &angle0},
			},
		},
	}
	s.applyFrame(frame)
	frame.Gestures.Gestures["hand_0"] = backend.HandGesture{
		FingersUp: 2, Gesture: mixer.GestureLowEQ, Handedness: "Right", PointerAngle: &angle1,
	}
	s.applyFrame(frame)

	if got := s.Mixer.Value(0, mixer.KnobLow); got != 1.0 {
		t.Errorf("deck 0 low = %v, want untouched 1.0", got)
	}
	if got := s.Mixer.Value(1, mixer.KnobLow); got <= 1.0 {
		t.Errorf("deck 1 low = %v, want raised", got)
	}
}

func TestMissingHandReleasesDeck(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	// engage deck 1 knob
	s.applyFrame(angleFrame("hand_1", mixer.GestureLowEQ, 0))
	s.applyFrame(angleFrame("hand_1", mixer.GestureLowEQ, 30))
	raised := s.Mixer.Value(1, mixer.KnobLow)
	if raised <= 1.0 {
		t.Fatalf("setup: low = %v, want raised", raised)
	}

	// hand disappears, then returns at a far angle
	s.applyFrame(&backend.FrameResult{Gestures: backend.GestureData{}})
	s.applyFrame(angleFrame("hand_1", mixer.GestureLowEQ, 120))

	if got := s.Mixer.Value(1, mixer.KnobLow); got != raised {
		t.Errorf("regrab jumped: %v, want %v", got, raised)
	}
}

func TestFeedbackFoldsIntoMixer(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	// Mixxx turned deck 1 low EQ all the way up (channel 0, cc 2)
	s.applyFeedback(backend.CCFeedback{Channel: 0, CC: 2, Value: 127})
	if got := s.Mixer.Value(0, mixer.KnobLow); got != 4.0 {
		t.Fatalf("low after feedback = %v, want 4.0", got)
	}

	// the absorbed value is not echoed back
	s.push()
	for _, send := range bus.all() {
		if send.deck != 1 {
			continue
		}
		if _, ok := send.controls["low"]; ok {
			t.Error("low echoed back to Mixxx after feedback")
		}
	}
}

func TestFeedbackFallbackChannel(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)
	s.Mapping.DeckChannels = []int{0, 5}
	s.Mapping.FeedbackChannel = 1

	s.applyFeedback(backend.CCFeedback{Channel: 1, CC: 1, Value: 127})
	if got := s.Mixer.Value(0, mixer.KnobFilter); got != 1.0 {
		t.Errorf("filter = %v, want feedback applied to deck 0", got)
	}

	// frames on channels mapped to nothing are dropped
	s.applyFeedback(backend.CCFeedback{Channel: 9, CC: 1, Value: 0})
	if got := s.Mixer.Value(0, mixer.KnobFilter); got != 1.0 {
		t.Errorf("filter = %v, unknown channel should be ignored", got)
	}
}

func TestToggleSentOnEdge(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	s.push()
	s.applyFrame(&backend.FrameResult{
		Gestures: backend.GestureData{
			HandsDetected: 1,
			Gestures: map[string]backend.HandGesture{
				"hand_0": {FingersUp: 1, Gesture: mixer.GestureThumbs},
			},
		},
	})
	if !s.Mixer.Snapshot().Decks[0].Playing {
		t.Fatal("setup: deck 0 should be playing")
	}

	s.push()
	sends := bus.all()
	last := sends[len(sends)-1]
	if last.deck != 1 || last.controls["play"] != 127 {
		t.Errorf("last send = %+v, want play 127 on deck 1", last)
	}
}

func TestRunPumpsUpdates(t *testing.T) {
	bus := newFakeBus()
	s := newControlService(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	bus.ch <- backend.Update{Frame: angleFrame("hand_0", mixer.GestureFilter, 0)}
	bus.ch <- backend.Update{Frame: angleFrame("hand_0", mixer.GestureFilter, 75)}

	deadline := time.After(2 * time.Second)
	for {
		sends := bus.all()
		if len(sends) > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("no control pushes within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
