package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/gestdj/gestdj/internal/config"
)

const pingTimeout = 5 * time.Second

// State is the bridge connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Status is a snapshot of the bridge plus the supervised process.
type Status struct {
	State        State        `json:"state"`
	Address      string       `json:"address"`
	PID          int          `json:"pid,omitempty"`
	ConnectedAt  time.Time    `json:"connected_at,omitzero"`
	LastError    string       `json:"last_error,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
	Stats        SessionStats `json:"stats"`
}

// FrameResult is one processed camera frame as reported by the backend.
type FrameResult struct {
	FrameNumber    int64
	ProcessingTime float64
	Gestures       GestureData
	Stats          SessionStats
}

// Update is pushed to subscribers on connection changes, on every
// processed frame, and on MIDI feedback from Mixxx. Frame and Feedback
// are nil for pure status updates.
type Update struct {
	Status   Status
	Frame    *FrameResult
	Feedback *CCFeedback
}

// Bridge maintains the websocket connection to the gesture backend,
// reconnecting with a fixed backoff until its context is cancelled.
type Bridge struct {
	addr      string
	reconnect time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	status Status
	subs   []chan Update
	pings  map[string]chan latencyResponseMsg
}

func NewBridge(cfg config.BackendConfig, log *zap.Logger) *Bridge {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return &Bridge{
		addr:      addr,
		reconnect: time.Duration(cfg.ReconnectSeconds) * time.Second,
		log:       log,
		status:    Status{State: StateDisconnected, Address: addr},
		pings:     make(map[string]chan latencyResponseMsg),
	}
}

// Run connects and serves until ctx is cancelled. Lost connections are
// retried after the configured backoff.
func (b *Bridge) Run(ctx context.Context) {
	for {
		err := b.connectAndServe(ctx)
		if ctx.Err() != nil {
			b.setState(StateDisconnected, nil)
			return
		}
		if err != nil {
			b.log.Warn("backend connection lost", zap.String("addr", b.addr), zap.Error(err))
		}
		b.setState(StateDisconnected, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.reconnect):
		}
	}
}

func (b *Bridge) connectAndServe(ctx context.Context) error {
	b.setState(StateConnecting, nil)
	conn, err := websocket.Dial("ws://"+b.addr+"/", "", "http://"+b.addr+"/")
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.addr, err)
	}
	defer conn.Close()

	// The backend greets before anything else. Treat any other first
	// frame as a protocol mismatch.
	var welcome welcomeMsg
	if err := websocket.JSON.Receive(conn, &welcome); err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != typeConnectionEstablished {
		return fmt.Errorf("unexpected first frame %q", welcome.Type)
	}

	b.mu.Lock()
	b.conn = conn
	b.status.State = StateConnected
	b.status.ConnectedAt = time.Now()
	b.status.LastError = ""
	b.status.Capabilities = Capabilities{
		MediaPipe:    welcome.MediaPipe,
		MIDI:         welcome.MIDI,
		RTMIDI:       welcome.RTMIDI,
		OriginalMIDI: welcome.OriginalMIDI,
	}
	status := b.status
	b.mu.Unlock()
	b.log.Info("backend connected",
		zap.String("addr", b.addr),
		zap.Bool("mediapipe", welcome.MediaPipe),
		zap.Bool("midi", welcome.MIDI))
	b.publish(Update{Status: status})

	// Unblock the blocking Receive when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var raw json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		b.dispatch(raw)
	}
}

func (b *Bridge) dispatch(raw []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		b.log.Debug("undecodable backend frame", zap.Error(err))
		return
	}
	switch env.Type {
	case typeLatencyResponse:
		var msg latencyResponseMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.log.Debug("bad latency response", zap.Error(err))
			return
		}
		b.mu.Lock()
		ch := b.pings[msg.RoundTripData]
		delete(b.pings, msg.RoundTripData)
		b.mu.Unlock()
		if ch != nil {
			ch <- msg
		}
	case typeVideoFrameProcessed:
		var msg frameProcessedMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.log.Debug("bad frame result", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.status.Stats = msg.Stats
		status := b.status
		b.mu.Unlock()
		b.publish(Update{Status: status, Frame: &FrameResult{
			FrameNumber:    msg.FrameNumber,
			ProcessingTime: msg.ProcessingTime,
			Gestures:       msg.GestureData,
			Stats:          msg.Stats,
		}})
	case typeMIDIFeedback:
		var msg midiFeedbackMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.log.Debug("bad midi feedback", zap.Error(err))
			return
		}
		b.publish(Update{Status: b.Status(), Feedback: &CCFeedback{
			Channel: msg.Channel,
			CC:      msg.CC,
			Value:   msg.Value,
		}})
	case typeEcho:
	default:
		b.log.Debug("unhandled backend frame", zap.String("type", env.Type))
	}
}

// Ping sends a latency_test frame and waits for the matching response.
func (b *Bridge) Ping(ctx context.Context) (time.Duration, error) {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return 0, errors.New("backend not connected")
	}
	token := uuid.NewString()
	ch := make(chan latencyResponseMsg, 1)
	b.pings[token] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pings, token)
		b.mu.Unlock()
	}()

	start := time.Now()
	msg := latencyTestMsg{
		Type:      typeLatencyTest,
		Timestamp: nowMillis(),
		TestData:  token,
	}
	if err := websocket.JSON.Send(conn, msg); err != nil {
		return 0, fmt.Errorf("send latency test: %w", err)
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(pingTimeout):
		return 0, errors.New("latency test timed out")
	case <-ch:
		return time.Since(start), nil
	}
}

// SendControls pushes smoothed CC values for one deck to the backend.
// Deck is 1-based on the wire.
func (b *Bridge) SendControls(deck int, controls map[string]int) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return errors.New("backend not connected")
	}
	msg := controlUpdateMsg{
		Type:      typeControlUpdate,
		Deck:      deck,
		Controls:  controls,
		Timestamp: nowMillis(),
	}
	if err := websocket.JSON.Send(conn, msg); err != nil {
		return fmt.Errorf("send control update: %w", err)
	}
	return nil
}

// Subscribe returns a channel of bridge updates. Slow consumers miss
// updates rather than stall the read loop.
func (b *Bridge) Subscribe() <-chan Update {
	ch := make(chan Update, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *Bridge) publish(u Update) {
	b.mu.Lock()
	subs := append([]chan Update(nil), b.subs...)
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (b *Bridge) setState(s State, err error) {
	b.mu.Lock()
	changed := b.status.State != s
	b.status.State = s
	if s != StateConnected {
		b.conn = nil
		b.status.ConnectedAt = time.Time{}
	}
	if err != nil {
		b.status.LastError = err.Error()
	}
	status := b.status
	b.mu.Unlock()
	if changed {
		b.publish(Update{Status: status})
	}
}

// Status returns the current bridge status.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func nowMillis() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}
