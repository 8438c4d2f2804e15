package backend

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/gestdj/gestdj/internal/config"
)

// stubBackend speaks the backend's side of the protocol: welcome
// first, then any canned frames, then it answers latency tests.
func stubBackend(frames ...any) websocket.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		welcome := map[string]any{
			"type":                    "connection_established",
			"message":                 "Connected to GesteDJ Backend",
			"mediapipe_available":     true,
			"midi_available":          true,
			"rtmidi_available":        false,
			"original_midi_available": false,
			"server_timestamp":        float64(time.Now().UnixMilli()),
		}
		if err := websocket.JSON.Send(ws, welcome); err != nil {
			return
		}
		for _, f := range frames {
			if err := websocket.JSON.Send(ws, f); err != nil {
				return
			}
		}
		for {
			var in map[string]any
			if err := websocket.JSON.Receive(ws, &in); err != nil {
				return
			}
			if in["type"] == "latency_test" {
				resp := map[string]any{
					"type":                "latency_response",
					"client_timestamp":    in["timestamp"],
					"server_receive_time": float64(time.Now().UnixMilli()),
					"server_send_time":    float64(time.Now().UnixMilli()),
					"round_trip_data":     in["test_data"],
				}
				if err := websocket.JSON.Send(ws, resp); err != nil {
					return
				}
			}
		}
	})
}

func newTestBridge(t *testing.T, handler websocket.Handler) (*Bridge, <-chan Update) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	b := NewBridge(config.BackendConfig{
		Host:             u.Hostname(),
		Port:             port,
		ReconnectSeconds: 1,
	}, zap.NewNop())
	updates := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)
	return b, updates
}

func waitFor(t *testing.T, ch <-chan Update, pred func(Update) bool) Update {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-ch:
			if pred(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for bridge update")
		}
	}
}

func TestBridgeConnectPublishesStatus(t *testing.T) {
	b, updates := newTestBridge(t, stubBackend())

	u := waitFor(t, updates, func(u Update) bool {
		return u.Status.State == StateConnected
	})
	require.True(t, u.Status.Capabilities.MediaPipe)
	require.True(t, u.Status.Capabilities.MIDI)
	require.False(t, u.Status.Capabilities.RTMIDI)
	require.False(t, u.Status.ConnectedAt.IsZero())

	st := b.Status()
	require.Equal(t, StateConnected, st.State)
	require.Equal(t, st.Address, u.Status.Address)
}

func TestBridgePingRoundTrip(t *testing.T) {
	b, updates := newTestBridge(t, stubBackend())
	waitFor(t, updates, func(u Update) bool {
		return u.Status.State == StateConnected
	})

	rtt, err := b.Ping(context.Background())
	require.NoError(t, err)
	require.Greater(t, rtt, time.Duration(0))
}

func TestBridgeFrameUpdates(t *testing.T) {
	frame := map[string]any{
		"type":            "video_frame_processed",
		"frame_number":    42,
		"processing_time": 8.5,
		"gesture_data": map[string]any{
			"hands_detected": 1,
			"gestures": map[string]any{
				"hand_0": map[string]any{
					"fingers_up":   2,
					"gesture_type": "low_eq",
				},
			},
		},
		"stats": map[string]any{
			"frames_processed":  42,
			"gestures_detected": 30,
			"detection_rate":    30.0 / 42.0,
		},
	}
	b, updates := newTestBridge(t, stubBackend(frame))

	u := waitFor(t, updates, func(u Update) bool {
		return u.Frame != nil
	})
	require.Equal(t, int64(42), u.Frame.FrameNumber)
	require.Equal(t, 1, u.Frame.Gestures.HandsDetected)
	require.Equal(t, "low_eq", u.Frame.Gestures.Gestures["hand_0"].Gesture)
	require.Equal(t, int64(30), u.Frame.Stats.GesturesDetected)

	require.Eventually(t, func() bool {
		return b.Status().Stats.FramesProcessed == 42
	}, time.Second, 10*time.Millisecond)
}

func TestBridgePingRequiresConnection(t *testing.T) {
	b := NewBridge(config.BackendConfig{Host: "127.0.0.1", Port: 1, ReconnectSeconds: 1}, zap.NewNop())
	_, err := b.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not connected")
}
