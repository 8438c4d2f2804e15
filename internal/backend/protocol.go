package backend

// Frame type discriminators on the backend socket. Every frame is a
// JSON object with a "type" field and the remaining fields flat.
const (
	typeConnectionEstablished = "connection_established"
	typeLatencyTest           = "latency_test"
	typeLatencyResponse       = "latency_response"
	typeVideoFrameProcessed   = "video_frame_processed"
	typeControlUpdate         = "control_update"
	typeMIDIFeedback          = "midi_feedback"
	typeEcho                  = "echo"
)

// welcomeMsg is the first frame the backend sends on every connection.
// Timestamps on this socket are unix milliseconds.
type welcomeMsg struct {
	Type            string  `json:"type"`
	Message         string  `json:"message"`
	MediaPipe       bool    `json:"mediapipe_available"`
	MIDI            bool    `json:"midi_available"`
	RTMIDI          bool    `json:"rtmidi_available"`
	OriginalMIDI    bool    `json:"original_midi_available"`
	ServerTimestamp float64 `json:"server_timestamp"`
}

type latencyTestMsg struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
	TestData  string  `json:"test_data"`
}

type latencyResponseMsg struct {
	Type              string  `json:"type"`
	ClientTimestamp   float64 `json:"client_timestamp"`
	ServerReceiveTime float64 `json:"server_receive_time"`
	ServerSendTime    float64 `json:"server_send_time"`
	RoundTripData     string  `json:"round_trip_data"`
}

type frameProcessedMsg struct {
	Type           string       `json:"type"`
	FrameNumber    int64        `json:"frame_number"`
	ProcessingTime float64      `json:"processing_time"`
	GestureData    GestureData  `json:"gesture_data"`
	Stats          SessionStats `json:"stats"`
}

type controlUpdateMsg struct {
	Type      string         `json:"type"`
	Deck      int            `json:"deck"`
	Controls  map[string]int `json:"controls"`
	Timestamp float64        `json:"timestamp"`
}

type midiFeedbackMsg struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	CC      int    `json:"cc"`
	Value   int    `json:"value"`
}

// CCFeedback is one control change Mixxx sent back through the
// backend's MIDI input.
type CCFeedback struct {
	Channel int `json:"channel"`
	CC      int `json:"cc"`
	Value   int `json:"value"`
}

// GestureData is the per-frame detection result. Hands are keyed
// "hand_0", "hand_1" in detection order.
type GestureData struct {
	HandsDetected int                    `json:"hands_detected"`
	Gestures      map[string]HandGesture `json:"gestures"`
}

// HandGesture is one classified hand. PointerAngle and TipYPx are only
// present while the backend tracks the relevant geometry.
type HandGesture struct {
	FingersUp    int      `json:"fingers_up"`
	Gesture      string   `json:"gesture_type"`
	Handedness   string   `json:"handedness,omitempty"`
	PointerAngle *float64 `json:"pointer_angle,omitempty"`
	TipYPx       *float64 `json:"tip_y_px,omitempty"`
}

// SessionStats are the backend's running counters.
type SessionStats struct {
	FramesProcessed  int64   `json:"frames_processed"`
	GesturesDetected int64   `json:"gestures_detected"`
	DetectionRate    float64 `json:"detection_rate"`
}

// Capabilities are the feature flags announced in the welcome frame.
type Capabilities struct {
	MediaPipe    bool `json:"mediapipe_available"`
	MIDI         bool `json:"midi_available"`
	RTMIDI       bool `json:"rtmidi_available"`
	OriginalMIDI bool `json:"original_midi_available"`
}
