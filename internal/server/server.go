// Package server exposes the command registry to local front-ends over
// a websocket. Frames follow the same flat JSON-with-"type" convention
// as the backend socket so a client library can speak to both ends.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gestdj/gestdj/internal/command"
	"github.com/gestdj/gestdj/internal/config"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const (
	welcomeMessage = "Connected to GesteDJ Host"

	maxArgsBytes           = 64 * 1024
	maxFramesPerSecond     = 32
	maxDecodeErrorsPerConn = 8

	invokeTimeout   = 10 * time.Second
	shutdownTimeout = 3 * time.Second
)

// Frame type discriminators on the control socket.
const (
	typeConnectionEstablished = "connection_established"
	typeInvoke                = "command.invoke"
	typeResult                = "command.result"
	typeError                 = "command.error"
	typeLatencyTest           = "latency_test"
	typeLatencyResponse       = "latency_response"
)

// Machine codes carried by command.error frames.
const (
	codeInvalidArgument   = "INVALID_ARGUMENT"
	codeUnknownCommand    = "UNKNOWN_COMMAND"
	codeUnknownType       = "UNKNOWN_TYPE"
	codeCommandFailed     = "COMMAND_FAILED"
	codeResourceExhausted = "RESOURCE_EXHAUSTED"
)

// inboundFrame is one client frame. Args stays raw until the size cap
// has been checked so oversized payloads are rejected before decoding.
type inboundFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
	Timestamp float64         `json:"timestamp"`
	TestData  string          `json:"test_data"`
}

type welcomeFrame struct {
	Type            string  `json:"type"`
	Message         string  `json:"message"`
	ServerTimestamp float64 `json:"server_timestamp"`
}

type resultFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Name      string `json:"name"`
	Result    string `json:"result"`
}

type errorFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type latencyReplyFrame struct {
	Type              string  `json:"type"`
	ClientTimestamp   float64 `json:"client_timestamp"`
	ServerReceiveTime float64 `json:"server_receive_time"`
	ServerSendTime    float64 `json:"server_send_time"`
	RoundTripData     string  `json:"round_trip_data"`
}

// peer serializes frame writes to one connection.
type peer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (p *peer) write(frame any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(frame)
}

// Server hosts the control socket. Handlers run on the connection's
// goroutine; the registry is safe for that because every command the
// host registers is.
type Server struct {
	cfg config.ServerConfig
	reg *command.Registry
	log *zap.Logger
}

func New(cfg config.ServerConfig, reg *command.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, reg: reg, log: log}
}

// Handler returns the HTTP routes: a health probe on /up and the
// websocket endpoint everywhere else.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ws := websocket.Handler(s.serveConn)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	})
	return mux
}

// Run serves the control socket until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	s.log.Info("control server listening", zap.String("addr", addr))
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown control server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve control socket: %w", err)
	}
}

func (s *Server) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	remote := ""
	if req := conn.Request(); req != nil {
		ctx = req.Context()
		remote = req.RemoteAddr
	}

	out := &peer{enc: json.NewEncoder(conn)}
	if err := out.write(welcomeFrame{
		Type:            typeConnectionEstablished,
		Message:         welcomeMessage,
		ServerTimestamp: nowMillis(),
	}); err != nil {
		return
	}
	s.log.Debug("control client connected", zap.String("remote", remote))

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame inboundFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			decodeErrors++
			if writeErr := s.writeError(out, "", codeInvalidArgument, "invalid frame payload"); writeErr != nil {
				return
			}
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			// A fresh decoder drops whatever half-parsed bytes the bad
			// frame left behind.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		if len(frame.Args) > maxArgsBytes {
			_ = s.writeError(out, frame.RequestID, codeInvalidArgument, "args too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = s.writeError(out, frame.RequestID, codeResourceExhausted, "rate limit exceeded")
			return
		}

		switch frame.Type {
		case typeInvoke:
			s.handleInvoke(ctx, out, frame)
		case typeLatencyTest:
			received := nowMillis()
			_ = out.write(latencyReplyFrame{
				Type:              typeLatencyResponse,
				ClientTimestamp:   frame.Timestamp,
				ServerReceiveTime: received,
				ServerSendTime:    nowMillis(),
				RoundTripData:     frame.TestData,
			})
		default:
			_ = s.writeError(out, frame.RequestID, codeUnknownType, fmt.Sprintf("unsupported frame type %q", frame.Type))
		}
	}
}

func (s *Server) handleInvoke(ctx context.Context, out *peer, frame inboundFrame) {
	name := strings.TrimSpace(frame.Name)
	if name == "" {
		_ = s.writeError(out, frame.RequestID, codeInvalidArgument, "name is required")
		return
	}

	args := command.Args{}
	if len(frame.Args) > 0 {
		if err := json.Unmarshal(frame.Args, &args); err != nil {
			_ = s.writeError(out, frame.RequestID, codeInvalidArgument, "args must be a JSON object")
			return
		}
	}

	invokeCtx, cancel := context.WithTimeout(ctx, invokeTimeout)
	result, err := s.reg.Invoke(invokeCtx, name, args)
	cancel()
	if err != nil {
		code := codeCommandFailed
		if errors.Is(err, command.ErrUnknown) {
			code = codeUnknownCommand
		}
		s.log.Warn("command failed", zap.String("name", name), zap.Error(err))
		_ = s.writeError(out, frame.RequestID, code, err.Error())
		return
	}

	_ = out.write(resultFrame{
		Type:      typeResult,
		RequestID: frame.RequestID,
		Name:      name,
		Result:    result,
	})
}

func (s *Server) writeError(out *peer, requestID, code, message string) error {
	return out.write(errorFrame{
		Type:      typeError,
		RequestID: requestID,
		Code:      code,
		Message:   message,
		Retryable: false,
	})
}

func nowMillis() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}
