// Package websocket provides a display sink: a WebSocket server that
// broadcasts inference records to connected viewers, annotated with
// stable per-label overlay colors. A viewer can send "quit" to request a
// graceful pipeline stop.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/sink"
	"github.com/c360/sensorweave/timeline"
)

// Config holds display sink configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8081".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// Path is the WebSocket endpoint path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8081"
	}
	if c.Path == "" {
		c.Path = "/ws"
	}
}

// Color is an RGB overlay color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// colorFor derives a stable overlay color from a label, so the same
// label keeps its color across frames and runs.
func colorFor(label string) Color {
	h := fnv.New32a()
	h.Write([]byte(label))
	v := h.Sum32()
	// Keep channels out of the very dark range for visibility.
	return Color{
		R: uint8(64 + (v>>16)&0xBF),
		G: uint8(64 + (v>>8)&0xBF),
		B: uint8(64 + v&0xBF),
	}
}

// framePayload is the display metadata of the frame a record refers to.
type framePayload struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pixels   []byte `json:"pixels,omitempty"`
}

// displayPayload is what viewers receive, one message per record.
type displayPayload struct {
	sink.Record
	Colors map[string]Color `json:"colors,omitempty"`
	Frame  *framePayload    `json:"frame,omitempty"`
}

// Sink is the WebSocket display server.
type Sink struct {
	name   string
	cfg    Config
	inputs sink.Inputs
	frame  *timeline.Port[capture.Frame]
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	clients   map[*websocket.Conn]chan []byte
	state     component.State
	startTime time.Time
	wg        sync.WaitGroup
}

// Interface checks
var _ component.Reactor = (*Sink)(nil)
var _ component.Lifecycle = (*Sink)(nil)
var _ component.Wired = (*Sink)(nil)

// New creates a display sink
func New(cfg Config, deps component.Dependencies) *Sink {
	cfg.applyDefaults()

	name := deps.InstanceName("display")
	s := &Sink{
		name:   name,
		cfg:    cfg,
		inputs: sink.NewInputs(deps.Timeline),
		frame:  timeline.NewPort[capture.Frame](deps.Timeline, "image", timeline.KindFrame),
		logger: deps.GetLoggerWithComponent(name),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
		state:   component.StateUninitialized,
	}
	s.inputs.OnRecord(s.onRecord)
	return s
}

// onRecord runs on the timeline goroutine; the broadcast itself only
// moves bytes into per-client channels and never blocks a step.
func (s *Sink) onRecord(rec sink.Record) error {
	payload := displayPayload{Record: rec}

	if len(rec.Items) > 0 {
		payload.Colors = make(map[string]Color, len(rec.Items))
		for _, item := range rec.Items {
			if item.Label != "" {
				payload.Colors[item.Label] = colorFor(item.Label)
			}
		}
	}
	if f, ok := s.frame.Get(); ok {
		payload.Frame = &framePayload{
			Width:    f.Width,
			Height:   f.Height,
			Channels: f.Channels,
			Pixels:   f.Data,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapInvalid(err, s.name, "onRecord", "payload encoding")
	}
	s.broadcast(data)
	return nil
}

// broadcast fans the message out, dropping it for clients whose send
// queue is full. Slow viewers lose frames, never stall the pipeline.
func (s *Sink) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, send := range s.clients {
		select {
		case send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected viewers.
func (s *Sink) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Meta returns the component metadata
func (s *Sink) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        component.TypeSink,
		Description: "WebSocket display server broadcasting inference records",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (s *Sink) InputPorts() []component.Port {
	return append(s.inputs.Descriptors(), component.Port{
		Name:        "image",
		Direction:   component.DirectionInput,
		Kind:        timeline.KindFrame,
		Description: "Frame the findings refer to, shown under the overlay",
	})
}

// OutputPorts returns the output ports for this component
func (s *Sink) OutputPorts() []component.Port { return nil }

// Health returns the current health status of the component
func (s *Sink) Health() component.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var uptime time.Duration
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}
	return component.HealthStatus{
		Healthy:   s.state == component.StateReady,
		LastCheck: time.Now(),
		Uptime:    uptime,
	}
}

// Lookup implements component.Wired
func (s *Sink) Lookup(name string) (timeline.AnyPort, bool) {
	if name == "image" {
		return s.frame, true
	}
	return s.inputs.Lookup(name)
}

// Inputs exposes the sink ports for direct wiring in code.
func (s *Sink) Inputs() sink.Inputs { return s.inputs }

// FramePort exposes the image input for direct wiring in code.
func (s *Sink) FramePort() *timeline.Port[capture.Frame] { return s.frame }

// Initialize validates configuration without binding the listener
func (s *Sink) Initialize() error {
	if _, _, err := net.SplitHostPort(s.cfg.Addr); err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: invalid listen address %q: %v", errors.ErrConfiguration, s.cfg.Addr, err),
			s.name, "Initialize", "config validation")
	}
	return nil
}

// Start binds the listener and serves the WebSocket endpoint
func (s *Sink) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != component.StateUninitialized {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, s.name, "Start", "state check")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
			s.name, "Start", "listener bind")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	s.listener = listener
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Display server failed", "error", err)
		}
	}()

	s.state = component.StateReady
	s.startTime = time.Now()
	s.logger.Info("Display server listening",
		"addr", listener.Addr().String(), "path", s.cfg.Path)
	return nil
}

// Addr returns the bound listen address, useful when the configured port
// was 0.
func (s *Sink) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleWS upgrades a viewer connection and pumps messages both ways.
func (s *Sink) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	send := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[conn] = send
	s.mu.Unlock()
	s.logger.Info("Viewer connected", "remote", r.RemoteAddr)

	s.wg.Add(2)
	go s.writeLoop(conn, send)
	go s.readLoop(conn)
}

func (s *Sink) writeLoop(conn *websocket.Conn, send chan []byte) {
	defer s.wg.Done()
	for data := range send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop watches for viewer commands until the connection drops. A
// "quit" message requests a graceful pipeline stop.
func (s *Sink) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	defer s.dropClient(conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "quit" {
			s.logger.Info("Viewer requested stop")
			s.inputs.RequestQuit()
		}
	}
}

func (s *Sink) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	if send, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(send)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Stop closes viewer connections and shuts the server down.
func (s *Sink) Stop(timeout time.Duration) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	for conn, send := range s.clients {
		delete(s.clients, conn)
		close(send)
		_ = conn.Close()
	}
	if s.state != component.StateFailed {
		s.state = component.StateStopped
	}
	s.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Warn("Server shutdown failed", "error", err)
		}
	}
	s.wg.Wait()
	return nil
}

// Create creates a display sink from raw configuration
func Create(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "display", "Create", "config parsing")
		}
	}
	return New(cfg, deps), nil
}

// Register adds the display sink factory to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "display",
		Factory:     Create,
		Type:        component.TypeSink,
		Medium:      "video",
		Description: "WebSocket display server broadcasting inference records",
		Version:     "1.0.0",
	})
}
