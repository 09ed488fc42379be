// Package wsmonitor broadcasts a compact summary of every emitted chunk to
// websocket clients, for watching an acquisition session live without
// touching the host's ring.
//
// Append never blocks the acquisition worker: summaries go into a bounded
// queue that drops the oldest entry on overflow, and a broadcaster
// goroutine writes them to clients.
package wsmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/component"
	errs "github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/metric"
	"github.com/tne-lab/LSL-inlet/pkg/buffer"
)

// Defaults for the monitor
const (
	DefaultPath       = "/ws"
	DefaultMaxClients = 16
	DefaultQueueSize  = 256
	writeTimeout      = time.Second
	pingInterval      = 30 * time.Second
	broadcastBatch    = 32
)

// Event is one frame carrying a marker code
type Event struct {
	Index int64  `json:"index"`
	Code  uint64 `json:"code"`
}

// Summary is what clients receive for each emitted chunk
type Summary struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"session_id"`
	Seq            uint64    `json:"seq"`
	FirstIndex     int64     `json:"first_index"`
	Frames         int       `json:"frames"`
	Channels       int       `json:"channels"`
	FirstTimestamp float64   `json:"first_timestamp"`
	LastTimestamp  float64   `json:"last_timestamp"`
	Peak           []float32 `json:"peak"`
	Events         []Event   `json:"events,omitempty"`
}

// Summarize reduces a chunk to per-channel peak magnitude and its events
func Summarize(c acquisition.Chunk) Summary {
	s := Summary{
		Type:       "chunk",
		SessionID:  c.SessionID,
		Seq:        c.Seq,
		FirstIndex: c.FirstIndex(),
		Frames:     c.Frames,
		Channels:   c.Channels,
		Peak:       make([]float32, c.Channels),
	}
	if c.Frames > 0 {
		s.FirstTimestamp = c.Timestamps[0]
		s.LastTimestamp = c.Timestamps[c.Frames-1]
	}
	for i := 0; i < c.Frames; i++ {
		for ch := 0; ch < c.Channels; ch++ {
			v := float32(math.Abs(float64(c.Samples[i*c.Channels+ch])))
			if v > s.Peak[ch] {
				s.Peak[ch] = v
			}
		}
		if code := c.EventCodes[i]; code != 0 {
			s.Events = append(s.Events, Event{Index: c.Indices[i], Code: code})
		}
	}
	return s
}

// Config configures the websocket server. Port 0 picks a free port.
type Config struct {
	Port       int    `json:"port"`
	Path       string `json:"path"`
	MaxClients int    `json:"max_clients"`
	QueueSize  int    `json:"queue_size,omitempty"`
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > component.MaxPort {
		return errs.WrapInvalid(fmt.Errorf("%w: port %d", errs.ErrInvalidConfig, c.Port),
			"wsmonitor", "Validate", "port check")
	}
	if c.Path != "" && c.Path[0] != '/' {
		return errs.WrapInvalid(fmt.Errorf("%w: path %q", errs.ErrInvalidConfig, c.Path),
			"wsmonitor", "Validate", "path check")
	}
	if c.MaxClients < 0 || c.QueueSize < 0 {
		return errs.WrapInvalid(fmt.Errorf("%w: negative limit", errs.ErrInvalidConfig),
			"wsmonitor", "Validate", "limit check")
	}
	return nil
}

// Deps holds runtime dependencies for the monitor
type Deps struct {
	Name            string
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

type metrics struct {
	clients  prometheus.Gauge
	sent     prometheus.Counter
	rejected prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry, name string) (*metrics, error) {
	if registry == nil {
		return nil, nil
	}
	labels := prometheus.Labels{"component": name}
	m := &metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lslinlet", Subsystem: "wsmonitor", Name: "clients",
			Help: "Connected websocket clients", ConstLabels: labels,
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lslinlet", Subsystem: "wsmonitor", Name: "messages_sent_total",
			Help: "Summaries written to clients", ConstLabels: labels,
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lslinlet", Subsystem: "wsmonitor", Name: "connections_rejected_total",
			Help: "Connections refused at the client limit", ConstLabels: labels,
		}),
	}
	if err := registry.RegisterGauge(name, "clients", m.clients); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "messages_sent", m.sent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "connections_rejected", m.rejected); err != nil {
		return nil, err
	}
	return m, nil
}

type client struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Monitor is a lifecycle component and an acquisition.OutputSink
type Monitor struct {
	name     string
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics
	upgrader websocket.Upgrader

	queue  buffer.Buffer[Summary]
	notify chan struct{}

	lifecycleMu sync.Mutex
	running     atomic.Bool
	server      *http.Server
	listener    net.Listener
	shutdown    chan struct{}
	wg          sync.WaitGroup
	startTime   time.Time

	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	sent         atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Value // time.Time
}

var (
	_ component.LifecycleComponent = (*Monitor)(nil)
	_ acquisition.OutputSink       = (*Monitor)(nil)
)

// NewMonitor creates a stopped monitor
func NewMonitor(deps Deps) (*Monitor, error) {
	cfg := deps.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	name := deps.Name
	if name == "" {
		name = "ws-monitor"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", name)
	}

	m, err := newMetrics(deps.MetricsRegistry, name)
	if err != nil {
		return nil, errs.Wrap(err, "wsmonitor", "NewMonitor", "metrics registration")
	}
	queue, err := buffer.NewCircularBuffer[Summary](cfg.QueueSize)
	if err != nil {
		return nil, errs.Wrap(err, "wsmonitor", "NewMonitor", "queue creation")
	}

	mon := &Monitor{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		queue:     queue,
		notify:    make(chan struct{}, 1),
		clients:   make(map[*client]struct{}),
		startTime: time.Now(),
	}
	mon.lastActivity.Store(time.Time{})
	return mon, nil
}

// Meta returns the component metadata
func (m *Monitor) Meta() component.Metadata {
	return component.Metadata{
		Name:        m.name,
		Type:        "output",
		Description: fmt.Sprintf("Websocket chunk monitor on :%d%s", m.cfg.Port, m.cfg.Path),
		Version:     "1.0.0",
	}
}

// InputPorts returns the emitted chunk feed
func (m *Monitor) InputPorts() []component.Port {
	return []component.Port{{
		Name:        "chunks",
		Direction:   component.DirectionInput,
		Required:    true,
		Description: "Emitted chunks appended by the acquisition engine",
		Config:      component.MemoryPort{Name: m.name + "-queue", Capacity: m.cfg.QueueSize},
	}}
}

// OutputPorts returns the websocket listener
func (m *Monitor) OutputPorts() []component.Port {
	return []component.Port{{
		Name:        "websocket",
		Direction:   component.DirectionOutput,
		Description: "Websocket endpoint serving chunk summaries",
		Config:      component.NetworkPort{Protocol: "tcp", Host: "0.0.0.0", Port: m.cfg.Port},
	}}
}

// Health reports healthy while the server is running
func (m *Monitor) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    m.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(m.errorCount.Load()),
		Uptime:     time.Since(m.startTime),
	}
}

// DataFlow reports summaries sent per second since start
func (m *Monitor) DataFlow() component.FlowMetrics {
	last, _ := m.lastActivity.Load().(time.Time)
	var rate float64
	if up := time.Since(m.startTime).Seconds(); up > 0 {
		rate = float64(m.sent.Load()) / up
	}
	return component.FlowMetrics{ChunksPerSecond: rate, LastActivity: last}
}

// Initialize checks the configuration
func (m *Monitor) Initialize() error {
	return m.cfg.Validate()
}

// Start listens and begins broadcasting
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.running.Load() {
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", m.cfg.Port))
	if err != nil {
		return errs.WrapTransient(err, "wsmonitor", "Start", "listen")
	}
	mux := http.NewServeMux()
	mux.HandleFunc(m.cfg.Path, m.handleWebSocket)

	m.listener = ln
	m.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.shutdown = make(chan struct{})
	m.startTime = time.Now()
	m.running.Store(true)

	m.wg.Add(3)
	go m.serve(ln)
	go m.broadcastLoop(ctx)
	go m.pingLoop(ctx)

	m.logger.Info("Websocket monitor listening", "addr", ln.Addr().String(), "path", m.cfg.Path)
	return nil
}

// Addr returns the bound address while running
func (m *Monitor) Addr() string {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

func (m *Monitor) serve(ln net.Listener) {
	defer m.wg.Done()
	if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.errorCount.Add(1)
		m.logger.Error("Websocket server failed", "error", err)
	}
}

// Stop closes every client and the server
func (m *Monitor) Stop(timeout time.Duration) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if !m.running.Load() {
		return nil
	}
	m.running.Store(false)
	close(m.shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := m.server.Shutdown(ctx)
	m.closeAllClients()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errs.WrapTransient(fmt.Errorf("stop timeout after %v", timeout), "wsmonitor", "Stop", "wait for goroutines")
	}

	m.server = nil
	m.listener = nil
	m.queue.Clear()
	if shutdownErr != nil {
		return errs.WrapTransient(shutdownErr, "wsmonitor", "Stop", "server shutdown")
	}
	return nil
}

// Append queues a summary of chunk for broadcast
func (m *Monitor) Append(chunk acquisition.Chunk) int {
	if !m.running.Load() || chunk.Frames == 0 {
		return 0
	}
	if err := m.queue.Write(Summarize(chunk)); err != nil {
		return 0
	}
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return chunk.Frames
}

// Clear drops queued summaries
func (m *Monitor) Clear() {
	m.queue.Clear()
}

// ClientCount is the number of connected clients
func (m *Monitor) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *Monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.ClientCount() >= m.cfg.MaxClients {
		if m.metrics != nil {
			m.metrics.rejected.Inc()
		}
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.errorCount.Add(1)
		return
	}

	c := &client{conn: conn}
	m.clientsMu.Lock()
	if !m.running.Load() {
		m.clientsMu.Unlock()
		_ = conn.Close()
		return
	}
	m.clients[c] = struct{}{}
	m.wg.Add(1)
	count := len(m.clients)
	m.clientsMu.Unlock()
	if m.metrics != nil {
		m.metrics.clients.Set(float64(count))
	}
	m.logger.Debug("Monitor client connected", "remote", r.RemoteAddr, "clients", count)

	go m.readLoop(c)
}

// readLoop discards client messages so control frames are processed and
// disconnects are noticed
func (m *Monitor) readLoop(c *client) {
	defer m.wg.Done()
	defer m.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Monitor) removeClient(c *client) {
	c.closeOnce.Do(func() {
		m.clientsMu.Lock()
		delete(m.clients, c)
		count := len(m.clients)
		m.clientsMu.Unlock()
		if m.metrics != nil {
			m.metrics.clients.Set(float64(count))
		}
		_ = c.conn.Close()
	})
}

func (m *Monitor) closeAllClients() {
	m.clientsMu.RLock()
	list := make([]*client, 0, len(m.clients))
	for c := range m.clients {
		list = append(list, c)
	}
	m.clientsMu.RUnlock()

	for _, c := range list {
		_ = c.write(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "monitor stopping"))
		m.removeClient(c)
	}
}

func (m *Monitor) snapshotClients() []*client {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	list := make([]*client, 0, len(m.clients))
	for c := range m.clients {
		list = append(list, c)
	}
	return list
}

func (m *Monitor) broadcastLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-m.notify:
		}

		for batch := m.queue.ReadBatch(broadcastBatch); len(batch) > 0; batch = m.queue.ReadBatch(broadcastBatch) {
			for _, summary := range batch {
				m.broadcast(summary)
			}
		}
	}
}

func (m *Monitor) broadcast(s Summary) {
	data, err := json.Marshal(s)
	if err != nil {
		m.errorCount.Add(1)
		return
	}
	for _, c := range m.snapshotClients() {
		if err := c.write(websocket.TextMessage, data); err != nil {
			m.removeClient(c)
			continue
		}
		m.sent.Add(1)
		if m.metrics != nil {
			m.metrics.sent.Inc()
		}
	}
	m.lastActivity.Store(time.Now())
}

func (m *Monitor) pingLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			for _, c := range m.snapshotClients() {
				if err := c.write(websocket.PingMessage, nil); err != nil {
					m.removeClient(c)
				}
			}
		}
	}
}

// CreateMonitor is the registry factory for the websocket monitor
func CreateMonitor(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := Config{Path: DefaultPath, MaxClients: DefaultMaxClients}
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errs.Wrap(err, "wsmonitor-factory", "create", "config parsing")
		}
	}
	mon, err := NewMonitor(Deps{
		Name:            "ws-monitor",
		Config:          cfg,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("ws-monitor"),
	})
	if err != nil {
		return nil, err
	}
	return mon, nil
}

// Register registers the websocket monitor with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "ws-monitor",
		Factory:     CreateMonitor,
		Type:        "output",
		Protocol:    "websocket",
		Description: "Broadcasts emitted chunk summaries to websocket clients",
		Version:     "1.0.0",
	})
}
