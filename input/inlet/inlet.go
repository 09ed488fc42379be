package inlet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/component"
	"github.com/tne-lab/LSL-inlet/config"
	"github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/mapping"
	"github.com/tne-lab/LSL-inlet/metric"
	"github.com/tne-lab/LSL-inlet/natsclient"
	"github.com/tne-lab/LSL-inlet/output/natspub"
	"github.com/tne-lab/LSL-inlet/output/ring"
	"github.com/tne-lab/LSL-inlet/pkg/retry"
)

// unhealthyAfter is the number of consecutive failed cycles after which the
// inlet reports itself unhealthy
const unhealthyAfter = 10

// SourceFactory builds the chunk source, and optionally the marker source,
// for a selected stream
type SourceFactory func(info acquisition.StreamInfo) (acquisition.ChunkSource, acquisition.MarkerSource, error)

// Deps holds runtime dependencies for an inlet
type Deps struct {
	Name            string
	Config          config.InletConfig
	Output          config.OutputConfig
	NATSClient      *natsclient.Client      // required for NATS sources and the NATS sink
	MetricsRegistry *metric.MetricsRegistry // optional
	Logger          *slog.Logger
	Sources         SourceFactory       // optional, defaults to the configured source kind
	Retry           *errors.RetryConfig // optional, defaults to errors.DefaultRetryConfig
}

// Inlet is the acquisition lifecycle component
type Inlet struct {
	name        string
	cfg         config.InletConfig
	out         config.OutputConfig
	client      *natsclient.Client
	registry    *metric.MetricsRegistry
	logger      *slog.Logger
	sources     SourceFactory
	retryPolicy errors.RetryConfig

	bufs      *acquisition.Buffers
	metrics   *acquisition.Metrics
	ring      *ring.Sink
	publisher *natspub.Sink
	mapping   *acquisition.MappingTable

	// lifecycle, guarded by mu
	mu      sync.Mutex
	info    *acquisition.StreamInfo
	chunks  acquisition.ChunkSource
	markers acquisition.MarkerSource
	taps    []acquisition.OutputSink
	sink    acquisition.OutputSink
	engine  *acquisition.Engine
	cancel  context.CancelFunc
	done    chan struct{}

	state       atomic.Int32
	startNano   atomic.Int64
	errorCount  atomic.Int64
	consecutive atomic.Int64
}

var _ component.LifecycleComponent = (*Inlet)(nil)

// NewInlet creates an unconfigured inlet. Collectors are registered once
// here, so one registry can hold only one inlet per name.
func NewInlet(deps Deps) (*Inlet, error) {
	name := deps.Name
	if name == "" {
		name = "lsl-inlet"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", name)
	}

	if err := deps.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Inlet", "NewInlet", "inlet config")
	}
	if err := deps.Output.Validate(); err != nil {
		return nil, errors.Wrap(err, "Inlet", "NewInlet", "output config")
	}

	in := &Inlet{
		name:        name,
		cfg:         deps.Config,
		out:         deps.Output,
		client:      deps.NATSClient,
		registry:    deps.MetricsRegistry,
		logger:      logger,
		sources:     deps.Sources,
		retryPolicy: errors.DefaultRetryConfig(),
		mapping:     acquisition.NewMappingTable(nil),
	}
	if deps.Retry != nil {
		in.retryPolicy = *deps.Retry
	}
	if in.sources == nil {
		if in.cfg.Source == config.SourceNATS && in.client == nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: NATS client for source %q", errors.ErrMissingConfig, in.cfg.Source),
				"Inlet", "NewInlet", "dependency check")
		}
		in.sources = in.buildSources
	}

	in.bufs = acquisition.NewBuffers(in.cfg.MaxChannels, acquisition.DefaultMaxFramesPerPull)

	metrics, err := acquisition.NewMetrics(in.registry, name)
	if err != nil {
		return nil, errors.Wrap(err, "Inlet", "NewInlet", "metrics registration")
	}
	in.metrics = metrics

	var ringOpts []ring.Option
	if in.registry != nil {
		ringOpts = append(ringOpts, ring.WithMetrics(in.registry, name+"-ring"))
	}
	in.ring, err = ring.New(in.out.Ring.Capacity, ringOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Inlet", "NewInlet", "ring creation")
	}

	if in.out.NATS.Enabled {
		var core *metric.Metrics
		if in.registry != nil {
			core = in.registry.CoreMetrics()
		}
		in.publisher, err = natspub.New(
			natspub.Config{Subject: in.out.NATS.Subject, Stream: in.cfg.Stream.Name},
			natspub.Deps{Client: in.client, Metrics: core, Logger: logger.With("sink", "nats")},
		)
		if err != nil {
			return nil, errors.Wrap(err, "Inlet", "NewInlet", "publisher creation")
		}
	}

	in.setState(StateUnconfigured)
	return in, nil
}

func (in *Inlet) setState(s State) {
	in.state.Store(int32(s))
	if in.registry != nil {
		in.registry.CoreMetrics().RecordComponentStatus(in.name, int(s))
	}
}

// State returns the current lifecycle state
func (in *Inlet) State() State {
	return State(in.state.Load())
}

func (in *Inlet) recordError(err error) {
	in.errorCount.Add(1)
	if in.registry != nil {
		in.registry.CoreMetrics().RecordError(in.name, errors.Classify(err).String())
	}
}

// Meta returns the component metadata
func (in *Inlet) Meta() component.Metadata {
	return component.Metadata{
		Name:        in.name,
		Type:        "input",
		Description: fmt.Sprintf("Stream inlet (%s source) aligning markers to frames", in.cfg.Source),
		Version:     "1.0.0",
	}
}

// InputPorts returns the selected data stream and, when enabled, the
// marker stream
func (in *Inlet) InputPorts() []component.Port {
	in.mu.Lock()
	info := in.streamInfoLocked()
	in.mu.Unlock()

	ports := []component.Port{{
		Name:        "data",
		Direction:   component.DirectionInput,
		Required:    true,
		Description: "Multichannel sample stream",
		Config:      component.StreamPort{Name: info.Name, Kind: info.Type, SourceID: info.SourceID},
	}}
	if in.cfg.Markers.Enabled {
		ports = append(ports, component.Port{
			Name:        "markers",
			Direction:   component.DirectionInput,
			Description: "Single-channel marker stream",
			Config:      component.StreamPort{Name: in.cfg.Markers.Name, Kind: in.cfg.Markers.Type},
		})
	}
	return ports
}

// OutputPorts returns the ring and, when enabled, the NATS subject
func (in *Inlet) OutputPorts() []component.Port {
	ports := []component.Port{{
		Name:        "ring",
		Direction:   component.DirectionOutput,
		Required:    true,
		Description: "Emitted chunks for the host",
		Config:      component.MemoryPort{Name: in.name + "-ring", Capacity: in.ring.Capacity()},
	}}
	if in.publisher != nil {
		ports = append(ports, component.Port{
			Name:        "published",
			Direction:   component.DirectionOutput,
			Description: "Emitted chunks republished as msgpack",
			Config:      component.NATSPort{Subject: in.out.NATS.Subject},
		})
	}
	return ports
}

// Health is healthy while acquiring without a run of failed cycles
func (in *Inlet) Health() component.HealthStatus {
	snap := in.Snapshot()
	state := in.State()
	healthy := state == StateAcquiring && in.consecutive.Load() < unhealthyAfter

	var uptime time.Duration
	if state == StateAcquiring {
		uptime = time.Since(time.Unix(0, in.startNano.Load()))
	}
	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(in.errorCount.Load()),
		LastError:  snap.LastError,
		Uptime:     uptime,
	}
}

// DataFlow returns rates averaged over the current session
func (in *Inlet) DataFlow() component.FlowMetrics {
	snap := in.Snapshot()
	flow := component.FlowMetrics{LastActivity: snap.LastActivity}

	if in.State() == StateAcquiring {
		if up := time.Since(time.Unix(0, in.startNano.Load())).Seconds(); up > 0 {
			flow.FramesPerSecond = float64(snap.TotalFrames) / up
			flow.ChunksPerSecond = float64(snap.Chunks) / up
		}
	}
	if cycles := snap.Chunks + snap.TransportFaults; cycles > 0 {
		flow.ErrorRate = float64(snap.TransportFaults) / float64(cycles)
	}
	return flow
}

// Initialize loads the marker mapping and selects the configured stream
// unless a source was already selected
func (in *Inlet) Initialize() error {
	if in.cfg.MappingFile != "" {
		table, err := mapping.LoadFile(in.cfg.MappingFile)
		if err != nil {
			return errors.Wrap(err, "Inlet", "Initialize", "mapping load")
		}
		in.mu.Lock()
		in.mapping = table
		in.mu.Unlock()
		in.logger.Info("Loaded marker mapping", "file", in.cfg.MappingFile, "labels", table.Len())
	}

	if in.State() != StateUnconfigured {
		return nil
	}
	return in.SelectSource(acquisition.StreamInfo{
		Name:         in.cfg.Stream.Name,
		Type:         in.cfg.Stream.Type,
		SourceID:     in.cfg.Stream.SourceID,
		ChannelCount: in.cfg.Stream.ChannelCount,
		NominalRate:  in.cfg.Stream.NominalRate,
	})
}

// SelectSource binds the inlet to a stream and sizes the buffers for the
// geometry the built source advertises. It is rejected while acquiring. On
// failure the inlet is left unconfigured.
func (in *Inlet) SelectSource(info acquisition.StreamInfo) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.State() == StateAcquiring {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Inlet", "SelectSource", "state check")
	}

	chunks, markers, err := in.sources(info)
	if err != nil {
		in.clearSelectionLocked()
		in.recordError(err)
		return errors.Wrap(err, "Inlet", "SelectSource", "source creation")
	}
	advertised := chunks.Info()
	in.info = &advertised
	in.chunks = chunks
	in.markers = markers
	return in.configureLocked()
}

// Resize re-runs buffer configuration for the selected stream
func (in *Inlet) Resize() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.State() == StateAcquiring {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Inlet", "Resize", "state check")
	}
	if in.info == nil {
		return errors.WrapFatal(errors.ErrNotConfigured, "Inlet", "Resize", "selection check")
	}
	return in.configureLocked()
}

func (in *Inlet) configureLocked() error {
	if err := in.bufs.Configure(in.info.ChannelCount, in.cfg.FramesPerPull); err != nil {
		in.logger.Error("Buffer configuration failed",
			"channels", in.info.ChannelCount, "frames_per_pull", in.cfg.FramesPerPull, "error", err)
		in.clearSelectionLocked()
		in.recordError(err)
		return err
	}
	in.logger.Info("Stream selected",
		"stream", in.info.Name, "type", in.info.Type,
		"channels", in.info.ChannelCount, "rate", in.info.NominalRate,
		"frames_per_pull", in.cfg.FramesPerPull)
	in.setState(StateConfigured)
	return nil
}

func (in *Inlet) clearSelectionLocked() {
	in.info = nil
	in.chunks = nil
	in.markers = nil
	in.setState(StateUnconfigured)
}

func (in *Inlet) streamInfoLocked() acquisition.StreamInfo {
	if in.info != nil {
		return *in.info
	}
	return acquisition.StreamInfo{Name: in.cfg.Stream.Name, Type: in.cfg.Stream.Type, SourceID: in.cfg.Stream.SourceID}
}

// AttachSink adds a tap that receives every emitted chunk after the ring.
// Taps can only be attached while not acquiring.
func (in *Inlet) AttachSink(sink acquisition.OutputSink) error {
	if sink == nil {
		return errors.WrapInvalid(fmt.Errorf("%w: sink", errors.ErrMissingConfig), "Inlet", "AttachSink", "nil check")
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.State() == StateAcquiring {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Inlet", "AttachSink", "state check")
	}
	in.taps = append(in.taps, sink)
	return nil
}

// Start opens the sources and launches the acquisition worker. A new
// session begins: indices restart at zero and the clock reference is
// taken from the first frame pulled.
func (in *Inlet) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	state := in.State()
	if state == StateAcquiring {
		return nil
	}
	if !state.canStart() {
		return errors.WrapFatal(errors.ErrNotConfigured, "Inlet", "Start", "state check")
	}
	if err := in.awaitPreviousWorkerLocked(); err != nil {
		return err
	}
	if in.markers != nil && in.cfg.Markers.ChannelCount != 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: marker stream has %d channels, want 1", errors.ErrInvalidConfig, in.cfg.Markers.ChannelCount),
			"Inlet", "Start", "marker stream check")
	}

	taps := make([]acquisition.OutputSink, 0, len(in.taps)+1)
	if in.publisher != nil {
		taps = append(taps, in.publisher)
	}
	taps = append(taps, in.taps...)
	in.sink = acquisition.NewTee(in.ring, taps...)

	engine, err := acquisition.NewEngine(acquisition.EngineDeps{
		Buffers:     in.bufs,
		Source:      in.chunks,
		Markers:     in.markers,
		Sink:        in.sink,
		Mapping:     in.mapping,
		Gain:        in.cfg.Gain,
		PullTimeout: in.cfg.PullTimeout.Std(),
		Logger:      in.logger,
		Metrics:     in.metrics,
	})
	if err != nil {
		in.recordError(err)
		return errors.Wrap(err, "Inlet", "Start", "engine creation")
	}

	if err := in.openSourcesLocked(ctx); err != nil {
		in.recordError(err)
		return err
	}

	sessionID := uuid.New().String()
	engine.Reset(sessionID)
	in.engine = engine
	in.errorCount.Store(0)
	in.consecutive.Store(0)
	in.startNano.Store(time.Now().UnixNano())

	workerCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.done = make(chan struct{})
	go in.run(workerCtx, engine, in.done)

	in.setState(StateAcquiring)
	in.logger.Info("Acquisition started", "session", sessionID, "source", in.cfg.Source,
		"markers", in.markers != nil, "mapped_labels", in.mapping.Len())
	return nil
}

// openSourcesLocked opens the chunk source and then the marker source,
// retrying transient failures. A failed marker open closes the chunk
// source again.
func (in *Inlet) openSourcesLocked(ctx context.Context) error {
	open := func(src interface{ Open(context.Context) error }) error {
		attempt := 0
		return retry.Do(ctx, in.retryPolicy.ToRetryConfig(), func() error {
			err := src.Open(ctx)
			if err != nil && !in.retryPolicy.ShouldRetry(err, attempt) {
				return retry.Permanent(err)
			}
			attempt++
			return err
		})
	}

	if err := open(in.chunks); err != nil {
		return errors.Wrap(err, "Inlet", "Start", "chunk source open")
	}
	if in.markers != nil {
		if err := open(in.markers); err != nil {
			_ = in.chunks.Close()
			return errors.Wrap(err, "Inlet", "Start", "marker source open")
		}
	}
	return nil
}

// awaitPreviousWorkerLocked waits for a worker that outlived its Stop
func (in *Inlet) awaitPreviousWorkerLocked() error {
	if in.done == nil {
		return nil
	}
	select {
	case <-in.done:
		in.done = nil
		return nil
	case <-time.After(in.cfg.StopWait.Std()):
		return errors.WrapTransient(errors.ErrAlreadyStarted, "Inlet", "Start", "previous worker still running")
	}
}

// run is the acquisition worker. It is the only goroutine touching the
// buffers, the clock and the event codes while acquiring.
func (in *Inlet) run(ctx context.Context, engine *acquisition.Engine, done chan struct{}) {
	defer close(done)

	backoff := in.cfg.PullTimeout.Std()
	for ctx.Err() == nil {
		_, err := engine.Cycle(ctx)
		if err == nil {
			in.consecutive.Store(0)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		in.recordError(err)
		in.consecutive.Add(1)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// Stop signals the worker, waits at most the configured stop wait (or
// timeout, if shorter), closes both sources, flushes the NATS publisher
// and clears the sinks. The sources are closed even when the worker has
// not exited yet.
func (in *Inlet) Stop(timeout time.Duration) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.State() != StateAcquiring {
		return nil
	}

	wait := in.cfg.StopWait.Std()
	if timeout > 0 && timeout < wait {
		wait = timeout
	}

	in.cancel()
	var stopErr error
	select {
	case <-in.done:
		in.done = nil
	case <-time.After(wait):
		stopErr = errors.WrapTransient(fmt.Errorf("worker still running after %v", wait),
			"Inlet", "Stop", "worker shutdown")
		in.logger.Warn("Acquisition worker did not exit in time", "wait", wait)
	}

	if err := in.chunks.Close(); err != nil {
		in.logger.Warn("Chunk source close failed", "error", err)
	}
	if in.markers != nil {
		if err := in.markers.Close(); err != nil {
			in.logger.Warn("Marker source close failed", "error", err)
		}
	}
	if in.publisher != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), wait)
		if err := in.publisher.Flush(flushCtx); err != nil {
			in.logger.Warn("Published chunks not confirmed", "error", err)
		}
		cancel()
	}
	in.sink.Clear()

	snap := in.engine.Snapshot()
	in.setState(StateStopped)
	in.logger.Info("Acquisition stopped", "session", snap.SessionID,
		"frames", snap.TotalFrames, "chunks", snap.Chunks,
		"markers_assigned", snap.MarkersAssigned, "markers_dropped", snap.MarkersDropped,
		"transport_faults", snap.TransportFaults)
	return stopErr
}

// Snapshot returns the telemetry of the current or last session
func (in *Inlet) Snapshot() acquisition.Snapshot {
	in.mu.Lock()
	engine := in.engine
	in.mu.Unlock()
	if engine == nil {
		return acquisition.Snapshot{}
	}
	return engine.Snapshot()
}

// Ring returns the sink the host reads emitted chunks from
func (in *Inlet) Ring() *ring.Sink {
	return in.ring
}

// NumChannels is the channel count of the selected stream, 0 when none is
// selected
func (in *Inlet) NumChannels() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.info == nil {
		return 0
	}
	return in.info.ChannelCount
}

// SampleRate is the nominal rate of the selected stream
func (in *Inlet) SampleRate() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.info == nil {
		return config.DefaultSampleRate
	}
	return in.info.NominalRate
}

// BitVolts is the scale factor reported to the host for every channel
func (in *Inlet) BitVolts() float64 {
	return in.cfg.Gain
}

// TTLOutputs is the number of event lines advertised to the host
func (in *Inlet) TTLOutputs() int {
	return in.cfg.TTLOutputs
}
