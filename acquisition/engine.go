package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/tne-lab/LSL-inlet/errors"
)

// DefaultPullTimeout bounds a single PullChunk
const DefaultPullTimeout = 100 * time.Millisecond

// EngineDeps holds everything an Engine needs. Markers and Mapping are
// optional.
type EngineDeps struct {
	Buffers     *Buffers
	Source      ChunkSource
	Markers     MarkerSource
	Sink        OutputSink
	Mapping     *MappingTable
	Gain        float64
	PullTimeout time.Duration
	Logger      *slog.Logger
	Metrics     *Metrics
}

// Snapshot is a read-only view of engine telemetry, refreshed after every
// cycle
type Snapshot struct {
	SessionID        string
	TotalFrames      int64
	Chunks           uint64
	MarkersAssigned  uint64
	MarkersDropped   uint64
	TransportFaults  uint64
	FramingAnomalies uint64
	DiscardedScalars uint64
	InitialTimestamp float64
	HasInitial       bool
	LastActivity     time.Time
	LastError        string
}

// Engine runs the pull, align and emit cycle. Cycle and Reset must be
// called from one goroutine; Snapshot is safe from any goroutine.
type Engine struct {
	bufs        *Buffers
	source      ChunkSource
	markers     MarkerSource
	sink        OutputSink
	mapping     *MappingTable
	gain        float64
	pullTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
	diag        *diagnostics

	clock     Clock
	seq       uint64
	sessionID string

	// published between cycles
	pubSession   atomic.Value
	pubTotal     atomic.Int64
	pubChunks    atomic.Uint64
	pubAssigned  atomic.Uint64
	pubDropped   atomic.Uint64
	pubFaults    atomic.Uint64
	pubFraming   atomic.Uint64
	pubDiscarded atomic.Uint64
	pubInitial   atomic.Uint64
	pubHasInit   atomic.Bool
	pubActivity  atomic.Int64
	pubLastError atomic.Value
}

// NewEngine validates deps and returns an engine ready for Reset
func NewEngine(deps EngineDeps) (*Engine, error) {
	switch {
	case deps.Buffers == nil:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: buffers", errors.ErrMissingConfig), "Engine", "NewEngine", "dependency check")
	case deps.Source == nil:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: chunk source", errors.ErrMissingConfig), "Engine", "NewEngine", "dependency check")
	case deps.Sink == nil:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: output sink", errors.ErrMissingConfig), "Engine", "NewEngine", "dependency check")
	case !deps.Buffers.Configured():
		return nil, errors.WrapFatal(errors.ErrNotConfigured, "Engine", "NewEngine", "buffer check")
	case deps.Gain <= 0 || math.IsNaN(deps.Gain) || math.IsInf(deps.Gain, 0):
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: gain %v", errors.ErrInvalidConfig, deps.Gain), "Engine", "NewEngine", "gain check")
	}

	if got, want := deps.Source.Info().ChannelCount, deps.Buffers.Geometry().ChannelCount; got != want {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: source advertises %d channels, buffers configured for %d",
				errors.ErrInvalidConfig, got, want),
			"Engine", "NewEngine", "geometry check")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "acquisition")
	}
	timeout := deps.PullTimeout
	if timeout <= 0 {
		timeout = DefaultPullTimeout
	}
	mapping := deps.Mapping
	if mapping == nil {
		mapping = NewMappingTable(nil)
	}

	e := &Engine{
		bufs:        deps.Buffers,
		source:      deps.Source,
		markers:     deps.Markers,
		sink:        deps.Sink,
		mapping:     mapping,
		gain:        deps.Gain,
		pullTimeout: timeout,
		logger:      logger,
		metrics:     deps.Metrics,
		diag:        newDiagnostics(logger, time.Second, 5),
	}
	e.Reset("")
	return e, nil
}

// Reset starts a new session: the clock reference is forgotten, indices
// restart at zero and all event slots are cleared.
func (e *Engine) Reset(sessionID string) {
	e.clock.Reset()
	e.seq = 0
	e.sessionID = sessionID
	e.bufs.ClearEvents()
	e.metrics.resetSession()

	e.pubSession.Store(sessionID)
	e.pubTotal.Store(0)
	e.pubChunks.Store(0)
	e.pubAssigned.Store(0)
	e.pubDropped.Store(0)
	e.pubFaults.Store(0)
	e.pubFraming.Store(0)
	e.pubDiscarded.Store(0)
	e.pubInitial.Store(0)
	e.pubHasInit.Store(false)
	e.pubActivity.Store(0)
	e.pubLastError.Store("")
}

// Cycle pulls one chunk and emits it. A failed pull returns a transient
// ErrTransportFault and emits nothing; a pull that yields no complete frame
// returns a zero result without touching markers.
func (e *Engine) Cycle(ctx context.Context) (CycleResult, error) {
	res := CycleResult{FirstIndex: -1}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !e.bufs.Configured() {
		return res, errors.WrapFatal(errors.ErrNotConfigured, "Engine", "Cycle", "buffer check")
	}

	started := time.Now()
	geom := e.bufs.Geometry()
	samples := e.bufs.Samples()
	timestamps := e.bufs.Timestamps()

	pullCtx, cancel := context.WithTimeout(ctx, e.pullTimeout)
	n, err := e.source.PullChunk(pullCtx, samples, timestamps)
	cancel()
	if err == nil && (n < 0 || n > len(samples)) {
		err = fmt.Errorf("%w: source reported %d scalars for a %d scalar buffer",
			errors.ErrInvalidData, n, len(samples))
	}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		e.pubFaults.Add(1)
		e.pubLastError.Store(err.Error())
		e.metrics.recordTransportFault()
		e.diag.warn(diagTransport, "Chunk pull failed", "error", err)
		return res, errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrTransportFault, err),
			"Engine", "Cycle", "chunk pull")
	}

	frames := n / geom.ChannelCount
	if rem := n % geom.ChannelCount; rem != 0 {
		res.DiscardedScalars = rem
		e.pubFraming.Add(1)
		e.pubDiscarded.Add(uint64(rem))
		e.metrics.recordFraming(rem)
		e.diag.warn(diagFraming, "Pulled scalar count is not a multiple of channel count",
			"scalars", n, "channels", geom.ChannelCount, "discarded", rem)
	}
	if frames == 0 {
		return res, nil
	}

	ts := timestamps[:frames]
	events := e.bufs.Events()[:frames]
	indices := e.bufs.Indices()[:frames]
	data := samples[:frames*geom.ChannelCount]

	res.MarkersAssigned, res.MarkersDropped = e.associate(ctx, ts, events)

	e.clock.Normalize(ts)
	e.clock.Assign(indices)

	for i, x := range data {
		data[i] = float32(e.gain * float64(x))
	}

	chunk := Chunk{
		SessionID:  e.sessionID,
		Seq:        e.seq,
		Channels:   geom.ChannelCount,
		Frames:     frames,
		Samples:    data,
		Timestamps: ts,
		Indices:    indices,
		EventCodes: events,
	}
	written := e.sink.Append(chunk)
	if written < frames {
		e.metrics.recordShortWrite()
		e.diag.warn(diagSink, "Output sink accepted fewer frames than emitted",
			"frames", frames, "written", written)
	}

	res.Frames = frames
	res.FramesWritten = written
	res.FirstIndex = indices[0]

	e.bufs.ResetEvents(frames)
	e.clock.Advance(frames)
	e.seq++

	e.metrics.recordEmit(frames, e.clock.Total(), time.Since(started))
	e.publish(res)
	return res, nil
}

// associate attaches pending markers to frames in arrival order. The cursor
// only moves forward, so a frame receives at most one marker and markers
// older than the cursor land on the cursor frame. A marker newer than the
// last frame is dropped and ends marker pulling for this cycle.
func (e *Engine) associate(ctx context.Context, ts []float64, events []uint64) (assigned, dropped int) {
	if e.markers == nil {
		return 0, 0
	}

	frames := len(ts)
	cursor := 0
	for cursor < frames {
		m, ok, err := e.markers.PullMarker(ctx)
		if err != nil {
			e.pubFaults.Add(1)
			e.metrics.recordTransportFault()
			e.diag.warn(diagTransport, "Marker pull failed", "error", err)
			return assigned, dropped
		}
		if !ok {
			return assigned, dropped
		}

		code, reason := e.mapping.resolve(m.Label)
		if reason != "" {
			dropped++
			e.metrics.recordDropped(reason)
			// the numeric fallback drops quietly
			if reason == DropUnmapped {
				e.diag.warn(diagMarker, "Marker label not in mapping table",
					"label", m.Label, "timestamp", m.Timestamp)
			}
			continue
		}

		j := cursor
		for j < frames && ts[j] < m.Timestamp {
			j++
		}
		if j == frames {
			dropped++
			e.metrics.recordDropped(DropFuture)
			e.diag.warn(diagMarker, "Marker timestamp is after the last frame of the chunk",
				"label", m.Label, "timestamp", m.Timestamp, "last_frame", ts[frames-1])
			return assigned, dropped
		}

		events[j] = code
		assigned++
		e.metrics.recordAssigned()
		e.logger.Debug("Marker assigned",
			"label", m.Label, "code", code, "timestamp", m.Timestamp,
			"frame", j, "index", e.clock.Total()+int64(j), "session", e.sessionID)
		cursor = j + 1
	}
	return assigned, dropped
}

func (e *Engine) publish(res CycleResult) {
	e.pubTotal.Store(e.clock.Total())
	e.pubChunks.Add(1)
	e.pubAssigned.Add(uint64(res.MarkersAssigned))
	e.pubDropped.Add(uint64(res.MarkersDropped))
	if initial, ok := e.clock.Initial(); ok {
		e.pubInitial.Store(math.Float64bits(initial))
		e.pubHasInit.Store(true)
	}
	e.pubActivity.Store(time.Now().UnixNano())
}

// Snapshot returns telemetry as of the last completed cycle
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		TotalFrames:      e.pubTotal.Load(),
		Chunks:           e.pubChunks.Load(),
		MarkersAssigned:  e.pubAssigned.Load(),
		MarkersDropped:   e.pubDropped.Load(),
		TransportFaults:  e.pubFaults.Load(),
		FramingAnomalies: e.pubFraming.Load(),
		DiscardedScalars: e.pubDiscarded.Load(),
		InitialTimestamp: math.Float64frombits(e.pubInitial.Load()),
		HasInitial:       e.pubHasInit.Load(),
	}
	if id, ok := e.pubSession.Load().(string); ok {
		s.SessionID = id
	}
	if msg, ok := e.pubLastError.Load().(string); ok {
		s.LastError = msg
	}
	if ns := e.pubActivity.Load(); ns != 0 {
		s.LastActivity = time.Unix(0, ns)
	}
	return s
}

// Geometry returns the shape the engine pulls with
func (e *Engine) Geometry() Geometry { return e.bufs.Geometry() }

// Gain returns the linear gain applied to every sample
func (e *Engine) Gain() float64 { return e.gain }
