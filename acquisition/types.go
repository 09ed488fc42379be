package acquisition

import (
	"context"
	"fmt"

	"github.com/tne-lab/LSL-inlet/errors"
)

// Limits and defaults of the engine
const (
	DefaultMaxChannels      = 64
	DefaultMaxFramesPerPull = 1 << 16
	DefaultFramesPerPull    = 256
	DefaultChannelCount     = 1
	DefaultSampleRate       = 10000.0

	// Numeric marker labels are accepted only in this range when no mapping
	// table is loaded, one per TTL line.
	MinFallbackCode = 1
	MaxFallbackCode = 8
)

// StreamInfo is what a source advertises about its stream
type StreamInfo struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	SourceID     string  `json:"source_id,omitempty"`
	ChannelCount int     `json:"channel_count"`
	NominalRate  float64 `json:"nominal_rate"`
}

// Marker is a labelled instant on the source clock
type Marker struct {
	Label     string
	Timestamp float64
}

// Geometry is the shape of one pull
type Geometry struct {
	ChannelCount  int
	FramesPerPull int
}

// Validate checks both dimensions are positive
func (g Geometry) Validate() error {
	if g.ChannelCount <= 0 || g.FramesPerPull <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: geometry %dx%d", errors.ErrInvalidConfig, g.ChannelCount, g.FramesPerPull),
			"Geometry", "Validate", "dimension check")
	}
	return nil
}

// Scalars is ChannelCount * FramesPerPull
func (g Geometry) Scalars() int {
	return g.ChannelCount * g.FramesPerPull
}

// Chunk is one emitted block of aligned frames. Its slices are views into
// engine buffers that are reused by the next cycle; sinks must copy what
// they keep.
type Chunk struct {
	SessionID  string
	Seq        uint64
	Channels   int
	Frames     int
	Samples    []float32 // Channels*Frames, frame-major
	Timestamps []float64 // seconds since the first frame of the session
	Indices    []int64
	EventCodes []uint64 // 0 = no event
}

// Clone returns a deep copy safe to retain
func (c Chunk) Clone() Chunk {
	out := c
	out.Samples = append([]float32(nil), c.Samples...)
	out.Timestamps = append([]float64(nil), c.Timestamps...)
	out.Indices = append([]int64(nil), c.Indices...)
	out.EventCodes = append([]uint64(nil), c.EventCodes...)
	return out
}

// FirstIndex is the sample index of the first frame, or -1 when empty
func (c Chunk) FirstIndex() int64 {
	if len(c.Indices) == 0 {
		return -1
	}
	return c.Indices[0]
}

// Events counts frames carrying a non-zero event code
func (c Chunk) Events() int {
	n := 0
	for _, code := range c.EventCodes {
		if code != 0 {
			n++
		}
	}
	return n
}

// ChunkSource yields multiplexed frames. PullChunk fills samples (frame-major)
// and timestamps, returns the number of scalars written, and returns 0 with a
// nil error when nothing is available before ctx expires.
type ChunkSource interface {
	Info() StreamInfo
	Open(ctx context.Context) error
	PullChunk(ctx context.Context, samples []float32, timestamps []float64) (int, error)
	Close() error
}

// MarkerSource yields pending markers without blocking. A false second
// return means nothing is pending.
type MarkerSource interface {
	Open(ctx context.Context) error
	PullMarker(ctx context.Context) (Marker, bool, error)
	Close() error
}

// OutputSink receives emitted chunks. Append returns the frames accepted and
// must copy whatever it keeps.
type OutputSink interface {
	Append(chunk Chunk) int
	Clear()
}

// CycleResult summarises one Engine.Cycle
type CycleResult struct {
	Frames           int
	FramesWritten    int
	FirstIndex       int64
	MarkersAssigned  int
	MarkersDropped   int
	DiscardedScalars int
}
