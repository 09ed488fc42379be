// Package ring is the in-process output sink the host reads emitted chunks
// from. It keeps the newest chunks up to a fixed capacity and drops the
// oldest on overflow.
package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/metric"
	"github.com/tne-lab/LSL-inlet/pkg/buffer"
)

// DefaultCapacity is the number of chunks kept
const DefaultCapacity = 1024

// Option configures a Sink
type Option func(*options)

type options struct {
	registry *metric.MetricsRegistry
	name     string
}

// WithMetrics exports occupancy and drop metrics under name
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(o *options) {
		o.registry = registry
		o.name = name
	}
}

// Stats counts what passed through the ring. Dropped and DroppedFrames
// cover overflow evictions only.
type Stats struct {
	Chunks        int64
	Frames        int64
	Dropped       int64
	DroppedFrames int64
	Cleared       int64
}

// Sink is a bounded FIFO of emitted chunks
type Sink struct {
	buf buffer.Buffer[acquisition.Chunk]

	chunks        atomic.Int64
	frames        atomic.Int64
	droppedFrames atomic.Int64
	cleared       atomic.Int64
}

var _ acquisition.OutputSink = (*Sink)(nil)

// New creates a ring holding up to capacity chunks
func New(capacity int, opts ...Option) (*Sink, error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: capacity %d", errors.ErrInvalidConfig, capacity),
			"ring", "New", "capacity check")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Sink{}
	bufOpts := []buffer.Option[acquisition.Chunk]{
		buffer.WithDropCallback(func(lost acquisition.Chunk) {
			s.droppedFrames.Add(int64(lost.Frames))
		}),
	}
	if o.registry != nil {
		bufOpts = append(bufOpts, buffer.WithMetrics[acquisition.Chunk](o.registry, o.name))
	}
	buf, err := buffer.NewCircularBuffer(capacity, bufOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "ring", "New", "buffer creation")
	}
	s.buf = buf
	return s, nil
}

// Append stores a copy of chunk and reports all of its frames written
func (s *Sink) Append(chunk acquisition.Chunk) int {
	if chunk.Frames == 0 {
		return 0
	}
	if err := s.buf.Write(chunk.Clone()); err != nil {
		return 0
	}
	s.chunks.Add(1)
	s.frames.Add(int64(chunk.Frames))
	return chunk.Frames
}

// Clear discards every buffered chunk
func (s *Sink) Clear() {
	s.buf.Clear()
	s.cleared.Add(1)
}

// Read removes the oldest chunk
func (s *Sink) Read() (acquisition.Chunk, bool) {
	return s.buf.Read()
}

// ReadBatch removes up to max chunks, oldest first
func (s *Sink) ReadBatch(max int) []acquisition.Chunk {
	return s.buf.ReadBatch(max)
}

// Len is the number of buffered chunks
func (s *Sink) Len() int { return s.buf.Size() }

// Capacity is the maximum number of buffered chunks
func (s *Sink) Capacity() int { return s.buf.Capacity() }

// Stats returns counters since creation
func (s *Sink) Stats() Stats {
	return Stats{
		Chunks:        s.chunks.Load(),
		Frames:        s.frames.Load(),
		Dropped:       s.buf.Stats().Drops(),
		DroppedFrames: s.droppedFrames.Load(),
		Cleared:       s.cleared.Load(),
	}
}
