package acquisition

import (
	"fmt"
	"math"

	"github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/pkg/buffer"
)

// Buffers owns the engine's scratch storage: multiplexed samples, per-frame
// timestamps, per-frame sample indices and per-frame event codes. It is not
// safe for concurrent use; configuration happens only while acquisition is
// stopped, and the worker is the only user while it runs.
type Buffers struct {
	maxChannels int
	maxFrames   int

	samples    *buffer.Slab[float32]
	timestamps *buffer.Slab[float64]
	indices    *buffer.Slab[int64]
	events     *buffer.Slab[uint64]

	geometry   Geometry
	configured bool
}

// NewBuffers creates unconfigured buffers bounded by maxChannels and
// maxFrames. Non-positive bounds fall back to the package defaults.
func NewBuffers(maxChannels, maxFrames int) *Buffers {
	if maxChannels <= 0 {
		maxChannels = DefaultMaxChannels
	}
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFramesPerPull
	}
	return &Buffers{
		maxChannels: maxChannels,
		maxFrames:   maxFrames,
		samples:     buffer.NewSlab[float32](maxChannels * maxFrames),
		timestamps:  buffer.NewSlab[float64](maxFrames),
		indices:     buffer.NewSlab[int64](maxFrames),
		events:      buffer.NewSlab[uint64](maxFrames),
	}
}

// Configure sizes every buffer for channels x framesPerPull. Event codes
// start zeroed. On any failure the buffers are left unconfigured and the
// returned error is a fatal ErrAllocationFailed.
func (b *Buffers) Configure(channels, framesPerPull int) error {
	b.configured = false
	b.geometry = Geometry{}

	if err := b.checkGeometry(channels, framesPerPull); err != nil {
		return err
	}

	scalars := channels * framesPerPull
	if err := b.samples.Resize(scalars, buffer.Discard); err != nil {
		return errors.Wrap(err, "Buffers", "Configure", "sample buffer resize")
	}
	if err := b.timestamps.Resize(framesPerPull, buffer.Discard); err != nil {
		return errors.Wrap(err, "Buffers", "Configure", "timestamp buffer resize")
	}
	if err := b.indices.Resize(framesPerPull, buffer.Discard); err != nil {
		return errors.Wrap(err, "Buffers", "Configure", "index buffer resize")
	}
	if err := b.events.Resize(framesPerPull, buffer.Discard); err != nil {
		return errors.Wrap(err, "Buffers", "Configure", "event buffer resize")
	}

	b.geometry = Geometry{ChannelCount: channels, FramesPerPull: framesPerPull}
	b.configured = true
	return nil
}

func (b *Buffers) checkGeometry(channels, framesPerPull int) error {
	var cause error
	switch {
	case channels <= 0:
		cause = fmt.Errorf("%w: channel count %d", errors.ErrAllocationFailed, channels)
	case framesPerPull <= 0:
		cause = fmt.Errorf("%w: frames per pull %d", errors.ErrAllocationFailed, framesPerPull)
	case channels > b.maxChannels:
		cause = fmt.Errorf("%w: %d channels exceeds maximum %d",
			errors.ErrAllocationFailed, channels, b.maxChannels)
	case framesPerPull > b.maxFrames:
		cause = fmt.Errorf("%w: %d frames per pull exceeds maximum %d",
			errors.ErrAllocationFailed, framesPerPull, b.maxFrames)
	case framesPerPull > math.MaxInt/channels:
		cause = fmt.Errorf("%w: %d x %d overflows", errors.ErrAllocationFailed, channels, framesPerPull)
	}
	if cause != nil {
		return errors.WrapFatal(cause, "Buffers", "Configure", "geometry check")
	}
	return nil
}

// Configured reports whether the last Configure succeeded
func (b *Buffers) Configured() bool { return b.configured }

// Geometry returns the configured shape, zero when unconfigured
func (b *Buffers) Geometry() Geometry { return b.geometry }

// MaxChannels is the channel ceiling
func (b *Buffers) MaxChannels() int { return b.maxChannels }

// Samples returns the multiplexed sample buffer
func (b *Buffers) Samples() []float32 { return b.samples.Data() }

// Timestamps returns the per-frame timestamp buffer
func (b *Buffers) Timestamps() []float64 { return b.timestamps.Data() }

// Indices returns the per-frame sample index buffer
func (b *Buffers) Indices() []int64 { return b.indices.Data() }

// Events returns the per-frame event code buffer
func (b *Buffers) Events() []uint64 { return b.events.Data() }

// ResetEvents zeroes the first n event slots
func (b *Buffers) ResetEvents(n int) { b.events.ZeroPrefix(n) }

// ClearEvents zeroes every event slot
func (b *Buffers) ClearEvents() { b.events.Zero() }
