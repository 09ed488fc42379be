// Package synthetic provides generated acquisition sources for demos and
// tests. ChunkSource emits a per-channel sine wave paced by a clock at the
// stream's nominal rate; MarkerSource emits labelled markers at a fixed
// interval of stream time; Script replays a fixed marker list.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/errors"
)

// Defaults for the generated waveform
const (
	DefaultAmplitude   = 100.0
	DefaultFrequencyHz = 10.0
)

// Option configures a ChunkSource
type Option func(*ChunkSource)

// WithAmplitude sets the peak value of the waveform
func WithAmplitude(a float64) Option {
	return func(s *ChunkSource) { s.amplitude = a }
}

// WithFrequency sets the waveform frequency in Hz
func WithFrequency(hz float64) Option {
	return func(s *ChunkSource) { s.frequency = hz }
}

// WithStartTime fixes the timestamp of the first frame
func WithStartTime(ts float64) Option {
	return func(s *ChunkSource) {
		s.startTime = ts
		s.fixedStart = true
	}
}

// WithClock replaces time.Now for pacing
func WithClock(now func() time.Time) Option {
	return func(s *ChunkSource) { s.now = now }
}

// WithoutPacing makes every pull fill the caller's buffer immediately
func WithoutPacing() Option {
	return func(s *ChunkSource) { s.paced = false }
}

// ChunkSource generates frames at the nominal rate of its stream
type ChunkSource struct {
	info       acquisition.StreamInfo
	amplitude  float64
	frequency  float64
	startTime  float64
	fixedStart bool
	paced      bool
	now        func() time.Time

	mu       sync.Mutex
	open     bool
	openedAt time.Time
	base     float64
	emitted  int64

	lastTS  atomic.Uint64
	hasLast atomic.Bool
}

var _ acquisition.ChunkSource = (*ChunkSource)(nil)

// NewChunkSource creates a generator for info. The channel count and
// nominal rate must be positive.
func NewChunkSource(info acquisition.StreamInfo, opts ...Option) (*ChunkSource, error) {
	if info.ChannelCount <= 0 || info.NominalRate <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d channels at %v Hz", errors.ErrInvalidConfig, info.ChannelCount, info.NominalRate),
			"synthetic", "NewChunkSource", "stream check")
	}
	s := &ChunkSource{
		info:      info,
		amplitude: DefaultAmplitude,
		frequency: DefaultFrequencyHz,
		paced:     true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Info returns the generated stream's description
func (s *ChunkSource) Info() acquisition.StreamInfo { return s.info }

// Open restarts generation from frame zero
func (s *ChunkSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = true
	s.openedAt = s.now()
	s.emitted = 0
	s.base = s.startTime
	if !s.fixedStart {
		s.base = float64(s.openedAt.UnixNano()) / 1e9
	}
	s.hasLast.Store(false)
	return nil
}

// Close stops generation
func (s *ChunkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// LastTimestamp returns the timestamp of the newest generated frame
func (s *ChunkSource) LastTimestamp() (float64, bool) {
	return math.Float64frombits(s.lastTS.Load()), s.hasLast.Load()
}

// StartTime returns the timestamp of frame zero for the current session
func (s *ChunkSource) StartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// PullChunk writes the frames due since the last pull. With pacing on it
// waits for the next frame or ctx, whichever comes first.
func (s *ChunkSource) PullChunk(ctx context.Context, samples []float32, timestamps []float64) (int, error) {
	ch := s.info.ChannelCount
	room := min(len(samples)/ch, len(timestamps))
	if room == 0 {
		return 0, nil
	}

	for {
		s.mu.Lock()
		if !s.open {
			s.mu.Unlock()
			return 0, errors.WrapTransient(errors.ErrSourceClosed, "synthetic", "PullChunk", "open check")
		}
		due, wait := s.dueLocked(room)
		if due > 0 {
			s.generateLocked(samples, timestamps, due)
			s.mu.Unlock()
			return due * ch, nil
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil
		case <-timer.C:
		}
	}
}

// dueLocked returns how many frames may be generated now, or how long to
// wait for the next one
func (s *ChunkSource) dueLocked(room int) (int, time.Duration) {
	if !s.paced {
		return room, 0
	}
	rate := s.info.NominalRate
	elapsed := s.now().Sub(s.openedAt).Seconds()
	due := int64(elapsed*rate) - s.emitted
	if due <= 0 {
		next := float64(s.emitted+1) / rate
		wait := time.Duration((next - elapsed) * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		return 0, wait
	}
	return int(min(due, int64(room))), 0
}

func (s *ChunkSource) generateLocked(samples []float32, timestamps []float64, frames int) {
	ch := s.info.ChannelCount
	rate := s.info.NominalRate
	for i := 0; i < frames; i++ {
		k := s.emitted + int64(i)
		timestamps[i] = s.base + float64(k)/rate
		for c := 0; c < ch; c++ {
			samples[i*ch+c] = s.Value(k, c)
		}
	}
	s.emitted += int64(frames)
	s.lastTS.Store(math.Float64bits(timestamps[frames-1]))
	s.hasLast.Store(true)
}

// Value returns the generated sample for frame k on channel c
func (s *ChunkSource) Value(k int64, c int) float32 {
	t := float64(k) / s.info.NominalRate
	return float32(s.amplitude * math.Sin(2*math.Pi*s.frequency*t+float64(c)*math.Pi/8))
}
