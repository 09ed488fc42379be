package acquisition

import (
	"context"
	stderrors "errors"
	"sync"
)

// pull is one scripted PullChunk result
type pull struct {
	samples    []float32
	timestamps []float64
	scalars    int // overrides len(samples) when non-zero
	err        error
}

type fakeSource struct {
	info   StreamInfo
	mu     sync.Mutex
	pulls  []pull
	calls  int
	opened bool
	closed bool
}

func newFakeSource(channels int, pulls ...pull) *fakeSource {
	return &fakeSource{
		info:  StreamInfo{Name: "fake", Type: "EEG", ChannelCount: channels, NominalRate: 1000},
		pulls: pulls,
	}
}

func (s *fakeSource) Info() StreamInfo { return s.info }

func (s *fakeSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *fakeSource) PullChunk(_ context.Context, samples []float32, timestamps []float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.pulls) == 0 {
		return 0, nil
	}
	p := s.pulls[0]
	s.pulls = s.pulls[1:]
	if p.err != nil {
		return 0, p.err
	}
	copy(samples, p.samples)
	copy(timestamps, p.timestamps)
	if p.scalars != 0 {
		return p.scalars, nil
	}
	return len(p.samples), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeMarkers struct {
	mu      sync.Mutex
	pending []Marker
	err     error
	calls   int
}

func (m *fakeMarkers) Open(_ context.Context) error { return nil }

func (m *fakeMarkers) PullMarker(_ context.Context) (Marker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Marker{}, false, m.err
	}
	if len(m.pending) == 0 {
		return Marker{}, false, nil
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	return next, true, nil
}

func (m *fakeMarkers) Close() error { return nil }

func (m *fakeMarkers) remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type recordSink struct {
	mu      sync.Mutex
	chunks  []Chunk
	limit   int // frames accepted per Append when > 0
	cleared int
}

func (s *recordSink) Append(c Chunk) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, c.Clone())
	if s.limit > 0 && c.Frames > s.limit {
		return s.limit
	}
	return c.Frames
}

func (s *recordSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.cleared++
}

func (s *recordSink) all() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Chunk(nil), s.chunks...)
}

var errLinkDown = stderrors.New("link down")

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func ones(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
