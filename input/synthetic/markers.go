package synthetic

import (
	"context"
	"sync"
	"time"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/errors"
)

// MarkerSource emits a marker every interval of stream time, cycling
// through labels. A marker becomes pending once the paired ChunkSource has
// generated a frame at or after its timestamp.
type MarkerSource struct {
	chunks   *ChunkSource
	every    time.Duration
	labels   []string
	mu       sync.Mutex
	open     bool
	next     int64
	sessionT float64
}

var _ acquisition.MarkerSource = (*MarkerSource)(nil)

// NewMarkerSource pairs a marker generator with chunks. No labels means
// the single label "1".
func NewMarkerSource(chunks *ChunkSource, every time.Duration, labels ...string) *MarkerSource {
	if every <= 0 {
		every = time.Second
	}
	if len(labels) == 0 {
		labels = []string{"1"}
	}
	return &MarkerSource{
		chunks: chunks,
		every:  every,
		labels: append([]string(nil), labels...),
	}
}

// Open restarts the marker schedule at the chunk source's start time
func (m *MarkerSource) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	m.next = 0
	m.sessionT = m.chunks.StartTime()
	return nil
}

// Close stops the schedule
func (m *MarkerSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// PullMarker returns the next scheduled marker if its time has been
// generated
func (m *MarkerSource) PullMarker(_ context.Context) (acquisition.Marker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return acquisition.Marker{}, false,
			errors.WrapTransient(errors.ErrSourceClosed, "synthetic", "PullMarker", "open check")
	}
	last, ok := m.chunks.LastTimestamp()
	if !ok {
		return acquisition.Marker{}, false, nil
	}

	ts := m.sessionT + float64(m.next+1)*m.every.Seconds()
	if ts > last {
		return acquisition.Marker{}, false, nil
	}
	marker := acquisition.Marker{Label: m.labels[m.next%int64(len(m.labels))], Timestamp: ts}
	m.next++
	return marker, true, nil
}

// Script replays a fixed list of markers in order
type Script struct {
	mu      sync.Mutex
	markers []acquisition.Marker
	pos     int
	open    bool
}

var _ acquisition.MarkerSource = (*Script)(nil)

// NewScript creates a replay of markers
func NewScript(markers ...acquisition.Marker) *Script {
	return &Script{markers: append([]acquisition.Marker(nil), markers...)}
}

// Open rewinds the script
func (s *Script) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.pos = 0
	return nil
}

// Close stops replay
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// PullMarker returns the next scripted marker
func (s *Script) PullMarker(_ context.Context) (acquisition.Marker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return acquisition.Marker{}, false,
			errors.WrapTransient(errors.ErrSourceClosed, "synthetic", "PullMarker", "open check")
	}
	if s.pos >= len(s.markers) {
		return acquisition.Marker{}, false, nil
	}
	m := s.markers[s.pos]
	s.pos++
	return m, true, nil
}
