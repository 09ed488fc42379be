package natsstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/natsclient"
	"github.com/tne-lab/LSL-inlet/pkg/buffer"
	"github.com/tne-lab/LSL-inlet/wire"
)

// MarkerSource is an acquisition.MarkerSource over a NATS marker subject
type MarkerSource struct {
	subject  string
	streamID string
	client   *natsclient.Client
	logger   *slog.Logger

	inbox buffer.Buffer[acquisition.Marker]
	open  atomic.Bool

	mu    sync.Mutex
	sub   *nats.Subscription
	stats counters
}

var _ acquisition.MarkerSource = (*MarkerSource)(nil)

// NewMarkerSource creates a marker source. A non-empty streamID ignores
// markers stamped with a different stream.
func NewMarkerSource(streamID string, cfg Config, deps Deps) (*MarkerSource, error) {
	if deps.Client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: NATS client", errors.ErrMissingConfig),
			"MarkerSource", "New", "dependency check")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: marker subject", errors.ErrMissingConfig),
			"MarkerSource", "New", "subject check")
	}
	size := cfg.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "natsstream")
	}

	m := &MarkerSource{
		subject:  cfg.Subject,
		streamID: streamID,
		client:   deps.Client,
		logger:   logger.With("subject", cfg.Subject),
	}
	inbox, err := buffer.NewCircularBuffer(size,
		buffer.WithDropCallback(func(lost acquisition.Marker) {
			m.logger.Warn("Marker evicted from inbox", "label", lost.Label, "timestamp", lost.Timestamp)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "MarkerSource", "New", "inbox creation")
	}
	m.inbox = inbox
	return m, nil
}

// Stats returns receive counters
func (m *MarkerSource) Stats() Stats { return m.stats.snapshot(m.inbox) }

// Open subscribes to the marker subject
func (m *MarkerSource) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub != nil {
		return nil
	}
	m.inbox.Clear()

	sub, err := m.client.Subscribe(m.subject, m.handle)
	if err != nil {
		return errors.WrapTransient(err, "MarkerSource", "Open", "subscribe")
	}
	m.sub = sub
	m.open.Store(true)
	return nil
}

// Close unsubscribes and discards pending markers
func (m *MarkerSource) Close() error {
	m.open.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.sub != nil {
		if uerr := m.sub.Unsubscribe(); uerr != nil && uerr != nats.ErrConnectionClosed {
			err = errors.WrapTransient(uerr, "MarkerSource", "Close", "unsubscribe")
		}
		m.sub = nil
	}
	m.inbox.Clear()
	return err
}

func (m *MarkerSource) handle(msg *nats.Msg) {
	m.stats.received.Add(1)

	mm, err := wire.DecodeMarker(msg.Data)
	if err != nil {
		m.stats.rejected.Add(1)
		m.logger.Warn("Dropping undecodable marker", "error", err)
		return
	}
	if m.streamID != "" && mm.StreamID != "" && mm.StreamID != m.streamID {
		return
	}
	if err := m.inbox.Write(acquisition.Marker{Label: mm.Label, Timestamp: mm.Timestamp}); err != nil {
		m.stats.rejected.Add(1)
	}
}

// PullMarker returns the oldest pending marker without blocking
func (m *MarkerSource) PullMarker(_ context.Context) (acquisition.Marker, bool, error) {
	if !m.open.Load() {
		return acquisition.Marker{}, false,
			errors.WrapTransient(errors.ErrSourceClosed, "MarkerSource", "PullMarker", "open check")
	}
	marker, ok := m.inbox.Read()
	return marker, ok, nil
}
