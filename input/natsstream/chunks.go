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

// DefaultInboxSize is the number of messages buffered per source
const DefaultInboxSize = 64

// Config selects the subject a source listens on
type Config struct {
	Subject   string
	InboxSize int
}

// Deps holds runtime dependencies for the NATS sources
type Deps struct {
	Client *natsclient.Client
	Logger *slog.Logger
}

// Stats counts what a source has seen since it was created
type Stats struct {
	Received int64
	Dropped  int64 // lost to inbox overflow
	Rejected int64 // undecodable or wrong stream shape
	Gaps     int64 // sequence discontinuities
}

type counters struct {
	received atomic.Int64
	rejected atomic.Int64
	gaps     atomic.Int64
}

func (c *counters) snapshot(inbox interface{ Stats() *buffer.Statistics }) Stats {
	return Stats{
		Received: c.received.Load(),
		Dropped:  inbox.Stats().Drops(),
		Rejected: c.rejected.Load(),
		Gaps:     c.gaps.Load(),
	}
}

// ChunkSource is an acquisition.ChunkSource over a NATS chunk subject
type ChunkSource struct {
	info      acquisition.StreamInfo
	subject   string
	client    *natsclient.Client
	connected func() bool
	logger    *slog.Logger

	inbox  buffer.Buffer[wire.ChunkMessage]
	notify chan struct{}
	open   atomic.Bool

	mu      sync.Mutex
	sub     *nats.Subscription
	pending *wire.ChunkMessage
	offset  int // frames of pending already consumed

	lastSeq atomic.Uint64
	hasSeq  atomic.Bool
	stats   counters
}

var _ acquisition.ChunkSource = (*ChunkSource)(nil)

// NewChunkSource creates a source for the stream described by info
func NewChunkSource(info acquisition.StreamInfo, cfg Config, deps Deps) (*ChunkSource, error) {
	if deps.Client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: NATS client", errors.ErrMissingConfig),
			"ChunkSource", "New", "dependency check")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: chunk subject", errors.ErrMissingConfig),
			"ChunkSource", "New", "subject check")
	}
	if info.ChannelCount <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: channel count %d", errors.ErrInvalidConfig, info.ChannelCount),
			"ChunkSource", "New", "stream check")
	}
	size := cfg.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "natsstream")
	}

	s := &ChunkSource{
		info:    info,
		subject: cfg.Subject,
		client:  deps.Client,
		logger:  logger.With("subject", cfg.Subject, "stream", info.Name),
		notify:  make(chan struct{}, 1),
	}
	s.connected = func() bool { return s.client.Status() == natsclient.StatusConnected }

	inbox, err := buffer.NewCircularBuffer[wire.ChunkMessage](size)
	if err != nil {
		return nil, errors.Wrap(err, "ChunkSource", "New", "inbox creation")
	}
	s.inbox = inbox
	return s, nil
}

// Info returns the advertised stream
func (s *ChunkSource) Info() acquisition.StreamInfo { return s.info }

// Stats returns receive counters
func (s *ChunkSource) Stats() Stats { return s.stats.snapshot(s.inbox) }

// Open subscribes to the chunk subject. Chunks buffered by a previous
// session are discarded.
func (s *ChunkSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return nil
	}
	s.inbox.Clear()
	s.pending = nil
	s.offset = 0
	s.hasSeq.Store(false)

	sub, err := s.client.Subscribe(s.subject, s.handle)
	if err != nil {
		return errors.WrapTransient(err, "ChunkSource", "Open", "subscribe")
	}
	s.sub = sub
	s.open.Store(true)
	s.logger.Debug("Chunk source opened")
	return nil
}

// Close unsubscribes and discards buffered chunks
func (s *ChunkSource) Close() error {
	s.open.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.sub != nil {
		if uerr := s.sub.Unsubscribe(); uerr != nil && uerr != nats.ErrConnectionClosed {
			err = errors.WrapTransient(uerr, "ChunkSource", "Close", "unsubscribe")
		}
		s.sub = nil
	}
	s.inbox.Clear()
	s.pending = nil
	s.offset = 0
	return err
}

func (s *ChunkSource) handle(msg *nats.Msg) {
	s.stats.received.Add(1)

	m, err := wire.DecodeChunk(msg.Data)
	if err != nil {
		s.stats.rejected.Add(1)
		s.logger.Warn("Dropping undecodable chunk", "error", err)
		return
	}
	if s.info.SourceID != "" && m.StreamID != "" && m.StreamID != s.info.SourceID {
		return
	}
	if m.Channels != s.info.ChannelCount {
		s.stats.rejected.Add(1)
		s.logger.Warn("Dropping chunk with unexpected channel count",
			"channels", m.Channels, "expected", s.info.ChannelCount)
		return
	}

	// keep only whole frames that carry a timestamp
	frames := min(len(m.Timestamps), len(m.Samples)/m.Channels)
	if frames*m.Channels != len(m.Samples) || frames != len(m.Timestamps) {
		s.logger.Warn("Chunk sample and timestamp counts disagree, truncating",
			"samples", len(m.Samples), "timestamps", len(m.Timestamps), "frames", frames)
	}
	if frames == 0 {
		return
	}
	m.Samples = m.Samples[:frames*m.Channels]
	m.Timestamps = m.Timestamps[:frames]

	if s.hasSeq.Load() && m.Seq != s.lastSeq.Load()+1 {
		s.stats.gaps.Add(1)
		s.logger.Debug("Chunk sequence gap", "expected", s.lastSeq.Load()+1, "got", m.Seq)
	}
	s.lastSeq.Store(m.Seq)
	s.hasSeq.Store(true)

	if err := s.inbox.Write(m); err != nil {
		s.stats.rejected.Add(1)
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// PullChunk copies buffered frames into samples and timestamps. When
// nothing is buffered it waits for a chunk or for ctx, whichever comes
// first, and returns 0 on ctx expiry.
func (s *ChunkSource) PullChunk(ctx context.Context, samples []float32, timestamps []float64) (int, error) {
	if !s.open.Load() {
		return 0, errors.WrapTransient(errors.ErrSourceClosed, "ChunkSource", "PullChunk", "open check")
	}
	if !s.connected() {
		return 0, errors.WrapTransient(errors.ErrConnectionLost, "ChunkSource", "PullChunk", "connection check")
	}

	ch := s.info.ChannelCount
	room := min(len(samples)/ch, len(timestamps))
	if room == 0 {
		return 0, nil
	}

	for {
		if frames := s.drain(samples, timestamps, room); frames > 0 {
			return frames * ch, nil
		}
		select {
		case <-ctx.Done():
			return 0, nil
		case <-s.notify:
		}
	}
}

func (s *ChunkSource) drain(samples []float32, timestamps []float64, room int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.info.ChannelCount
	written := 0
	for written < room {
		if s.pending == nil {
			m, ok := s.inbox.Read()
			if !ok {
				break
			}
			s.pending = &m
			s.offset = 0
		}

		m := s.pending
		take := min(len(m.Timestamps)-s.offset, room-written)
		copy(samples[written*ch:], m.Samples[s.offset*ch:(s.offset+take)*ch])
		copy(timestamps[written:], m.Timestamps[s.offset:s.offset+take])
		written += take
		s.offset += take

		if s.offset == len(m.Timestamps) {
			s.pending = nil
			s.offset = 0
		}
	}
	return written
}
