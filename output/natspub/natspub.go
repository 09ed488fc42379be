// Package natspub republishes emitted chunks on a NATS subject as msgpack
// wire.AlignedChunk messages so remote consumers see the same aligned
// frames, sample indices and event codes as the local host.
package natspub

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/metric"
	"github.com/tne-lab/LSL-inlet/natsclient"
	"github.com/tne-lab/LSL-inlet/wire"
)

// Config names the subject and the stream label stamped on messages
type Config struct {
	Subject string
	Stream  string
}

// Deps holds runtime dependencies for the publisher
type Deps struct {
	Client  *natsclient.Client
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Stats counts publish outcomes
type Stats struct {
	Published int64
	Failed    int64
}

// Sink publishes every appended chunk
type Sink struct {
	client  *natsclient.Client
	subject string
	stream  string
	metrics *metric.Metrics
	logger  *slog.Logger
	warn    rate.Sometimes

	published atomic.Int64
	failed    atomic.Int64
}

var _ acquisition.OutputSink = (*Sink)(nil)

// New creates a publishing sink
func New(cfg Config, deps Deps) (*Sink, error) {
	if deps.Client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: NATS client", errors.ErrMissingConfig),
			"natspub", "New", "dependency check")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: subject", errors.ErrMissingConfig),
			"natspub", "New", "subject check")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "natspub")
	}
	return &Sink{
		client:  deps.Client,
		subject: cfg.Subject,
		stream:  cfg.Stream,
		metrics: deps.Metrics,
		logger:  logger,
		warn:    rate.Sometimes{Interval: 5 * time.Second},
	}, nil
}

// Append encodes and publishes chunk. It returns the frames published, or
// 0 when the chunk could not be sent.
func (s *Sink) Append(chunk acquisition.Chunk) int {
	if chunk.Frames == 0 {
		return 0
	}
	start := time.Now()

	data, err := wire.EncodeAligned(wire.AlignedChunk{
		SessionID:  chunk.SessionID,
		Stream:     s.stream,
		Seq:        chunk.Seq,
		Channels:   chunk.Channels,
		FirstIndex: chunk.FirstIndex(),
		Samples:    chunk.Samples,
		Timestamps: chunk.Timestamps,
		EventCodes: chunk.EventCodes,
	})
	if err == nil {
		err = s.client.Publish(context.Background(), s.subject, data)
	}
	if err != nil {
		s.failed.Add(1)
		if s.metrics != nil {
			s.metrics.RecordError("natspub", errors.Classify(err).String())
		}
		s.warn.Do(func() {
			s.logger.Warn("Chunk publish failed", "subject", s.subject, "seq", chunk.Seq,
				"failed_total", s.failed.Load(), "error", err)
		})
		return 0
	}

	s.published.Add(1)
	if s.metrics != nil {
		s.metrics.RecordChunkPublished("natspub", s.subject, time.Since(start))
	}
	return chunk.Frames
}

// Clear is a no-op; published chunks cannot be recalled
func (s *Sink) Clear() {}

// Flush waits until the server has processed every chunk published so far
func (s *Sink) Flush(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return errors.WrapTransient(err, "natspub", "Flush", "flush "+s.subject)
	}
	return nil
}

// Stats returns publish counters
func (s *Sink) Stats() Stats {
	return Stats{Published: s.published.Load(), Failed: s.failed.Load()}
}
