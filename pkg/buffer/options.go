package buffer

import (
	"github.com/tne-lab/LSL-inlet/metric"
)

// Option configures a CircularBuffer.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	dropCallback DropCallback[T]

	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithMetrics exports buffer statistics under the given component label.
// A nil registry or empty prefix leaves metrics disabled.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback registers a function called for every evicted item,
// outside the buffer lock.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
