package buffer

import (
	"sync"

	"github.com/tne-lab/LSL-inlet/errors"
)

type circularBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int // next write
	tail     int // next read
	size     int
	stats    *Statistics
	metrics  *bufferMetrics
	opts     *bufferOptions[T]
	capacity int
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

func (cb *circularBuffer[T]) Write(item T) error {
	cb.mu.Lock()

	var (
		evicted T
		full    = cb.size == cb.capacity
	)
	if full {
		evicted = cb.pop()
		cb.recordDrop()
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++
	cb.stats.Write()
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.writes.Inc()
		cb.metrics.observe(cb.size, cb.capacity)
	}
	cb.mu.Unlock()

	if full && cb.opts.dropCallback != nil {
		cb.opts.dropCallback(evicted)
	}
	return nil
}

// pop removes the oldest item. Callers hold mu and ensure size > 0.
func (cb *circularBuffer[T]) pop() T {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--
	return item
}

func (cb *circularBuffer[T]) recordDrop() {
	cb.stats.Overflow()
	cb.stats.Drop()
	if cb.metrics != nil {
		cb.metrics.drops.Inc()
	}
}

func (cb *circularBuffer[T]) afterRead(n int) {
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.reads.Add(float64(n))
		cb.metrics.observe(cb.size, cb.capacity)
	}
}

func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		var zero T
		return zero, false
	}

	item := cb.pop()
	cb.stats.Read()
	cb.afterRead(1)
	return item, true
}

func (cb *circularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		return nil
	}

	n := min(max, cb.size)
	out := make([]T, n)
	for i := range out {
		out[i] = cb.pop()
		cb.stats.Read()
	}
	cb.afterRead(n)
	return out
}

func (cb *circularBuffer[T]) Size() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.size
}

func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity
}

func (cb *circularBuffer[T]) Clear() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	clear(cb.items)
	cb.head, cb.tail, cb.size = 0, 0, 0
	cb.stats.UpdateSize(0)
	if cb.metrics != nil {
		cb.metrics.observe(0, cb.capacity)
	}
}

func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}
