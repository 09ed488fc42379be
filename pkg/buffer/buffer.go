package buffer

// Buffer is a thread-safe FIFO of T with a fixed capacity. A full buffer
// evicts its oldest item to make room for a new one.
type Buffer[T any] interface {
	// Write adds an item, evicting the oldest when the buffer is full.
	Write(item T) error

	// Read removes the oldest item. The bool is false when the buffer is empty.
	Read() (T, bool)

	// ReadBatch removes up to max items, oldest first.
	ReadBatch(max int) []T

	Size() int
	Capacity() int

	// Clear discards every buffered item without reporting them as drops.
	Clear()

	Stats() *Statistics
}

// DropCallback receives every item evicted by overflow.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a ring of the given capacity. Statistics are
// always kept; Prometheus export is enabled with WithMetrics and fails the
// constructor if registration fails.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	return newCircularBuffer(capacity, applyOptions(options...))
}
