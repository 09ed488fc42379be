package buffer

import (
	"fmt"

	"github.com/tne-lab/LSL-inlet/errors"
)

// ResizePolicy decides what happens to existing elements when a Slab is resized.
type ResizePolicy int

const (
	// Discard zero-fills the whole slab after resizing.
	Discard ResizePolicy = iota

	// KeepContents preserves the common prefix and zero-fills any growth.
	KeepContents
)

func (p ResizePolicy) String() string {
	switch p {
	case Discard:
		return "Discard"
	case KeepContents:
		return "KeepContents"
	default:
		return "Unknown"
	}
}

// Slab is an owned, contiguous, resizable run of T. It is not safe for
// concurrent use; a single owner resizes it and hands out views.
type Slab[T any] struct {
	data  []T
	limit int
}

// NewSlab creates an empty slab that refuses to grow beyond limit
// elements. A limit of zero means no ceiling.
func NewSlab[T any](limit int) *Slab[T] {
	return &Slab[T]{limit: limit}
}

// Resize sets the length to n. Capacity is reused when it suffices. Any
// failure leaves the slab unchanged and reports ErrAllocationFailed.
func (s *Slab[T]) Resize(n int, policy ResizePolicy) (err error) {
	if n <= 0 {
		return errors.WrapFatal(fmt.Errorf("%w: non-positive length %d", errors.ErrAllocationFailed, n),
			"Slab", "Resize", "length check")
	}
	if s.limit > 0 && n > s.limit {
		return errors.WrapFatal(
			fmt.Errorf("%w: %d elements exceeds limit %d", errors.ErrAllocationFailed, n, s.limit),
			"Slab", "Resize", "length check")
	}

	old := len(s.data)
	if n <= cap(s.data) {
		s.data = s.data[:n]
		switch {
		case policy == Discard:
			clear(s.data)
		case n > old:
			clear(s.data[old:])
		}
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrAllocationFailed, r),
				"Slab", "Resize", fmt.Sprintf("allocate %d elements", n))
		}
	}()

	next := make([]T, n)
	if policy == KeepContents {
		copy(next, s.data)
	}
	s.data = next
	return nil
}

// Data returns the backing slice. It stays valid until the next Resize.
func (s *Slab[T]) Data() []T {
	return s.data
}

func (s *Slab[T]) Len() int {
	return len(s.data)
}

// Limit is the element ceiling, zero when unbounded.
func (s *Slab[T]) Limit() int {
	return s.limit
}

// Zero clears every element.
func (s *Slab[T]) Zero() {
	clear(s.data)
}

// ZeroPrefix clears the first n elements, bounded by the length.
func (s *Slab[T]) ZeroPrefix(n int) {
	clear(s.data[:min(max(n, 0), len(s.data))])
}
