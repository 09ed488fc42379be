package acquisition

// Tee appends every chunk to a primary sink and to any number of taps. The
// primary's count is what the engine sees; taps are best effort.
type Tee struct {
	primary OutputSink
	taps    []OutputSink
}

var _ OutputSink = (*Tee)(nil)

// NewTee builds a tee. Nil taps are skipped.
func NewTee(primary OutputSink, taps ...OutputSink) *Tee {
	t := &Tee{primary: primary}
	for _, tap := range taps {
		if tap != nil {
			t.taps = append(t.taps, tap)
		}
	}
	return t
}

// Append forwards chunk to every sink and returns the primary's count
func (t *Tee) Append(chunk Chunk) int {
	n := t.primary.Append(chunk)
	for _, tap := range t.taps {
		tap.Append(chunk)
	}
	return n
}

// Clear clears every sink
func (t *Tee) Clear() {
	t.primary.Clear()
	for _, tap := range t.taps {
		tap.Clear()
	}
}
