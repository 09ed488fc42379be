package acquisition

// Clock rebases source timestamps to the first frame of a session and
// counts frames emitted since the session began.
type Clock struct {
	initial    float64
	hasInitial bool
	total      int64
}

// Reset forgets the reference timestamp and the frame count
func (c *Clock) Reset() {
	c.initial = 0
	c.hasInitial = false
	c.total = 0
}

// Normalize rewrites ts in place relative to the session's first frame.
// The first non-empty call latches ts[0] as the reference.
func (c *Clock) Normalize(ts []float64) {
	if len(ts) == 0 {
		return
	}
	if !c.hasInitial {
		c.initial = ts[0]
		c.hasInitial = true
	}
	for i := range ts {
		ts[i] -= c.initial
	}
}

// Assign writes contiguous sample indices starting at the emitted total
func (c *Clock) Assign(indices []int64) {
	for i := range indices {
		indices[i] = c.total + int64(i)
	}
}

// Advance adds n emitted frames
func (c *Clock) Advance(n int) { c.total += int64(n) }

// Total is the number of frames emitted this session
func (c *Clock) Total() int64 { return c.total }

// Initial returns the reference timestamp and whether one is latched
func (c *Clock) Initial() (float64, bool) { return c.initial, c.hasInitial }
