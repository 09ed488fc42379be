package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics counts buffer activity. It is safe for concurrent use and is
// always populated, with or without Prometheus export.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	overflows atomic.Int64
	drops     atomic.Int64

	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics starts a tracker at the current time.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) Write()    { s.writes.Add(1) }
func (s *Statistics) Read()     { s.reads.Add(1) }
func (s *Statistics) Overflow() { s.overflows.Add(1) }
func (s *Statistics) Drop()     { s.drops.Add(1) }

// UpdateSize records the current fill level and tracks the high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

func (s *Statistics) Writes() int64    { return s.writes.Load() }
func (s *Statistics) Reads() int64     { return s.reads.Load() }
func (s *Statistics) Overflows() int64 { return s.overflows.Load() }
func (s *Statistics) Drops() int64     { return s.drops.Load() }

func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// Uptime is the time since creation or the last Reset.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Throughput is writes per second since creation or the last Reset.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(s.Writes()) / elapsed
}

// DropRate is the fraction of writes that lost an item (0.0 to 1.0).
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	if writes == 0 {
		return 0
	}
	return float64(s.Drops()) / float64(writes)
}

// Utilization is the current fill level as a fraction of capacity.
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(s.CurrentSize()) / float64(capacity)
}

// Reset zeroes every counter and restarts the clock.
func (s *Statistics) Reset() {
	s.writes.Store(0)
	s.reads.Store(0)
	s.overflows.Store(0)
	s.drops.Store(0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.currentSize = 0
	s.maxSize = 0
	s.mu.Unlock()
}

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	Writes      int64         `json:"writes"`
	Reads       int64         `json:"reads"`
	Overflows   int64         `json:"overflows"`
	Drops       int64         `json:"drops"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	Throughput  float64       `json:"throughput"`
	DropRate    float64       `json:"drop_rate"`
	Uptime      time.Duration `json:"uptime"`
}

func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:      s.Writes(),
		Reads:       s.Reads(),
		Overflows:   s.Overflows(),
		Drops:       s.Drops(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		Throughput:  s.Throughput(),
		DropRate:    s.DropRate(),
		Uptime:      s.Uptime(),
	}
}
