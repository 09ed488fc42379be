package acquisition

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Diagnostic categories, each limited independently
const (
	diagTransport = "transport"
	diagFraming   = "framing"
	diagMarker    = "marker"
	diagSink      = "sink"
)

// diagnostics rate-limits warnings per category so a misbehaving source
// cannot flood the log at sample rate. Suppressed counts are reported on
// the next warning that gets through.
type diagnostics struct {
	logger     *slog.Logger
	every      time.Duration
	burst      int
	limiters   map[string]*rate.Limiter
	suppressed map[string]int
}

func newDiagnostics(logger *slog.Logger, every time.Duration, burst int) *diagnostics {
	if every <= 0 {
		every = time.Second
	}
	if burst <= 0 {
		burst = 5
	}
	return &diagnostics{
		logger:     logger,
		every:      every,
		burst:      burst,
		limiters:   make(map[string]*rate.Limiter),
		suppressed: make(map[string]int),
	}
}

func (d *diagnostics) warn(category, msg string, args ...any) {
	lim, ok := d.limiters[category]
	if !ok {
		lim = rate.NewLimiter(rate.Every(d.every), d.burst)
		d.limiters[category] = lim
	}
	if !lim.Allow() {
		d.suppressed[category]++
		return
	}
	if n := d.suppressed[category]; n > 0 {
		args = append(args, "suppressed", n)
		d.suppressed[category] = 0
	}
	d.logger.Warn(msg, append(args, "category", category)...)
}
