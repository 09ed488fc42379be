// Package buffer provides the two buffer shapes used by the inlet.
//
// CircularBuffer is a bounded, thread-safe FIFO that evicts its oldest item
// when full. Writers never block, so it is safe to fill from NATS callbacks.
// It backs the NATS source inboxes, the monitor queue and the output ring
// that the host drains. Statistics are always collected; Prometheus export
// and eviction callbacks are opt-in:
//
//	inbox, err := buffer.NewCircularBuffer(1024,
//	    buffer.WithMetrics[acquisition.Marker](registry, "marker_inbox"),
//	    buffer.WithDropCallback(func(m acquisition.Marker) {
//	        logger.Warn("Marker evicted from inbox", "label", m.Label)
//	    }),
//	)
//
// Slab is a single-owner contiguous slice that is resized explicitly with a
// KeepContents or Discard policy. The acquisition engine keeps its sample,
// timestamp, index and event-code scratch buffers in slabs so that every
// reallocation goes through one place and fails with ErrAllocationFailed
// instead of panicking:
//
//	samples := buffer.NewSlab[float32](maxScalars)
//	if err := samples.Resize(channels*frames, buffer.Discard); err != nil {
//	    return err // fatal: acquisition must not start
//	}
package buffer
