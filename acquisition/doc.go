// Package acquisition is the inlet's alignment engine. It pulls multiplexed
// frames from a ChunkSource, attaches markers from an optional MarkerSource
// to the first frame whose timestamp is at or after the marker, rebases
// timestamps to the first frame of the session, assigns contiguous sample
// indices, applies a linear gain and appends the result to an OutputSink.
//
// Buffers owns every scratch buffer and is the single configuration entry
// point: Configure sizes them from the stream's channel count and the frame
// budget, and fails with ErrAllocationFailed when that cannot be satisfied.
//
// Engine.Cycle runs one pull-to-emit pass. A single goroutine owns an Engine
// and calls Cycle repeatedly; Snapshot may be called from any goroutine and
// reflects the state after the last completed cycle.
//
//	bufs := acquisition.NewBuffers(acquisition.DefaultMaxChannels, acquisition.DefaultMaxFramesPerPull)
//	if err := bufs.Configure(info.ChannelCount, 256); err != nil {
//	    return err // fatal, do not start
//	}
//	engine, err := acquisition.NewEngine(acquisition.EngineDeps{
//	    Buffers: bufs, Source: src, Markers: markers, Sink: sink,
//	    Mapping: table, Gain: 1.0, PullTimeout: 100 * time.Millisecond,
//	})
//	engine.Reset(sessionID)
//	for ctx.Err() == nil {
//	    if _, err := engine.Cycle(ctx); err != nil && !errors.IsTransient(err) {
//	        return err
//	    }
//	}
package acquisition
