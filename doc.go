// Package lslinlet is a stream inlet that pulls multichannel sample chunks
// from a published stream, attaches markers from an optional marker stream
// to the frames they fall on, and emits indexed, gain-scaled chunks to an
// in-process ring and optional downstream taps.
//
// # Architecture
//
//	┌──────────────────────────────┐
//	│  Sources                     │  input/natsstream (msgpack over NATS)
//	│  (chunks + markers)          │  input/synthetic (generated signal)
//	└──────────────────────────────┘
//	           ↓ PullChunk / PullMarker
//	┌──────────────────────────────┐
//	│  acquisition.Engine          │  framing, marker association,
//	│  (one cycle per pull)        │  clock normalization, indices, gain
//	└──────────────────────────────┘
//	           ↓ Append
//	┌──────────────────────────────┐
//	│  Sinks                       │  output/ring (host reads here)
//	│                              │  output/natspub, output/wsmonitor (taps)
//	└──────────────────────────────┘
//
// input/inlet wraps the engine in a lifecycle component with a single
// worker goroutine and the Unconfigured, Configured, Acquiring, Stopped
// state machine. cmd/lslinlet runs it under component.Manager next to the
// metrics and health endpoints.
//
// # Packages
//
//   - acquisition: buffers, engine, marker mapping, clock, telemetry
//   - mapping: marker mapping file loader
//   - config: layered JSON configuration with schema and env overrides
//   - component, health, metric, errors: lifecycle, health, Prometheus and
//     classified errors shared by every component
//   - natsclient, wire: NATS connection management and msgpack messages
//   - pkg/buffer, pkg/retry: circular and resizable buffers, backoff retry
//
// Persistence of streams, marker logs or configuration is out of scope.
package lslinlet
