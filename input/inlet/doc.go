// Package inlet provides the acquisition lifecycle component. It owns the
// buffers, the selected chunk and marker sources, the output ring and any
// attached sink taps, and runs the acquisition engine on one dedicated
// worker goroutine.
//
// State machine:
//
//	Unconfigured --SelectSource--> Configured --Start--> Acquiring --Stop--> Stopped
//	                                    ^                                      |
//	                                    +-------------- Start ----------------+
//
// Stopped behaves exactly like Configured. Every Start begins a new session
// with a fresh session ID, sample indices restarting at zero and timestamps
// re-normalized to the first frame pulled.
//
// Usage:
//
//	in, err := inlet.NewInlet(inlet.Deps{
//	    Name:            "lsl-inlet",
//	    Config:          cfg.Inlet,
//	    Output:          cfg.Output,
//	    NATSClient:      client,
//	    MetricsRegistry: registry,
//	})
//	if err != nil { ... }
//	if err := in.Initialize(); err != nil { ... }
//	if err := in.Start(ctx); err != nil { ... }
//	defer in.Stop(time.Second)
//
//	for _, chunk := range in.Ring().ReadBatch(16) {
//	    // chunk.Samples, chunk.Indices, chunk.EventCodes
//	}
package inlet
