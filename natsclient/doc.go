// Package natsclient wraps a core NATS connection for the inlet.
//
// The network stream sources subscribe through it and the chunk publisher
// publishes through it. Persistence is not needed, so only core NATS
// subjects are used.
//
// # Circuit breaker
//
// Consecutive connection failures (default 5) open the breaker. While it
// is open Connect returns ErrCircuitOpen without dialing. After the current
// backoff the breaker half-opens and the next Connect may try again.
// Backoff doubles per open round up to WithMaxBackoff.
//
// # Usage
//
//	client, err := natsclient.NewClient(cfg.NATS.URLs[0],
//	    natsclient.WithName("lsl-inlet"),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := retry.Do(ctx, retry.Persistent(), func() error {
//	    return client.Connect(ctx)
//	}); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	sub, err := client.Subscribe("lsl.eeg.chunks", func(msg *nats.Msg) {
//	    // decode and buffer msg.Data
//	})
//
// # Testing
//
// TestClient starts a NATS server in a container through testcontainers.
// Tests that use it carry the integration build tag:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithFastStartup())
//	peer := tc.NewPeer(t)
package natsclient
