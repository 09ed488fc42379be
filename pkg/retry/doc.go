// Package retry provides exponential backoff for operations that fail for
// transient reasons, mainly opening stream sources and connecting to NATS.
//
// Persistent (30 attempts, 200ms to 10s) suits a broker that may start
// after the inlet:
//
//	err := retry.Do(ctx, retry.Persistent(), func() error {
//	    return client.Connect(ctx)
//	})
//
// An error that retrying cannot fix is wrapped with Permanent and returned
// at once. The inlet opens its sources this way, with a schedule taken from
// errors.RetryConfig:
//
//	err := retry.Do(ctx, policy.ToRetryConfig(), func() error {
//	    err := src.Open(ctx)
//	    if err != nil && !policy.ShouldRetry(err, attempt) {
//	        return retry.Permanent(err)
//	    }
//	    attempt++
//	    return err
//	})
//
// Every wait honours context cancellation.
package retry
