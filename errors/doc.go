// Package errors classifies failures for the acquisition engine and its
// components.
//
// # Classes
//
// Every error belongs to one of three classes:
//
//   - ErrorTransient: the source or transport hiccupped. The current pull
//     cycle is skipped and acquisition continues on the next cycle.
//   - ErrorInvalid: a unit of input could not be used. A marker with an
//     unresolvable label, a marker in the future of the current chunk, or a
//     chunk whose sample count is not a multiple of the channel count.
//     The unit is dropped (or truncated) and acquisition continues.
//   - ErrorFatal: acquisition cannot proceed. Buffer allocation failure and
//     invalid configuration fall here and abort Start.
//
// # Wrapping
//
// Errors are wrapped with the "component.method: action failed: cause"
// pattern so that logs read consistently:
//
//	if err := b.samples.Resize(n); err != nil {
//	    return errors.WrapFatal(err, "Buffers", "Configure", "sample buffer resize")
//	}
//
// Callers branch on the class rather than on concrete types:
//
//	switch errors.Classify(err) {
//	case errors.ErrorFatal:
//	    return err
//	case errors.ErrorInvalid:
//	    logger.Debug("dropped input", "error", err)
//	default:
//	    continue
//	}
//
// Sentinels such as ErrAllocationFailed and ErrTransportFault remain
// reachable through the standard library errors.Is after wrapping.
//
// # Retry
//
// RetryConfig bridges the classification to pkg/retry. Only transient
// errors are retried; opening a network source uses DefaultRetryConfig.
package errors
