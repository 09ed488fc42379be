package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
		invalid   bool
		class     ErrorClass
	}{
		{"transport fault", ErrTransportFault, true, false, false, ErrorTransient},
		{"wrapped transport fault", fmt.Errorf("pull chunk: %w", ErrTransportFault), true, false, false, ErrorTransient},
		{"connection lost", ErrConnectionLost, true, false, false, ErrorTransient},
		{"pull deadline", context.DeadlineExceeded, true, false, false, ErrorTransient},
		{"stop cancel", context.Canceled, true, false, false, ErrorTransient},
		{"network text", fmt.Errorf("network unreachable"), true, false, false, ErrorTransient},
		{"allocation failure", ErrAllocationFailed, false, true, false, ErrorFatal},
		{"wrapped allocation failure", fmt.Errorf("configure 65 channels: %w", ErrAllocationFailed), false, true, false, ErrorFatal},
		{"bad config", ErrInvalidConfig, false, true, false, ErrorFatal},
		{"out of memory text", fmt.Errorf("runtime: out of memory"), false, true, false, ErrorFatal},
		{"marker dropped", ErrMarkerDropped, false, false, true, ErrorInvalid},
		{"framing mismatch", ErrFramingMismatch, false, false, true, ErrorInvalid},
		{"undecodable chunk", ErrInvalidData, false, false, true, ErrorInvalid},
		{"classified overrides sentinel", &ClassifiedError{Class: ErrorFatal, Err: ErrTransportFault}, false, true, false, ErrorFatal},
		{"unknown defaults to transient", fmt.Errorf("something odd"), false, false, false, ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err), "IsTransient")
			assert.Equal(t, tt.fatal, IsFatal(tt.err), "IsFatal")
			assert.Equal(t, tt.invalid, IsInvalid(tt.err), "IsInvalid")
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}

	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsInvalid(nil))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Buffers", "Configure", "resize"))

	err := Wrap(ErrAllocationFailed, "Buffers", "Configure", "sample buffer resize")
	assert.EqualError(t, err, "Buffers.Configure: sample buffer resize failed: buffer allocation failed")
	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.True(t, IsFatal(err), "plain Wrap keeps the sentinel's class")
}

func TestWrapClassified(t *testing.T) {
	base := ErrSourceClosed
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"fatal", WrapFatal, ErrorFatal},
		{"invalid", WrapInvalid, ErrorInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.wrap(nil, "Inlet", "Start", "open"))

			err := tt.wrap(base, "Inlet", "Start", "chunk source open")
			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Inlet", ce.Component)
			assert.Equal(t, "Start", ce.Operation)
			assert.Contains(t, err.Error(), "Inlet.Start: chunk source open failed")
			assert.ErrorIs(t, err, base)
			assert.Equal(t, tt.class, Classify(Wrap(err, "outer", "call", "step")), "outer wrap keeps class")
		})
	}
}

func TestClassifiedError_Message(t *testing.T) {
	ce := newClassified(ErrorTransient, ErrConnectionLost, "ChunkSource", "PullChunk", "")
	assert.Equal(t, ErrConnectionLost.Error(), ce.Error())

	ce = newClassified(ErrorTransient, ErrConnectionLost, "ChunkSource", "PullChunk", "broker went away")
	assert.Equal(t, "broker went away", ce.Error())
	assert.ErrorIs(t, ce, ErrConnectionLost)
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	policy := DefaultRetryConfig()

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil", nil, 0, false},
		{"transient first attempt", WrapTransient(ErrConnectionLost, "ChunkSource", "Open", "subscribe"), 0, true},
		{"transient last retry", ErrTransportFault, policy.MaxRetries - 1, true},
		{"retries exhausted", ErrTransportFault, policy.MaxRetries, false},
		{"invalid selection", WrapInvalid(ErrInvalidConfig, "ChunkSource", "New", "stream check"), 0, false},
		{"allocation failure", ErrAllocationFailed, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestRetryConfig_RetryableErrorsNarrowPolicy(t *testing.T) {
	policy := DefaultRetryConfig()
	policy.RetryableErrors = []error{ErrConnectionTimeout}

	assert.True(t, policy.ShouldRetry(fmt.Errorf("dial: %w", ErrConnectionTimeout), 0))
	assert.False(t, policy.ShouldRetry(ErrConnectionLost, 0), "transient but not listed")
}

func TestRetryConfig_ToRetryConfig(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    4,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 1.5,
	}.ToRetryConfig()

	assert.Equal(t, 5, cfg.MaxAttempts, "first try plus retries")
	assert.Equal(t, 20*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, time.Second, cfg.MaxDelay)
	assert.Equal(t, 1.5, cfg.Multiplier)
	assert.True(t, cfg.AddJitter)
}

func BenchmarkClassify(b *testing.B) {
	err := fmt.Errorf("pull chunk: %w", ErrTransportFault)
	for i := 0; i < b.N; i++ {
		Classify(err)
	}
}
