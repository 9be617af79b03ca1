package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
)

// testAdapter fails Get a fixed number of times before succeeding, to
// exercise RetryingAdapter's backoff loop.
type testAdapter struct {
	failuresLeft int
	getCalls     int
}

func (f *testAdapter) Head(ctx context.Context, path string) (ObjectInfo, error) {
	return ObjectInfo{}, nil
}

func (f *testAdapter) Get(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	f.getCalls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("transient failure")
	}
	return []byte("ok"), nil
}

func (f *testAdapter) Put(ctx context.Context, path string, r io.Reader) error {
	return nil
}

func (f *testAdapter) Exists(ctx context.Context, path string) (bool, error) {
	return true, nil
}

func TestRetryingAdapter_Get_RetriesOnTransientFailure(t *testing.T) {
	inner := &testAdapter{failuresLeft: 2}
	cfg := kwerrors.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2, Jitter: false}
	r := NewRetrying(inner, cfg)

	data, err := r.Get(context.Background(), "x", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, 3, inner.getCalls)
}

func TestRetryingAdapter_Get_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &testAdapter{failuresLeft: 10}
	cfg := kwerrors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2, Jitter: false}
	r := NewRetrying(inner, cfg)

	_, err := r.Get(context.Background(), "x", 0, -1)
	assert.Error(t, err)
	assert.Equal(t, 3, inner.getCalls) // initial + 2 retries
}

// transientAdapter always fails Get with a retryable (transient) KwError,
// to exercise the circuit breaker tripping.
type transientAdapter struct {
	calls int
}

func (f *transientAdapter) Head(ctx context.Context, path string) (ObjectInfo, error) {
	return ObjectInfo{}, nil
}

func (f *transientAdapter) Get(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	f.calls++
	return nil, kwerrors.IoError("boom", errors.New("boom"), true)
}

func (f *transientAdapter) Put(ctx context.Context, path string, r io.Reader) error {
	return nil
}

func (f *transientAdapter) Exists(ctx context.Context, path string) (bool, error) {
	return true, nil
}

func TestRetryingAdapter_Get_CircuitOpensAfterSustainedTransientFailures(t *testing.T) {
	inner := &transientAdapter{}
	cfg := kwerrors.RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, Jitter: false}
	r := NewRetrying(inner, cfg)

	for i := 0; i < circuitMaxFailures; i++ {
		_, err := r.Get(context.Background(), "x", 0, -1)
		assert.Error(t, err)
	}
	require.Equal(t, circuitMaxFailures, inner.calls)

	_, err := r.Get(context.Background(), "x", 0, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kwerrors.ErrCircuitOpen))
	assert.Equal(t, circuitMaxFailures, inner.calls, "tripped circuit should fail fast without calling the inner adapter")
}
