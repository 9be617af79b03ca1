package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
)

func newByteReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// circuitMaxFailures and circuitResetTimeout bound how many consecutive
// transient failures a RetryingAdapter tolerates before it fails fast
// instead of continuing to hammer a degraded remote with retries.
const (
	circuitMaxFailures  = 5
	circuitResetTimeout = 30 * time.Second
)

// RetryingAdapter wraps another Adapter and retries any failed operation,
// whatever the error, using bounded exponential backoff. A circuit breaker
// counts only transient I/O failures and trips after sustained ones, so a
// degraded remote is failed fast instead of retried indefinitely.
type RetryingAdapter struct {
	inner   Adapter
	cfg     kwerrors.RetryConfig
	breaker *kwerrors.CircuitBreaker
}

// NewRetrying wraps inner with cfg's backoff policy.
func NewRetrying(inner Adapter, cfg kwerrors.RetryConfig) *RetryingAdapter {
	return &RetryingAdapter{
		inner: inner,
		cfg:   cfg,
		breaker: kwerrors.NewCircuitBreaker("storage",
			kwerrors.WithMaxFailures(circuitMaxFailures),
			kwerrors.WithResetTimeout(circuitResetTimeout)),
	}
}

// guard runs fn (one attempt of an inner Adapter call) behind the circuit
// breaker: rejected immediately while open, and only transient IO failures
// count against the breaker's consecutive-failure count (a permanent
// error, e.g. not-found, says nothing about the remote's health).
func guard[T any](r *RetryingAdapter, fn func() (T, error)) (T, error) {
	if !r.breaker.Allow() {
		var zero T
		return zero, kwerrors.CircuitOpenError(r.breaker.Name())
	}
	result, err := fn()
	if err != nil {
		if kwerrors.IsRetryable(err) {
			r.breaker.RecordFailure()
		}
		return result, err
	}
	r.breaker.RecordSuccess()
	return result, nil
}

func (r *RetryingAdapter) Head(ctx context.Context, path string) (ObjectInfo, error) {
	return kwerrors.RetryWithResult(ctx, r.cfg, func() (ObjectInfo, error) {
		return guard(r, func() (ObjectInfo, error) { return r.inner.Head(ctx, path) })
	})
}

func (r *RetryingAdapter) Get(ctx context.Context, path string, offset int64, length int64) ([]byte, error) {
	return kwerrors.RetryWithResult(ctx, r.cfg, func() ([]byte, error) {
		return guard(r, func() ([]byte, error) { return r.inner.Get(ctx, path, offset, length) })
	})
}

func (r *RetryingAdapter) Put(ctx context.Context, path string, body io.Reader) error {
	// Put consumes body; buffer it up front so a retry can re-send it.
	data, err := io.ReadAll(body)
	if err != nil {
		return kwerrors.IoError("failed to buffer body for retry", err, false)
	}
	return kwerrors.Retry(ctx, r.cfg, func() error {
		_, err := guard(r, func() (struct{}, error) { return struct{}{}, r.inner.Put(ctx, path, newByteReader(data)) })
		return err
	})
}

func (r *RetryingAdapter) Exists(ctx context.Context, path string) (bool, error) {
	return kwerrors.RetryWithResult(ctx, r.cfg, func() (bool, error) {
		return guard(r, func() (bool, error) { return r.inner.Exists(ctx, path) })
	})
}
