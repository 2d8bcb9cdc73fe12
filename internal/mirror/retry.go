package mirror

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// RetryPolicy bounds how the Retrying decorator retries transient failures.
type RetryPolicy struct {
	// MaxAttempts includes the first call.
	MaxAttempts int

	// BaseBackoff is the first delay; it doubles on every attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration

	// Timeout bounds each individual call; zero disables it.
	Timeout time.Duration
}

// DefaultRetryPolicy is three attempts starting at 500ms, 30s per call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Retrying wraps a mirror with per-call timeouts and exponential backoff.
// Reads, updates and deletes are retried on any TransientError. Creations
// are retried only while the failure was not acknowledged by the mirror,
// so a row is never created twice.
type Retrying struct {
	inner  Mirror
	policy RetryPolicy
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrying decorates inner with policy.
func NewRetrying(inner Mirror, policy RetryPolicy, logger *log.Logger) *Retrying {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retrying{inner: inner, policy: policy, logger: logger, sleep: sleepContext}
}

func (r *Retrying) UpsertCollection(ctx context.Context, key string, schema Schema) (Collection, error) {
	var out Collection
	err := r.do(ctx, "upsert collection "+key, true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.UpsertCollection(ctx, key, schema)
		return err
	})
	return out, err
}

func (r *Retrying) LoadAllRows(ctx context.Context, collectionID string) ([]Row, error) {
	var out []Row
	err := r.do(ctx, "load rows", true, func(ctx context.Context) error {
		var err error
		out, err = r.inner.LoadAllRows(ctx, collectionID)
		return err
	})
	return out, err
}

func (r *Retrying) UpsertRow(ctx context.Context, collectionID string, row Row) (Row, error) {
	var out Row
	op := "update row " + row.ExternalID
	idempotent := row.ExternalID != ""
	if !idempotent {
		op = "create row for " + row.RefID
	}
	err := r.do(ctx, op, idempotent, func(ctx context.Context) error {
		var err error
		out, err = r.inner.UpsertRow(ctx, collectionID, row)
		return err
	})
	return out, err
}

func (r *Retrying) DeleteRow(ctx context.Context, collectionID, externalID string) error {
	return r.do(ctx, "delete row "+externalID, true, func(ctx context.Context) error {
		return r.inner.DeleteRow(ctx, collectionID, externalID)
	})
}

func (r *Retrying) do(ctx context.Context, op string, idempotent bool, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		err := r.call(ctx, call)
		if err == nil {
			return nil
		}

		var te *TransientError
		if !errors.As(err, &te) {
			return err
		}
		if !idempotent && te.Acknowledged {
			return fmt.Errorf("%w: %s may have been applied: %v", ErrUnavailable, op, err)
		}
		lastErr = err
		if attempt == r.policy.MaxAttempts {
			break
		}

		wait := r.backoff(attempt, te.RetryAfter)
		r.logger.Printf("mirror: %s failed (attempt %d/%d), retrying in %s: %v",
			op, attempt, r.policy.MaxAttempts, wait, err)
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrUnavailable, op, r.policy.MaxAttempts, lastErr)
}

func (r *Retrying) call(ctx context.Context, call func(ctx context.Context) error) error {
	if r.policy.Timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()
	err := call(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return &TransientError{Op: "call", Err: err, Acknowledged: true}
	}
	return err
}

func (r *Retrying) backoff(attempt int, retryAfter time.Duration) time.Duration {
	wait := r.policy.BaseBackoff * time.Duration(1<<uint(attempt-1))
	if retryAfter > wait {
		wait = retryAfter
	}
	if r.policy.MaxBackoff > 0 && wait > r.policy.MaxBackoff {
		wait = r.policy.MaxBackoff
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
