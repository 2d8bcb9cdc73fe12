package mirror

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var editTime = time.Date(2023, 12, 19, 12, 0, 0, 0, time.UTC)

func newRetrying(inner Mirror) (*Retrying, *[]time.Duration) {
	r := NewRetrying(inner, RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Second}, log.New(io.Discard, "", 0))
	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return r, &waits
}

func TestMemoryRowLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(func() time.Time { return editTime })

	c, err := m.UpsertCollection(ctx, "projects", Schema{Properties: []Property{
		{Name: "status", Type: PropertySelect, Options: []Option{{Name: "done"}}},
	}})
	require.NoError(t, err)
	p, ok := c.Schema.Property("status")
	require.True(t, ok)
	assert.NotEmpty(t, p.Options[0].ID)

	row, err := m.UpsertRow(ctx, c.ID, Row{RefID: "r1", Fields: map[string]string{"name": "Home"}})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ExternalID)
	assert.Equal(t, editTime, row.LastEditedTime)

	rows, err := m.LoadAllRows(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Home", rows[0].Fields["name"])

	require.NoError(t, m.DeleteRow(ctx, c.ID, row.ExternalID))
	err = m.DeleteRow(ctx, c.ID, row.ExternalID)
	assert.True(t, errors.Is(err, ErrRowNotFound))

	_, err = m.UpsertRow(ctx, c.ID, Row{ExternalID: "missing"})
	assert.True(t, errors.Is(err, ErrRowNotFound))
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(func() time.Time { return editTime })
	c, err := m.UpsertCollection(ctx, "inbox_tasks", Schema{})
	require.NoError(t, err)

	calls := 0
	m.FailWith(func(op string, _ Row) error {
		if op != "load" {
			return nil
		}
		calls++
		if calls < 3 {
			return &TransientError{Op: op, Err: errors.New("503"), RetryAfter: 5 * time.Second}
		}
		return nil
	})

	r, waits := newRetrying(m)
	_, err = r.LoadAllRows(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *waits)
}

func TestRetryingExhaustionIsUnavailable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	c, err := m.UpsertCollection(ctx, "inbox_tasks", Schema{})
	require.NoError(t, err)
	m.FailWith(func(string, Row) error {
		return &TransientError{Op: "x", Err: errors.New("timeout")}
	})

	r, waits := newRetrying(m)
	err = r.DeleteRow(ctx, c.ID, "row")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestAcknowledgedCreateIsNotRetried(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	c, err := m.UpsertCollection(ctx, "inbox_tasks", Schema{})
	require.NoError(t, err)

	calls := 0
	m.FailWith(func(string, Row) error {
		calls++
		return &TransientError{Op: "create", Err: errors.New("reset after write"), Acknowledged: true}
	})

	r, _ := newRetrying(m)
	_, err = r.UpsertRow(ctx, c.ID, Row{RefID: "r1"})
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 1, calls)
}

func TestPermanentErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	c, err := m.UpsertCollection(ctx, "inbox_tasks", Schema{})
	require.NoError(t, err)
	m.FailWith(func(string, Row) error { return &AuthError{Message: "bad token"} })

	r, waits := newRetrying(m)
	_, err = r.LoadAllRows(ctx, c.ID)
	assert.True(t, IsAuthError(err))
	assert.Empty(t, *waits)
}
