package extindex_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/extindex"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/testutil"
)

func statusSchema(options ...string) mirror.Schema {
	opts := make([]mirror.Option, len(options))
	for i, o := range options {
		opts[i] = mirror.Option{Name: o}
	}
	return mirror.Schema{Properties: []mirror.Property{
		{Name: "name", Type: mirror.PropertyText},
		{Name: "status", Type: mirror.PropertySelect, Options: opts},
	}}
}

func TestMergeSchemaKeepsExternalOrderAndIDs(t *testing.T) {
	known := mirror.Schema{Properties: []mirror.Property{
		{Name: "status", Type: mirror.PropertySelect, Options: []mirror.Option{
			{ID: "o2", Name: "done"},
			{ID: "o1", Name: "not-started"},
			{ID: "o9", Name: "legacy"},
		}},
		{Name: "name", Type: mirror.PropertyText},
		{Name: "obsolete", Type: mirror.PropertyText},
	}}
	desired := statusSchema("not-started", "in-progress", "done")
	desired.Properties = append(desired.Properties, mirror.Property{Name: "due", Type: mirror.PropertyDate})

	got := extindex.MergeSchema(known, desired)

	require.Len(t, got.Properties, 3)
	assert.Equal(t, "status", got.Properties[0].Name)
	assert.Equal(t, "name", got.Properties[1].Name)
	assert.Equal(t, "due", got.Properties[2].Name)
	assert.Equal(t, []mirror.Option{
		{ID: "o2", Name: "done"},
		{ID: "o1", Name: "not-started"},
		{ID: "o9", Name: "legacy"},
		{Name: "in-progress"},
	}, got.Properties[0].Options)
}

func TestUpsertCollectionCachesMirrorIdentity(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	idx := extindex.New(testutil.NewTestStore(t), clock.Now)
	m := mirror.NewMemory(clock.Now)

	w := idx.Acquire("inbox_tasks")
	first, err := w.UpsertCollection(ctx, m, model.EntityInboxTask, statusSchema("todo", "done"))
	require.NoError(t, err)
	status, ok := first.Schema.Property("status")
	require.True(t, ok)
	doneID := status.Options[1].ID
	require.NotEmpty(t, doneID)

	second, err := w.UpsertCollection(ctx, m, model.EntityInboxTask, statusSchema("done", "todo", "blocked"))
	require.NoError(t, err)
	w.Release()
	assert.Equal(t, first.ID, second.ID)

	status, ok = second.Schema.Property("status")
	require.True(t, ok)
	require.Len(t, status.Options, 3)
	assert.Equal(t, "done", status.Options[1].Name)
	assert.Equal(t, doneID, status.Options[1].ID)
	assert.Equal(t, "blocked", status.Options[2].Name)

	cached, found, err := idx.Collection(ctx, "inbox_tasks")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, cached.ExternalID)
	assert.Equal(t, model.EntityInboxTask, cached.EntityType)
}

func TestLinks(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	idx := extindex.New(testutil.NewTestStore(t), clock.Now)
	m := mirror.NewMemory(clock.Now)

	w := idx.Acquire("projects")
	defer w.Release()
	_, err := w.UpsertCollection(ctx, m, model.EntityProject, mirror.Schema{})
	require.NoError(t, err)

	require.NoError(t, w.UpsertItem(ctx, model.EntityProject, "p1", "row-1"))
	require.NoError(t, w.QuickLink(ctx, model.EntityProject, "p2", "row-2"))
	require.NoError(t, w.UpsertItem(ctx, model.EntityProject, "p1", "row-3"))

	linked, err := w.LinkedExternalIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p1": "row-3", "p2": "row-2"}, linked)

	require.NoError(t, w.HardRemove(ctx, "p1"))
	linked, err = w.LinkedExternalIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p2": "row-2"}, linked)

	require.NoError(t, w.DropAllItems(ctx))
	linked, err = w.LinkedExternalIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestAcquireSerializesWriters(t *testing.T) {
	idx := extindex.New(testutil.NewTestStore(t), nil)

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := idx.Acquire("big_plans")
			defer w.Release()
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)

	// Other keys are independent.
	a := idx.Acquire("big_plans")
	b := idx.Acquire("projects")
	b.Release()
	a.Release()
	a.Release()
}
