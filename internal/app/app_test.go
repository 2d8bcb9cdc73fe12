package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/credential"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/recurrence"
	"github.com/nhle/lifeplan/internal/store"
	lpsync "github.com/nhle/lifeplan/internal/sync"
	"github.com/nhle/lifeplan/internal/testutil"
	"github.com/nhle/lifeplan/internal/timeline"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*app.App, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(t0)
	cfg := model.DefaultAppConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "lifeplan.db")
	cfg.Mirror.Kind = model.MirrorKindMemory

	a, err := app.Open(cfg, app.Options{
		Logger: testutil.Logger(),
		Now:    clock.Now,
		Mirror: mirror.NewMemory(clock.Now),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, clock
}

func initWorkspace(t *testing.T, a *app.App, features model.Features) model.Workspace {
	t.Helper()
	ws, _, err := a.InitWorkspace(context.Background(), app.InitRequest{Name: "Life", Features: features})
	require.NoError(t, err)
	return ws
}

func TestInitWorkspace(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	ws, project, err := a.InitWorkspace(ctx, app.InitRequest{Name: "Life", Features: model.DefaultFeatures()})
	require.NoError(t, err)
	assert.Equal(t, "UTC", ws.Timezone)
	assert.Equal(t, "inbox", project.Key)
	assert.Equal(t, project.RefID, ws.DefaultProjectRefID)

	got, err := a.Workspace(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ws.RefID, got.RefID)

	got, err = a.Workspace(ctx, "Life")
	require.NoError(t, err)
	assert.Equal(t, ws.RefID, got.RefID)

	_, err = a.Workspace(ctx, "Work")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = a.InitWorkspace(ctx, app.InitRequest{Name: "Life"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntityCommandsFeedGeneration(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	ws := initWorkspace(t, a, model.DefaultFeatures())

	_, err := a.CreateProject(ctx, ws, "home", "Home", "")
	require.NoError(t, err)
	rt, err := a.CreateRecurringTask(ctx, ws, "home", model.RecurringTaskFields{
		Name:      "Water the plants",
		Type:      model.RecurringTaskTypeChore,
		GenParams: model.GenParams{Period: timeline.Weekly},
	})
	require.NoError(t, err)
	assert.Equal(t, timeline.Date(2024, 3, 4), rt.StartAtDate)

	res, err := a.Recurrence.Generate(ctx, ws, recurrence.Request{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	tasks, err := a.InboxTasks(ctx, ws, false)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Water the plants 24:W10", tasks[0].Name)

	done, err := a.ChangeInboxTaskStatus(ctx, tasks[0].RefID, model.StatusDone)
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedTime)

	_, err = a.SuspendRecurringTask(ctx, rt.RefID, true)
	require.NoError(t, err)
	res, err = a.Recurrence.Generate(ctx, ws, recurrence.Request{}, nil)
	require.NoError(t, err)
	assert.Equal(t, recurrence.Result{Skipped: 1}, res)
}

func TestBigPlanTasksLandInThePlanProject(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	ws := initWorkspace(t, a, model.DefaultFeatures())

	_, err := a.CreateProject(ctx, ws, "house", "House", "")
	require.NoError(t, err)
	bp, err := a.CreateBigPlan(ctx, ws, "house", model.BigPlanFields{Name: "Paint the kitchen"})
	require.NoError(t, err)

	task, err := a.CreateInboxTask(ctx, ws, "", bp.RefID, model.InboxTaskFields{Name: "Buy paint"})
	require.NoError(t, err)
	assert.Equal(t, model.SourceBigPlan, task.Source)
	assert.Equal(t, bp.ProjectRefID, task.ProjectRefID)
	require.NotNil(t, task.SourceRefID)
	assert.Equal(t, bp.RefID, *task.SourceRefID)

	bp, err = a.ChangeBigPlanStatus(ctx, bp.RefID, model.StatusInProgress)
	require.NoError(t, err)
	assert.NotNil(t, bp.WorkingTime)
}

func TestDisabledFeatures(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	ws := initWorkspace(t, a, model.Features{})

	_, err := a.CreateMetric(ctx, ws, "weight", "Weight", nil)
	assert.ErrorIs(t, err, app.ErrFeatureDisabled)
	_, err = a.CreatePerson(ctx, ws, "Ana", nil, nil, 0)
	assert.ErrorIs(t, err, app.ErrFeatureDisabled)
	_, err = a.CreateVacation(ctx, ws, "Beach", t0, t0.AddDate(0, 0, 7))
	assert.ErrorIs(t, err, app.ErrFeatureDisabled)
	_, err = a.CreateBigPlan(ctx, ws, "", model.BigPlanFields{Name: "Move"})
	assert.ErrorIs(t, err, app.ErrFeatureDisabled)
}

func TestGCRemovesExpiredArchivedTasksAndLinks(t *testing.T) {
	a, clock := newTestApp(t)
	ctx := context.Background()
	ws := initWorkspace(t, a, model.DefaultFeatures())

	old, err := a.CreateInboxTask(ctx, ws, "", "", model.InboxTaskFields{Name: "Old"})
	require.NoError(t, err)
	fresh, err := a.CreateInboxTask(ctx, ws, "", "", model.InboxTaskFields{Name: "Fresh"})
	require.NoError(t, err)
	_, err = a.CreateInboxTask(ctx, ws, "", "", model.InboxTaskFields{Name: "Open"})
	require.NoError(t, err)

	_, err = a.Reconciler.SyncAll(ctx, ws, []string{lpsync.KeyInboxTasks}, lpsync.Options{}, nil)
	require.NoError(t, err)
	linked, err := a.Index.LinkedExternalIDs(ctx, lpsync.KeyInboxTasks)
	require.NoError(t, err)
	require.Len(t, linked, 3)

	_, err = a.ArchiveInboxTask(ctx, old.RefID)
	require.NoError(t, err)
	clock.Advance(20 * 24 * time.Hour)
	_, err = a.ArchiveInboxTask(ctx, fresh.RefID)
	require.NoError(t, err)
	clock.Advance(11 * 24 * time.Hour)

	rec := &progress.Recorder{}
	res, err := a.GC(ctx, ws, -1, progress.New(rec))
	require.NoError(t, err)
	assert.Equal(t, app.GCResult{Removed: 1}, res)
	assert.Equal(t, 1, rec.Count(progress.ActionRemoving, model.EntityInboxTask))

	tasks, err := a.InboxTasks(ctx, ws, true)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.NotEqual(t, old.RefID, task.RefID)
	}

	linked, err = a.Index.LinkedExternalIDs(ctx, lpsync.KeyInboxTasks)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
	assert.NotContains(t, linked, old.RefID)
}

func TestVerifyAndRemove(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	ws := initWorkspace(t, a, model.DefaultFeatures())

	v, err := a.CreateVacation(ctx, ws, "Beach", t0, t0.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NoError(t, a.Verify(ctx))

	require.NoError(t, a.Remove(ctx, model.EntityVacation, v.RefID, nil))
	vacations, err := a.Vacations(ctx, ws)
	require.NoError(t, err)
	assert.Empty(t, vacations)

	err = a.Remove(ctx, model.EntityVacation, v.RefID, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = a.Remove(ctx, model.EntityWorkspace, ws.RefID, nil)
	assert.ErrorIs(t, err, model.ErrUnknownFilter)
	require.NoError(t, a.Verify(ctx))
}

func TestNewMirror(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "mirror-token", Data: []byte("secret")}})
	creds := credential.Store{Open: func() (keyring.Keyring, error) { return ring, nil }}
	cfg := model.DefaultAppConfig().Mirror

	cfg.Kind = model.MirrorKindMemory
	m, err := app.NewMirror(cfg, creds, testutil.Logger(), nil)
	require.NoError(t, err)
	assert.IsType(t, &mirror.Memory{}, m)

	cfg.Kind = model.MirrorKindFile
	cfg.Path = filepath.Join(t.TempDir(), "mirror.yaml")
	m, err = app.NewMirror(cfg, creds, testutil.Logger(), nil)
	require.NoError(t, err)
	assert.IsType(t, &mirror.Retrying{}, m)

	cfg.Kind = model.MirrorKindHTTP
	_, err = app.NewMirror(cfg, creds, testutil.Logger(), nil)
	assert.Error(t, err)
	cfg.BaseURL = "http://127.0.0.1:1"
	m, err = app.NewMirror(cfg, creds, testutil.Logger(), nil)
	require.NoError(t, err)
	assert.IsType(t, &mirror.Retrying{}, m)

	cfg.Kind = "notion"
	_, err = app.NewMirror(cfg, creds, testutil.Logger(), nil)
	assert.Error(t, err)
}
