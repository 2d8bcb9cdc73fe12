package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/testutil"
	"github.com/nhle/lifeplan/internal/timeline"
)

var now = time.Date(2023, 12, 19, 9, 30, 0, 0, time.UTC)

type seed struct {
	workspace model.Workspace
	project   model.Project
}

func seedWorkspace(t *testing.T, s *store.SQLiteStore) seed {
	t.Helper()
	var out seed
	err := s.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *store.UnitOfWork) error {
		ws, err := model.NewWorkspace("Life", "Europe/Bucharest", model.DefaultFeatures(), model.EventSourceCLI, now)
		if err != nil {
			return err
		}
		if ws, err = uow.Workspaces.Create(ctx, ws); err != nil {
			return err
		}
		p, err := model.NewProject(ws.RefID, "home", "Home", nil, model.EventSourceCLI, now)
		if err != nil {
			return err
		}
		if p, err = uow.Projects.Create(ctx, p); err != nil {
			return err
		}
		if ws, err = uow.Workspaces.Save(ctx, ws.ChangeDefaultProject(p.RefID, model.EventSourceCLI, now)); err != nil {
			return err
		}
		out = seed{workspace: ws, project: p}
		return nil
	})
	require.NoError(t, err)
	return out
}

func userTask(t *testing.T, sd seed, name string) model.InboxTask {
	t.Helper()
	task, err := model.NewInboxTask(model.NewInboxTaskParams{
		WorkspaceRefID:  sd.workspace.RefID,
		InboxTaskFields: model.InboxTaskFields{ProjectRefID: sd.project.RefID, Name: name},
	}, model.EventSourceCLI, now)
	require.NoError(t, err)
	return task
}

func TestCreateAssignsRefIDAndStoresEvents(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	assert.NotEmpty(t, sd.workspace.RefID)
	assert.Equal(t, 2, sd.workspace.Version)
	assert.Empty(t, sd.workspace.PendingEvents())

	var created model.InboxTask
	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		created, err = uow.InboxTasks.Create(ctx, userTask(t, sd, "Buy milk"))
		return err
	}))
	assert.NotEmpty(t, created.RefID)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, 1, created.StoredVersion())

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		loaded, err := uow.InboxTasks.LoadByID(ctx, created.RefID, false)
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", loaded.Name)
		assert.Equal(t, model.StatusNotStarted, loaded.Status)
		assert.Equal(t, model.SourceUser, loaded.Source)
		assert.Equal(t, now, loaded.CreatedTime)

		events, err := uow.InboxTasks.Events(ctx, created.RefID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.EventCreated, events[0].Name)
		assert.Equal(t, 1, events[0].Version)
		assert.True(t, json.Valid(events[0].Payload))

		ws, err := uow.Workspaces.LoadOnly(ctx)
		require.NoError(t, err)
		assert.Equal(t, sd.project.RefID, ws.DefaultProjectRefID)
		assert.True(t, ws.Features.Persons)
		return nil
	}))
}

func TestSaveAppendsEventsAndBumpsVersion(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	var task model.InboxTask
	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		task, err = uow.InboxTasks.Create(ctx, userTask(t, sd, "Read"))
		return err
	}))

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		loaded, err := uow.InboxTasks.LoadByID(ctx, task.RefID, false)
		if err != nil {
			return err
		}
		loaded, err = loaded.ChangeStatus(model.StatusInProgress, model.EventSourceCLI, now.Add(time.Hour))
		if err != nil {
			return err
		}
		loaded, err = loaded.ChangeStatus(model.StatusDone, model.EventSourceCLI, now.Add(2*time.Hour))
		if err != nil {
			return err
		}
		task, err = uow.InboxTasks.Save(ctx, loaded)
		return err
	}))
	assert.Equal(t, 3, task.Version)
	require.NotNil(t, task.CompletedTime)
	assert.Equal(t, now.Add(2*time.Hour), *task.CompletedTime)

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		events, err := uow.InboxTasks.Events(ctx, task.RefID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		for i, ev := range events {
			assert.Equal(t, i+1, ev.Version)
		}
		return uow.VerifyIntegrity(ctx)
	}))
}

func TestStaleSaveIsConcurrencyConflict(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	var task model.InboxTask
	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		task, err = uow.InboxTasks.Create(ctx, userTask(t, sd, "Stale"))
		return err
	}))

	first, err := task.ChangeStatus(model.StatusAccepted, model.EventSourceCLI, now)
	require.NoError(t, err)
	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		_, err := uow.InboxTasks.Save(ctx, first)
		return err
	}))

	second, err := task.ChangeStatus(model.StatusBlocked, model.EventSourceSync, now)
	require.NoError(t, err)
	err = s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		_, err := uow.InboxTasks.Save(ctx, second)
		return err
	})
	assert.True(t, errors.Is(err, store.ErrConcurrencyConflict), "got %v", err)
}

func TestLoadMissingIsNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	err := s.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *store.UnitOfWork) error {
		_, err := uow.Projects.LoadByID(ctx, "missing", true)
		return err
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestArchivedHiddenUnlessAllowed(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		task, err := uow.InboxTasks.Create(ctx, userTask(t, sd, "Old"))
		if err != nil {
			return err
		}
		_, err = uow.InboxTasks.Save(ctx, task.Archive(model.EventSourceCLI, now))
		return err
	}))

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		visible, err := uow.InboxTasks.FindAll(ctx, sd.workspace.RefID, store.FindOptions{})
		require.NoError(t, err)
		assert.Empty(t, visible)

		all, err := uow.InboxTasks.FindAll(ctx, sd.workspace.RefID, store.FindOptions{AllowArchived: true})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].Archived)
		require.NotNil(t, all[0].ArchivedTime)
		return nil
	}))
}

func TestCreateWithUnknownParentFails(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)

	err := s.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *store.UnitOfWork) error {
		task := userTask(t, sd, "Orphan")
		task.ProjectRefID = "no-such-project"
		_, err := uow.InboxTasks.Create(ctx, task)
		return err
	})
	assert.True(t, errors.Is(err, store.ErrParentNotFound), "got %v", err)
}

func TestDuplicateKeysAreRejected(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)

	err := s.WithUnitOfWork(context.Background(), func(ctx context.Context, uow *store.UnitOfWork) error {
		p, err := model.NewProject(sd.workspace.RefID, "home", "Home again", nil, model.EventSourceCLI, now)
		if err != nil {
			return err
		}
		_, err = uow.Projects.Create(ctx, p)
		return err
	})
	assert.True(t, errors.Is(err, store.ErrAlreadyExists), "got %v", err)
}

func TestOneLiveGeneratedTaskPerTimeline(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	gen := model.GeneratedTask{
		ProjectRefID: sd.project.RefID,
		Name:         "Exercise 23:Dec19",
		Timeline:     "2023,Q4,Dec,W51,D2",
		DueDate:      timeline.Date(2023, time.December, 19),
	}
	newTask := func() model.InboxTask {
		task, err := model.NewGeneratedInboxTask(sd.workspace.RefID, model.SourceRecurringTask, "rt-1",
			gen, now, model.EventSourceGenerator, now)
		require.NoError(t, err)
		return task
	}

	var first model.InboxTask
	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		first, err = uow.InboxTasks.Create(ctx, newTask())
		return err
	}))

	err := s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		_, err := uow.InboxTasks.Create(ctx, newTask())
		return err
	})
	assert.True(t, errors.Is(err, store.ErrAlreadyExists), "got %v", err)

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		found, err := uow.InboxTasks.FindByTimeline(ctx, model.SourceRecurringTask, "rt-1", gen.Timeline)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, first.RefID, found[0].RefID)
		assert.Equal(t, model.StatusRecurring, found[0].Status)
		return nil
	}))
}

func TestFailedUnitOfWorkRollsBack(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		if _, err := uow.InboxTasks.Create(ctx, userTask(t, sd, "Never")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		all, err := uow.InboxTasks.FindAll(ctx, sd.workspace.RefID, store.FindOptions{AllowArchived: true})
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	}))
}

func TestRemoveDeletesEntityAndStream(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		task, err := uow.InboxTasks.Create(ctx, userTask(t, sd, "Gone"))
		if err != nil {
			return err
		}

		err = uow.Projects.Remove(ctx, sd.project.RefID)
		assert.True(t, errors.Is(err, store.ErrInUse), "got %v", err)

		if err := uow.InboxTasks.Remove(ctx, task.RefID); err != nil {
			return err
		}
		_, err = uow.InboxTasks.LoadByID(ctx, task.RefID, true)
		assert.True(t, errors.Is(err, store.ErrNotFound))

		events, err := uow.InboxTasks.Events(ctx, task.RefID)
		require.NoError(t, err)
		assert.Empty(t, events)
		return uow.VerifyIntegrity(ctx)
	}))
}

func TestRecurringTaskRoundTripsGenParams(t *testing.T) {
	s := testutil.NewTestStore(t)
	sd := seedWorkspace(t, s)
	ctx := context.Background()

	day, dueDay := 2, 5
	hard := model.DifficultyHard
	rule := "even"
	fields := model.RecurringTaskFields{
		ProjectRefID: sd.project.RefID,
		Name:         "Exercise",
		Type:         model.RecurringTaskTypeHabit,
		GenParams: model.GenParams{
			Period:     timeline.Weekly,
			Eisen:      []model.Eisen{model.EisenImportant},
			Difficulty: &hard,
		},
		SkipRule:    &rule,
		StartAtDate: timeline.Date(2023, time.January, 1),
	}
	fields.GenParams.ActionableFromDay = &day
	fields.GenParams.DueAtDay = &dueDay

	require.NoError(t, s.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		rt, err := model.NewRecurringTask(sd.workspace.RefID, fields, model.EventSourceCLI, now)
		if err != nil {
			return err
		}
		rt, err = uow.RecurringTasks.Create(ctx, rt)
		if err != nil {
			return err
		}
		loaded, err := uow.RecurringTasks.LoadByID(ctx, rt.RefID, false)
		require.NoError(t, err)
		assert.Equal(t, rt.Fields(), loaded.Fields())
		return nil
	}))
}

func TestExternalLinks(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.GetExternalCollection(ctx, "inbox_tasks")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.UpsertExternalCollection(ctx, model.ExternalCollection{
		Key: "inbox_tasks", ExternalID: "col-1", EntityType: model.EntityInboxTask,
		Schema: json.RawMessage(`{"name":"text"}`), CreatedAt: now, UpdatedAt: now,
	}))
	c, err := s.GetExternalCollection(ctx, "inbox_tasks")
	require.NoError(t, err)
	assert.Equal(t, "col-1", c.ExternalID)
	assert.JSONEq(t, `{"name":"text"}`, string(c.Schema))

	link := model.ExternalLink{
		CollectionKey: "inbox_tasks", EntityType: model.EntityInboxTask,
		RefID: "t-1", ExternalID: "row-1", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.UpsertExternalLink(ctx, link))
	link.ExternalID = "row-2"
	require.NoError(t, s.UpsertExternalLink(ctx, link))

	links, err := s.GetExternalLinks(ctx, "inbox_tasks")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "row-2", links[0].ExternalID)

	require.NoError(t, s.DeleteExternalLinksByRefID(ctx, "t-1"))
	links, err = s.GetExternalLinks(ctx, "inbox_tasks")
	require.NoError(t, err)
	assert.Empty(t, links)
}
