package recurrence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/recurrence"
	"github.com/nhle/lifeplan/internal/schedule"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/testutil"
	"github.com/nhle/lifeplan/internal/timeline"
)

var rightNow = time.Date(2023, 12, 19, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *store.SQLiteStore
	clock     *testutil.Clock
	engine    *recurrence.Engine
	workspace model.Workspace
	project   model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: testutil.NewTestStore(t),
		clock: testutil.NewClock(rightNow),
	}
	f.engine = recurrence.New(f.store, testutil.Logger(), f.clock.Now)
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		ws, err := model.NewWorkspace("Life", "UTC", model.DefaultFeatures(), model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		if ws, err = uow.Workspaces.Create(ctx, ws); err != nil {
			return err
		}
		p, err := model.NewProject(ws.RefID, "home", "Home", nil, model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		if f.project, err = uow.Projects.Create(ctx, p); err != nil {
			return err
		}
		f.workspace, err = uow.Workspaces.Save(ctx, ws.ChangeDefaultProject(f.project.RefID, model.EventSourceCLI, f.clock.Now()))
		return err
	})
	return f
}

func (f *fixture) do(t *testing.T, fn func(ctx context.Context, uow *store.UnitOfWork) error) {
	t.Helper()
	require.NoError(t, f.store.WithUnitOfWork(context.Background(), fn))
}

func (f *fixture) recurringTask(t *testing.T, fields model.RecurringTaskFields) model.RecurringTask {
	t.Helper()
	if fields.ProjectRefID == "" {
		fields.ProjectRefID = f.project.RefID
	}
	if fields.Type == "" {
		fields.Type = model.RecurringTaskTypeHabit
	}
	fields.StartAtDate = timeline.Date(2023, 1, 1)
	var out model.RecurringTask
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		rt, err := model.NewRecurringTask(f.workspace.RefID, fields, model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		out, err = uow.RecurringTasks.Create(ctx, rt)
		return err
	})
	return out
}

func (f *fixture) tasks(t *testing.T) []model.InboxTask {
	t.Helper()
	var out []model.InboxTask
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		out, err = uow.InboxTasks.FindAll(ctx, f.workspace.RefID, store.FindOptions{AllowArchived: true})
		return err
	})
	return out
}

func (f *fixture) generate(t *testing.T, req recurrence.Request) recurrence.Result {
	t.Helper()
	if req.RightNow.IsZero() {
		req.RightNow = rightNow
	}
	res, err := f.engine.Generate(context.Background(), f.workspace, req, nil)
	require.NoError(t, err)
	return res
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func weekly(name string) model.RecurringTaskFields {
	return model.RecurringTaskFields{
		Name: name,
		GenParams: model.GenParams{
			Period: timeline.Weekly,
			Offsets: schedule.Offsets{
				ActionableFromDay: intPtr(3),
				DueAtDay:          intPtr(5),
			},
		},
	}
}

func TestDailyEvenSkipProducesNoTask(t *testing.T) {
	f := newFixture(t)
	f.recurringTask(t, model.RecurringTaskFields{
		Name:      "Stretch",
		GenParams: model.GenParams{Period: timeline.Daily},
		SkipRule:  strPtr("even"),
	})

	res := f.generate(t, recurrence.Request{})

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.tasks(t))
}

func TestWeeklyTaskIsMaterialized(t *testing.T) {
	f := newFixture(t)
	rt := f.recurringTask(t, weekly("A task"))

	rec := &progress.Recorder{}
	res, err := f.engine.Generate(context.Background(), f.workspace, recurrence.Request{RightNow: rightNow}, progress.New(rec))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, rec.Count(progress.ActionCreating, model.EntityInboxTask))

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "A task 23:W51", task.Name)
	assert.Equal(t, model.StatusRecurring, task.Status)
	assert.Equal(t, model.SourceRecurringTask, task.Source)
	require.NotNil(t, task.SourceRefID)
	assert.Equal(t, rt.RefID, *task.SourceRefID)
	require.NotNil(t, task.RecurringTimeline)
	assert.Equal(t, "2023,Q4,Dec,W51", *task.RecurringTimeline)
	require.NotNil(t, task.ActionableDate)
	assert.Equal(t, timeline.Date(2023, 12, 20), *task.ActionableDate)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, timeline.Date(2023, 12, 22), *task.DueDate)
	require.NotNil(t, task.AcceptedTime)
	assert.True(t, task.AcceptedTime.Equal(rightNow))
}

func TestGenerationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.recurringTask(t, weekly("Water plants"))

	first := f.generate(t, recurrence.Request{})
	f.clock.Advance(time.Hour)
	second := f.generate(t, recurrence.Request{})
	third := f.generate(t, recurrence.Request{SyncEvenIfNotModified: true})

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, recurrence.Result{Skipped: 1}, second)
	assert.Equal(t, recurrence.Result{Skipped: 1}, third)
	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Version)
}

func TestModifiedRecurrenceRealignsTask(t *testing.T) {
	f := newFixture(t)
	rt := f.recurringTask(t, weekly("Water plants"))
	f.generate(t, recurrence.Request{})

	f.clock.Advance(time.Hour)
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		fields := rt.Fields()
		fields.Name = "Water the plants"
		updated, err := rt.Update(fields, model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		_, err = uow.RecurringTasks.Save(ctx, updated)
		return err
	})

	res := f.generate(t, recurrence.Request{})
	assert.Equal(t, 1, res.Updated)

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Water the plants 23:W51", tasks[0].Name)
	assert.Equal(t, 2, tasks[0].Version)
}

func TestArchivedTaskIsNotResurrected(t *testing.T) {
	f := newFixture(t)
	f.recurringTask(t, weekly("Water plants"))
	f.generate(t, recurrence.Request{})

	task := f.tasks(t)[0]
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		_, err := uow.InboxTasks.Save(ctx, task.Archive(model.EventSourceCLI, f.clock.Now()))
		return err
	})

	res := f.generate(t, recurrence.Request{SyncEvenIfNotModified: true})
	assert.Equal(t, 0, res.Created)

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Archived)
}

func TestVacationSuppressesUnlessMustDo(t *testing.T) {
	f := newFixture(t)
	f.recurringTask(t, weekly("Optional"))
	mustDo := weekly("Mandatory")
	mustDo.MustDo = true
	f.recurringTask(t, mustDo)
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		v, err := model.NewVacation(f.workspace.RefID, "Holidays",
			timeline.Date(2023, 12, 16), timeline.Date(2023, 12, 31), model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		_, err = uow.Vacations.Create(ctx, v)
		return err
	})

	res := f.generate(t, recurrence.Request{})

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Mandatory 23:W51", tasks[0].Name)
}

func TestPeriodFilterAndEndDate(t *testing.T) {
	f := newFixture(t)
	f.recurringTask(t, weekly("Weekly"))
	ended := model.RecurringTaskFields{
		Name:      "Ended",
		GenParams: model.GenParams{Period: timeline.Monthly},
	}
	end := timeline.Date(2023, 11, 30)
	ended.EndAtDate = &end
	f.recurringTask(t, ended)

	res := f.generate(t, recurrence.Request{Periods: []timeline.Period{timeline.Monthly}})
	assert.Equal(t, recurrence.Result{Skipped: 2}, res)
	assert.Empty(t, f.tasks(t))
}

func TestPersonAndMetricTasksGoToDefaultProject(t *testing.T) {
	f := newFixture(t)
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		birthday, err := model.ParseBirthday("01-03")
		if err != nil {
			return err
		}
		p, err := model.NewPerson(f.workspace.RefID, "Ana", nil, &birthday, 14, model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		if _, err := uow.Persons.Create(ctx, p); err != nil {
			return err
		}
		m, err := model.NewMetric(f.workspace.RefID, "weight", "Weight",
			&model.GenParams{Period: timeline.Weekly}, model.EventSourceCLI, f.clock.Now())
		if err != nil {
			return err
		}
		_, err = uow.Metrics.Create(ctx, m)
		return err
	})

	res := f.generate(t, recurrence.Request{Targets: []recurrence.Target{recurrence.TargetMetrics, recurrence.TargetPRM}})
	assert.Equal(t, 2, res.Created)

	byName := map[string]model.InboxTask{}
	for _, task := range f.tasks(t) {
		assert.Equal(t, f.project.RefID, task.ProjectRefID)
		byName[task.Name] = task
	}
	birthday, ok := byName["Wish happy birthday to Ana 23"]
	require.True(t, ok)
	assert.Equal(t, model.SourcePersonBirthday, birthday.Source)
	assert.Equal(t, timeline.Date(2023, 1, 3), *birthday.DueDate)
	assert.Equal(t, timeline.Date(2023, 1, 1), *birthday.ActionableDate)

	_, ok = byName["Collect value for metric Weight 23:W51"]
	assert.True(t, ok)
}

func TestUnknownFiltersAreRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Generate(context.Background(), f.workspace, recurrence.Request{
		RightNow: rightNow,
		Filters:  recurrence.Filters{ProjectKeys: []string{"nope"}},
	}, nil)
	assert.ErrorIs(t, err, model.ErrUnknownFilter)

	_, err = f.engine.Generate(context.Background(), f.workspace, recurrence.Request{
		RightNow: rightNow,
		Filters:  recurrence.Filters{RecurringTaskRefIDs: []string{"missing"}},
	}, nil)
	assert.ErrorIs(t, err, model.ErrUnknownFilter)

	_, err = f.engine.Generate(context.Background(), f.workspace, recurrence.Request{
		RightNow: rightNow,
		Targets:  []recurrence.Target{"calendar"},
	}, nil)
	assert.ErrorIs(t, err, model.ErrUnknownFilter)
}
