package report_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/report"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/testutil"
	"github.com/nhle/lifeplan/internal/timeline"
)

var rightNow = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

func at(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 9, 0, 0, 0, time.UTC)
}

func TestStreaksOfMixedSequence(t *testing.T) {
	s := report.ComputeStreaks([]model.InboxTaskStatus{
		model.StatusDone, model.StatusDone, model.StatusNotDone, model.StatusDone, model.StatusDone,
	})

	assert.Equal(t, 2, s.Longest)
	assert.Equal(t, 2, s.Current)
	assert.Equal(t, 5, s.OneSkipLongest)
	assert.Equal(t, map[int]int{5: 1}, s.OneSkipHistogram)
	assert.Equal(t, map[int]int{2: 2}, s.Histogram)
}

func TestPendingTailDoesNotBreakCurrentStreak(t *testing.T) {
	s := report.ComputeStreaks([]model.InboxTaskStatus{
		model.StatusNotDone, model.StatusDone, model.StatusDone, model.StatusRecurring,
	})
	assert.Equal(t, 2, s.Current)

	s = report.ComputeStreaks([]model.InboxTaskStatus{model.StatusDone, model.StatusNotDone, model.StatusNotDone, model.StatusDone})
	assert.Equal(t, 1, s.OneSkipLongest)
	assert.Equal(t, map[int]int{1: 2}, s.OneSkipHistogram)
}

func TestStreaksAreMonotoneUnderAppendedDone(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			seq := make([]model.InboxTaskStatus, n)
			for i := range seq {
				seq[i] = model.StatusNotDone
				if mask&(1<<i) != 0 {
					seq[i] = model.StatusDone
				}
			}
			before := report.ComputeStreaks(seq)
			after := report.ComputeStreaks(append(seq, model.StatusDone))

			assert.GreaterOrEqual(t, after.Longest, before.Longest, "seq %v", seq)
			assert.Equal(t, before.Current+1, after.Current, "seq %v", seq)
			assert.GreaterOrEqual(t, after.OneSkipLongest, before.OneSkipLongest, "seq %v", seq)
		}
	}
}

type fixture struct {
	store     *store.SQLiteStore
	engine    *report.Engine
	workspace model.Workspace
	project   model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: testutil.NewTestStore(t)}
	f.engine = report.New(f.store, testutil.Logger(), func() time.Time { return rightNow })
	start := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		ws, err := model.NewWorkspace("Life", "UTC", model.DefaultFeatures(), model.EventSourceCLI, start)
		if err != nil {
			return err
		}
		if ws, err = uow.Workspaces.Create(ctx, ws); err != nil {
			return err
		}
		p, err := model.NewProject(ws.RefID, "home", "Home", nil, model.EventSourceCLI, start)
		if err != nil {
			return err
		}
		if f.project, err = uow.Projects.Create(ctx, p); err != nil {
			return err
		}
		f.workspace, err = uow.Workspaces.Save(ctx, ws.ChangeDefaultProject(f.project.RefID, model.EventSourceCLI, start))
		return err
	})
	return f
}

func (f *fixture) do(t *testing.T, fn func(ctx context.Context, uow *store.UnitOfWork) error) {
	t.Helper()
	require.NoError(t, f.store.WithUnitOfWork(context.Background(), fn))
}

// userTask creates a task at created and moves it to status at changed.
func (f *fixture) userTask(t *testing.T, name string, created time.Time, status model.InboxTaskStatus, changed time.Time) {
	t.Helper()
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		task, err := model.NewInboxTask(model.NewInboxTaskParams{
			WorkspaceRefID:  f.workspace.RefID,
			InboxTaskFields: model.InboxTaskFields{ProjectRefID: f.project.RefID, Name: name},
		}, model.EventSourceCLI, created)
		if err != nil {
			return err
		}
		if task, err = uow.InboxTasks.Create(ctx, task); err != nil {
			return err
		}
		if task, err = task.ChangeStatus(status, model.EventSourceCLI, changed); err != nil {
			return err
		}
		_, err = uow.InboxTasks.Save(ctx, task)
		return err
	})
}

func TestBreakdownMustBeFiner(t *testing.T) {
	f := newFixture(t)
	monthly := timeline.Monthly

	_, err := f.engine.Run(context.Background(), f.workspace, report.Request{
		Period:          timeline.Weekly,
		BreakdownPeriod: &monthly,
	})
	assert.ErrorIs(t, err, report.ErrInvalidBreakdown)

	same := timeline.Weekly
	_, err = f.engine.Run(context.Background(), f.workspace, report.Request{
		Period:          timeline.Weekly,
		BreakdownPeriod: &same,
	})
	assert.ErrorIs(t, err, report.ErrInvalidBreakdown)

	_, err = f.engine.Run(context.Background(), f.workspace, report.Request{
		Period:     timeline.Daily,
		Breakdowns: []report.Breakdown{report.BreakdownPeriods},
	})
	assert.ErrorIs(t, err, report.ErrInvalidBreakdown)
}

func TestUnknownReportFilters(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Run(context.Background(), f.workspace, report.Request{
		Period:  timeline.Monthly,
		Filters: report.Filters{ProjectKeys: []string{"work"}},
	})
	assert.ErrorIs(t, err, model.ErrUnknownFilter)

	_, err = f.engine.Run(context.Background(), f.workspace, report.Request{
		Period:     timeline.Monthly,
		Breakdowns: []report.Breakdown{"weather"},
	})
	assert.ErrorIs(t, err, model.ErrUnknownFilter)
}

func TestSummariesAndBreakdowns(t *testing.T) {
	f := newFixture(t)
	f.userTask(t, "A", at(1, 10), model.StatusDone, at(1, 12))
	f.userTask(t, "B", at(1, 20), model.StatusInProgress, at(1, 21))
	f.userTask(t, "Old", time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC), model.StatusDone,
		time.Date(2023, 12, 5, 9, 0, 0, 0, time.UTC))
	f.userTask(t, "Open", time.Date(2023, 12, 20, 9, 0, 0, 0, time.UTC), model.StatusNotStarted,
		time.Date(2023, 12, 20, 9, 0, 0, 0, time.UTC))

	rep, err := f.engine.Run(context.Background(), f.workspace, report.Request{
		RightNow: rightNow,
		Period:   timeline.Monthly,
		Breakdowns: []report.Breakdown{
			report.BreakdownGlobal, report.BreakdownProjects, report.BreakdownPeriods,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "2024,Q1,Jan", rep.Window.Label)
	require.NotNil(t, rep.Global)
	g := rep.Global.InboxTasks
	assert.Equal(t, 2, g.Created.Total)
	assert.Equal(t, 2, g.Created.BySource[model.SourceUser])
	assert.Equal(t, 2, g.Accepted.Total)
	assert.Equal(t, 2, g.Working.Total)
	assert.Equal(t, 1, g.Done.Total)
	assert.Equal(t, 0, g.NotDone.Total)

	require.Len(t, rep.ByProject, 1)
	assert.Equal(t, "home", rep.ByProject[0].Key)
	assert.Equal(t, g, rep.ByProject[0].InboxTasks)

	require.NotNil(t, rep.BreakdownPeriod)
	assert.Equal(t, timeline.Weekly, *rep.BreakdownPeriod)
	require.Len(t, rep.ByPeriod, 5)
	second := rep.ByPeriod[1].InboxTasks
	assert.Equal(t, 1, second.Created.Total)
	assert.Equal(t, 1, second.Done.Total)

	var out bytes.Buffer
	require.NoError(t, report.Render(&out, rep))
	assert.Contains(t, out.String(), "Home")
}

func TestHabitPlotAndCoverage(t *testing.T) {
	f := newFixture(t)
	var rt model.RecurringTask
	f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		rt, err = model.NewRecurringTask(f.workspace.RefID, model.RecurringTaskFields{
			ProjectRefID: f.project.RefID,
			Name:         "Run",
			Type:         model.RecurringTaskTypeHabit,
			GenParams:    model.GenParams{Period: timeline.Weekly},
			StartAtDate:  timeline.Date(2023, 12, 1),
		}, model.EventSourceCLI, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}
		rt, err = uow.RecurringTasks.Create(ctx, rt)
		return err
	})

	habitType := model.RecurringTaskTypeHabit
	weeks := []struct {
		day    int
		status model.InboxTaskStatus
	}{
		{1, model.StatusDone},
		{8, model.StatusDone},
		{22, model.StatusNotDone},
		{29, model.StatusRecurring},
	}
	for _, wk := range weeks {
		w, err := timeline.Compute(timeline.Weekly, at(1, wk.day), time.UTC)
		require.NoError(t, err)
		f.do(t, func(ctx context.Context, uow *store.UnitOfWork) error {
			task, err := model.NewGeneratedInboxTask(f.workspace.RefID, model.SourceRecurringTask, rt.RefID,
				model.GeneratedTask{
					ProjectRefID: f.project.RefID,
					Name:         "Run",
					Timeline:     w.Label,
					Type:         &habitType,
					DueDate:      w.EndDay,
				}, at(1, wk.day), model.EventSourceGenerator, at(1, wk.day))
			if err != nil {
				return err
			}
			if task, err = uow.InboxTasks.Create(ctx, task); err != nil {
				return err
			}
			if task, err = task.ChangeStatus(wk.status, model.EventSourceCLI, at(1, wk.day+1)); err != nil {
				return err
			}
			_, err = uow.InboxTasks.Save(ctx, task)
			return err
		})
	}

	rep, err := f.engine.Run(context.Background(), f.workspace, report.Request{
		RightNow: rightNow,
		Period:   timeline.Monthly,
	})
	require.NoError(t, err)
	require.Len(t, rep.Habits, 1)
	h := rep.Habits[0]

	assert.Equal(t, "XXx??", h.Plot)
	assert.Equal(t, 2, h.Streaks.Longest)
	assert.Equal(t, 0, h.Streaks.Current)
	require.Len(t, h.Coverage, 4)
	assert.Equal(t, report.Coverage{Period: timeline.Weekly, Done: 2, Total: 5}, h.Coverage[0])
	assert.Equal(t, timeline.Yearly, h.Coverage[3].Period)
	assert.InDelta(t, 0.4, h.Coverage[1].Ratio(), 1e-9)
}
