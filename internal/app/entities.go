package app

import (
	"context"
	"time"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/store"
)

// projectRefID resolves key, falling back to the default project.
func projectRefID(ctx context.Context, uow *store.UnitOfWork, ws model.Workspace, key string) (string, error) {
	if key == "" {
		return ws.DefaultProjectRefID, nil
	}
	p, err := uow.Projects.FindByKey(ctx, ws.RefID, key)
	if err != nil {
		return "", err
	}
	return p.RefID, nil
}

// CreateProject creates a project under parentKey, or at the top level
// when parentKey is empty.
func (a *App) CreateProject(ctx context.Context, ws model.Workspace, key, name, parentKey string) (model.Project, error) {
	var out model.Project
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var parent *string
		if parentKey != "" {
			p, err := uow.Projects.FindByKey(ctx, ws.RefID, parentKey)
			if err != nil {
				return err
			}
			parent = &p.RefID
		}
		p, err := model.NewProject(ws.RefID, key, name, parent, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.Projects.Create(ctx, p)
		return err
	})
	return out, err
}

// Projects lists the projects of ws.
func (a *App) Projects(ctx context.Context, ws model.Workspace, archived bool) ([]model.Project, error) {
	var out []model.Project
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		out, err = uow.Projects.FindAll(ctx, ws.RefID, store.FindOptions{AllowArchived: archived})
		return err
	})
	return out, err
}

// CreateRecurringTask creates a recurring task in the project with key
// projectKey. A zero start date means today.
func (a *App) CreateRecurringTask(
	ctx context.Context,
	ws model.Workspace,
	projectKey string,
	f model.RecurringTaskFields,
) (model.RecurringTask, error) {
	var out model.RecurringTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		if f.ProjectRefID, err = projectRefID(ctx, uow, ws, projectKey); err != nil {
			return err
		}
		if f.StartAtDate.IsZero() {
			f.StartAtDate = a.now()
		}
		rt, err := model.NewRecurringTask(ws.RefID, f, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.RecurringTasks.Create(ctx, rt)
		return err
	})
	return out, err
}

// RecurringTasks lists the recurring tasks of ws.
func (a *App) RecurringTasks(ctx context.Context, ws model.Workspace, archived bool) ([]model.RecurringTask, error) {
	var out []model.RecurringTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		out, err = uow.RecurringTasks.FindAll(ctx, ws.RefID, store.FindOptions{AllowArchived: archived})
		return err
	})
	return out, err
}

// SuspendRecurringTask suspends or resumes generation for refID.
func (a *App) SuspendRecurringTask(ctx context.Context, refID string, suspend bool) (model.RecurringTask, error) {
	return a.updateRecurringTask(ctx, refID, func(rt model.RecurringTask, now time.Time) model.RecurringTask {
		if suspend {
			return rt.Suspend(a.source, now)
		}
		return rt.Unsuspend(a.source, now)
	})
}

// ArchiveRecurringTask archives refID. Tasks it already generated stay.
func (a *App) ArchiveRecurringTask(ctx context.Context, refID string) (model.RecurringTask, error) {
	return a.updateRecurringTask(ctx, refID, func(rt model.RecurringTask, now time.Time) model.RecurringTask {
		return rt.Archive(a.source, now)
	})
}

func (a *App) updateRecurringTask(
	ctx context.Context,
	refID string,
	change func(model.RecurringTask, time.Time) model.RecurringTask,
) (model.RecurringTask, error) {
	var out model.RecurringTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		rt, err := uow.RecurringTasks.LoadByID(ctx, refID, false)
		if err != nil {
			return err
		}
		out, err = uow.RecurringTasks.Save(ctx, change(rt, a.now()))
		return err
	})
	return out, err
}

// CreateInboxTask creates a user task, or a big plan task when
// bigPlanRefID is set. Big plan tasks land in the plan's project.
func (a *App) CreateInboxTask(
	ctx context.Context,
	ws model.Workspace,
	projectKey string,
	bigPlanRefID string,
	f model.InboxTaskFields,
) (model.InboxTask, error) {
	var out model.InboxTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		params := model.NewInboxTaskParams{WorkspaceRefID: ws.RefID, InboxTaskFields: f}
		if bigPlanRefID != "" {
			if err := requireFeature(ws.Features.BigPlans, "big plans"); err != nil {
				return err
			}
			bp, err := uow.BigPlans.LoadByID(ctx, bigPlanRefID, false)
			if err != nil {
				return err
			}
			params.Source = model.SourceBigPlan
			params.SourceRefID = &bp.RefID
			params.ProjectRefID = bp.ProjectRefID
		} else {
			var err error
			if params.ProjectRefID, err = projectRefID(ctx, uow, ws, projectKey); err != nil {
				return err
			}
		}
		t, err := model.NewInboxTask(params, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.InboxTasks.Create(ctx, t)
		return err
	})
	return out, err
}

// InboxTasks lists the inbox tasks of ws.
func (a *App) InboxTasks(ctx context.Context, ws model.Workspace, archived bool) ([]model.InboxTask, error) {
	var out []model.InboxTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		out, err = uow.InboxTasks.FindAll(ctx, ws.RefID, store.FindOptions{AllowArchived: archived})
		return err
	})
	return out, err
}

// ChangeInboxTaskStatus moves refID to status.
func (a *App) ChangeInboxTaskStatus(ctx context.Context, refID string, status model.InboxTaskStatus) (model.InboxTask, error) {
	var out model.InboxTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		t, err := uow.InboxTasks.LoadByID(ctx, refID, false)
		if err != nil {
			return err
		}
		if t, err = t.ChangeStatus(status, a.source, a.now()); err != nil {
			return err
		}
		out, err = uow.InboxTasks.Save(ctx, t)
		return err
	})
	return out, err
}

// ArchiveInboxTask archives refID. The garbage collector removes it for
// good once the grace period has passed.
func (a *App) ArchiveInboxTask(ctx context.Context, refID string) (model.InboxTask, error) {
	var out model.InboxTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		t, err := uow.InboxTasks.LoadByID(ctx, refID, false)
		if err != nil {
			return err
		}
		out, err = uow.InboxTasks.Save(ctx, t.Archive(a.source, a.now()))
		return err
	})
	return out, err
}

// CreateBigPlan creates a big plan in the project with key projectKey.
func (a *App) CreateBigPlan(ctx context.Context, ws model.Workspace, projectKey string, f model.BigPlanFields) (model.BigPlan, error) {
	if err := requireFeature(ws.Features.BigPlans, "big plans"); err != nil {
		return model.BigPlan{}, err
	}
	var out model.BigPlan
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		if f.ProjectRefID, err = projectRefID(ctx, uow, ws, projectKey); err != nil {
			return err
		}
		bp, err := model.NewBigPlan(ws.RefID, f, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.BigPlans.Create(ctx, bp)
		return err
	})
	return out, err
}

// ChangeBigPlanStatus moves refID to status.
func (a *App) ChangeBigPlanStatus(ctx context.Context, refID string, status model.InboxTaskStatus) (model.BigPlan, error) {
	var out model.BigPlan
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		bp, err := uow.BigPlans.LoadByID(ctx, refID, false)
		if err != nil {
			return err
		}
		if bp, err = bp.ChangeStatus(status, a.source, a.now()); err != nil {
			return err
		}
		out, err = uow.BigPlans.Save(ctx, bp)
		return err
	})
	return out, err
}

// CreateMetric creates a metric; params, when set, schedules collection
// tasks.
func (a *App) CreateMetric(ctx context.Context, ws model.Workspace, key, name string, params *model.GenParams) (model.Metric, error) {
	if err := requireFeature(ws.Features.Metrics, "metrics"); err != nil {
		return model.Metric{}, err
	}
	var out model.Metric
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		m, err := model.NewMetric(ws.RefID, key, name, params, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.Metrics.Create(ctx, m)
		return err
	})
	return out, err
}

// CreatePerson creates a person with optional catch-up and birthday
// reminders.
func (a *App) CreatePerson(
	ctx context.Context,
	ws model.Workspace,
	name string,
	catchUp *model.GenParams,
	birthday *model.Birthday,
	preparationDays int,
) (model.Person, error) {
	if err := requireFeature(ws.Features.Persons, "persons"); err != nil {
		return model.Person{}, err
	}
	var out model.Person
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		p, err := model.NewPerson(ws.RefID, name, catchUp, birthday, preparationDays, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.Persons.Create(ctx, p)
		return err
	})
	return out, err
}

// CreateVacation creates a vacation covering start to end inclusive.
func (a *App) CreateVacation(ctx context.Context, ws model.Workspace, name string, start, end time.Time) (model.Vacation, error) {
	if err := requireFeature(ws.Features.Vacations, "vacations"); err != nil {
		return model.Vacation{}, err
	}
	var out model.Vacation
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		v, err := model.NewVacation(ws.RefID, name, start, end, a.source, a.now())
		if err != nil {
			return err
		}
		out, err = uow.Vacations.Create(ctx, v)
		return err
	})
	return out, err
}

// Vacations lists the vacations of ws.
func (a *App) Vacations(ctx context.Context, ws model.Workspace) ([]model.Vacation, error) {
	var out []model.Vacation
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		out, err = uow.Vacations.FindAll(ctx, ws.RefID, store.FindOptions{})
		return err
	})
	return out, err
}
