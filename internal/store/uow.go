package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/lifeplan/internal/model"
)

// Repository gives transactional access to one entity type.
type Repository[E model.Aggregate, R any] struct {
	tx    *sqlx.Tx
	table *entityTable[E, R]
}

// Create assigns a fresh ref id, inserts e and writes its pending events.
func (r Repository[E, R]) Create(ctx context.Context, e E) (E, error) {
	return r.table.create(ctx, r.tx, e)
}

// Save writes e and its pending events, guarding on the version e was
// loaded at. An entity without pending events is returned unchanged.
func (r Repository[E, R]) Save(ctx context.Context, e E) (E, error) {
	return r.table.save(ctx, r.tx, e)
}

// LoadByID loads one entity.
func (r Repository[E, R]) LoadByID(ctx context.Context, refID string, allowArchived bool) (E, error) {
	return r.table.loadByID(ctx, r.tx, refID, allowArchived)
}

// FindAll loads the entities under parentRefID.
func (r Repository[E, R]) FindAll(ctx context.Context, parentRefID string, opts FindOptions) ([]E, error) {
	return r.table.findAll(ctx, r.tx, parentRefID, opts)
}

// Remove hard-deletes the entity and its event stream.
func (r Repository[E, R]) Remove(ctx context.Context, refID string) error {
	return r.table.remove(ctx, r.tx, refID)
}

// Events returns the stored event stream of the entity in version order.
func (r Repository[E, R]) Events(ctx context.Context, refID string) ([]model.Event, error) {
	return r.table.loadEvents(ctx, r.tx, refID)
}

// WorkspaceRepository stores workspaces.
type WorkspaceRepository struct {
	Repository[model.Workspace, workspaceRow]
}

// FindByName loads the unarchived workspace called name.
func (r WorkspaceRepository) FindByName(ctx context.Context, name string) (model.Workspace, error) {
	found, err := r.table.findWhere(ctx, r.tx, FindOptions{}, "name = ?", name)
	if err != nil {
		return model.Workspace{}, err
	}
	if len(found) == 0 {
		return model.Workspace{}, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
	}
	return found[0], nil
}

// LoadOnly loads the single workspace of the database.
func (r WorkspaceRepository) LoadOnly(ctx context.Context) (model.Workspace, error) {
	found, err := r.table.findWhere(ctx, r.tx, FindOptions{}, "1 = 1")
	if err != nil {
		return model.Workspace{}, err
	}
	switch len(found) {
	case 0:
		return model.Workspace{}, fmt.Errorf("workspace: %w", ErrNotFound)
	case 1:
		return found[0], nil
	}
	return model.Workspace{}, fmt.Errorf("%d workspaces exist, pick one by name", len(found))
}

// ProjectRepository stores projects.
type ProjectRepository struct {
	Repository[model.Project, projectRow]
}

// FindByKey loads the project with the given key.
func (r ProjectRepository) FindByKey(ctx context.Context, workspaceRefID, key string) (model.Project, error) {
	found, err := r.table.findWhere(ctx, r.tx, FindOptions{AllowArchived: true},
		"workspace_ref_id = ? AND key = ?", workspaceRefID, key)
	if err != nil {
		return model.Project{}, err
	}
	if len(found) == 0 {
		return model.Project{}, fmt.Errorf("project %q: %w", key, ErrNotFound)
	}
	return found[0], nil
}

// RecurringTaskRepository stores recurring tasks.
type RecurringTaskRepository struct {
	Repository[model.RecurringTask, recurringTaskRow]
}

// InboxTaskRepository stores inbox tasks.
type InboxTaskRepository struct {
	Repository[model.InboxTask, inboxTaskRow]
}

// FindBySource loads the tasks generated from, or attached to, one source entity.
func (r InboxTaskRepository) FindBySource(
	ctx context.Context,
	source model.InboxTaskSource,
	sourceRefID string,
	opts FindOptions,
) ([]model.InboxTask, error) {
	return r.table.findWhere(ctx, r.tx, opts, "source = ? AND source_ref_id = ?", string(source), sourceRefID)
}

// FindByTimeline loads the tasks of one source for one recurrence window,
// archived ones included.
func (r InboxTaskRepository) FindByTimeline(
	ctx context.Context,
	source model.InboxTaskSource,
	sourceRefID string,
	timeline string,
) ([]model.InboxTask, error) {
	return r.table.findWhere(ctx, r.tx, FindOptions{AllowArchived: true},
		"source = ? AND source_ref_id = ? AND recurring_timeline = ?",
		string(source), sourceRefID, timeline)
}

// BigPlanRepository stores big plans.
type BigPlanRepository struct {
	Repository[model.BigPlan, bigPlanRow]
}

// MetricRepository stores metrics.
type MetricRepository struct {
	Repository[model.Metric, metricRow]
}

// FindByKey loads the metric with the given key.
func (r MetricRepository) FindByKey(ctx context.Context, workspaceRefID, key string) (model.Metric, error) {
	found, err := r.table.findWhere(ctx, r.tx, FindOptions{AllowArchived: true},
		"workspace_ref_id = ? AND key = ?", workspaceRefID, key)
	if err != nil {
		return model.Metric{}, err
	}
	if len(found) == 0 {
		return model.Metric{}, fmt.Errorf("metric %q: %w", key, ErrNotFound)
	}
	return found[0], nil
}

// PersonRepository stores persons.
type PersonRepository struct {
	Repository[model.Person, personRow]
}

// VacationRepository stores vacations.
type VacationRepository struct {
	Repository[model.Vacation, vacationRow]
}

// UnitOfWork groups the repositories of one transaction.
type UnitOfWork struct {
	tx *sqlx.Tx

	Workspaces     WorkspaceRepository
	Projects       ProjectRepository
	RecurringTasks RecurringTaskRepository
	InboxTasks     InboxTaskRepository
	BigPlans       BigPlanRepository
	Metrics        MetricRepository
	Persons        PersonRepository
	Vacations      VacationRepository
}

func newUnitOfWork(tx *sqlx.Tx) *UnitOfWork {
	return &UnitOfWork{
		tx:             tx,
		Workspaces:     WorkspaceRepository{Repository[model.Workspace, workspaceRow]{tx, workspaceTable}},
		Projects:       ProjectRepository{Repository[model.Project, projectRow]{tx, projectTable}},
		RecurringTasks: RecurringTaskRepository{Repository[model.RecurringTask, recurringTaskRow]{tx, recurringTaskTable}},
		InboxTasks:     InboxTaskRepository{Repository[model.InboxTask, inboxTaskRow]{tx, inboxTaskTable}},
		BigPlans:       BigPlanRepository{Repository[model.BigPlan, bigPlanRow]{tx, bigPlanTable}},
		Metrics:        MetricRepository{Repository[model.Metric, metricRow]{tx, metricTable}},
		Persons:        PersonRepository{Repository[model.Person, personRow]{tx, personTable}},
		Vacations:      VacationRepository{Repository[model.Vacation, vacationRow]{tx, vacationTable}},
	}
}

// VerifyIntegrity checks the event stream of every stored entity.
func (u *UnitOfWork) VerifyIntegrity(ctx context.Context) error {
	checks := []func(context.Context, sqlx.QueryerContext) error{
		workspaceTable.verify,
		projectTable.verify,
		recurringTaskTable.verify,
		inboxTaskTable.verify,
		bigPlanTable.verify,
		metricTable.verify,
		personTable.verify,
		vacationTable.verify,
	}
	for _, check := range checks {
		if err := check(ctx, u.tx); err != nil {
			return err
		}
	}
	return nil
}
