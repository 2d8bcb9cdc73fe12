package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/store"
	lpsync "github.com/nhle/lifeplan/internal/sync"
)

// GCResult counts what a garbage collection removed.
type GCResult struct {
	Removed int `json:"removed"`
}

// GC hard-removes inbox tasks archived more than graceDays ago, together
// with their mirror links. A negative graceDays uses the configured one.
// Rows left on the mirror are cleaned up as dangling by the next sync.
func (a *App) GC(ctx context.Context, ws model.Workspace, graceDays int, rep *progress.Reporter) (GCResult, error) {
	if rep == nil {
		rep = progress.Noop()
	}
	if graceDays < 0 {
		graceDays = a.Config.GC.GraceDays
	}
	cutoff := a.now().Add(-time.Duration(graceDays) * 24 * time.Hour)

	var expired []model.InboxTask
	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		all, err := uow.InboxTasks.FindAll(ctx, ws.RefID, store.FindOptions{AllowArchived: true})
		if err != nil {
			return err
		}
		for _, t := range all {
			if t.Archived && t.ArchivedTime != nil && t.ArchivedTime.Before(cutoff) {
				expired = append(expired, t)
			}
		}
		return nil
	})
	if err != nil {
		return GCResult{}, err
	}

	defer rep.Section("Garbage collection")()
	w := a.Index.Acquire(lpsync.KeyInboxTasks)
	defer w.Release()

	var res GCResult
	for _, t := range expired {
		scope := rep.Removing(model.EntityInboxTask, t.RefID, t.Name)
		err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
			return uow.InboxTasks.Remove(ctx, t.RefID)
		})
		if err != nil {
			scope.Fail(err)
			scope.Done()
			return res, err
		}
		scope.MarkLocalChange()
		if err := w.HardRemove(ctx, t.RefID); err != nil {
			scope.Fail(err)
			scope.Done()
			return res, err
		}
		scope.Done()
		res.Removed++
	}
	a.logger.Printf("gc: removed %d inbox tasks archived before %s", res.Removed, cutoff.Format(time.DateOnly))
	return res, nil
}

// Verify replays the event stream of every stored entity and reports
// store.ErrCorruptEventStream on the first inconsistency.
func (a *App) Verify(ctx context.Context) error {
	return a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		return uow.VerifyIntegrity(ctx)
	})
}

// Remove hard-deletes one entity and its event stream, then forgets its
// mirror links. Entities still referenced fail with store.ErrInUse.
func (a *App) Remove(ctx context.Context, kind model.EntityType, refID string, rep *progress.Reporter) error {
	if rep == nil {
		rep = progress.Noop()
	}
	scope := rep.Removing(kind, refID, "")
	defer scope.Done()

	err := a.Store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		switch kind {
		case model.EntityProject:
			return uow.Projects.Remove(ctx, refID)
		case model.EntityRecurringTask:
			return uow.RecurringTasks.Remove(ctx, refID)
		case model.EntityInboxTask:
			return uow.InboxTasks.Remove(ctx, refID)
		case model.EntityBigPlan:
			return uow.BigPlans.Remove(ctx, refID)
		case model.EntityMetric:
			return uow.Metrics.Remove(ctx, refID)
		case model.EntityPerson:
			return uow.Persons.Remove(ctx, refID)
		case model.EntityVacation:
			return uow.Vacations.Remove(ctx, refID)
		}
		return fmt.Errorf("%w: cannot remove entities of type %q", model.ErrUnknownFilter, kind)
	})
	if err != nil {
		return scope.Fail(err)
	}
	scope.MarkLocalChange()
	if err := a.Store.DeleteExternalLinksByRefID(ctx, refID); err != nil {
		return scope.Fail(err)
	}
	return nil
}
