// Package recurrence materializes recurring tasks, metric collections and
// person reminders into inbox tasks, at most one per recurrence window.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/timeline"
)

// Target is a family of recurrences.
type Target string

const (
	TargetProjects Target = "projects"
	TargetMetrics  Target = "metrics"
	TargetPRM      Target = "prm"
)

// AllTargets lists every target.
var AllTargets = []Target{TargetProjects, TargetMetrics, TargetPRM}

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	for _, t := range AllTargets {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: target %q", model.ErrUnknownFilter, s)
}

// Filters narrow generation to some recurrences. Empty lists match everything.
type Filters struct {
	ProjectKeys         []string `json:"project_keys,omitempty"`
	RecurringTaskRefIDs []string `json:"recurring_task_ref_ids,omitempty"`
	MetricKeys          []string `json:"metric_keys,omitempty"`
	PersonRefIDs        []string `json:"person_ref_ids,omitempty"`
}

// Request describes one generation run.
type Request struct {
	RightNow time.Time
	Targets  []Target
	Periods  []timeline.Period
	Filters

	// SyncEvenIfNotModified realigns tasks even when the recurrence was
	// not modified since the task was last touched.
	SyncEvenIfNotModified bool
}

// Result counts what a run did.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// UnitOfWorker runs fn in one transaction. *store.SQLiteStore implements it.
type UnitOfWorker interface {
	WithUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *store.UnitOfWork) error) error
}

// Engine walks recurrences and keeps their inbox tasks in line.
type Engine struct {
	store  UnitOfWorker
	logger *log.Logger
	now    func() time.Time
}

// New returns an engine over s. A nil logger uses log.Default and a nil
// now uses the wall clock.
func New(s UnitOfWorker, logger *log.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, logger: logger, now: now}
}

type candidates struct {
	recurringTasks []recurrence
	metrics        []recurrence
	persons        []recurrence
	vacations      []model.Vacation
}

// Generate runs the recurrences of ws selected by req. Every recurrence
// commits on its own, so a failure leaves earlier ones in place.
func (e *Engine) Generate(ctx context.Context, ws model.Workspace, req Request, rep *progress.Reporter) (Result, error) {
	if rep == nil {
		rep = progress.Noop()
	}
	if req.RightNow.IsZero() {
		req.RightNow = e.now()
	}
	targets := req.Targets
	if len(targets) == 0 {
		targets = AllTargets
	}
	for _, t := range targets {
		if _, err := ParseTarget(string(t)); err != nil {
			return Result{}, err
		}
	}
	for _, p := range req.Periods {
		if !p.Valid() {
			return Result{}, fmt.Errorf("%w: period %q", model.ErrUnknownFilter, p)
		}
	}

	var c candidates
	err := e.store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		var err error
		c, err = e.load(ctx, uow, ws, targets, req.Filters)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	var res Result
	groups := []struct {
		title string
		items []recurrence
	}{
		{"Recurring tasks", c.recurringTasks},
		{"Metrics", c.metrics},
		{"Persons", c.persons},
	}
	for _, g := range groups {
		if len(g.items) == 0 {
			continue
		}
		end := rep.Section(g.title)
		for _, r := range g.items {
			if err := e.generateOne(ctx, ws, r, c.vacations, req, rep, &res); err != nil {
				end()
				return res, err
			}
		}
		end()
	}
	e.logger.Printf("generate: created %d, updated %d, skipped %d", res.Created, res.Updated, res.Skipped)
	return res, nil
}

func (e *Engine) load(
	ctx context.Context,
	uow *store.UnitOfWork,
	ws model.Workspace,
	targets []Target,
	f Filters,
) (candidates, error) {
	var c candidates

	if ws.Features.Vacations {
		vs, err := uow.Vacations.FindAll(ctx, ws.RefID, store.FindOptions{})
		if err != nil {
			return c, err
		}
		c.vacations = vs
	}

	if slices.Contains(targets, TargetProjects) {
		var projectRefIDs []string
		for _, key := range f.ProjectKeys {
			p, err := uow.Projects.FindByKey(ctx, ws.RefID, key)
			if errors.Is(err, store.ErrNotFound) {
				return c, fmt.Errorf("%w: project %q", model.ErrUnknownFilter, key)
			}
			if err != nil {
				return c, err
			}
			projectRefIDs = append(projectRefIDs, p.RefID)
		}
		rts, err := uow.RecurringTasks.FindAll(ctx, ws.RefID, store.FindOptions{RefIDs: f.RecurringTaskRefIDs})
		if err != nil {
			return c, err
		}
		if err := checkAllFound(f.RecurringTaskRefIDs, rts, "recurring task"); err != nil {
			return c, err
		}
		for _, rt := range rts {
			if len(projectRefIDs) > 0 && !slices.Contains(projectRefIDs, rt.ProjectRefID) {
				continue
			}
			c.recurringTasks = append(c.recurringTasks, fromRecurringTask(rt))
		}
	}

	if slices.Contains(targets, TargetMetrics) && ws.Features.Metrics {
		var refIDs []string
		for _, key := range f.MetricKeys {
			m, err := uow.Metrics.FindByKey(ctx, ws.RefID, key)
			if errors.Is(err, store.ErrNotFound) {
				return c, fmt.Errorf("%w: metric %q", model.ErrUnknownFilter, key)
			}
			if err != nil {
				return c, err
			}
			refIDs = append(refIDs, m.RefID)
		}
		ms, err := uow.Metrics.FindAll(ctx, ws.RefID, store.FindOptions{RefIDs: refIDs})
		if err != nil {
			return c, err
		}
		for _, m := range ms {
			if r, ok := fromMetric(m, ws.DefaultProjectRefID); ok {
				c.metrics = append(c.metrics, r)
			}
		}
	}

	if slices.Contains(targets, TargetPRM) && ws.Features.Persons {
		ps, err := uow.Persons.FindAll(ctx, ws.RefID, store.FindOptions{RefIDs: f.PersonRefIDs})
		if err != nil {
			return c, err
		}
		if err := checkAllFound(f.PersonRefIDs, ps, "person"); err != nil {
			return c, err
		}
		for _, p := range ps {
			if r, ok := fromPersonCatchUp(p, ws.DefaultProjectRefID); ok {
				c.persons = append(c.persons, r)
			}
			if r, ok := fromPersonBirthday(p, ws.DefaultProjectRefID); ok {
				c.persons = append(c.persons, r)
			}
		}
	}
	return c, nil
}

func checkAllFound[E model.Aggregate](want []string, found []E, what string) error {
	for _, id := range want {
		if !slices.ContainsFunc(found, func(e E) bool { return e.Header().RefID == id }) {
			return fmt.Errorf("%w: %s %q", model.ErrUnknownFilter, what, id)
		}
	}
	return nil
}

func (e *Engine) generateOne(
	ctx context.Context,
	ws model.Workspace,
	r recurrence,
	vacations []model.Vacation,
	req Request,
	rep *progress.Reporter,
	res *Result,
) error {
	if r.Suspended || (len(req.Periods) > 0 && !slices.Contains(req.Periods, r.Params.Period)) {
		res.Skipped++
		return nil
	}

	s, err := r.window(req.RightNow, ws.Location())
	if err != nil {
		return fmt.Errorf("scheduling %s %s: %w", r.Source, r.RefID, err)
	}
	if s.ShouldSkip || r.outsideBounds(s) {
		res.Skipped++
		return nil
	}
	if !r.MustDo && slices.ContainsFunc(vacations, func(v model.Vacation) bool {
		return v.Covers(s.FirstDay, s.EndDay)
	}) {
		res.Skipped++
		return nil
	}

	g := r.generated(s)
	return e.store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		found, err := uow.InboxTasks.FindByTimeline(ctx, r.Source, r.RefID, s.Timeline)
		if err != nil {
			return err
		}

		if len(found) > 0 {
			task := found[0]
			if task.Archived ||
				(!req.SyncEvenIfNotModified && !task.LastModifiedTime.Before(r.LastModified)) {
				res.Skipped++
				return nil
			}
			updated, changed, err := task.UpdateLinkToRecurrence(g, req.RightNow, model.EventSourceGenerator, e.now())
			if err != nil {
				return fmt.Errorf("realigning %s: %w", task.RefID, err)
			}
			if !changed {
				res.Skipped++
				return nil
			}
			scope := rep.Updating(model.EntityInboxTask, task.RefID, task.Name)
			defer scope.Done()
			if _, err := uow.InboxTasks.Save(ctx, updated); err != nil {
				return scope.Fail(err)
			}
			scope.WithName(updated.Name).MarkLocalChange()
			res.Updated++
			return nil
		}

		scope := rep.Creating(model.EntityInboxTask, g.Name)
		defer scope.Done()
		task, err := model.NewGeneratedInboxTask(ws.RefID, r.Source, r.RefID, g, req.RightNow, model.EventSourceGenerator, e.now())
		if err != nil {
			return scope.Fail(err)
		}
		created, err := uow.InboxTasks.Create(ctx, task)
		if err != nil {
			return scope.Fail(err)
		}
		scope.WithID(created.RefID).MarkLocalChange()
		res.Created++
		return nil
	})
}
