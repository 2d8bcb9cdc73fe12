package sync

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/timeline"
)

// Collection keys.
const (
	KeyInboxTasks     = "inbox_tasks"
	KeyRecurringTasks = "recurring_tasks"
	KeyProjects       = "projects"
	KeyBigPlans       = "big_plans"
)

// AllKeys lists the collections in the order they are synced; projects
// come first so the other collections can point at them.
var AllKeys = []string{KeyProjects, KeyRecurringTasks, KeyBigPlans, KeyInboxTasks}

func text(name string) mirror.Property {
	return mirror.Property{Name: name, Type: mirror.PropertyText}
}

func date(name string) mirror.Property {
	return mirror.Property{Name: name, Type: mirror.PropertyDate}
}

func checkbox(name string) mirror.Property {
	return mirror.Property{Name: name, Type: mirror.PropertyCheckbox}
}

func relation(name string) mirror.Property {
	return mirror.Property{Name: name, Type: mirror.PropertyRelation}
}

func selectOf(name string, opts []mirror.Option) mirror.Property {
	return mirror.Property{Name: name, Type: mirror.PropertySelect, Options: opts}
}

var eisenOptions = options(
	model.EisenImportantAndUrgent, model.EisenImportant, model.EisenUrgent, model.EisenRegular,
)

var difficultyOptions = options(model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard)

func row(e model.Entity, fields map[string]string) mirror.Row {
	return mirror.Row{RefID: e.RefID, Archived: e.Archived, Fields: fields}
}

// Projects is the projects collection.
func Projects() Collection[model.Project] {
	return Collection[model.Project]{
		Key:  KeyProjects,
		Kind: model.EntityProject,
		Schema: mirror.Schema{Properties: []mirror.Property{
			text("name"), text("key"), relation("parent_project_ref_id"),
		}},
		Local: func(uow *store.UnitOfWork) LocalSide[model.Project] { return uow.Projects },
		Name:  func(p model.Project) string { return p.Name },
		ToRow: func(p model.Project) mirror.Row {
			return row(p.Entity, map[string]string{
				"name":                  p.Name,
				"key":                   p.Key,
				"parent_project_ref_id": formatString(p.ParentProjectRefID),
			})
		},
		New: func(ws model.Workspace, r mirror.Row, now time.Time) (model.Project, error) {
			fp := &fieldParser{row: r}
			p, err := model.NewProject(ws.RefID, fp.text("key"), fp.text("name"),
				fp.optText("parent_project_ref_id"), model.EventSourceSync, now)
			if err != nil {
				return p, err
			}
			return p, fp.err
		},
		Apply: func(p model.Project, r mirror.Row, now time.Time) (model.Project, error) {
			fp := &fieldParser{row: r}
			updated, err := p.Update(model.ProjectFields{
				Name:               fp.text("name"),
				ParentProjectRefID: fp.optText("parent_project_ref_id"),
			}, model.EventSourceSync, now)
			if err != nil {
				return p, err
			}
			if r.Archived && !updated.Archived {
				updated = updated.Archive(model.EventSourceSync, now)
			}
			return updated, nil
		},
	}
}

// RecurringTasks is the recurring tasks collection.
func RecurringTasks() Collection[model.RecurringTask] {
	return Collection[model.RecurringTask]{
		Key:  KeyRecurringTasks,
		Kind: model.EntityRecurringTask,
		Schema: mirror.Schema{Properties: []mirror.Property{
			text("name"),
			relation("project_ref_id"),
			selectOf("period", options(timeline.AllPeriods...)),
			selectOf("type", options(model.RecurringTaskTypeHabit, model.RecurringTaskTypeChore)),
			{Name: "eisen", Type: mirror.PropertyMultiSelect, Options: eisenOptions},
			selectOf("difficulty", difficultyOptions),
			text("skip_rule"),
			checkbox("suspended"),
			checkbox("must_do"),
			date("start_at_date"),
			date("end_at_date"),
			text("actionable_from_day"),
			text("actionable_from_month"),
			text("due_at_time"),
			text("due_at_day"),
			text("due_at_month"),
		}},
		Local: func(uow *store.UnitOfWork) LocalSide[model.RecurringTask] { return uow.RecurringTasks },
		Name:  func(rt model.RecurringTask) string { return rt.Name },
		ToRow: func(rt model.RecurringTask) mirror.Row {
			gp := rt.GenParams
			return row(rt.Entity, map[string]string{
				"name":                  rt.Name,
				"project_ref_id":        rt.ProjectRefID,
				"period":                string(gp.Period),
				"type":                  string(rt.Type),
				"eisen":                 formatEisen(gp.Eisen),
				"difficulty":            formatDifficulty(gp.Difficulty),
				"skip_rule":             formatString(rt.SkipRule),
				"suspended":             formatBool(rt.Suspended),
				"must_do":               formatBool(rt.MustDo),
				"start_at_date":         formatDate(&rt.StartAtDate),
				"end_at_date":           formatDate(rt.EndAtDate),
				"actionable_from_day":   formatInt(gp.ActionableFromDay),
				"actionable_from_month": formatInt(gp.ActionableFromMonth),
				"due_at_time":           formatString(gp.DueAtTime),
				"due_at_day":            formatInt(gp.DueAtDay),
				"due_at_month":          formatInt(gp.DueAtMonth),
			})
		},
		New: func(ws model.Workspace, r mirror.Row, now time.Time) (model.RecurringTask, error) {
			f, err := recurringTaskFields(r, ws.DefaultProjectRefID, now)
			if err != nil {
				return model.RecurringTask{}, err
			}
			return model.NewRecurringTask(ws.RefID, f, model.EventSourceSync, now)
		},
		Apply: func(rt model.RecurringTask, r mirror.Row, now time.Time) (model.RecurringTask, error) {
			f, err := recurringTaskFields(r, rt.ProjectRefID, rt.StartAtDate)
			if err != nil {
				return rt, err
			}
			updated, err := rt.Update(f, model.EventSourceSync, now)
			if err != nil {
				return rt, err
			}
			if r.Archived && !updated.Archived {
				updated = updated.Archive(model.EventSourceSync, now)
			}
			return updated, nil
		},
	}
}

func recurringTaskFields(r mirror.Row, defaultProject string, defaultStart time.Time) (model.RecurringTaskFields, error) {
	fp := &fieldParser{row: r}
	period, err := timeline.ParsePeriod(fp.text("period"))
	fp.fail("period", err)
	typ := model.RecurringTaskTypeChore
	if raw := fp.text("type"); raw != "" {
		typ, err = model.ParseRecurringTaskType(raw)
		fp.fail("type", err)
	}
	project := fp.text("project_ref_id")
	if project == "" {
		project = defaultProject
	}
	start := fp.date("start_at_date")
	if start == nil {
		start = &defaultStart
	}

	f := model.RecurringTaskFields{
		ProjectRefID: project,
		Name:         fp.text("name"),
		Type:         typ,
		GenParams: model.GenParams{
			Period:     period,
			Eisen:      fp.eisen("eisen"),
			Difficulty: fp.difficulty("difficulty"),
		},
		SkipRule:    fp.optText("skip_rule"),
		Suspended:   fp.boolean("suspended"),
		MustDo:      fp.boolean("must_do"),
		StartAtDate: *start,
		EndAtDate:   fp.date("end_at_date"),
	}
	f.GenParams.ActionableFromDay = fp.integer("actionable_from_day")
	f.GenParams.ActionableFromMonth = fp.integer("actionable_from_month")
	f.GenParams.DueAtTime = fp.optText("due_at_time")
	f.GenParams.DueAtDay = fp.integer("due_at_day")
	f.GenParams.DueAtMonth = fp.integer("due_at_month")
	return f, fp.err
}

var bigPlanStatuses = func() []mirror.Option {
	var out []model.InboxTaskStatus
	for _, s := range model.AllStatuses() {
		if s != model.StatusRecurring {
			out = append(out, s)
		}
	}
	return options(out...)
}()

// BigPlans is the big plans collection.
func BigPlans() Collection[model.BigPlan] {
	return Collection[model.BigPlan]{
		Key:  KeyBigPlans,
		Kind: model.EntityBigPlan,
		Schema: mirror.Schema{Properties: []mirror.Property{
			text("name"),
			relation("project_ref_id"),
			selectOf("status", bigPlanStatuses),
			date("actionable_date"),
			date("due_date"),
		}},
		Local: func(uow *store.UnitOfWork) LocalSide[model.BigPlan] { return uow.BigPlans },
		Name:  func(bp model.BigPlan) string { return bp.Name },
		ToRow: func(bp model.BigPlan) mirror.Row {
			return row(bp.Entity, map[string]string{
				"name":            bp.Name,
				"project_ref_id":  bp.ProjectRefID,
				"status":          string(bp.Status),
				"actionable_date": formatDate(bp.ActionableDate),
				"due_date":        formatDate(bp.DueDate),
			})
		},
		New: func(ws model.Workspace, r mirror.Row, now time.Time) (model.BigPlan, error) {
			f, err := bigPlanFields(r, ws.DefaultProjectRefID)
			if err != nil {
				return model.BigPlan{}, err
			}
			return model.NewBigPlan(ws.RefID, f, model.EventSourceSync, now)
		},
		Apply: func(bp model.BigPlan, r mirror.Row, now time.Time) (model.BigPlan, error) {
			f, err := bigPlanFields(r, bp.ProjectRefID)
			if err != nil {
				return bp, err
			}
			updated, err := bp.Update(f, model.EventSourceSync, now)
			if err != nil {
				return bp, err
			}
			if r.Archived && !updated.Archived {
				updated = updated.Archive(model.EventSourceSync, now)
			}
			return updated, nil
		},
	}
}

func bigPlanFields(r mirror.Row, defaultProject string) (model.BigPlanFields, error) {
	fp := &fieldParser{row: r}
	project := fp.text("project_ref_id")
	if project == "" {
		project = defaultProject
	}
	f := model.BigPlanFields{
		ProjectRefID:   project,
		Name:           fp.text("name"),
		Status:         fp.status("status"),
		ActionableDate: fp.date("actionable_date"),
		DueDate:        fp.date("due_date"),
	}
	return f, fp.err
}

// InboxTasks is the inbox tasks collection. Source, source_ref_id and
// recurring_timeline are owned locally and ignored when pulled.
func InboxTasks() Collection[model.InboxTask] {
	return Collection[model.InboxTask]{
		Key:  KeyInboxTasks,
		Kind: model.EntityInboxTask,
		Schema: mirror.Schema{Properties: []mirror.Property{
			text("name"),
			relation("project_ref_id"),
			selectOf("status", options(model.AllStatuses()...)),
			{Name: "eisen", Type: mirror.PropertyMultiSelect, Options: eisenOptions},
			selectOf("difficulty", difficultyOptions),
			date("actionable_date"),
			date("due_date"),
			selectOf("source", options(model.AllSources...)),
			relation("source_ref_id"),
			text("recurring_timeline"),
		}},
		Local: func(uow *store.UnitOfWork) LocalSide[model.InboxTask] { return uow.InboxTasks },
		Name:  func(t model.InboxTask) string { return t.Name },
		ToRow: func(t model.InboxTask) mirror.Row {
			return row(t.Entity, map[string]string{
				"name":               t.Name,
				"project_ref_id":     t.ProjectRefID,
				"status":             string(t.Status),
				"eisen":              formatEisen(t.Eisen),
				"difficulty":         formatDifficulty(t.Difficulty),
				"actionable_date":    formatDate(t.ActionableDate),
				"due_date":           formatDate(t.DueDate),
				"source":             string(t.Source),
				"source_ref_id":      formatString(t.SourceRefID),
				"recurring_timeline": formatString(t.RecurringTimeline),
			})
		},
		New: func(ws model.Workspace, r mirror.Row, now time.Time) (model.InboxTask, error) {
			f, err := inboxTaskFields(r, ws.DefaultProjectRefID)
			if err != nil {
				return model.InboxTask{}, err
			}
			p := model.NewInboxTaskParams{WorkspaceRefID: ws.RefID, InboxTaskFields: f}
			if r.Fields["source"] == string(model.SourceBigPlan) {
				p.Source = model.SourceBigPlan
				p.SourceRefID = parseString(r.Fields["source_ref_id"])
			}
			return model.NewInboxTask(p, model.EventSourceSync, now)
		},
		Apply: func(t model.InboxTask, r mirror.Row, now time.Time) (model.InboxTask, error) {
			f, err := inboxTaskFields(r, t.ProjectRefID)
			if err != nil {
				return t, err
			}
			updated, err := t.Update(f, model.EventSourceSync, now)
			if err != nil {
				return t, err
			}
			if r.Archived && !updated.Archived {
				updated = updated.Archive(model.EventSourceSync, now)
			}
			return updated, nil
		},
	}
}

func inboxTaskFields(r mirror.Row, defaultProject string) (model.InboxTaskFields, error) {
	fp := &fieldParser{row: r}
	project := fp.text("project_ref_id")
	if project == "" {
		project = defaultProject
	}
	f := model.InboxTaskFields{
		ProjectRefID:   project,
		Name:           fp.text("name"),
		Status:         fp.status("status"),
		Eisen:          fp.eisen("eisen"),
		Difficulty:     fp.difficulty("difficulty"),
		ActionableDate: fp.date("actionable_date"),
		DueDate:        fp.date("due_date"),
	}
	return f, fp.err
}

// SyncAll reconciles the collections named by keys, every collection when
// keys is empty, in dependency order.
func (r *Reconciler) SyncAll(
	ctx context.Context,
	ws model.Workspace,
	keys []string,
	opts Options,
	rep *progress.Reporter,
) (map[string]Stats, error) {
	for _, k := range keys {
		if !hasKey(AllKeys, k) {
			return nil, fmt.Errorf("%w: collection %q", model.ErrUnknownFilter, k)
		}
	}
	if !ws.Features.BigPlans && slices.Contains(keys, KeyBigPlans) {
		return nil, fmt.Errorf("%w: big plans are disabled", model.ErrUnknownFilter)
	}

	out := make(map[string]Stats)
	for _, key := range AllKeys {
		if !hasKey(keys, key) {
			continue
		}
		var (
			stats Stats
			err   error
		)
		switch key {
		case KeyProjects:
			var res Result[model.Project]
			res, err = Run(ctx, r, Projects(), ws, opts, rep)
			stats = res.Stats
		case KeyRecurringTasks:
			var res Result[model.RecurringTask]
			res, err = Run(ctx, r, RecurringTasks(), ws, opts, rep)
			stats = res.Stats
		case KeyBigPlans:
			if !ws.Features.BigPlans {
				continue
			}
			var res Result[model.BigPlan]
			res, err = Run(ctx, r, BigPlans(), ws, opts, rep)
			stats = res.Stats
		case KeyInboxTasks:
			var res Result[model.InboxTask]
			res, err = Run(ctx, r, InboxTasks(), ws, opts, rep)
			stats = res.Stats
		}
		out[key] = stats
		if err != nil {
			return out, fmt.Errorf("syncing %s: %w", key, err)
		}
	}
	return out, nil
}
