// Package report aggregates inbox tasks and big plans over a period into
// summaries, breakdowns and habit streaks.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"time"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/store"
	"github.com/nhle/lifeplan/internal/timeline"
)

// ErrInvalidBreakdown is returned when the breakdown period is not
// strictly finer than the report period.
var ErrInvalidBreakdown = errors.New("invalid breakdown")

// Cover selects what a report counts.
type Cover string

const (
	CoverInboxTasks Cover = "inbox_tasks"
	CoverBigPlans   Cover = "big_plans"
)

// Breakdown selects a bucketing of the report.
type Breakdown string

const (
	BreakdownGlobal         Breakdown = "global"
	BreakdownProjects       Breakdown = "projects"
	BreakdownPeriods        Breakdown = "periods"
	BreakdownBigPlans       Breakdown = "big_plans"
	BreakdownRecurringTasks Breakdown = "recurring_tasks"
	BreakdownMetrics        Breakdown = "metrics"
)

var allBreakdowns = []Breakdown{
	BreakdownGlobal, BreakdownProjects, BreakdownPeriods,
	BreakdownBigPlans, BreakdownRecurringTasks, BreakdownMetrics,
}

// Filters narrow the tasks a report considers. Empty lists match
// everything. Source entity filters match a task when any of them does.
type Filters struct {
	ProjectKeys         []string                `json:"project_keys,omitempty"`
	Sources             []model.InboxTaskSource `json:"sources,omitempty"`
	BigPlanRefIDs       []string                `json:"big_plan_ref_ids,omitempty"`
	RecurringTaskRefIDs []string                `json:"recurring_task_ref_ids,omitempty"`
	MetricKeys          []string                `json:"metric_keys,omitempty"`
	PersonRefIDs        []string                `json:"person_ref_ids,omitempty"`
}

// Request describes one report.
type Request struct {
	RightNow time.Time
	Period   timeline.Period

	// BreakdownPeriod sizes the "periods" buckets; it defaults to the
	// next finer period.
	BreakdownPeriod *timeline.Period

	Filters
	Covers     []Cover
	Breakdowns []Breakdown
}

// SourceCount is a total split by inbox task source.
type SourceCount struct {
	Total    int                           `json:"total"`
	BySource map[model.InboxTaskSource]int `json:"by_source,omitempty"`
}

func (c *SourceCount) add(src model.InboxTaskSource) {
	if c.BySource == nil {
		c.BySource = map[model.InboxTaskSource]int{}
	}
	c.Total++
	c.BySource[src]++
}

// InboxTaskSummary counts inbox task transitions inside a window.
type InboxTaskSummary struct {
	Created  SourceCount `json:"created"`
	Accepted SourceCount `json:"accepted"`
	Working  SourceCount `json:"working"`
	Done     SourceCount `json:"done"`
	NotDone  SourceCount `json:"not_done"`
}

// BigPlanSummary counts big plan transitions inside a window.
type BigPlanSummary struct {
	Created  int `json:"created"`
	Accepted int `json:"accepted"`
	Working  int `json:"working"`
	Done     int `json:"done"`
	NotDone  int `json:"not_done"`
}

// Bucket is one row of a breakdown.
type Bucket struct {
	Key        string           `json:"key"`
	Name       string           `json:"name"`
	InboxTasks InboxTaskSummary `json:"inbox_tasks"`
	BigPlans   *BigPlanSummary  `json:"big_plans,omitempty"`
}

// Coverage is how many windows of a habit were done.
type Coverage struct {
	Period timeline.Period `json:"period"`
	Done   int             `json:"done"`
	Total  int             `json:"total"`
}

// Ratio returns Done/Total, or zero without windows.
func (c Coverage) Ratio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Done) / float64(c.Total)
}

// Habit is the streak view of one habit recurring task.
type Habit struct {
	RefID    string          `json:"ref_id"`
	Name     string          `json:"name"`
	Period   timeline.Period `json:"period"`
	Streaks  Streaks         `json:"streaks"`
	Coverage []Coverage      `json:"coverage"`
	Plot     string          `json:"plot"`
}

// Report is the result of Run.
type Report struct {
	Period          timeline.Period  `json:"period"`
	BreakdownPeriod *timeline.Period `json:"breakdown_period,omitempty"`
	Window          timeline.Window  `json:"window"`

	Global          *Bucket  `json:"global,omitempty"`
	ByProject       []Bucket `json:"by_project,omitempty"`
	ByPeriod        []Bucket `json:"by_period,omitempty"`
	ByBigPlan       []Bucket `json:"by_big_plan,omitempty"`
	ByRecurringTask []Bucket `json:"by_recurring_task,omitempty"`
	ByMetric        []Bucket `json:"by_metric,omitempty"`

	Habits []Habit `json:"habits,omitempty"`
}

// UnitOfWorker runs fn in one transaction. *store.SQLiteStore implements it.
type UnitOfWorker interface {
	WithUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *store.UnitOfWork) error) error
}

// Engine computes reports.
type Engine struct {
	store  UnitOfWorker
	logger *log.Logger
	now    func() time.Time
}

// New returns an engine over s.
func New(s UnitOfWorker, logger *log.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, logger: logger, now: now}
}

type snapshot struct {
	projects       []model.Project
	tasks          []model.InboxTask
	bigPlans       []model.BigPlan
	recurringTasks []model.RecurringTask
	metrics        []model.Metric
}

// scope is a resolved request.
type scope struct {
	loc       *time.Location
	today     time.Time
	window    timeline.Window
	breakdown timeline.Period

	projectIDs map[string]bool
	sources    map[model.InboxTaskSource]bool
	sourceRefs map[model.InboxTaskSource]map[string]bool

	covers map[Cover]bool
}

// Run builds the report of ws described by req.
func (e *Engine) Run(ctx context.Context, ws model.Workspace, req Request) (Report, error) {
	if req.RightNow.IsZero() {
		req.RightNow = e.now()
	}
	if !req.Period.Valid() {
		return Report{}, fmt.Errorf("%w: period %q", model.ErrUnknownFilter, req.Period)
	}
	breakdown, err := breakdownPeriod(req)
	if err != nil {
		return Report{}, err
	}
	for _, b := range req.Breakdowns {
		if !slices.Contains(allBreakdowns, b) {
			return Report{}, fmt.Errorf("%w: breakdown %q", model.ErrUnknownFilter, b)
		}
	}

	var snap snapshot
	err = e.store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		all := store.FindOptions{AllowArchived: true}
		var err error
		if snap.projects, err = uow.Projects.FindAll(ctx, ws.RefID, all); err != nil {
			return err
		}
		if snap.tasks, err = uow.InboxTasks.FindAll(ctx, ws.RefID, all); err != nil {
			return err
		}
		if snap.bigPlans, err = uow.BigPlans.FindAll(ctx, ws.RefID, all); err != nil {
			return err
		}
		if snap.recurringTasks, err = uow.RecurringTasks.FindAll(ctx, ws.RefID, all); err != nil {
			return err
		}
		snap.metrics, err = uow.Metrics.FindAll(ctx, ws.RefID, all)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	sc, err := resolve(ws, req, breakdown, snap)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Period: req.Period, Window: sc.window}
	if slices.Contains(req.Breakdowns, BreakdownPeriods) {
		rep.BreakdownPeriod = &sc.breakdown
	}

	tasks := make([]model.InboxTask, 0, len(snap.tasks))
	for _, t := range snap.tasks {
		if sc.includeTask(t, req.RightNow) {
			tasks = append(tasks, t)
		}
	}
	var plans []model.BigPlan
	for _, bp := range snap.bigPlans {
		if sc.includeBigPlan(bp, req.RightNow) {
			plans = append(plans, bp)
		}
	}

	breakdowns := req.Breakdowns
	if len(breakdowns) == 0 {
		breakdowns = []Breakdown{BreakdownGlobal}
	}
	for _, b := range breakdowns {
		switch b {
		case BreakdownGlobal:
			g := sc.bucket("global", "Global", sc.window, tasks, plans)
			rep.Global = &g
		case BreakdownProjects:
			for _, p := range snap.projects {
				if len(sc.projectIDs) > 0 && !sc.projectIDs[p.RefID] {
					continue
				}
				rep.ByProject = append(rep.ByProject, sc.bucket(p.Key, p.Name, sc.window,
					filterTasks(tasks, func(t model.InboxTask) bool { return t.ProjectRefID == p.RefID }),
					filterPlans(plans, func(bp model.BigPlan) bool { return bp.ProjectRefID == p.RefID })))
			}
		case BreakdownPeriods:
			for _, w := range sc.subWindows() {
				rep.ByPeriod = append(rep.ByPeriod, sc.bucket(w.Label, w.Label, w, tasks, plans))
			}
		case BreakdownBigPlans:
			for _, bp := range snap.bigPlans {
				if !sc.sourceAllowed(model.SourceBigPlan, bp.RefID) {
					continue
				}
				rep.ByBigPlan = appendSourceBucket(rep.ByBigPlan, sc, bp.RefID, bp.Name, model.SourceBigPlan, bp.RefID, tasks)
			}
		case BreakdownRecurringTasks:
			for _, rt := range snap.recurringTasks {
				if !sc.sourceAllowed(model.SourceRecurringTask, rt.RefID) {
					continue
				}
				rep.ByRecurringTask = appendSourceBucket(rep.ByRecurringTask, sc, rt.RefID, rt.Name, model.SourceRecurringTask, rt.RefID, tasks)
			}
		case BreakdownMetrics:
			for _, m := range snap.metrics {
				if !sc.sourceAllowed(model.SourceMetric, m.RefID) {
					continue
				}
				rep.ByMetric = appendSourceBucket(rep.ByMetric, sc, m.Key, m.Name, model.SourceMetric, m.RefID, tasks)
			}
		}
	}

	if sc.covers[CoverInboxTasks] {
		rep.Habits = sc.habits(snap)
	}
	return rep, nil
}

func breakdownPeriod(req Request) (timeline.Period, error) {
	if req.BreakdownPeriod != nil {
		if !req.BreakdownPeriod.FinerThan(req.Period) {
			return "", fmt.Errorf("%w: %s is not finer than %s", ErrInvalidBreakdown, *req.BreakdownPeriod, req.Period)
		}
		return *req.BreakdownPeriod, nil
	}
	finer := timeline.Daily
	for _, p := range timeline.AllPeriods {
		if p.FinerThan(req.Period) {
			finer = p
		}
	}
	if !finer.FinerThan(req.Period) && slices.Contains(req.Breakdowns, BreakdownPeriods) {
		return "", fmt.Errorf("%w: nothing is finer than %s", ErrInvalidBreakdown, req.Period)
	}
	return finer, nil
}

func resolve(ws model.Workspace, req Request, breakdown timeline.Period, snap snapshot) (scope, error) {
	loc := ws.Location()
	w, err := timeline.Compute(req.Period, req.RightNow, loc)
	if err != nil {
		return scope{}, err
	}
	sc := scope{
		loc:        loc,
		today:      timeline.Day(req.RightNow, loc),
		window:     w,
		breakdown:  breakdown,
		projectIDs: map[string]bool{},
		sources:    map[model.InboxTaskSource]bool{},
		sourceRefs: map[model.InboxTaskSource]map[string]bool{},
		covers:     map[Cover]bool{},
	}

	for _, key := range req.ProjectKeys {
		i := slices.IndexFunc(snap.projects, func(p model.Project) bool { return p.Key == key })
		if i < 0 {
			return scope{}, fmt.Errorf("%w: project %q", model.ErrUnknownFilter, key)
		}
		sc.projectIDs[snap.projects[i].RefID] = true
	}
	for _, src := range req.Sources {
		if _, err := model.ParseInboxTaskSource(string(src)); err != nil {
			return scope{}, fmt.Errorf("%w: %v", model.ErrUnknownFilter, err)
		}
		sc.sources[src] = true
	}

	refs := func(src model.InboxTaskSource, ids ...string) {
		if len(ids) == 0 {
			return
		}
		if sc.sourceRefs[src] == nil {
			sc.sourceRefs[src] = map[string]bool{}
		}
		for _, id := range ids {
			sc.sourceRefs[src][id] = true
		}
	}
	refs(model.SourceBigPlan, req.BigPlanRefIDs...)
	refs(model.SourceRecurringTask, req.RecurringTaskRefIDs...)
	refs(model.SourcePersonCatchUp, req.PersonRefIDs...)
	refs(model.SourcePersonBirthday, req.PersonRefIDs...)
	for _, key := range req.MetricKeys {
		i := slices.IndexFunc(snap.metrics, func(m model.Metric) bool { return m.Key == key })
		if i < 0 {
			return scope{}, fmt.Errorf("%w: metric %q", model.ErrUnknownFilter, key)
		}
		refs(model.SourceMetric, snap.metrics[i].RefID)
	}

	covers := req.Covers
	if len(covers) == 0 {
		covers = []Cover{CoverInboxTasks, CoverBigPlans}
	}
	for _, c := range covers {
		if c != CoverInboxTasks && c != CoverBigPlans {
			return scope{}, fmt.Errorf("%w: cover %q", model.ErrUnknownFilter, c)
		}
		sc.covers[c] = true
	}
	return sc, nil
}

func (sc scope) day(t time.Time) time.Time {
	return timeline.Day(t, sc.loc)
}

func (sc scope) inWindow(w timeline.Window, t *time.Time) bool {
	return t != nil && w.ContainsDay(sc.day(*t))
}

// alive reports whether something created at created and completed at
// completed (nil while open) overlaps the report window.
func (sc scope) alive(created time.Time, completed *time.Time, rightNow time.Time) bool {
	end := rightNow
	if completed != nil {
		end = *completed
	}
	return !sc.day(created).After(sc.window.EndDay) && !sc.day(end).Before(sc.window.FirstDay)
}

// sourceAllowed reports whether a bucket for the source entity refID
// passes the source entity filters.
func (sc scope) sourceAllowed(src model.InboxTaskSource, refID string) bool {
	if len(sc.sources) > 0 && !sc.sources[src] {
		return false
	}
	if len(sc.sourceRefs) == 0 {
		return true
	}
	return sc.sourceRefs[src][refID]
}

func (sc scope) includeTask(t model.InboxTask, rightNow time.Time) bool {
	if !sc.alive(t.CreatedTime, t.CompletedTime, rightNow) {
		return false
	}
	if len(sc.projectIDs) > 0 && !sc.projectIDs[t.ProjectRefID] {
		return false
	}
	if len(sc.sources) > 0 && !sc.sources[t.Source] {
		return false
	}
	if len(sc.sourceRefs) > 0 {
		return t.SourceRefID != nil && sc.sourceRefs[t.Source][*t.SourceRefID]
	}
	return true
}

func (sc scope) includeBigPlan(bp model.BigPlan, rightNow time.Time) bool {
	if !sc.covers[CoverBigPlans] || !sc.alive(bp.CreatedTime, bp.CompletedTime, rightNow) {
		return false
	}
	if len(sc.projectIDs) > 0 && !sc.projectIDs[bp.ProjectRefID] {
		return false
	}
	if refs := sc.sourceRefs[model.SourceBigPlan]; len(refs) > 0 {
		return refs[bp.RefID]
	}
	return true
}

func (sc scope) bucket(key, name string, w timeline.Window, tasks []model.InboxTask, plans []model.BigPlan) Bucket {
	b := Bucket{Key: key, Name: name}
	if sc.covers[CoverInboxTasks] {
		b.InboxTasks = sc.summarizeTasks(w, tasks)
	}
	if sc.covers[CoverBigPlans] {
		s := sc.summarizePlans(w, plans)
		b.BigPlans = &s
	}
	return b
}

func (sc scope) summarizeTasks(w timeline.Window, tasks []model.InboxTask) InboxTaskSummary {
	var s InboxTaskSummary
	for _, t := range tasks {
		if sc.inWindow(w, &t.CreatedTime) {
			s.Created.add(t.Source)
		}
		if sc.inWindow(w, t.AcceptedTime) {
			s.Accepted.add(t.Source)
		}
		if sc.inWindow(w, t.WorkingTime) {
			s.Working.add(t.Source)
		}
		if sc.inWindow(w, t.CompletedTime) {
			switch t.Status {
			case model.StatusDone:
				s.Done.add(t.Source)
			case model.StatusNotDone:
				s.NotDone.add(t.Source)
			}
		}
	}
	return s
}

func (sc scope) summarizePlans(w timeline.Window, plans []model.BigPlan) BigPlanSummary {
	var s BigPlanSummary
	for _, bp := range plans {
		if sc.inWindow(w, &bp.CreatedTime) {
			s.Created++
		}
		if sc.inWindow(w, bp.AcceptedTime) {
			s.Accepted++
		}
		if sc.inWindow(w, bp.WorkingTime) {
			s.Working++
		}
		if sc.inWindow(w, bp.CompletedTime) {
			switch bp.Status {
			case model.StatusDone:
				s.Done++
			case model.StatusNotDone:
				s.NotDone++
			}
		}
	}
	return s
}

// subWindows returns the breakdown windows from the start of the report
// window up to today, in order.
func (sc scope) subWindows() []timeline.Window {
	return windowsOf(sc.breakdown, sc.window, sc.today)
}

// windowsOf returns the distinct p windows touched by the days of w up
// to last.
func windowsOf(p timeline.Period, w timeline.Window, last time.Time) []timeline.Window {
	var out []timeline.Window
	for _, d := range w.Days(last) {
		if n := len(out); n > 0 && out[n-1].ContainsDay(d) {
			continue
		}
		sub, err := timeline.Compute(p, d, time.UTC)
		if err != nil {
			continue
		}
		out = append(out, sub)
	}
	return out
}

func appendSourceBucket(
	out []Bucket,
	sc scope,
	key, name string,
	src model.InboxTaskSource,
	refID string,
	tasks []model.InboxTask,
) []Bucket {
	own := filterTasks(tasks, func(t model.InboxTask) bool {
		return t.Source == src && t.SourceRefID != nil && *t.SourceRefID == refID
	})
	return append(out, Bucket{Key: key, Name: name, InboxTasks: sc.summarizeTasks(sc.window, own)})
}

func filterTasks(tasks []model.InboxTask, keep func(model.InboxTask) bool) []model.InboxTask {
	var out []model.InboxTask
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func filterPlans(plans []model.BigPlan, keep func(model.BigPlan) bool) []model.BigPlan {
	var out []model.BigPlan
	for _, bp := range plans {
		if keep(bp) {
			out = append(out, bp)
		}
	}
	return out
}

// habits computes streaks for every habit the filters let through.
func (sc scope) habits(snap snapshot) []Habit {
	byHabit := map[string][]model.InboxTask{}
	for _, t := range snap.tasks {
		if t.Source == model.SourceRecurringTask && t.SourceRefID != nil && t.DueDate != nil {
			byHabit[*t.SourceRefID] = append(byHabit[*t.SourceRefID], t)
		}
	}

	var out []Habit
	for _, rt := range snap.recurringTasks {
		if rt.Archived || rt.Type != model.RecurringTaskTypeHabit {
			continue
		}
		if len(sc.projectIDs) > 0 && !sc.projectIDs[rt.ProjectRefID] {
			continue
		}
		if !sc.sourceAllowed(model.SourceRecurringTask, rt.RefID) {
			continue
		}
		out = append(out, sc.habit(rt, byHabit[rt.RefID]))
	}
	return out
}

func (sc scope) habit(rt model.RecurringTask, tasks []model.InboxTask) Habit {
	period := rt.GenParams.Period
	byTimeline := map[string]model.InboxTask{}
	for _, t := range tasks {
		if t.RecurringTimeline != nil {
			byTimeline[*t.RecurringTimeline] = t
		}
	}

	// Streaks run over every task up to the end of the report window.
	var history []model.InboxTask
	for _, t := range tasks {
		if !sc.day(*t.DueDate).After(sc.window.EndDay) {
			history = append(history, t)
		}
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].DueDate.Before(*history[j].DueDate) })
	statuses := make([]model.InboxTaskStatus, len(history))
	for i, t := range history {
		statuses[i] = t.Status
	}

	h := Habit{
		RefID:   rt.RefID,
		Name:    rt.Name,
		Period:  period,
		Streaks: ComputeStreaks(statuses),
	}

	own := windowsOf(period, sc.window, sc.today)
	h.Coverage = append(h.Coverage, coverage(period, own, byTimeline))
	for _, larger := range period.Larger() {
		lw, err := timeline.Compute(larger, sc.today, time.UTC)
		if err != nil {
			continue
		}
		h.Coverage = append(h.Coverage, coverage(larger, windowsOf(period, lw, sc.today), byTimeline))
	}
	h.Plot = plot(own, byTimeline)
	return h
}

func coverage(p timeline.Period, windows []timeline.Window, byTimeline map[string]model.InboxTask) Coverage {
	c := Coverage{Period: p, Total: len(windows)}
	for _, w := range windows {
		if t, ok := byTimeline[w.Label]; ok && t.Status == model.StatusDone {
			c.Done++
		}
	}
	return c
}

// plot renders one mark per window: X done, x no task (skipped or
// suppressed), . not done, ? not done and nothing after it yet.
func plot(windows []timeline.Window, byTimeline map[string]model.InboxTask) string {
	marks := make([]byte, len(windows))
	for i, w := range windows {
		t, ok := byTimeline[w.Label]
		switch {
		case !ok:
			marks[i] = 'x'
		case t.Status == model.StatusDone:
			marks[i] = 'X'
		default:
			marks[i] = '.'
		}
	}
	for i := len(marks) - 1; i >= 0 && marks[i] == '.'; i-- {
		marks[i] = '?'
	}
	return string(marks)
}
