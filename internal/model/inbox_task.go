package model

import (
	"fmt"
	"time"
)

// InboxTaskSource says where an inbox task came from.
type InboxTaskSource string

const (
	SourceUser           InboxTaskSource = "user"
	SourceBigPlan        InboxTaskSource = "big_plan"
	SourceRecurringTask  InboxTaskSource = "recurring_task"
	SourceMetric         InboxTaskSource = "metric"
	SourcePersonCatchUp  InboxTaskSource = "person_catch_up"
	SourcePersonBirthday InboxTaskSource = "person_birthday"
)

// AllSources lists every inbox task source.
var AllSources = []InboxTaskSource{
	SourceUser, SourceBigPlan, SourceRecurringTask,
	SourceMetric, SourcePersonCatchUp, SourcePersonBirthday,
}

// ParseInboxTaskSource validates a source string.
func ParseInboxTaskSource(s string) (InboxTaskSource, error) {
	for _, src := range AllSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown inbox task source %q", s)
}

// IsGenerated reports whether tasks of this source come from a recurrence.
func (s InboxTaskSource) IsGenerated() bool {
	switch s {
	case SourceRecurringTask, SourceMetric, SourcePersonCatchUp, SourcePersonBirthday:
		return true
	}
	return false
}

// InboxTask is a dated unit of work.
type InboxTask struct {
	Entity
	StatusTimes

	WorkspaceRefID string          `json:"workspace_ref_id"`
	ProjectRefID   string          `json:"project_ref_id"`
	Name           string          `json:"name"`
	Status         InboxTaskStatus `json:"status"`
	Source         InboxTaskSource `json:"source"`

	// SourceRefID points at the big plan, recurring task, metric or person
	// the task was created for. Nil for user tasks.
	SourceRefID *string `json:"source_ref_id,omitempty"`

	Eisen          []Eisen     `json:"eisen,omitempty"`
	Difficulty     *Difficulty `json:"difficulty,omitempty"`
	ActionableDate *time.Time  `json:"actionable_date,omitempty"`
	DueDate        *time.Time  `json:"due_date,omitempty"`

	RecurringTimeline    *string            `json:"recurring_timeline,omitempty"`
	RecurringType        *RecurringTaskType `json:"recurring_type,omitempty"`
	RecurringGenRightNow *time.Time         `json:"recurring_gen_right_now,omitempty"`
}

// InboxTaskFields are the fields a user or the sync can edit.
type InboxTaskFields struct {
	ProjectRefID   string          `json:"project_ref_id"`
	Name           string          `json:"name"`
	Status         InboxTaskStatus `json:"status"`
	Eisen          []Eisen         `json:"eisen,omitempty"`
	Difficulty     *Difficulty     `json:"difficulty,omitempty"`
	ActionableDate *time.Time      `json:"actionable_date,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
}

// NewInboxTaskParams holds the inputs of a user or big plan task.
type NewInboxTaskParams struct {
	WorkspaceRefID string
	Source         InboxTaskSource
	SourceRefID    *string
	InboxTaskFields
}

// NewInboxTask builds a user-created (or big plan) task.
func NewInboxTask(p NewInboxTaskParams, src EventSource, now time.Time) (InboxTask, error) {
	if p.Source == "" {
		p.Source = SourceUser
	}
	if p.Source.IsGenerated() {
		return InboxTask{}, fmt.Errorf("tasks with source %s are created by the generator", p.Source)
	}
	if p.Status == "" {
		p.Status = StatusNotStarted
	}
	if p.Status == StatusRecurring {
		return InboxTask{}, fmt.Errorf("%w: %s task cannot be %s", ErrInvalidStatusTransition, p.Source, p.Status)
	}
	f, err := p.InboxTaskFields.validate()
	if err != nil {
		return InboxTask{}, err
	}
	t := InboxTask{
		WorkspaceRefID: p.WorkspaceRefID,
		Source:         p.Source,
		SourceRefID:    p.SourceRefID,
	}
	t = t.apply(f, now)
	t.Entity = newEntity(EntityInboxTask, src, now, t.createdPayload())
	return t, nil
}

// GeneratedTask describes a recurrence window materialized as a task.
type GeneratedTask struct {
	ProjectRefID   string
	Name           string
	Timeline       string
	Type           *RecurringTaskType
	Eisen          []Eisen
	Difficulty     *Difficulty
	ActionableDate *time.Time
	DueDate        time.Time
}

// NewGeneratedInboxTask builds a task for one recurrence window. It starts
// in the recurring status, accepted at rightNow.
func NewGeneratedInboxTask(
	workspaceRefID string,
	source InboxTaskSource,
	sourceRefID string,
	g GeneratedTask,
	rightNow time.Time,
	src EventSource,
	now time.Time,
) (InboxTask, error) {
	if !source.IsGenerated() {
		return InboxTask{}, fmt.Errorf("source %s is not a recurrence", source)
	}
	name, err := ValidateName(g.Name)
	if err != nil {
		return InboxTask{}, err
	}
	due := g.DueDate.UTC()
	if err := checkActionableDue(g.ActionableDate, &due); err != nil {
		return InboxTask{}, err
	}
	timelineLabel := g.Timeline
	ref := sourceRefID
	t := InboxTask{
		WorkspaceRefID:       workspaceRefID,
		ProjectRefID:         g.ProjectRefID,
		Name:                 name,
		Status:               StatusRecurring,
		Source:               source,
		SourceRefID:          &ref,
		Eisen:                g.Eisen,
		Difficulty:           g.Difficulty,
		ActionableDate:       utcPtr(g.ActionableDate),
		DueDate:              &due,
		RecurringTimeline:    &timelineLabel,
		RecurringType:        g.Type,
		RecurringGenRightNow: timePtr(rightNow),
	}
	t.AcceptedTime = timePtr(rightNow)
	t.Entity = newEntity(EntityInboxTask, src, now, t.createdPayload())
	return t, nil
}

// UpdateLinkToRecurrence realigns a generated task with its recurrence
// window. The boolean is false when nothing changed.
func (t InboxTask) UpdateLinkToRecurrence(g GeneratedTask, rightNow time.Time, src EventSource, now time.Time) (InboxTask, bool, error) {
	name, err := ValidateName(g.Name)
	if err != nil {
		return t, false, err
	}
	due := g.DueDate.UTC()
	if err := checkActionableDue(g.ActionableDate, &due); err != nil {
		return t, false, err
	}

	changed := t.Name != name ||
		t.ProjectRefID != g.ProjectRefID ||
		t.RecurringTimeline == nil || *t.RecurringTimeline != g.Timeline ||
		!sameRecurringType(t.RecurringType, g.Type) ||
		!eisenEqual(t.Eisen, g.Eisen) ||
		!difficultyEqual(t.Difficulty, g.Difficulty) ||
		!sameTime(t.ActionableDate, g.ActionableDate) ||
		!sameTime(t.DueDate, &due)
	if !changed {
		return t, false, nil
	}

	timelineLabel := g.Timeline
	t.Name = name
	t.ProjectRefID = g.ProjectRefID
	t.RecurringTimeline = &timelineLabel
	t.RecurringType = g.Type
	t.Eisen = g.Eisen
	t.Difficulty = g.Difficulty
	t.ActionableDate = utcPtr(g.ActionableDate)
	t.DueDate = &due
	t.RecurringGenRightNow = timePtr(rightNow)
	t.Entity = t.record("UpdatedLinkToRecurrence", src, now, map[string]any{
		"name":     t.Name,
		"timeline": g.Timeline,
		"due_date": due,
	})
	return t, true, nil
}

// ChangeStatus moves the task to status, keeping the status timestamps
// consistent: reaching a stage stamps it once, leaving it clears it.
func (t InboxTask) ChangeStatus(status InboxTaskStatus, src EventSource, now time.Time) (InboxTask, error) {
	if err := t.checkStatus(status); err != nil {
		return t, err
	}
	if status == t.Status {
		return t, nil
	}
	t.Status = status
	t.StatusTimes = t.StatusTimes.transition(status, now)
	t.Entity = t.record("ChangedStatus", src, now, map[string]any{
		"status":      status,
		"status_time": t.StatusTimes,
	})
	return t, nil
}

// Fields returns the editable fields.
func (t InboxTask) Fields() InboxTaskFields {
	return InboxTaskFields{
		ProjectRefID:   t.ProjectRefID,
		Name:           t.Name,
		Status:         t.Status,
		Eisen:          t.Eisen,
		Difficulty:     t.Difficulty,
		ActionableDate: t.ActionableDate,
		DueDate:        t.DueDate,
	}
}

// Update applies f, recording an event only when something changed.
func (t InboxTask) Update(f InboxTaskFields, src EventSource, now time.Time) (InboxTask, error) {
	f, err := f.validate()
	if err != nil {
		return t, err
	}
	if err := t.checkStatus(f.Status); err != nil {
		return t, err
	}
	if t.Fields().equal(f) {
		return t, nil
	}
	t = t.apply(f, now)
	t.Entity = t.record(EventUpdated, src, now, f)
	return t, nil
}

// Archive marks the task archived.
func (t InboxTask) Archive(src EventSource, now time.Time) InboxTask {
	t.Entity = t.archive(src, now)
	return t
}

func (t InboxTask) checkStatus(status InboxTaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == StatusRecurring && !t.Source.IsGenerated() {
		return fmt.Errorf("%w: %s task cannot be %s", ErrInvalidStatusTransition, t.Source, status)
	}
	return nil
}

func (t InboxTask) apply(f InboxTaskFields, now time.Time) InboxTask {
	t.ProjectRefID = f.ProjectRefID
	t.Name = f.Name
	t.Eisen = f.Eisen
	t.Difficulty = f.Difficulty
	t.ActionableDate = utcPtr(f.ActionableDate)
	t.DueDate = utcPtr(f.DueDate)
	if f.Status != t.Status {
		t.Status = f.Status
		t.StatusTimes = t.StatusTimes.transition(f.Status, now)
	}
	return t
}

func (t InboxTask) createdPayload() map[string]any {
	return map[string]any{
		"name":               t.Name,
		"status":             t.Status,
		"source":             t.Source,
		"source_ref_id":      t.SourceRefID,
		"recurring_timeline": t.RecurringTimeline,
	}
}

func (f InboxTaskFields) validate() (InboxTaskFields, error) {
	n, err := ValidateName(f.Name)
	if err != nil {
		return f, err
	}
	f.Name = n
	if !f.Status.Valid() {
		return f, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	if err := checkActionableDue(f.ActionableDate, f.DueDate); err != nil {
		return f, err
	}
	return f, nil
}

func (f InboxTaskFields) equal(o InboxTaskFields) bool {
	return f.ProjectRefID == o.ProjectRefID &&
		f.Name == o.Name &&
		f.Status == o.Status &&
		eisenEqual(f.Eisen, o.Eisen) &&
		difficultyEqual(f.Difficulty, o.Difficulty) &&
		sameTime(f.ActionableDate, o.ActionableDate) &&
		sameTime(f.DueDate, o.DueDate)
}

func sameRecurringType(a, b *RecurringTaskType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
