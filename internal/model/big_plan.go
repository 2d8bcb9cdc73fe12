package model

import (
	"fmt"
	"time"
)

// BigPlan is a multi-task undertaking inside a project. Inbox tasks with
// source big_plan point at it.
type BigPlan struct {
	Entity
	StatusTimes

	WorkspaceRefID string          `json:"workspace_ref_id"`
	ProjectRefID   string          `json:"project_ref_id"`
	Name           string          `json:"name"`
	Status         InboxTaskStatus `json:"status"`
	ActionableDate *time.Time      `json:"actionable_date,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
}

// BigPlanFields are the editable fields of a big plan.
type BigPlanFields struct {
	ProjectRefID   string          `json:"project_ref_id"`
	Name           string          `json:"name"`
	Status         InboxTaskStatus `json:"status"`
	ActionableDate *time.Time      `json:"actionable_date,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
}

// NewBigPlan validates f and builds a big plan.
func NewBigPlan(workspaceRefID string, f BigPlanFields, src EventSource, now time.Time) (BigPlan, error) {
	if f.Status == "" {
		f.Status = StatusNotStarted
	}
	f, err := f.validate()
	if err != nil {
		return BigPlan{}, err
	}
	bp := BigPlan{WorkspaceRefID: workspaceRefID}
	bp = bp.apply(f, now)
	bp.Entity = newEntity(EntityBigPlan, src, now, f)
	return bp, nil
}

// Fields returns the editable fields.
func (bp BigPlan) Fields() BigPlanFields {
	return BigPlanFields{
		ProjectRefID:   bp.ProjectRefID,
		Name:           bp.Name,
		Status:         bp.Status,
		ActionableDate: bp.ActionableDate,
		DueDate:        bp.DueDate,
	}
}

// Update applies f, recording an event only when something changed.
func (bp BigPlan) Update(f BigPlanFields, src EventSource, now time.Time) (BigPlan, error) {
	f, err := f.validate()
	if err != nil {
		return bp, err
	}
	cur := bp.Fields()
	if cur.ProjectRefID == f.ProjectRefID && cur.Name == f.Name && cur.Status == f.Status &&
		sameTime(cur.ActionableDate, f.ActionableDate) && sameTime(cur.DueDate, f.DueDate) {
		return bp, nil
	}
	bp = bp.apply(f, now)
	bp.Entity = bp.record(EventUpdated, src, now, f)
	return bp, nil
}

// ChangeStatus moves the plan to status with the same timestamp rules as
// inbox tasks.
func (bp BigPlan) ChangeStatus(status InboxTaskStatus, src EventSource, now time.Time) (BigPlan, error) {
	f := bp.Fields()
	f.Status = status
	return bp.Update(f, src, now)
}

// Archive marks the big plan archived.
func (bp BigPlan) Archive(src EventSource, now time.Time) BigPlan {
	bp.Entity = bp.archive(src, now)
	return bp
}

func (bp BigPlan) apply(f BigPlanFields, now time.Time) BigPlan {
	bp.ProjectRefID = f.ProjectRefID
	bp.Name = f.Name
	bp.ActionableDate = utcPtr(f.ActionableDate)
	bp.DueDate = utcPtr(f.DueDate)
	if f.Status != bp.Status {
		bp.Status = f.Status
		bp.StatusTimes = bp.StatusTimes.transition(f.Status, now)
	}
	return bp
}

func (f BigPlanFields) validate() (BigPlanFields, error) {
	n, err := ValidateName(f.Name)
	if err != nil {
		return f, err
	}
	f.Name = n
	if !f.Status.Valid() || f.Status == StatusRecurring {
		return f, fmt.Errorf("%w: big plan cannot be %q", ErrInvalidStatus, f.Status)
	}
	if err := checkActionableDue(f.ActionableDate, f.DueDate); err != nil {
		return f, err
	}
	return f, nil
}
