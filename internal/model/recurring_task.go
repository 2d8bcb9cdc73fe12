package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/lifeplan/internal/timeline"
)

// RecurringTaskType distinguishes habits, which are tracked for streaks,
// from chores.
type RecurringTaskType string

const (
	RecurringTaskTypeHabit RecurringTaskType = "habit"
	RecurringTaskTypeChore RecurringTaskType = "chore"
)

// ParseRecurringTaskType validates a recurring task type.
func ParseRecurringTaskType(s string) (RecurringTaskType, error) {
	switch t := RecurringTaskType(strings.ToLower(s)); t {
	case RecurringTaskTypeHabit, RecurringTaskTypeChore:
		return t, nil
	}
	return "", fmt.Errorf("unknown recurring task type %q", s)
}

// RecurringTask is a template materialized into one inbox task per window.
type RecurringTask struct {
	Entity

	WorkspaceRefID string `json:"workspace_ref_id"`
	ProjectRefID   string `json:"project_ref_id"`

	Name      string            `json:"name"`
	Type      RecurringTaskType `json:"type"`
	GenParams GenParams         `json:"gen_params"`

	// SkipRule is "even", "odd" or a digit set; nil never skips.
	SkipRule *string `json:"skip_rule,omitempty"`

	Suspended bool `json:"suspended"`

	// MustDo recurrences are generated even during vacations.
	MustDo bool `json:"must_do"`

	StartAtDate time.Time  `json:"start_at_date"`
	EndAtDate   *time.Time `json:"end_at_date,omitempty"`
}

// RecurringTaskFields are the user and sync editable fields.
type RecurringTaskFields struct {
	ProjectRefID string            `json:"project_ref_id"`
	Name         string            `json:"name"`
	Type         RecurringTaskType `json:"type"`
	GenParams    GenParams         `json:"gen_params"`
	SkipRule     *string           `json:"skip_rule,omitempty"`
	Suspended    bool              `json:"suspended"`
	MustDo       bool              `json:"must_do"`
	StartAtDate  time.Time         `json:"start_at_date"`
	EndAtDate    *time.Time        `json:"end_at_date,omitempty"`
}

func (f RecurringTaskFields) validate() (RecurringTaskFields, error) {
	n, err := ValidateName(f.Name)
	if err != nil {
		return f, err
	}
	f.Name = n
	if _, err := ParseRecurringTaskType(string(f.Type)); err != nil {
		return f, err
	}
	if err := f.GenParams.Validate(); err != nil {
		return f, err
	}
	if f.SkipRule != nil {
		rule := strings.TrimSpace(*f.SkipRule)
		if rule == "" {
			f.SkipRule = nil
		} else if !timeline.ValidSkipRule(rule) {
			return f, fmt.Errorf("invalid skip rule %q", rule)
		} else {
			f.SkipRule = &rule
		}
	}
	f.StartAtDate = timeline.Day(f.StartAtDate, time.UTC)
	if f.EndAtDate != nil {
		end := timeline.Day(*f.EndAtDate, time.UTC)
		if end.Before(f.StartAtDate) {
			return f, fmt.Errorf("%w: end %s before start %s", ErrInvalidDateRange,
				end.Format(time.DateOnly), f.StartAtDate.Format(time.DateOnly))
		}
		f.EndAtDate = &end
	}
	return f, nil
}

// NewRecurringTask validates f and builds a recurring task.
func NewRecurringTask(workspaceRefID string, f RecurringTaskFields, src EventSource, now time.Time) (RecurringTask, error) {
	f, err := f.validate()
	if err != nil {
		return RecurringTask{}, err
	}
	rt := RecurringTask{WorkspaceRefID: workspaceRefID}
	rt = rt.apply(f)
	rt.Entity = newEntity(EntityRecurringTask, src, now, f)
	return rt, nil
}

// Fields returns the editable fields.
func (rt RecurringTask) Fields() RecurringTaskFields {
	return RecurringTaskFields{
		ProjectRefID: rt.ProjectRefID,
		Name:         rt.Name,
		Type:         rt.Type,
		GenParams:    rt.GenParams,
		SkipRule:     rt.SkipRule,
		Suspended:    rt.Suspended,
		MustDo:       rt.MustDo,
		StartAtDate:  rt.StartAtDate,
		EndAtDate:    rt.EndAtDate,
	}
}

// Update applies f, recording an event only when something changed.
func (rt RecurringTask) Update(f RecurringTaskFields, src EventSource, now time.Time) (RecurringTask, error) {
	f, err := f.validate()
	if err != nil {
		return rt, err
	}
	if rt.Fields().equal(f) {
		return rt, nil
	}
	rt = rt.apply(f)
	rt.Entity = rt.record(EventUpdated, src, now, f)
	return rt, nil
}

// Suspend stops generation without archiving.
func (rt RecurringTask) Suspend(src EventSource, now time.Time) RecurringTask {
	if rt.Suspended {
		return rt
	}
	rt.Suspended = true
	rt.Entity = rt.record("Suspended", src, now, nil)
	return rt
}

// Unsuspend resumes generation.
func (rt RecurringTask) Unsuspend(src EventSource, now time.Time) RecurringTask {
	if !rt.Suspended {
		return rt
	}
	rt.Suspended = false
	rt.Entity = rt.record("Unsuspended", src, now, nil)
	return rt
}

// Archive marks the recurring task archived.
func (rt RecurringTask) Archive(src EventSource, now time.Time) RecurringTask {
	rt.Entity = rt.archive(src, now)
	return rt
}

func (rt RecurringTask) apply(f RecurringTaskFields) RecurringTask {
	rt.ProjectRefID = f.ProjectRefID
	rt.Name = f.Name
	rt.Type = f.Type
	rt.GenParams = f.GenParams
	rt.SkipRule = f.SkipRule
	rt.Suspended = f.Suspended
	rt.MustDo = f.MustDo
	rt.StartAtDate = f.StartAtDate
	rt.EndAtDate = f.EndAtDate
	return rt
}

func (f RecurringTaskFields) equal(o RecurringTaskFields) bool {
	return f.ProjectRefID == o.ProjectRefID &&
		f.Name == o.Name &&
		f.Type == o.Type &&
		genParamsEqual(f.GenParams, o.GenParams) &&
		sameString(f.SkipRule, o.SkipRule) &&
		f.Suspended == o.Suspended &&
		f.MustDo == o.MustDo &&
		f.StartAtDate.Equal(o.StartAtDate) &&
		sameTime(f.EndAtDate, o.EndAtDate)
}

func genParamsEqual(a, b GenParams) bool {
	return a.Period == b.Period &&
		eisenEqual(a.Eisen, b.Eisen) &&
		difficultyEqual(a.Difficulty, b.Difficulty) &&
		sameInt(a.ActionableFromDay, b.ActionableFromDay) &&
		sameInt(a.ActionableFromMonth, b.ActionableFromMonth) &&
		sameString(a.DueAtTime, b.DueAtTime) &&
		sameInt(a.DueAtDay, b.DueAtDay) &&
		sameInt(a.DueAtMonth, b.DueAtMonth)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
