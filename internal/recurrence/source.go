package recurrence

import (
	"fmt"
	"time"

	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/schedule"
	"github.com/nhle/lifeplan/internal/timeline"
)

// recurrence is one thing that materializes a task per window: a
// recurring task, a metric collection, a person catch-up or a birthday.
// Source tells them apart.
type recurrence struct {
	Source       model.InboxTaskSource
	RefID        string
	Name         string
	ProjectRefID string
	Params       model.GenParams
	Type         *model.RecurringTaskType
	SkipRule     string
	Suspended    bool
	MustDo       bool
	StartAt      *time.Time
	EndAt        *time.Time
	LastModified time.Time

	// Birthday and PreparationDays are set for person birthdays only.
	Birthday        *model.Birthday
	PreparationDays int
}

func fromRecurringTask(rt model.RecurringTask) recurrence {
	r := recurrence{
		Source:       model.SourceRecurringTask,
		RefID:        rt.RefID,
		Name:         rt.Name,
		ProjectRefID: rt.ProjectRefID,
		Params:       rt.GenParams,
		Type:         &rt.Type,
		Suspended:    rt.Suspended,
		MustDo:       rt.MustDo,
		StartAt:      &rt.StartAtDate,
		EndAt:        rt.EndAtDate,
		LastModified: rt.LastModifiedTime,
	}
	if rt.SkipRule != nil {
		r.SkipRule = *rt.SkipRule
	}
	return r
}

func fromMetric(m model.Metric, defaultProject string) (recurrence, bool) {
	if m.CollectionParams == nil {
		return recurrence{}, false
	}
	return recurrence{
		Source:       model.SourceMetric,
		RefID:        m.RefID,
		Name:         fmt.Sprintf("Collect value for metric %s", m.Name),
		ProjectRefID: defaultProject,
		Params:       *m.CollectionParams,
		LastModified: m.LastModifiedTime,
	}, true
}

func fromPersonCatchUp(p model.Person, defaultProject string) (recurrence, bool) {
	if p.CatchUpParams == nil {
		return recurrence{}, false
	}
	return recurrence{
		Source:       model.SourcePersonCatchUp,
		RefID:        p.RefID,
		Name:         fmt.Sprintf("Catch up with %s", p.Name),
		ProjectRefID: defaultProject,
		Params:       *p.CatchUpParams,
		LastModified: p.LastModifiedTime,
	}, true
}

func fromPersonBirthday(p model.Person, defaultProject string) (recurrence, bool) {
	if p.Birthday == nil {
		return recurrence{}, false
	}
	b := *p.Birthday
	return recurrence{
		Source:          model.SourcePersonBirthday,
		RefID:           p.RefID,
		Name:            fmt.Sprintf("Wish happy birthday to %s", p.Name),
		ProjectRefID:    defaultProject,
		Params:          model.GenParams{Period: timeline.Yearly},
		LastModified:    p.LastModifiedTime,
		Birthday:        &b,
		PreparationDays: p.BirthdayPreparationDays,
	}, true
}

// window resolves the window containing rightNow.
func (r recurrence) window(rightNow time.Time, loc *time.Location) (schedule.Schedule, error) {
	if r.Birthday == nil {
		return schedule.New(r.Params.Period, r.Name, rightNow, loc, r.SkipRule, r.Params.Offsets)
	}

	s, err := schedule.New(timeline.Yearly, r.Name, rightNow, loc, "", schedule.Offsets{})
	if err != nil {
		return schedule.Schedule{}, err
	}
	s.DueDate = timeline.ClampDate(s.FirstDay.Year(), r.Birthday.Month, r.Birthday.Day)
	return s.WithLeadTime(r.PreparationDays), nil
}

// outsideBounds reports whether the window lies before the start or
// after the end of the recurrence.
func (r recurrence) outsideBounds(s schedule.Schedule) bool {
	if r.StartAt != nil && r.StartAt.After(s.EndDay) {
		return true
	}
	return r.EndAt != nil && r.EndAt.Before(s.FirstDay)
}

func (r recurrence) generated(s schedule.Schedule) model.GeneratedTask {
	return model.GeneratedTask{
		ProjectRefID:   r.ProjectRefID,
		Name:           s.FullName,
		Timeline:       s.Timeline,
		Type:           r.Type,
		Eisen:          r.Params.Eisen,
		Difficulty:     r.Params.Difficulty,
		ActionableDate: s.ActionableDate,
		DueDate:        s.DueDate,
	}
}
