package model

import (
	"fmt"
	"time"

	"github.com/nhle/lifeplan/internal/timeline"
)

// Vacation is an inclusive date range during which non must-do
// recurrences are not generated.
type Vacation struct {
	Entity

	WorkspaceRefID string    `json:"workspace_ref_id"`
	Name           string    `json:"name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// NewVacation validates and builds a vacation.
func NewVacation(workspaceRefID, name string, start, end time.Time, src EventSource, now time.Time) (Vacation, error) {
	n, err := ValidateName(name)
	if err != nil {
		return Vacation{}, err
	}
	start, end = timeline.Day(start, time.UTC), timeline.Day(end, time.UTC)
	if end.Before(start) {
		return Vacation{}, fmt.Errorf("%w: vacation ends %s before it starts %s",
			ErrInvalidDateRange, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	v := Vacation{WorkspaceRefID: workspaceRefID, Name: n, StartDate: start, EndDate: end}
	v.Entity = newEntity(EntityVacation, src, now, v)
	return v, nil
}

// Covers reports whether the vacation fully contains [first, end].
func (v Vacation) Covers(first, end time.Time) bool {
	return !first.Before(v.StartDate) && !end.After(v.EndDate)
}

// Archive marks the vacation archived.
func (v Vacation) Archive(src EventSource, now time.Time) Vacation {
	v.Entity = v.archive(src, now)
	return v
}
