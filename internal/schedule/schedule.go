// Package schedule resolves a period, an anchor instant and recurrence
// offsets into the concrete dates of one recurrence window.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/nhle/lifeplan/internal/timeline"
)

// ErrInvalidRecurrenceParameters is returned for offsets that cannot be
// resolved for the requested period.
var ErrInvalidRecurrenceParameters = errors.New("invalid recurrence parameters")

// Offsets are the optional actionable and due offsets of a recurrence.
// Days and months are 1-based offsets from the start of the window.
type Offsets struct {
	ActionableFromDay   *int    `json:"actionable_from_day,omitempty" yaml:"actionable_from_day,omitempty"`
	ActionableFromMonth *int    `json:"actionable_from_month,omitempty" yaml:"actionable_from_month,omitempty"`
	DueAtTime           *string `json:"due_at_time,omitempty" yaml:"due_at_time,omitempty"`
	DueAtDay            *int    `json:"due_at_day,omitempty" yaml:"due_at_day,omitempty"`
	DueAtMonth          *int    `json:"due_at_month,omitempty" yaml:"due_at_month,omitempty"`
}

// Schedule is one resolved recurrence window.
type Schedule struct {
	Period         timeline.Period `json:"period"`
	Name           string          `json:"name"`
	FullName       string          `json:"full_name"`
	Timeline       string          `json:"timeline"`
	FirstDay       time.Time       `json:"first_day"`
	EndDay         time.Time       `json:"end_day"`
	ActionableDate *time.Time      `json:"actionable_date,omitempty"`
	DueDate        time.Time       `json:"due_date"`
	ShouldSkip     bool            `json:"should_skip"`
}

// Window returns the timeline window the schedule covers.
func (s Schedule) Window() timeline.Window {
	return timeline.Window{Period: s.Period, FirstDay: s.FirstDay, EndDay: s.EndDay, Label: s.Timeline}
}

// Contains reports whether the instant t, taken in loc, is inside the window.
func (s Schedule) Contains(t time.Time, loc *time.Location) bool {
	return s.Window().Contains(t, loc)
}

// DueDay is the due date truncated to a calendar day.
func (s Schedule) DueDay() time.Time {
	return timeline.Date(s.DueDate.Year(), s.DueDate.Month(), s.DueDate.Day())
}

// Validate checks that offsets make sense for period p.
func (o Offsets) Validate(p timeline.Period) error {
	if !p.Valid() {
		return fmt.Errorf("%w: unknown period %q", ErrInvalidRecurrenceParameters, p)
	}
	if err := validateDay(p, "actionable_from_day", o.ActionableFromDay); err != nil {
		return err
	}
	if err := validateDay(p, "due_at_day", o.DueAtDay); err != nil {
		return err
	}
	if err := validateMonth(p, "actionable_from_month", o.ActionableFromMonth); err != nil {
		return err
	}
	if err := validateMonth(p, "due_at_month", o.DueAtMonth); err != nil {
		return err
	}
	if o.DueAtTime != nil {
		if _, err := time.Parse("15:04", *o.DueAtTime); err != nil {
			return fmt.Errorf("%w: due_at_time %q is not HH:MM", ErrInvalidRecurrenceParameters, *o.DueAtTime)
		}
	}
	return nil
}

func validateDay(p timeline.Period, field string, v *int) error {
	if v == nil || p == timeline.Daily {
		return nil
	}
	limit := 31
	if p == timeline.Weekly {
		limit = 7
	}
	if *v < 1 || *v > limit {
		return fmt.Errorf("%w: %s=%d outside 1..%d for %s", ErrInvalidRecurrenceParameters, field, *v, limit, p)
	}
	return nil
}

func validateMonth(p timeline.Period, field string, v *int) error {
	if v == nil {
		return nil
	}
	var limit int
	switch p {
	case timeline.Quarterly:
		limit = 3
	case timeline.Yearly:
		limit = 12
	default:
		return fmt.Errorf("%w: %s is not supported for %s", ErrInvalidRecurrenceParameters, field, p)
	}
	if *v < 1 || *v > limit {
		return fmt.Errorf("%w: %s=%d outside 1..%d for %s", ErrInvalidRecurrenceParameters, field, *v, limit, p)
	}
	return nil
}

// New resolves the schedule of period p containing rightNow.
func New(
	p timeline.Period,
	name string,
	rightNow time.Time,
	loc *time.Location,
	skipRule string,
	offsets Offsets,
) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := offsets.Validate(p); err != nil {
		return Schedule{}, err
	}

	w, err := timeline.Compute(p, rightNow, loc)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: %v", ErrInvalidRecurrenceParameters, err)
	}

	s := Schedule{
		Period:   p,
		Name:     name,
		FullName: fullName(p, name, w.FirstDay),
		Timeline: w.Label,
		FirstDay: w.FirstDay,
		EndDay:   w.EndDay,
		DueDate:  w.EndDay,
	}
	if p != timeline.Yearly {
		s.ShouldSkip = timeline.ShouldSkip(skipRule, p, w.FirstDay)
	}

	if d, ok := offsetDate(p, w.FirstDay, offsets.ActionableFromMonth, offsets.ActionableFromDay); ok {
		s.ActionableDate = &d
	}
	if d, ok := offsetDate(p, w.FirstDay, offsets.DueAtMonth, offsets.DueAtDay); ok {
		s.DueDate = d
	}
	if s.ActionableDate != nil && s.ActionableDate.After(s.DueDate) {
		return Schedule{}, fmt.Errorf(
			"%w: actionable %s after due %s",
			ErrInvalidRecurrenceParameters,
			s.ActionableDate.Format(time.DateOnly), s.DueDate.Format(time.DateOnly),
		)
	}
	if offsets.DueAtTime != nil {
		clock, _ := time.Parse("15:04", *offsets.DueAtTime)
		y, m, d := s.DueDate.Date()
		s.DueDate = time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc).UTC()
	}

	return s, nil
}

// offsetDate applies month and day offsets to the first day of a window.
// Month offsets only apply to quarterly and yearly windows, day offsets
// to every period but daily.
func offsetDate(p timeline.Period, first time.Time, month, day *int) (time.Time, bool) {
	if p == timeline.Daily || (month == nil && day == nil) {
		return time.Time{}, false
	}
	switch p {
	case timeline.Weekly:
		if day == nil {
			return time.Time{}, false
		}
		return first.AddDate(0, 0, *day-1), true
	case timeline.Monthly:
		if day == nil {
			return time.Time{}, false
		}
		return timeline.ClampDate(first.Year(), first.Month(), *day), true
	default:
		m := first.Month()
		if month != nil {
			m += time.Month(*month - 1)
		}
		d := 1
		if day != nil {
			d = *day
		}
		return timeline.ClampDate(first.Year(), m, d), true
	}
}

// fullName renders "{name} {yy}:{suffix}" for the window starting at first.
func fullName(p timeline.Period, name string, first time.Time) string {
	yy := first.Year() % 100
	mon := first.Month().String()[:3]
	switch p {
	case timeline.Daily:
		return fmt.Sprintf("%s %02d:%s%d", name, yy, mon, first.Day())
	case timeline.Weekly:
		_, week := first.ISOWeek()
		return fmt.Sprintf("%s %02d:W%d", name, yy, week)
	case timeline.Monthly:
		return fmt.Sprintf("%s %02d:%s", name, yy, mon)
	case timeline.Quarterly:
		return fmt.Sprintf("%s %02d:Q%d", name, yy, timeline.Quarter(first.Month()))
	default:
		return fmt.Sprintf("%s %02d", name, yy)
	}
}

// WithLeadTime sets the actionable date to days before the due date,
// never earlier than the first day of the window.
func (s Schedule) WithLeadTime(days int) Schedule {
	d := s.DueDay().AddDate(0, 0, -days)
	if d.Before(s.FirstDay) {
		d = s.FirstDay
	}
	s.ActionableDate = &d
	return s
}
