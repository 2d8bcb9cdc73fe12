// Package timeline computes period windows and their canonical labels.
//
// A window is rendered inclusively as a (FirstDay, EndDay) pair of UTC
// midnights. Dates are taken in the workspace timezone before being
// normalized, so "2023-12-19 23:30 America/New_York" lands on the 19th
// even though the UTC instant is already the 20th.
package timeline

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // workspaces name arbitrary IANA zones

	"github.com/jinzhu/now"
)

// Window is the range covered by one period around an anchor instant.
type Window struct {
	Period   Period    `json:"period"`
	FirstDay time.Time `json:"first_day"`
	EndDay   time.Time `json:"end_day"`
	Label    string    `json:"label"`
}

// calendar is shared by every window computation; weeks start on Monday.
var calendar = &now.Config{
	WeekStartDay: time.Monday,
	TimeLocation: time.UTC,
}

// Day returns the calendar date of t in loc as a UTC midnight.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC midnight for the given calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return calendar.With(Date(year, month, 1)).EndOfMonth().Day()
}

// ClampDate builds a date, clamping day to the length of the month.
// Months outside 1..12 roll over into neighbouring years.
func ClampDate(year int, month time.Month, day int) time.Time {
	first := Date(year, month, 1)
	last := DaysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date(first.Year(), first.Month(), day)
}

// Compute returns the window of period p that contains instant t in loc.
func Compute(p Period, t time.Time, loc *time.Location) (Window, error) {
	day := Day(t, loc)
	n := calendar.With(day)

	var first, end time.Time
	switch p {
	case Daily:
		first, end = day, day
	case Weekly:
		first, end = n.BeginningOfWeek(), n.EndOfWeek()
	case Monthly:
		first, end = n.BeginningOfMonth(), n.EndOfMonth()
	case Quarterly:
		first, end = n.BeginningOfQuarter(), n.EndOfQuarter()
	case Yearly:
		first, end = n.BeginningOfYear(), n.EndOfYear()
	default:
		return Window{}, fmt.Errorf("unknown period %q", p)
	}

	first = Day(first, time.UTC)
	return Window{
		Period:   p,
		FirstDay: first,
		EndDay:   Day(end, time.UTC),
		Label:    Label(p, first),
	}, nil
}

// Label renders the timeline identifier of day for period p. Callers pass
// the first day of the window so that weeks straddling a month keep one
// label. Year, quarter and month always come from day while the week is
// the ISO week, so 2024-12-30 is "2024,Q4,Dec,W1".
func Label(p Period, day time.Time) string {
	year := day.Year()
	quarter := Quarter(day.Month())
	month := day.Month().String()[:3]
	_, week := day.ISOWeek()

	parts := []string{fmt.Sprintf("%d", year)}
	switch p {
	case Yearly:
	case Quarterly:
		parts = append(parts, fmt.Sprintf("Q%d", quarter))
	case Monthly:
		parts = append(parts, fmt.Sprintf("Q%d", quarter), month)
	case Weekly:
		parts = append(parts, fmt.Sprintf("Q%d", quarter), month, fmt.Sprintf("W%d", week))
	case Daily:
		parts = append(parts,
			fmt.Sprintf("Q%d", quarter), month,
			fmt.Sprintf("W%d", week), fmt.Sprintf("D%d", Weekday(day)),
		)
	}
	return strings.Join(parts, ",")
}

// Quarter maps a month onto 1..4.
func Quarter(m time.Month) int {
	return (int(m)-1)/3 + 1
}

// Weekday numbers days Monday=1 through Sunday=7.
func Weekday(day time.Time) int {
	wd := int(day.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Contains reports whether t, taken in loc, falls inside w.
func (w Window) Contains(t time.Time, loc *time.Location) bool {
	return w.ContainsDay(Day(t, loc))
}

// ContainsDay reports whether the UTC midnight day falls inside w.
func (w Window) ContainsDay(day time.Time) bool {
	return !day.Before(w.FirstDay) && !day.After(w.EndDay)
}

// Days enumerates the days of w from FirstDay up to and including last.
func (w Window) Days(last time.Time) []time.Time {
	if last.After(w.EndDay) {
		last = w.EndDay
	}
	var days []time.Time
	for d := w.FirstDay; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Within reports whether w lies entirely inside [first, end].
func (w Window) Within(first, end time.Time) bool {
	return !w.FirstDay.Before(first) && !w.EndDay.After(end)
}
