package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/timeline"
)

var rightNow = time.Date(2023, 12, 19, 10, 14, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func strp(v string) *string { return &v }

func TestDailyEvenSkip(t *testing.T) {
	s, err := New(timeline.Daily, "Exercise", rightNow, time.UTC, "even", Offsets{})
	require.NoError(t, err)

	assert.Equal(t, timeline.Date(2023, 12, 19), s.FirstDay)
	assert.Equal(t, timeline.Date(2023, 12, 19), s.EndDay)
	assert.Equal(t, "2023,Q4,Dec,W51,D2", s.Timeline)
	assert.True(t, s.ShouldSkip)
	assert.Equal(t, "Exercise 23:Dec19", s.FullName)
}

func TestWeeklyActionableAndDue(t *testing.T) {
	s, err := New(timeline.Weekly, "A task", rightNow, time.UTC, "", Offsets{
		ActionableFromDay: intp(3),
		DueAtDay:          intp(5),
	})
	require.NoError(t, err)

	assert.Equal(t, timeline.Date(2023, 12, 18), s.FirstDay)
	assert.Equal(t, timeline.Date(2023, 12, 24), s.EndDay)
	assert.Equal(t, "2023,Q4,Dec,W51", s.Timeline)
	require.NotNil(t, s.ActionableDate)
	assert.Equal(t, timeline.Date(2023, 12, 20), *s.ActionableDate)
	assert.Equal(t, timeline.Date(2023, 12, 22), s.DueDate)
	assert.Equal(t, "A task 23:W51", s.FullName)
	assert.False(t, s.ShouldSkip)
}

func TestQuarterlyAllOffsets(t *testing.T) {
	s, err := New(timeline.Quarterly, "Review", rightNow, time.UTC, "", Offsets{
		ActionableFromMonth: intp(2),
		ActionableFromDay:   intp(15),
		DueAtMonth:          intp(3),
		DueAtDay:            intp(20),
	})
	require.NoError(t, err)

	assert.Equal(t, timeline.Date(2023, 10, 1), s.FirstDay)
	assert.Equal(t, timeline.Date(2023, 12, 31), s.EndDay)
	assert.Equal(t, timeline.Date(2023, 11, 15), *s.ActionableDate)
	assert.Equal(t, timeline.Date(2023, 12, 20), s.DueDate)
	assert.Equal(t, "Review 23:Q4", s.FullName)
}

func TestDueDefaultsToEndDay(t *testing.T) {
	s, err := New(timeline.Monthly, "Pay rent", rightNow, time.UTC, "", Offsets{})
	require.NoError(t, err)
	assert.Nil(t, s.ActionableDate)
	assert.Equal(t, timeline.Date(2023, 12, 31), s.DueDate)
	assert.Equal(t, "Pay rent 23:Dec", s.FullName)
}

func TestDayOffsetClampsToMonthLength(t *testing.T) {
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	s, err := New(timeline.Monthly, "Bills", feb, time.UTC, "", Offsets{DueAtDay: intp(31)})
	require.NoError(t, err)
	assert.Equal(t, timeline.Date(2024, 2, 29), s.DueDate)

	// Yearly: month 2, day 30 clamps to Feb 28 in a common year.
	s, err = New(timeline.Yearly, "Taxes", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), time.UTC, "", Offsets{
		DueAtMonth: intp(2),
		DueAtDay:   intp(30),
	})
	require.NoError(t, err)
	assert.Equal(t, timeline.Date(2023, 2, 28), s.DueDate)
	assert.Equal(t, "Taxes 23", s.FullName)
}

func TestDueAtTimeUsesWorkspaceTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)

	s, err := New(timeline.Daily, "Stretch", rightNow, loc, "", Offsets{DueAtTime: strp("18:30")})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 19, 16, 30, 0, 0, time.UTC), s.DueDate)
	assert.Equal(t, timeline.Date(2023, 12, 19), s.DueDay())
}

func TestInvalidParameters(t *testing.T) {
	cases := map[string]struct {
		period  timeline.Period
		offsets Offsets
	}{
		"day above 31":           {timeline.Monthly, Offsets{DueAtDay: intp(32)}},
		"weekly day above 7":     {timeline.Weekly, Offsets{ActionableFromDay: intp(8)}},
		"quarter month above 3":  {timeline.Quarterly, Offsets{DueAtMonth: intp(4)}},
		"year month above 12":    {timeline.Yearly, Offsets{ActionableFromMonth: intp(13)}},
		"month on monthly":       {timeline.Monthly, Offsets{DueAtMonth: intp(1)}},
		"due before actionable":  {timeline.Weekly, Offsets{ActionableFromDay: intp(5), DueAtDay: intp(2)}},
		"malformed due at time":  {timeline.Daily, Offsets{DueAtTime: strp("6pm")}},
		"quarterly due too soon": {timeline.Quarterly, Offsets{ActionableFromMonth: intp(3), DueAtMonth: intp(1)}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(tc.period, "x", rightNow, time.UTC, "", tc.offsets)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecurrenceParameters), "got %v", err)
		})
	}
}

func TestRoundTripWithinWindow(t *testing.T) {
	offsets := map[timeline.Period]Offsets{
		timeline.Daily:     {},
		timeline.Weekly:    {ActionableFromDay: intp(2), DueAtDay: intp(6)},
		timeline.Monthly:   {ActionableFromDay: intp(10), DueAtDay: intp(28)},
		timeline.Quarterly: {ActionableFromMonth: intp(1), DueAtMonth: intp(3), DueAtDay: intp(31)},
		timeline.Yearly:    {ActionableFromMonth: intp(2), DueAtMonth: intp(11)},
	}
	for p, o := range offsets {
		s, err := New(p, "x", rightNow, time.UTC, "", o)
		require.NoError(t, err)
		require.True(t, s.Contains(rightNow, time.UTC), "period %s", p)

		for _, day := range s.Window().Days(s.EndDay) {
			other, err := New(p, "x", day.Add(12*time.Hour), time.UTC, "", o)
			require.NoError(t, err)
			assert.Equal(t, s.Timeline, other.Timeline, "period %s day %s", p, day)
			assert.Equal(t, s.DueDate, other.DueDate, "period %s day %s", p, day)
		}
	}
}

func TestWithLeadTime(t *testing.T) {
	s, err := New(timeline.Yearly, "Birthday", rightNow, time.UTC, "", Offsets{
		DueAtMonth: intp(1),
		DueAtDay:   intp(5),
	})
	require.NoError(t, err)

	s = s.WithLeadTime(14)
	assert.Equal(t, timeline.Date(2023, 1, 1), *s.ActionableDate)

	s, err = New(timeline.Yearly, "Birthday", rightNow, time.UTC, "", Offsets{
		DueAtMonth: intp(6),
		DueAtDay:   intp(20),
	})
	require.NoError(t, err)
	s = s.WithLeadTime(14)
	assert.Equal(t, timeline.Date(2023, 6, 6), *s.ActionableDate)
}
