package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2023, 12, 19, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func newUserTask(t *testing.T) InboxTask {
	t.Helper()
	task, err := NewInboxTask(NewInboxTaskParams{
		WorkspaceRefID:  "ws",
		InboxTaskFields: InboxTaskFields{ProjectRefID: "p", Name: "Buy milk"},
	}, EventSourceCLI, t0)
	require.NoError(t, err)
	return task
}

func TestNewInboxTaskEmitsCreated(t *testing.T) {
	task := newUserTask(t)

	assert.Equal(t, 1, task.Version)
	assert.Equal(t, 0, task.StoredVersion())
	assert.Equal(t, StatusNotStarted, task.Status)
	assert.Nil(t, task.AcceptedTime)

	events := task.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0].Name)
	assert.Equal(t, EntityInboxTask, events[0].EntityType)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, EventSourceCLI, events[0].Source)
}

func TestChangeStatusStampsAndClearsTimestamps(t *testing.T) {
	task := newUserTask(t)

	task, err := task.ChangeStatus(StatusInProgress, EventSourceCLI, at(1))
	require.NoError(t, err)
	require.NotNil(t, task.AcceptedTime)
	require.NotNil(t, task.WorkingTime)
	assert.Equal(t, at(1), *task.AcceptedTime)
	assert.Nil(t, task.CompletedTime)

	task, err = task.ChangeStatus(StatusDone, EventSourceCLI, at(2))
	require.NoError(t, err)
	assert.Equal(t, at(1), *task.AcceptedTime, "accepted time is kept")
	assert.Equal(t, at(2), *task.CompletedTime)

	// Reverting from done back to accepted clears working and completed.
	task, err = task.ChangeStatus(StatusAccepted, EventSourceCLI, at(3))
	require.NoError(t, err)
	assert.NotNil(t, task.AcceptedTime)
	assert.Nil(t, task.WorkingTime)
	assert.Nil(t, task.CompletedTime)

	task, err = task.ChangeStatus(StatusNotStarted, EventSourceCLI, at(4))
	require.NoError(t, err)
	assert.Nil(t, task.AcceptedTime)

	assert.Equal(t, 5, task.Version)
	assert.Len(t, task.PendingEvents(), 5)
}

func TestStatusTimestampInvariantHoldsForAnySequence(t *testing.T) {
	task := newUserTask(t)
	sequence := []InboxTaskStatus{
		StatusAccepted, StatusBlocked, StatusNotDone, StatusInProgress,
		StatusDone, StatusNotStarted, StatusDone, StatusBlocked, StatusAccepted,
	}
	for i, st := range sequence {
		var err error
		task, err = task.ChangeStatus(st, EventSourceSync, at(i))
		require.NoError(t, err)

		assert.Equal(t, st.IsAcceptedOrMore(), task.AcceptedTime != nil, "step %d %s", i, st)
		assert.Equal(t, st.IsWorkingOrMore(), task.WorkingTime != nil, "step %d %s", i, st)
		assert.Equal(t, st.IsCompleted(), task.CompletedTime != nil, "step %d %s", i, st)
	}
}

func TestUserTaskCannotBecomeRecurring(t *testing.T) {
	task := newUserTask(t)
	_, err := task.ChangeStatus(StatusRecurring, EventSourceCLI, at(1))
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))

	_, err = task.ChangeStatus("paused", EventSourceCLI, at(1))
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}

func TestActionableAfterDueRejected(t *testing.T) {
	actionable := time.Date(2023, 12, 22, 0, 0, 0, 0, time.UTC)
	due := time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)
	_, err := NewInboxTask(NewInboxTaskParams{
		WorkspaceRefID: "ws",
		InboxTaskFields: InboxTaskFields{
			ProjectRefID: "p", Name: "Late", ActionableDate: &actionable, DueDate: &due,
		},
	}, EventSourceCLI, t0)
	assert.True(t, errors.Is(err, ErrActionableAfterDue))
}

func TestGeneratedTaskStartsRecurring(t *testing.T) {
	habit := RecurringTaskTypeHabit
	task, err := NewGeneratedInboxTask("ws", SourceRecurringTask, "rt-1", GeneratedTask{
		ProjectRefID: "p",
		Name:         "Exercise 23:Dec19",
		Timeline:     "2023,Q4,Dec,W51,D2",
		Type:         &habit,
		DueDate:      time.Date(2023, 12, 19, 0, 0, 0, 0, time.UTC),
	}, t0, EventSourceGenerator, t0)
	require.NoError(t, err)

	assert.Equal(t, StatusRecurring, task.Status)
	require.NotNil(t, task.AcceptedTime)
	assert.Equal(t, t0, *task.AcceptedTime)
	assert.Equal(t, "rt-1", *task.SourceRefID)

	same, changed, err := task.UpdateLinkToRecurrence(GeneratedTask{
		ProjectRefID: "p",
		Name:         "Exercise 23:Dec19",
		Timeline:     "2023,Q4,Dec,W51,D2",
		Type:         &habit,
		DueDate:      time.Date(2023, 12, 19, 0, 0, 0, 0, time.UTC),
	}, at(5), EventSourceGenerator, at(5))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, task.Version, same.Version)

	renamed, changed, err := task.UpdateLinkToRecurrence(GeneratedTask{
		ProjectRefID: "p",
		Name:         "Run 23:Dec19",
		Timeline:     "2023,Q4,Dec,W51,D2",
		Type:         &habit,
		DueDate:      time.Date(2023, 12, 19, 0, 0, 0, 0, time.UTC),
	}, at(5), EventSourceGenerator, at(5))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Run 23:Dec19", renamed.Name)
	assert.Equal(t, task.Version+1, renamed.Version)
}

func TestArchiveStampsTime(t *testing.T) {
	task := newUserTask(t).Archive(EventSourceCLI, at(10))
	assert.True(t, task.Archived)
	require.NotNil(t, task.ArchivedTime)
	assert.False(t, task.LastModifiedTime.Before(*task.ArchivedTime))

	again := task.Archive(EventSourceCLI, at(20))
	assert.Equal(t, task.Version, again.Version)
}

func TestValidateName(t *testing.T) {
	n, err := ValidateName("  Read a book ")
	require.NoError(t, err)
	assert.Equal(t, "Read a book", n)

	_, err = ValidateName("   ")
	assert.True(t, errors.Is(err, ErrInvalidName))
	_, err = ValidateName("two\nlines")
	assert.True(t, errors.Is(err, ErrInvalidName))

	k, err := ValidateKey("Home-Improvement")
	require.NoError(t, err)
	assert.Equal(t, "home-improvement", k)
	_, err = ValidateKey("with space")
	assert.Error(t, err)
}
