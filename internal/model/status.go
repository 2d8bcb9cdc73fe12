package model

import (
	"fmt"
	"time"
)

// InboxTaskStatus is the lifecycle state of an inbox task or big plan.
type InboxTaskStatus string

const (
	StatusNotStarted InboxTaskStatus = "not_started"
	StatusAccepted   InboxTaskStatus = "accepted"
	StatusRecurring  InboxTaskStatus = "recurring"
	StatusInProgress InboxTaskStatus = "in_progress"
	StatusBlocked    InboxTaskStatus = "blocked"
	StatusNotDone    InboxTaskStatus = "not_done"
	StatusDone       InboxTaskStatus = "done"
)

var allStatuses = []InboxTaskStatus{
	StatusNotStarted, StatusAccepted, StatusRecurring,
	StatusInProgress, StatusBlocked, StatusNotDone, StatusDone,
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []InboxTaskStatus {
	return append([]InboxTaskStatus(nil), allStatuses...)
}

// ParseInboxTaskStatus validates a status string.
func ParseInboxTaskStatus(s string) (InboxTaskStatus, error) {
	st := InboxTaskStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s InboxTaskStatus) Valid() bool {
	for _, candidate := range allStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsAcceptedOrMore is true for every status past not_started.
func (s InboxTaskStatus) IsAcceptedOrMore() bool {
	return s.Valid() && s != StatusNotStarted
}

// IsWorkingOrMore is true once work has started on the task.
func (s InboxTaskStatus) IsWorkingOrMore() bool {
	switch s {
	case StatusInProgress, StatusBlocked, StatusNotDone, StatusDone:
		return true
	}
	return false
}

// IsCompleted is true for the two terminal statuses.
func (s InboxTaskStatus) IsCompleted() bool {
	return s == StatusNotDone || s == StatusDone
}

// StatusTimes tracks when a task entered the accepted, working and
// completed stages.
type StatusTimes struct {
	AcceptedTime  *time.Time `json:"accepted_time,omitempty"`
	WorkingTime   *time.Time `json:"working_time,omitempty"`
	CompletedTime *time.Time `json:"completed_time,omitempty"`
}

// transition stamps the stages status has reached and clears the ones it
// no longer has. Already stamped stages keep their original time.
func (st StatusTimes) transition(status InboxTaskStatus, now time.Time) StatusTimes {
	stamp := func(cur *time.Time, reached bool) *time.Time {
		if !reached {
			return nil
		}
		if cur != nil {
			return cur
		}
		return timePtr(now)
	}
	return StatusTimes{
		AcceptedTime:  stamp(st.AcceptedTime, status.IsAcceptedOrMore()),
		WorkingTime:   stamp(st.WorkingTime, status.IsWorkingOrMore()),
		CompletedTime: stamp(st.CompletedTime, status.IsCompleted()),
	}
}

func (st StatusTimes) equal(other StatusTimes) bool {
	return sameTime(st.AcceptedTime, other.AcceptedTime) &&
		sameTime(st.WorkingTime, other.WorkingTime) &&
		sameTime(st.CompletedTime, other.CompletedTime)
}
