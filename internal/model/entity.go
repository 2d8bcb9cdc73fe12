package model

import (
	"encoding/json"
	"time"
)

// EntityType names a kind of persisted aggregate. It doubles as the table
// name of the aggregate and the prefix of its event table.
type EntityType string

const (
	EntityWorkspace     EntityType = "workspace"
	EntityProject       EntityType = "project"
	EntityRecurringTask EntityType = "recurring_task"
	EntityInboxTask     EntityType = "inbox_task"
	EntityBigPlan       EntityType = "big_plan"
	EntityMetric        EntityType = "metric"
	EntityPerson        EntityType = "person"
	EntityVacation      EntityType = "vacation"
)

// EventSource records what triggered a mutation.
type EventSource string

const (
	EventSourceCLI       EventSource = "cli"
	EventSourceAPI       EventSource = "api"
	EventSourceGenerator EventSource = "generator"
	EventSourceSync      EventSource = "sync"
	EventSourceGC        EventSource = "gc"
)

// Event names shared by every entity type.
const (
	EventCreated  = "Created"
	EventUpdated  = "Updated"
	EventArchived = "Archived"
)

// Event is one entry of an entity's append-only stream.
type Event struct {
	EntityType EntityType      `json:"entity_type"`
	RefID      string          `json:"ref_id"`
	Version    int             `json:"version"`
	Source     EventSource     `json:"source"`
	Name       string          `json:"name"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Entity is the header every aggregate embeds. Mutating methods on
// aggregates return a copy with a bumped version and one more pending
// event; the store flushes pending events when the aggregate is saved.
type Entity struct {
	RefID            string     `json:"ref_id"`
	Version          int        `json:"version"`
	Archived         bool       `json:"archived"`
	CreatedTime      time.Time  `json:"created_time"`
	LastModifiedTime time.Time  `json:"last_modified_time"`
	ArchivedTime     *time.Time `json:"archived_time,omitempty"`

	kind   EntityType
	events []Event
}

// Aggregate is implemented by every entity through the embedded header.
type Aggregate interface {
	Header() Entity
}

// Header returns the entity header.
func (e Entity) Header() Entity {
	return e
}

// Kind returns the entity type the header belongs to.
func (e Entity) Kind() EntityType {
	return e.kind
}

// PendingEvents returns the events not yet written to the store.
func (e Entity) PendingEvents() []Event {
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// StoredVersion is the version the entity had when it was last loaded.
func (e Entity) StoredVersion() int {
	return e.Version - len(e.events)
}

// RestoreEntity rebuilds a header read back from storage, with no pending events.
func RestoreEntity(
	kind EntityType,
	refID string,
	version int,
	archived bool,
	createdTime, lastModifiedTime time.Time,
	archivedTime *time.Time,
) Entity {
	return Entity{
		RefID:            refID,
		Version:          version,
		Archived:         archived,
		CreatedTime:      createdTime.UTC(),
		LastModifiedTime: lastModifiedTime.UTC(),
		ArchivedTime:     utcPtr(archivedTime),
		kind:             kind,
	}
}

func newEntity(kind EntityType, src EventSource, now time.Time, payload any) Entity {
	e := Entity{
		CreatedTime: now.UTC(),
		kind:        kind,
	}
	return e.record(EventCreated, src, now, payload)
}

// record appends an event and bumps the version. The events slice is
// copied so values derived from the same parent never share storage.
func (e Entity) record(name string, src EventSource, now time.Time, payload any) Entity {
	var raw json.RawMessage
	if payload != nil {
		// Payloads are plain field structs; marshaling cannot fail.
		raw, _ = json.Marshal(payload)
	}
	e.Version++
	e.LastModifiedTime = now.UTC()

	events := make([]Event, len(e.events), len(e.events)+1)
	copy(events, e.events)
	e.events = append(events, Event{
		EntityType: e.kind,
		RefID:      e.RefID,
		Version:    e.Version,
		Source:     src,
		Name:       name,
		Timestamp:  now.UTC(),
		Payload:    raw,
	})
	return e
}

func (e Entity) archive(src EventSource, now time.Time) Entity {
	if e.Archived {
		return e
	}
	t := now.UTC()
	e.Archived = true
	e.ArchivedTime = &t
	return e.record(EventArchived, src, now, nil)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func timePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
