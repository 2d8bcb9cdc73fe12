package mirror

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process mirror used by tests and dry runs.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	collections map[string]*memoryCollection
	byKey       map[string]string
	fail        func(op string, row Row) error
}

type memoryCollection struct {
	Collection
	rows map[string]Row
}

// NewMemory returns an empty mirror stamping edits with now. A nil now
// uses the wall clock.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:         now,
		collections: make(map[string]*memoryCollection),
		byKey:       make(map[string]string),
	}
}

// FailWith installs a hook consulted before every row operation; a
// non-nil result is returned instead of performing the operation.
func (m *Memory) FailWith(fn func(op string, row Row) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

func (m *Memory) check(op string, row Row) error {
	if m.fail == nil {
		return nil
	}
	return m.fail(op, row)
}

func (m *Memory) UpsertCollection(_ context.Context, key string, schema Schema) (Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[key]; ok {
		c := m.collections[id]
		c.Schema = assignOptionIDs(schema)
		return c.Collection, nil
	}
	c := &memoryCollection{
		Collection: Collection{ID: uuid.New().String(), Key: key, Schema: assignOptionIDs(schema)},
		rows:       make(map[string]Row),
	}
	m.collections[c.ID] = c
	m.byKey[key] = c.ID
	return c.Collection, nil
}

func (m *Memory) LoadAllRows(_ context.Context, collectionID string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("load", Row{}); err != nil {
		return nil, err
	}
	c, ok := m.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collectionID, ErrRowNotFound)
	}
	rows := make([]Row, 0, len(c.rows))
	for _, r := range c.rows {
		rows = append(rows, cloneRow(r))
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ExternalID < rows[j].ExternalID
	})
	return rows, nil
}

func (m *Memory) UpsertRow(_ context.Context, collectionID string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("upsert", row); err != nil {
		return Row{}, err
	}
	c, ok := m.collections[collectionID]
	if !ok {
		return Row{}, fmt.Errorf("collection %s: %w", collectionID, ErrRowNotFound)
	}
	if row.ExternalID == "" {
		row.ExternalID = uuid.New().String()
	} else if _, ok := c.rows[row.ExternalID]; !ok {
		return Row{}, fmt.Errorf("row %s: %w", row.ExternalID, ErrRowNotFound)
	}
	row = cloneRow(row)
	row.LastEditedTime = m.now().UTC()
	c.rows[row.ExternalID] = row
	return cloneRow(row), nil
}

func (m *Memory) DeleteRow(_ context.Context, collectionID, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("delete", Row{ExternalID: externalID}); err != nil {
		return err
	}
	c, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("collection %s: %w", collectionID, ErrRowNotFound)
	}
	if _, ok := c.rows[externalID]; !ok {
		return fmt.Errorf("row %s: %w", externalID, ErrRowNotFound)
	}
	delete(c.rows, externalID)
	return nil
}

// Put stores row as if a user edited it on the mirror, keeping the
// given LastEditedTime. It returns the row with its external id.
func (m *Memory) Put(collectionID string, row Row) Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collectionID]
	if row.ExternalID == "" {
		row.ExternalID = uuid.New().String()
	}
	if row.LastEditedTime.IsZero() {
		row.LastEditedTime = m.now().UTC()
	}
	row = cloneRow(row)
	c.rows[row.ExternalID] = row
	return cloneRow(row)
}

// CollectionID returns the id of the collection with the given key.
func (m *Memory) CollectionID(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	return id, ok
}

func cloneRow(r Row) Row {
	r.Fields = maps.Clone(r.Fields)
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	return r
}

// assignOptionIDs gives every option without an id a fresh one, the way
// a real mirror does on schema update.
func assignOptionIDs(s Schema) Schema {
	out := Schema{Properties: make([]Property, len(s.Properties))}
	for i, p := range s.Properties {
		p.Options = append([]Option(nil), p.Options...)
		for j := range p.Options {
			if p.Options[j].ID == "" {
				p.Options[j].ID = uuid.New().String()
			}
		}
		out.Properties[i] = p
	}
	return out
}
