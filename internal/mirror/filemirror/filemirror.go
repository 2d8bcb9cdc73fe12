// Package filemirror keeps mirror collections in a single YAML document,
// so a plain text editor can act as the external side of a sync.
package filemirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nhle/lifeplan/internal/mirror"
)

type document struct {
	Collections []*collection `yaml:"collections"`
}

type collection struct {
	mirror.Collection `yaml:",inline"`
	Rows              []mirror.Row `yaml:"rows"`
}

// Mirror is a mirror.Mirror stored in a YAML file. Every operation reads
// the file, so edits made between calls are picked up; writes replace
// the file atomically.
type Mirror struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New returns a mirror backed by path. The file is created on first write.
func New(path string, now func() time.Time) *Mirror {
	if now == nil {
		now = time.Now
	}
	return &Mirror{path: path, now: now}
}

func (m *Mirror) UpsertCollection(_ context.Context, key string, schema mirror.Schema) (mirror.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return mirror.Collection{}, err
	}
	c := doc.byKey(key)
	if c == nil {
		c = &collection{Collection: mirror.Collection{ID: uuid.New().String(), Key: key}}
		doc.Collections = append(doc.Collections, c)
	}
	c.Schema = withOptionIDs(schema)
	if err := m.save(doc); err != nil {
		return mirror.Collection{}, err
	}
	return c.Collection, nil
}

func (m *Mirror) LoadAllRows(_ context.Context, collectionID string) ([]mirror.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	c := doc.byID(collectionID)
	if c == nil {
		return nil, fmt.Errorf("collection %s: %w", collectionID, mirror.ErrRowNotFound)
	}
	rows := make([]mirror.Row, len(c.Rows))
	for i, r := range c.Rows {
		if r.Fields == nil {
			r.Fields = map[string]string{}
		}
		rows[i] = r
	}
	return rows, nil
}

func (m *Mirror) UpsertRow(_ context.Context, collectionID string, row mirror.Row) (mirror.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return mirror.Row{}, err
	}
	c := doc.byID(collectionID)
	if c == nil {
		return mirror.Row{}, fmt.Errorf("collection %s: %w", collectionID, mirror.ErrRowNotFound)
	}

	row.LastEditedTime = m.now().UTC()
	if row.ExternalID == "" {
		row.ExternalID = uuid.New().String()
		c.Rows = append(c.Rows, row)
	} else {
		i := c.indexOf(row.ExternalID)
		if i < 0 {
			return mirror.Row{}, fmt.Errorf("row %s: %w", row.ExternalID, mirror.ErrRowNotFound)
		}
		c.Rows[i] = row
	}
	if err := m.save(doc); err != nil {
		return mirror.Row{}, err
	}
	return row, nil
}

func (m *Mirror) DeleteRow(_ context.Context, collectionID, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return err
	}
	c := doc.byID(collectionID)
	if c == nil {
		return fmt.Errorf("collection %s: %w", collectionID, mirror.ErrRowNotFound)
	}
	i := c.indexOf(externalID)
	if i < 0 {
		return fmt.Errorf("row %s: %w", externalID, mirror.ErrRowNotFound)
	}
	c.Rows = append(c.Rows[:i], c.Rows[i+1:]...)
	return m.save(doc)
}

func (m *Mirror) load() (*document, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading mirror file %s: %w", m.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing mirror file %s: %w", m.path, err)
	}
	return &doc, nil
}

// save writes to a sibling temp file and renames it over the original.
func (m *Mirror) save(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding mirror file: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating mirror directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".mirror-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp mirror file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp mirror file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp mirror file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replacing mirror file %s: %w", m.path, err)
	}
	return nil
}

func (d *document) byKey(key string) *collection {
	for _, c := range d.Collections {
		if c.Key == key {
			return c
		}
	}
	return nil
}

func (d *document) byID(id string) *collection {
	for _, c := range d.Collections {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (c *collection) indexOf(externalID string) int {
	for i, r := range c.Rows {
		if r.ExternalID == externalID {
			return i
		}
	}
	return -1
}

func withOptionIDs(s mirror.Schema) mirror.Schema {
	out := mirror.Schema{Properties: make([]mirror.Property, len(s.Properties))}
	for i, p := range s.Properties {
		p.Options = append([]mirror.Option(nil), p.Options...)
		for j := range p.Options {
			if p.Options[j].ID == "" {
				p.Options[j].ID = uuid.New().String()
			}
		}
		out.Properties[i] = p
	}
	return out
}
