// Package extindex remembers which mirror row each local entity is
// linked to, per collection, along with the collection's last known
// mirror identity and schema.
package extindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/store"
)

// LinkStore persists collections and links. *store.SQLiteStore implements it.
type LinkStore interface {
	UpsertExternalCollection(ctx context.Context, c model.ExternalCollection) error
	GetExternalCollection(ctx context.Context, key string) (model.ExternalCollection, error)
	UpsertExternalLink(ctx context.Context, link model.ExternalLink) error
	GetExternalLinks(ctx context.Context, collectionKey string) ([]model.ExternalLink, error)
	DeleteExternalLink(ctx context.Context, collectionKey, refID string) error
	DeleteExternalLinksByRefID(ctx context.Context, refID string) error
	DeleteExternalCollection(ctx context.Context, key string) error
}

// Index is the process-wide external index. Each collection key has one
// writer at a time; readers may run concurrently with each other.
type Index struct {
	links LinkStore
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// New returns an index over links.
func New(links LinkStore, now func() time.Time) *Index {
	if now == nil {
		now = time.Now
	}
	return &Index{links: links, now: now, locks: make(map[string]*sync.RWMutex)}
}

func (x *Index) lock(key string) *sync.RWMutex {
	x.mu.Lock()
	defer x.mu.Unlock()
	l, ok := x.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		x.locks[key] = l
	}
	return l
}

// LinkedExternalIDs returns ref id to external id for every link of the collection.
func (x *Index) LinkedExternalIDs(ctx context.Context, key string) (map[string]string, error) {
	l := x.lock(key)
	l.RLock()
	defer l.RUnlock()
	return x.linked(ctx, key)
}

func (x *Index) linked(ctx context.Context, key string) (map[string]string, error) {
	links, err := x.links.GetExternalLinks(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(links))
	for _, l := range links {
		out[l.RefID] = l.ExternalID
	}
	return out, nil
}

// Collection returns the cached mirror identity of the collection.
func (x *Index) Collection(ctx context.Context, key string) (model.ExternalCollection, bool, error) {
	l := x.lock(key)
	l.RLock()
	defer l.RUnlock()
	c, err := x.links.GetExternalCollection(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.ExternalCollection{}, false, nil
	}
	if err != nil {
		return model.ExternalCollection{}, false, err
	}
	return c, true, nil
}

// Acquire blocks until the caller is the only writer of the collection.
// The returned writer must be released.
func (x *Index) Acquire(key string) *Writer {
	l := x.lock(key)
	l.Lock()
	return &Writer{x: x, key: key, l: l}
}

// Writer mutates one collection of the index while holding its lock.
type Writer struct {
	x        *Index
	key      string
	l        *sync.RWMutex
	released bool
}

// Release gives up the writer lock. Later calls are ignored.
func (w *Writer) Release() {
	if w.released {
		return
	}
	w.released = true
	w.l.Unlock()
}

// Key returns the collection key the writer holds.
func (w *Writer) Key() string {
	return w.key
}

// UpsertCollection merges desired into the last known schema, pushes the
// result to the mirror and caches the mirror's answer.
func (w *Writer) UpsertCollection(
	ctx context.Context,
	m mirror.Mirror,
	kind model.EntityType,
	desired mirror.Schema,
) (mirror.Collection, error) {
	merged := desired
	cached, err := w.x.links.GetExternalCollection(ctx, w.key)
	switch {
	case err == nil:
		var known mirror.Schema
		if err := json.Unmarshal(cached.Schema, &known); err != nil {
			return mirror.Collection{}, fmt.Errorf("decoding cached schema of %s: %w", w.key, err)
		}
		merged = MergeSchema(known, desired)
	case !errors.Is(err, store.ErrNotFound):
		return mirror.Collection{}, err
	}

	c, err := m.UpsertCollection(ctx, w.key, merged)
	if err != nil {
		return mirror.Collection{}, fmt.Errorf("upserting collection %s: %w", w.key, err)
	}

	schema, err := json.Marshal(c.Schema)
	if err != nil {
		return mirror.Collection{}, fmt.Errorf("encoding schema of %s: %w", w.key, err)
	}
	now := w.x.now().UTC()
	created := now
	if cached.Key != "" {
		created = cached.CreatedAt
	}
	if err := w.x.links.UpsertExternalCollection(ctx, model.ExternalCollection{
		Key:        w.key,
		ExternalID: c.ID,
		EntityType: kind,
		Schema:     schema,
		CreatedAt:  created,
		UpdatedAt:  now,
	}); err != nil {
		return mirror.Collection{}, err
	}
	return c, nil
}

// LinkedExternalIDs is LinkedExternalIDs under the writer lock.
func (w *Writer) LinkedExternalIDs(ctx context.Context) (map[string]string, error) {
	return w.x.linked(ctx, w.key)
}

// UpsertItem links refID to externalID, replacing any previous link.
func (w *Writer) UpsertItem(ctx context.Context, kind model.EntityType, refID, externalID string) error {
	now := w.x.now().UTC()
	return w.x.links.UpsertExternalLink(ctx, model.ExternalLink{
		CollectionKey: w.key,
		EntityType:    kind,
		RefID:         refID,
		ExternalID:    externalID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// QuickLink links an entity whose row was just created on the mirror.
func (w *Writer) QuickLink(ctx context.Context, kind model.EntityType, refID, externalID string) error {
	return w.UpsertItem(ctx, kind, refID, externalID)
}

// HardRemove forgets the link of refID.
func (w *Writer) HardRemove(ctx context.Context, refID string) error {
	return w.x.links.DeleteExternalLink(ctx, w.key, refID)
}

// DropAllItems forgets every link of the collection.
func (w *Writer) DropAllItems(ctx context.Context) error {
	links, err := w.x.links.GetExternalLinks(ctx, w.key)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := w.x.links.DeleteExternalLink(ctx, w.key, l.RefID); err != nil {
			return err
		}
	}
	return nil
}

// MergeSchema returns desired laid out the way the mirror already has it.
// Known properties keep their position and known options keep their id
// and position; new properties and options are appended. Options the
// mirror has but desired lacks are kept so existing rows stay valid.
func MergeSchema(known, desired mirror.Schema) mirror.Schema {
	want := make(map[string]mirror.Property, len(desired.Properties))
	for _, p := range desired.Properties {
		want[p.Name] = p
	}

	var out mirror.Schema
	placed := make(map[string]bool, len(desired.Properties))
	for _, k := range known.Properties {
		d, ok := want[k.Name]
		if !ok {
			continue
		}
		placed[k.Name] = true
		if d.Type == k.Type && (d.Type == mirror.PropertySelect || d.Type == mirror.PropertyMultiSelect) {
			d.Options = mergeOptions(k.Options, d.Options)
		}
		out.Properties = append(out.Properties, d)
	}
	for _, d := range desired.Properties {
		if !placed[d.Name] {
			out.Properties = append(out.Properties, d)
		}
	}
	return out
}

func mergeOptions(known, desired []mirror.Option) []mirror.Option {
	out := append([]mirror.Option(nil), known...)
	seen := make(map[string]bool, len(known))
	for _, o := range known {
		seen[o.Name] = true
	}
	for _, o := range desired {
		if !seen[o.Name] {
			seen[o.Name] = true
			out = append(out, mirror.Option{Name: o.Name})
		}
	}
	return out
}
