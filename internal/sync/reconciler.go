// Package sync reconciles local collections with an external mirror and
// runs that reconciliation periodically.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/nhle/lifeplan/internal/extindex"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/store"
)

// Preference picks which side wins when both sides know a row.
type Preference string

const (
	PreferLocal    Preference = "prefer_local"
	PreferExternal Preference = "prefer_external"
)

// ParsePreference validates a preference string.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(s); p {
	case PreferLocal, PreferExternal:
		return p, nil
	case "":
		return PreferLocal, nil
	}
	return "", fmt.Errorf("%w: preference %q", model.ErrUnknownFilter, s)
}

// Options tune one collection run.
type Options struct {
	Preference            Preference `json:"preference"`
	SyncEvenIfNotModified bool       `json:"sync_even_if_not_modified"`
	FilterRefIDs          []string   `json:"filter_ref_ids,omitempty"`

	// DropExternalSide deletes every mirror row and link first, then
	// pushes the local side from scratch.
	DropExternalSide bool `json:"drop_external_side"`
}

// Stats counts what a collection run did.
type Stats struct {
	LocalCreated    int `json:"local_created"`
	LocalUpdated    int `json:"local_updated"`
	ExternalCreated int `json:"external_created"`
	ExternalUpdated int `json:"external_updated"`
	DanglingRemoved int `json:"dangling_removed"`
	Failed          int `json:"failed"`
}

// Result is the outcome of one collection run.
type Result[E model.Aggregate] struct {
	Stats

	// Local is the effective local side after the run.
	Local []E
}

// LocalSide is the store access a collection needs.
// store repositories satisfy it.
type LocalSide[E model.Aggregate] interface {
	FindAll(ctx context.Context, parentRefID string, opts store.FindOptions) ([]E, error)
	Create(ctx context.Context, e E) (E, error)
	Save(ctx context.Context, e E) (E, error)
}

// Collection binds an entity type to its mirror representation.
type Collection[E model.Aggregate] struct {
	Key    string
	Kind   model.EntityType
	Schema mirror.Schema

	Local func(uow *store.UnitOfWork) LocalSide[E]

	// ToRow renders e, without an external id.
	ToRow func(e E) mirror.Row

	// New builds a local entity from a row created on the mirror.
	New func(ws model.Workspace, row mirror.Row, now time.Time) (E, error)

	// Apply copies the row's fields onto e.
	Apply func(e E, row mirror.Row, now time.Time) (E, error)

	Name func(e E) string
}

// UnitOfWorker runs fn in one transaction. *store.SQLiteStore implements it.
type UnitOfWorker interface {
	WithUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *store.UnitOfWork) error) error
}

// Reconciler holds what every collection run shares.
type Reconciler struct {
	store  UnitOfWorker
	index  *extindex.Index
	mirror mirror.Mirror
	logger *log.Logger
	now    func() time.Time
}

// NewReconciler returns a reconciler. A nil logger uses log.Default and
// a nil now uses the wall clock.
func NewReconciler(
	s UnitOfWorker,
	index *extindex.Index,
	m mirror.Mirror,
	logger *log.Logger,
	now func() time.Time,
) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: s, index: index, mirror: m, logger: logger, now: now}
}

// run carries the state of one collection run.
type run[E model.Aggregate] struct {
	r      *Reconciler
	c      Collection[E]
	ws     model.Workspace
	opts   Options
	rep    *progress.Reporter
	w      *extindex.Writer
	collID string

	local     map[string]E
	order     []string
	linked    map[string]string
	processed map[string]bool
	stats     Stats
}

// Run reconciles collection c of ws with the mirror. Mirror failures on a
// single row are recorded and skipped; store failures end the run.
func Run[E model.Aggregate](
	ctx context.Context,
	r *Reconciler,
	c Collection[E],
	ws model.Workspace,
	opts Options,
	rep *progress.Reporter,
) (Result[E], error) {
	if rep == nil {
		rep = progress.Noop()
	}
	if opts.Preference == "" {
		opts.Preference = PreferLocal
	}
	if _, err := ParsePreference(string(opts.Preference)); err != nil {
		return Result[E]{}, err
	}

	w := r.index.Acquire(c.Key)
	defer w.Release()
	defer rep.Section(c.Key)()

	coll, err := w.UpsertCollection(ctx, r.mirror, c.Kind, c.Schema)
	if err != nil {
		return Result[E]{}, err
	}

	st := &run[E]{
		r: r, c: c, ws: ws, opts: opts, rep: rep, w: w, collID: coll.ID,
		local:     make(map[string]E),
		processed: make(map[string]bool),
	}
	if err := st.loadLocal(ctx); err != nil {
		return Result[E]{}, err
	}

	rows, err := r.mirror.LoadAllRows(ctx, coll.ID)
	if err != nil {
		return Result[E]{}, fmt.Errorf("loading rows of %s: %w", c.Key, err)
	}
	if st.linked, err = w.LinkedExternalIDs(ctx); err != nil {
		return Result[E]{}, err
	}

	if opts.DropExternalSide {
		if err := st.dropExternal(ctx, rows); err != nil {
			return Result[E]{}, err
		}
		rows = nil
	}

	for _, row := range rows {
		if err := st.pull(ctx, row); err != nil {
			return Result[E]{Stats: st.stats}, err
		}
	}
	for _, id := range st.order {
		if err := st.push(ctx, id); err != nil {
			return Result[E]{Stats: st.stats}, err
		}
	}

	out := Result[E]{Stats: st.stats}
	for _, id := range st.order {
		out.Local = append(out.Local, st.local[id])
	}
	r.logger.Printf("sync %s: %+v", c.Key, st.stats)
	return out, nil
}

func (st *run[E]) loadLocal(ctx context.Context) error {
	return st.r.store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		all, err := st.c.Local(uow).FindAll(ctx, st.ws.RefID, store.FindOptions{
			AllowArchived: true,
			RefIDs:        st.opts.FilterRefIDs,
		})
		if err != nil {
			return err
		}
		st.order = st.order[:0]
		for _, e := range all {
			id := e.Header().RefID
			st.local[id] = e
			st.order = append(st.order, id)
		}
		return nil
	})
}

func (st *run[E]) filtered() bool {
	return len(st.opts.FilterRefIDs) > 0
}

// rowFailed records a mirror-side failure and tells the caller whether
// the run may go on.
func (st *run[E]) rowFailed(scope *progress.Scope, row mirror.Row, err error) error {
	st.r.logger.Printf("sync %s: row %s (ref %s): %v", st.c.Key, row.ExternalID, row.RefID, err)
	scope.Fail(err)
	st.stats.Failed++
	if mirror.IsAuthError(err) {
		return err
	}
	return nil
}

func (st *run[E]) dropExternal(ctx context.Context, rows []mirror.Row) error {
	for _, row := range rows {
		scope := st.rep.Removing(st.c.Kind, row.RefID, row.Fields["name"])
		err := st.r.mirror.DeleteRow(ctx, st.collID, row.ExternalID)
		if err != nil && !errors.Is(err, mirror.ErrRowNotFound) {
			if err := st.rowFailed(scope, row, err); err != nil {
				scope.Done()
				return err
			}
		} else {
			scope.MarkExternalChange()
		}
		scope.Done()
	}
	st.linked = map[string]string{}
	return st.w.DropAllItems(ctx)
}

// pull handles one external row.
func (st *run[E]) pull(ctx context.Context, row mirror.Row) error {
	refID := row.RefID
	if refID == "" {
		for id, ext := range st.linked {
			if ext == row.ExternalID {
				refID = id
				break
			}
		}
	}

	if refID == "" {
		if st.filtered() {
			return nil
		}
		return st.pullNew(ctx, row)
	}

	local, known := st.local[refID]
	if st.filtered() && !known {
		return nil
	}
	// Only the row a link points at belongs to the entity. Anything else
	// naming it is removed; push recreates the row when none is linked.
	if ext, linked := st.linked[refID]; known && linked && ext == row.ExternalID && !st.processed[refID] {
		st.processed[refID] = true
		return st.pullKnown(ctx, local, row)
	}

	return st.removeDangling(ctx, row)
}

func (st *run[E]) pullNew(ctx context.Context, row mirror.Row) error {
	scope := st.rep.Creating(st.c.Kind, row.Fields["name"])
	defer scope.Done()

	e, err := st.c.New(st.ws, row, st.r.now())
	if err != nil {
		return st.rowFailed(scope, row, err)
	}
	err = st.r.store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
		e, err = st.c.Local(uow).Create(ctx, e)
		return err
	})
	if err != nil {
		return scope.Fail(err)
	}
	id := e.Header().RefID
	scope.WithID(id).MarkLocalChange()
	st.local[id] = e
	st.order = append(st.order, id)
	st.processed[id] = true
	st.stats.LocalCreated++

	// Link before patching so a failed patch is retried as a known row.
	if err := st.w.QuickLink(ctx, st.c.Kind, id, row.ExternalID); err != nil {
		return err
	}
	st.linked[id] = row.ExternalID

	patched := st.c.ToRow(e)
	patched.ExternalID = row.ExternalID
	if _, err := st.r.mirror.UpsertRow(ctx, st.collID, patched); err != nil {
		return st.rowFailed(scope, patched, err)
	}
	scope.MarkExternalChange()
	return nil
}

func (st *run[E]) pullKnown(ctx context.Context, local E, row mirror.Row) error {
	h := local.Header()
	switch st.opts.Preference {
	case PreferExternal:
		if !st.opts.SyncEvenIfNotModified && !row.LastEditedTime.After(h.LastModifiedTime) {
			return nil
		}
		// The local edit must not predate the remote one it copies.
		now := st.r.now()
		if row.LastEditedTime.After(now) {
			now = row.LastEditedTime
		}
		updated, err := st.c.Apply(local, row, now)
		if err != nil {
			scope := st.rep.Updating(st.c.Kind, h.RefID, st.c.Name(local))
			defer scope.Done()
			return st.rowFailed(scope, row, err)
		}
		if updated.Header().Version == h.Version {
			return nil
		}
		scope := st.rep.Updating(st.c.Kind, h.RefID, st.c.Name(updated))
		defer scope.Done()
		err = st.r.store.WithUnitOfWork(ctx, func(ctx context.Context, uow *store.UnitOfWork) error {
			updated, err = st.c.Local(uow).Save(ctx, updated)
			return err
		})
		if err != nil {
			return scope.Fail(err)
		}
		scope.MarkLocalChange()
		st.local[h.RefID] = updated
		st.stats.LocalUpdated++
		return nil

	default:
		// A row found through its link may still miss the ref id.
		unpatched := row.RefID != h.RefID
		if !st.opts.SyncEvenIfNotModified && !unpatched && !h.LastModifiedTime.After(row.LastEditedTime) {
			return nil
		}
		scope := st.rep.Updating(st.c.Kind, h.RefID, st.c.Name(local))
		defer scope.Done()
		out := st.c.ToRow(local)
		out.ExternalID = row.ExternalID
		if _, err := st.r.mirror.UpsertRow(ctx, st.collID, out); err != nil {
			return st.rowFailed(scope, out, err)
		}
		scope.MarkExternalChange()
		st.stats.ExternalUpdated++
		return nil
	}
}

func (st *run[E]) removeDangling(ctx context.Context, row mirror.Row) error {
	scope := st.rep.Removing(st.c.Kind, row.RefID, row.Fields["name"])
	defer scope.Done()
	scope.Step("dangling")
	err := st.r.mirror.DeleteRow(ctx, st.collID, row.ExternalID)
	if err != nil && !errors.Is(err, mirror.ErrRowNotFound) {
		return st.rowFailed(scope, row, err)
	}
	scope.MarkExternalChange()
	st.r.logger.Printf("sync %s: removed dangling row %s (ref %q)", st.c.Key, row.ExternalID, row.RefID)
	st.stats.DanglingRemoved++
	return nil
}

// push sends a local entity the pull phase did not see.
func (st *run[E]) push(ctx context.Context, id string) error {
	if st.processed[id] {
		return nil
	}
	e := st.local[id]
	if e.Header().Archived {
		return nil
	}
	st.processed[id] = true

	scope := st.rep.Updating(st.c.Kind, id, st.c.Name(e))
	defer scope.Done()

	row := st.c.ToRow(e)
	row.ExternalID = st.linked[id]
	stored, err := st.r.mirror.UpsertRow(ctx, st.collID, row)
	if errors.Is(err, mirror.ErrRowNotFound) && row.ExternalID != "" {
		scope.Step("linked row is gone, recreating")
		row.ExternalID = ""
		stored, err = st.r.mirror.UpsertRow(ctx, st.collID, row)
	}
	if err != nil {
		return st.rowFailed(scope, row, err)
	}
	scope.MarkExternalChange()
	if err := st.w.QuickLink(ctx, st.c.Kind, id, stored.ExternalID); err != nil {
		return err
	}
	st.linked[id] = stored.ExternalID
	st.stats.ExternalCreated++
	return nil
}

// hasKey reports whether keys names key; an empty list names everything.
func hasKey(keys []string, key string) bool {
	return len(keys) == 0 || slices.Contains(keys, key)
}
