package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/lifeplan/internal/model"
)

// headerRow holds the columns every entity table shares.
type headerRow struct {
	RefID            string     `db:"ref_id"`
	Version          int        `db:"version"`
	Archived         bool       `db:"archived"`
	CreatedTime      time.Time  `db:"created_time"`
	LastModifiedTime time.Time  `db:"last_modified_time"`
	ArchivedTime     *time.Time `db:"archived_time"`
}

var headerColumns = []string{
	"ref_id", "version", "archived", "created_time", "last_modified_time", "archived_time",
}

func headerFrom(e model.Entity) headerRow {
	return headerRow{
		RefID:            e.RefID,
		Version:          e.Version,
		Archived:         e.Archived,
		CreatedTime:      e.CreatedTime.UTC(),
		LastModifiedTime: e.LastModifiedTime.UTC(),
		ArchivedTime:     e.ArchivedTime,
	}
}

func (h headerRow) entity(kind model.EntityType) model.Entity {
	return model.RestoreEntity(kind, h.RefID, h.Version, h.Archived,
		h.CreatedTime, h.LastModifiedTime, h.ArchivedTime)
}

// entityTable maps one aggregate type E onto its row type R, the table
// named after the entity type and the matching _event table.
type entityTable[E model.Aggregate, R any] struct {
	kind    model.EntityType
	parent  string
	columns []string
	toRow   func(E) (*R, error)
	fromRow func(*R) (E, error)
	header  func(*R) *headerRow

	selectSQL string
	insertSQL string
	updateSQL string
	eventSQL  string
}

func newEntityTable[E model.Aggregate, R any](
	kind model.EntityType,
	parent string,
	columns []string,
	toRow func(E) (*R, error),
	fromRow func(*R) (E, error),
	header func(*R) *headerRow,
) *entityTable[E, R] {
	all := append(append([]string{}, headerColumns...), columns...)
	named := make([]string, len(all))
	sets := make([]string, 0, len(all)-1)
	for i, c := range all {
		named[i] = ":" + c
		if c != "ref_id" && c != "created_time" {
			sets = append(sets, c+" = :"+c)
		}
	}
	name := string(kind)
	return &entityTable[E, R]{
		kind:    kind,
		parent:  parent,
		columns: all,
		toRow:   toRow,
		fromRow: fromRow,
		header:  header,

		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(all, ", "), name),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			name, strings.Join(all, ", "), strings.Join(named, ", ")),
		// The stored version is appended as the last positional argument.
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE ref_id = :ref_id AND version = ?",
			name, strings.Join(sets, ", ")),
		eventSQL: fmt.Sprintf(`INSERT INTO %s_event (ref_id, version, source, name, timestamp, payload)
			VALUES (?, ?, ?, ?, ?, ?)`, name),
	}
}

func (t *entityTable[E, R]) create(ctx context.Context, tx *sqlx.Tx, e E) (E, error) {
	var zero E
	h := e.Header()
	if h.RefID != "" {
		return zero, fmt.Errorf("creating %s %s: %w", t.kind, h.RefID, ErrRefIDAssigned)
	}

	row, err := t.toRow(e)
	if err != nil {
		return zero, fmt.Errorf("encoding %s: %w", t.kind, err)
	}
	hdr := t.header(row)
	hdr.RefID = uuid.New().String()

	if _, err := tx.NamedExecContext(ctx, t.insertSQL, row); err != nil {
		return zero, fmt.Errorf("inserting %s: %w", t.kind, mapConstraintError(err))
	}
	if err := t.appendEvents(ctx, tx, hdr.RefID, h.PendingEvents()); err != nil {
		return zero, err
	}
	return t.fromRow(row)
}

func (t *entityTable[E, R]) save(ctx context.Context, tx *sqlx.Tx, e E) (E, error) {
	var zero E
	h := e.Header()
	events := h.PendingEvents()
	if len(events) == 0 {
		return e, nil
	}
	if h.RefID == "" {
		return zero, fmt.Errorf("saving %s that was never created: %w", t.kind, ErrNotFound)
	}

	row, err := t.toRow(e)
	if err != nil {
		return zero, fmt.Errorf("encoding %s %s: %w", t.kind, h.RefID, err)
	}
	query, args, err := sqlx.Named(t.updateSQL, row)
	if err != nil {
		return zero, fmt.Errorf("binding %s %s: %w", t.kind, h.RefID, err)
	}
	args = append(args, h.StoredVersion())

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return zero, fmt.Errorf("updating %s %s: %w", t.kind, h.RefID, mapConstraintError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return zero, fmt.Errorf("updating %s %s: %w", t.kind, h.RefID, err)
	}
	if n == 0 {
		var count int
		if err := tx.GetContext(ctx, &count,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE ref_id = ?", t.kind), h.RefID); err != nil {
			return zero, fmt.Errorf("checking %s %s: %w", t.kind, h.RefID, err)
		}
		if count == 0 {
			return zero, fmt.Errorf("%s %s: %w", t.kind, h.RefID, ErrNotFound)
		}
		return zero, fmt.Errorf("%s %s at version %d: %w", t.kind, h.RefID, h.StoredVersion(), ErrConcurrencyConflict)
	}

	if err := t.appendEvents(ctx, tx, h.RefID, events); err != nil {
		return zero, err
	}
	return t.fromRow(row)
}

func (t *entityTable[E, R]) appendEvents(ctx context.Context, tx *sqlx.Tx, refID string, events []model.Event) error {
	for _, ev := range events {
		payload := string(ev.Payload)
		if payload == "" {
			payload = "{}"
		}
		if _, err := tx.ExecContext(ctx, t.eventSQL,
			refID, ev.Version, string(ev.Source), ev.Name, ev.Timestamp.UTC(), payload,
		); err != nil {
			return fmt.Errorf("appending %s event v%d for %s: %w",
				t.kind, ev.Version, refID, mapConstraintError(err))
		}
	}
	return nil
}

func (t *entityTable[E, R]) loadByID(ctx context.Context, q sqlx.QueryerContext, refID string, allowArchived bool) (E, error) {
	var zero E
	query := t.selectSQL + " WHERE ref_id = ?"
	if !allowArchived {
		query += " AND archived = 0"
	}
	var row R
	if err := sqlx.GetContext(ctx, q, &row, query, refID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s %s: %w", t.kind, refID, ErrNotFound)
		}
		return zero, fmt.Errorf("loading %s %s: %w", t.kind, refID, err)
	}
	return t.fromRow(&row)
}

func (t *entityTable[E, R]) findAll(ctx context.Context, q sqlx.QueryerContext, parentRefID string, opts FindOptions) ([]E, error) {
	if t.parent == "" {
		return t.findWhere(ctx, q, opts, "1 = 1")
	}
	return t.findWhere(ctx, q, opts, t.parent+" = ?", parentRefID)
}

// findWhere selects rows matching cond, honoring opts, ordered by creation.
func (t *entityTable[E, R]) findWhere(ctx context.Context, q sqlx.QueryerContext, opts FindOptions, cond string, args ...any) ([]E, error) {
	query := t.selectSQL + " WHERE " + cond
	if !opts.AllowArchived {
		query += " AND archived = 0"
	}
	if len(opts.RefIDs) > 0 {
		in, inArgs, err := sqlx.In(" AND ref_id IN (?)", opts.RefIDs)
		if err != nil {
			return nil, fmt.Errorf("building %s query: %w", t.kind, err)
		}
		query += in
		args = append(args, inArgs...)
	}
	query += " ORDER BY created_time, ref_id"

	var rows []R
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.kind, err)
	}
	out := make([]E, 0, len(rows))
	for i := range rows {
		e, err := t.fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// remove deletes the row; the event stream goes with it by cascade.
func (t *entityTable[E, R]) remove(ctx context.Context, tx *sqlx.Tx, refID string) error {
	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE ref_id = ?", t.kind), refID)
	if err != nil {
		if errors.Is(mapConstraintError(err), ErrParentNotFound) {
			return fmt.Errorf("removing %s %s: %w", t.kind, refID, ErrInUse)
		}
		return fmt.Errorf("removing %s %s: %w", t.kind, refID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", t.kind, refID, ErrNotFound)
	}
	return nil
}

type eventRow struct {
	RefID     string    `db:"ref_id"`
	Version   int       `db:"version"`
	Source    string    `db:"source"`
	Name      string    `db:"name"`
	Timestamp time.Time `db:"timestamp"`
	Payload   string    `db:"payload"`
}

func (t *entityTable[E, R]) loadEvents(ctx context.Context, q sqlx.QueryerContext, refID string) ([]model.Event, error) {
	var rows []eventRow
	if err := sqlx.SelectContext(ctx, q, &rows, fmt.Sprintf(
		"SELECT ref_id, version, source, name, timestamp, payload FROM %s_event WHERE ref_id = ? ORDER BY version",
		t.kind), refID); err != nil {
		return nil, fmt.Errorf("loading %s %s events: %w", t.kind, refID, err)
	}
	events := make([]model.Event, len(rows))
	for i, r := range rows {
		events[i] = model.Event{
			EntityType: t.kind,
			RefID:      r.RefID,
			Version:    r.Version,
			Source:     model.EventSource(r.Source),
			Name:       r.Name,
			Timestamp:  r.Timestamp.UTC(),
			Payload:    []byte(r.Payload),
		}
	}
	return events, nil
}

// verify checks that every row's event stream is contiguous from 1 up to
// the row's version.
func (t *entityTable[E, R]) verify(ctx context.Context, q sqlx.QueryerContext) error {
	var rows []struct {
		RefID   string `db:"ref_id"`
		Version int    `db:"version"`
		Count   int    `db:"event_count"`
		Min     int    `db:"min_version"`
		Max     int    `db:"max_version"`
	}
	query := fmt.Sprintf(`
		SELECT e.ref_id, e.version,
			COUNT(ev.version) AS event_count,
			COALESCE(MIN(ev.version), 0) AS min_version,
			COALESCE(MAX(ev.version), 0) AS max_version
		FROM %[1]s e LEFT JOIN %[1]s_event ev ON ev.ref_id = e.ref_id
		GROUP BY e.ref_id, e.version`, t.kind)
	if err := sqlx.SelectContext(ctx, q, &rows, query); err != nil {
		return fmt.Errorf("verifying %s: %w", t.kind, err)
	}
	for _, r := range rows {
		if r.Count != r.Version || r.Min != 1 || r.Max != r.Version {
			return fmt.Errorf("%w: %s %s at version %d has %d events (v%d..v%d)",
				ErrCorruptEventStream, t.kind, r.RefID, r.Version, r.Count, r.Min, r.Max)
		}
	}
	return nil
}
