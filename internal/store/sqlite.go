package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is the event-sourced entity store backed by a local SQLite
// database. All entity reads and writes go through a UnitOfWork.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *log.Logger
}

// pragmas are applied by the driver to every pooled connection.
// Transactions begin IMMEDIATE so concurrent units of work serialize on
// the write lock instead of failing on lock upgrade.
var pragmas = url.Values{
	"_pragma": []string{
		"busy_timeout(5000)",
		"foreign_keys(1)",
		"journal_mode(WAL)",
	},
	"_time_format": []string{"sqlite"},
	"_txlock":      []string{"immediate"},
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "store: ", log.LstdFlags)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.logger.Printf("applied schema migration v%d", m.version)
	}

	return nil
}

// WithUnitOfWork runs fn inside one transaction. The transaction commits
// when fn returns nil and rolls back otherwise. A run that fails with
// ErrConcurrencyConflict is retried once, so fn must load what it
// mutates through the unit of work it is given.
func (s *SQLiteStore) WithUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	err := s.runUnitOfWork(ctx, fn)
	if errors.Is(err, ErrConcurrencyConflict) {
		s.logger.Printf("retrying unit of work after conflict: %v", err)
		err = s.runUnitOfWork(ctx, fn)
	}
	return err
}

func (s *SQLiteStore) runUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newUnitOfWork(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing unit of work: %w", err)
	}
	return nil
}

// mapConstraintError translates SQLite constraint violations into the
// store's sentinel errors, leaving other errors untouched.
func mapConstraintError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %v", ErrParentNotFound, err)
	}
	// Connections without extended result codes only report the primary code.
	if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		switch msg := sqliteErr.Error(); {
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("%w: %v", ErrParentNotFound, err)
		case strings.Contains(msg, "UNIQUE"):
			return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
		}
	}
	return err
}
