// Package store persists scheduled tasks, users, locations and the task
// event history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ada/internal/clock"
	"ada/internal/domain"
	"ada/internal/notify"
)

var ErrNotFound = errors.New("not found")

// Open opens the SQLite database at path with WAL and a busy timeout. Use
// ":memory:" for a private in-memory database.
func Open(path string, busyTimeout time.Duration) (*sql.DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	pragmas := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", busyTimeout.Milliseconds())
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)&%s", path, pragmas)
	if path == ":memory:" {
		dsn = "file::memory:?" + pragmas
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer; also keeps :memory: alive
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// EnsureSchema creates tables if they don't exist. Timestamps are unix
// milliseconds.
func EnsureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
  id TEXT PRIMARY KEY,
  workflow_name TEXT NOT NULL,
  frequency_type TEXT NOT NULL CHECK(frequency_type IN ('hourly','daily','weekly')),
  day_of_week INTEGER NOT NULL DEFAULT 0,
  hour INTEGER NOT NULL DEFAULT 0,
  minute INTEGER NOT NULL DEFAULT 0,
  second INTEGER NOT NULL DEFAULT 0,
  params TEXT NOT NULL DEFAULT '{}',
  transport TEXT NOT NULL DEFAULT 'email',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  last_fm_username TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS locations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  lat REAL NOT NULL,
  lng REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS task_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL,
  workflow_name TEXT NOT NULL,
  transport TEXT NOT NULL,
  triggered_by TEXT NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('success','failure')),
  stage TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT '',
  scheduled_for INTEGER NOT NULL,
  started_at INTEGER NOT NULL,
  finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_task_events_finished ON task_events(finished_at);
`
	_, err := db.Exec(schema)
	return err
}

// Repository is the persistence surface used by the scheduler, the API and
// the CLI.
type Repository interface {
	CreateScheduledTask(ctx context.Context, t domain.ScheduledTask) (domain.ScheduledTask, error)
	GetScheduledTask(ctx context.Context, id string) (domain.ScheduledTask, error)
	ListScheduledTasks(ctx context.Context) ([]domain.ScheduledTask, error)
	UpdateScheduledTask(ctx context.Context, t domain.ScheduledTask) (domain.ScheduledTask, error)
	DeleteScheduledTask(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreateLocation(ctx context.Context, l domain.Location) (domain.Location, error)
	GetLocation(ctx context.Context, id int64) (domain.Location, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	DeleteLocation(ctx context.Context, id int64) error

	RecordEvent(ctx context.Context, e notify.StatusEvent) (notify.StatusEvent, error)
	ListEvents(ctx context.Context, f EventFilter) ([]notify.StatusEvent, error)
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

type sqliteRepo struct {
	db    *sql.DB
	clock clock.Clock
}

func NewSQLiteRepo(db *sql.DB, clk clock.Clock) Repository {
	if clk == nil {
		clk = clock.Real{}
	}
	return &sqliteRepo{db: db, clock: clk}
}

func (r *sqliteRepo) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Millisecond)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// deleteByID removes one row and maps "no rows" to ErrNotFound.
func (r *sqliteRepo) deleteByID(ctx context.Context, table string, id any) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}
