package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
	"github.com/vyalkov-2002/iat-timetable/internal/domain/subscriber"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// Dialect selects the SQL flavor of the underlying driver.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// rebind rewrites '?' placeholders into the dialect's native form.
// Queries in this package are written with '?'; Postgres needs '$n'.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Querier is the subset of *sql.DB and *sql.Tx the repositories run on,
// so the same repository code serves both transactional and direct access.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// DB wraps the SQL connection pool together with its dialect.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Open creates a database handle for the given driver ("sqlite3" or
// "postgres") and pings it to ensure connectivity.
func Open(driver, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	var dialect Dialect
	switch driver {
	case "sqlite3":
		dialect = DialectSQLite
		// SQLite handles one writer; a second pooled connection would only
		// produce "database is locked" errors (and in-memory databases are
		// per-connection).
		db.SetMaxOpenConns(1)
	case "postgres":
		dialect = DialectPostgres
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)
		db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{sql: db, dialect: dialect}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS lesson (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id TEXT NOT NULL,
		week_id TEXT NOT NULL,
		day_num INTEGER NOT NULL,
		lesson_num INTEGER NOT NULL,
		classroom TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_updated TIMESTAMP NOT NULL,
		last_checked TIMESTAMP NOT NULL,
		obsolete_since TIMESTAMP,
		UNIQUE (group_id, week_id, day_num, lesson_num)
	)`,
	`CREATE INDEX IF NOT EXISTS lesson_group_week_idx ON lesson (group_id, week_id)`,
	`CREATE TABLE IF NOT EXISTS telegram_chat (
		id INTEGER PRIMARY KEY,
		group_id TEXT NOT NULL,
		subscribed BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS lesson (
		id BIGSERIAL PRIMARY KEY,
		group_id TEXT NOT NULL,
		week_id TEXT NOT NULL,
		day_num INTEGER NOT NULL,
		lesson_num INTEGER NOT NULL,
		classroom TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL,
		last_checked TIMESTAMPTZ NOT NULL,
		obsolete_since TIMESTAMPTZ,
		UNIQUE (group_id, week_id, day_num, lesson_num)
	)`,
	`CREATE INDEX IF NOT EXISTS lesson_group_week_idx ON lesson (group_id, week_id)`,
	`CREATE TABLE IF NOT EXISTS telegram_chat (
		id BIGINT PRIMARY KEY,
		group_id TEXT NOT NULL,
		subscribed BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if d.dialect == DialectPostgres {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema statement: %w", err)
		}
	}
	return nil
}

// Lessons returns a lesson repository bound directly to the pool.
func (d *DB) Lessons() schedule.Repository {
	return NewLessonRepository(d.sql, d.dialect)
}

// Chats returns a subscriber registry bound directly to the pool.
func (d *DB) Chats() subscriber.Registry {
	return NewChatRepository(d.sql, d.dialect)
}

// InTx runs fn with repositories bound to one transaction and commits if fn
// returns nil. One group/week batch of the notification pipeline runs inside
// a single InTx call, so a mid-batch failure rolls the whole batch back.
func (d *DB) InTx(ctx context.Context, fn func(lessons schedule.Repository, chats subscriber.Registry) error) error {
	txn, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(NewLessonRepository(txn, d.dialect), NewChatRepository(txn, d.dialect)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
