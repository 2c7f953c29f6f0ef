// Package storage persists ledger entries in an embedded SQLite database and
// computes monthly aggregates over them.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"accountbook/internal/core"
	"accountbook/internal/log"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

// DB owns the single logical connection to the ledger database. The handle is
// opened lazily on first use and reused by every repository call.
type DB struct {
	path        string
	clock       core.Clock
	loc         *time.Location
	busyTimeout time.Duration

	mu sync.Mutex
	db *sql.DB
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the time source used for audit timestamps and aggregation
// windows.
func WithClock(c core.Clock) Option {
	return func(d *DB) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithLocation sets the time zone that month boundaries are computed in.
func WithLocation(loc *time.Location) Option {
	return func(d *DB) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database file.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(d *DB) {
		if timeout > 0 {
			d.busyTimeout = timeout
		}
	}
}

// NewDB prepares a manager for the database file at path. Nothing is opened
// until Open or the first transaction.
func NewDB(path string, opts ...Option) *DB {
	d := &DB{
		path:        path,
		clock:       core.SystemClock,
		loc:         time.Local,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open returns the shared handle, opening the file and bootstrapping the
// schema on the first call. A failed open leaves the manager closed so a later
// call can retry.
func (d *DB) Open(ctx context.Context) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return d.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrConnection, err)
	}

	db, err := sql.Open("sqlite", dsn(d.path, d.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrConnection, err)
	}
	// One connection: transactions serialize on it instead of on an app lock
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrConnection, err)
	}

	if err := RunMigrations(d.path); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrSchema, err)
	}

	logger().InfoContext(ctx, "Ledger database opened", "path", d.path)
	d.db = db
	return db, nil
}

// Close releases the handle. Calling it on a closed manager is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Location returns the time zone month boundaries are computed in.
func (d *DB) Location() *time.Location {
	return d.loc
}

// logger is the process default tagged with the storage component.
func logger() *slog.Logger {
	return slog.Default().With(log.FieldComponent, log.ComponentStorage)
}

// Now is the clock reading truncated to the precision the columns store, in
// the manager's location.
func (d *DB) Now() time.Time {
	return d.now()
}

func (d *DB) now() time.Time {
	return core.TruncateMillis(d.clock.Now()).In(d.loc)
}

// fromMillis converts a stored epoch-millisecond value to a time in the
// manager's location.
func (d *DB) fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(d.loc)
}

// WithTransaction runs fn inside one transaction on the shared connection. It
// commits when fn returns nil and rolls back when fn returns an error or
// panics. Waiting for the connection honours ctx; once the transaction has
// begun it runs to completion even if ctx is cancelled, so fn receives a
// context without cancellation.
func WithTransaction[T any](ctx context.Context, d *DB, fn func(ctx context.Context, tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	db, err := d.Open(ctx)
	if err != nil {
		return zero, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return zero, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	txCtx := context.WithoutCancel(ctx)
	tx, err := conn.BeginTx(txCtx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger().WarnContext(txCtx, "Transaction rollback failed", "error", rbErr)
		}
	}()

	result, err := fn(txCtx, tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	return result, nil
}

// classify tags err with a failure class unless it already carries a
// connection or schema classification from Open.
func classify(class error, op string, err error) error {
	if errors.Is(err, core.ErrConnection) || errors.Is(err, core.ErrSchema) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", class, op, err)
}

func dsn(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout.Milliseconds())
}
