package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	embedsql "github.com/ldi/todo/embed/sql"
	"github.com/ldi/todo/internal/pubsub"
	"github.com/ldi/todo/pkg/models"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB

	// writeMu serializes writes together with the snapshot that follows them,
	// so subscribers see emissions in commit order.
	writeMu sync.Mutex
	changes *pubsub.Cell[[]models.Todo]
	primed  bool
	logger  *log.Logger

	onChange         func(ctx context.Context)
	onChangeMu       sync.RWMutex
	onChangeDisabled bool
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SetLogger sets where post-commit failures are reported. nil means
// log.Default().
func (db *DB) SetLogger(logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.logger = logger
}

func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = fn
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn := db.onChange
	disabled := db.onChangeDisabled
	db.onChangeMu.RUnlock()

	if fn != nil && !disabled {
		fn(ctx)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open database", err)
	}

	// WAL mode lets the CLI read while the TUI holds the file open.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, storageErr("enable WAL mode", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, storageErr("set busy timeout", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{
		DB:      db,
		changes: pubsub.NewCell[[]models.Todo](nil),
		logger:  log.Default(),
	}, nil
}

// Close ends every Watch stream and closes the database.
func (db *DB) Close() error {
	db.changes.Close()
	return db.DB.Close()
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.primed = false
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// commit publishes the post-write collection and runs the change hook once a
// write has succeeded. The write is durable at this point, so a cancelled ctx
// does not stop the publish and a failed re-read is only logged. Callers must
// hold writeMu.
func (db *DB) commit(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := db.refresh(ctx); err != nil {
		db.logger.Error("failed to publish todos after commit", "err", err)
		return
	}
	db.triggerChange(ctx)
}

// refresh re-reads the collection and publishes it. Callers must hold writeMu.
func (db *DB) refresh(ctx context.Context) error {
	todos, err := db.listTodos(ctx, db.DB)
	if err != nil {
		db.primed = false
		return err
	}
	db.changes.Publish(todos)
	db.primed = true
	return nil
}

// Watch returns a live stream of the full collection. The first value is the
// current set; after that one value arrives per committed write. A subscriber
// that reads slowly only sees the latest collection. The channel is closed when
// ctx is done or the database is closed.
func (db *DB) Watch(ctx context.Context) (<-chan []models.Todo, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if !db.primed {
		if err := db.refresh(ctx); err != nil {
			return nil, err
		}
	}
	return db.changes.Subscribe(ctx), nil
}
