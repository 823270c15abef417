package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ldi/todo/pkg/models"
)

// nowMillis is replaced in tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	t := &models.Todo{}
	var done int
	if err := row.Scan(&t.ID, &t.Title, &done, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Done = done == 1
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// InsertTodo creates a todo with the trimmed title, the next id and the
// current time. Blank titles are rejected with ErrValidation.
func (db *DB) InsertTodo(ctx context.Context, title string) (*models.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be blank", ErrValidation)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	t, err := db.insertTodo(ctx, db.DB, title, false, nowMillis())
	if err != nil {
		return nil, err
	}

	db.commit(ctx)
	return t, nil
}

func (db *DB) insertTodo(ctx context.Context, exec executor, title string, done bool, createdAt int64) (*models.Todo, error) {
	query := `
		INSERT INTO todos (title, done, created_at)
		VALUES (?, ?, ?)
		RETURNING id, title, done, created_at
	`
	t, err := scanTodo(exec.QueryRowContext(ctx, query, title, boolToInt(done), createdAt))
	if err != nil {
		return nil, storageErr("insert todo", err)
	}
	return t, nil
}

// GetTodo retrieves a todo by its ID. It returns nil, nil when absent.
func (db *DB) GetTodo(ctx context.Context, id int64) (*models.Todo, error) {
	query := `SELECT id, title, done, created_at FROM todos WHERE id = ?`
	t, err := scanTodo(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get todo", err)
	}
	return t, nil
}

// ListTodos returns every todo in insertion order.
func (db *DB) ListTodos(ctx context.Context) ([]models.Todo, error) {
	return db.listTodos(ctx, db.DB)
}

func (db *DB) listTodos(ctx context.Context, exec executor) ([]models.Todo, error) {
	rows, err := exec.QueryContext(ctx, `SELECT id, title, done, created_at FROM todos ORDER BY id ASC`)
	if err != nil {
		return nil, storageErr("list todos", err)
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, storageErr("scan todo", err)
		}
		todos = append(todos, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("list todos", err)
	}

	return todos, nil
}

// UpdateTodo replaces the stored title and completion flag of the todo with
// t.ID. CreatedAt is immutable and never rewritten.
func (db *DB) UpdateTodo(ctx context.Context, t *models.Todo) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title must not be blank", ErrValidation)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	query := `UPDATE todos SET title = ?, done = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, t.Title, boolToInt(t.Done), t.ID)
	if err != nil {
		return storageErr("update todo", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr("get rows affected", err)
	}
	if rows == 0 {
		return notFound(t.ID)
	}

	db.commit(ctx)
	return nil
}

// DeleteTodo removes the todo with t.ID. It returns ErrNotFound when no such
// todo exists.
func (db *DB) DeleteTodo(ctx context.Context, t *models.Todo) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, t.ID)
	if err != nil {
		return storageErr("delete todo", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr("get rows affected", err)
	}
	if rows == 0 {
		return notFound(t.ID)
	}

	db.commit(ctx)
	return nil
}

// CountTodos returns the totals over the whole collection.
func (db *DB) CountTodos(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	query := `SELECT COUNT(*), COALESCE(SUM(done), 0) FROM todos`
	if err := db.QueryRowContext(ctx, query).Scan(&c.Total, &c.Completed); err != nil {
		return c, storageErr("count todos", err)
	}
	c.Active = c.Total - c.Completed
	return c, nil
}
