// Package repository is the seam between the controller and storage.
package repository

import (
	"context"

	"github.com/ldi/todo/pkg/models"
)

// Store is the storage the repository forwards to. *db.DB implements it.
type Store interface {
	Watch(ctx context.Context) (<-chan []models.Todo, error)
	InsertTodo(ctx context.Context, title string) (*models.Todo, error)
	UpdateTodo(ctx context.Context, t *models.Todo) error
	DeleteTodo(ctx context.Context, t *models.Todo) error
	GetTodo(ctx context.Context, id int64) (*models.Todo, error)
	ListTodos(ctx context.Context) ([]models.Todo, error)
}

// Repository passes calls through to a Store unchanged. It adds no buffering,
// retry or transformation, and errors are returned as the store produced them.
type Repository struct {
	store Store
}

func New(store Store) *Repository {
	return &Repository{store: store}
}

// Todos returns the store's live stream of all todos.
func (r *Repository) Todos(ctx context.Context) (<-chan []models.Todo, error) {
	return r.store.Watch(ctx)
}

func (r *Repository) Add(ctx context.Context, title string) (*models.Todo, error) {
	return r.store.InsertTodo(ctx, title)
}

func (r *Repository) Update(ctx context.Context, t *models.Todo) error {
	return r.store.UpdateTodo(ctx, t)
}

func (r *Repository) Delete(ctx context.Context, t *models.Todo) error {
	return r.store.DeleteTodo(ctx, t)
}

// Get returns nil, nil when no todo has the id.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Todo, error) {
	return r.store.GetTodo(ctx, id)
}

// Snapshot returns the current collection once, for readers that do not
// need the live stream.
func (r *Repository) Snapshot(ctx context.Context) ([]models.Todo, error) {
	return r.store.ListTodos(ctx)
}
