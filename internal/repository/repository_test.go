package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/ldi/todo/internal/db"
	"github.com/ldi/todo/pkg/models"
)

// recordingStore is a mock Store that records forwarded calls.
type recordingStore struct {
	calls  []string
	err    error
	stream chan []models.Todo
}

func (s *recordingStore) Watch(ctx context.Context) (<-chan []models.Todo, error) {
	s.calls = append(s.calls, "watch")
	return s.stream, s.err
}

func (s *recordingStore) InsertTodo(ctx context.Context, title string) (*models.Todo, error) {
	s.calls = append(s.calls, "insert:"+title)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Todo{ID: 1, Title: title}, nil
}

func (s *recordingStore) UpdateTodo(ctx context.Context, t *models.Todo) error {
	s.calls = append(s.calls, "update:"+t.Title)
	return s.err
}

func (s *recordingStore) DeleteTodo(ctx context.Context, t *models.Todo) error {
	s.calls = append(s.calls, "delete:"+t.Title)
	return s.err
}

func (s *recordingStore) GetTodo(ctx context.Context, id int64) (*models.Todo, error) {
	s.calls = append(s.calls, "get")
	return nil, s.err
}

func (s *recordingStore) ListTodos(ctx context.Context) ([]models.Todo, error) {
	s.calls = append(s.calls, "list")
	return nil, s.err
}

func TestRepositoryForwardsCalls(t *testing.T) {
	store := &recordingStore{stream: make(chan []models.Todo)}
	repo := New(store)
	ctx := context.Background()

	stream, err := repo.Todos(ctx)
	if err != nil {
		t.Fatalf("Todos failed: %v", err)
	}
	if stream != (<-chan []models.Todo)(store.stream) {
		t.Error("Expected the store's stream to be returned unmodified")
	}

	todo, err := repo.Add(ctx, " raw title ")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	repo.Update(ctx, todo)
	repo.Delete(ctx, todo)
	repo.Get(ctx, 1)
	repo.Snapshot(ctx)

	want := []string{"watch", "insert: raw title ", "update: raw title ", "delete: raw title ", "get", "list"}
	if len(store.calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, store.calls)
	}
	for i := range want {
		if store.calls[i] != want[i] {
			t.Errorf("Call %d: expected %q, got %q", i, want[i], store.calls[i])
		}
	}
}

func TestRepositoryPassesErrorsThrough(t *testing.T) {
	sentinel := &db.StorageError{Op: "update todo", Err: errors.New("disk full")}
	repo := New(&recordingStore{err: sentinel})
	ctx := context.Background()

	if _, err := repo.Add(ctx, "x"); err != sentinel {
		t.Errorf("Expected the store error unmodified, got %v", err)
	}
	if err := repo.Update(ctx, &models.Todo{}); err != sentinel {
		t.Errorf("Expected the store error unmodified, got %v", err)
	}
	if err := repo.Delete(ctx, &models.Todo{}); !errors.Is(err, db.ErrStorage) {
		t.Errorf("Expected ErrStorage, got %v", err)
	}
}

func TestRepositoryOverDB(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	repo := New(database)
	stream, err := repo.Todos(ctx)
	if err != nil {
		t.Fatalf("Todos failed: %v", err)
	}
	if todos := <-stream; len(todos) != 0 {
		t.Fatalf("Expected empty initial emission, got %+v", todos)
	}

	if _, err := repo.Add(ctx, "Buy milk"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if todos := <-stream; len(todos) != 1 || todos[0].Title != "Buy milk" {
		t.Errorf("Expected [Buy milk], got %+v", todos)
	}
}
