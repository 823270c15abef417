package controller

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ldi/todo/internal/db"
	"github.com/ldi/todo/internal/repository"
	"github.com/ldi/todo/pkg/models"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// setup wires a controller to an in-memory database and starts Run.
func setup(t *testing.T) (*Controller, context.Context) {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	c := New(repository.New(database), quietLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		wg.Wait()
		database.Close()
	})
	return c, ctx
}

// waitFor reads states until pred holds.
func waitFor(t *testing.T, states <-chan State, pred func(State) bool) State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if pred(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for state")
			return State{}
		}
	}
}

func TestControllerDefaults(t *testing.T) {
	c := New(&fakeRepo{}, quietLogger())
	s := c.State()
	if s.Filter != models.FilterAll {
		t.Errorf("expected default filter All, got %v", s.Filter)
	}
	if s.Query != "" {
		t.Errorf("expected empty query, got %q", s.Query)
	}
	if s.Loaded || len(s.Visible) != 0 {
		t.Errorf("expected empty unloaded state, got %+v", s)
	}
}

func TestScenarioToggleAndFilter(t *testing.T) {
	c, ctx := setup(t)
	states := c.Subscribe(ctx)

	if err := c.AddTask(ctx, "Buy milk"); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	s := waitFor(t, states, func(s State) bool { return len(s.Visible) == 1 })
	milk := s.Visible[0]
	if milk.Title != "Buy milk" || milk.Done {
		t.Fatalf("expected active Buy milk, got %+v", milk)
	}

	if err := c.ToggleTask(ctx, milk); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	s = waitFor(t, states, func(s State) bool { return len(s.Visible) == 1 && s.Visible[0].Done })
	if s.Visible[0].ID != milk.ID || s.Visible[0].CreatedAt != milk.CreatedAt || s.Visible[0].Title != milk.Title {
		t.Errorf("toggle changed more than the completion flag: %+v", s.Visible[0])
	}

	c.SetFilter(models.FilterActive)
	s = waitFor(t, states, func(s State) bool { return s.Filter == models.FilterActive })
	if len(s.Visible) != 0 {
		t.Errorf("expected empty active view, got %+v", s.Visible)
	}

	c.SetFilter(models.FilterCompleted)
	s = waitFor(t, states, func(s State) bool { return s.Filter == models.FilterCompleted })
	if len(s.Visible) != 1 || s.Visible[0].ID != milk.ID {
		t.Errorf("expected [Buy milk] in completed view, got %+v", s.Visible)
	}
	if s.Counts != (models.Counts{Total: 1, Active: 0, Completed: 1}) {
		t.Errorf("unexpected counts %+v", s.Counts)
	}
}

func TestScenarioSearchPreservesOrder(t *testing.T) {
	c, ctx := setup(t)
	states := c.Subscribe(ctx)

	c.AddTask(ctx, "Walk dog")
	c.AddTask(ctx, "Buy milk")
	c.AddTask(ctx, "Milk the cow")
	waitFor(t, states, func(s State) bool { return len(s.Visible) == 3 })

	c.SetSearchQuery("milk")
	s := waitFor(t, states, func(s State) bool { return s.Query == "milk" })
	got := titles(s.Visible)
	if len(got) != 2 || got[0] != "Buy milk" || got[1] != "Milk the cow" {
		t.Errorf("expected [Buy milk Milk the cow], got %v", got)
	}
	if s.Counts.Total != 3 {
		t.Errorf("expected counts over the unfiltered collection, got %+v", s.Counts)
	}
}

func TestScenarioDeleteRemovesFromEveryView(t *testing.T) {
	c, ctx := setup(t)
	states := c.Subscribe(ctx)

	c.AddTask(ctx, "Buy milk")
	c.AddTask(ctx, "Walk dog")
	s := waitFor(t, states, func(s State) bool { return len(s.Visible) == 2 })

	c.SetSearchQuery("milk")
	c.SetFilter(models.FilterActive)
	s = waitFor(t, states, func(s State) bool { return s.Filter == models.FilterActive && s.Query == "milk" })
	if len(s.Visible) != 1 {
		t.Fatalf("expected [Buy milk], got %+v", s.Visible)
	}

	if err := c.DeleteTask(ctx, s.Visible[0]); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	s = waitFor(t, states, func(s State) bool { return s.Counts.Total == 1 })
	if len(s.Visible) != 0 {
		t.Errorf("expected deleted todo gone from filtered view, got %+v", s.Visible)
	}

	for _, f := range models.Filters {
		c.SetFilter(f)
		c.SetSearchQuery("")
		for _, todo := range c.State().Visible {
			if todo.Title == "Buy milk" {
				t.Errorf("deleted todo visible under filter %v", f)
			}
		}
	}
}

func TestToggleTwiceRestoresState(t *testing.T) {
	c, ctx := setup(t)
	states := c.Subscribe(ctx)

	c.AddTask(ctx, "Walk dog")
	s := waitFor(t, states, func(s State) bool { return len(s.Visible) == 1 })
	original := s.Visible[0]

	c.ToggleTask(ctx, original)
	s = waitFor(t, states, func(s State) bool { return len(s.Visible) == 1 && s.Visible[0].Done })
	c.ToggleTask(ctx, s.Visible[0])
	s = waitFor(t, states, func(s State) bool { return len(s.Visible) == 1 && !s.Visible[0].Done })

	if s.Visible[0] != original {
		t.Errorf("expected %+v after two toggles, got %+v", original, s.Visible[0])
	}
}

func TestAddTaskRejectsBlankTitle(t *testing.T) {
	repo := &fakeRepo{}
	c := New(repo, quietLogger())

	err := c.AddTask(context.Background(), "   ")
	if !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(repo.added) != 0 {
		t.Errorf("expected nothing forwarded, got %v", repo.added)
	}

	select {
	case n := <-c.Notices():
		if n.Op != "add todo" || !errors.Is(n.Err, db.ErrValidation) {
			t.Errorf("unexpected notice %+v", n)
		}
	default:
		t.Error("expected a notice for the rejected add")
	}
}

func TestAddTaskTrimsTitle(t *testing.T) {
	repo := &fakeRepo{}
	c := New(repo, quietLogger())

	if err := c.AddTask(context.Background(), "  Buy milk \n"); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if len(repo.added) != 1 || repo.added[0] != "Buy milk" {
		t.Errorf("expected trimmed title forwarded, got %v", repo.added)
	}
}

func TestStaleToggleSurfacesNotFound(t *testing.T) {
	c, ctx := setup(t)
	states := c.Subscribe(ctx)

	c.AddTask(ctx, "Walk dog")
	s := waitFor(t, states, func(s State) bool { return len(s.Visible) == 1 })
	stale := s.Visible[0]

	if err := c.DeleteTask(ctx, stale); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	err := c.ToggleTask(ctx, stale)
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	select {
	case n := <-c.Notices():
		if n.Op != "toggle todo" {
			t.Errorf("expected toggle notice, got %+v", n)
		}
		if n.String() == "" {
			t.Error("expected notice text")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a notice for the failed toggle")
	}
}

func TestStorageFailureBecomesNotice(t *testing.T) {
	storageFailure := &db.StorageError{Op: "delete todo", Err: errors.New("disk I/O error")}
	c := New(&fakeRepo{err: storageFailure}, quietLogger())

	err := c.DeleteTask(context.Background(), models.Todo{ID: 1, Title: "x"})
	if !errors.Is(err, db.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	n := <-c.Notices()
	if !errors.Is(n.Err, db.ErrStorage) {
		t.Errorf("expected storage notice, got %+v", n)
	}
}

func TestNoticesDropWhenUnread(t *testing.T) {
	c := New(&fakeRepo{}, quietLogger())
	for i := 0; i < noticeBuffer*2; i++ {
		c.AddTask(context.Background(), "")
	}
	if got := len(c.Notices()); got != noticeBuffer {
		t.Errorf("expected %d buffered notices, got %d", noticeBuffer, got)
	}
}

func TestRunReturnsWatchError(t *testing.T) {
	c := New(&fakeRepo{watchErr: errors.New("boom")}, quietLogger())
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail when the stream cannot be opened")
	}
}

// fakeRepo is a mock Repository with a closed, empty stream.
type fakeRepo struct {
	added    []string
	err      error
	watchErr error
}

func (r *fakeRepo) Todos(ctx context.Context) (<-chan []models.Todo, error) {
	if r.watchErr != nil {
		return nil, r.watchErr
	}
	ch := make(chan []models.Todo)
	close(ch)
	return ch, nil
}

func (r *fakeRepo) Add(ctx context.Context, title string) (*models.Todo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.added = append(r.added, title)
	return &models.Todo{ID: int64(len(r.added)), Title: title}, nil
}

func (r *fakeRepo) Update(ctx context.Context, t *models.Todo) error { return r.err }

func (r *fakeRepo) Delete(ctx context.Context, t *models.Todo) error { return r.err }
