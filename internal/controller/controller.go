// Package controller holds the list screen state: the current filter and
// search query, the latest collection from the repository, and the view
// derived from them.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ldi/todo/internal/db"
	"github.com/ldi/todo/internal/pubsub"
	"github.com/ldi/todo/pkg/models"
)

// Repository is the subset of *repository.Repository the controller uses.
type Repository interface {
	Todos(ctx context.Context) (<-chan []models.Todo, error)
	Add(ctx context.Context, title string) (*models.Todo, error)
	Update(ctx context.Context, t *models.Todo) error
	Delete(ctx context.Context, t *models.Todo) error
}

// State is what the presentation renders.
type State struct {
	Visible []models.Todo
	Filter  models.Filter
	Query   string
	Counts  models.Counts
	// Loaded is false until the first collection arrives from the repository.
	Loaded bool
}

// Notice is a transient failure signal for the presentation, e.g. a toast.
type Notice struct {
	Op  string
	Err error
	At  time.Time
}

func (n Notice) String() string {
	return fmt.Sprintf("failed to %s: %v", n.Op, n.Err)
}

const noticeBuffer = 16

// Controller owns the list screen state and forwards intents to the repository.
type Controller struct {
	repo   Repository
	logger *log.Logger

	mu     sync.Mutex
	filter models.Filter
	query  string
	todos  []models.Todo
	loaded bool

	state   *pubsub.Cell[State]
	notices chan Notice
}

// New returns a Controller with the All filter and an empty query. A nil
// logger means log.Default().
func New(repo Repository, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	c := &Controller{
		repo:    repo,
		logger:  logger,
		notices: make(chan Notice, noticeBuffer),
	}
	c.state = pubsub.NewCell(c.snapshotLocked())
	return c
}

// Run consumes the repository stream and republishes the derived state on
// every emission. It returns when ctx is done or the stream ends.
func (c *Controller) Run(ctx context.Context) error {
	stream, err := c.repo.Todos(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch todos: %w", err)
	}

	for todos := range stream {
		c.mu.Lock()
		c.todos = todos
		c.loaded = true
		c.publishLocked()
		c.mu.Unlock()
		c.logger.Debug("collection updated", "todos", len(todos))
	}
	return ctx.Err()
}

// State returns the current derived state.
func (c *Controller) State() State {
	return c.state.Get()
}

// Subscribe returns the observable state: the current value first, then one
// value per change. Slow readers only see the latest state.
func (c *Controller) Subscribe(ctx context.Context) <-chan State {
	return c.state.Subscribe(ctx)
}

// Notices delivers failures of add, toggle and delete intents. Notices are
// dropped when nobody reads them.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

func (c *Controller) SetFilter(f models.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filter == f {
		return
	}
	c.filter = f
	c.publishLocked()
}

func (c *Controller) SetSearchQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.query == q {
		return
	}
	c.query = q
	c.publishLocked()
}

// AddTask trims title and forwards it. Blank titles are rejected with
// db.ErrValidation and nothing is written.
func (c *Controller) AddTask(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return c.fail("add todo", fmt.Errorf("%w: title must not be blank", db.ErrValidation))
	}

	t, err := c.repo.Add(ctx, title)
	if err != nil {
		return c.fail("add todo", err)
	}
	c.logger.Debug("todo added", "id", t.ID)
	return nil
}

// ToggleTask forwards an update with the completion flag inverted.
func (c *Controller) ToggleTask(ctx context.Context, t models.Todo) error {
	toggled := t.Toggled()
	if err := c.repo.Update(ctx, &toggled); err != nil {
		return c.fail("toggle todo", err)
	}
	c.logger.Debug("todo toggled", "id", t.ID, "done", toggled.Done)
	return nil
}

func (c *Controller) DeleteTask(ctx context.Context, t models.Todo) error {
	if err := c.repo.Delete(ctx, &t); err != nil {
		return c.fail("delete todo", err)
	}
	c.logger.Debug("todo deleted", "id", t.ID)
	return nil
}

func (c *Controller) fail(op string, err error) error {
	c.logger.Warn("intent failed", "op", op, "err", err)
	select {
	case c.notices <- Notice{Op: op, Err: err, At: time.Now()}:
	default:
	}
	return err
}

func (c *Controller) publishLocked() {
	c.state.Publish(c.snapshotLocked())
}

func (c *Controller) snapshotLocked() State {
	return State{
		Visible: Derive(c.todos, c.filter, c.query),
		Filter:  c.filter,
		Query:   c.query,
		Counts:  Count(c.todos),
		Loaded:  c.loaded,
	}
}
