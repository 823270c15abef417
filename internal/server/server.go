package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/ldi/todo/embed/web"
	"github.com/ldi/todo/internal/controller"
	"github.com/ldi/todo/internal/db"
	"github.com/ldi/todo/pkg/models"
)

// Repository is the part of *repository.Repository the HTTP API uses.
type Repository interface {
	Todos(ctx context.Context) (<-chan []models.Todo, error)
	Add(ctx context.Context, title string) (*models.Todo, error)
	Update(ctx context.Context, t *models.Todo) error
	Delete(ctx context.Context, t *models.Todo) error
	Get(ctx context.Context, id int64) (*models.Todo, error)
	Snapshot(ctx context.Context) ([]models.Todo, error)
}

type Server struct {
	repo   Repository
	logger *log.Logger
	server *http.Server

	// ctx is the base context of every request; Shutdown cancels it so
	// event streams end instead of holding connections open.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(repo Repository, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{repo: repo, logger: logger, ctx: ctx, cancel: cancel}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/todos", s.handleList)
	mux.HandleFunc("POST /api/todos", s.handleAdd)
	mux.HandleFunc("POST /api/todos/{id}/toggle", s.handleToggle)
	mux.HandleFunc("DELETE /api/todos/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/counts", s.handleCounts)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	// Static files
	mux.Handle("/", http.FileServer(http.FS(web.Assets)))

	return mux
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return s.ctx },
	}
	s.logger.Info("web server listening", "addr", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := models.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	todos, err := s.repo.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, controller.Derive(todos, filter, r.URL.Query().Get("q")))
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	todos, err := s.repo.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, controller.Count(todos))
}

type addRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	todo, err := s.repo.Add(r.Context(), req.Title)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, todo)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	todo, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if todo == nil {
		s.respondError(w, fmt.Errorf("%w: %d", db.ErrNotFound, id))
		return
	}
	toggled := todo.Toggled()
	if err := s.repo.Update(r.Context(), &toggled); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, toggled)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.Delete(r.Context(), &models.Todo{ID: id}); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams one data event per collection emission until the
// client goes away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	stream, err := s.repo.Todos(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("event stream opened", "remote", r.RemoteAddr)
	for todos := range stream {
		data, err := json.Marshal(todos)
		if err != nil {
			s.logger.Error("failed to encode todos", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
	s.logger.Debug("event stream closed", "remote", r.RemoteAddr)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid todo id %q", r.PathValue("id")), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("request failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
