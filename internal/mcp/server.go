package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ldi/todo/internal/controller"
	"github.com/ldi/todo/internal/db"
	"github.com/ldi/todo/internal/repository"
	"github.com/ldi/todo/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server.
func NewServer(repo *repository.Repository, logger *log.Logger) *server.MCPServer {
	if logger == nil {
		logger = log.Default()
	}
	s := server.NewMCPServer("Todo", "0.1.0")

	s.AddTool(mcp.NewTool("add_todo",
		mcp.WithDescription("Add a new active todo."),
		mcp.WithString("title", mcp.Description("Todo title (must not be blank)"), mcp.Required()),
	), addTodoHandler(repo, logger))

	s.AddTool(mcp.NewTool("toggle_todo",
		mcp.WithDescription("Flip a todo between active and completed."),
		mcp.WithNumber("id", mcp.Description("Todo ID"), mcp.Required()),
	), toggleTodoHandler(repo, logger))

	s.AddTool(mcp.NewTool("delete_todo",
		mcp.WithDescription("Delete a todo."),
		mcp.WithNumber("id", mcp.Description("Todo ID"), mcp.Required()),
	), deleteTodoHandler(repo, logger))

	s.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List todos in creation order, optionally filtered."),
		mcp.WithString("filter", mcp.Description("all|active|completed (defaults to all)")),
		mcp.WithString("query", mcp.Description("Case-insensitive title substring")),
	), listTodosHandler(repo))

	s.AddTool(mcp.NewTool("todo_counts",
		mcp.WithDescription("Count all, active and completed todos."),
	), todoCountsHandler(repo))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func addTodoHandler(repo *repository.Repository, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")

		t, err := repo.Add(ctx, title)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logger.Debug("todo added over mcp", "id", t.ID)

		return jsonResult(t)
	}
}

func toggleTodoHandler(repo *repository.Repository, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseInt64(request, "id", 0)

		t, err := repo.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if t == nil {
			return mcp.NewToolResultError(fmt.Sprintf("%v: %d", db.ErrNotFound, id)), nil
		}

		toggled := t.Toggled()
		if err := repo.Update(ctx, &toggled); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logger.Debug("todo toggled over mcp", "id", id, "done", toggled.Done)

		return jsonResult(toggled)
	}
}

func deleteTodoHandler(repo *repository.Repository, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseInt64(request, "id", 0)

		if err := repo.Delete(ctx, &models.Todo{ID: id}); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logger.Debug("todo deleted over mcp", "id", id)

		return mcp.NewToolResultText("Todo deleted successfully"), nil
	}
}

func listTodosHandler(repo *repository.Repository) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := models.ParseFilter(mcp.ParseString(request, "filter", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		query := mcp.ParseString(request, "query", "")

		todos, err := repo.Snapshot(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"todos": controller.Derive(todos, filter, query)})
	}
}

func todoCountsHandler(repo *repository.Repository) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		todos, err := repo.Snapshot(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(controller.Count(todos))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
