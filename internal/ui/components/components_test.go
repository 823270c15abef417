package components

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/todo/pkg/models"
)

func manyTodos(n int) []models.Todo {
	todos := make([]models.Todo, 0, n)
	for i := 1; i <= n; i++ {
		todos = append(todos, models.Todo{ID: int64(i), Title: fmt.Sprintf("task%02d", i), CreatedAt: 1700000000000})
	}
	return todos
}

func TestTodoListEmptyState(t *testing.T) {
	l := NewTodoList(80, 10)
	if !strings.Contains(l.View(), "No tasks yet") {
		t.Errorf("expected placeholder when no todos")
	}
	if _, ok := l.Selected(); ok {
		t.Errorf("expected no selection in an empty list")
	}
}

func TestTodoListRendersState(t *testing.T) {
	l := NewTodoList(80, 10)
	l.SetTodos([]models.Todo{
		{ID: 1, Title: "Walk dog", CreatedAt: 1700000000000},
		{ID: 2, Title: "Buy milk", Done: true, CreatedAt: 1700000000000},
	})

	view := l.View()
	if !strings.Contains(view, "[ ]") || !strings.Contains(view, "Walk dog") {
		t.Errorf("expected active todo row, got %q", view)
	}
	if !strings.Contains(view, "[x]") || !strings.Contains(view, "Buy milk") {
		t.Errorf("expected done todo row, got %q", view)
	}
	if strings.Index(view, "Walk dog") > strings.Index(view, "Buy milk") {
		t.Errorf("expected collection order to be kept")
	}
}

func TestTodoListCursorClamp(t *testing.T) {
	l := NewTodoList(80, 10)
	l.SetTodos(manyTodos(3))

	l.SetCursor(10)
	if l.Cursor() != 2 {
		t.Errorf("expected cursor clamped to 2, got %d", l.Cursor())
	}

	l.SetTodos(manyTodos(1))
	if l.Cursor() != 0 {
		t.Errorf("expected cursor clamped to 0 after shrink, got %d", l.Cursor())
	}

	l.SetCursor(-3)
	if got, ok := l.Selected(); !ok || got.ID != 1 {
		t.Errorf("expected first todo selected, got %+v", got)
	}
}

func TestTodoListScrollsToCursor(t *testing.T) {
	l := NewTodoList(80, 3)
	l.SetTodos(manyTodos(10))

	l.SetCursor(7)
	view := l.View()
	if !strings.Contains(view, "task08") {
		t.Errorf("expected cursor row to be visible, got %q", view)
	}
	if strings.Contains(view, "task01") {
		t.Errorf("expected first row scrolled away, got %q", view)
	}

	l.SetCursor(0)
	if !strings.Contains(l.View(), "task01") {
		t.Errorf("expected list to scroll back to the top")
	}
}

func TestRenderTodoTruncatesLongTitles(t *testing.T) {
	long := models.Todo{ID: 1, Title: strings.Repeat("x", 200), CreatedAt: 1700000000000}
	row := RenderTodo(long, false, 60)
	if w := lipgloss.Width(row); w > 60 {
		t.Errorf("expected row width <= 60, got %d", w)
	}
	if !strings.Contains(row, "…") {
		t.Errorf("expected ellipsis in truncated row")
	}
}

func TestFilterBar(t *testing.T) {
	bar := FilterBar(models.FilterActive, models.Counts{Total: 3, Active: 2, Completed: 1})
	for _, want := range []string{"All (3)", "Active (2)", "Completed (1)"} {
		if !strings.Contains(bar, want) {
			t.Errorf("expected %q in filter bar %q", want, bar)
		}
	}
}
