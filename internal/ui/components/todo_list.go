package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/todo/pkg/models"
)

var (
	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Strikethrough(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	createdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

const createdLayout = "2006-01-02 15:04"

// TodoList renders todos in a scrolling viewport and keeps the cursor row
// in view.
type TodoList struct {
	viewport    viewport.Model
	todos       []models.Todo
	cursor      int
	width       int
	height      int
	Placeholder string
}

func NewTodoList(width, height int) *TodoList {
	l := &TodoList{
		viewport:    viewport.New(width, height),
		width:       width,
		height:      height,
		Placeholder: "No tasks yet. Press a to add one.",
	}
	l.updateContent()
	return l
}

func (l *TodoList) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	l.width = width
	l.height = height
	l.viewport.Width = width
	l.viewport.Height = height
	l.updateContent()
}

func (l *TodoList) SetTodos(todos []models.Todo) {
	l.todos = todos
	l.clampCursor()
	l.updateContent()
}

func (l *TodoList) SetCursor(i int) {
	l.cursor = i
	l.clampCursor()
	l.updateContent()
}

func (l *TodoList) Cursor() int {
	return l.cursor
}

// Selected returns the todo under the cursor.
func (l *TodoList) Selected() (models.Todo, bool) {
	if len(l.todos) == 0 {
		return models.Todo{}, false
	}
	return l.todos[l.cursor], true
}

func (l *TodoList) View() string {
	if len(l.todos) == 0 {
		return placeholderStyle.Render(l.Placeholder)
	}
	return l.viewport.View()
}

func (l *TodoList) clampCursor() {
	if l.cursor >= len(l.todos) {
		l.cursor = len(l.todos) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

func (l *TodoList) updateContent() {
	lines := make([]string, 0, len(l.todos))
	for i, t := range l.todos {
		lines = append(lines, RenderTodo(t, i == l.cursor, l.width))
	}
	l.viewport.SetContent(strings.Join(lines, "\n"))

	if l.cursor < l.viewport.YOffset {
		l.viewport.SetYOffset(l.cursor)
	} else if l.height > 0 && l.cursor >= l.viewport.YOffset+l.height {
		l.viewport.SetYOffset(l.cursor - l.height + 1)
	}
}

// RenderTodo renders a single todo row.
func RenderTodo(t models.Todo, selected bool, width int) string {
	pointer := "  "
	if selected {
		pointer = cursorStyle.Render("> ")
	}

	box := "[ ]"
	titleStyle := activeStyle
	if t.Done {
		box = "[x]"
		titleStyle = doneStyle
	}

	created := createdStyle.Render(t.Created().Format(createdLayout))

	// Leave room for pointer, box, spaces and the timestamp.
	titleWidth := width - lipgloss.Width(created) - 8
	title := t.Title
	if titleWidth > 0 && lipgloss.Width(title) > titleWidth {
		title = truncate(title, titleWidth)
	}

	return fmt.Sprintf("%s%s %s  %s", pointer, box, titleStyle.Render(title), created)
}

func truncate(s string, width int) string {
	if width <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
