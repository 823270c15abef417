package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/todo/internal/controller"
	"github.com/ldi/todo/internal/ui/components"
	"github.com/ldi/todo/pkg/models"
)

var (
	orbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	headerTextStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Padding(1, 2, 0, 2)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)
)

// Controller is the part of *controller.Controller the list screen drives.
type Controller interface {
	Subscribe(ctx context.Context) <-chan controller.State
	Notices() <-chan controller.Notice
	State() controller.State
	SetFilter(f models.Filter)
	SetSearchQuery(q string)
	AddTask(ctx context.Context, title string) error
	ToggleTask(ctx context.Context, t models.Todo) error
	DeleteTask(ctx context.Context, t models.Todo) error
}

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeSearch
)

type stateMsg controller.State

type noticeMsg controller.Notice

type ListModel struct {
	ctx    context.Context
	ctrl   Controller
	states <-chan controller.State

	state  controller.State
	list   *components.TodoList
	input  textinput.Model
	mode   mode
	notice string

	width    int
	height   int
	ready    bool
	quitting bool
}

func NewListModel(ctx context.Context, ctrl Controller) *ListModel {
	input := textinput.New()
	input.CharLimit = 500

	m := &ListModel{
		ctx:    ctx,
		ctrl:   ctrl,
		states: ctrl.Subscribe(ctx),
		list:   components.NewTodoList(80, 10),
		input:  input,
	}
	m.applyState(ctrl.State())
	return m
}

func (m *ListModel) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.waitForNotice())
}

func (m *ListModel) waitForState() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.states
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

func (m *ListModel) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-m.ctrl.Notices():
			return noticeMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.recalculateLayout()

	case stateMsg:
		m.applyState(controller.State(msg))
		return m, m.waitForState()

	case noticeMsg:
		m.notice = controller.Notice(msg).String()
		return m, m.waitForNotice()

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m, m.updateInput(msg)
		}
		return m, m.handleKey(msg)
	}

	return m, nil
}

func (m *ListModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "a":
		return m.startInput(modeAdd, "")

	case "/":
		return m.startInput(modeSearch, m.state.Query)

	case "esc":
		m.notice = ""
		if m.state.Query != "" {
			m.setSearchQuery("")
		}

	case "tab":
		m.setFilter(m.state.Filter.Next())

	case "1", "2", "3":
		m.setFilter(models.Filters[msg.Runes[0]-'1'])

	case "j", "down":
		m.list.SetCursor(m.list.Cursor() + 1)

	case "k", "up":
		m.list.SetCursor(m.list.Cursor() - 1)

	case " ", "x":
		if t, ok := m.list.Selected(); ok {
			return m.intent(func(ctx context.Context) error { return m.ctrl.ToggleTask(ctx, t) })
		}

	case "d":
		if t, ok := m.list.Selected(); ok {
			return m.intent(func(ctx context.Context) error { return m.ctrl.DeleteTask(ctx, t) })
		}
	}
	return nil
}

func (m *ListModel) startInput(md mode, value string) tea.Cmd {
	m.mode = md
	switch md {
	case modeAdd:
		m.input.Prompt = "New task: "
		m.input.Placeholder = "what needs doing?"
	case modeSearch:
		m.input.Prompt = "Search: "
		m.input.Placeholder = "type to filter"
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *ListModel) stopInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.SetValue("")
}

func (m *ListModel) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "esc":
		if m.mode == modeSearch {
			m.setSearchQuery("")
		}
		m.stopInput()
		return nil

	case "enter":
		if m.mode == modeAdd {
			title := m.input.Value()
			m.stopInput()
			return m.intent(func(ctx context.Context) error { return m.ctrl.AddTask(ctx, title) })
		}
		m.stopInput()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.setSearchQuery(m.input.Value())
	}
	return cmd
}

// intent runs a mutation off the event loop. Quitting does not cancel a write
// that is already running. Failures come back through the notice channel, so
// the command yields no message.
func (m *ListModel) intent(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		_ = fn(context.WithoutCancel(m.ctx))
		return nil
	}
}

func (m *ListModel) setFilter(f models.Filter) {
	m.ctrl.SetFilter(f)
	m.applyState(m.ctrl.State())
}

func (m *ListModel) setSearchQuery(q string) {
	m.ctrl.SetSearchQuery(q)
	m.applyState(m.ctrl.State())
}

func (m *ListModel) applyState(s controller.State) {
	m.state = s
	switch {
	case !s.Loaded:
		m.list.Placeholder = "Loading tasks..."
	case s.Counts.Total == 0:
		m.list.Placeholder = "No tasks yet. Press a to add one."
	default:
		m.list.Placeholder = "No matching tasks."
	}
	m.list.SetTodos(s.Visible)
}

func (m *ListModel) recalculateLayout() {
	if !m.ready {
		return
	}
	chrome := lipgloss.Height(m.renderHeader()) + 3
	m.list.SetSize(m.width-2, m.height-chrome)
}

func (m *ListModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		" "+components.FilterBar(m.state.Filter, m.state.Counts),
		m.list.View(),
		m.renderStatus(),
		m.renderHelp(),
	)
}

func (m *ListModel) renderHeader() string {
	text := fmt.Sprintf("Todo | %d active | %d completed", m.state.Counts.Active, m.state.Counts.Completed)
	if m.state.Query != "" {
		text += fmt.Sprintf(" | search: %q", m.state.Query)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, orbStyle.Render("⬤"), " ", headerTextStyle.Render(text))
	return headerStyle.Render(header)
}

func (m *ListModel) renderStatus() string {
	if m.mode != modeNormal {
		return statusStyle.Render(m.input.View())
	}
	if m.notice != "" {
		return noticeStyle.Render(m.notice)
	}
	return ""
}

func (m *ListModel) renderHelp() string {
	switch m.mode {
	case modeAdd:
		return helpStyle.Render("enter to save • esc to cancel")
	case modeSearch:
		return helpStyle.Render("enter to keep search • esc to clear")
	}
	return helpStyle.Render("a add • / search • tab/1/2/3 filter • space toggle • d delete • j/k move • q quit")
}

// Run draws the list screen until the user quits or ctx is done.
func Run(ctx context.Context, ctrl Controller) error {
	p := tea.NewProgram(NewListModel(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
