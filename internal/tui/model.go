// Package tui is a terminal client for the todo API with two tabs: the
// todo list and a settings screen.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tomlord1122/todo-store/internal/server"
	"github.com/Tomlord1122/todo-store/internal/service"
)

const requestTimeout = 10 * time.Second

// API is the part of the HTTP client the terminal client needs.
type API interface {
	List(ctx context.Context) ([]service.TodoResponse, error)
	Add(ctx context.Context, text string) (string, error)
	Toggle(ctx context.Context, id string) error
	Rename(ctx context.Context, id, text string) error
	Delete(ctx context.Context, id string) error
	ClearAll(ctx context.Context) (int, error)
	BaseURL() string
}

// Watcher is implemented by clients that can stream list snapshots.
type Watcher interface {
	Watch(ctx context.Context) (<-chan server.WatchMessage, error)
}

type tab int

const (
	tabTodos tab = iota
	tabSettings
)

func (t tab) String() string {
	if t == tabSettings {
		return "Settings"
	}
	return "Todos"
}

type mode int

const (
	modeBrowse mode = iota
	modeAdding
	modeEditing
	modeConfirmClear
)

// Messages
type (
	todosMsg        struct{ todos []service.TodoResponse }
	errMsg          struct{ err error }
	doneMsg         struct{ status string }
	clearedMsg      struct{ count int }
	watchStartedMsg struct{ ch <-chan server.WatchMessage }
	snapshotMsg     struct{ msg server.WatchMessage }
	watchEndedMsg   struct{}
)

// listItem adapts a todo to bubbles/list.Item.
type listItem struct {
	todo service.TodoResponse
}

func (i listItem) Title() string       { return i.todo.Text }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.todo.Text }

// itemDelegate renders one todo per line.
type itemDelegate struct {
	theme Theme
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}

	box := d.theme.Muted.Render(d.theme.BoxUnchecked)
	text := it.todo.Text
	if text == "" {
		text = d.theme.Muted.Render("(empty)")
	}
	if it.todo.IsCompleted {
		box = d.theme.Success.Render(d.theme.BoxChecked)
		text = d.theme.Done.Render(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = d.theme.Selected.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s", prefix, box, text)
}

type keyMap struct {
	Toggle   key.Binding
	Add      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Refresh  key.Binding
	Tab      key.Binding
	Theme    key.Binding
	ClearAll key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:   key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "toggle")),
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch tab")),
		Theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		ClearAll: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear all")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the Bubble Tea model for the terminal client.
type Model struct {
	ctx   context.Context
	api   API
	keys  keyMap
	theme Theme

	tab   tab
	mode  mode
	list  list.Model
	input textinput.Model

	editID string
	todos  []service.TodoResponse
	watch  <-chan server.WatchMessage

	status string
	err    string

	width, height int
}

func NewModel(ctx context.Context, api API, theme Theme) Model {
	keys := defaultKeys()

	l := list.New(nil, itemDelegate{theme: theme}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("todo", "todos")
	l.FilterInput.Prompt = "/ "

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 500

	return Model{
		ctx:    ctx,
		api:    api,
		keys:   keys,
		theme:  theme,
		list:   l,
		input:  ti,
		width:  80,
		height: 24,
	}
}

// Theme returns the theme in use.
func (m Model) Theme() Theme { return m.theme }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadTodos(), m.startWatch())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case todosMsg:
		m.setTodos(msg.todos)
		return m, nil

	case watchStartedMsg:
		m.watch = msg.ch
		return m, waitForSnapshot(m.watch)

	case snapshotMsg:
		if msg.msg.Type == server.WatchSnapshot {
			m.setTodos(msg.msg.Todos)
		} else if msg.msg.Error != "" {
			m.err = msg.msg.Error
		}
		return m, waitForSnapshot(m.watch)

	case watchEndedMsg:
		m.watch = nil
		return m, nil

	case errMsg:
		m.err = msg.err.Error()
		return m, nil

	case doneMsg:
		m.status, m.err = msg.status, ""
		return m, m.loadTodos()

	case clearedMsg:
		m.status, m.err = fmt.Sprintf("Cleared %d todos", msg.count), ""
		return m, m.loadTodos()

	case tea.KeyMsg:
		switch m.mode {
		case modeAdding, modeEditing:
			return m.updateInput(msg)
		case modeConfirmClear:
			return m.updateConfirm(msg)
		}
		return m.updateBrowse(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Let the filter input have every key while it is open.
	if m.tab == tabTodos && m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tab):
		if m.tab == tabTodos {
			m.tab = tabSettings
		} else {
			m.tab = tabTodos
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadTodos()
	}

	if m.tab == tabSettings {
		switch {
		case key.Matches(msg, m.keys.Theme):
			m.theme = m.theme.Toggle()
			m.list.SetDelegate(itemDelegate{theme: m.theme})
			m.status = "Theme: " + m.theme.Name
			return m, nil
		case key.Matches(msg, m.keys.ClearAll):
			if len(m.todos) == 0 {
				m.status = "Nothing to clear"
				return m, nil
			}
			m.mode = modeConfirmClear
			return m, nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Toggle):
		if it, ok := m.selected(); ok {
			return m, m.toggle(it.todo.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdding
		m.err = ""
		m.input.SetValue("")
		m.input.Placeholder = "What needs doing?"
		m.resize()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Edit):
		if it, ok := m.selected(); ok {
			m.mode = modeEditing
			m.err = ""
			m.editID = it.todo.ID
			m.input.SetValue(it.todo.Text)
			m.input.CursorEnd()
			m.input.Placeholder = "Edit todo..."
			m.resize()
			return m, m.input.Focus()
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.selected(); ok {
			return m, m.delete(it.todo.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			m.err = "Text cannot be empty"
			return m, nil
		}
		var cmd tea.Cmd
		if m.mode == modeAdding {
			cmd = m.add(text)
		} else {
			cmd = m.rename(m.editID, text)
		}
		m.closeInput()
		return m, cmd
	case "esc":
		m.closeInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = modeBrowse
		return m, m.clearAll()
	case "n", "N", "esc", "q":
		m.mode = modeBrowse
		m.status = "Clear cancelled"
	}
	return m, nil
}

func (m *Model) closeInput() {
	m.mode = modeBrowse
	m.editID = ""
	m.input.SetValue("")
	m.input.Blur()
	m.resize()
}

func (m *Model) setTodos(todos []service.TodoResponse) {
	m.todos = todos
	items := make([]list.Item, 0, len(todos))
	for _, t := range todos {
		items = append(items, listItem{todo: t})
	}
	m.list.SetItems(items)
}

func (m Model) selected() (listItem, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it, ok
}

func (m *Model) resize() {
	// tabs, panel border, footer and help lines
	listHeight := m.height - 7
	if m.mode == modeAdding || m.mode == modeEditing {
		listHeight -= 4
	}
	if listHeight < 1 {
		listHeight = 1
	}
	width := m.width - 4
	if width < 10 {
		width = 10
	}
	m.list.SetSize(width, listHeight)
	m.input.Width = width - 4
}

// Commands

func (m Model) call(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		return fn(ctx)
	}
}

func (m Model) loadTodos() tea.Cmd {
	api := m.api
	return m.call(func(ctx context.Context) tea.Msg {
		todos, err := api.List(ctx)
		if err != nil {
			return errMsg{err}
		}
		return todosMsg{todos}
	})
}

func (m Model) add(text string) tea.Cmd {
	api := m.api
	return m.call(func(ctx context.Context) tea.Msg {
		if _, err := api.Add(ctx, text); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Added"}
	})
}

func (m Model) toggle(id string) tea.Cmd {
	api := m.api
	return m.call(func(ctx context.Context) tea.Msg {
		if err := api.Toggle(ctx, id); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Toggled"}
	})
}

func (m Model) rename(id, text string) tea.Cmd {
	api := m.api
	return m.call(func(ctx context.Context) tea.Msg {
		if err := api.Rename(ctx, id, text); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Renamed"}
	})
}

func (m Model) delete(id string) tea.Cmd {
	api := m.api
	return m.call(func(ctx context.Context) tea.Msg {
		if err := api.Delete(ctx, id); err != nil {
			return errMsg{err}
		}
		return doneMsg{"Deleted"}
	})
}

func (m Model) clearAll() tea.Cmd {
	api := m.api
	return m.call(func(ctx context.Context) tea.Msg {
		n, err := api.ClearAll(ctx)
		if err != nil {
			return errMsg{err}
		}
		return clearedMsg{n}
	})
}

// startWatch subscribes to live snapshots when the API supports it.
func (m Model) startWatch() tea.Cmd {
	w, ok := m.api.(Watcher)
	if !ok {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		ch, err := w.Watch(ctx)
		if err != nil {
			return watchEndedMsg{}
		}
		return watchStartedMsg{ch}
	}
}

func waitForSnapshot(ch <-chan server.WatchMessage) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return watchEndedMsg{}
		}
		return snapshotMsg{msg}
	}
}

func stats(todos []service.TodoResponse) (done, pending int) {
	for _, t := range todos {
		if t.IsCompleted {
			done++
		} else {
			pending++
		}
	}
	return
}
