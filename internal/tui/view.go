package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.tabsView())
	b.WriteString("\n")

	var body string
	if m.tab == tabSettings {
		body = m.settingsView()
	} else {
		body = m.todosView()
	}
	b.WriteString(m.theme.Panel.Width(max(m.width-2, 20)).Render(body))
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) tabsView() string {
	tabs := make([]string, 0, 2)
	for _, t := range []tab{tabTodos, tabSettings} {
		style := m.theme.Tab
		if t == m.tab {
			style = m.theme.TabOn
		}
		tabs = append(tabs, style.Render(t.String()))
	}
	done, pending := stats(m.todos)
	counts := fmt.Sprintf("  %s %d  %s %d",
		m.theme.Success.Render("✔"), done,
		m.theme.Pending.Render("•"), pending,
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, append(tabs, counts)...)
}

func (m Model) todosView() string {
	content := m.list.View()
	if len(m.todos) == 0 {
		content = m.theme.Muted.Render("No todos yet. Press a to add one.")
	}
	if m.mode == modeAdding || m.mode == modeEditing {
		title := "Add todo"
		if m.mode == modeEditing {
			title = "Edit todo"
		}
		bar := m.theme.Panel.Render(m.theme.Title.Render(title) + "\n" + m.input.View())
		content += "\n" + bar
	}
	return content
}

func (m Model) settingsView() string {
	done, _ := stats(m.todos)
	live := m.theme.Muted.Render("off")
	if m.watch != nil {
		live = m.theme.Success.Render("on")
	}

	rows := []string{
		m.theme.Title.Render("Appearance"),
		fmt.Sprintf("  Theme        %s", m.theme.Accent.Render(m.theme.Name)),
		"",
		m.theme.Title.Render("Server"),
		fmt.Sprintf("  URL          %s", m.theme.Accent.Render(m.api.BaseURL())),
		fmt.Sprintf("  Live updates %s", live),
		"",
		m.theme.Title.Render("Stats"),
		fmt.Sprintf("  Total        %d", len(m.todos)),
		fmt.Sprintf("  Completed    %s", progressBar(done, len(m.todos), 20)),
		"",
		m.theme.Title.Render("Danger zone"),
	}
	if m.mode == modeConfirmClear {
		rows = append(rows, m.theme.Error.Render(fmt.Sprintf("  Delete all %d todos? (y/n)", len(m.todos))))
	} else {
		rows = append(rows, m.theme.Muted.Render("  Press c to delete every todo"))
	}
	return strings.Join(rows, "\n")
}

func (m Model) footerView() string {
	var line string
	switch {
	case m.err != "":
		line = m.theme.Error.Render("✖ " + m.err)
	case m.status != "":
		line = m.theme.Success.Render("✔ " + m.status)
	}

	var bindings []key.Binding
	switch {
	case m.mode == modeAdding || m.mode == modeEditing:
		return line + "\n" + m.theme.Help.Render("enter save • esc cancel")
	case m.mode == modeConfirmClear:
		return line + "\n" + m.theme.Help.Render("y confirm • n cancel")
	case m.tab == tabSettings:
		bindings = []key.Binding{m.keys.Theme, m.keys.ClearAll, m.keys.Refresh, m.keys.Tab, m.keys.Quit}
	default:
		bindings = []key.Binding{m.keys.Toggle, m.keys.Add, m.keys.Edit, m.keys.Delete, m.keys.Tab, m.keys.Quit}
	}

	help := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	return line + "\n" + m.theme.Help.Render(strings.Join(help, " • "))
}

func progressBar(done, total, width int) string {
	if width <= 0 {
		width = 28
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}
