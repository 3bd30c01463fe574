package tui

import "github.com/charmbracelet/lipgloss"

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme bundles the styles every view renders with.
type Theme struct {
	Name string

	Title    lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Success  lipgloss.Style
	Pending  lipgloss.Style
	Error    lipgloss.Style
	Selected lipgloss.Style
	Done     lipgloss.Style
	Help     lipgloss.Style
	Panel    lipgloss.Style

	BoxChecked   string
	BoxUnchecked string
}

func DarkTheme() Theme {
	return Theme{
		Name:     ThemeDark,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		Tab:      lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		TabOn:    lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")),
		Muted:    lipgloss.NewStyle().Faint(true),
		Accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		Done:     lipgloss.NewStyle().Faint(true).Strikethrough(true),
		Help:     lipgloss.NewStyle().Faint(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1),
		BoxChecked:   "☑",
		BoxUnchecked: "☐",
	}
}

func LightTheme() Theme {
	return Theme{
		Name:     ThemeLight,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")),
		Tab:      lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("240")),
		TabOn:    lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		Pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")),
		Done:     lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Strikethrough(true),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("250")).
			Padding(0, 1),
		BoxChecked:   "☑",
		BoxUnchecked: "☐",
	}
}

// ThemeByName falls back to the dark theme for unknown names.
func ThemeByName(name string) Theme {
	if name == ThemeLight {
		return LightTheme()
	}
	return DarkTheme()
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t.Name == ThemeLight {
		return DarkTheme()
	}
	return LightTheme()
}
