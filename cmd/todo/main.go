package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	_ "github.com/joho/godotenv/autoload"

	"github.com/Tomlord1122/todo-store/internal/client"
	"github.com/Tomlord1122/todo-store/internal/tui"
)

func main() {
	defaultURL := os.Getenv("TODO_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	defaultTheme := os.Getenv("TODO_THEME")
	if defaultTheme == "" {
		defaultTheme = tui.ThemeDark
	}

	serverURL := flag.String("server", defaultURL, "todo API base URL")
	theme := flag.String("theme", defaultTheme, "color theme (dark or light)")
	flag.Parse()

	api, err := client.New(*serverURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(tui.NewModel(ctx, api, tui.ThemeByName(*theme)), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "todo:", err)
		os.Exit(1)
	}
}
