package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the dashboard and blocks until the user quits.
func Run(source DataSource, explainer Explainer, interval time.Duration) error {
	model := NewModel(source, explainer, interval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
