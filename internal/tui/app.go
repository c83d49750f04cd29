package tui

import (
	"fmt"

	"github.com/buemura/rook/internal/tui/views"
	"github.com/buemura/rook/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive TUI.
func Run(exec views.Executor, defaults types.ScanOptions) error {
	m := NewModel(exec, defaults)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
