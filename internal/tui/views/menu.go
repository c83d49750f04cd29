package views

import (
	"fmt"
	"strings"

	"github.com/buemura/rook/internal/tui/styles"
	"github.com/buemura/rook/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// SpeedItem is one selectable scan speed.
type SpeedItem struct {
	Speed       types.Speed
	Description string
}

// DefaultSpeedItems lists the speeds offered in the menu.
func DefaultSpeedItems() []SpeedItem {
	return []SpeedItem{
		{Speed: types.SpeedCareful, Description: "half the CPU cores scan targets at once"},
		{Speed: types.SpeedFast, Description: "every target is scanned at once"},
	}
}

// MenuModel is the view model for the speed selection menu.
type MenuModel struct {
	items  []SpeedItem
	cursor int
}

// NewMenuModel creates a menu with the given items.
func NewMenuModel(items []SpeedItem) MenuModel {
	return MenuModel{items: items}
}

// Init returns nil (no initial command).
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles key navigation in the menu.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the speed menu.
func (m MenuModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Rook - Interactive Mode"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render("Select a scan speed:"))
	b.WriteString("\n")

	for i, item := range m.items {
		cursor := "  "
		nameStyle := styles.HelpStyle
		if i == m.cursor {
			cursor = styles.CursorStyle.Render("> ")
			nameStyle = styles.SelectedStyle
		}

		b.WriteString(fmt.Sprintf("%s%s  %s\n",
			cursor,
			nameStyle.Render(fmt.Sprintf("%-8s", item.Speed)),
			styles.HelpStyle.Render(item.Description),
		))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ navigate • enter select • q quit"))

	return b.String()
}

// Selected returns the highlighted item, or nil if empty.
func (m MenuModel) Selected() *SpeedItem {
	if len(m.items) == 0 {
		return nil
	}
	return &m.items[m.cursor]
}

// Cursor returns the current cursor position.
func (m MenuModel) Cursor() int {
	return m.cursor
}

// Items returns the menu items.
func (m MenuModel) Items() []SpeedItem {
	return m.items
}
