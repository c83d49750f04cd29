package views

import (
	"fmt"
	"strings"

	"github.com/buemura/rook/internal/tui/styles"
	"github.com/buemura/rook/pkg/types"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TargetModel is the view model for the target list input.
type TargetModel struct {
	textInput textinput.Model
	speed     types.Speed
	err       string
}

// NewTargetModel creates a new target input view.
func NewTargetModel() TargetModel {
	ti := textinput.New()
	ti.Placeholder = "e.g. example.com, 10.0.0.1, 10.0.0.0/30"
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 60
	ti.PromptStyle = styles.CursorStyle
	ti.TextStyle = styles.SelectedStyle

	return TargetModel{textInput: ti}
}

// SetSpeed sets the speed chosen in the menu.
func (m *TargetModel) SetSpeed(speed types.Speed) {
	m.speed = speed
}

// Speed returns the chosen speed.
func (m TargetModel) Speed() types.Speed {
	return m.speed
}

// SetValue replaces the input text.
func (m *TargetModel) SetValue(s string) {
	m.textInput.SetValue(s)
}

// Init returns the text input blink command.
func (m TargetModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events.
func (m TargetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if _, err := m.ValidatedTargets(); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.err = ""
	return m, cmd
}

// View renders the target input form.
func (m TargetModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Rook - Interactive Mode"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("Speed: %s", m.speed)))
	b.WriteString("\n")
	b.WriteString("Enter targets separated by commas or spaces:\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("enter start • esc back"))

	return b.String()
}

// ValidatedTargets parses and validates the input.
func (m TargetModel) ValidatedTargets() ([]string, error) {
	value := strings.TrimSpace(m.textInput.Value())
	if value == "" {
		return nil, fmt.Errorf("at least one target is required")
	}
	return types.ParseTargets(value)
}
