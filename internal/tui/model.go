package tui

import (
	"github.com/buemura/rook/internal/tui/views"
	"github.com/buemura/rook/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// appState represents which view is currently active.
type appState int

const (
	stateMenu    appState = iota // Speed selection menu
	stateTarget                  // Target list input
	stateScan                    // Run in progress
	stateResults                 // Results display
)

// Model is the root Bubble Tea model that manages view transitions.
type Model struct {
	state    appState
	exec     views.Executor
	defaults types.ScanOptions
	width    int
	height   int

	// Sub-models for each view.
	menu    views.MenuModel
	target  views.TargetModel
	scan    views.ScanModel
	results views.ResultsModel
}

// NewModel creates a root model that runs scans through exec with defaults as the
// base options.
func NewModel(exec views.Executor, defaults types.ScanOptions) Model {
	return Model{
		state:    stateMenu,
		exec:     exec,
		defaults: defaults,
		menu:     views.NewMenuModel(views.DefaultSpeedItems()),
		target:   views.NewTargetModel(),
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.target.Init()
}

// Update handles messages and manages state transitions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.state == stateScan {
				m.scan.Cancel()
			}
			return m, tea.Quit
		case "esc":
			return m.handleBack()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	switch m.state {
	case stateMenu:
		return m.updateMenu(msg)
	case stateTarget:
		return m.updateTarget(msg)
	case stateScan:
		return m.updateScan(msg)
	case stateResults:
		return m.updateResults(msg)
	}

	return m, nil
}

// View renders the current view.
func (m Model) View() string {
	switch m.state {
	case stateMenu:
		return m.menu.View()
	case stateTarget:
		return m.target.View()
	case stateScan:
		return m.scan.View()
	case stateResults:
		return m.results.View()
	}
	return ""
}

func (m Model) handleBack() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateTarget, stateResults:
		m.state = stateMenu
	case stateScan:
		if m.scan.Done() {
			m.state = stateMenu
			return m, nil
		}
		// The run winds down and reports through RunCompleteMsg.
		m.scan.Cancel()
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		selected := m.menu.Selected()
		if selected != nil {
			m.target = views.NewTargetModel()
			m.target.SetSpeed(selected.Speed)
			m.state = stateTarget
			return m, m.target.Init()
		}
	}

	updated, cmd := m.menu.Update(msg)
	m.menu = updated.(views.MenuModel)
	return m, cmd
}

func (m Model) updateTarget(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		targets, err := m.target.ValidatedTargets()
		if err == nil {
			opts := m.defaults.Clone()
			opts.Speed = m.target.Speed()
			m.scan = views.NewScanModel(m.exec, targets, opts)
			m.state = stateScan
			return m, m.scan.Init()
		}
	}

	updated, cmd := m.target.Update(msg)
	m.target = updated.(views.TargetModel)
	return m, cmd
}

func (m Model) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(views.RunCompleteMsg); ok {
		updated, _ := m.scan.Update(msg)
		m.scan = updated.(views.ScanModel)
		if done.Err != nil && !done.Report.Cancelled() {
			// Stay on the progress view so the error is visible.
			return m, nil
		}
		m.results = views.NewResultsModel(done.Report)
		m.state = stateResults
		return m, nil
	}

	updated, cmd := m.scan.Update(msg)
	m.scan = updated.(views.ScanModel)
	return m, cmd
}

func (m Model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.results.Update(msg)
	m.results = updated.(views.ResultsModel)
	return m, cmd
}
