package views

import (
	"fmt"
	"os"
	"strings"

	"github.com/buemura/rook/internal/output"
	"github.com/buemura/rook/internal/tui/styles"
	"github.com/buemura/rook/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
)

// ExportFile is where "e" writes the JSON results.
const ExportFile = "rook-results.json"

// ResultsModel is the view model for browsing finished records.
type ResultsModel struct {
	records   []*types.ScanRecord
	cancelled bool
	cursor    int
	offset    int
	maxRows   int
	exported  bool
	exportErr string
}

// NewResultsModel creates a results view from a finished report.
func NewResultsModel(report *types.RunReport) ResultsModel {
	return ResultsModel{
		records:   report.SortedRecords(),
		cancelled: report.Cancelled(),
		maxRows:   10,
	}
}

// Init returns nil (no initial command).
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles key events for scrolling and export.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.records)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.maxRows {
					m.offset = m.cursor - m.maxRows + 1
				}
			}
		case "e":
			m.exportJSON()
		case "q":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the target list and the selected record's stages.
func (m ResultsModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Rook - Scan Results"))
	b.WriteString("\n\n")

	if m.cancelled {
		b.WriteString(styles.ErrorStyle.Render("Run was cancelled; unscanned targets are not listed."))
		b.WriteString("\n\n")
	}

	if len(m.records) == 0 {
		b.WriteString("No targets were scanned.\n")
	} else {
		header := fmt.Sprintf("  %-40s %-8s %s", "TARGET", "WEB", "FAILED")
		b.WriteString(styles.HeaderStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", 64))
		b.WriteString("\n")

		end := m.offset + m.maxRows
		if end > len(m.records) {
			end = len(m.records)
		}
		for i := m.offset; i < end; i++ {
			rec := m.records[i]
			cursor := "  "
			if i == m.cursor {
				cursor = styles.CursorStyle.Render("> ")
			}
			web := "no"
			if rec.IsWebTarget {
				web = "yes"
			}
			b.WriteString(fmt.Sprintf("%s%-40s %-8s %d\n", cursor, truncate(rec.Target, 40), web, len(rec.FailedStages())))
		}

		if len(m.records) > m.maxRows {
			b.WriteString(fmt.Sprintf("\n  Showing %d-%d of %d targets\n", m.offset+1, end, len(m.records)))
		}

		b.WriteString("\n")
		b.WriteString(m.detailView(m.records[m.cursor]))
	}

	if m.exported {
		b.WriteString("\n")
		b.WriteString(styles.SelectedStyle.Render("Results exported to " + ExportFile))
	}
	if m.exportErr != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.exportErr))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ select target • e export JSON • esc back • q quit"))

	return b.String()
}

func (m ResultsModel) detailView(rec *types.ScanRecord) string {
	var b strings.Builder
	for _, res := range rec.Results() {
		status := styles.StatusStyle(string(res.Status)).Render(fmt.Sprintf("%-8s", res.Status))
		b.WriteString(fmt.Sprintf("%-18s %s %s\n", res.Stage.Label(), status, truncate(firstLine(res.Display()), 60)))
	}
	for _, c := range rec.ExtraCommands {
		status := styles.StatusStyle(string(c.Result.Status)).Render(fmt.Sprintf("%-8s", c.Result.Status))
		b.WriteString(fmt.Sprintf("%-18s %s %s\n", truncate(c.Command, 18), status, truncate(firstLine(c.Result.Display()), 60)))
	}
	b.WriteString(fmt.Sprintf("\nAdvice: %s", truncate(firstLine(rec.Advice), 70)))
	return styles.BorderStyle.Render(b.String())
}

func (m *ResultsModel) exportJSON() {
	f, err := os.Create(ExportFile)
	if err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}
	defer f.Close()

	if err := (&output.JSONFormatter{}).Format(f, m.records); err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	m.exported = true
	m.exportErr = ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
