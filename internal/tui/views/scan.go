package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buemura/rook/internal/tui/styles"
	"github.com/buemura/rook/pkg/types"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Executor runs every target of a report.
type Executor interface {
	RunInto(ctx context.Context, report *types.RunReport) error
}

// RunCompleteMsg is sent when the run finishes or is cancelled.
type RunCompleteMsg struct {
	Report *types.RunReport
	Err    error
}

type progressTickMsg struct{}

const (
	progressInterval = 250 * time.Millisecond
	barWidth         = 40
	recentRecords    = 8
)

// ScanModel is the view model for the run progress view.
type ScanModel struct {
	spinner spinner.Model
	exec    Executor
	report  *types.RunReport
	ctx     context.Context
	cancel  context.CancelFunc
	done    bool
	err     string
}

// NewScanModel creates a progress view for a run over targets.
func NewScanModel(exec Executor, targets []string, opts types.ScanOptions) ScanModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.ColorAccent)

	ctx, cancel := context.WithCancel(context.Background())
	return ScanModel{
		spinner: sp,
		exec:    exec,
		report:  types.NewRunReport(targets, opts),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Init starts the spinner and launches the run.
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run(), tick())
}

// Update handles spinner ticks, progress polling and run completion.
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RunCompleteMsg:
		m.done = true
		if msg.Err != nil && !m.report.Cancelled() {
			m.err = msg.Err.Error()
		}
		return m, nil

	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Cancel stops the run; targets in flight finish with cancelled stages.
func (m ScanModel) Cancel() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Done reports whether the run has returned.
func (m ScanModel) Done() bool {
	return m.done
}

// Report returns the live report.
func (m ScanModel) Report() *types.RunReport {
	return m.report
}

// View renders run progress.
func (m ScanModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Rook - Interactive Mode"))
	b.WriteString("\n\n")

	done, total := m.report.Completed(), m.report.Total()
	switch {
	case m.err != "":
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("Run failed: %s", m.err)))
		b.WriteString("\n")
	case m.done:
		b.WriteString(fmt.Sprintf("Run complete: %d of %d targets scanned.\n", done, total))
	default:
		b.WriteString(fmt.Sprintf("%s Scanning %s (%s)...\n",
			m.spinner.View(),
			styles.SelectedStyle.Render(fmt.Sprintf("%d targets", total)),
			m.report.Options.Speed))
	}

	b.WriteString("\n")
	b.WriteString(progressBar(done, total))
	b.WriteString(fmt.Sprintf(" %d/%d\n\n", done, total))

	records := m.report.Records()
	start := 0
	if len(records) > recentRecords {
		start = len(records) - recentRecords
	}
	for _, rec := range records[start:] {
		failed := len(rec.FailedStages())
		status := styles.StatusSuccessStyle.Render("done")
		if failed > 0 {
			status = styles.StatusFailureStyle.Render(fmt.Sprintf("%d failed", failed))
		}
		b.WriteString(fmt.Sprintf("  %-40s %s\n", rec.Target, status))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("esc cancel • ctrl+c quit"))

	return b.String()
}

func (m ScanModel) run() tea.Cmd {
	exec, report, ctx, cancel := m.exec, m.report, m.ctx, m.cancel
	return func() tea.Msg {
		defer cancel()
		err := exec.RunInto(ctx, report)
		return RunCompleteMsg{Report: report, Err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(progressInterval, func(time.Time) tea.Msg { return progressTickMsg{} })
}

func progressBar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	return styles.BarFilledStyle.Render(strings.Repeat("█", filled)) +
		styles.BarEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}
