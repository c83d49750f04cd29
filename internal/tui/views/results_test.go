package views

import (
	"os"
	"testing"
	"time"

	"github.com/buemura/rook/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReport(cancelled bool, targets ...string) *types.RunReport {
	report := types.NewRunReport(targets, types.DefaultScanOptions())
	for _, target := range targets {
		rec := types.NewScanRecord(target)
		_ = rec.Set(types.StagePortScan, types.Success(types.StagePortScan, "80/tcp open http"))
		_ = rec.AddCommand(types.CommandOutput{Command: "whois " + target, Result: types.Success(types.StageExtraCommand, "registrar")})
		rec.IsWebTarget = true
		rec.Advice = types.AdviceDisabled
		rec.Finalize(time.Now())
		_, _ = report.Append(rec)
	}
	report.Finalize(cancelled)
	return report
}

func TestResultsModelView(t *testing.T) {
	m := NewResultsModel(newTestReport(false, "b.test", "a.test"))
	view := m.View()

	assert.Contains(t, view, "Scan Results")
	assert.Contains(t, view, "a.test")
	assert.Contains(t, view, "b.test")
	assert.Contains(t, view, "Port Scan")
	assert.Contains(t, view, "80/tcp open http")
	assert.Contains(t, view, "whois a.test")
	assert.Contains(t, view, types.AdviceDisabled)
	assert.NotContains(t, view, "cancelled")
}

func TestResultsModelEmpty(t *testing.T) {
	m := NewResultsModel(newTestReport(true))
	view := m.View()
	assert.Contains(t, view, "No targets were scanned")
	assert.Contains(t, view, "cancelled")
}

func TestResultsModelNavigation(t *testing.T) {
	m := NewResultsModel(newTestReport(false, "a.test", "b.test"))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(ResultsModel)
	assert.Equal(t, 1, m.cursor)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(ResultsModel)
	assert.Equal(t, 1, m.cursor)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(ResultsModel)
	assert.Equal(t, 0, m.cursor)
}

func TestResultsModelExport(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	m := NewResultsModel(newTestReport(false, "a.test"))
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	m = updated.(ResultsModel)

	assert.True(t, m.exported)
	data, err := os.ReadFile(ExportFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target": "a.test"`)
	assert.Contains(t, m.View(), "exported to "+ExportFile)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
