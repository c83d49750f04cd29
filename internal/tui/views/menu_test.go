package views

import (
	"testing"

	"github.com/buemura/rook/pkg/types"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMenuModel(t *testing.T) {
	m := NewMenuModel(DefaultSpeedItems())

	assert.Equal(t, 0, m.Cursor())
	assert.Equal(t, 2, len(m.Items()))
}

func TestMenuModelNavigate(t *testing.T) {
	m := NewMenuModel(DefaultSpeedItems())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(MenuModel)
	assert.Equal(t, 1, m.Cursor())

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(MenuModel)
	assert.Equal(t, 1, m.Cursor(), "cursor stays on the last item")

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(MenuModel)
	assert.Equal(t, 0, m.Cursor())

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(MenuModel)
	assert.Equal(t, 0, m.Cursor(), "cursor stays on the first item")
}

func TestMenuModelSelected(t *testing.T) {
	m := NewMenuModel(DefaultSpeedItems())
	sel := m.Selected()
	require.NotNil(t, sel)
	assert.Equal(t, types.SpeedCareful, sel.Speed)

	assert.Nil(t, NewMenuModel(nil).Selected())
}

func TestMenuModelView(t *testing.T) {
	view := NewMenuModel(DefaultSpeedItems()).View()
	assert.Contains(t, view, "Select a scan speed")
	assert.Contains(t, view, "careful")
	assert.Contains(t, view, "fast")
}

func TestMenuModelQuit(t *testing.T) {
	m := NewMenuModel(DefaultSpeedItems())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
}
