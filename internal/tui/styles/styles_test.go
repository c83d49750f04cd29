package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityStyleRendersText(t *testing.T) {
	for _, sev := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO", "UNKNOWN"} {
		t.Run(sev, func(t *testing.T) {
			assert.Contains(t, SeverityStyle(sev).Render("test"), "test")
		})
	}
}

func TestStatusStyleRendersText(t *testing.T) {
	for _, status := range []string{"success", "failure", "skipped", ""} {
		t.Run(status, func(t *testing.T) {
			assert.Contains(t, StatusStyle(status).Render("test"), "test")
		})
	}
}

func TestStylesRender(t *testing.T) {
	tests := []struct {
		name  string
		style func(...string) string
	}{
		{"TitleStyle", TitleStyle.Render},
		{"HeaderStyle", HeaderStyle.Render},
		{"BorderStyle", BorderStyle.Render},
		{"SelectedStyle", SelectedStyle.Render},
		{"CursorStyle", CursorStyle.Render},
		{"HelpStyle", HelpStyle.Render},
		{"ErrorStyle", ErrorStyle.Render},
		{"BarFilledStyle", BarFilledStyle.Render},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.style("hello")
			assert.Contains(t, result, "hello")
		})
	}
}
