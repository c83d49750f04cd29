package templates

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/buemura/rook/pkg/types"
)

//go:embed *.html
var templateFS embed.FS

// pages holds a per-page template set, each cloned from the base layout.
var pages map[string]*template.Template

// PageNames lists every renderable page.
var PageNames = []string{"index.html", "runs.html", "run_detail.html", "history.html", "record.html", "not_found.html"}

func init() {
	funcMap := template.FuncMap{
		"severityColor":  severityColor,
		"severityClass":  severityClass,
		"statusClass":    statusClass,
		"truncateID":     truncateID,
		"formatDuration": formatDuration,
		"formatTime":     formatTime,
		"progressPct":    progressPct,
		"stageLabel":     stageLabel,
		"stageResults":   stageResults,
		"joinTargets":    joinTargets,
		"lower":          strings.ToLower,
	}

	base := template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, "base.html"))

	pages = make(map[string]*template.Template, len(PageNames))
	for _, name := range PageNames {
		clone := template.Must(base.Clone())
		pages[name] = template.Must(clone.ParseFS(templateFS, name))
	}
}

// RenderPage executes the named page template into the response writer.
func RenderPage(w http.ResponseWriter, name string, data interface{}) error {
	tmpl, ok := pages[name]
	if !ok {
		return fmt.Errorf("render template %q: template not found", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("render template %q: %w", name, err)
	}
	return nil
}

// severityColor returns a CSS color for the given severity level.
func severityColor(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return "#dc2626"
	case types.SeverityHigh:
		return "#ea580c"
	case types.SeverityMedium:
		return "#ca8a04"
	case types.SeverityLow:
		return "#0891b2"
	default:
		return "#6b7280"
	}
}

func severityClass(s types.Severity) string {
	switch s {
	case types.SeverityCritical, types.SeverityHigh, types.SeverityMedium, types.SeverityLow:
		return strings.ToLower(string(s))
	default:
		return "info"
	}
}

// statusClass maps stage and run statuses to a badge class.
func statusClass(s string) string {
	switch s {
	case string(types.StatusSuccess), "completed":
		return "ok"
	case string(types.StatusFailure), "failed":
		return "bad"
	case string(types.StatusSkipped), "cancelled":
		return "muted"
	default:
		return "busy"
	}
}

// truncateID shortens a UUID for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func progressPct(completed, total int) int {
	if total == 0 {
		return 0
	}
	return (completed * 100) / total
}

func stageLabel(s types.Stage) string {
	return s.Label()
}

// stageResults returns a record's stage slots in display order.
func stageResults(rec *types.ScanRecord) []types.StageResult {
	if rec == nil {
		return nil
	}
	out := make([]types.StageResult, 0, len(types.AllStages))
	for _, s := range types.AllStages {
		res := rec.Get(s)
		res.Stage = s
		out = append(out, res)
	}
	return out
}

// joinTargets renders a target list, eliding the tail past max entries.
func joinTargets(targets []string, max int) string {
	if max > 0 && len(targets) > max {
		return strings.Join(targets[:max], ", ") + fmt.Sprintf(" (+%d more)", len(targets)-max)
	}
	return strings.Join(targets, ", ")
}
