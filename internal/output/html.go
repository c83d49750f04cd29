package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/buemura/rook/pkg/types"
)

// HTMLFormatter renders records as a self-contained HTML report with a
// collapsible section per stage.
type HTMLFormatter struct{}

func (f *HTMLFormatter) Format(w io.Writer, records []*types.ScanRecord) error {
	data := templateData{Generated: time.Now()}
	for _, rec := range records {
		fs := findings(rec)
		data.Records = append(data.Records, recordView{
			Record:   rec,
			Rows:     rows(rec),
			Findings: fs,
			Failed:   len(rec.FailedStages()),
		})
		data.Findings = append(data.Findings, fs...)
	}
	return htmlTpl.Execute(w, data)
}

type recordView struct {
	Record   *types.ScanRecord
	Rows     []stageRow
	Findings []types.Finding
	Failed   int
}

type templateData struct {
	Generated time.Time
	Records   []recordView
	Findings  []types.Finding
}

// severityClass maps a Severity to a CSS class name.
func severityClass(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return "critical"
	case types.SeverityHigh:
		return "high"
	case types.SeverityMedium:
		return "medium"
	case types.SeverityLow:
		return "low"
	default:
		return "info"
	}
}

var funcMap = template.FuncMap{
	"severityClass": severityClass,
	"countSeverity": func(fs []types.Finding, sev string) int {
		return severityCounts(fs)[types.Severity(sev)]
	},
	"statusClass": func(s types.Status) string { return string(s) },
	"formatTime":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}

var htmlTpl = template.Must(template.New("report").Funcs(funcMap).Parse(fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Rook Scan Report</title>
<style>%s</style>
</head>
<body>
<div class="container">
  <h1>Rook Scan Report</h1>
  <p class="meta">Generated {{formatTime .Generated}} &middot; {{len .Records}} targets</p>

  <div class="summary-bar">
    <span class="badge critical">{{countSeverity .Findings "CRITICAL"}} Critical</span>
    <span class="badge high">{{countSeverity .Findings "HIGH"}} High</span>
    <span class="badge medium">{{countSeverity .Findings "MEDIUM"}} Medium</span>
    <span class="badge low">{{countSeverity .Findings "LOW"}} Low</span>
    <span class="badge info">{{countSeverity .Findings "INFO"}} Info</span>
    <span class="total">{{len .Findings}} total findings</span>
  </div>

  {{range .Records}}
  <section class="target-section">
    <h2>{{.Record.Target}}</h2>
    <p class="meta">
      {{if .Record.IsWebTarget}}web target{{else}}non-web target{{end}}
      &middot; scanned {{formatTime .Record.ScannedAt}}
      &middot; {{.Failed}} failed stages
    </p>

    {{range .Rows}}
    <details class="stage">
      <summary><span class="status {{statusClass .Status}}">{{.Status}}</span> {{.Label}}</summary>
      <pre>{{.Text}}</pre>
    </details>
    {{end}}

    {{if .Findings}}
    <table>
      <thead>
        <tr><th>Severity</th><th>Title</th><th>Description</th></tr>
      </thead>
      <tbody>
        {{range .Findings}}
        <tr>
          <td><span class="badge {{severityClass .Severity}}">{{.Severity}}</span></td>
          <td>{{.Title}}</td>
          <td>
            {{.Description}}
            {{if or .Evidence .Remediation}}
            <details>
              <summary>Details</summary>
              {{if .Evidence}}<p><strong>Evidence:</strong> {{.Evidence}}</p>{{end}}
              {{if .Remediation}}<p><strong>Remediation:</strong> {{.Remediation}}</p>{{end}}
            </details>
            {{end}}
          </td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}

    <h3>Advice</h3>
    <pre class="advice">{{.Record.Advice}}</pre>
  </section>
  {{else}}
  <p class="empty">No records.</p>
  {{end}}
</div>
</body>
</html>`, cssStyles)))

const cssStyles = `
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;
     line-height:1.6;color:#1a1a2e;background:#f5f5fa;padding:2rem}
.container{max-width:1080px;margin:0 auto}
h1{margin-bottom:.25rem;font-size:1.8rem}
h2{margin:1.5rem 0 .25rem;font-size:1.3rem;border-bottom:2px solid #e0e0e0;padding-bottom:.3rem}
h3{margin:1rem 0 .5rem;font-size:1.05rem}
.meta{color:#666;font-size:.9rem;margin-bottom:1rem}
.summary-bar{display:flex;gap:.5rem;flex-wrap:wrap;align-items:center;margin-bottom:1.5rem}
.total{margin-left:.5rem;font-weight:600}
.badge{display:inline-block;padding:2px 10px;border-radius:12px;font-size:.8rem;font-weight:700;color:#fff;text-transform:uppercase}
.badge.critical{background:#d32f2f}
.badge.high{background:#e53935}
.badge.medium{background:#f9a825;color:#333}
.badge.low{background:#0288d1}
.badge.info{background:#757575}
.status{display:inline-block;min-width:5.5rem;font-size:.75rem;font-weight:700;text-transform:uppercase}
.status.success{color:#2e7d32}
.status.failure{color:#c62828}
.status.skipped{color:#9e9e9e}
details.stage{background:#fff;border:1px solid #e0e0e0;border-radius:6px;margin-bottom:.4rem;padding:.4rem .75rem}
summary{cursor:pointer}
pre{white-space:pre-wrap;word-break:break-word;font-size:.85rem;background:#fafafa;padding:.5rem;margin-top:.4rem}
table{width:100%;border-collapse:collapse;margin:1rem 0}
th,td{text-align:left;padding:.5rem .75rem;border-bottom:1px solid #e0e0e0}
th{background:#eaeaea;font-weight:600}
.empty{color:#666;font-style:italic}
.target-section{margin-bottom:2rem}
`
