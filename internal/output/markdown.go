package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/buemura/rook/pkg/types"
)

// MarkdownFormatter renders records as Markdown suitable for pasting into
// docs, issues, or pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, records []*types.ScanRecord) error {
	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "## %s\n\n", rec.Target)
		fmt.Fprintf(w, "- Web target: %t\n- Scanned at: %s\n\n", rec.IsWebTarget, rec.ScannedAt.Format("2006-01-02 15:04:05"))

		fmt.Fprintln(w, "| Stage | Status | Result |")
		fmt.Fprintln(w, "|-------|--------|--------|")
		all := rows(rec)
		for _, row := range all {
			fmt.Fprintf(w, "| %s | %s | %s |\n", escapeMarkdown(row.Label), statusBadge(row.Status), escapeMarkdown(firstLine(row.Text, 100)))
		}

		if fs := findings(rec); len(fs) > 0 {
			fmt.Fprintln(w, "\n| Severity | Title | Description |")
			fmt.Fprintln(w, "|----------|-------|-------------|")
			for _, finding := range fs {
				fmt.Fprintf(w, "| %s | %s | %s |\n", severityBadge(finding.Severity), escapeMarkdown(finding.Title), escapeMarkdown(finding.Description))
			}
			fmt.Fprintf(w, "\n**Summary:** %s\n", formatSummary(severityCounts(fs)))
		}

		for _, row := range all {
			if row.Status != types.StatusSuccess || strings.TrimSpace(row.Text) == "" {
				continue
			}
			fmt.Fprintf(w, "\n### %s\n\n```\n%s\n```\n", row.Label, strings.TrimRight(row.Text, "\n"))
		}

		fmt.Fprintf(w, "\n### Advice\n\n%s\n", rec.Advice)
	}

	return nil
}

func statusBadge(s types.Status) string {
	return fmt.Sprintf("**%s**", strings.ToUpper(string(s)))
}

// severityBadge returns a bold severity label for Markdown.
func severityBadge(s types.Severity) string {
	return fmt.Sprintf("**%s**", string(s))
}

// escapeMarkdown escapes pipe characters that would break Markdown tables.
func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
