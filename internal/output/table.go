package output

import (
	"fmt"
	"io"
	"time"

	"github.com/buemura/rook/pkg/types"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders records as colored terminal tables.
type TableFormatter struct{}

func (f *TableFormatter) Format(w io.Writer, records []*types.ScanRecord) error {
	for _, rec := range records {
		kind := "non-web"
		if rec.IsWebTarget {
			kind = "web"
		}
		fmt.Fprintf(w, "\n[%s] %s target, %d failed stages, %s\n",
			rec.Target, kind, len(rec.FailedStages()), rec.Elapsed.Round(time.Millisecond))

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Stage", "Status", "Result"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetColumnSeparator("│")
		for _, row := range rows(rec) {
			table.Append([]string{row.Label, colorStatus(row.Status), firstLine(row.Text, 80)})
		}
		table.Render()

		if fs := findings(rec); len(fs) > 0 {
			ft := tablewriter.NewWriter(w)
			ft.SetHeader([]string{"Severity", "Title", "Description"})
			ft.SetAutoWrapText(false)
			ft.SetBorder(false)
			ft.SetColumnSeparator("│")
			for _, finding := range fs {
				ft.Append([]string{colorSeverity(finding.Severity), finding.Title, finding.Description})
			}
			ft.Render()
			fmt.Fprintf(w, "  Summary: %s\n", formatSummary(severityCounts(fs)))
		}

		fmt.Fprintf(w, "  Advice: %s\n", rec.Advice)
	}

	return nil
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusSuccess:
		return color.GreenString("OK")
	case types.StatusFailure:
		return color.RedString("FAILED")
	case types.StatusSkipped:
		return color.YellowString("SKIPPED")
	default:
		return string(s)
	}
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return color.RedString("CRITICAL")
	case types.SeverityHigh:
		return color.RedString("HIGH")
	case types.SeverityMedium:
		return color.YellowString("MEDIUM")
	case types.SeverityLow:
		return color.CyanString("LOW")
	case types.SeverityInfo:
		return color.WhiteString("INFO")
	default:
		return string(s)
	}
}
