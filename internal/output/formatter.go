package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/buemura/rook/pkg/types"
)

// Formatter renders scan records to a writer.
type Formatter interface {
	Format(w io.Writer, records []*types.ScanRecord) error
}

// GetFormatter returns the appropriate formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	case "html":
		return &HTMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, markdown, html)", format)
	}
}

// stageRow is one line of a record summary.
type stageRow struct {
	Label  string
	Status types.Status
	Text   string
}

func rows(rec *types.ScanRecord) []stageRow {
	out := make([]stageRow, 0, len(types.AllStages)+len(rec.ExtraCommands))
	for _, stage := range types.AllStages {
		res := rec.Get(stage)
		out = append(out, stageRow{Label: stage.Label(), Status: res.Status, Text: res.Display()})
	}
	for _, cmd := range rec.ExtraCommands {
		out = append(out, stageRow{Label: cmd.Command, Status: cmd.Result.Status, Text: cmd.Result.Display()})
	}
	return out
}

// findings gathers every finding of rec, most severe first.
func findings(rec *types.ScanRecord) []types.Finding {
	var out []types.Finding
	for _, stage := range types.AllStages {
		out = append(out, rec.Get(stage).Findings...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return types.SeverityRank(out[i].Severity) < types.SeverityRank(out[j].Severity)
	})
	return out
}

func severityCounts(fs []types.Finding) map[types.Severity]int {
	counts := map[types.Severity]int{}
	for _, f := range fs {
		counts[f.Severity]++
	}
	return counts
}

func formatSummary(counts map[types.Severity]int) string {
	total := 0
	for _, c := range counts {
		total += c
	}
	return fmt.Sprintf("%d findings (%d critical, %d high, %d medium, %d low, %d info)",
		total,
		counts[types.SeverityCritical],
		counts[types.SeverityHigh],
		counts[types.SeverityMedium],
		counts[types.SeverityLow],
		counts[types.SeverityInfo],
	)
}

// firstLine returns the first non-empty line of s, cut to max runes.
func firstLine(s string, max int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > max {
			return string(r[:max-1]) + "…"
		}
		return line
	}
	return ""
}
