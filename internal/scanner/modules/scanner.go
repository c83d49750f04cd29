package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buemura/rook/internal/helper"
	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
)

// NoneFound is reported when no module matched any identified service.
const NoneFound = "No relevant metasploit modules found"

// Searcher looks up exploit modules by free-text query.
type Searcher interface {
	SearchModules(ctx context.Context, query string) ([]helper.Module, error)
}

// Scanner searches the running helper for modules matching the products and
// versions the port scan identified.
type Scanner struct {
	NewSearcher func(h *helper.Handle) Searcher
}

func New() *Scanner {
	return &Scanner{NewSearcher: func(h *helper.Handle) Searcher {
		return helper.NewClient(h, 30*time.Second)
	}}
}

func (s *Scanner) Name() types.Stage   { return types.StageExploitModules }
func (s *Scanner) Description() string { return "Exploit module lookup for identified services" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	if opts.Helper == nil {
		return types.Skipped(s.Name(), types.ReasonHelperDisabled)
	}

	searcher := s.NewSearcher(opts.Helper)
	seen := make(map[string]bool)
	var lines []string
	var searched int

	for _, p := range opts.OpenPorts {
		if p.Product == "" || p.Version == "" {
			continue
		}
		found, err := searcher.SearchModules(ctx, p.Product)
		if err != nil {
			return types.Failure(s.Name(), fmt.Sprintf("searching %q: %v", p.Product, err), strings.Join(lines, "\n"))
		}
		searched++
		for _, m := range helper.FilterByVersion(found, p.Version) {
			if seen[m.FullName] {
				continue
			}
			seen[m.FullName] = true
			lines = append(lines, FormatModule(m))
		}
	}

	opts.Log().WithField("queries", searched).Debugf("module search found %d modules", len(lines))
	if len(lines) == 0 {
		return types.Success(s.Name(), NoneFound)
	}
	return types.Success(s.Name(), strings.Join(lines, "\n"))
}

// FormatModule joins a module's non-empty fields with spaces.
func FormatModule(m helper.Module) string {
	var parts []string
	for _, v := range []string{m.Type, m.FullName, m.Name, m.Rank, m.DisclosureDate} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
