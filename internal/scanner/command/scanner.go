package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
)

// Placeholder is replaced with the target in every extra command.
const Placeholder = "{target}"

// Scanner runs one user-supplied shell command line.
type Scanner struct {
	Template string
}

func New(template string) *Scanner {
	return &Scanner{Template: template}
}

func (s *Scanner) Name() types.Stage   { return types.StageExtraCommand }
func (s *Scanner) Description() string { return "Extra command: " + s.Template }

// Expand substitutes target into the command template.
func Expand(template, target string) string {
	return strings.ReplaceAll(template, Placeholder, target)
}

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	line := Expand(s.Template, target)
	if strings.TrimSpace(line) == "" {
		return types.Failure(s.Name(), "empty command", "")
	}

	out, err := scanner.Shell(ctx, line)
	if err != nil {
		return types.Failure(s.Name(), fmt.Sprintf("Command %s failed: %v", line, err), out)
	}
	return types.Success(s.Name(), out)
}
