package ftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/jlaffaye/ftp"
)

const (
	Allowed    = "Anonymous FTP login allowed!"
	NotAllowed = "Anonymous FTP login not allowed!"
	NoService  = "No FTP service reachable."
)

// Scanner tries an anonymous FTP login.
type Scanner struct {
	Port        int
	DialTimeout time.Duration
}

func New() *Scanner {
	return &Scanner{Port: 21, DialTimeout: 10 * time.Second}
}

func (s *Scanner) Name() types.Stage   { return types.StageFTP }
func (s *Scanner) Description() string { return "Anonymous FTP login probe" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	addr := net.JoinHostPort(target, strconv.Itoa(s.Port))

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(s.DialTimeout))
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return types.Success(s.Name(), NoService)
		}
		return types.Failuref(s.Name(), "connect %s: %v", addr, err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		if isDenied(err) {
			return types.Success(s.Name(), NotAllowed)
		}
		return types.Failure(s.Name(), fmt.Sprintf("login: %v", err), NotAllowed)
	}

	var b strings.Builder
	b.WriteString(Allowed + "\n")
	if names, err := conn.NameList(""); err == nil && len(names) > 0 {
		b.WriteString("\nListing:\n")
		for _, n := range names {
			b.WriteString("  " + n + "\n")
		}
	}
	res := types.Success(s.Name(), b.String())
	res.Findings = []types.Finding{{
		Title:       "Anonymous FTP login allowed",
		Severity:    types.SeverityMedium,
		Evidence:    addr,
		Remediation: "Disable anonymous access unless the server intentionally publishes files.",
	}}
	return res
}

// isDenied reports whether the server refused the credentials (5xx reply).
func isDenied(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 500
	}
	return strings.HasPrefix(err.Error(), "530")
}
