package smb

import (
	"context"
	"fmt"
	"strings"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/stacktitan/smb/smb"
)

// NoShares is reported when smbclient lists nothing.
const NoShares = "No smb shares found!"

// Scanner lists SMB shares with smbclient. Without smbclient it only checks
// whether the server accepts a guest session.
type Scanner struct {
	Binary string
	Port   int

	// newSession is replaceable in tests.
	newSession func(opt smb.Options) (authenticated bool, err error)
}

func New() *Scanner {
	return &Scanner{Binary: "smbclient", Port: 445, newSession: guestSession}
}

func (s *Scanner) Name() types.Stage   { return types.StageSMB }
func (s *Scanner) Description() string { return "SMB share enumeration" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	if scanner.ToolAvailable(s.Binary) {
		// smbclient prompts for a password; an empty line requests a null session.
		out, err := scanner.Exec(ctx, scanner.Command{Name: s.Binary, Args: []string{"-L", target}, Stdin: "\n"})
		if err != nil {
			return types.Failure(s.Name(), err.Error(), out)
		}
		if strings.TrimSpace(out) == "" {
			out = NoShares
		}
		return types.Success(s.Name(), out)
	}
	return s.probeGuest(ctx, target)
}

func (s *Scanner) probeGuest(ctx context.Context, target string) types.StageResult {
	type result struct {
		ok  bool
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ok, err := s.newSession(smb.Options{
			Host:        target,
			Port:        s.Port,
			User:        "guest",
			Password:    "guest",
			Domain:      "",
			Workstation: "",
		})
		ch <- result{ok, err}
	}()

	select {
	case <-ctx.Done():
		return types.Failure(s.Name(), ctx.Err().Error(), "")
	case r := <-ch:
		addr := fmt.Sprintf("%s:%d", target, s.Port)
		switch {
		case r.err != nil && isConnectionError(r.err):
			return types.Failure(s.Name(), fmt.Sprintf("connect %s: %v", addr, r.err), "")
		case r.ok:
			return types.Success(s.Name(), fmt.Sprintf("SMB guest session accepted on %s; shares may be readable.", addr))
		default:
			return types.Success(s.Name(), fmt.Sprintf("SMB guest session rejected on %s.", addr))
		}
	}
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "EOF")
}

func guestSession(opt smb.Options) (bool, error) {
	session, err := smb.NewSession(opt, false)
	if err != nil {
		return false, err
	}
	defer session.Close()
	return session.IsAuthenticated, nil
}
