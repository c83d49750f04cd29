package lookup

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
)

// Scanner runs host(1) against the target. For www. targets the bare domain is
// looked up as well.
type Scanner struct {
	Binary   string
	Resolver *net.Resolver
}

func New() *Scanner {
	return &Scanner{Binary: "host", Resolver: net.DefaultResolver}
}

func (s *Scanner) Name() types.Stage   { return types.StageHostLookup }
func (s *Scanner) Description() string { return "DNS host lookup" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	names := []string{target}
	if bare := types.StripWWW(target); bare != target {
		names = []string{bare, target}
	}

	var parts []string
	for _, name := range names {
		out, err := s.lookup(ctx, name)
		if err != nil {
			return types.Failure(s.Name(), err.Error(), strings.Join(append(parts, out), "\n"))
		}
		parts = append(parts, out)
	}
	return types.Success(s.Name(), strings.Join(parts, "\n"))
}

func (s *Scanner) lookup(ctx context.Context, name string) (string, error) {
	if scanner.ToolAvailable(s.Binary) {
		out, err := scanner.Exec(ctx, scanner.Command{Name: s.Binary, Args: []string{name}})
		if err != nil && strings.Contains(out, "not found") {
			// host exits non-zero for NXDOMAIN; the answer itself is the result.
			return out, nil
		}
		return out, err
	}
	return s.native(ctx, name)
}

func (s *Scanner) native(ctx context.Context, name string) (string, error) {
	var b strings.Builder
	if types.IsIP(name) {
		hosts, err := s.Resolver.LookupAddr(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return fmt.Sprintf("Host %s not found: %v\n", name, err), nil
		}
		for _, h := range hosts {
			fmt.Fprintf(&b, "%s domain name pointer %s\n", name, h)
		}
		return b.String(), nil
	}

	addrs, err := s.Resolver.LookupIPAddr(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("Host %s not found: %v\n", name, err), nil
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			fmt.Fprintf(&b, "%s has address %s\n", name, a.IP)
		} else {
			fmt.Fprintf(&b, "%s has IPv6 address %s\n", name, a.IP)
		}
	}
	if mxs, err := s.Resolver.LookupMX(ctx, name); err == nil {
		for _, mx := range mxs {
			fmt.Fprintf(&b, "%s mail is handled by %d %s\n", name, mx.Pref, mx.Host)
		}
	}
	return b.String(), nil
}
