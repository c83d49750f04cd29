package port

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/sourcegraph/conc/pool"
)

// Scanner runs nmap and falls back to a TCP connect scan when nmap is unavailable.
type Scanner struct {
	Binary      string
	DialTimeout time.Duration
	Concurrency int
}

func New() *Scanner {
	return &Scanner{Binary: "nmap", DialTimeout: 3 * time.Second, Concurrency: 50}
}

func (s *Scanner) Name() types.Stage   { return types.StagePortScan }
func (s *Scanner) Description() string { return "nmap port and service scan" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	if !scanner.ToolAvailable(s.Binary) {
		opts.Log().WithField("target", target).Debug("nmap not found, using connect scan")
		return s.connectScan(ctx, target, opts)
	}

	xmlPath, err := opts.ArtifactPath("nmap", "nmap-"+scanner.FileSafe(target)+".xml")
	if err != nil {
		return types.Failure(s.Name(), err.Error(), "")
	}
	args, err := BuildArgs(opts.Scan.PortScan, target, xmlPath)
	if err != nil {
		return types.Failuref(s.Name(), "invalid port scan options: %v", err)
	}

	out, err := scanner.Exec(ctx, scanner.Command{Name: s.Binary, Args: args})
	if err != nil {
		return types.Failure(s.Name(), err.Error(), out)
	}

	ports, err := ParseXMLFile(xmlPath)
	if err != nil {
		return types.Failuref(s.Name(), "unparsable port scan output: %v", err)
	}
	res := types.Success(s.Name(), out)
	res.Ports = ports
	return res
}

func (s *Scanner) connectScan(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	ports, err := ParsePortRange(opts.Scan.PortScan.Ports)
	if err != nil {
		return types.Failuref(s.Name(), "invalid port spec: %v", err)
	}

	var mu sync.Mutex
	var open []types.OpenPort

	p := pool.New().WithMaxGoroutines(max(1, s.Concurrency))
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		port := port
		p.Go(func() {
			d := net.Dialer{Timeout: s.DialTimeout}
			conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(target, strconv.Itoa(port)))
			if err != nil {
				return
			}
			conn.Close()

			mu.Lock()
			open = append(open, types.OpenPort{Port: port, Protocol: "tcp", Service: IdentifyService(port)})
			mu.Unlock()
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return types.Failure(s.Name(), err.Error(), FormatPorts(target, open))
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
	res := types.Success(s.Name(), FormatPorts(target, open))
	res.Ports = open
	return res
}

// FormatPorts renders open ports in nmap's tabular style.
func FormatPorts(target string, open []types.OpenPort) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Connect scan report for %s\n", target)
	if len(open) == 0 {
		b.WriteString("No open ports found.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%-10s %-6s %s\n", "PORT", "STATE", "SERVICE")
	for _, p := range open {
		svc := p.Service
		if p.Product != "" {
			svc = strings.TrimSpace(svc + " " + p.Product + " " + p.Version)
		}
		fmt.Fprintf(&b, "%-10s %-6s %s\n", fmt.Sprintf("%d/%s", p.Port, p.Protocol), "open", svc)
	}
	return b.String()
}
