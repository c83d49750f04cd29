package dnsrecon

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/miekg/dns"
)

// Scanner runs dnsrecon against the bare domain. Without dnsrecon it performs a
// standard record enumeration and zone transfer attempt natively.
type Scanner struct {
	Binary  string
	Server  string
	Timeout time.Duration
}

func New() *Scanner {
	return &Scanner{Binary: "dnsrecon", Server: systemResolver(), Timeout: 5 * time.Second}
}

func systemResolver() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return "8.8.8.8:53"
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

func (s *Scanner) Name() types.Stage   { return types.StageDNSRecon }
func (s *Scanner) Description() string { return "DNS reconnaissance" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	domain := types.StripWWW(target)

	if scanner.ToolAvailable(s.Binary) {
		args := []string{"-d", domain}
		if types.IsIP(domain) {
			args = []string{"-r", domain + "/32"}
		}
		out, err := scanner.Exec(ctx, scanner.Command{Name: s.Binary, Args: args})
		if err != nil {
			return types.Failure(s.Name(), err.Error(), out)
		}
		return types.Success(s.Name(), out)
	}

	out, err := s.native(ctx, domain)
	if err != nil {
		return types.Failure(s.Name(), err.Error(), out)
	}
	return types.Success(s.Name(), out)
}

var recordTypes = []uint16{dns.TypeSOA, dns.TypeNS, dns.TypeMX, dns.TypeA, dns.TypeAAAA, dns.TypeTXT}

func (s *Scanner) native(ctx context.Context, domain string) (string, error) {
	client := &dns.Client{Timeout: s.Timeout}
	var b strings.Builder

	if types.IsIP(domain) {
		rev, err := dns.ReverseAddr(domain)
		if err != nil {
			return "", err
		}
		answers, err := s.query(ctx, client, rev, dns.TypePTR)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "[*] Reverse lookup of %s\n", domain)
		writeRecords(&b, answers)
		return b.String(), nil
	}

	fmt.Fprintf(&b, "[*] Performing General Enumeration against: %s\n", domain)
	var nameservers []string
	var answered bool
	for _, qt := range recordTypes {
		answers, err := s.query(ctx, client, dns.Fqdn(domain), qt)
		if err != nil {
			if ctx.Err() != nil {
				return b.String(), ctx.Err()
			}
			fmt.Fprintf(&b, "[-] %s query failed: %v\n", dns.TypeToString[qt], err)
			continue
		}
		answered = true
		writeRecords(&b, answers)
		for _, rr := range answers {
			if ns, ok := rr.(*dns.NS); ok {
				nameservers = append(nameservers, strings.TrimSuffix(ns.Ns, "."))
			}
		}
	}
	if !answered {
		return b.String(), fmt.Errorf("no DNS answers from %s", s.Server)
	}

	sort.Strings(nameservers)
	for _, ns := range nameservers {
		if ctx.Err() != nil {
			return b.String(), ctx.Err()
		}
		n, err := s.axfr(domain, net.JoinHostPort(ns, "53"))
		if err != nil {
			fmt.Fprintf(&b, "[-] Zone transfer failed for %s\n", ns)
			continue
		}
		fmt.Fprintf(&b, "[+] Zone transfer successful from %s: %d records\n", ns, n)
	}
	return b.String(), nil
}

func (s *Scanner) query(ctx context.Context, client *dns.Client, name string, qtype uint16) ([]dns.RR, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, m, s.Server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}
	return resp.Answer, nil
}

func (s *Scanner) axfr(domain, server string) (int, error) {
	t := &dns.Transfer{DialTimeout: s.Timeout, ReadTimeout: 3 * s.Timeout}
	m := new(dns.Msg)
	m.SetAxfr(dns.Fqdn(domain))

	ch, err := t.In(m, server)
	if err != nil {
		return 0, err
	}
	count := 0
	for env := range ch {
		if env.Error != nil {
			return count, env.Error
		}
		count += len(env.RR)
	}
	return count, nil
}

func writeRecords(b *strings.Builder, answers []dns.RR) {
	for _, rr := range answers {
		h := rr.Header()
		value := strings.TrimPrefix(rr.String(), h.String())
		fmt.Fprintf(b, "[*] \t %s %s %s\n", dns.TypeToString[h.Rrtype], strings.TrimSuffix(h.Name, "."), strings.TrimSpace(value))
	}
}
