package fuzz

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/sourcegraph/conc/pool"
)

// SubdomainScanner enumerates virtual hosts with ffuf, or resolves candidate
// names directly when ffuf is not installed.
type SubdomainScanner struct {
	Binary      string
	Wordlists   *Resolver
	Resolver    *net.Resolver
	Concurrency int
}

// NewSubdomain creates a subdomain fuzzing adapter sharing the given wordlist resolver.
func NewSubdomain(wordlists *Resolver) *SubdomainScanner {
	return &SubdomainScanner{Binary: "ffuf", Wordlists: wordlists, Resolver: net.DefaultResolver, Concurrency: 20}
}

func (s *SubdomainScanner) Name() types.Stage   { return types.StageSubdomains }
func (s *SubdomainScanner) Description() string { return "Subdomain enumeration" }

func (s *SubdomainScanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	if !opts.Scan.Fuzz.Enabled {
		return types.Skipped(s.Name(), types.ReasonFuzzingDisabled)
	}
	domain := types.StripWWW(target)
	if types.IsIP(domain) {
		return types.Skipped(s.Name(), "target is an IP address")
	}

	wordlist, err := s.Wordlists.Resolve(ctx, Subdomain, opts.Scan.Fuzz.SubdomainWordlist, opts.WorkDir)
	if err != nil {
		return types.Failure(s.Name(), err.Error(), "")
	}

	if scanner.ToolAvailable(s.Binary) {
		args := []string{
			"-w", wordlist,
			"-u", "https://FUZZ." + domain,
			"-H", "Host: FUZZ." + domain,
			"-noninteractive",
		}
		if d := opts.Scan.Fuzz.Delay; d > 0 {
			args = append(args, "-p", formatDelay(d))
		}
		out, err := scanner.Exec(ctx, scanner.Command{Name: s.Binary, Args: args})
		if err != nil {
			return types.Failure(s.Name(), err.Error(), out)
		}
		return types.Success(s.Name(), fmt.Sprintf("Using wordlist: %s:\n\n%s", wordlist, out))
	}

	words, err := LoadWordlist(wordlist)
	if err != nil {
		return types.Failuref(s.Name(), "loading wordlist: %v", err)
	}
	found := s.resolveAll(ctx, domain, words, opts.Scan.Fuzz.Delay)
	if ctx.Err() != nil {
		return types.Failure(s.Name(), ctx.Err().Error(), strings.Join(found, "\n"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Using wordlist: %s:\n\n", wordlist)
	if len(found) == 0 {
		b.WriteString("No subdomains resolved.\n")
	}
	for _, name := range found {
		b.WriteString(name + "\n")
	}
	return types.Success(s.Name(), b.String())
}

func (s *SubdomainScanner) resolveAll(ctx context.Context, domain string, words []string, delay time.Duration) []string {
	workers := max(1, s.Concurrency)
	if delay > 0 {
		workers = 1
	}

	var mu sync.Mutex
	var found []string

	p := pool.New().WithMaxGoroutines(workers)
	for _, w := range words {
		if ctx.Err() != nil {
			break
		}
		name := strings.Trim(w, ".") + "." + domain
		p.Go(func() {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			addrs, err := s.Resolver.LookupHost(ctx, name)
			if err != nil || len(addrs) == 0 {
				return
			}
			mu.Lock()
			found = append(found, fmt.Sprintf("%s [%s]", name, strings.Join(addrs, ", ")))
			mu.Unlock()
		})
	}
	p.Wait()
	sort.Strings(found)
	return found
}
