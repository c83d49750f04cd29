package fuzz

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/sourcegraph/conc/pool"
)

// ContentScanner discovers paths on a web target with ffuf, or with a built-in
// prober when ffuf is not installed.
type ContentScanner struct {
	Binary      string
	Wordlists   *Resolver
	Client      *http.Client
	Concurrency int
}

// NewContent creates a content fuzzing adapter sharing the given wordlist resolver.
func NewContent(wordlists *Resolver) *ContentScanner {
	client := scanner.HTTPClient(5 * time.Second)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &ContentScanner{Binary: "ffuf", Wordlists: wordlists, Client: client, Concurrency: 20}
}

func (s *ContentScanner) Name() types.Stage   { return types.StageWebContent }
func (s *ContentScanner) Description() string { return "Web content discovery" }

func (s *ContentScanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	if !opts.Scan.Fuzz.Enabled {
		return types.Skipped(s.Name(), types.ReasonFuzzingDisabled)
	}
	wordlist, err := s.Wordlists.Resolve(ctx, Webpage, opts.Scan.Fuzz.WebpageWordlist, opts.WorkDir)
	if err != nil {
		return types.Failure(s.Name(), err.Error(), "")
	}
	base, err := scanner.FirstReachable(ctx, s.Client, scanner.WebURLs(target, opts.OpenPorts))
	if err != nil {
		return types.Failure(s.Name(), err.Error(), "")
	}

	if scanner.ToolAvailable(s.Binary) {
		args := []string{"-w", wordlist, "-u", base + "/FUZZ", "-fc", "404,500", "-noninteractive"}
		if d := opts.Scan.Fuzz.Delay; d > 0 {
			args = append(args, "-p", formatDelay(d))
		}
		out, err := scanner.Exec(ctx, scanner.Command{Name: s.Binary, Args: args})
		if err != nil {
			return types.Failure(s.Name(), err.Error(), out)
		}
		return types.Success(s.Name(), fmt.Sprintf("Using wordlist: %s:\n\n%s", wordlist, out))
	}

	paths, err := LoadWordlist(wordlist)
	if err != nil {
		return types.Failuref(s.Name(), "loading wordlist: %v", err)
	}
	findings := s.probeAll(ctx, base, paths, opts.Scan.Fuzz.Delay)
	if ctx.Err() != nil {
		return types.Failure(s.Name(), ctx.Err().Error(), renderFindings(wordlist, findings))
	}
	res := types.Success(s.Name(), renderFindings(wordlist, findings))
	res.Findings = findings
	return res
}

func (s *ContentScanner) probeAll(ctx context.Context, base string, paths []string, delay time.Duration) []types.Finding {
	workers := max(1, s.Concurrency)
	if delay > 0 {
		workers = 1
	}

	var mu sync.Mutex
	var findings []types.Finding

	p := pool.New().WithMaxGoroutines(workers)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		path := "/" + strings.TrimPrefix(path, "/")
		p.Go(func() {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			finding, ok := probe(ctx, s.Client, base, path)
			if !ok {
				return
			}
			mu.Lock()
			findings = append(findings, finding)
			mu.Unlock()
		})
	}
	p.Wait()

	sort.Slice(findings, func(i, j int) bool { return findings[i].Metadata["path"] < findings[j].Metadata["path"] })
	return findings
}

// probe requests baseURL+path and reports 200, 301, 302 and 403 responses.
func probe(ctx context.Context, client *http.Client, baseURL, path string) (types.Finding, bool) {
	url := baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.Finding{}, false
	}
	req.Header.Set("User-Agent", scanner.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return types.Finding{}, false
	}
	resp.Body.Close()

	meta := map[string]string{
		"path":        path,
		"status_code": strconv.Itoa(resp.StatusCode),
		"url":         url,
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return types.Finding{
			Title:    fmt.Sprintf("Found path: %s (200 OK)", path),
			Severity: types.SeverityInfo,
			Metadata: meta,
		}, true
	case http.StatusForbidden:
		return types.Finding{
			Title:    fmt.Sprintf("Forbidden path: %s (403)", path),
			Severity: types.SeverityLow,
			Metadata: meta,
		}, true
	case http.StatusMovedPermanently, http.StatusFound:
		meta["location"] = resp.Header.Get("Location")
		return types.Finding{
			Title:       fmt.Sprintf("Redirect path: %s (%d)", path, resp.StatusCode),
			Description: "redirects to " + meta["location"],
			Severity:    types.SeverityInfo,
			Metadata:    meta,
		}, true
	default:
		return types.Finding{}, false
	}
}

func renderFindings(wordlist string, findings []types.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Using wordlist: %s:\n\n", wordlist)
	if len(findings) == 0 {
		b.WriteString("No results.\n")
	}
	for _, f := range findings {
		line := fmt.Sprintf("%-40s [Status: %s]", f.Metadata["path"], f.Metadata["status_code"])
		if loc := f.Metadata["location"]; loc != "" {
			line += " -> " + loc
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// formatDelay renders a duration as ffuf's seconds value.
func formatDelay(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
