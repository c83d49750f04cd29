package headers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
)

// Scanner reports which security headers a target's web server sends.
type Scanner struct {
	Client *http.Client
}

// New creates a new headers scanner.
func New() *Scanner {
	return &Scanner{Client: scanner.HTTPClient(10 * time.Second)}
}

func (s *Scanner) Name() types.Stage   { return types.StageSecurityHeaders }
func (s *Scanner) Description() string { return "HTTP security header analysis" }

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	var lastErr error
	for _, base := range scanner.WebURLs(target, opts.OpenPorts) {
		resp, err := s.fetch(ctx, base)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		resp.Body.Close()
		return analyze(s.Name(), base, resp)
	}
	return types.Failuref(s.Name(), "no HTTP response: %v", lastErr)
}

func (s *Scanner) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", scanner.UserAgent)
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	return resp, nil
}

func analyze(stage types.Stage, url string, resp *http.Response) types.StageResult {
	isHTTPS := strings.HasPrefix(url, "https://")

	var findings []types.Finding
	for _, rule := range Rules() {
		if f := rule.Check(resp.Header, isHTTPS); f != nil {
			f.Metadata = map[string]string{"header": rule.Name, "url": url}
			findings = append(findings, *f)
		}
	}
	findings = append(findings, CheckCookies(resp, isHTTPS)...)

	output := Render(url, resp.Header)
	if resp.TLS != nil {
		findings = append(findings, CheckTLS(resp.TLS, resp.Request.URL.Hostname(), time.Now())...)
		output = TLSSummary(resp.TLS) + "\n" + output
	}

	res := types.Success(stage, output)
	res.Findings = findings
	return res
}

// Render lists present security headers as "Header: value" lines, followed by a
// blank line and the missing ones with empty values.
func Render(url string, h http.Header) string {
	var present, missing strings.Builder
	for _, rule := range Rules() {
		if v := h.Get(rule.Name); v != "" {
			fmt.Fprintf(&present, "%s: %s\n", rule.Name, v)
		} else {
			fmt.Fprintf(&missing, "%s: \n", rule.Name)
		}
	}
	for _, c := range h.Values("Set-Cookie") {
		fmt.Fprintf(&present, "Set-Cookie: %s\n", c)
	}
	return fmt.Sprintf("URL: %s\n%s\n%s", url, present.String(), missing.String())
}
