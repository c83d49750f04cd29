package robots

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
)

// NotFound is reported when a web server answered but none served a robots file.
const NotFound = "robots.txt file not found!"

const maxBody = 1 << 20

type Scanner struct {
	Client *http.Client
}

func New() *Scanner {
	return &Scanner{Client: scanner.HTTPClient(10 * time.Second)}
}

func (s *Scanner) Name() types.Stage   { return types.StageRobots }
func (s *Scanner) Description() string { return "Fetch robots.txt" }

// Candidates lists robots.txt URLs in the order they are tried. Bare domain names
// also try their www. variant.
func Candidates(target string, open []types.OpenPort) []string {
	var out []string
	for _, base := range scanner.WebURLs(target, open) {
		out = append(out, base+"/robots.txt")
	}
	host := target
	if h, _, err := net.SplitHostPort(target); err == nil {
		host = h
	}
	if !strings.HasPrefix(host, "www.") && !types.IsIP(host) {
		out = append(out, "https://www."+target+"/robots.txt", "http://www."+target+"/robots.txt")
	}
	return out
}

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	var reached bool
	var lastErr error

	for _, u := range Candidates(target, opts.OpenPorts) {
		body, err := s.fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return types.Failure(s.Name(), ctx.Err().Error(), "")
			}
			lastErr = err
			opts.Log().WithField("url", u).Debugf("robots fetch failed: %v", err)
			continue
		}
		reached = true
		if strings.Contains(body, "User-agent") || strings.Contains(body, "User-Agent") {
			return types.Success(s.Name(), fmt.Sprintf("URL: %s\n\n%s", u, body))
		}
	}

	if !reached {
		return types.Failure(s.Name(), fmt.Sprintf("no reachable web server: %v", lastErr), "")
	}
	return types.Success(s.Name(), NotFound)
}

func (s *Scanner) fetch(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", scanner.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	return string(data), nil
}
