package wordpress

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
)

var generatorRe = regexp.MustCompile(`(?i)<meta[^>]+name=["']generator["'][^>]+content=["']WordPress\s*([0-9.]*)["']`)

// NotWordPress is the output for a web target without WordPress markers.
const NotWordPress = "Not a WordPress site"

// Scanner detects WordPress and then runs wpscan against it. Without wpscan it
// reports what the detection probe found.
type Scanner struct {
	Binary string
	Client *http.Client
}

func New() *Scanner {
	return &Scanner{Binary: "wpscan", Client: scanner.HTTPClient(15 * time.Second)}
}

func (s *Scanner) Name() types.Stage   { return types.StageWordPress }
func (s *Scanner) Description() string { return "WordPress detection and scan" }

// Detection is what the landing page and login probe revealed.
type Detection struct {
	URL       string
	Version   string
	LoginPage bool
	Markers   []string
}

func (d Detection) Found() bool { return len(d.Markers) > 0 || d.LoginPage }

func (d Detection) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "WordPress detected at %s\n", d.URL)
	if d.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", d.Version)
	}
	if len(d.Markers) > 0 {
		fmt.Fprintf(&b, "Markers: %s\n", strings.Join(d.Markers, ", "))
	}
	if d.LoginPage {
		b.WriteString("Login page: /wp-login.php\n")
	}
	return b.String()
}

func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	base, err := scanner.FirstReachable(ctx, s.Client, scanner.WebURLs(target, opts.OpenPorts))
	if err != nil {
		return types.Failure(s.Name(), err.Error(), "")
	}

	det, err := s.Detect(ctx, base)
	if err != nil {
		return types.Failure(s.Name(), err.Error(), "")
	}
	if !det.Found() {
		return types.Success(s.Name(), NotWordPress)
	}

	if !scanner.ToolAvailable(s.Binary) {
		return types.Success(s.Name(), det.String())
	}

	out, err := scanner.Exec(ctx, scanner.Command{
		Name: s.Binary,
		Args: []string{"--url", base, "--random-user-agent"},
	})
	if err != nil {
		return types.Failure(s.Name(), "wpscan failed: "+err.Error(), det.String()+"\n"+out)
	}
	return types.Success(s.Name(), out)
}

// Detect fingerprints base for WordPress.
func (s *Scanner) Detect(ctx context.Context, base string) (Detection, error) {
	det := Detection{URL: base}

	body, _, err := s.get(ctx, base+"/")
	if err != nil {
		return det, err
	}
	for _, marker := range []string{"wp-content", "wp-includes", "wp-json"} {
		if strings.Contains(body, marker) {
			det.Markers = append(det.Markers, marker)
		}
	}
	if m := generatorRe.FindStringSubmatch(body); m != nil {
		det.Version = m[1]
		if len(det.Markers) == 0 {
			det.Markers = append(det.Markers, "generator")
		}
	}

	login, status, err := s.get(ctx, base+"/wp-login.php")
	if err == nil && status == http.StatusOK && strings.Contains(login, "user_login") {
		det.LoginPage = true
	}
	return det, nil
}

func (s *Scanner) get(ctx context.Context, u string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", scanner.UserAgent)
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(data), resp.StatusCode, nil
}
