package fuzz

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed webpage_wordlist.txt
var defaultWebpageWordlist string

//go:embed subdomain_wordlist.txt
var defaultSubdomainWordlist string

// Kind selects which wordlist a stage needs.
type Kind int

const (
	Webpage Kind = iota
	Subdomain
)

// Public lists fetched when no wordlist is configured.
var (
	WebpageWordlistURL   = "https://raw.githubusercontent.com/emadshanab/WordLists-20111129/master/Directories_Common.wordlist"
	SubdomainWordlistURL = "https://raw.githubusercontent.com/DNSPod/oh-my-free-data/master/src/dnspod-top2000-sub-domains.txt"
)

func (k Kind) fileName() string {
	if k == Subdomain {
		return "dnspod-top2000-sub-domains.txt"
	}
	return "Directories_Common.wordlist"
}

func (k Kind) url() string {
	if k == Subdomain {
		return SubdomainWordlistURL
	}
	return WebpageWordlistURL
}

func (k Kind) embedded() string {
	if k == Subdomain {
		return defaultSubdomainWordlist
	}
	return defaultWebpageWordlist
}

// Resolver finds a wordlist file on disk, downloading or materializing the
// embedded default into the work directory when necessary. Concurrent pipelines
// share one download.
type Resolver struct {
	Client *http.Client
	mu     sync.Mutex
}

// Resolve returns a path to a readable wordlist of kind.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, configured, workDir string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("wordlist %s: %w", configured, err)
		}
		return configured, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(workDir, "wordlists")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, kind.fileName())
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	if err := r.download(ctx, kind.url(), path); err == nil {
		return path, nil
	}

	fallback := filepath.Join(dir, "default-"+kind.fileName())
	if err := os.WriteFile(fallback, []byte(kind.embedded()), 0o644); err != nil {
		return "", err
	}
	return fallback, nil
}

func (r *Resolver) download(ctx context.Context, url, dest string) error {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

// LoadWordlist loads entries from path.
func LoadWordlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseLines(string(data)), nil
}

// parseLines splits text into non-empty, trimmed lines, skipping comments.
func parseLines(text string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
