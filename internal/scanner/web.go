package scanner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/buemura/rook/pkg/types"
)

// WebPorts are the ports that make a target web-capable.
var WebPorts = map[int]string{80: "http", 443: "https", 8080: "http", 8443: "https"}

// WebURLs returns base URLs to try for target, most likely first. Open web ports
// from the port scan take precedence; https and http on default ports are always
// included as a fallback.
func WebURLs(target string, open []types.OpenPort) []string {
	host := target
	if _, _, err := net.SplitHostPort(target); err != nil && types.IsIP(target) && !isIPv4(target) {
		host = "[" + target + "]"
	}

	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, want := range []int{443, 8443, 80, 8080} {
		for _, p := range open {
			if p.Port != want || p.Protocol == "udp" {
				continue
			}
			scheme := WebPorts[want]
			if want == 443 || want == 80 {
				add(scheme + "://" + host)
			} else {
				add(scheme + "://" + host + ":" + strconv.Itoa(want))
			}
		}
	}
	add("https://" + host)
	add("http://" + host)
	return urls
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// HTTPClient returns a client for probing targets. Certificate errors are ignored
// since recon targets often serve self-signed certificates.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		},
	}
}

// UserAgent is sent by every HTTP probe.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64) rook"

// FirstReachable returns the first base URL that answers an HTTP request at all.
func FirstReachable(ctx context.Context, client *http.Client, urls []string) (string, error) {
	var lastErr error
	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"/", nil)
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("User-Agent", UserAgent)
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		resp.Body.Close()
		return u, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate URLs")
	}
	return "", fmt.Errorf("no reachable web server: %w", lastErr)
}
