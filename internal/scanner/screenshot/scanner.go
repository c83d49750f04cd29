package screenshot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/chromedp/chromedp"
)

const (
	width  = 1500
	height = 1080
)

// CaptureFunc renders url and returns PNG bytes.
type CaptureFunc func(ctx context.Context, url string) ([]byte, error)

type Scanner struct {
	Capture     CaptureFunc
	PageTimeout time.Duration
}

func New() *Scanner {
	s := &Scanner{PageTimeout: 10 * time.Second}
	s.Capture = s.chrome
	return s
}

func (s *Scanner) Name() types.Stage   { return types.StageScreenshot }
func (s *Scanner) Description() string { return "Capture a screenshot of the landing page" }

// Candidates lists the URLs tried in order.
func Candidates(target string, open []types.OpenPort) []string {
	urls := scanner.WebURLs(target, open)
	return append(urls, "http://"+net.JoinHostPort(target, "80"))
}

// Run writes the first successful capture to <WorkDir>/screenshots/<target>.png and
// returns its path.
func (s *Scanner) Run(ctx context.Context, target string, opts scanner.Options) types.StageResult {
	var lastErr error
	for _, u := range Candidates(target, opts.OpenPorts) {
		png, err := s.Capture(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return types.Failure(s.Name(), ctx.Err().Error(), "")
			}
			lastErr = err
			opts.Log().WithField("url", u).Debugf("screenshot failed: %v", err)
			continue
		}

		path, err := opts.ArtifactPath("screenshots", scanner.FileSafe(target)+".png")
		if err != nil {
			return types.Failure(s.Name(), err.Error(), "")
		}
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return types.Failure(s.Name(), fmt.Sprintf("writing screenshot: %v", err), "")
		}
		return types.Success(s.Name(), path)
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate URLs")
	}
	return types.Failure(s.Name(), fmt.Sprintf("could not connect to %s using any protocol: %v", target, lastErr), "")
}

func (s *Scanner) chrome(ctx context.Context, url string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(width, height),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	cctx, cancelTimeout := context.WithTimeout(cctx, s.PageTimeout+5*time.Second)
	defer cancelTimeout()

	var buf []byte
	if err := chromedp.Run(cctx,
		chromedp.EmulateViewport(width, height),
		chromedp.Navigate(url),
		chromedp.Sleep(time.Second),
		chromedp.CaptureScreenshot(&buf),
	); err != nil {
		return nil, err
	}
	return buf, nil
}
