package pipeline

import (
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/internal/scanner/dnsrecon"
	"github.com/buemura/rook/internal/scanner/ftp"
	"github.com/buemura/rook/internal/scanner/fuzz"
	"github.com/buemura/rook/internal/scanner/headers"
	"github.com/buemura/rook/internal/scanner/lookup"
	"github.com/buemura/rook/internal/scanner/modules"
	"github.com/buemura/rook/internal/scanner/port"
	"github.com/buemura/rook/internal/scanner/robots"
	"github.com/buemura/rook/internal/scanner/screenshot"
	"github.com/buemura/rook/internal/scanner/smb"
	"github.com/buemura/rook/internal/scanner/wordpress"
)

// DefaultRegistry registers the production adapter for every record stage.
func DefaultRegistry() *scanner.Registry {
	wordlists := &fuzz.Resolver{Client: scanner.HTTPClient(2 * time.Minute)}

	reg := scanner.NewRegistry()
	reg.Register(lookup.New())
	reg.Register(port.New())
	reg.Register(smb.New())
	reg.Register(ftp.New())
	reg.Register(dnsrecon.New())
	reg.Register(modules.New())
	reg.Register(fuzz.NewContent(wordlists))
	reg.Register(fuzz.NewSubdomain(wordlists))
	reg.Register(robots.New())
	reg.Register(screenshot.New())
	reg.Register(wordpress.New())
	reg.Register(headers.New())
	return reg
}
