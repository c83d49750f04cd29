package types

import (
	"fmt"
	"strings"
	"time"
)

// Speed selects the orchestrator's worker pool width.
type Speed string

const (
	SpeedFast    Speed = "fast"
	SpeedCareful Speed = "careful"
)

// ParseSpeed accepts "fast" or "careful" (case-insensitive).
func ParseSpeed(s string) (Speed, error) {
	switch Speed(strings.ToLower(strings.TrimSpace(s))) {
	case SpeedFast:
		return SpeedFast, nil
	case SpeedCareful, "":
		return SpeedCareful, nil
	default:
		return "", fmt.Errorf("unknown speed %q (want fast or careful)", s)
	}
}

// Port scan types.
const (
	ScanTypeSYN = "SYN"
	ScanTypeTCP = "TCP"
	ScanTypeUDP = "UDP"
)

// Host discovery methods.
const (
	PingICMP = "ICMP"
	PingTCP  = "TCP"
	PingARP  = "ARP"
)

// PortScanOptions configures the port scan stage.
type PortScanOptions struct {
	Ports       string `json:"ports" mapstructure:"ports"`
	ScanType    string `json:"scan_type" mapstructure:"scan_type"`
	Aggressive  bool   `json:"aggressive" mapstructure:"aggressive"`
	Timing      int    `json:"timing" mapstructure:"timing"`
	OSDetection bool   `json:"os_detection" mapstructure:"os_detection"`
	PingHosts   bool   `json:"ping_hosts" mapstructure:"ping_hosts"`
	PingMethod  string `json:"ping_method" mapstructure:"ping_method"`
	HostTimeout int    `json:"host_timeout" mapstructure:"host_timeout"`
}

// FuzzOptions configures the content and subdomain fuzzing stages.
type FuzzOptions struct {
	Enabled           bool          `json:"enabled" mapstructure:"enabled"`
	WebpageWordlist   string        `json:"webpage_wordlist" mapstructure:"webpage_wordlist"`
	SubdomainWordlist string        `json:"subdomain_wordlist" mapstructure:"subdomain_wordlist"`
	Delay             time.Duration `json:"delay" mapstructure:"delay"`
}

// ScanOptions is the per-run configuration shared by every pipeline. Treat it as
// read-only once a run starts; use Clone to derive a modified copy.
type ScanOptions struct {
	PortScan      PortScanOptions         `json:"port_scan"`
	Fuzz          FuzzOptions             `json:"fuzz"`
	EnableAdvice  bool                    `json:"enable_advice"`
	Verbose       bool                    `json:"verbose"`
	ExtraCommands []string                `json:"extra_commands,omitempty"`
	Speed         Speed                   `json:"speed"`
	Timeouts      map[Stage]time.Duration `json:"timeouts,omitempty"`
}

// DefaultTimeouts holds the per-stage budgets used when none is configured.
var DefaultTimeouts = map[Stage]time.Duration{
	StageHostLookup:      30 * time.Second,
	StagePortScan:        30 * time.Minute,
	StageSMB:             60 * time.Second,
	StageFTP:             15 * time.Second,
	StageDNSRecon:        5 * time.Minute,
	StageExploitModules:  60 * time.Second,
	StageWebContent:      30 * time.Minute,
	StageSubdomains:      30 * time.Minute,
	StageRobots:          20 * time.Second,
	StageScreenshot:      60 * time.Second,
	StageWordPress:       15 * time.Minute,
	StageSecurityHeaders: 20 * time.Second,
	StageExtraCommand:    10 * time.Minute,
}

// DefaultScanOptions returns sensible defaults.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		PortScan: PortScanOptions{ScanType: ScanTypeTCP, Timing: 4},
		Fuzz:     FuzzOptions{Enabled: true},
		Speed:    SpeedCareful,
	}
}

// TimeoutFor returns the configured timeout for stage, falling back to DefaultTimeouts.
func (o ScanOptions) TimeoutFor(stage Stage) time.Duration {
	if d, ok := o.Timeouts[stage]; ok && d > 0 {
		return d
	}
	if d, ok := DefaultTimeouts[stage]; ok {
		return d
	}
	return time.Minute
}

// Clone returns a deep copy.
func (o ScanOptions) Clone() ScanOptions {
	c := o
	if o.ExtraCommands != nil {
		c.ExtraCommands = append([]string(nil), o.ExtraCommands...)
	}
	if o.Timeouts != nil {
		c.Timeouts = make(map[Stage]time.Duration, len(o.Timeouts))
		for k, v := range o.Timeouts {
			c.Timeouts[k] = v
		}
	}
	return c
}
