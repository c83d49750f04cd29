package types

import (
	"fmt"
	"time"
)

// Stage names one tool invocation in a target's pipeline.
type Stage string

const (
	StageHostLookup      Stage = "host_lookup"
	StagePortScan        Stage = "port_scan"
	StageSMB             Stage = "smb"
	StageFTP             Stage = "ftp"
	StageDNSRecon        Stage = "dns_recon"
	StageExploitModules  Stage = "exploit_modules"
	StageWebContent      Stage = "web_content"
	StageSubdomains      Stage = "subdomains"
	StageRobots          Stage = "robots"
	StageScreenshot      Stage = "screenshot"
	StageWordPress       Stage = "wordpress"
	StageSecurityHeaders Stage = "security_headers"
	StageExtraCommand    Stage = "extra_command"
)

// GroupA stages run unconditionally and concurrently.
var GroupA = []Stage{StageHostLookup, StagePortScan, StageSMB, StageFTP, StageDNSRecon}

// GroupB stages run only for web-capable targets.
var GroupB = []Stage{StageWebContent, StageSubdomains, StageRobots, StageScreenshot, StageWordPress, StageSecurityHeaders}

// AllStages lists every record slot in display order.
var AllStages = []Stage{
	StageHostLookup, StagePortScan, StageSMB, StageFTP, StageDNSRecon, StageExploitModules,
	StageWebContent, StageSubdomains, StageRobots, StageScreenshot, StageWordPress, StageSecurityHeaders,
}

// Label returns a human readable stage title.
func (s Stage) Label() string {
	switch s {
	case StageHostLookup:
		return "Host Lookup"
	case StagePortScan:
		return "Port Scan"
	case StageSMB:
		return "SMB Shares"
	case StageFTP:
		return "Anonymous FTP"
	case StageDNSRecon:
		return "DNS Recon"
	case StageExploitModules:
		return "Exploit Modules"
	case StageWebContent:
		return "Web Content"
	case StageSubdomains:
		return "Subdomains"
	case StageRobots:
		return "robots.txt"
	case StageScreenshot:
		return "Screenshot"
	case StageWordPress:
		return "WordPress"
	case StageSecurityHeaders:
		return "Security Headers"
	case StageExtraCommand:
		return "Extra Command"
	default:
		return string(s)
	}
}

// Status is the variant tag of a StageResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Well-known reasons.
const (
	ReasonNotWebpage      = "not a webpage"
	ReasonTimeout         = "timeout"
	ReasonCancelled       = "cancelled"
	ReasonFuzzingDisabled = "fuzzing disabled"
	ReasonHelperDisabled  = "helper disabled"
)

// OpenPort is one open port reported by the port scan.
type OpenPort struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Service  string `json:"service,omitempty"`
	Product  string `json:"product,omitempty"`
	Version  string `json:"version,omitempty"`
}

// StageResult is the outcome of one adapter invocation: Success, Failure or Skipped.
type StageResult struct {
	Stage       Stage      `json:"stage"`
	Status      Status     `json:"status"`
	Output      string     `json:"output,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Findings    []Finding  `json:"findings,omitempty"`
	Ports       []OpenPort `json:"ports,omitempty"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// Success builds a successful result carrying the tool output.
func Success(stage Stage, output string) StageResult {
	return StageResult{Stage: stage, Status: StatusSuccess, Output: output}
}

// Failure builds a failed result. partial holds whatever output was captured before the failure.
func Failure(stage Stage, reason, partial string) StageResult {
	return StageResult{Stage: stage, Status: StatusFailure, Reason: reason, Output: partial}
}

// Failuref builds a failed result from a formatted reason.
func Failuref(stage Stage, format string, args ...interface{}) StageResult {
	return Failure(stage, fmt.Sprintf(format, args...), "")
}

// Skipped builds a result for a stage that was not attempted.
func Skipped(stage Stage, reason string) StageResult {
	return StageResult{Stage: stage, Status: StatusSkipped, Reason: reason}
}

func (r StageResult) IsSuccess() bool { return r.Status == StatusSuccess }
func (r StageResult) IsFailure() bool { return r.Status == StatusFailure }
func (r StageResult) IsSkipped() bool { return r.Status == StatusSkipped }

// IsZero reports whether the result was never set.
func (r StageResult) IsZero() bool { return r.Status == "" }

// Duration returns the wall-clock time the stage took.
func (r StageResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Display renders the value shown in the stage's slot. Failures and skips are
// rendered in place of the output so consumers never see an empty slot.
func (r StageResult) Display() string {
	switch r.Status {
	case StatusSuccess:
		return r.Output
	case StatusFailure:
		return "stage failed: " + r.Reason
	case StatusSkipped:
		return "skipped: " + r.Reason
	default:
		return "stage failed: no result"
	}
}

// Stamp records the start and completion times.
func (r StageResult) Stamp(started, completed time.Time) StageResult {
	r.StartedAt = started
	r.CompletedAt = completed
	return r
}
