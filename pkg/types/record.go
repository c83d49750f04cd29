package types

import (
	"fmt"
	"time"
)

// Advice sentinels.
const (
	AdviceDisabled    = "advice disabled"
	AdviceUnavailable = "advice unavailable"
)

// CommandOutput is the result of one user-defined extra command.
type CommandOutput struct {
	Command string      `json:"command"`
	Result  StageResult `json:"result"`
}

// ScanRecord is the complete result for one target. Every stage slot is always set
// once the record is finalized.
type ScanRecord struct {
	Target          string          `json:"target"`
	HostLookup      StageResult     `json:"host_lookup"`
	PortScan        StageResult     `json:"port_scan"`
	SMB             StageResult     `json:"smb"`
	FTP             StageResult     `json:"ftp"`
	DNSRecon        StageResult     `json:"dns_recon"`
	ExploitModules  StageResult     `json:"exploit_modules"`
	WebContent      StageResult     `json:"web_content"`
	Subdomains      StageResult     `json:"subdomains"`
	Robots          StageResult     `json:"robots"`
	Screenshot      StageResult     `json:"screenshot"`
	WordPress       StageResult     `json:"wordpress"`
	SecurityHeaders StageResult     `json:"security_headers"`
	ExtraCommands   []CommandOutput `json:"extra_commands"`
	IsWebTarget     bool            `json:"is_web_target"`
	Advice          string          `json:"advice"`
	ScannedAt       time.Time       `json:"scanned_at"`
	Elapsed         time.Duration   `json:"elapsed"`

	finalized bool
}

// NewScanRecord creates an empty record for target.
func NewScanRecord(target string) *ScanRecord {
	return &ScanRecord{Target: target, ExtraCommands: []CommandOutput{}}
}

func (r *ScanRecord) slot(stage Stage) (*StageResult, error) {
	switch stage {
	case StageHostLookup:
		return &r.HostLookup, nil
	case StagePortScan:
		return &r.PortScan, nil
	case StageSMB:
		return &r.SMB, nil
	case StageFTP:
		return &r.FTP, nil
	case StageDNSRecon:
		return &r.DNSRecon, nil
	case StageExploitModules:
		return &r.ExploitModules, nil
	case StageWebContent:
		return &r.WebContent, nil
	case StageSubdomains:
		return &r.Subdomains, nil
	case StageRobots:
		return &r.Robots, nil
	case StageScreenshot:
		return &r.Screenshot, nil
	case StageWordPress:
		return &r.WordPress, nil
	case StageSecurityHeaders:
		return &r.SecurityHeaders, nil
	default:
		return nil, fmt.Errorf("record has no slot for stage %q", stage)
	}
}

// Set stores the result of stage in its slot.
func (r *ScanRecord) Set(stage Stage, result StageResult) error {
	if r.finalized {
		return ErrRecordFinalized
	}
	s, err := r.slot(stage)
	if err != nil {
		return err
	}
	result.Stage = stage
	*s = result
	return nil
}

// AddCommand appends an extra command result.
func (r *ScanRecord) AddCommand(out CommandOutput) error {
	if r.finalized {
		return ErrRecordFinalized
	}
	r.ExtraCommands = append(r.ExtraCommands, out)
	return nil
}

// Get returns the result stored for stage.
func (r *ScanRecord) Get(stage Stage) StageResult {
	s, err := r.slot(stage)
	if err != nil {
		return Failure(stage, err.Error(), "")
	}
	return *s
}

// Results returns every stage slot in display order.
func (r *ScanRecord) Results() []StageResult {
	out := make([]StageResult, 0, len(AllStages))
	for _, s := range AllStages {
		out = append(out, r.Get(s))
	}
	return out
}

// Finalize fills any slot that was never set with a failure so the record always has
// a complete shape, then closes it to further writes.
func (r *ScanRecord) Finalize(at time.Time) {
	if r.finalized {
		return
	}
	for _, s := range AllStages {
		slot, _ := r.slot(s)
		if slot.IsZero() {
			*slot = Failure(s, "no result", "")
		}
	}
	if r.ExtraCommands == nil {
		r.ExtraCommands = []CommandOutput{}
	}
	r.ScannedAt = at
	r.finalized = true
}

// Finalized reports whether the record is closed.
func (r *ScanRecord) Finalized() bool {
	return r.finalized
}

// FailedStages returns the stages whose slot holds a failure.
func (r *ScanRecord) FailedStages() []Stage {
	var out []Stage
	for _, res := range r.Results() {
		if res.IsFailure() {
			out = append(out, res.Stage)
		}
	}
	return out
}
