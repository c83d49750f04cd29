package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/buemura/rook/pkg/types"
)

// CreateRunRequest is the JSON body for POST /api/v1/runs.
type CreateRunRequest struct {
	Targets  []string `json:"targets"`
	Input    string   `json:"input"`
	Speed    string   `json:"speed"`
	Ports    string   `json:"ports"`
	ScanType string   `json:"scan_type"`
	Fuzz     *bool    `json:"fuzz"`
	Advice   *bool    `json:"advice"`
	Commands []string `json:"commands"`
}

// decodeCreateRunRequest reads and validates the request body.
func decodeCreateRunRequest(r *http.Request) (*CreateRunRequest, error) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if len(req.Targets) == 0 && strings.TrimSpace(req.Input) == "" {
		return nil, fmt.Errorf("targets are required")
	}

	if _, err := types.ParseSpeed(req.Speed); err != nil {
		return nil, err
	}

	switch strings.ToUpper(req.ScanType) {
	case "", types.ScanTypeSYN, types.ScanTypeTCP, types.ScanTypeUDP:
	default:
		return nil, fmt.Errorf("invalid scan_type %q", req.ScanType)
	}

	for _, c := range req.Commands {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("commands cannot be empty")
		}
	}

	return &req, nil
}

// targets expands the request's target list and free-text input.
func (req *CreateRunRequest) targets() ([]string, error) {
	raw := append([]string(nil), req.Targets...)
	raw = append(raw, types.SplitTargets(req.Input)...)
	expanded, err := types.ExpandTargets(raw)
	if err != nil {
		return nil, &types.ValidationError{Err: err}
	}
	return expanded, nil
}

// options layers the request's overrides onto defaults.
func (req *CreateRunRequest) options(defaults types.ScanOptions) types.ScanOptions {
	opts := defaults.Clone()
	if req.Speed != "" {
		opts.Speed, _ = types.ParseSpeed(req.Speed)
	}
	if req.Ports != "" {
		opts.PortScan.Ports = req.Ports
	}
	if req.ScanType != "" {
		opts.PortScan.ScanType = strings.ToUpper(req.ScanType)
	}
	if req.Fuzz != nil {
		opts.Fuzz.Enabled = *req.Fuzz
	}
	if req.Advice != nil {
		opts.EnableAdvice = *req.Advice
	}
	if len(req.Commands) > 0 {
		opts.ExtraCommands = append([]string(nil), req.Commands...)
	}
	return opts
}
