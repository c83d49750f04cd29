package port

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/buemura/rook/pkg/types"
)

// BuildArgs translates port scan options into nmap arguments. XML output is written
// to xmlPath so the scan can be parsed afterwards.
func BuildArgs(opts types.PortScanOptions, target, xmlPath string) ([]string, error) {
	var args []string

	spec := strings.TrimSpace(opts.Ports)
	switch {
	case spec == "":
		args = append(args, "--top-ports", "1000")
	case strings.Contains(spec, AllPorts):
		args = append(args, "-p-")
	default:
		ports, err := ParsePortRange(spec)
		if err != nil {
			return nil, err
		}
		args = append(args, "-p", compactPorts(ports))
	}

	switch strings.ToUpper(opts.ScanType) {
	case types.ScanTypeSYN:
		args = append(args, "-sS", "-sV")
	case types.ScanTypeUDP:
		args = append(args, "-sU")
	case types.ScanTypeTCP:
		args = append(args, "-sT", "-sV")
	case "":
	default:
		return nil, fmt.Errorf("unknown scan type %q", opts.ScanType)
	}

	if opts.Aggressive {
		args = append(args, "-A")
	}
	if opts.Timing > 0 {
		if opts.Timing > 5 {
			return nil, fmt.Errorf("timing template %d out of range (0-5)", opts.Timing)
		}
		args = append(args, "-T"+strconv.Itoa(opts.Timing))
	}
	if opts.OSDetection {
		args = append(args, "-O")
	}

	if opts.PingHosts {
		switch strings.ToUpper(opts.PingMethod) {
		case types.PingTCP:
			args = append(args, "-PS80,443")
		case types.PingARP:
			args = append(args, "-PR")
		default:
			args = append(args, "-PE")
		}
	} else {
		args = append(args, "-Pn")
	}

	if opts.HostTimeout > 0 {
		args = append(args, "--host-timeout", strconv.Itoa(opts.HostTimeout)+"s")
	}

	args = append(args, "-oX", xmlPath, target)
	return args, nil
}

// NmapRun is the root of nmap's XML report.
type NmapRun struct {
	XMLName  xml.Name `xml:"nmaprun"`
	Args     string   `xml:"args,attr"`
	Hosts    []Host   `xml:"host"`
	RunStats RunStats `xml:"runstats"`
}

type Host struct {
	Status    Status    `xml:"status"`
	Addresses []Address `xml:"address"`
	Ports     Ports     `xml:"ports"`
}

type Status struct {
	State string `xml:"state,attr"`
}

type Address struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type Ports struct {
	Ports []Port `xml:"port"`
}

type Port struct {
	Protocol string  `xml:"protocol,attr"`
	PortID   int     `xml:"portid,attr"`
	State    State   `xml:"state"`
	Service  Service `xml:"service"`
}

type State struct {
	State string `xml:"state,attr"`
}

type Service struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

type RunStats struct {
	Finished Finished `xml:"finished"`
}

type Finished struct {
	Exit    string `xml:"exit,attr"`
	Summary string `xml:"summary,attr"`
}

// ParseXML extracts the open ports from an nmap XML report.
func ParseXML(data []byte) ([]types.OpenPort, error) {
	var run NmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal nmap xml: %w", err)
	}
	if run.RunStats.Finished.Exit != "" && run.RunStats.Finished.Exit != "success" {
		return nil, fmt.Errorf("nmap exited with status %q", run.RunStats.Finished.Exit)
	}

	var open []types.OpenPort
	for _, h := range run.Hosts {
		for _, p := range h.Ports.Ports {
			if p.State.State != "open" {
				continue
			}
			open = append(open, types.OpenPort{
				Port:     p.PortID,
				Protocol: p.Protocol,
				Service:  p.Service.Name,
				Product:  p.Service.Product,
				Version:  p.Service.Version,
			})
		}
	}
	return open, nil
}

// ParseXMLFile reads and parses an nmap XML report.
func ParseXMLFile(path string) ([]types.OpenPort, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseXML(data)
}
