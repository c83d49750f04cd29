package port

import (
	"fmt"
	"strconv"
	"strings"
)

// CommonPorts is the connect-scan fallback list when no ports are configured.
var CommonPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 443, 445,
	993, 995, 1723, 3306, 3389, 5432, 5900, 6379, 8080, 8443, 8888, 27017,
}

// ServiceMap maps common ports to their typical service names.
var ServiceMap = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	443:   "https",
	445:   "microsoft-ds",
	993:   "imaps",
	995:   "pop3s",
	1723:  "pptp",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-proxy",
	8443:  "https-alt",
	8888:  "sun-answerbook",
	27017: "mongod",
}

// IdentifyService returns the service name for a port, or "unknown".
func IdentifyService(port int) string {
	if svc, ok := ServiceMap[port]; ok {
		return svc
	}
	return "unknown"
}

// AllPorts is the port spec meaning every TCP port.
const AllPorts = "*"

// ParsePortRange parses a port specification string into a list of ports.
// Supported formats:
//   - "80"           -> [80]
//   - "80, 443,8080" -> [80, 443, 8080]
//   - "1-1024"       -> [1, 2, ..., 1024]
//   - "*"            -> 1-65535
//   - "" or "common" -> CommonPorts
func ParsePortRange(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)

	if spec == "" || spec == "common" {
		return CommonPorts, nil
	}

	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == AllPorts {
			return parseSingleOrRange("1-65535")
		}
		p, err := parseSingleOrRange(part)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p...)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in %q", spec)
	}
	return ports, nil
}

func parseSingleOrRange(s string) ([]int, error) {
	if strings.Contains(s, "-") {
		parts := strings.SplitN(s, "-", 2)
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid port range start %q: %w", parts[0], err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid port range end %q: %w", parts[1], err)
		}
		if start > end {
			return nil, fmt.Errorf("invalid port range: start %d > end %d", start, end)
		}
		if start < 1 || end > 65535 {
			return nil, fmt.Errorf("port range out of bounds (1-65535)")
		}

		ports := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
		return ports, nil
	}

	port, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return []int{port}, nil
}

// compactPorts renders ports as a comma list for nmap's -p flag.
func compactPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
