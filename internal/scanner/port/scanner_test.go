package port

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortRange_Single(t *testing.T) {
	ports, err := ParsePortRange("80")
	require.NoError(t, err)
	assert.Equal(t, []int{80}, ports)
}

func TestParsePortRange_CommaSeparated(t *testing.T) {
	ports, err := ParsePortRange("80, 443,8080")
	require.NoError(t, err)
	assert.Equal(t, []int{80, 443, 8080}, ports)
}

func TestParsePortRange_Range(t *testing.T) {
	ports, err := ParsePortRange("1-5")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ports)
}

func TestParsePortRange_Common(t *testing.T) {
	ports, err := ParsePortRange("common")
	require.NoError(t, err)
	assert.Equal(t, CommonPorts, ports)
}

func TestParsePortRange_Empty(t *testing.T) {
	ports, err := ParsePortRange("")
	require.NoError(t, err)
	assert.Equal(t, CommonPorts, ports)
}

func TestParsePortRange_Invalid(t *testing.T) {
	_, err := ParsePortRange("abc")
	assert.Error(t, err)
}

func TestParsePortRange_InvalidRange(t *testing.T) {
	_, err := ParsePortRange("100-50")
	assert.Error(t, err)
}

func TestParsePortRange_OutOfBounds(t *testing.T) {
	_, err := ParsePortRange("0-100")
	assert.Error(t, err)
}

func TestParsePortRange_All(t *testing.T) {
	ports, err := ParsePortRange("80,*")
	require.NoError(t, err)
	assert.Len(t, ports, 65535)
}

func TestIdentifyService(t *testing.T) {
	assert.Equal(t, "http", IdentifyService(80))
	assert.Equal(t, "ssh", IdentifyService(22))
	assert.Equal(t, "unknown", IdentifyService(12345))
}

func TestBuildArgs_Defaults(t *testing.T) {
	args, err := BuildArgs(types.PortScanOptions{}, "a.com", "/tmp/out.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"--top-ports", "1000", "-Pn", "-oX", "/tmp/out.xml", "a.com"}, args)
}

func TestBuildArgs_Full(t *testing.T) {
	opts := types.PortScanOptions{
		Ports:       "22, 80-82",
		ScanType:    "syn",
		Aggressive:  true,
		Timing:      4,
		OSDetection: true,
		PingHosts:   true,
		PingMethod:  types.PingTCP,
		HostTimeout: 300,
	}
	args, err := BuildArgs(opts, "10.0.0.5", "x.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-p", "22,80,81,82", "-sS", "-sV", "-A", "-T4", "-O", "-PS80,443",
		"--host-timeout", "300s", "-oX", "x.xml", "10.0.0.5",
	}, args)
}

func TestBuildArgs_AllPortsAndPingDefault(t *testing.T) {
	args, err := BuildArgs(types.PortScanOptions{Ports: "*", ScanType: "UDP", PingHosts: true}, "a.com", "x.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"-p-", "-sU", "-PE", "-oX", "x.xml", "a.com"}, args)
}

func TestBuildArgs_Invalid(t *testing.T) {
	_, err := BuildArgs(types.PortScanOptions{ScanType: "XMAS"}, "a.com", "x.xml")
	assert.Error(t, err)
	_, err = BuildArgs(types.PortScanOptions{Timing: 9}, "a.com", "x.xml")
	assert.Error(t, err)
	_, err = BuildArgs(types.PortScanOptions{Ports: "abc"}, "a.com", "x.xml")
	assert.Error(t, err)
}

const sampleXML = `<?xml version="1.0"?>
<nmaprun scanner="nmap" args="nmap -oX - example.com">
  <host>
    <status state="up"/>
    <address addr="93.184.216.34" addrtype="ipv4"/>
    <ports>
      <port protocol="tcp" portid="22"><state state="closed"/><service name="ssh"/></port>
      <port protocol="tcp" portid="443"><state state="open"/><service name="https" product="nginx" version="1.25.3"/></port>
      <port protocol="tcp" portid="21"><state state="open"/><service name="ftp" product="vsftpd" version="2.3.4"/></port>
    </ports>
  </host>
  <runstats><finished exit="success" summary="done"/></runstats>
</nmaprun>`

func TestParseXML(t *testing.T) {
	open, err := ParseXML([]byte(sampleXML))
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, types.OpenPort{Port: 443, Protocol: "tcp", Service: "https", Product: "nginx", Version: "1.25.3"}, open[0])
	assert.Equal(t, "vsftpd", open[1].Product)
}

func TestParseXML_Malformed(t *testing.T) {
	_, err := ParseXML([]byte("<nmaprun><host>"))
	assert.Error(t, err)

	_, err = ParseXML([]byte(`<nmaprun><runstats><finished exit="error"/></runstats></nmaprun>`))
	assert.Error(t, err)
}

func TestParseXMLFile_Missing(t *testing.T) {
	_, err := ParseXMLFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func connectOnly() *Scanner {
	s := New()
	s.Binary = "definitely-not-nmap-rook"
	return s
}

func portOpts(spec string) scanner.Options {
	scan := types.DefaultScanOptions()
	scan.PortScan.Ports = spec
	return scanner.Options{Scan: scan}
}

func TestScanner_DetectsOpenPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	_, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	res := connectOnly().Run(context.Background(), "127.0.0.1", portOpts(portStr))
	require.True(t, res.IsSuccess(), res.Display())
	require.Len(t, res.Ports, 1)
	assert.Equal(t, port, res.Ports[0].Port)
	assert.Contains(t, res.Output, portStr+"/tcp")
}

func TestScanner_ClosedPort(t *testing.T) {
	res := connectOnly().Run(context.Background(), "127.0.0.1", portOpts("39999"))
	require.True(t, res.IsSuccess())
	assert.Empty(t, res.Ports)
	assert.Contains(t, res.Output, "No open ports")
}

func TestScanner_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := connectOnly().Run(ctx, "127.0.0.1", portOpts("80,443"))
	assert.True(t, res.IsFailure())
}

func TestScanner_InvalidSpec(t *testing.T) {
	res := connectOnly().Run(context.Background(), "127.0.0.1", portOpts("nope"))
	assert.True(t, res.IsFailure())
}

func TestScanner_NameAndDescription(t *testing.T) {
	s := New()
	assert.Equal(t, types.StagePortScan, s.Name())
	assert.NotEmpty(t, s.Description())
}
