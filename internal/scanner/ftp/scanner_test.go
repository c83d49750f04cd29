package ftp

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFTP serves a minimal control connection that accepts or rejects anonymous logins.
func fakeFTP(t *testing.T, allow bool) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFTP(conn, allow)
		}
	}()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return h, port
}

func serveFTP(conn net.Conn, allow bool) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	write := func(s string) { conn.Write([]byte(s + "\r\n")) }
	write("220 fake ftp ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.Fields(strings.TrimSpace(line) + " x")[0])
		switch cmd {
		case "FEAT":
			write("211 no features")
		case "USER":
			write("331 password please")
		case "PASS":
			if allow {
				write("230 welcome")
			} else {
				write("530 Login incorrect.")
			}
		case "TYPE", "OPTS":
			write("200 ok")
		case "QUIT":
			write("221 bye")
			return
		default:
			write("502 not implemented")
		}
	}
}

func TestScanner_NameAndDescription(t *testing.T) {
	s := New()
	assert.Equal(t, types.StageFTP, s.Name())
	assert.NotEmpty(t, s.Description())
}

func TestScanner_AnonymousAllowed(t *testing.T) {
	host, port := fakeFTP(t, true)
	s := New()
	s.Port = port

	res := s.Run(context.Background(), host, scanner.Options{})
	require.True(t, res.IsSuccess(), res.Display())
	assert.Contains(t, res.Output, Allowed)
	require.Len(t, res.Findings, 1)
}

func TestScanner_AnonymousDenied(t *testing.T) {
	host, port := fakeFTP(t, false)
	s := New()
	s.Port = port

	res := s.Run(context.Background(), host, scanner.Options{})
	require.True(t, res.IsSuccess(), res.Display())
	assert.Equal(t, NotAllowed, res.Output)
	assert.Empty(t, res.Findings)
}

func TestScanner_NoService(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, p, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	s := New()
	s.Port, _ = strconv.Atoi(p)
	s.DialTimeout = time.Second

	res := s.Run(context.Background(), "127.0.0.1", scanner.Options{})
	assert.True(t, res.IsSuccess(), res.Display())
	assert.Equal(t, NoService, res.Output)
}
