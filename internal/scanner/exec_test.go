package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_StripsANSI(t *testing.T) {
	out, err := Shell(context.Background(), `printf '\033[31mred\033[0m plain'`)
	require.NoError(t, err)
	assert.Equal(t, "red plain", out)
}

func TestExec_NonZeroExit(t *testing.T) {
	out, err := Shell(context.Background(), "echo partial; exit 3")
	assert.Error(t, err)
	assert.Contains(t, out, "partial")
}

func TestExec_Stdin(t *testing.T) {
	out, err := Exec(context.Background(), Command{Name: "cat", Stdin: "hello\n"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExec_ToolMissing(t *testing.T) {
	_, err := Exec(context.Background(), Command{Name: "definitely-not-a-real-binary-rook"})
	assert.True(t, errors.Is(err, ErrToolMissing))
	assert.False(t, ToolAvailable("definitely-not-a-real-binary-rook"))
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "nmap", Args: []string{"-Pn", "a.com"}}
	assert.Equal(t, "nmap -Pn a.com", c.String())
}

func TestExec_TimeoutKillsDescendants(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	out, err := Shell(ctx, "sleep 10; echo late")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, out, "late")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExec_BackgroundChildDoesNotBlock(t *testing.T) {
	start := time.Now()
	out, err := Shell(context.Background(), "sleep 10 & echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
	assert.Less(t, time.Since(start), 5*time.Second)
}
