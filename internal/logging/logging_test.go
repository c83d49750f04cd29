package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
	assert.Equal(t, os.Stderr, log.Out)
}

func TestNew_JSONDebug(t *testing.T) {
	log, err := New(Config{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rook.log")
	log, err := New(Config{Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	log.WithField("target", "example.com").Info("scan started")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scan started")
	assert.Contains(t, string(data), "target=example.com")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Output: "syslog"})
	assert.Error(t, err)

	_, err = New(Config{Output: "file"})
	assert.Error(t, err)
}
