package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window:\n  width: 320\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--config", path, "--log-level", "warn"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "width: 320")
	assert.Contains(t, out.String(), "log_level: warn")
}

func TestConfigCommandRejectsBadLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "loud"})
	assert.ErrorContains(t, cmd.Execute(), "log_level")
}
