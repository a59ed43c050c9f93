package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunValidateReportsMissingKeys(t *testing.T) {
	path := writeScript(t, `start_type = "luasandbox"`)

	var out bytes.Buffer
	cmd := validateCmd
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	err := runValidate(cmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_name")
	assert.Contains(t, err.Error(), "start_file")
	assert.Contains(t, out.String(), "1 keys")
}

func TestRunValidateRejectsNonPositiveMaxMsgSize(t *testing.T) {
	path := writeScript(t, `
start_type = "luasandbox"
start_name = "main"
start_file = "main.lua"
max_ipc_msg_size = 0
`)

	var out bytes.Buffer
	cmd := validateCmd
	cmd.SetOut(&out)

	err := runValidate(cmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_ipc_msg_size")
}

func TestRunValidatePassesOnCompleteConfig(t *testing.T) {
	path := writeScript(t, `
start_type = "luasandbox"
start_name = "main"
start_file = "main.lua"
max_ipc_msg_size = 65536
`)

	var out bytes.Buffer
	cmd := validateCmd
	cmd.SetOut(&out)

	err := runValidate(cmd, []string{path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "OK: all required keys present")
}

func TestRunValidateFailsOnUnreadableFile(t *testing.T) {
	var out bytes.Buffer
	cmd := validateCmd
	cmd.SetOut(&out)

	err := runValidate(cmd, []string{filepath.Join(t.TempDir(), "missing.lua")})
	require.Error(t, err)
}
