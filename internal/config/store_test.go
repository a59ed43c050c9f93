package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitializeSnapshotsGlobals(t *testing.T) {
	path := writeScript(t, `
start_type = "luasandbox"
start_name = "main"
start_file = "main.lua"
max_ipc_msg_size = 65536
max_recv_timeout = -1
debug_mode = true
local hidden = "not exported"
`)

	s := New()
	require.NoError(t, s.Initialize(path))

	assert.Equal(t, "luasandbox", s.Get("start_type"))
	assert.Equal(t, "main", s.Get("start_name"))
	assert.EqualValues(t, 65536, s.GetInt("max_ipc_msg_size"))
	assert.EqualValues(t, -1, s.GetInt("max_recv_timeout"))
	assert.True(t, s.GetBool("debug_mode"))
	assert.Equal(t, "", s.Get("hidden"))
}

func TestInitializeFailsOnMissingFile(t *testing.T) {
	s := New()
	err := s.Initialize(filepath.Join(t.TempDir(), "does-not-exist.lua"))
	assert.Error(t, err)
}

func TestInitializeFailsOnEvalError(t *testing.T) {
	path := writeScript(t, `error("boom")`)
	s := New()
	err := s.Initialize(path)
	assert.Error(t, err)
}

func TestGetDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.Get("missing"))
	assert.EqualValues(t, 0, s.GetInt("missing"))
	assert.False(t, s.GetBool("missing"))
}

func TestSetFirstWriterWins(t *testing.T) {
	s := New()
	assert.True(t, s.Set("k", "v1"))
	assert.False(t, s.Set("k", "v2"))
	assert.Equal(t, "v1", s.Get("k"))
}

func TestSetDoesNotOverrideScriptValue(t *testing.T) {
	path := writeScript(t, `start_name = "main"`)
	s := New()
	require.NoError(t, s.Initialize(path))
	assert.False(t, s.Set("start_name", "other"))
	assert.Equal(t, "main", s.Get("start_name"))
}

func TestKeysReturnsEveryBoundKey(t *testing.T) {
	path := writeScript(t, `
start_type = "luasandbox"
start_name = "main"
`)
	s := New()
	require.NoError(t, s.Initialize(path))
	s.Set("extra", "v")

	keys := s.Keys()
	assert.ElementsMatch(t, []string{"start_type", "start_name", "extra"}, keys)
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := New()
	s.Release()
	s.Release()
	assert.Equal(t, "", s.Get("anything"))
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Get("k")
		}()
		go func(n int) {
			defer wg.Done()
			s.Set("k", "v")
		}(i)
	}
	wg.Wait()
}
