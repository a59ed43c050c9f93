package framework

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runWithTimeout(t *testing.T, f *Framework, configPath string, timeout time.Duration) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := f.Start(ctx, configPath)
		done <- result{code, err}
	}()

	select {
	case r := <-done:
		return r.code, r.err
	case <-time.After(timeout + time.Second):
		t.Fatal("framework.Start did not return in time")
		return -1, nil
	}
}

func TestBootAndExitScenario(t *testing.T) {
	dir := t.TempDir()
	exitScript := writeFile(t, dir, "exit.lua", `shutdown()`)
	configScript := writeFile(t, dir, "config.lua", fmt.Sprintf(`
start_type = "luasandbox"
start_name = "main"
start_file = %q
max_ipc_msg_size = 65536
`, exitScript))

	f := New(nil, nil)
	code, err := runWithTimeout(t, f, configScript, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, 0, f.Registry.Count())
}

func TestPingPongScenario(t *testing.T) {
	dir := t.TempDir()
	echoScript := writeFile(t, dir, "echo.lua", `
while true do
  local from, payload = recv()
  if from == "sys" and payload == "exit" then break end
  if from ~= nil then
    send(from, payload)
  end
end
`)
	mainScript := writeFile(t, dir, "main.lua", fmt.Sprintf(`
launch("echo", %q)
local from, payload
repeat
  send("echo", "ping")
  from, payload = recv()
until from ~= nil
if from ~= "echo" or payload ~= "ping" then
  error("unexpected reply: " .. tostring(from) .. " " .. tostring(payload))
end
shutdown()
`, echoScript))
	configScript := writeFile(t, dir, "config.lua", fmt.Sprintf(`
start_type = "luasandbox"
start_name = "main"
start_file = %q
max_ipc_msg_size = 65536
max_recv_timeout = 20
`, mainScript))

	f := New(nil, nil)
	code, err := runWithTimeout(t, f, configScript, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestOversizedPayloadScenario(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "oversized.lua", `
local payload = string.rep("x", 2048)
local ok = send("ghost", payload)
if ok then
  error("expected oversized send to fail locally")
end
shutdown()
`)
	configScript := writeFile(t, dir, "config.lua", fmt.Sprintf(`
start_type = "luasandbox"
start_name = "main"
start_file = %q
max_ipc_msg_size = 1024
`, script))

	f := New(nil, nil)
	code, err := runWithTimeout(t, f, configScript, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestUnknownDestinationScenario(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "ghost.lua", `
send("ghost", "hello")
shutdown()
`)
	configScript := writeFile(t, dir, "config.lua", fmt.Sprintf(`
start_type = "luasandbox"
start_name = "main"
start_file = %q
max_ipc_msg_size = 65536
`, script))

	f := New(nil, nil)
	code, err := runWithTimeout(t, f, configScript, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestMissingConfigFileFailsInit(t *testing.T) {
	f := New(nil, nil)
	code, err := f.Start(context.Background(), "/nonexistent/config.lua")
	assert.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestMissingRequiredKeysFailsInit(t *testing.T) {
	dir := t.TempDir()
	configScript := writeFile(t, dir, "config.lua", `max_ipc_msg_size = 1024`)

	f := New(nil, nil)
	code, err := f.Start(context.Background(), configScript)
	assert.ErrorIs(t, err, ErrMissingStartKeys)
	assert.Equal(t, 1, code)
}

func TestReservedIdentityScenario(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "x.lua", `shutdown()`)
	configScript := writeFile(t, dir, "config.lua", fmt.Sprintf(`
start_type = "luasandbox"
start_name = "sys"
start_file = %q
max_ipc_msg_size = 65536
`, script))

	f := New(nil, nil)
	code, err := f.Start(context.Background(), configScript)
	assert.Error(t, err)
	assert.Equal(t, 1, code)
}
