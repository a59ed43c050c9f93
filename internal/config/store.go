// Package config implements the framework's global configuration store
// (spec §4.1): a thread-safe, write-once-per-key snapshot of the
// global variables left behind by evaluating a Lua configuration
// script.
package config

import (
	"fmt"
	"strconv"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Store is the process-wide key/value configuration surface. All
// operations are safe for concurrent use; a single mutex serialises
// them, matching spec §4.1's "externally linearisable" contract.
type Store struct {
	mu       sync.Mutex
	values   map[string]string
	released bool
}

// builtinGlobals names the scalar globals OpenLibs leaves behind
// (besides the library tables, already excluded by not being
// string/number/bool) that aren't part of any config script's own
// key/value surface.
var builtinGlobals = map[string]bool{
	"_VERSION":            true,
	"_GOPHER_LUA_VERSION": true,
}

// New creates an empty, uninitialized Store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Initialize evaluates the Lua script at path and snapshots its global
// namespace into the store. String, number, and boolean globals become
// entries; functions, tables, and other Lua values are ignored. It
// fails if the file cannot be read or evaluation raises a Lua error.
func (s *Store) Initialize(path string) error {
	l := lua.NewState()
	defer l.Close()
	l.OpenLibs()

	if err := l.DoFile(path); err != nil {
		return fmt.Errorf("config: evaluating %s: %w", path, err)
	}

	snapshot := make(map[string]string)
	globals := l.Get(lua.GlobalsIndex).(*lua.LTable)
	globals.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || builtinGlobals[string(key)] {
			return
		}
		switch val := v.(type) {
		case lua.LString:
			snapshot[string(key)] = string(val)
		case lua.LNumber:
			snapshot[string(key)] = val.String()
		case lua.LBool:
			if bool(val) {
				snapshot[string(key)] = "true"
			} else {
				snapshot[string(key)] = "false"
			}
		default:
			// functions, tables, userdata: not part of the flat
			// key/value surface the rest of the framework sees.
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = snapshot
	s.released = false
	return nil
}

// Get returns the string value for key, or "" if absent.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Keys returns every key currently bound in the store, in no
// particular order. Used by operator tooling to report what a config
// script would produce without consuming its values (spec.md names no
// such operation; this is additive diagnostic surface).
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// GetInt returns key's value parsed as a signed 64-bit integer, or 0 if
// absent or not numeric.
func (s *Store) GetInt(key string) int64 {
	s.mu.Lock()
	v := s.values[key]
	s.mu.Unlock()

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// GetBool returns key's value interpreted as a boolean, or false if
// absent.
func (s *Store) GetBool(key string) bool {
	s.mu.Lock()
	v := s.values[key]
	s.mu.Unlock()

	b, _ := strconv.ParseBool(v)
	return b
}

// Set binds key to value, unless key is already bound — the first
// writer wins, whether that was the config script or an earlier Set.
// Returns false when the key already exists.
func (s *Store) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	if _, exists := s.values[key]; exists {
		return false
	}
	s.values[key] = value
	return true
}

// Release tears down the store. Idempotent.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
	s.released = true
}
