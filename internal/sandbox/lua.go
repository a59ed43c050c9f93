// Package sandbox implements the "luasandbox" service type (spec
// §4.4/§6): a service implementation that loads and executes a Lua
// script, exposing its mailbox to the script through a small embedded
// binding.
package sandbox

import (
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/qsf-go/qsf/internal/config"
	"github.com/qsf-go/qsf/internal/mailbox"
	"github.com/qsf-go/qsf/internal/registry"
)

// LuaService runs one Lua script for the lifetime of a service. It
// implements registry.Service.
type LuaService struct {
	name   string
	box    *mailbox.Mailbox
	cfg    *config.Store
	logger *slog.Logger
	reg    *registry.Registry
}

// New constructs a LuaService bound to sc. Registered with a
// registry.Factory under the "luasandbox" type tag.
func New(sc registry.ServiceContext) registry.Service {
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LuaService{
		name:   sc.Name,
		box:    sc.Mailbox,
		cfg:    sc.Config,
		logger: logger,
		reg:    sc.Registry,
	}
}

// Run parses the first whitespace-delimited token of argstring as a
// script path and runs it with the remainder available to the script
// as the global string arg (spec §4.4: "loads a script file
// (first token of argstring) and runs it with the remainder as
// arguments").
func (s *LuaService) Run(argstring string) int {
	scriptPath, rest := splitFirstToken(argstring)
	if scriptPath == "" {
		s.logger.Error("luasandbox: empty argstring", "service", s.name)
		return 1
	}

	l := lua.NewState()
	defer l.Close()
	l.OpenLibs()

	s.configureSearchPaths(l)
	s.registerBindings(l)
	l.SetGlobal("arg", lua.LString(rest))

	if err := l.DoFile(scriptPath); err != nil {
		s.logger.Error("luasandbox: script error", "service", s.name, "script", scriptPath, "error", err)
		return 1
	}
	return 0
}

// configureSearchPaths wires the lua_path/lua_cpath config keys (spec
// §6) into package.path/package.cpath, if present.
func (s *LuaService) configureSearchPaths(l *lua.LState) {
	if s.cfg == nil {
		return
	}
	pkg := l.GetGlobal("package")
	tbl, ok := pkg.(*lua.LTable)
	if !ok {
		return
	}
	if p := s.cfg.Get("lua_path"); p != "" {
		tbl.RawSetString("path", lua.LString(p))
	}
	if p := s.cfg.Get("lua_cpath"); p != "" {
		tbl.RawSetString("cpath", lua.LString(p))
	}
}

// splitFirstToken separates the leading whitespace-delimited token
// from the remainder of s, trimming leading whitespace off the
// remainder.
func splitFirstToken(s string) (first, rest string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	first = fields[0]
	if idx := strings.Index(s, first); idx >= 0 {
		rest = strings.TrimSpace(s[idx+len(first):])
	}
	return first, rest
}
