package sandbox

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/qsf-go/qsf/internal/router"
)

// randGenerators holds one generator per name, seeded from the clock on
// first use, so repeated rand(name) calls for the same name continue one
// stream while distinct names never share state (spec.md companion-piece PRNG,
// recovered from original_source/src/core/Random.cpp).
var (
	randMu         sync.Mutex
	randGenerators = make(map[string]*rand.Rand)
)

func namedGenerator(name string) *rand.Rand {
	randMu.Lock()
	defer randMu.Unlock()
	g, ok := randGenerators[name]
	if !ok {
		g = rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(len(randGenerators))))
		randGenerators[name] = g
	}
	return g
}

// registerBindings exposes the sandbox-facing mailbox binding (spec
// §6) plus two supplemental functions this implementation carries
// over from the scripted-config lineage: shutdown() and rand().
func (s *LuaService) registerBindings(l *lua.LState) {
	l.SetGlobal("send", l.NewFunction(s.luaSend))
	l.SetGlobal("recv", l.NewFunction(s.luaRecv))
	l.SetGlobal("name", l.NewFunction(s.luaName))
	l.SetGlobal("launch", l.NewFunction(s.luaLaunch))
	l.SetGlobal("shutdown", l.NewFunction(s.luaShutdown))
	l.SetGlobal("rand", l.NewFunction(s.luaRand))
}

// send(peer, payload) — non-blocking send; returns true on success,
// false and an error string on failure.
func (s *LuaService) luaSend(l *lua.LState) int {
	peer := l.CheckString(1)
	payload := l.CheckString(2)

	err := s.box.Send(peer, []byte(payload))
	if err != nil {
		l.Push(lua.LFalse)
		l.Push(lua.LString(err.Error()))
		return 2
	}
	l.Push(lua.LTrue)
	return 1
}

// recv(option?) — blocking unless option == "nowait"; returns
// (from, payload) on success, or nothing if no message was available.
func (s *LuaService) luaRecv(l *lua.LState) int {
	blocking := true
	if l.GetTop() >= 1 {
		if opt, ok := l.Get(1).(lua.LString); ok && string(opt) == "nowait" {
			blocking = false
		}
	}

	var from string
	var payload []byte
	n, err := s.box.Recv(blocking, func(f string, p []byte) {
		from = f
		payload = append([]byte(nil), p...)
	})
	if err != nil || n == 0 {
		return 0
	}

	l.Push(lua.LString(from))
	l.Push(lua.LString(string(payload)))
	return 2
}

// name() — returns the service's own identity.
func (s *LuaService) luaName(l *lua.LState) int {
	l.Push(lua.LString(s.box.Name()))
	return 1
}

// launch(name, script_path, argstring?) — delegates to
// registry.create("luasandbox", name, script_path+" "+argstring);
// returns a boolean success flag.
func (s *LuaService) luaLaunch(l *lua.LState) int {
	if s.reg == nil {
		l.Push(lua.LFalse)
		return 1
	}

	name := l.CheckString(1)
	scriptPath := l.CheckString(2)
	extra := ""
	if l.GetTop() >= 3 {
		extra = l.CheckString(3)
	}

	argstring := scriptPath
	if extra != "" {
		argstring = strings.TrimSpace(scriptPath + " " + extra)
	}

	err := s.reg.Create("luasandbox", name, argstring)
	l.Push(lua.LBool(err == nil))
	return 1
}

// shutdown() — emits sys/exit through the normal routing path (spec
// §9's design note: shutdown is never out-of-band), fanning the
// signal out to every connected service, including this one.
func (s *LuaService) luaShutdown(l *lua.LState) int {
	_ = s.box.Send(router.Reserved, []byte("exit"))
	return 0
}

// rand(name) — returns a pseudo-random int64 drawn from the named
// generator, creating it on first use. A convenience carried over
// from the original scripting glue (src/core/Random.cpp) so sandboxed
// scripts need not shell out to an external PRNG.
func (s *LuaService) luaRand(l *lua.LState) int {
	name := l.CheckString(1)
	if name == "" {
		l.Push(lua.LNil)
		l.Push(lua.LString("rand: name must not be empty"))
		return 2
	}
	l.Push(lua.LNumber(namedGenerator(name).Int63()))
	return 1
}
