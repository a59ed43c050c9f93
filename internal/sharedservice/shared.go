// Package sharedservice implements the "SharedService" service type
// (spec §4.4): a service implementation that loads a shared library by
// path and calls a conventionally-named entry point.
//
// Go has no portable dlopen/dlsym equivalent; the stdlib's plugin
// package is the closest analogue, but it only supports Linux/macOS
// ELF-ish builds with cgo enabled and the plugin built with the exact
// same toolchain version as the host binary. This implementation is
// best-effort and platform-limited for that reason, same as the
// original's reliance on a native shared-library ABI.
package sharedservice

import (
	"errors"
	"log/slog"
	"plugin"
	"strings"

	"github.com/qsf-go/qsf/internal/registry"
)

// EntryPointSymbol is the exported symbol every shared-library service
// must provide: func(argstring string) int.
const EntryPointSymbol = "QSFRun"

// ErrMissingEntryPoint is returned when the loaded plugin does not
// export EntryPointSymbol with the expected signature.
var ErrMissingEntryPoint = errors.New("sharedservice: missing QSFRun entry point")

// SharedService loads a compiled Go plugin and delegates Run to its
// exported QSFRun function.
type SharedService struct {
	name   string
	logger *slog.Logger
}

// New constructs a SharedService bound to sc. Registered with a
// registry.Factory under the "sharedservice" type tag.
func New(sc registry.ServiceContext) registry.Service {
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SharedService{name: sc.Name, logger: logger}
}

// Run parses the first whitespace-delimited token of argstring as a
// plugin path and the remainder as the argument string handed to the
// plugin's entry point (spec §4.4: "loads a shared library by path
// (first token of argstring) and calls a conventionally-named entry
// point").
func (s *SharedService) Run(argstring string) int {
	libPath, rest := splitFirstToken(argstring)
	if libPath == "" {
		s.logger.Error("sharedservice: empty argstring", "service", s.name)
		return 1
	}

	p, err := plugin.Open(libPath)
	if err != nil {
		s.logger.Error("sharedservice: failed to open plugin", "service", s.name, "path", libPath, "error", err)
		return 1
	}

	sym, err := p.Lookup(EntryPointSymbol)
	if err != nil {
		s.logger.Error("sharedservice: entry point not found", "service", s.name, "path", libPath, "error", err)
		return 1
	}

	entry, ok := sym.(func(string) int)
	if !ok {
		s.logger.Error(ErrMissingEntryPoint.Error(), "service", s.name, "path", libPath)
		return 1
	}

	return entry(rest)
}

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
