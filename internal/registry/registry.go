// Package registry implements the service lifecycle manager (spec
// §4.4): it tracks live services by name, enforces name uniqueness,
// starts one worker goroutine per service, reaps services on exit, and
// triggers framework shutdown once the last service has gone.
package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/qsf-go/qsf/internal/config"
	"github.com/qsf-go/qsf/internal/mailbox"
	"github.com/qsf-go/qsf/internal/router"
)

// validate runs the struct-tag checks in createRequest. A single
// package-level instance, matching the teacher's
// internal/api/middleware/validation.go pattern.
var validate = validator.New()

// createRequest is the struct-tag-validated shape of a Create call.
// Reserved-name and duplicate-name checks aren't expressible as tags
// and stay as explicit logic in Create.
type createRequest struct {
	Type      string `validate:"required"`
	Name      string `validate:"required,max=16"`
	Argstring string `validate:"required"`
}

// pollInterval is how often Stop polls for the registry to drain
// (spec §5: "suspends by polling at ≈ 10 ms intervals").
const pollInterval = 10 * time.Millisecond

// controlIdentity tags the source of control-plane sys commands the
// registry itself issues, standing in for the temporary mailbox spec
// §4.4 describes stop() as using.
const controlIdentity = "registry"

// defaultRecvTimeoutMS is used for a service's mailbox when the config
// store has no max_recv_timeout entry.
const defaultRecvTimeoutMS = -1

// defaultMaxMsgSize is used for a service's mailbox when the config
// store has no max_ipc_msg_size entry.
const defaultMaxMsgSize int64 = 1 << 20

type record struct {
	Type      string
	Name      string
	Argstring string
}

// Registry is the process-wide service lifecycle manager. Build one
// with New; the zero value is not usable.
type Registry struct {
	router         *router.Router
	factory        *Factory
	config         *config.Store
	logger         *slog.Logger
	metrics        *Metrics
	mailboxMetrics *mailbox.Metrics

	mu       sync.Mutex
	services map[string]*record

	stopOnce sync.Once
}

// New constructs a Registry driving services through r, instantiated
// via factory, with read access to cfg for per-service tuning.
// mailboxMetrics is threaded through to every service's mailbox.New
// call in runWorker, so per-service send/recv counters are exported
// the same way the registry's own lifecycle counters are; it may be
// nil, in which case mailboxes are constructed without metrics.
func New(r *router.Router, factory *Factory, cfg *config.Store, logger *slog.Logger, metrics *Metrics, mailboxMetrics *mailbox.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		router:         r,
		factory:        factory,
		config:         cfg,
		logger:         logger.With("component", "registry"),
		metrics:        metrics,
		mailboxMetrics: mailboxMetrics,
		services:       make(map[string]*record),
	}
}

// Create validates and registers a new service, then starts its worker
// goroutine. It returns before the service has necessarily run any
// code; the goroutine is detached — it is reaped via onServiceExit,
// never joined by the caller (spec §4.4).
func (reg *Registry) Create(typ, name, argstring string) error {
	req := createRequest{Type: typ, Name: name, Argstring: argstring}
	if err := validate.Struct(req); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok || len(fieldErrs) == 0 {
			reg.countError("invalid")
			return fmt.Errorf("registry: %w", err)
		}
		switch fieldErrs[0].Field() {
		case "Type":
			reg.countError("empty_type")
			return ErrEmptyType
		case "Name":
			if fieldErrs[0].Tag() == "max" {
				reg.countError("name_too_long")
				return ErrNameTooLong
			}
			reg.countError("empty_name")
			return ErrEmptyName
		case "Argstring":
			reg.countError("empty_argstring")
			return ErrEmptyArgstring
		default:
			reg.countError("invalid")
			return fmt.Errorf("registry: %w", err)
		}
	}
	// The validator's max tag counts runes; the name limit is in bytes.
	if len(name) > 16 {
		reg.countError("name_too_long")
		return ErrNameTooLong
	}
	if name == router.Reserved {
		reg.countError("reserved_name")
		return ErrReservedName
	}

	reg.mu.Lock()
	if _, exists := reg.services[name]; exists {
		reg.mu.Unlock()
		reg.countError("duplicate_name")
		return ErrDuplicateName
	}
	reg.services[name] = &record{Type: typ, Name: name, Argstring: argstring}
	if reg.metrics != nil {
		reg.metrics.ActiveCount.Set(float64(len(reg.services)))
		reg.metrics.Created.Inc()
	}
	reg.mu.Unlock()

	go reg.runWorker(typ, name, argstring)
	return nil
}

func (reg *Registry) countError(reason string) {
	if reg.metrics != nil {
		reg.metrics.LaunchErrors.WithLabelValues(reason).Inc()
	}
}

// runWorker is the body of a service's worker goroutine (spec §4.4):
// build its mailbox, instantiate its implementation, run it to
// completion, and reap it. A panic inside construction or Run is
// recovered, logged, and treated as normal termination.
func (reg *Registry) runWorker(typ, name, argstring string) {
	outcome := "normal"
	defer func() {
		if rec := recover(); rec != nil {
			reg.logger.Error("recovered from panic in service", "name", name, "error", rec)
			outcome = "panic"
		}
		if reg.metrics != nil {
			reg.metrics.Exited.WithLabelValues(outcome).Inc()
		}
		reg.onServiceExit(name)
	}()

	recvTimeout := int64(defaultRecvTimeoutMS)
	maxMsgSize := defaultMaxMsgSize
	if reg.config != nil {
		if v := reg.config.Get("max_recv_timeout"); v != "" {
			recvTimeout = reg.config.GetInt("max_recv_timeout")
		}
		if v := reg.config.Get("max_ipc_msg_size"); v != "" {
			maxMsgSize = reg.config.GetInt("max_ipc_msg_size")
		}
	}

	box, err := mailbox.New(reg.router, name, recvTimeout, maxMsgSize, reg.logger, reg.mailboxMetrics)
	if err != nil {
		reg.logger.Error("failed to bind service mailbox", "name", name, "error", err)
		outcome = "bind_error"
		return
	}
	defer box.Close()

	svc, err := reg.factory.New(typ, ServiceContext{
		Name:     name,
		Mailbox:  box,
		Config:   reg.config,
		Logger:   reg.logger.With("service", name),
		Registry: reg,
	})
	if err != nil {
		reg.logger.Error("failed to construct service", "name", name, "type", typ, "error", err)
		outcome = "construct_error"
		return
	}

	code := svc.Run(argstring)
	if code != 0 {
		reg.logger.Warn("service exited with non-zero code", "name", name, "code", code)
	}
}

// onServiceExit removes name's record and, if the registry has become
// empty, posts sys/shutdown so the router's dispatch loop returns
// (spec §4.4).
func (reg *Registry) onServiceExit(name string) {
	reg.mu.Lock()
	delete(reg.services, name)
	empty := len(reg.services) == 0
	if reg.metrics != nil {
		reg.metrics.ActiveCount.Set(float64(len(reg.services)))
	}
	reg.mu.Unlock()

	if empty {
		if err := reg.router.PostSys(controlIdentity, "shutdown"); err != nil {
			reg.logger.Error("failed to post sys/shutdown", "error", err)
		}
	}
}

// Stop issues sys/exit through the router's control channel and blocks
// until every service has reaped itself, polling at pollInterval (spec
// §4.4/§5). Idempotent: later calls observe the same drain.
func (reg *Registry) Stop() {
	reg.stopOnce.Do(func() {
		if err := reg.router.PostSys(controlIdentity, "exit"); err != nil {
			reg.logger.Error("failed to post sys/exit", "error", err)
		}
	})

	for {
		reg.mu.Lock()
		n := len(reg.services)
		reg.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(pollInterval)
	}
}

// Count returns the current number of registered services, mainly for
// tests and diagnostics.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.services)
}

// String renders a compact human summary of the registry state for
// diagnostics; no core path uses it.
func (reg *Registry) String() string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return fmt.Sprintf("registry(%d services)", len(reg.services))
}
