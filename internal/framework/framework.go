// Package framework wires the config store, router, and registry
// together behind a single value (spec §9's design note: prefer an
// explicit Framework over process-wide globals) and implements the
// entry-point logic of spec §4.5.
package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qsf-go/qsf/internal/config"
	"github.com/qsf-go/qsf/internal/mailbox"
	"github.com/qsf-go/qsf/internal/registry"
	"github.com/qsf-go/qsf/internal/router"
	"github.com/qsf-go/qsf/internal/sandbox"
	"github.com/qsf-go/qsf/internal/sharedservice"
)

// coreMajorVersion is the compiled-in version this build implements.
// Go has no dynamic-library version probe to perform at runtime (spec
// §4.5 step 1 talks about checking "the message library is ... at the
// expected major version"); this degrades to a constant comparison
// against an optional config key, documented as such.
const coreMajorVersion = 2

// defaultMaxMsgSize is used when the config store has no
// max_ipc_msg_size entry, or the entry is non-positive.
const defaultMaxMsgSize int64 = 1 << 20

var (
	// ErrVersionMismatch is returned when the config store declares an
	// expected_major_version that does not match coreMajorVersion.
	ErrVersionMismatch = errors.New("framework: expected_major_version mismatch")

	// ErrMissingStartKeys is returned when start_type, start_name, or
	// start_file is absent from the config store.
	ErrMissingStartKeys = errors.New("framework: start_type, start_name, and start_file are all required")

	// ErrInvalidMaxMsgSize is returned when max_ipc_msg_size is absent
	// or non-positive.
	ErrInvalidMaxMsgSize = errors.New("framework: max_ipc_msg_size must be a positive integer")
)

// Framework is the process-wide collaborator set: config store,
// router, and registry, plus the logger and metrics registry they
// share. Build one with New; nothing here is a global.
type Framework struct {
	Config   *config.Store
	Router   *router.Router
	Registry *registry.Registry
	Factory  *registry.Factory
	Logger   *slog.Logger
	Metrics  prometheus.Registerer

	bootID         string
	mailboxMetrics *mailbox.Metrics
}

// New constructs an empty Framework. logger and metricsReg may be nil,
// in which case slog.Default() and a fresh prometheus.Registry are
// used respectively — useful for tests where metric name collisions
// across instances must be avoided.
func New(logger *slog.Logger, metricsReg prometheus.Registerer) *Framework {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsReg == nil {
		metricsReg = prometheus.NewRegistry()
	}

	factory := registry.NewFactory()
	factory.Register("luasandbox", sandbox.New)
	factory.Register("sharedservice", sharedservice.New)

	return &Framework{
		Config:         config.New(),
		Factory:        factory,
		Logger:         logger,
		Metrics:        metricsReg,
		bootID:         uuid.NewString(),
		mailboxMetrics: mailbox.NewMetrics(metricsReg),
	}
}

// Start performs the six steps of spec §4.5 and blocks until the
// router's dispatch loop returns (normally via sys/shutdown once the
// registry drains, or via ctx cancellation). It returns 0 on clean
// shutdown, 1 on initialisation failure.
func (f *Framework) Start(ctx context.Context, configPath string) (int, error) {
	log := f.Logger.With("boot_id", f.bootID)

	// Step 1: version gate.
	if err := f.checkVersion(); err != nil {
		log.Error("version check failed", "error", err)
		return 1, err
	}

	// Step 2: initialise the config store.
	if err := f.Config.Initialize(configPath); err != nil {
		log.Error("config initialisation failed", "path", configPath, "error", err)
		return 1, fmt.Errorf("framework: %w", err)
	}

	maxMsgSize, err := f.requireMaxMsgSize()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		f.Config.Release()
		return 1, err
	}

	startType, startName, startFile, err := f.requireStartKeys()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		f.Config.Release()
		return 1, err
	}

	// Step 3: create the router endpoint.
	f.Router = router.New(maxMsgSize, log, router.NewMetrics(f.Metrics))

	// Step 4: launch the bootstrap service.
	f.Registry = registry.New(f.Router, f.Factory, f.Config, log, registry.NewMetrics(f.Metrics), f.mailboxMetrics)
	if err := f.Registry.Create(startType, startName, startFile); err != nil {
		log.Error("failed to create bootstrap service", "type", startType, "name", startName, "error", err)
		f.Router.Close()
		f.Config.Release()
		return 1, err
	}

	// Step 5: run the router dispatch loop until it returns.
	if err := f.Router.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("router dispatch loop returned an error", "error", err)
	}

	// Step 6: tear down.
	f.Router.Close()
	f.Config.Release()
	return 0, nil
}

// Stop requests a cooperative shutdown of every running service. It is
// safe to call from any goroutine and blocks until the registry
// drains; Start's own call to Router.Run then returns on its own once
// the registry posts sys/shutdown.
func (f *Framework) Stop() {
	if f.Registry != nil {
		f.Registry.Stop()
	}
}

// NewMailbox is a convenience for wiring an additional, framework-
// external mailbox into the running router (used by pkg/gateway to
// bridge external connections onto the same addressing scheme).
func (f *Framework) NewMailbox(identity string, recvTimeoutMS int64) (*mailbox.Mailbox, error) {
	return mailbox.New(f.Router, identity, recvTimeoutMS, f.maxMsgSizeOrDefault(), f.Logger, f.mailboxMetrics)
}

func (f *Framework) maxMsgSizeOrDefault() int64 {
	if n := f.Config.GetInt("max_ipc_msg_size"); n > 0 {
		return n
	}
	return defaultMaxMsgSize
}

func (f *Framework) checkVersion() error {
	expected := f.Config.GetInt("expected_major_version")
	if expected == 0 {
		return nil
	}
	if expected != coreMajorVersion {
		return fmt.Errorf("%w: core is v%d, config expects v%d", ErrVersionMismatch, coreMajorVersion, expected)
	}
	return nil
}

func (f *Framework) requireMaxMsgSize() (int64, error) {
	n := f.Config.GetInt("max_ipc_msg_size")
	if n <= 0 {
		return 0, ErrInvalidMaxMsgSize
	}
	return n, nil
}

func (f *Framework) requireStartKeys() (startType, startName, startFile string, err error) {
	startType = f.Config.Get("start_type")
	startName = f.Config.Get("start_name")
	startFile = f.Config.Get("start_file")
	if startType == "" || startName == "" || startFile == "" {
		return "", "", "", ErrMissingStartKeys
	}
	return startType, startName, startFile, nil
}
