package registry

import (
	"log/slog"
	"sync"

	"github.com/qsf-go/qsf/internal/config"
	"github.com/qsf-go/qsf/internal/mailbox"
)

// Service is implemented by every launchable service type. Run blocks
// for the service's whole lifetime and returns an exit code; there is
// no forced cancellation; long-running implementations must observe
// sys/exit on their own mailbox (spec §5).
type Service interface {
	Run(argstring string) int
}

// ServiceContext is everything a Constructor needs to build a Service:
// its bound mailbox, read access to the global config store, a logger
// already annotated with the service's name, and the Registry itself
// so an implementation can launch further services (spec §6's launch
// binding).
type ServiceContext struct {
	Name     string
	Mailbox  *mailbox.Mailbox
	Config   *config.Store
	Logger   *slog.Logger
	Registry *Registry
}

// Constructor builds one Service instance for the given context. The
// type factory maps a type string to a Constructor (spec §4.4); new
// types are added at compile time via Factory.Register.
type Constructor func(ServiceContext) Service

// Factory is a static, type-string-keyed map of Constructors.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

// Register binds typ to ctor, overwriting any previous binding.
func (f *Factory) Register(typ string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[typ] = ctor
}

// New instantiates a Service of typ, or ErrUnknownType if typ has no
// registered Constructor.
func (f *Factory) New(typ string, sc ServiceContext) (Service, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[typ]
	f.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownType
	}
	return ctor(sc), nil
}
