// Package router implements the framework's message router (spec §4.2):
// a process-wide broker that forwards identity-addressed frames between
// mailboxes and interprets the "sys" control channel.
//
// The original couples this to a ZeroMQ ROUTER socket. Per spec §9's
// design notes, nothing in the contract requires that transport: a
// map of identity to bounded channel, with a single goroutine reading
// one ingress channel and writing to the destination's channel,
// preserves the only semantics that matter — the receiver sees the
// sender's identity as the first frame.
package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// mailboxQueueSize bounds each connected identity's inbound queue.
// Spec §5 describes the send path as non-suspending "under default
// configuration" (the endpoint is buffered); this is that buffer.
const mailboxQueueSize = 256

// ingressQueueSize bounds the router's own inbound queue (its ROUTER
// socket's receive buffer, in the original).
const ingressQueueSize = 1024

// Frame is a three-part message: source, destination, and an opaque
// payload. Frames are never stored beyond transit through the router's
// channels (spec §3).
type Frame struct {
	Source      string
	Destination string
	Payload     []byte
}

// Reserved is the destination name interpreted as a control channel
// rather than forwarded to a service.
const Reserved = "sys"

// Router is the central broker. The zero value is not usable; build
// one with New.
type Router struct {
	maxMsgSize int64
	logger     *slog.Logger
	metrics    *Metrics

	mu        sync.RWMutex
	endpoints map[string]chan Frame

	ingress  chan Frame
	stopping atomic.Bool
	closeOne sync.Once

	dropped *lru.Cache[string, int]
}

// New constructs a Router enforcing maxMsgSize on every frame. metrics
// comes from NewMetrics; if it is nil, the router records no metrics.
func New(maxMsgSize int64, logger *slog.Logger, metrics *Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	dropped, _ := lru.New[string, int](128)
	return &Router{
		maxMsgSize: maxMsgSize,
		logger:     logger.With("component", "router"),
		metrics:    metrics,
		endpoints:  make(map[string]chan Frame),
		ingress:    make(chan Frame, ingressQueueSize),
		dropped:    dropped,
	}
}

// Connect registers identity as a live mailbox and returns the channel
// the router will deliver its inbound frames on. Returns
// ErrIdentityInUse if identity is already connected, and
// ErrInvalidIdentity if it is empty or longer than 16 bytes.
func (r *Router) Connect(identity string) (<-chan Frame, error) {
	if len(identity) == 0 || len(identity) > 16 {
		return nil, ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.endpoints[identity]; exists {
		return nil, ErrIdentityInUse
	}
	ch := make(chan Frame, mailboxQueueSize)
	r.endpoints[identity] = ch
	if r.metrics != nil {
		r.metrics.ActiveMailboxes.Set(float64(len(r.endpoints)))
	}
	return ch, nil
}

// Disconnect removes identity's endpoint. Safe to call more than once.
func (r *Router) Disconnect(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.endpoints[identity]; ok {
		delete(r.endpoints, identity)
		close(ch)
		if r.metrics != nil {
			r.metrics.ActiveMailboxes.Set(float64(len(r.endpoints)))
		}
	}
}

// Send queues a frame from source to destination for routing. It
// validates size limits locally (spec's resource-limit error kind) and
// otherwise returns only once the frame is queued on the router's
// ingress — it does not wait for delivery.
func (r *Router) Send(source, destination string, payload []byte) error {
	if len(destination) == 0 || len(destination) > 16 {
		return ErrInvalidIdentity
	}
	if int64(len(payload)) > r.maxMsgSize {
		return ErrMessageTooLarge
	}
	if r.stopping.Load() {
		return ErrClosed
	}
	// stopping is an atomic flag, not r.mu, precisely so this can block on
	// a full ingress without holding r.mu: forward() needs an RLock on
	// r.mu to drain that same queue, and a blocked writer (Connect/
	// Disconnect) waiting on r.mu would otherwise starve both this send
	// and forward()'s read under Go's writer-preferring RWMutex.
	r.ingress <- Frame{Source: source, Destination: destination, Payload: payload}
	return nil
}

// PostSys is a convenience for sending a control command to "sys" from
// a given source identity (used by the registry's control mailbox).
func (r *Router) PostSys(source, command string) error {
	return r.Send(source, Reserved, []byte(command))
}

// Run executes the dispatch loop (spec §4.2) until sys/shutdown is
// observed, the ingress channel is closed, or ctx is cancelled.
// Per-frame failures (unknown destination, full peer queue) are logged
// and never terminate the loop; only a closed ingress or ctx
// cancellation does.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-r.ingress:
			if !ok {
				return nil
			}
			r.dispatch(frame)
			if r.stopping.Load() {
				return nil
			}
		}
	}
}

func (r *Router) dispatch(frame Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("recovered from panic in dispatch", "error", rec)
		}
	}()

	if frame.Destination == Reserved {
		r.handleSys(frame)
		return
	}
	r.forward(frame.Destination, frame.Source, frame.Payload)
}

func (r *Router) handleSys(frame Frame) {
	command := string(frame.Payload)
	switch command {
	case "exit":
		if r.metrics != nil {
			r.metrics.SysCommands.WithLabelValues("exit").Inc()
		}
		r.fanoutExit()
	case "shutdown":
		if r.metrics != nil {
			r.metrics.SysCommands.WithLabelValues("shutdown").Inc()
		}
		r.stopping.Store(true)
	default:
		r.logger.Warn("unknown sys command", "command", command)
		if r.metrics != nil {
			r.metrics.SysCommands.WithLabelValues("unknown").Inc()
		}
	}
}

// fanoutExit delivers a (from="sys", payload="exit") frame to every
// currently connected mailbox so each service observes a stop signal
// on its next receive (spec §4.2/§9: shutdown is cooperative, never
// forced).
func (r *Router) fanoutExit() {
	r.mu.RLock()
	targets := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		targets = append(targets, id)
	}
	r.mu.RUnlock()

	for _, id := range targets {
		r.forward(id, Reserved, []byte("exit"))
	}
}

func (r *Router) forward(destination, source string, payload []byte) {
	r.mu.RLock()
	ch, ok := r.endpoints[destination]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unknown destination, dropping frame", "destination", destination, "source", source)
		r.recordDropped(destination)
		if r.metrics != nil {
			r.metrics.FramesDropped.WithLabelValues("unknown_destination").Inc()
		}
		return
	}

	select {
	case ch <- Frame{Source: source, Destination: destination, Payload: payload}:
		if r.metrics != nil {
			r.metrics.FramesRouted.Inc()
		}
	default:
		r.logger.Warn("peer mailbox full, dropping frame", "destination", destination, "source", source)
		r.recordDropped(destination)
		if r.metrics != nil {
			r.metrics.FramesDropped.WithLabelValues("mailbox_full").Inc()
		}
	}
}

func (r *Router) recordDropped(destination string) {
	if r.dropped == nil {
		return
	}
	n, _ := r.dropped.Get(destination)
	r.dropped.Add(destination, n+1)
}

// DroppedDestinations returns a snapshot of recently observed drop
// counts, keyed by the destination that could not be reached. This is
// diagnostic only; it is not part of spec §4.1-4.4's contract.
func (r *Router) DroppedDestinations() map[string]int {
	out := make(map[string]int)
	if r.dropped == nil {
		return out
	}
	for _, key := range r.dropped.Keys() {
		if n, ok := r.dropped.Peek(key); ok {
			out[key] = n
		}
	}
	return out
}

// Close tears down the router: it stops accepting new sends, closes
// every connected endpoint, and closes the ingress channel so a
// blocked Run returns. Idempotent.
func (r *Router) Close() {
	r.closeOne.Do(func() {
		r.stopping.Store(true)
		r.mu.Lock()
		for id, ch := range r.endpoints {
			delete(r.endpoints, id)
			close(ch)
		}
		r.mu.Unlock()
		close(r.ingress)
	})
}
