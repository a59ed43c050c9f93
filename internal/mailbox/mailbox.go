// Package mailbox implements the per-service send/receive endpoint
// connected to the router (spec §4.3). It is the only way user code
// inside a service talks to its peers.
package mailbox

import (
	"errors"
	"log/slog"
	"time"

	"github.com/qsf-go/qsf/internal/router"
)

// InfiniteTimeout means a blocking Recv waits forever for a message.
const InfiniteTimeout = -1

var (
	// ErrClosed is returned by Send/Recv once the mailbox has been closed.
	ErrClosed = errors.New("mailbox: closed")
)

// Mailbox is bound to exactly one service identity and exactly one
// goroutine; endpoints are never shared (spec §5).
type Mailbox struct {
	identity    string
	r           *router.Router
	inbox       <-chan router.Frame
	recvTimeout time.Duration // InfiniteTimeout (-1) disables the deadline
	maxMsgSize  int64
	logger      *slog.Logger
	metrics     *Metrics
	closed      bool
}

// New connects identity to r and returns a bound Mailbox. recvTimeoutMS
// mirrors the config store's max_recv_timeout key: -1 for infinite, 0
// or more for a bounded wait in milliseconds.
func New(r *router.Router, identity string, recvTimeoutMS int64, maxMsgSize int64, logger *slog.Logger, metrics *Metrics) (*Mailbox, error) {
	inbox, err := r.Connect(identity)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var timeout time.Duration
	if recvTimeoutMS < 0 {
		timeout = InfiniteTimeout
	} else {
		timeout = time.Duration(recvTimeoutMS) * time.Millisecond
	}

	return &Mailbox{
		identity:    identity,
		r:           r,
		inbox:       inbox,
		recvTimeout: timeout,
		maxMsgSize:  maxMsgSize,
		logger:      logger.With("mailbox", identity),
		metrics:     metrics,
	}, nil
}

// Name returns the mailbox's own identity, exposed to scripting
// sandboxes as name() (spec §6).
func (m *Mailbox) Name() string {
	return m.identity
}

// Send emits payload to peer asynchronously: it returns once the frame
// is queued with the router, never blocking on delivery. Fails if peer
// or payload exceed the configured size limits.
func (m *Mailbox) Send(peer string, payload []byte) error {
	if m.closed {
		return ErrClosed
	}
	if int64(len(payload)) > m.maxMsgSize {
		if m.metrics != nil {
			m.metrics.SendErrors.Inc()
		}
		return router.ErrMessageTooLarge
	}
	err := m.r.Send(m.identity, peer, payload)
	if m.metrics != nil {
		if err != nil {
			m.metrics.SendErrors.Inc()
		} else {
			m.metrics.Sent.Inc()
		}
	}
	return err
}

// Recv attempts to receive the next (from, payload) pair. In blocking
// mode it waits until a message arrives, the receive timeout expires,
// or the mailbox is closed. In non-blocking mode it returns
// immediately with zero bytes if nothing is queued. On success it
// invokes handler exactly once and returns the payload length;
// otherwise it returns zero. handler must not retain from/payload
// beyond the call (per spec §4.3, it "may not outlive the surrounding
// recv").
func (m *Mailbox) Recv(blocking bool, handler func(from string, payload []byte)) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}

	if !blocking {
		select {
		case frame, ok := <-m.inbox:
			if !ok {
				return 0, ErrClosed
			}
			handler(frame.Source, frame.Payload)
			m.recordRecv()
			return len(frame.Payload), nil
		default:
			return 0, nil
		}
	}

	if m.recvTimeout == InfiniteTimeout {
		frame, ok := <-m.inbox
		if !ok {
			return 0, ErrClosed
		}
		handler(frame.Source, frame.Payload)
		m.recordRecv()
		return len(frame.Payload), nil
	}

	timer := time.NewTimer(m.recvTimeout)
	defer timer.Stop()
	select {
	case frame, ok := <-m.inbox:
		if !ok {
			return 0, ErrClosed
		}
		handler(frame.Source, frame.Payload)
		m.recordRecv()
		return len(frame.Payload), nil
	case <-timer.C:
		return 0, nil
	}
}

func (m *Mailbox) recordRecv() {
	if m.metrics != nil {
		m.metrics.Received.Inc()
	}
}

// Close disconnects the mailbox from the router. Idempotent.
func (m *Mailbox) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.r.Disconnect(m.identity)
	return nil
}
